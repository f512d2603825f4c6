package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	httpapi "github.com/i474232898/gym-capacity/internal/api/http"
	"github.com/i474232898/gym-capacity/internal/capacity"
	"github.com/i474232898/gym-capacity/internal/capacity/browser"
	"github.com/i474232898/gym-capacity/internal/config"
	"github.com/i474232898/gym-capacity/internal/logger"
	"github.com/i474232898/gym-capacity/internal/metrics"
	"github.com/i474232898/gym-capacity/internal/scheduler"
	"github.com/i474232898/gym-capacity/internal/store"
)

func main() {
	serve := flag.Bool("serve", false, "run on a schedule and serve the capacity API instead of a single collection")
	flag.Parse()

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	lg, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}

	var code int
	if *serve {
		code = runServer(cfg, lg)
	} else {
		lg.Logger.Info("starting gym capacity scraper", zap.String("data_file", cfg.DataFile))
		fileStore := store.NewFileStore(cfg.DataFile, cfg.StoreMaxHistory, cfg.Location)
		code = runOnce(newService(cfg, lg.Logger, fileStore), lg.Logger)
	}
	lg.Flush()
	os.Exit(code)
}

func newService(cfg *config.AppConfig, lg *zap.Logger, fileStore *store.FileStore, opts ...capacity.Option) *capacity.Service {
	agent := browser.NewChromeAgent(browser.Config{
		ExecPath:  cfg.ChromePath,
		Headless:  cfg.Headless,
		UserAgent: cfg.UserAgent,
	}, lg.Named("browser"))

	extractor := capacity.NewExtractor(agent, capacity.ExtractorConfig{
		SourceURL:       cfg.SourceURL,
		CardSelector:    cfg.CardSelector,
		NameSelector:    cfg.NameSelector,
		BadgeSelector:   cfg.BadgeSelector,
		SettleDelay:     cfg.SettleDelay,
		CardWaitTimeout: cfg.CardWaitTimeout,
		CardReadTimeout: cfg.CardReadTimeout,
	}, lg.Named("extractor"))

	opts = append([]capacity.Option{capacity.WithSummary(os.Stdout)}, opts...)
	return capacity.NewService(extractor, fileStore, cfg.Location, lg.Named("service"), opts...)
}

// runOnce performs a single collection and maps its outcome to an exit code
// schedulers can alert on.
func runOnce(service *capacity.Service, lg *zap.Logger) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := service.Run(ctx); err != nil {
		if errors.Is(err, capacity.ErrExtraction) {
			lg.Error("failed to scrape data", zap.Error(err))
		} else {
			lg.Error("run did not complete", zap.Error(err))
		}
		return 1
	}
	return 0
}

func runServer(cfg *config.AppConfig, lg *logger.Logger) int {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	fileStore := store.NewFileStore(cfg.DataFile, cfg.StoreMaxHistory, cfg.Location)
	service := newService(cfg, lg.Logger, fileStore, capacity.WithRecorder(m))

	// Each run gets a generous bound over its own internal waits.
	runTimeout := cfg.SettleDelay + cfg.CardWaitTimeout + 2*time.Minute
	sched := scheduler.New(service, cfg.FetchInterval, runTimeout, scheduler.BreakerConfig{
		MaxFailures: cfg.BreakerMaxFailures,
		Cooldown:    cfg.BreakerCooldown,
	}, lg.Logger.Named("scheduler"))
	if err := sched.Start(); err != nil {
		lg.Logger.Error("failed to start scheduler", zap.Error(err))
		return 1
	}
	defer sched.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "gym-capacity",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(fiberlogger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "gym-capacity",
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// API routes.
	httpapi.RegisterRoutes(app, fileStore)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			lg.Logger.Error("fiber server stopped", zap.Error(err))
		}
	}()
	lg.Logger.Info("serving capacity API", zap.String("port", cfg.Port), zap.Duration("interval", cfg.FetchInterval))

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		lg.Logger.Error("error during shutdown", zap.Error(err))
	}
	return 0
}
