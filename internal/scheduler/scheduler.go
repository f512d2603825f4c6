package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/i474232898/gym-capacity/internal/capacity"
)

// Runner performs one collection run.
type Runner interface {
	Run(ctx context.Context) (*capacity.Report, error)
}

// BreakerConfig trips the breaker after MaxFailures consecutive failed runs
// and keeps it open for Cooldown.
type BreakerConfig struct {
	MaxFailures int
	Cooldown    time.Duration
}

// Scheduler periodically runs a collection. Runs never overlap.
type Scheduler struct {
	scheduler *gocron.Scheduler
	runner    Runner
	interval  time.Duration
	timeout   time.Duration
	circuit   *gobreaker.CircuitBreaker
	log       *zap.Logger
}

// New creates a new Scheduler. Each run is bounded by timeout.
func New(runner Runner, interval, timeout time.Duration, breaker BreakerConfig, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	if breaker.MaxFailures <= 0 {
		breaker.MaxFailures = 3
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "capacity-run",
		MaxRequests: 1,
		Timeout:     breaker.Cooldown,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= uint32(breaker.MaxFailures)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		runner:    runner,
		interval:  interval,
		timeout:   timeout,
		circuit:   cb,
		log:       log,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
// The first run happens immediately.
func (s *Scheduler) Start() error {
	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 60
	}

	_, err := s.scheduler.Every(minutes).Minutes().SingletonMode().Do(s.runOnce)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

func (s *Scheduler) runOnce() {
	s.log.Info("scheduler: running capacity job")

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	_, err := s.circuit.Execute(func() (interface{}, error) {
		return s.runner.Run(ctx)
	})
	switch {
	case err == nil:
		s.log.Info("scheduler: completed capacity job")
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		s.log.Warn("scheduler: skipping run, source considered down", zap.Error(err))
	default:
		s.log.Error("scheduler: capacity job failed", zap.Error(err))
	}
}
