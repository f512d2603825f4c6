package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"
	_ "time/tzdata" // zone database for minimal container images

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type AppConfig struct {
	// Source page and its layout.
	SourceURL     string `validate:"required,url"`
	CardSelector  string `validate:"required"`
	NameSelector  string `validate:"required"`
	BadgeSelector string `validate:"required"`

	// Bounded waits while rendering.
	SettleDelay     time.Duration `validate:"gte=0"`
	CardWaitTimeout time.Duration `validate:"gt=0"`
	CardReadTimeout time.Duration `validate:"gt=0"`

	// Browser launch.
	ChromePath string
	Headless   bool
	UserAgent  string

	// Persistence.
	DataFile        string `validate:"required"`
	StoreMaxHistory int    `validate:"gt=0"` // max number of snapshots kept on disk

	// Timezone readings are stamped in, e.g. Asia/Singapore.
	Timezone string         `validate:"required"`
	Location *time.Location `validate:"-"`

	// FetchInterval controls how often the serve mode runs a collection.
	FetchInterval time.Duration `validate:"gte=1m"`

	// Circuit breaker around scheduled runs.
	BreakerMaxFailures int           `validate:"gt=0"`
	BreakerCooldown    time.Duration `validate:"gt=0"`

	Port      string `validate:"required,numeric"`
	LogLevel  string `validate:"oneof=debug info warn error"`
	LogFormat string `validate:"oneof=json console"`
}

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

var validate = validator.New()

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	return FromEnv()
}

// FromEnv builds the configuration from the current environment only.
func FromEnv() (*AppConfig, error) {
	cfg := &AppConfig{}

	cfg.SourceURL = getenvDefault("SOURCE_URL", "https://activesg.gov.sg/gym-capacity")
	cfg.CardSelector = getenvDefault("CARD_SELECTOR", ".chakra-card")
	cfg.NameSelector = getenvDefault("NAME_SELECTOR", "p.chakra-text")
	cfg.BadgeSelector = getenvDefault("BADGE_SELECTOR", "span.chakra-badge")

	var err error
	if cfg.SettleDelay, err = getenvDuration("SETTLE_DELAY", "5s"); err != nil {
		return nil, err
	}
	if cfg.CardWaitTimeout, err = getenvDuration("CARD_WAIT_TIMEOUT", "20s"); err != nil {
		return nil, err
	}
	if cfg.CardReadTimeout, err = getenvDuration("CARD_READ_TIMEOUT", "2s"); err != nil {
		return nil, err
	}

	cfg.ChromePath = os.Getenv("CHROME_PATH")
	cfg.Headless = getenvBool("HEADLESS", true)
	cfg.UserAgent = getenvDefault("USER_AGENT", defaultUserAgent)

	cfg.DataFile = getenvDefault("DATA_FILE", "gym_capacity_data.json")
	cfg.StoreMaxHistory = getenvInt("STORE_MAX_HISTORY", 720) // 30 days of hourly runs

	cfg.Timezone = getenvDefault("TIMEZONE", "Asia/Singapore")
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}
	cfg.Location = loc

	if cfg.FetchInterval, err = getenvDuration("FETCH_INTERVAL", "1h"); err != nil {
		return nil, err
	}

	cfg.BreakerMaxFailures = getenvInt("BREAKER_MAX_FAILURES", 3)
	if cfg.BreakerCooldown, err = getenvDuration("BREAKER_COOLDOWN", "2h"); err != nil {
		return nil, err
	}

	cfg.Port = getenvDefault("PORT", "8080")
	cfg.LogLevel = getenvDefault("LOG_LEVEL", "info")
	cfg.LogFormat = getenvDefault("LOG_FORMAT", "json")

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
