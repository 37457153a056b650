package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	TelegramToken string
	DatabaseURL   string
	AdminUserID   int64

	// Source adapters
	Sources            []string
	TonAPIBase         string
	TonAPIToken        string
	GetgemsURL         string
	GetgemsCollections []string
	FeedURL            string
	FetchTimeout       time.Duration

	// Scan loop
	DefaultTickSeconds int
	LookbackMinutes    int
	MaxDealsPerUser    int
	ColdStartSuppress  bool
	ScannerCron        string

	// Payments
	PaymentCheckInterval time.Duration
}

// Load reads configuration from the environment. A .env file is honored
// when present so local runs match the deployed environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err == nil {
		slog.Info("Loaded environment from .env file")
	}

	token := os.Getenv("TELEGRAM_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_TOKEN environment variable is required but not set")
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required but not set")
	}

	cfg := &Config{
		TelegramToken:        token,
		DatabaseURL:          databaseURL,
		Sources:              splitList(getEnv("SCANNER_SOURCES", "tonapi")),
		TonAPIBase:           getEnv("TONAPI_BASE", "https://tonapi.io/v2"),
		TonAPIToken:          os.Getenv("TONAPI_TOKEN"),
		GetgemsURL:           getEnv("GETGEMS_GRAPHQL_URL", "https://api.getgems.io/graphql"),
		GetgemsCollections:   splitList(os.Getenv("GETGEMS_COLLECTIONS")),
		FeedURL:              os.Getenv("FEED_URL"),
		ScannerCron:          os.Getenv("SCANNER_CRON"),
		FetchTimeout:         15 * time.Second,
		PaymentCheckInterval: 30 * time.Second,
	}

	if v := os.Getenv("ADMIN_USER_ID"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_USER_ID %q: %w", v, err)
		}
		cfg.AdminUserID = parsed
	}

	var err error
	if cfg.DefaultTickSeconds, err = intEnv("SCANNER_TICK_SECONDS", 30); err != nil {
		return nil, err
	}
	if cfg.LookbackMinutes, err = intEnv("SCANNER_LOOKBACK_MINUTES", 180); err != nil {
		return nil, err
	}
	if cfg.MaxDealsPerUser, err = intEnv("SCANNER_MAX_DEALS_PER_USER", 3); err != nil {
		return nil, err
	}

	cfg.ColdStartSuppress = true
	if v := os.Getenv("COLD_START_SUPPRESS"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid COLD_START_SUPPRESS %q: %w", v, err)
		}
		cfg.ColdStartSuppress = parsed
	}

	if v := os.Getenv("PAYMENT_CHECK_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid PAYMENT_CHECK_INTERVAL %q: %w", v, err)
		}
		cfg.PaymentCheckInterval = d
	}

	if cfg.DefaultTickSeconds < 5 {
		return nil, fmt.Errorf("SCANNER_TICK_SECONDS must be at least 5, got %d", cfg.DefaultTickSeconds)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return parsed, nil
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
