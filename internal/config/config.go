package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	SourceAPI  = "api"
	SourceHTML = "html"
	SourceXLSX = "xlsx"
)

const (
	defaultSchedule    = "0 * * * *"
	defaultCallTimeout = 30 * time.Second
	defaultLockTTL     = 15 * time.Minute
)

type Config struct {
	DatabaseURL string
	RedisURL    string
	MetricsPort string
	HTTPPort    string
	LogLevel    string

	GoogleAPIKey string
	SheetID      string
	SheetSource  string
	XLSXPath     string

	SyncSchedule string
	CallTimeout  time.Duration
	LockTTL      time.Duration
}

func Load() (*Config, error) {
	// .env at the project root first, then the working directory
	_ = godotenv.Load("../../.env")
	_ = godotenv.Load()
	return fromEnv(os.Getenv)
}

func fromEnv(lookup func(string) string) (*Config, error) {
	cfg := &Config{
		DatabaseURL:  lookup("DATABASE_URL"),
		RedisURL:     lookup("REDIS_URL"),
		MetricsPort:  getEnv(lookup, "METRICS_PORT", "9090"),
		HTTPPort:     getEnv(lookup, "HTTP_PORT", "8080"),
		LogLevel:     getEnv(lookup, "LOG_LEVEL", "info"),
		GoogleAPIKey: lookup("GOOGLE_API_KEY"),
		SheetID:      lookup("SHEET_ID"),
		SheetSource:  strings.ToLower(getEnv(lookup, "SHEET_SOURCE", SourceAPI)),
		XLSXPath:     lookup("SHEET_XLSX_PATH"),
		SyncSchedule: getEnv(lookup, "SYNC_SCHEDULE", defaultSchedule),
	}

	var err error
	if cfg.CallTimeout, err = getDuration(lookup, "SYNC_CALL_TIMEOUT", defaultCallTimeout); err != nil {
		return nil, err
	}
	if cfg.LockTTL, err = getDuration(lookup, "SYNC_LOCK_TTL", defaultLockTTL); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings every command needs. Missing sheet credentials
// are not an error here: they surface as an unavailable source on first use.
func (c *Config) Validate() error {
	switch c.SheetSource {
	case SourceAPI, SourceHTML:
	case SourceXLSX:
		if c.XLSXPath == "" {
			return errors.New("SHEET_XLSX_PATH is required when SHEET_SOURCE=xlsx")
		}
	default:
		return fmt.Errorf("SHEET_SOURCE %q is not one of api, html, xlsx", c.SheetSource)
	}
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	return nil
}

func getEnv(lookup func(string) string, k, d string) string {
	if v := strings.TrimSpace(lookup(k)); v != "" {
		return v
	}
	return d
}

func getDuration(lookup func(string) string, k string, d time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(lookup(k))
	if raw == "" {
		return d, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", k, raw)
	}
	return v, nil
}
