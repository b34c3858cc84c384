// Package config provides application configuration management.
// It loads settings from environment variables and provides defaults for
// server mode, harvest mode, timeouts, and cache settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/univalle-dev/asignacion-go/internal/asignacion"
)

// Mode selects which configuration subset is required.
type Mode int

const (
	// ServerMode is the long-running query API.
	ServerMode Mode = iota
	// HarvestMode is the batch pipeline.
	HarvestMode
)

// Config holds all application configuration
type Config struct {
	// Portal Configuration
	PortalBaseURL string // Base URL of the legacy assignment portal
	CurrentPeriod string // Current academic period label (YYYY-T), required in harvest mode
	NPrevious     int    // How many periods before the current one to harvest (default: 8)

	// Spreadsheet Configuration
	SourceSpreadsheetID   string        // Spreadsheet holding the cedula roster
	SourceWorksheet       string        // Worksheet name within the source spreadsheet
	SourceColumn          string        // Roster column letter (default: "D")
	TargetSpreadsheetID   string        // Spreadsheet receiving flattened activity rows
	GoogleCredentialsJSON string        // Service account credentials: raw JSON or a file path
	SheetMetaTTL          time.Duration // TTL for cached sheet metadata (default: 30m)

	// Harvest Pacing
	CedulaDelay         time.Duration // Delay between consecutive cedulas (default: 2s)
	FetchConcurrency    int           // Max concurrent period fetches per cedula (default: 1)
	HarvestScheduleHour int           // Hour of day for the server's scheduled harvest (-1 = disabled)

	// Scraper Configuration
	ScraperTimeout    time.Duration // Timeout for a single portal request
	ScraperMaxRetries int           // Retry attempts for retryable failures (default: 3)
	RetryDelayMin     time.Duration // Lower bound of the uniform random retry delay (default: 0.5s)
	RetryDelayMax     time.Duration // Upper bound of the uniform random retry delay (default: 1s)

	// Data Configuration
	DataDir  string        // Data directory for SQLite database
	CacheTTL time.Duration // TTL: absolute expiration for cached documents (default: 24h)

	// API Rate Limits (Token Bucket Algorithm, keyed by client IP)
	APIRateBurst        float64 // Maximum burst tokens per client (default: 30)
	APIRateRefillPerSec float64 // Tokens refilled per second (default: 5)
	APIRateDailyLimit   int     // Maximum requests per client per day (0 = disabled)

	// Archive Configuration (S3-compatible object storage)
	Archive ArchiveConfig

	// Crash Reporting
	SentryToken       string  // Better Stack Errors token (empty = disabled)
	SentryHost        string  // Better Stack Errors ingesting host
	SentryEnvironment string  // Deployment environment label
	SentrySampleRate  float64 // Error sampling rate (default: 1.0)

	// Remote Logging
	BetterstackToken    string // Better Stack Logs token (empty = stdout only)
	BetterstackEndpoint string // Optional ingest endpoint override

	// Metrics Authentication
	MetricsUsername string // Username for /metrics endpoint Basic Auth (default: "prometheus")
	MetricsPassword string // Password for /metrics endpoint Basic Auth (empty = no auth)

	// Server Configuration
	Port            string
	LogLevel        string
	ShutdownTimeout time.Duration

	mode Mode
}

// ArchiveConfig holds object storage settings for snapshots, raw page
// archives, the delta log, the run lock, and the maintenance state object.
type ArchiveConfig struct {
	Enabled         bool
	AccountID       string        // Cloudflare R2 account ID (or any S3 endpoint account)
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	SnapshotKey     string        // Object key of the cache snapshot (default: "snapshots/cache.db.zst")
	LockKey         string        // Object key of the distributed run lock (default: "locks/harvest.lock")
	LockTTL         time.Duration // Lock expiry; a crashed runner's lock is stealable after this (default: 2h)
	DeltaPrefix     string        // Key prefix of the delta log (default: "deltas/")
	StateKey        string        // Object key of the harvest schedule state (default: "state/schedule.json")
	PollInterval    time.Duration // Snapshot polling interval for servers (default: 5m)
}

// Load reads configuration from environment variables for server mode.
// It attempts to load .env file first, then reads from env vars.
func Load() (*Config, error) {
	return LoadForMode(ServerMode)
}

// LoadForMode reads configuration from environment variables, validating
// only the settings the given mode requires.
func LoadForMode(mode Mode) (*Config, error) {
	// Try to load .env file (ignore error if file doesn't exist)
	_ = godotenv.Load()

	cfg := &Config{
		// Portal Configuration
		PortalBaseURL: getEnv("PORTAL_BASE_URL", "https://proxse26.univalle.edu.co/asignacion"),
		CurrentPeriod: getEnv("CURRENT_PERIOD", ""),
		NPrevious:     getIntEnv("N_PREVIOUS", 8),

		// Spreadsheet Configuration
		SourceSpreadsheetID:   getEnv("SOURCE_SPREADSHEET_ID", ""),
		SourceWorksheet:       getEnv("SOURCE_WORKSHEET", ""),
		SourceColumn:          getEnv("SOURCE_COLUMN", "D"),
		TargetSpreadsheetID:   getEnv("TARGET_SPREADSHEET_ID", ""),
		GoogleCredentialsJSON: getEnv("GOOGLE_CREDENTIALS_JSON", ""),
		SheetMetaTTL:          getDurationEnv("SHEET_META_TTL", SheetMetaDefaultTTL),

		// Harvest Pacing
		CedulaDelay:         getDurationEnv("CEDULA_DELAY", CedulaDelayDefault),
		FetchConcurrency:    getIntEnv("FETCH_CONCURRENCY", 1),
		HarvestScheduleHour: getIntEnv("HARVEST_SCHEDULE_HOUR", -1),

		// Scraper Configuration
		ScraperTimeout:    getDurationEnv("SCRAPER_TIMEOUT", ScraperRequest),
		ScraperMaxRetries: getIntEnv("SCRAPER_MAX_RETRIES", 3),
		RetryDelayMin:     getDurationEnv("RETRY_DELAY_MIN", RetryDelayMinDefault),
		RetryDelayMax:     getDurationEnv("RETRY_DELAY_MAX", RetryDelayMaxDefault),

		// Data Configuration
		DataDir:  getEnv("DATA_DIR", getDefaultDataDir()),
		CacheTTL: getDurationEnv("CACHE_TTL", 24*time.Hour),

		// API Rate Limits
		APIRateBurst:        getFloatEnv("API_RATE_BURST", 30.0),
		APIRateRefillPerSec: getFloatEnv("API_RATE_REFILL_PER_SEC", 5.0),
		APIRateDailyLimit:   getIntEnv("API_RATE_DAILY", 0),

		// Archive Configuration
		Archive: ArchiveConfig{
			Enabled:         getBoolEnv("ARCHIVE_ENABLED", false),
			AccountID:       getEnv("ARCHIVE_ACCOUNT_ID", ""),
			AccessKeyID:     getEnv("ARCHIVE_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("ARCHIVE_SECRET_ACCESS_KEY", ""),
			Bucket:          getEnv("ARCHIVE_BUCKET", ""),
			SnapshotKey:     getEnv("ARCHIVE_SNAPSHOT_KEY", "snapshots/cache.db.zst"),
			LockKey:         getEnv("ARCHIVE_LOCK_KEY", "locks/harvest.lock"),
			LockTTL:         getDurationEnv("ARCHIVE_LOCK_TTL", 2*time.Hour),
			DeltaPrefix:     getEnv("ARCHIVE_DELTA_PREFIX", "deltas/"),
			StateKey:        getEnv("ARCHIVE_STATE_KEY", "state/schedule.json"),
			PollInterval:    getDurationEnv("ARCHIVE_POLL_INTERVAL", SnapshotPollInterval),
		},

		// Crash Reporting
		SentryToken:       getEnv("SENTRY_TOKEN", ""),
		SentryHost:        getEnv("SENTRY_HOST", "errors.betterstack.com"),
		SentryEnvironment: getEnv("SENTRY_ENVIRONMENT", "production"),
		SentrySampleRate:  getFloatEnv("SENTRY_SAMPLE_RATE", 1.0),

		// Remote Logging
		BetterstackToken:    getEnv("BETTERSTACK_TOKEN", ""),
		BetterstackEndpoint: getEnv("BETTERSTACK_ENDPOINT", ""),

		// Metrics Authentication
		MetricsUsername: getEnv("METRICS_USERNAME", "prometheus"),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),

		// Server Configuration
		Port:            getEnv("PORT", "10000"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT", GracefulShutdown),

		mode: mode,
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Mode returns the mode this configuration was loaded for.
func (c *Config) Mode() Mode {
	return c.mode
}

// Validate checks if required configuration values are set
func (c *Config) Validate() error {
	var errs []error

	if c.PortalBaseURL == "" {
		errs = append(errs, errors.New("PORTAL_BASE_URL is required"))
	}
	if c.DataDir == "" {
		errs = append(errs, errors.New("DATA_DIR is required"))
	}
	if c.CacheTTL <= 0 {
		errs = append(errs, fmt.Errorf("CACHE_TTL must be positive, got %v", c.CacheTTL))
	}
	if c.SheetMetaTTL <= 0 {
		errs = append(errs, fmt.Errorf("SHEET_META_TTL must be positive, got %v", c.SheetMetaTTL))
	}
	if c.ScraperTimeout <= 0 {
		errs = append(errs, fmt.Errorf("SCRAPER_TIMEOUT must be positive, got %v", c.ScraperTimeout))
	}
	if c.ScraperMaxRetries < 0 {
		errs = append(errs, fmt.Errorf("SCRAPER_MAX_RETRIES cannot be negative, got %d", c.ScraperMaxRetries))
	}
	if c.RetryDelayMin <= 0 {
		errs = append(errs, fmt.Errorf("RETRY_DELAY_MIN must be positive, got %v", c.RetryDelayMin))
	}
	if c.RetryDelayMax < c.RetryDelayMin {
		errs = append(errs, fmt.Errorf("RETRY_DELAY_MAX (%v) must not be below RETRY_DELAY_MIN (%v)", c.RetryDelayMax, c.RetryDelayMin))
	}
	if c.FetchConcurrency < 1 {
		errs = append(errs, fmt.Errorf("FETCH_CONCURRENCY must be at least 1, got %d", c.FetchConcurrency))
	}
	if c.NPrevious < 0 {
		errs = append(errs, fmt.Errorf("N_PREVIOUS cannot be negative, got %d", c.NPrevious))
	}
	if c.HarvestScheduleHour < -1 || c.HarvestScheduleHour > 23 {
		errs = append(errs, fmt.Errorf("HARVEST_SCHEDULE_HOUR must be -1 (disabled) or 0-23, got %d", c.HarvestScheduleHour))
	}

	switch c.mode {
	case ServerMode:
		if c.Port == "" {
			errs = append(errs, errors.New("PORT is required"))
		}
	case HarvestMode:
		if c.CurrentPeriod == "" {
			errs = append(errs, errors.New("CURRENT_PERIOD is required in harvest mode"))
		} else if _, err := asignacion.ParsePeriodLabel(c.CurrentPeriod); err != nil {
			errs = append(errs, fmt.Errorf("CURRENT_PERIOD: %w", err))
		}
	}

	if c.Archive.Enabled {
		if c.Archive.AccountID == "" {
			errs = append(errs, errors.New("ARCHIVE_ACCOUNT_ID is required when archive is enabled"))
		}
		if c.Archive.AccessKeyID == "" {
			errs = append(errs, errors.New("ARCHIVE_ACCESS_KEY_ID is required when archive is enabled"))
		}
		if c.Archive.SecretAccessKey == "" {
			errs = append(errs, errors.New("ARCHIVE_SECRET_ACCESS_KEY is required when archive is enabled"))
		}
		if c.Archive.Bucket == "" {
			errs = append(errs, errors.New("ARCHIVE_BUCKET is required when archive is enabled"))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// getEnv retrieves environment variable with fallback to default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv retrieves integer environment variable with fallback to default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getDurationEnv retrieves duration environment variable with fallback to default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getFloatEnv retrieves float64 environment variable with fallback to default value
func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getBoolEnv retrieves boolean environment variable with fallback to default value
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getDefaultDataDir returns platform-specific default data directory
func getDefaultDataDir() string {
	if runtime.GOOS == "windows" {
		return "./data"
	}
	return "/data"
}

// SQLitePath returns the full path to the SQLite database file
func (c *Config) SQLitePath() string {
	return filepath.Join(c.DataDir, "cache.db")
}

// CredentialsJSON resolves GOOGLE_CREDENTIALS_JSON to the raw service
// account key. The variable may hold either the JSON itself or a path
// to a key file.
func (c *Config) CredentialsJSON() ([]byte, error) {
	if c.GoogleCredentialsJSON == "" {
		return nil, errors.New("GOOGLE_CREDENTIALS_JSON is not set")
	}
	if strings.HasPrefix(strings.TrimSpace(c.GoogleCredentialsJSON), "{") {
		return []byte(c.GoogleCredentialsJSON), nil
	}
	data, err := os.ReadFile(c.GoogleCredentialsJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}
	return data, nil
}
