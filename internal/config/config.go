// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrFreepikAPIKeyRequired is returned when FREEPIK_API_KEY is not set.
	ErrFreepikAPIKeyRequired = errors.New("config: FREEPIK_API_KEY is required")
	// ErrWebhookURLRequired is returned when WEBHOOK_URL is not set.
	ErrWebhookURLRequired = errors.New("config: WEBHOOK_URL is required")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=8080" json:"port"`

	// Freepik settings
	FreepikAPIKey string `env:"FREEPIK_API_KEY, required" json:"-"` // Masked in JSON
	FreepikAPIURL string `env:"FREEPIK_API_URL" json:"freepik_api_url,omitempty"`
	// WebhookURL is the public callback address handed to the provider.
	WebhookURL string `env:"WEBHOOK_URL, required" json:"webhook_url"`

	// Task store settings; Postgres when set, in-memory otherwise.
	DatabaseURL string `env:"DATABASE_URL" json:"-"` // Masked in JSON

	// Storage settings
	TempDir string `env:"TEMP_DIR, default=/tmp/vidforge" json:"temp_dir"`

	// Blob store settings (AWS S3 or Cloudflare R2)
	BlobBucket         string `env:"BLOB_BUCKET" json:"blob_bucket,omitempty"`
	BlobRegion         string `env:"BLOB_REGION, default=auto" json:"blob_region,omitempty"`
	BlobEndpoint       string `env:"BLOB_ENDPOINT" json:"blob_endpoint,omitempty"`
	BlobPublicBaseURL  string `env:"BLOB_PUBLIC_BASE_URL" json:"blob_public_base_url,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Status cache settings
	StatusCacheTTL time.Duration `env:"STATUS_CACHE_TTL, default=5s" json:"status_cache_ttl"`

	// Webhook rate limit settings
	WebhookRateLimit  int           `env:"WEBHOOK_RATE_LIMIT, default=20" json:"webhook_rate_limit"`
	WebhookRateWindow time.Duration `env:"WEBHOOK_RATE_WINDOW, default=1m" json:"webhook_rate_window"`

	// Rehosting settings
	DownloadTimeout time.Duration `env:"DOWNLOAD_TIMEOUT, default=60s" json:"download_timeout"`

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// BlobStoreEnabled returns true if blob store configuration is provided.
func (c *Config) BlobStoreEnabled() bool {
	return c.BlobBucket != ""
}

// PostgresEnabled returns true if a database URL is provided.
func (c *Config) PostgresEnabled() bool {
	return c.DatabaseURL != ""
}

// Load reads configuration from environment variables using go-envconfig.
// It returns an error if required variables are not set.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		// Map envconfig errors to our domain errors for required fields
		if strings.Contains(err.Error(), "FREEPIK_API_KEY") {
			return nil, ErrFreepikAPIKeyRequired
		}
		if strings.Contains(err.Error(), "WEBHOOK_URL") {
			return nil, ErrWebhookURLRequired
		}
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	if c.FreepikAPIKey == "" {
		return ErrFreepikAPIKeyRequired
	}
	if c.WebhookURL == "" {
		return ErrWebhookURLRequired
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, WebhookURL: %s, TempDir: %s, BlobBucket: %s, BlobEndpoint: %s, StatusCacheTTL: %s, WebhookRateLimit: %d, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.WebhookURL,
		c.TempDir,
		c.BlobBucket,
		c.BlobEndpoint,
		c.StatusCacheTTL,
		c.WebhookRateLimit,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
