// Package config loads runtime settings from the environment.
//
// Values come from SPONTIS_* variables (plus SCRAPER_RETENTION_HOURS),
// optionally seeded from a .env file. Command-line flags override them.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/spontis-app/spontis/internal/event"
	"github.com/spontis-app/spontis/internal/logger"
)

// Config holds every setting the CLI and server consume.
type Config struct {
	Environment string `envconfig:"SPONTIS_ENVIRONMENT" default:"production"`
	LogLevel    string `envconfig:"SPONTIS_LOG_LEVEL" default:"info"`

	Timezone       string `envconfig:"SPONTIS_TIMEZONE" default:"Europe/Oslo"`
	DefaultCity    string `envconfig:"SPONTIS_DEFAULT_CITY" default:"Bergen"`
	RetentionHours int    `envconfig:"SCRAPER_RETENTION_HOURS" default:"6"`

	DataDir     string `envconfig:"SPONTIS_DATA_DIR" default:"data"`
	SourcesFile string `envconfig:"SPONTIS_SOURCES_FILE" default:"sources.yaml"`

	HTTPTimeout   time.Duration `envconfig:"SPONTIS_HTTP_TIMEOUT" default:"25s"`
	HTTPRetries   int           `envconfig:"SPONTIS_HTTP_RETRIES" default:"3"`
	HTTPBackoff   time.Duration `envconfig:"SPONTIS_HTTP_BACKOFF" default:"600ms"`
	HTTPUserAgent string        `envconfig:"SPONTIS_HTTP_USER_AGENT" default:"SpontisBot/1.1 (+https://spontis-app.github.io)"`
	HTTPLanguage  string        `envconfig:"SPONTIS_HTTP_LANG" default:"nb,en;q=0.8"`

	FetchConcurrency int    `envconfig:"SPONTIS_FETCH_CONCURRENCY" default:"4"`
	MetricsFile      string `envconfig:"SPONTIS_METRICS_FILE" default:""`
	ServeAddr        string `envconfig:"SPONTIS_SERVE_ADDR" default:":8080"`
}

// Load reads the environment into a Config and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// LoadEnvFile loads variables from path without overriding ones already
// set. A missing file is not an error.
func LoadEnvFile(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Debug("env file not found", logger.Fields{"path": path})
			return nil
		}
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	logger.Debug("loaded env file", logger.Fields{"path": path})
	return nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("SPONTIS_LOG_LEVEL: %w", err)
	}
	if strings.TrimSpace(c.DefaultCity) == "" {
		return fmt.Errorf("SPONTIS_DEFAULT_CITY is required")
	}
	if c.RetentionHours < 0 {
		return fmt.Errorf("SCRAPER_RETENTION_HOURS must be >= 0")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("SPONTIS_DATA_DIR is required")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("SPONTIS_HTTP_TIMEOUT must be > 0")
	}
	if c.HTTPRetries < 0 {
		return fmt.Errorf("SPONTIS_HTTP_RETRIES must be >= 0")
	}
	if c.HTTPBackoff < 0 {
		return fmt.Errorf("SPONTIS_HTTP_BACKOFF must be >= 0")
	}
	if c.FetchConcurrency < 1 {
		return fmt.Errorf("SPONTIS_FETCH_CONCURRENCY must be >= 1")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("SPONTIS_TIMEZONE: %w", err)
	}
	return nil
}

// Location loads the configured time zone.
func (c *Config) Location() (*time.Location, error) {
	return event.LoadZone(c.Timezone)
}

// Level returns the parsed log level, falling back to INFO.
func (c *Config) Level() logger.Level {
	level, err := logger.ParseLevel(c.LogLevel)
	if err != nil {
		return logger.LevelInfo
	}
	return level
}
