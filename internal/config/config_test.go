package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spontis-app/spontis/internal/logger"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Environment != "production" {
		t.Errorf("Environment = %q, want production", cfg.Environment)
	}
	if cfg.RetentionHours != 6 {
		t.Errorf("RetentionHours = %d, want 6", cfg.RetentionHours)
	}
	if cfg.HTTPTimeout != 25*time.Second {
		t.Errorf("HTTPTimeout = %v, want 25s", cfg.HTTPTimeout)
	}
	if cfg.HTTPBackoff != 600*time.Millisecond {
		t.Errorf("HTTPBackoff = %v, want 600ms", cfg.HTTPBackoff)
	}
	if cfg.FetchConcurrency != 4 {
		t.Errorf("FetchConcurrency = %d, want 4", cfg.FetchConcurrency)
	}
	if !strings.HasPrefix(cfg.HTTPUserAgent, "SpontisBot/") {
		t.Errorf("HTTPUserAgent = %q", cfg.HTTPUserAgent)
	}
	loc, err := cfg.Location()
	if err != nil || loc.String() != "Europe/Oslo" {
		t.Errorf("Location() = %v, %v; want Europe/Oslo", loc, err)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SCRAPER_RETENTION_HOURS", "12")
	t.Setenv("SPONTIS_DEFAULT_CITY", "Oslo")
	t.Setenv("SPONTIS_HTTP_TIMEOUT", "5s")
	t.Setenv("SPONTIS_LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.RetentionHours != 12 || cfg.DefaultCity != "Oslo" || cfg.HTTPTimeout != 5*time.Second {
		t.Errorf("Load() = %+v", cfg)
	}
	if cfg.Level() != logger.LevelDebug {
		t.Errorf("Level() = %v, want DEBUG", cfg.Level())
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"negative retention", "SCRAPER_RETENTION_HOURS", "-1"},
		{"zero concurrency", "SPONTIS_FETCH_CONCURRENCY", "0"},
		{"bad zone", "SPONTIS_TIMEZONE", "Mars/Olympus"},
		{"bad level", "SPONTIS_LOG_LEVEL", "loud"},
		{"not a number", "SPONTIS_HTTP_RETRIES", "three"},
		{"blank city", "SPONTIS_DEFAULT_CITY", " "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			if _, err := Load(); err == nil {
				t.Errorf("Load() with %s=%q expected error", tt.key, tt.val)
			}
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("SPONTIS_DEFAULT_CITY=Stavanger\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SPONTIS_DEFAULT_CITY", "")
	os.Unsetenv("SPONTIS_DEFAULT_CITY") // nolint:errcheck

	if err := LoadEnvFile(path); err != nil {
		t.Fatalf("LoadEnvFile() error = %v", err)
	}
	if got := os.Getenv("SPONTIS_DEFAULT_CITY"); got != "Stavanger" {
		t.Errorf("SPONTIS_DEFAULT_CITY = %q, want Stavanger", got)
	}

	if err := LoadEnvFile(filepath.Join(dir, "missing.env")); err != nil {
		t.Errorf("LoadEnvFile(missing) error = %v, want nil", err)
	}
	if err := LoadEnvFile(""); err != nil {
		t.Errorf("LoadEnvFile(\"\") error = %v, want nil", err)
	}
}
