// Package config loads the archive's runtime configuration from the
// environment once at startup. Components receive the values they need
// explicitly; nothing reads the environment after Load returns.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every tunable of the archive service.
type Config struct {
	Addr    string `env:"ARCHIVE_ADDR" envDefault:":3000"`
	DBPath  string `env:"ARCHIVE_DB_PATH" envDefault:"archive.db"`
	DataDir string `env:"ARCHIVE_DATA_DIR" envDefault:"data"`

	// PublicURL is the base of verification links printed on QR codes.
	PublicURL string `env:"ARCHIVE_PUBLIC_URL" envDefault:"http://localhost:3000/"`

	GeminiAPIKey   string        `env:"GEMINI_API_KEY"`
	GeminiModel    string        `env:"GEMINI_MODEL" envDefault:"gemini-3-flash-preview"`
	GeminiEndpoint string        `env:"GEMINI_ENDPOINT" envDefault:"https://generativelanguage.googleapis.com/v1beta"`
	ExtractTimeout time.Duration `env:"ARCHIVE_EXTRACT_TIMEOUT" envDefault:"60s"`

	MaxDocuments   int   `env:"ARCHIVE_MAX_DOCUMENTS" envDefault:"4"`
	MaxImageWidth  int   `env:"ARCHIVE_MAX_IMAGE_WIDTH" envDefault:"1200"`
	MaxImagePixels int   `env:"ARCHIVE_MAX_IMAGE_PIXELS" envDefault:"40000000"`
	JPEGQuality    int   `env:"ARCHIVE_JPEG_QUALITY" envDefault:"70"`
	MaxUploadSize  int64 `env:"ARCHIVE_MAX_UPLOAD_BYTES" envDefault:"52428800"`

	LogLevel  slog.Level `env:"ARCHIVE_LOG_LEVEL" envDefault:"info"`
	LogFormat string     `env:"ARCHIVE_LOG_FORMAT" envDefault:"text"`
}

// Load parses the environment into a Config and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the service cannot run with.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("ARCHIVE_ADDR: must not be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("ARCHIVE_DB_PATH: must not be empty")
	}
	if c.DataDir == "" {
		return fmt.Errorf("ARCHIVE_DATA_DIR: must not be empty")
	}
	u, err := url.Parse(c.PublicURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("ARCHIVE_PUBLIC_URL: %q is not an absolute URL", c.PublicURL)
	}
	if c.MaxDocuments < 1 {
		return fmt.Errorf("ARCHIVE_MAX_DOCUMENTS: must be at least 1, got %d", c.MaxDocuments)
	}
	if c.MaxImageWidth < 1 {
		return fmt.Errorf("ARCHIVE_MAX_IMAGE_WIDTH: must be positive, got %d", c.MaxImageWidth)
	}
	if c.MaxImagePixels < 1 {
		return fmt.Errorf("ARCHIVE_MAX_IMAGE_PIXELS: must be positive, got %d", c.MaxImagePixels)
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("ARCHIVE_JPEG_QUALITY: %d outside 1-100", c.JPEGQuality)
	}
	if c.MaxUploadSize < 1 {
		return fmt.Errorf("ARCHIVE_MAX_UPLOAD_BYTES: must be positive, got %d", c.MaxUploadSize)
	}
	if c.ExtractTimeout <= 0 {
		return fmt.Errorf("ARCHIVE_EXTRACT_TIMEOUT: must be positive, got %s", c.ExtractTimeout)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("ARCHIVE_LOG_FORMAT: %q, want text or json", c.LogFormat)
	}
	return nil
}

// AIEnabled reports whether field extraction can reach the AI service.
func (c *Config) AIEnabled() bool {
	return c.GeminiAPIKey != ""
}
