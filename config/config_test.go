package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":3000", cfg.Addr)
	assert.Equal(t, "archive.db", cfg.DBPath)
	assert.Equal(t, "gemini-3-flash-preview", cfg.GeminiModel)
	assert.Equal(t, 60*time.Second, cfg.ExtractTimeout)
	assert.Equal(t, 4, cfg.MaxDocuments)
	assert.Equal(t, 1200, cfg.MaxImageWidth)
	assert.Equal(t, 40_000_000, cfg.MaxImagePixels)
	assert.Equal(t, 70, cfg.JPEGQuality)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.False(t, cfg.AIEnabled())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ARCHIVE_DB_PATH", "/tmp/akta.db")
	t.Setenv("ARCHIVE_PUBLIC_URL", "https://arsip.example.go.id/app")
	t.Setenv("GEMINI_API_KEY", "secret")
	t.Setenv("ARCHIVE_LOG_LEVEL", "debug")
	t.Setenv("ARCHIVE_LOG_FORMAT", "json")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/akta.db", cfg.DBPath)
	assert.Equal(t, "https://arsip.example.go.id/app", cfg.PublicURL)
	assert.True(t, cfg.AIEnabled())
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string][2]string{
		"relative public url": {"ARCHIVE_PUBLIC_URL", "/verify"},
		"zero documents":      {"ARCHIVE_MAX_DOCUMENTS", "0"},
		"quality too high":    {"ARCHIVE_JPEG_QUALITY", "101"},
		"zero image pixels":   {"ARCHIVE_MAX_IMAGE_PIXELS", "0"},
		"unknown log format":  {"ARCHIVE_LOG_FORMAT", "xml"},
		"unparsable timeout":  {"ARCHIVE_EXTRACT_TIMEOUT", "soon"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
