package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaultsWhenFileAbsent(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, time.Minute, cfg.Cache.DraftFresh)
	assert.Equal(t, 24*time.Hour, cfg.Cache.PublishedFresh)
	assert.Equal(t, 50, cfg.Batch.MaxItems)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
listen: ":9999"
db_path: "/tmp/test.db"
log_level: debug
log_format: json
cache:
  draft_fresh: 30s
  published_fresh: 12h
  list_fresh: 2m
  hard_factor: 3
batch:
  max_items: 10
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Listen)
	assert.Equal(t, 30*time.Second, cfg.Cache.DraftFresh)
	assert.Equal(t, 12*time.Hour, cfg.Cache.PublishedFresh)
	assert.Equal(t, 3, cfg.Cache.HardFactor)
	assert.Equal(t, 10, cfg.Batch.MaxItems)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, "listne: \":9999\"\n")
	_, err := Load(path)
	require.Error(t, err, "typos must not be silently accepted")
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "listen: \":9999\"\n")
	t.Setenv("TAMUU_LISTEN", ":7777")
	t.Setenv("TAMUU_BATCH_MAX_ITEMS", "5")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7777", cfg.Listen)
	assert.Equal(t, 5, cfg.Batch.MaxItems)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty listen", func(c *Config) { c.Listen = "" }},
		{"empty db path", func(c *Config) { c.DBPath = "" }},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }},
		{"zero fresh window", func(c *Config) { c.Cache.DraftFresh = 0 }},
		{"hard factor too small", func(c *Config) { c.Cache.HardFactor = 1 }},
		{"zero batch limit", func(c *Config) { c.Batch.MaxItems = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
