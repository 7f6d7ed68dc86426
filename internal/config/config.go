// Package config loads the server configuration from a YAML file with
// environment overrides.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full server configuration.
type Config struct {
	Listen string `yaml:"listen"`
	DBPath string `yaml:"db_path"`

	LogLevel  string `yaml:"log_level"`  // debug|info|warn|error
	LogFormat string `yaml:"log_format"` // json|text

	Cache CacheConfig `yaml:"cache"`
	Batch BatchConfig `yaml:"batch"`
}

// CacheConfig holds the TTL windows of the stale-while-revalidate tier.
type CacheConfig struct {
	DraftFresh     time.Duration `yaml:"draft_fresh"`
	PublishedFresh time.Duration `yaml:"published_fresh"`
	ListFresh      time.Duration `yaml:"list_fresh"`
	HardFactor     int           `yaml:"hard_factor"`
}

// BatchConfig bounds the batch mutation endpoint.
type BatchConfig struct {
	MaxItems int `yaml:"max_items"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Listen:    ":8080",
		DBPath:    "tamuu.db",
		LogLevel:  "info",
		LogFormat: "text",
		Cache: CacheConfig{
			DraftFresh:     time.Minute,
			PublishedFresh: 24 * time.Hour,
			ListFresh:      5 * time.Minute,
			HardFactor:     4,
		},
		Batch: BatchConfig{
			MaxItems: 50,
		},
	}
}

// Load reads the configuration. A .env file, when present, is loaded
// first; then the YAML file at path (skipped when path is empty or the
// file is absent); then environment variables override individual fields.
func Load(path string) (Config, error) {
	// Missing .env is not an error.
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Defaults stand.
		case err != nil:
			return Config{}, fmt.Errorf("read config: %w", err)
		default:
			decoder := yaml.NewDecoder(bytes.NewReader(data))
			decoder.KnownFields(true)
			if err := decoder.Decode(&cfg); err != nil {
				return Config{}, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overrides fields from TAMUU_* environment variables.
func applyEnv(cfg *Config) {
	if v := os.Getenv("TAMUU_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("TAMUU_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("TAMUU_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("TAMUU_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("TAMUU_BATCH_MAX_ITEMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Batch.MaxItems = n
		}
	}
}

// Validate rejects configurations the server cannot run with.
func (c Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address is required")
	}
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log_format %q", c.LogFormat)
	}
	if c.Cache.DraftFresh <= 0 || c.Cache.PublishedFresh <= 0 || c.Cache.ListFresh <= 0 {
		return fmt.Errorf("cache fresh windows must be positive")
	}
	if c.Cache.HardFactor < 2 {
		return fmt.Errorf("cache hard_factor must be at least 2")
	}
	if c.Batch.MaxItems < 1 {
		return fmt.Errorf("batch max_items must be at least 1")
	}
	return nil
}
