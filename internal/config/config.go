// Package config loads runtime settings from the environment and the game
// catalogs (defaults, dialers, lead sources, upgrades, events) from YAML.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds runtime settings parsed from environment variables.
type Config struct {
	// Simulation
	Seed         int64         `env:"DIALSIM_SEED" envDefault:"42"`
	MinuteEvery  time.Duration `env:"MINUTE_INTERVAL" envDefault:"1s"` // wall time per simulated minute at speed 1
	Speed        float64       `env:"SPEED" envDefault:"1"`
	CatalogDir   string        `env:"CATALOG_DIR"` // empty means embedded catalogs
	SaveKey      string        `env:"SAVE_KEY" envDefault:"dialfloor_save"`
	FreshOnStart bool          `env:"FRESH_START" envDefault:"false"`

	// Server
	HTTPPort    int      `env:"HTTP_PORT" envDefault:"8080"`
	MetricsPort int      `env:"METRICS_PORT" envDefault:"9090"`
	AdminKey    string   `env:"DIALSIM_ADMIN_KEY"`
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:","`
	LogLevel    string   `env:"LOG_LEVEL" envDefault:"info"`

	// simulate-day calls allowed per minute per client
	SimulateDayRate int `env:"SIMULATE_DAY_RATE" envDefault:"6"`

	// Storage
	StoreBackend      string `env:"STORE_BACKEND" envDefault:"sqlite"` // sqlite, redis or memory
	DBPath            string `env:"DB_PATH" envDefault:"data/dialfloor.db"`
	RedisHost         string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort         string `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword     string `env:"REDIS_PASSWORD"`
	RedisDB           int    `env:"REDIS_DB" envDefault:"0"`
	RedisMaxRetries   int    `env:"REDIS_MAX_RETRIES" envDefault:"5"`
	RedisRetryDelayMs int    `env:"REDIS_RETRY_DELAY_MS" envDefault:"500"`
}

// Load reads a .env file if present, then parses the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	} else {
		slog.Info("loaded environment from .env")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config from environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP_PORT: %d (must be 1-65535)", c.HTTPPort)
	}
	if c.MetricsPort < 0 || c.MetricsPort > 65535 {
		return fmt.Errorf("invalid METRICS_PORT: %d (0 disables, else 1-65535)", c.MetricsPort)
	}
	if c.Speed <= 0 {
		return fmt.Errorf("invalid SPEED: %v (must be > 0)", c.Speed)
	}
	if c.MinuteEvery <= 0 {
		return fmt.Errorf("invalid MINUTE_INTERVAL: %v", c.MinuteEvery)
	}
	if c.SaveKey == "" {
		return fmt.Errorf("SAVE_KEY must not be empty")
	}
	if c.SimulateDayRate < 1 {
		return fmt.Errorf("invalid SIMULATE_DAY_RATE: %d", c.SimulateDayRate)
	}
	switch c.StoreBackend {
	case "sqlite":
		if c.DBPath == "" {
			return fmt.Errorf("DB_PATH is required for the sqlite store")
		}
	case "redis":
		if c.RedisHost == "" {
			return fmt.Errorf("REDIS_HOST is required for the redis store")
		}
	case "memory":
	default:
		return fmt.Errorf("invalid STORE_BACKEND: %q (sqlite, redis or memory)", c.StoreBackend)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// SlogLevel maps LOG_LEVEL onto a slog level.
func (c *Config) SlogLevel() slog.Level {
	l, _ := parseLevel(c.LogLevel)
	return l
}

// RedisAddr is host:port.
func (c *Config) RedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL: %q", s)
}
