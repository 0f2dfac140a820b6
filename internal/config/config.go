// Package config loads server settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage backends.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Config is the full server configuration.
type Config struct {
	HTTP      HTTPConfig      `mapstructure:"http"`
	Storage   string          `mapstructure:"storage"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Log       LogConfig       `mapstructure:"log"`
	Telemetry TelemetryConfig `mapstructure:"otel"`
	Posting   PostingConfig   `mapstructure:"posting"`
	Numerator NumeratorConfig `mapstructure:"numerator"`
}

type HTTPConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// IdempotencyTTL keeps replayable responses of keyed requests
	IdempotencyTTL time.Duration `mapstructure:"idempotency_ttl"`
}

type DatabaseConfig struct {
	URL              string        `mapstructure:"url"`
	MaxConns         int32         `mapstructure:"max_conns"`
	MigrationsPath   string        `mapstructure:"migrations_path"`
	StatementTimeout time.Duration `mapstructure:"statement_timeout"`
}

type RedisConfig struct {
	// Addr enables the distributed locker when set
	Addr    string        `mapstructure:"addr"`
	LockTTL time.Duration `mapstructure:"lock_ttl"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

type TelemetryConfig struct {
	// Endpoint of the OTLP gRPC collector; tracing is off when empty
	Endpoint string  `mapstructure:"endpoint"`
	Sampling float64 `mapstructure:"sampling"`
	Insecure bool    `mapstructure:"insecure"`
}

type PostingConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	Backoff     time.Duration `mapstructure:"backoff"`
}

type NumeratorConfig struct {
	// Strategy is "strict" or "cached"; empty keeps the per-family default
	Strategy string `mapstructure:"strategy"`
}

// env maps config keys to their variables.
var env = map[string]string{
	"http.port":                  "HTTP_PORT",
	"http.read_timeout":          "HTTP_READ_TIMEOUT",
	"http.write_timeout":         "HTTP_WRITE_TIMEOUT",
	"http.shutdown_timeout":      "HTTP_SHUTDOWN_TIMEOUT",
	"http.idempotency_ttl":       "HTTP_IDEMPOTENCY_TTL",
	"storage":                    "STORAGE",
	"database.url":               "DATABASE_URL",
	"database.max_conns":         "DB_MAX_CONNS",
	"database.migrations_path":   "MIGRATIONS_PATH",
	"database.statement_timeout": "DB_STATEMENT_TIMEOUT",
	"redis.addr":                 "REDIS_ADDR",
	"redis.lock_ttl":             "REDIS_LOCK_TTL",
	"log.level":                  "LOG_LEVEL",
	"log.development":            "LOG_DEVELOPMENT",
	"otel.endpoint":              "OTEL_ENDPOINT",
	"otel.sampling":              "OTEL_SAMPLING",
	"otel.insecure":              "OTEL_INSECURE",
	"posting.max_attempts":       "POSTING_MAX_ATTEMPTS",
	"posting.backoff":            "POSTING_BACKOFF",
	"numerator.strategy":         "NUMERATOR_STRATEGY",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 30*time.Second)
	v.SetDefault("http.shutdown_timeout", 30*time.Second)
	v.SetDefault("http.idempotency_ttl", 24*time.Hour)
	v.SetDefault("storage", StorageMemory)
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.migrations_path", "migrations")
	v.SetDefault("database.statement_timeout", 30*time.Second)
	v.SetDefault("redis.lock_ttl", 30*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("otel.sampling", 1.0)
	v.SetDefault("otel.insecure", true)
	v.SetDefault("posting.max_attempts", 3)
	v.SetDefault("posting.backoff", 20*time.Millisecond)
}

// Load reads .env files (missing ones are ignored), then the environment.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// Load never overrides variables already set
		_ = godotenv.Load(f)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for key, name := range env {
		if err := v.BindEnv(key, name); err != nil {
			return nil, fmt.Errorf("bind %s: %w", name, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks combinations the server cannot start with.
func (c *Config) Validate() error {
	switch c.Storage {
	case StorageMemory:
	case StoragePostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for storage %q", c.Storage)
		}
	default:
		return fmt.Errorf("unknown storage %q", c.Storage)
	}

	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid HTTP_PORT %d", c.HTTP.Port)
	}
	if c.Posting.MaxAttempts < 1 {
		return fmt.Errorf("POSTING_MAX_ATTEMPTS must be at least 1")
	}
	if c.Telemetry.Sampling < 0 || c.Telemetry.Sampling > 1 {
		return fmt.Errorf("OTEL_SAMPLING must be within [0, 1]")
	}
	switch c.Numerator.Strategy {
	case "", "strict", "cached":
	default:
		return fmt.Errorf("unknown NUMERATOR_STRATEGY %q", c.Numerator.Strategy)
	}
	return nil
}

// Addr is the listen address of the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTP.Port)
}
