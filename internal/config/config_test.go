package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, StorageMemory, cfg.Storage)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, 3, cfg.Posting.MaxAttempts)
	assert.Equal(t, 20*time.Millisecond, cfg.Posting.Backoff)
	assert.Equal(t, "migrations", cfg.Database.MigrationsPath)
	assert.Equal(t, 1.0, cfg.Telemetry.Sampling)
	assert.Equal(t, 24*time.Hour, cfg.HTTP.IdempotencyTTL)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("STORAGE", "postgres")
	t.Setenv("DATABASE_URL", "postgres://millstock@localhost/millstock")
	t.Setenv("DB_MAX_CONNS", "5")
	t.Setenv("POSTING_MAX_ATTEMPTS", "7")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("LOG_DEVELOPMENT", "true")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, StoragePostgres, cfg.Storage)
	assert.Equal(t, int32(5), cfg.Database.MaxConns)
	assert.Equal(t, 7, cfg.Posting.MaxAttempts)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.True(t, cfg.Log.Development)
}

func TestLoad_DotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("NUMERATOR_STRATEGY=cached\nLOG_LEVEL=debug\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("NUMERATOR_STRATEGY")
		os.Unsetenv("LOG_LEVEL")
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "cached", cfg.Numerator.Strategy)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			HTTP:    HTTPConfig{Port: 8080},
			Storage: StorageMemory,
			Posting: PostingConfig{MaxAttempts: 3},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{name: "valid", mutate: func(*Config) {}, ok: true},
		{name: "postgres without url", mutate: func(c *Config) { c.Storage = StoragePostgres }},
		{name: "unknown storage", mutate: func(c *Config) { c.Storage = "sqlite" }},
		{name: "bad port", mutate: func(c *Config) { c.HTTP.Port = 0 }},
		{name: "no attempts", mutate: func(c *Config) { c.Posting.MaxAttempts = 0 }},
		{name: "sampling out of range", mutate: func(c *Config) { c.Telemetry.Sampling = 1.5 }},
		{name: "unknown numerator", mutate: func(c *Config) { c.Numerator.Strategy = "random" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
