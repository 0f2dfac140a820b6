// Package postgres is the PostgreSQL storage of the engine: the connection
// pool, the transaction manager and the outbox, audit and sequence tables.
// Repositories live in the *_repo subpackages.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"millstock/pkg/logger"
)

const applicationName = "millstock"

type PoolConfig struct {
	DSN               string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

// DefaultPoolConfig sizes the pool for one API instance. Posting holds a
// connection for the whole retry unit, so MinConns stays warm.
func DefaultPoolConfig(dsn string) PoolConfig {
	return PoolConfig{
		DSN:               dsn,
		MaxConns:          25,
		MinConns:          5,
		MaxConnLifetime:   time.Hour,
		MaxConnIdleTime:   30 * time.Minute,
		HealthCheckPeriod: time.Minute,
	}
}

// Pool is the shared pgx pool. It doubles as the database readiness check.
type Pool struct {
	*pgxpool.Pool
}

func (p *Pool) Close() {
	if p != nil && p.Pool != nil {
		p.Pool.Close()
	}
}

// Unwrap exposes the pgx pool to the outbox relay.
func (p *Pool) Unwrap() *pgxpool.Pool {
	return p.Pool
}

func (p *Pool) Health(ctx context.Context) error {
	if p == nil || p.Pool == nil {
		return errors.New("database pool is not open")
	}
	return p.Ping(ctx)
}

func NewPool(ctx context.Context, cfg PoolConfig) (*Pool, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	pc.MaxConns = cfg.MaxConns
	pc.MinConns = min(cfg.MinConns, cfg.MaxConns)
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	pc.HealthCheckPeriod = cfg.HealthCheckPeriod
	pc.ConnConfig.RuntimeParams["application_name"] = applicationName
	pc.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		// order dates and journal timestamps are compared in UTC
		_, err := conn.Exec(ctx, "SET TIME ZONE 'UTC'")
		return err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Info(ctx, "database pool open", "max_conns", pc.MaxConns, "min_conns", pc.MinConns)
	return &Pool{Pool: pool}, nil
}

// LogStats writes a snapshot of pool usage. The worker calls it on its
// housekeeping tick.
func (p *Pool) LogStats(ctx context.Context) {
	if p == nil || p.Pool == nil {
		return
	}
	s := p.Stat()
	logger.Info(ctx, "database pool stats",
		"total", s.TotalConns(),
		"acquired", s.AcquiredConns(),
		"idle", s.IdleConns(),
		"max", s.MaxConns(),
		"acquire_count", s.AcquireCount(),
		"acquire_duration", s.AcquireDuration(),
		"empty_acquire_count", s.EmptyAcquireCount(),
	)
}
