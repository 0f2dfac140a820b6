package app

import (
	"context"
	"fmt"

	"millstock/internal/config"
	corenum "millstock/internal/core/numerator"
	"millstock/internal/domain/posting"
	"millstock/internal/infrastructure/idempotency"
	"millstock/internal/infrastructure/lock"
	"millstock/internal/infrastructure/storage/memory"
	"millstock/internal/infrastructure/storage/postgres"
	"millstock/pkg/logger"
	"millstock/pkg/numerator"
)

// Runtime is an App together with the connections it was built on.
type Runtime struct {
	App *App

	// Pool is nil on the memory backend
	Pool *postgres.Pool
	// Locker is nil unless a Redis address is configured
	Locker *lock.RedisLocker

	// Idempotency lives next to the data: sys_idempotency or process memory
	Idempotency idempotency.Store

	closers []func()
}

// Open connects the configured backend, applies migrations and assembles
// the services.
func Open(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	rt := &Runtime{}

	strategy, err := corenum.ParseStrategy(cfg.Numerator.Strategy)
	if err != nil {
		return nil, err
	}

	var st Storage
	switch cfg.Storage {
	case config.StoragePostgres:
		var txm *postgres.TxManager
		txm, err = rt.openPostgres(ctx, cfg.Database)
		if err != nil {
			rt.Close()
			return nil, err
		}
		st, err = PostgresStorage(txm)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.Idempotency = postgres.NewIdempotencyStore(txm, cfg.HTTP.IdempotencyTTL)
	default:
		logger.Info(ctx, "using in-memory storage")
		st = MemoryStorage(memory.New())
		rt.Idempotency = idempotency.NewMemoryStore(cfg.HTTP.IdempotencyTTL)
	}

	opts := Options{
		Posting: posting.Config{
			MaxAttempts: cfg.Posting.MaxAttempts,
			Backoff:     cfg.Posting.Backoff,
		},
	}
	if cfg.Numerator.Strategy != "" {
		opts.Numbering = numerator.New(st.Sequencer).WithStrategy(strategy)
	}

	if cfg.Redis.Addr != "" {
		locker, err := lock.NewRedisLocker(ctx, cfg.Redis.Addr, lock.Config{TTL: cfg.Redis.LockTTL})
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		rt.Locker = locker
		rt.closers = append(rt.closers, func() { _ = locker.Close() })
		opts.Locker = locker
		logger.Info(ctx, "distributed locking enabled", "redis", cfg.Redis.Addr)
	}

	rt.App = New(st, opts)
	return rt, nil
}

func (rt *Runtime) openPostgres(ctx context.Context, cfg config.DatabaseConfig) (*postgres.TxManager, error) {
	poolCfg := postgres.DefaultPoolConfig(cfg.URL)
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	rt.Pool = pool
	rt.closers = append(rt.closers, pool.Close)

	if cfg.MigrationsPath != "" {
		m, err := postgres.NewMigrator(cfg.URL, cfg.MigrationsPath)
		if err != nil {
			return nil, err
		}
		err = m.Up(ctx)
		if cerr := m.Close(); cerr != nil {
			logger.Warn(ctx, "close migrator", "error", cerr)
		}
		if err != nil {
			return nil, err
		}
	}

	return postgres.NewTxManager(pool).WithStatementTimeout(cfg.StatementTimeout), nil
}

// Close releases connections in reverse order of opening.
func (rt *Runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}
