// Package main is the entry point for the millstock outbox worker. It drains
// the transactional outbox the server writes domain events to.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"millstock/internal/app"
	"millstock/internal/config"
	"millstock/internal/infrastructure/storage/postgres"
	"millstock/pkg/logger"
)

const (
	pollInterval    = 500 * time.Millisecond
	cleanupInterval = time.Hour
	batchSize       = 100
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	logger.SetDefault(log)

	if cfg.Storage != config.StoragePostgres {
		log.Fatalw("the outbox worker needs postgres storage", "storage", cfg.Storage)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("starting millstock outbox worker")

	rt, err := app.Open(ctx, cfg)
	if err != nil {
		log.Fatalw("failed to open storage", "error", err)
	}
	defer rt.Close()

	worker := NewWorker(rt.Pool, log)
	if keys, ok := rt.Idempotency.(expiringKeys); ok {
		worker.keys = keys
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}

// expiringKeys is an idempotency store that needs sweeping.
type expiringKeys interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// Worker relays outbox messages and parks the ones that keep failing. On
// the hourly tick it also sweeps expired idempotency keys.
type Worker struct {
	pool  *postgres.Pool
	relay *postgres.OutboxRelay
	keys  expiringKeys
	log   *logger.Logger
}

func NewWorker(pool *postgres.Pool, log *logger.Logger) *Worker {
	w := &Worker{pool: pool, log: log.WithComponent("outbox")}
	w.relay = postgres.NewOutboxRelay(pool.Unwrap(), batchSize, postgres.OutboxHandlerFunc(w.deliver))
	return w
}

// Run polls until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	cleanupTicker := time.NewTicker(cleanupInterval)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := w.relay.ProcessBatch(ctx)
			if err != nil {
				w.log.Errorw("process outbox batch", "error", err)
				continue
			}
			if n > 0 {
				w.log.Debugw("processed outbox batch", "count", n)
			}
		case <-cleanupTicker.C:
			w.housekeeping(ctx)
		}
	}
}

func (w *Worker) housekeeping(ctx context.Context) {
	moved, err := w.relay.MoveToDLQ(ctx)
	if err != nil {
		w.log.Errorw("move failed messages", "error", err)
	} else if moved > 0 {
		w.log.Warnw("moved failed messages to the dead letter queue", "count", moved)
	}
	w.cleanupIdempotency(ctx)
	w.pool.LogStats(ctx)
}

func (w *Worker) cleanupIdempotency(ctx context.Context) {
	if w.keys == nil {
		return
	}
	n, err := w.keys.CleanupExpired(ctx)
	if err != nil {
		w.log.Errorw("cleanup idempotency keys", "error", err)
		return
	}
	if n > 0 {
		w.log.Infow("cleaned up idempotency keys", "count", n)
	}
}

// deliver publishes an event to the log stream. Subscribers tail the
// structured log until a broker is configured.
func (w *Worker) deliver(ctx context.Context, msg *postgres.OutboxMessage) error {
	evt, err := msg.Event()
	if err != nil {
		return err
	}
	w.log.WithContext(ctx).Infow("domain event",
		"event_id", evt.ID,
		"event_type", evt.EventType,
		"aggregate_type", evt.AggregateType,
		"aggregate_id", evt.AggregateID,
		"occurred_at", evt.OccurredAt,
		"payload", evt.Payload,
	)
	return nil
}
