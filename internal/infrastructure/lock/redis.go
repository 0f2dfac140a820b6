// Package lock provides a Redis-backed posting.Locker so that several server
// instances serialize on the same batch, account and order keys.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"millstock/internal/core/lockkey"
	"millstock/internal/domain/posting"
	"millstock/pkg/logger"
)

const (
	defaultKeyPrefix = "millstock:lock:"
	defaultTTL       = 30 * time.Second
	defaultRetry     = 10 * time.Millisecond
)

// releaseScript deletes a key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Config tunes the locker.
type Config struct {
	// KeyPrefix namespaces lock keys in a shared Redis
	KeyPrefix string

	// TTL bounds how long a crashed holder can block a key
	TTL time.Duration

	// RetryInterval is the pause between attempts on a held key
	RetryInterval time.Duration
}

// RedisLocker implements posting.Locker with SET NX PX per key.
type RedisLocker struct {
	client *redis.Client
	cfg    Config
}

var _ posting.Locker = (*RedisLocker)(nil)

// NewRedisLocker connects to addr and checks the connection.
func NewRedisLocker(ctx context.Context, addr string, cfg Config) (*RedisLocker, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisLockerWithClient(client, cfg), nil
}

// NewRedisLockerWithClient wraps an existing client.
func NewRedisLockerWithClient(client *redis.Client, cfg Config) *RedisLocker {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = defaultKeyPrefix
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = defaultRetry
	}
	return &RedisLocker{client: client, cfg: cfg}
}

// Acquire takes every key in lockkey.Normalize order, waiting on held keys
// until ctx is done. On failure the keys taken so far are released.
func (l *RedisLocker) Acquire(ctx context.Context, keys []string) (func(), error) {
	keys = lockkey.Normalize(keys)
	token := uuid.NewString()

	held := make([]string, 0, len(keys))
	release := func() {
		// release must work after the caller's ctx is cancelled
		relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		for i := len(held) - 1; i >= 0; i-- {
			if err := releaseScript.Run(relCtx, l.client, []string{held[i]}, token).Err(); err != nil {
				logger.Warn(ctx, "release lock failed", "key", held[i], "error", err)
			}
		}
	}

	for _, k := range keys {
		rk := l.cfg.KeyPrefix + k
		if err := l.acquireOne(ctx, rk, token); err != nil {
			release()
			return nil, fmt.Errorf("acquire %s: %w", k, err)
		}
		held = append(held, rk)
	}

	return release, nil
}

func (l *RedisLocker) acquireOne(ctx context.Context, key, token string) error {
	ticker := time.NewTicker(l.cfg.RetryInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.cfg.TTL).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close closes the Redis client.
func (l *RedisLocker) Close() error {
	return l.client.Close()
}

// Health pings the Redis server.
func (l *RedisLocker) Health(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}
