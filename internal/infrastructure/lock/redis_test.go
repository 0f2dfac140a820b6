package lock

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func newTestLocker(t *testing.T) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLockerWithClient(client, Config{RetryInterval: time.Millisecond}), mr
}

func TestRedisLocker_AcquireRelease(t *testing.T) {
	l, mr := newTestLocker(t)
	ctx := context.Background()

	release, err := l.Acquire(ctx, []string{"batch:b", "account:a", "batch:b", ""})
	require.NoError(t, err)

	assert.True(t, mr.Exists(defaultKeyPrefix+"account:a"))
	assert.True(t, mr.Exists(defaultKeyPrefix+"batch:b"))
	assert.Len(t, mr.Keys(), 2)

	release()
	assert.Empty(t, mr.Keys())
}

func TestRedisLocker_WaitsForHolder(t *testing.T) {
	l, _ := newTestLocker(t)
	ctx := context.Background()

	release, err := l.Acquire(ctx, []string{"batch:b"})
	require.NoError(t, err)

	shortCtx, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(shortCtx, []string{"account:a", "batch:b"})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	release()

	// the failed attempt left nothing behind
	release2, err := l.Acquire(ctx, []string{"account:a", "batch:b"})
	require.NoError(t, err)
	release2()
}

func TestRedisLocker_ReleaseKeepsForeignToken(t *testing.T) {
	l, mr := newTestLocker(t)
	ctx := context.Background()

	release, err := l.Acquire(ctx, []string{"order:o"})
	require.NoError(t, err)

	// the TTL ran out and another instance took the key
	require.NoError(t, mr.Set(defaultKeyPrefix+"order:o", "someone-else"))

	release()
	got, err := mr.Get(defaultKeyPrefix + "order:o")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestRedisLocker_MutualExclusion(t *testing.T) {
	l, _ := newTestLocker(t)
	ctx := context.Background()

	var inside, maxInside int32
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			release, err := l.Acquire(gctx, []string{"batch:shared"})
			if err != nil {
				return err
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int32(1), maxInside)
}
