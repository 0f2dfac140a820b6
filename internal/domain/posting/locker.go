package posting

import (
	"context"
	"sync"

	"millstock/internal/core/lockkey"
)

// Locker grants exclusive use of a set of keys.
// Implementations acquire keys in lockkey.Normalize order.
type Locker interface {
	Acquire(ctx context.Context, keys []string) (release func(), err error)
}

// KeyedLocker is an in-process Locker with one mutex per key.
// Entries are reference counted and dropped when nobody holds or waits.
type KeyedLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

// NewKeyedLocker creates an empty locker.
func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{locks: make(map[string]*keyLock)}
}

// Acquire blocks until every key is held or ctx is done.
func (l *KeyedLocker) Acquire(ctx context.Context, keys []string) (func(), error) {
	keys = lockkey.Normalize(keys)
	held := make([]string, 0, len(keys))
	for _, k := range keys {
		if err := l.lock(ctx, k); err != nil {
			l.unlockAll(held)
			return nil, err
		}
		held = append(held, k)
	}

	var once sync.Once
	return func() { once.Do(func() { l.unlockAll(held) }) }, nil
}

func (l *KeyedLocker) lock(ctx context.Context, key string) error {
	l.mu.Lock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{ch: make(chan struct{}, 1)}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	select {
	case kl.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		l.mu.Lock()
		l.drop(key, kl)
		l.mu.Unlock()
		return ctx.Err()
	}
}

func (l *KeyedLocker) unlockAll(keys []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(keys) - 1; i >= 0; i-- {
		kl := l.locks[keys[i]]
		<-kl.ch
		l.drop(keys[i], kl)
	}
}

// drop must be called with l.mu held.
func (l *KeyedLocker) drop(key string, kl *keyLock) {
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
}

// size reports live entries (tests).
func (l *KeyedLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
