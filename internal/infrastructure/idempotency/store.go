// Package idempotency remembers the responses of requests sent with an
// idempotency key so a retried request replays instead of running twice.
package idempotency

import (
	"context"
	"sync"
	"time"

	"millstock/internal/core/apperror"
)

// DefaultStaleAfter is how long a pending key may stay unfinished before a
// retry is allowed to reclaim it.
const DefaultStaleAfter = time.Minute

// Request identifies one keyed request.
type Request struct {
	Key       string
	Operator  string
	Operation string // method and path
	Hash      string // SHA-256 of the body
}

// Replay is a stored response.
type Replay struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Store tracks keys through pending and completed.
type Store interface {
	// Acquire claims req.Key. It returns a Replay when the key already
	// completed, IDEMPOTENCY_CONFLICT while another request holds it and
	// IDEMPOTENCY_KEY_REUSED when the key belongs to a different request.
	Acquire(ctx context.Context, req Request) (*Replay, error)

	// Complete stores the response of a claimed key.
	Complete(ctx context.Context, key string, replay Replay) error

	// Release forgets a claimed key so the request can be sent again.
	Release(ctx context.Context, key string) error
}

// Matches reports whether a stored claim was made by the same request.
func (r Request) Matches(other Request) bool {
	return r.Operator == other.Operator && r.Operation == other.Operation && r.Hash == other.Hash
}

// Normalize fills defaults of replays stored without them.
func (r *Replay) Normalize() *Replay {
	if r.StatusCode == 0 {
		r.StatusCode = 200
	}
	if r.ContentType == "" {
		r.ContentType = "application/json; charset=utf-8"
	}
	return r
}

type memoryEntry struct {
	req       Request
	replay    *Replay
	updatedAt time.Time
	expiresAt time.Time
}

// MemoryStore keeps keys in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	stale   time.Duration
	now     func() time.Time
	entries map[string]*memoryEntry
}

// NewMemoryStore creates a store whose keys expire after ttl.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		stale:   DefaultStaleAfter,
		now:     time.Now,
		entries: make(map[string]*memoryEntry),
	}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) Acquire(_ context.Context, req Request) (*Replay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, ok := s.entries[req.Key]
	if ok && now.After(e.expiresAt) {
		delete(s.entries, req.Key)
		ok = false
	}
	if !ok {
		s.entries[req.Key] = &memoryEntry{req: req, updatedAt: now, expiresAt: now.Add(s.ttl)}
		return nil, nil
	}

	if !e.req.Matches(req) {
		return nil, apperror.NewIdempotencyMismatch(req.Key)
	}
	if e.replay != nil {
		r := *e.replay
		return &r, nil
	}
	if now.Sub(e.updatedAt) > s.stale {
		e.updatedAt = now
		return nil, nil
	}
	return nil, apperror.NewIdempotencyConflict(req.Key)
}

func (s *MemoryStore) Complete(_ context.Context, key string, replay Replay) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok {
		e.replay = &replay
		e.updatedAt = s.now()
	}
	return nil
}

func (s *MemoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok && e.replay == nil {
		delete(s.entries, key)
	}
	return nil
}

// CleanupExpired drops expired keys and returns how many went.
func (s *MemoryStore) CleanupExpired(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var n int64
	for k, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, k)
			n++
		}
	}
	return n, nil
}
