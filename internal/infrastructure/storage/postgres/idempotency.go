package postgres

import (
	"context"
	"fmt"
	"time"

	"millstock/internal/core/apperror"
	"millstock/internal/infrastructure/idempotency"
)

// IdempotencyStatus represents the state of a keyed request.
type IdempotencyStatus string

const (
	IdempotencyStatusPending IdempotencyStatus = "pending"
	IdempotencyStatusSuccess IdempotencyStatus = "success"
)

// IdempotencyStore keeps keyed responses in sys_idempotency.
type IdempotencyStore struct {
	txManager *TxManager
	ttl       time.Duration
	stale     time.Duration
}

// NewIdempotencyStore creates a store whose keys expire after ttl.
func NewIdempotencyStore(txManager *TxManager, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{
		txManager: txManager,
		ttl:       ttl,
		stale:     idempotency.DefaultStaleAfter,
	}
}

var _ idempotency.Store = (*IdempotencyStore)(nil)

// Acquire implements idempotency.Store.
func (s *IdempotencyStore) Acquire(ctx context.Context, req idempotency.Request) (*idempotency.Replay, error) {
	q := s.txManager.GetQuerier(ctx)
	now := time.Now().UTC()

	if _, err := q.Exec(ctx, `
		DELETE FROM sys_idempotency WHERE idempotency_key = $1 AND expires_at < $2
	`, req.Key, now); err != nil {
		return nil, fmt.Errorf("drop expired idempotency key: %w", err)
	}

	var (
		stored      idempotency.Request
		status      IdempotencyStatus
		response    []byte
		statusCode  *int
		contentType *string
		updatedAt   time.Time
		inserted    bool
	)
	// the no-op update keeps updated_at so staleness stays measurable
	err := q.QueryRow(ctx, `
		INSERT INTO sys_idempotency (idempotency_key, operator, operation, request_hash, status, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6, $7)
		ON CONFLICT (idempotency_key) DO UPDATE SET expires_at = sys_idempotency.expires_at
		RETURNING operator, operation, request_hash, status, response, response_status,
		          response_content_type, updated_at, (xmax = 0) AS inserted
	`, req.Key, req.Operator, req.Operation, req.Hash, IdempotencyStatusPending, now, now.Add(s.ttl)).Scan(
		&stored.Operator, &stored.Operation, &stored.Hash, &status, &response, &statusCode,
		&contentType, &updatedAt, &inserted,
	)
	if err != nil {
		return nil, fmt.Errorf("acquire idempotency key: %w", err)
	}
	if inserted {
		return nil, nil
	}

	if !stored.Matches(req) {
		return nil, apperror.NewIdempotencyMismatch(req.Key).
			WithDetail("storedOperation", stored.Operation).
			WithDetail("requestOperation", req.Operation)
	}

	if status == IdempotencyStatusSuccess {
		replay := &idempotency.Replay{Body: response}
		if statusCode != nil {
			replay.StatusCode = *statusCode
		}
		if contentType != nil {
			replay.ContentType = *contentType
		}
		return replay.Normalize(), nil
	}

	if now.Sub(updatedAt) <= s.stale {
		return nil, apperror.NewIdempotencyConflict(req.Key)
	}

	// a crashed request left the key pending; the first retry takes it over
	tag, err := q.Exec(ctx, `
		UPDATE sys_idempotency SET updated_at = $1
		WHERE idempotency_key = $2 AND status = $3 AND updated_at = $4
	`, now, req.Key, IdempotencyStatusPending, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("reclaim stale idempotency key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, apperror.NewIdempotencyConflict(req.Key)
	}
	return nil, nil
}

// Complete implements idempotency.Store.
func (s *IdempotencyStore) Complete(ctx context.Context, key string, replay idempotency.Replay) error {
	_, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		UPDATE sys_idempotency
		SET status = $1,
		    response = $2,
		    response_status = $3,
		    response_content_type = $4,
		    updated_at = $5
		WHERE idempotency_key = $6
	`, IdempotencyStatusSuccess, replay.Body, replay.StatusCode, replay.ContentType, time.Now().UTC(), key)
	if err != nil {
		return fmt.Errorf("complete idempotency key: %w", err)
	}
	return nil
}

// Release implements idempotency.Store.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	_, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		DELETE FROM sys_idempotency WHERE idempotency_key = $1 AND status = $2
	`, key, IdempotencyStatusPending)
	if err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

// CleanupExpired removes expired keys.
func (s *IdempotencyStore) CleanupExpired(ctx context.Context) (int64, error) {
	result, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		DELETE FROM sys_idempotency WHERE expires_at < $1
	`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("cleanup idempotency keys: %w", err)
	}
	return result.RowsAffected(), nil
}
