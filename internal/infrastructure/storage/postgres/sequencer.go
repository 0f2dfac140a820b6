package postgres

import (
	"context"
	"fmt"

	"millstock/pkg/numerator"
)

// Sequencer stores numerator counters in sys_sequences.
// Inside a transaction the increment joins it, so a rolled back create
// releases its number.
type Sequencer struct {
	txManager *TxManager
}

var _ numerator.Sequencer = (*Sequencer)(nil)

// NewSequencer creates a sequencer over txManager's pool.
func NewSequencer(txManager *TxManager) *Sequencer {
	return &Sequencer{txManager: txManager}
}

// Next adds step to the counter under key and returns the new value.
func (s *Sequencer) Next(ctx context.Context, key string, step int64) (int64, error) {
	if step <= 0 {
		return 0, fmt.Errorf("sequence step must be positive, got %d", step)
	}
	var value int64
	err := s.txManager.GetQuerier(ctx).QueryRow(ctx, `
		INSERT INTO sys_sequences (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = sys_sequences.value + EXCLUDED.value
		RETURNING value
	`, key, step).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("next %s: %w", key, err)
	}
	return value, nil
}

// Set overwrites the counter under key.
func (s *Sequencer) Set(ctx context.Context, key string, value int64) error {
	_, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		INSERT INTO sys_sequences (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}
