package numerator

import (
	"context"
	"time"
)

// Generator generates sequential order numbers.
// Implementations live in pkg/numerator.
type Generator interface {
	// GetNextNumber returns the next number, e.g. XS-2026-00001.
	GetNextNumber(ctx context.Context, cfg Config, opts *Options, period time.Time) (string, error)

	// SetNextNumber moves the sequence (data migration).
	SetNextNumber(ctx context.Context, cfg Config, period time.Time, value int64) error
}
