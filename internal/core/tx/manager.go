// Package tx declares the transaction ports. Domain services depend on them;
// the memory and postgres stores implement them.
package tx

import (
	"context"
)

// Manager runs units of work atomically.
type Manager interface {
	// RunInTransaction commits every write made through the ctx passed to
	// fn when fn returns nil and discards them otherwise. A call made while
	// a transaction is already in ctx joins it.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ReadOnlyManager adds consistent multi-query reads.
type ReadOnlyManager interface {
	Manager

	// ReadOnly runs fn against a single snapshot. fn must not write.
	ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error
}
