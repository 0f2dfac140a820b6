// Package context carries request-scoped values: the caller identity and
// tracing ids.
package context

import (
	"context"
)

// Operator is the opaque caller identity attached to every mutation.
// Authentication happens outside the engine; the values are recorded as given.
type Operator struct {
	ID   string
	Name string
}

// String returns the name when present, otherwise the id.
func (o Operator) String() string {
	if o.Name != "" {
		return o.Name
	}
	return o.ID
}

type operatorKey struct{}

// WithOperator adds the caller identity to context.
func WithOperator(ctx context.Context, op Operator) context.Context {
	return context.WithValue(ctx, operatorKey{}, op)
}

// GetOperator returns the caller identity, or false when none was attached.
func GetOperator(ctx context.Context) (Operator, bool) {
	op, ok := ctx.Value(operatorKey{}).(Operator)
	return op, ok
}

// OperatorName returns the display name of the caller or "system".
func OperatorName(ctx context.Context) string {
	if op, ok := GetOperator(ctx); ok && op.String() != "" {
		return op.String()
	}
	return "system"
}
