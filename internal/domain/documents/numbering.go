package documents

import (
	"context"
	"fmt"
	"time"

	"millstock/internal/core/numerator"
)

// NextNumber generates the number of a new order dated date.
func NextNumber(ctx context.Context, gen numerator.Generator, prefix string, strategy numerator.Strategy, date time.Time) (string, error) {
	cfg := numerator.DefaultConfig(prefix)
	number, err := gen.GetNextNumber(ctx, cfg, &numerator.Options{Strategy: strategy}, date)
	if err != nil {
		return "", fmt.Errorf("generate number: %w", err)
	}
	return number, nil
}

// Numbering assigns the number of a new order. Assign runs inside the
// creating transaction, so with the strict strategy the counter increment
// commits or rolls back with the order. Reset drops a generated number after
// a failed create; a supplied number is kept.
type Numbering struct {
	gen      numerator.Generator
	prefix   string
	strategy numerator.Strategy
	supplied bool
}

func NewNumbering(gen numerator.Generator, prefix string, strategy numerator.Strategy, current string) *Numbering {
	return &Numbering{gen: gen, prefix: prefix, strategy: strategy, supplied: current != ""}
}

// Assign sets *number unless the caller supplied one. Safe to call once per
// attempt of a retried unit.
func (n *Numbering) Assign(ctx context.Context, number *string, date time.Time) error {
	if n.supplied {
		return nil
	}
	next, err := NextNumber(ctx, n.gen, n.prefix, n.strategy, date)
	if err != nil {
		return err
	}
	*number = next
	return nil
}

// Reset clears a generated number.
func (n *Numbering) Reset(number *string) {
	if !n.supplied {
		*number = ""
	}
}
