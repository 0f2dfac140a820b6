package adjustment

import "millstock/internal/core/numerator"

const (
	// NumeratorStrategy defines the numbering strategy for adjustment orders.
	NumeratorStrategy = numerator.StrategyStrict

	EntityName = "adjustment_order"
)
