package dyeing

import "millstock/internal/core/numerator"

const (
	// NumeratorStrategy defines the numbering strategy for dyeing orders.
	NumeratorStrategy = numerator.StrategyStrict

	EntityName = "dyeing_order"
)
