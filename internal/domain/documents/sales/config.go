package sales

import "millstock/internal/core/numerator"

const (
	// NumeratorStrategy defines the numbering strategy for sales orders.
	NumeratorStrategy = numerator.StrategyStrict

	EntityName = "sales_order"
)
