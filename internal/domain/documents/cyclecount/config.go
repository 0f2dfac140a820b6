package cyclecount

import "millstock/internal/core/numerator"

const (
	// NumeratorStrategy defines the numbering strategy for cycle counts.
	NumeratorStrategy = numerator.StrategyStrict

	EntityName = "cycle_count"
)
