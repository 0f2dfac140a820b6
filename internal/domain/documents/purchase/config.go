package purchase

import "millstock/internal/core/numerator"

const (
	// NumeratorStrategy defines the numbering strategy for purchase orders.
	// They are primary accounting documents, so numbers stay gap-free.
	NumeratorStrategy = numerator.StrategyStrict

	// EntityName labels errors, audit records and accounts.
	EntityName = "purchase_order"
)
