package ledger

import (
	"context"

	"millstock/internal/core/id"
	"millstock/internal/domain"
)

// Repository defines persistence of accounts and settlements.
type Repository interface {
	CreateAccount(ctx context.Context, a *Account) error

	GetAccount(ctx context.Context, accountID id.ID) (*Account, error)

	// UpdateAccount writes amounts and status if the stored version still
	// equals a.Version, then bumps a.Version; CONCURRENT_MODIFICATION otherwise.
	UpdateAccount(ctx context.Context, a *Account) error

	ListAccounts(ctx context.Context, filter AccountFilter) (domain.ListResult[*Account], error)

	CreateSettlements(ctx context.Context, settlements []Settlement) error
	ListSettlements(ctx context.Context, accountID id.ID) ([]Settlement, error)
}

// AccountFilter for account listings.
type AccountFilter struct {
	Kind           *Kind
	CounterpartyID *id.ID
	OrderID        *id.ID
	Status         *Status
	Limit          int
	Offset         int
}
