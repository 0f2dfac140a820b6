package documents

import (
	"context"
	"time"

	"millstock/internal/core/id"
	"millstock/internal/domain"
)

// Order is what storage needs to know about any order family.
type Order interface {
	GetID() id.ID
	GetNumber() string
	GetVersion() int
	GetDate() time.Time
	StatusValue() string
	CounterpartyRef() id.ID
}

// Repository is the persistence contract shared by every order family.
// Update is version-checked: CONCURRENT_MODIFICATION when the stored version
// differs from the order's, otherwise the order's version is bumped.
type Repository[T Order] interface {
	Create(ctx context.Context, order T) error
	GetByID(ctx context.Context, orderID id.ID) (T, error)
	GetByNumber(ctx context.Context, number string) (T, error)
	Update(ctx context.Context, order T) error
	List(ctx context.Context, filter ListFilter) (domain.ListResult[T], error)
}

// ListFilter for order listings.
type ListFilter struct {
	domain.ListFilter

	Status         string
	CounterpartyID *id.ID
	DateFrom       *time.Time
	DateTo         *time.Time
}

// Matches applies the filter to one order (used by in-memory storage).
func (f ListFilter) Matches(o Order) bool {
	if f.Status != "" && o.StatusValue() != f.Status {
		return false
	}
	if f.CounterpartyID != nil && o.CounterpartyRef() != *f.CounterpartyID {
		return false
	}
	if f.DateFrom != nil && o.GetDate().Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil && o.GetDate().After(*f.DateTo) {
		return false
	}
	if len(f.IDs) > 0 {
		found := false
		for _, v := range f.IDs {
			if v == o.GetID() {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
