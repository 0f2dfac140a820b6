package memory

import (
	"context"
	"sort"
	"strings"

	"millstock/internal/core/apperror"
	"millstock/internal/core/id"
	"millstock/internal/domain"
	"millstock/internal/domain/documents"
	"millstock/internal/domain/documents/adjustment"
	"millstock/internal/domain/documents/cyclecount"
	"millstock/internal/domain/documents/dyeing"
	"millstock/internal/domain/documents/purchase"
	"millstock/internal/domain/documents/sales"
)

type orderRow interface {
	row
	documents.Order
}

// OrderRepo implements documents.Repository for one order family.
type OrderRepo[T orderRow] struct {
	s *Store
	t *table[T]
}

func (r *OrderRepo[T]) Create(ctx context.Context, o T) error {
	return insert(ctx, r.s, r.t, o)
}

func (r *OrderRepo[T]) GetByID(ctx context.Context, orderID id.ID) (T, error) {
	o, ok := get(ctx, r.s, r.t, orderID)
	if !ok {
		return o, apperror.NewNotFound(r.t.name, orderID)
	}
	return o, nil
}

func (r *OrderRepo[T]) GetByNumber(ctx context.Context, number string) (T, error) {
	found := scan(ctx, r.s, r.t, func(o T) bool { return o.GetNumber() == number })
	if len(found) == 0 {
		var zero T
		return zero, apperror.NewNotFound(r.t.name, number)
	}
	return found[0], nil
}

func (r *OrderRepo[T]) Update(ctx context.Context, o T) error {
	return update(ctx, r.s, r.t, o)
}

// List returns matching orders, newest first.
func (r *OrderRepo[T]) List(ctx context.Context, f documents.ListFilter) (domain.ListResult[T], error) {
	q := strings.ToLower(strings.TrimSpace(f.Search))
	items := scan(ctx, r.s, r.t, func(o T) bool {
		if q != "" && !strings.Contains(strings.ToLower(o.GetNumber()), q) {
			return false
		}
		return f.Matches(o)
	})
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].GetDate().Equal(items[j].GetDate()) {
			return items[i].GetDate().After(items[j].GetDate())
		}
		return items[i].GetNumber() > items[j].GetNumber()
	})
	return domain.Paginate(items, f.ListFilter), nil
}

// Purchases returns the purchase order repository.
func (s *Store) Purchases() *OrderRepo[*purchase.Order] {
	return &OrderRepo[*purchase.Order]{s: s, t: s.purchases}
}

// Sales returns the sales order repository.
func (s *Store) Sales() *OrderRepo[*sales.Order] {
	return &OrderRepo[*sales.Order]{s: s, t: s.sales}
}

// Dyeings returns the dyeing order repository.
func (s *Store) Dyeings() *OrderRepo[*dyeing.Order] {
	return &OrderRepo[*dyeing.Order]{s: s, t: s.dyeings}
}

// Adjustments returns the adjustment order repository.
func (s *Store) Adjustments() *OrderRepo[*adjustment.Order] {
	return &OrderRepo[*adjustment.Order]{s: s, t: s.adjustments}
}

// CycleCounts returns the cycle count repository.
func (s *Store) CycleCounts() *OrderRepo[*cyclecount.Order] {
	return &OrderRepo[*cyclecount.Order]{s: s, t: s.cycleCounts}
}

var (
	_ purchase.Repository   = (*OrderRepo[*purchase.Order])(nil)
	_ sales.Repository      = (*OrderRepo[*sales.Order])(nil)
	_ dyeing.Repository     = (*OrderRepo[*dyeing.Order])(nil)
	_ adjustment.Repository = (*OrderRepo[*adjustment.Order])(nil)
	_ cyclecount.Repository = (*OrderRepo[*cyclecount.Order])(nil)
)
