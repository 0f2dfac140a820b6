package memory

import (
	"context"
	"sort"
	"strings"

	"millstock/internal/core/apperror"
	"millstock/internal/core/id"
	"millstock/internal/domain"
	"millstock/internal/domain/registers/stock"
)

// StockRepo stores batches and their movement journal.
type StockRepo struct {
	s *Store
}

var _ stock.Repository = (*StockRepo)(nil)

// Stock returns the batch repository.
func (s *Store) Stock() *StockRepo {
	return &StockRepo{s: s}
}

func (r *StockRepo) CreateBatch(ctx context.Context, b *stock.Batch) error {
	return insert(ctx, r.s, r.s.batches, b)
}

func (r *StockRepo) GetBatch(ctx context.Context, batchID id.ID) (*stock.Batch, error) {
	b, ok := get(ctx, r.s, r.s.batches, batchID)
	if !ok {
		return nil, apperror.NewNotFound("batch", batchID)
	}
	return b, nil
}

func (r *StockRepo) FindBatch(ctx context.Context, colorID id.ID, code string) (*stock.Batch, error) {
	code = strings.TrimSpace(code)
	found := scan(ctx, r.s, r.s.batches, func(b *stock.Batch) bool {
		return b.ColorID == colorID && b.Code == code
	})
	if len(found) == 0 {
		return nil, apperror.NewNotFound("batch", code).WithDetail("color_id", colorID.String())
	}
	return found[0], nil
}

func (r *StockRepo) UpdateBatchStock(ctx context.Context, b *stock.Batch) error {
	if b.StockQuantity.IsNegative() {
		return apperror.NewInsufficientStock(b.ID.String(), "", b.StockQuantity.String())
	}
	return update(ctx, r.s, r.s.batches, b)
}

func (r *StockRepo) ListBatchesByColor(ctx context.Context, colorID id.ID) ([]*stock.Batch, error) {
	return scan(ctx, r.s, r.s.batches, func(b *stock.Batch) bool { return b.ColorID == colorID }), nil
}

func (r *StockRepo) ListBatchesByProduct(ctx context.Context, productID id.ID) ([]*stock.Batch, error) {
	return scan(ctx, r.s, r.s.batches, func(b *stock.Batch) bool { return b.ProductID == productID }), nil
}

func (r *StockRepo) ListBatches(ctx context.Context, f stock.BatchFilter) (domain.ListResult[*stock.Batch], error) {
	q := strings.ToLower(strings.TrimSpace(f.Search))
	items := scan(ctx, r.s, r.s.batches, func(b *stock.Batch) bool {
		if f.ProductID != nil && b.ProductID != *f.ProductID {
			return false
		}
		if f.ColorID != nil && b.ColorID != *f.ColorID {
			return false
		}
		if f.ExcludeZero && b.StockQuantity.IsZero() {
			return false
		}
		if q != "" && !strings.Contains(strings.ToLower(b.Code), q) {
			return false
		}
		return true
	})
	sort.SliceStable(items, func(i, j int) bool { return items[i].Code < items[j].Code })
	return domain.Paginate(items, domain.ListFilter{Limit: f.Limit, Offset: f.Offset}), nil
}

func (r *StockRepo) CreateMovements(ctx context.Context, movements []stock.Movement) error {
	return r.s.inTx(ctx, func(ctx context.Context) error {
		t := txFrom(ctx)
		t.movements = append(t.movements, movements...)
		return nil
	})
}

// ListMovements returns matching movements, oldest first. Movements staged
// by the caller's transaction are included.
func (r *StockRepo) ListMovements(ctx context.Context, f stock.MovementFilter) ([]stock.Movement, error) {
	r.s.mu.RLock()
	all := append([]stock.Movement(nil), r.s.movements...)
	r.s.mu.RUnlock()
	if t := txFrom(ctx); t != nil {
		all = append(all, t.movements...)
	}

	out := make([]stock.Movement, 0)
	for _, m := range all {
		if f.BatchID != nil && m.BatchID != *f.BatchID {
			continue
		}
		if f.RecorderID != nil && m.RecorderID != *f.RecorderID {
			continue
		}
		if f.FromDate != nil && m.RecordedAt.Before(*f.FromDate) {
			continue
		}
		if f.ToDate != nil && m.RecordedAt.After(*f.ToDate) {
			continue
		}
		out = append(out, m)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}
