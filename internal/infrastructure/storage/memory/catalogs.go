package memory

import (
	"context"
	"sort"
	"strings"

	"millstock/internal/core/apperror"
	"millstock/internal/core/id"
	"millstock/internal/domain"
	"millstock/internal/domain/catalogs/color"
	"millstock/internal/domain/catalogs/counterparty"
	"millstock/internal/domain/catalogs/product"
)

// catalogRow is a catalog entity as the memory tables see it.
type catalogRow interface {
	row
	domain.CatalogEntity
	GetName() string
	IsMarkedDeleted() bool
	MarkDeleted(bool)
}

// catalogRepo implements domain.CatalogRepository over one table.
type catalogRepo[T catalogRow] struct {
	s *Store
	t *table[T]
}

func (r *catalogRepo[T]) Create(ctx context.Context, e T) error {
	return insert(ctx, r.s, r.t, e)
}

func (r *catalogRepo[T]) GetByID(ctx context.Context, entityID id.ID) (T, error) {
	e, ok := get(ctx, r.s, r.t, entityID)
	if !ok {
		return e, apperror.NewNotFound(r.t.name, entityID)
	}
	return e, nil
}

func (r *catalogRepo[T]) GetByCode(ctx context.Context, code string) (T, error) {
	code = strings.TrimSpace(code)
	found := scan(ctx, r.s, r.t, func(e T) bool { return e.GetCode() == code })
	if len(found) == 0 {
		var zero T
		return zero, apperror.NewNotFound(r.t.name, code)
	}
	return found[0], nil
}

func (r *catalogRepo[T]) Update(ctx context.Context, e T) error {
	return update(ctx, r.s, r.t, e)
}

func (r *catalogRepo[T]) SetDeletionMark(ctx context.Context, entityID id.ID, marked bool) error {
	return r.s.inTx(ctx, func(ctx context.Context) error {
		e, err := r.GetByID(ctx, entityID)
		if err != nil {
			return err
		}
		e.MarkDeleted(marked)
		return update(ctx, r.s, r.t, e)
	})
}

func (r *catalogRepo[T]) List(ctx context.Context, f domain.ListFilter) (domain.ListResult[T], error) {
	items := scan(ctx, r.s, r.t, func(e T) bool { return matchCatalog(e, f) })
	sortCatalog(items, f.OrderBy)
	return domain.Paginate(items, f), nil
}

func (r *catalogRepo[T]) Exists(ctx context.Context, entityID id.ID) (bool, error) {
	_, ok := get(ctx, r.s, r.t, entityID)
	return ok, nil
}

func matchCatalog[T catalogRow](e T, f domain.ListFilter) bool {
	if !f.IncludeDeleted && e.IsMarkedDeleted() {
		return false
	}
	if len(f.IDs) > 0 && !containsID(f.IDs, e.GetID()) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		if !strings.Contains(strings.ToLower(e.GetCode()), q) && !strings.Contains(strings.ToLower(e.GetName()), q) {
			return false
		}
	}
	return true
}

func sortCatalog[T catalogRow](items []T, orderBy string) {
	desc := strings.HasPrefix(orderBy, "-")
	field := strings.TrimPrefix(orderBy, "-")
	less := func(a, b T) bool { return a.GetCode() < b.GetCode() }
	if field == "name" {
		less = func(a, b T) bool { return a.GetName() < b.GetName() }
	}
	sort.SliceStable(items, func(i, j int) bool {
		if desc {
			return less(items[j], items[i])
		}
		return less(items[i], items[j])
	})
}

func containsID(ids []id.ID, v id.ID) bool {
	for _, x := range ids {
		if x == v {
			return true
		}
	}
	return false
}

// ProductRepo stores products.
type ProductRepo struct{ catalogRepo[*product.Product] }

var _ product.Repository = (*ProductRepo)(nil)

// CounterpartyRepo stores counterparties.
type CounterpartyRepo struct {
	catalogRepo[*counterparty.Counterparty]
}

var _ counterparty.Repository = (*CounterpartyRepo)(nil)

// ColorRepo stores colors.
type ColorRepo struct{ catalogRepo[*color.Color] }

var _ color.Repository = (*ColorRepo)(nil)

// FindByProductAndCode looks a color up within its product.
func (r *ColorRepo) FindByProductAndCode(ctx context.Context, productID id.ID, code string) (*color.Color, error) {
	code = strings.TrimSpace(code)
	found := scan(ctx, r.s, r.t, func(c *color.Color) bool { return c.ProductID == productID && c.Code == code })
	if len(found) == 0 {
		return nil, apperror.NewNotFound("color", code)
	}
	return found[0], nil
}

// ListByProduct returns the product's colors ordered by code.
func (r *ColorRepo) ListByProduct(ctx context.Context, productID id.ID) ([]*color.Color, error) {
	items := scan(ctx, r.s, r.t, func(c *color.Color) bool { return c.ProductID == productID && !c.DeletionMark })
	sortCatalog(items, "code")
	return items, nil
}

// Products returns the product repository.
func (s *Store) Products() *ProductRepo {
	return &ProductRepo{catalogRepo[*product.Product]{s: s, t: s.products}}
}

// Colors returns the color repository.
func (s *Store) Colors() *ColorRepo {
	return &ColorRepo{catalogRepo[*color.Color]{s: s, t: s.colors}}
}

// Counterparties returns the counterparty repository.
func (s *Store) Counterparties() *CounterpartyRepo {
	return &CounterpartyRepo{catalogRepo[*counterparty.Counterparty]{s: s, t: s.counterparties}}
}
