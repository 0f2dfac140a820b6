package catalog_repo

import (
	"context"
	"strings"

	"github.com/Masterminds/squirrel"

	"millstock/internal/core/apperror"
	"millstock/internal/core/id"
	"millstock/internal/domain/catalogs/color"
	"millstock/internal/infrastructure/storage/postgres"
)

const colorTable = "cat_colors"

// ColorRepo implements color.Repository.
// Codes are unique per product (ux_cat_colors_product_code).
type ColorRepo struct {
	*BaseCatalogRepo[*color.Color]
}

var _ color.Repository = (*ColorRepo)(nil)

// NewColorRepo creates a new color repository.
func NewColorRepo(txm *postgres.TxManager) *ColorRepo {
	return &ColorRepo{
		BaseCatalogRepo: NewBaseCatalogRepo[*color.Color](
			txm,
			colorTable,
			"color",
			postgres.ExtractDBColumns[color.Color](),
			func() *color.Color { return &color.Color{} },
		),
	}
}

func (r *ColorRepo) byProductAndCode(productID id.ID, code string) squirrel.SelectBuilder {
	return r.baseSelect().
		Where(squirrel.Eq{"product_id": productID, "code": strings.TrimSpace(code)}).
		Limit(1)
}

// FindByProductAndCode looks a color up within its product.
func (r *ColorRepo) FindByProductAndCode(ctx context.Context, productID id.ID, code string) (*color.Color, error) {
	c, err := r.FindOne(ctx, r.byProductAndCode(productID, code))
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("color", code).WithDetail("product_id", productID.String())
		}
		return nil, err
	}
	return c, nil
}

func (r *ColorRepo) byProduct(productID id.ID) squirrel.SelectBuilder {
	return r.baseSelect().
		Where(squirrel.Eq{"product_id": productID, "deletion_mark": false}).
		OrderBy("code ASC")
}

// ListByProduct returns the product's colors ordered by code.
func (r *ColorRepo) ListByProduct(ctx context.Context, productID id.ID) ([]*color.Color, error) {
	return r.FindMany(ctx, r.byProduct(productID))
}
