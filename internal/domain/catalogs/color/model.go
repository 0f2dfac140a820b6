// Package color provides the Color catalog. A color belongs to one product
// and groups that product's batches.
package color

import (
	"context"

	"millstock/internal/core/apperror"
	"millstock/internal/core/entity"
	"millstock/internal/core/id"
)

// Color is a color variant (色号) of a product.
type Color struct {
	entity.Catalog

	// ProductID is the owning product
	ProductID id.ID `db:"product_id" json:"productId"`

	// Hex is an optional swatch for pickers
	Hex string `db:"hex" json:"hex,omitempty"`
}

// NewColor creates a new Color under productID.
func NewColor(productID id.ID, code, name string) *Color {
	return &Color{
		Catalog:   entity.NewCatalog(code, name),
		ProductID: productID,
	}
}

// Validate implements entity.Validatable interface.
func (c *Color) Validate(ctx context.Context) error {
	if id.IsNil(c.ProductID) {
		return apperror.NewValidation("product is required").
			WithDetail("field", "productId")
	}
	return c.Catalog.Validate(ctx)
}
