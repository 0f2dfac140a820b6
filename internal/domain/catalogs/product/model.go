// Package product provides the Product catalog, the root of the
// product -> color -> batch stock hierarchy.
package product

import (
	"context"
	"strings"

	"millstock/internal/core/apperror"
	"millstock/internal/core/entity"
)

// Product is a fabric or yarn article.
type Product struct {
	entity.Catalog

	// Unit of measure for every quantity of this product (米, 公斤, 匹 ...)
	Unit string `db:"unit" json:"unit"`

	// IsRawGreigeYarn marks undyed stock that dyeing orders consume.
	IsRawGreigeYarn bool `db:"is_raw_greige_yarn" json:"isRawGreigeYarn"`

	Spec string `db:"spec" json:"spec,omitempty"`
}

// NewProduct creates a new Product with required fields.
func NewProduct(code, name, unit string, greige bool) *Product {
	return &Product{
		Catalog:         entity.NewCatalog(code, name),
		Unit:            strings.TrimSpace(unit),
		IsRawGreigeYarn: greige,
	}
}

// Validate implements entity.Validatable interface.
func (p *Product) Validate(ctx context.Context) error {
	if err := p.Catalog.Validate(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(p.Unit) == "" {
		return apperror.NewValidation("unit is required").
			WithDetail("field", "unit")
	}
	return nil
}
