package dto

import (
	"millstock/internal/core/id"
	"millstock/internal/domain/catalogs/color"
	"millstock/internal/domain/catalogs/counterparty"
	"millstock/internal/domain/catalogs/product"
)

// --- Product ---

// CreateProductRequest for POST /products.
type CreateProductRequest struct {
	Code            string `json:"code" binding:"required"`
	Name            string `json:"name" binding:"required"`
	Unit            string `json:"unit" binding:"required"`
	IsRawGreigeYarn bool   `json:"isRawGreigeYarn"`
	Spec            string `json:"spec"`
}

// ToEntity maps the request to a new product.
func (r CreateProductRequest) ToEntity() *product.Product {
	p := product.NewProduct(r.Code, r.Name, r.Unit, r.IsRawGreigeYarn)
	p.Spec = r.Spec
	return p
}

// UpdateProductRequest for PUT /products/:id. Nil fields are kept.
type UpdateProductRequest struct {
	Versioned
	Code            *string `json:"code"`
	Name            *string `json:"name"`
	Unit            *string `json:"unit"`
	IsRawGreigeYarn *bool   `json:"isRawGreigeYarn"`
	Spec            *string `json:"spec"`
}

// ApplyTo copies set fields onto p.
func (r UpdateProductRequest) ApplyTo(p *product.Product) *product.Product {
	setString(&p.Code, r.Code)
	setString(&p.Name, r.Name)
	setString(&p.Unit, r.Unit)
	setString(&p.Spec, r.Spec)
	if r.IsRawGreigeYarn != nil {
		p.IsRawGreigeYarn = *r.IsRawGreigeYarn
	}
	return p
}

// --- Color ---

// CreateColorRequest for POST /colors.
type CreateColorRequest struct {
	ProductID id.ID  `json:"productId" binding:"required"`
	Code      string `json:"code" binding:"required"`
	Name      string `json:"name" binding:"required"`
	Hex       string `json:"hex"`
}

// ToEntity maps the request to a new color.
func (r CreateColorRequest) ToEntity() *color.Color {
	c := color.NewColor(r.ProductID, r.Code, r.Name)
	c.Hex = r.Hex
	return c
}

// UpdateColorRequest for PUT /colors/:id. The owning product cannot change.
type UpdateColorRequest struct {
	Versioned
	Code *string `json:"code"`
	Name *string `json:"name"`
	Hex  *string `json:"hex"`
}

// ApplyTo copies set fields onto c.
func (r UpdateColorRequest) ApplyTo(c *color.Color) *color.Color {
	setString(&c.Code, r.Code)
	setString(&c.Name, r.Name)
	setString(&c.Hex, r.Hex)
	return c
}

// --- Counterparty ---

// CreateCounterpartyRequest for POST /counterparties.
type CreateCounterpartyRequest struct {
	Code          string            `json:"code" binding:"required"`
	Name          string            `json:"name" binding:"required"`
	Type          counterparty.Type `json:"type" binding:"required"`
	ContactPerson *string           `json:"contactPerson"`
	Phone         *string           `json:"phone"`
	Address       *string           `json:"address"`
	Comment       *string           `json:"comment"`
}

// ToEntity maps the request to a new counterparty.
func (r CreateCounterpartyRequest) ToEntity() *counterparty.Counterparty {
	cp := counterparty.NewCounterparty(r.Code, r.Name, r.Type)
	cp.ContactPerson = r.ContactPerson
	cp.Phone = r.Phone
	cp.Address = r.Address
	cp.Comment = r.Comment
	return cp
}

// UpdateCounterpartyRequest for PUT /counterparties/:id.
type UpdateCounterpartyRequest struct {
	Versioned
	Code          *string            `json:"code"`
	Name          *string            `json:"name"`
	Type          *counterparty.Type `json:"type"`
	ContactPerson *string            `json:"contactPerson"`
	Phone         *string            `json:"phone"`
	Address       *string            `json:"address"`
	Comment       *string            `json:"comment"`
}

// ApplyTo copies set fields onto cp.
func (r UpdateCounterpartyRequest) ApplyTo(cp *counterparty.Counterparty) *counterparty.Counterparty {
	setString(&cp.Code, r.Code)
	setString(&cp.Name, r.Name)
	if r.Type != nil {
		cp.Type = *r.Type
	}
	if r.ContactPerson != nil {
		cp.ContactPerson = r.ContactPerson
	}
	if r.Phone != nil {
		cp.Phone = r.Phone
	}
	if r.Address != nil {
		cp.Address = r.Address
	}
	if r.Comment != nil {
		cp.Comment = r.Comment
	}
	return cp
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
