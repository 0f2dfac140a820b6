// Package counterparty provides the Counterparty catalog: suppliers,
// customers and dye factories referenced by orders and ledger accounts.
package counterparty

import (
	"context"
	"regexp"

	"millstock/internal/core/apperror"
	"millstock/internal/core/entity"
)

var phoneRE = regexp.MustCompile(`^\+?[0-9][0-9 \-]{5,19}$`)

// Type defines the role of a counterparty.
type Type string

const (
	TypeSupplier   Type = "supplier"    // 供应商
	TypeCustomer   Type = "customer"    // 客户
	TypeDyeFactory Type = "dye_factory" // 染厂
	TypeBoth       Type = "both"        // supplier and customer
)

// Counterparty represents a business partner.
type Counterparty struct {
	entity.Catalog

	Type Type `db:"type" json:"type"`

	ContactPerson *string `db:"contact_person" json:"contactPerson,omitempty"`
	Phone         *string `db:"phone" json:"phone,omitempty"`
	Address       *string `db:"address" json:"address,omitempty"`
	Comment       *string `db:"comment" json:"comment,omitempty"`
}

// NewCounterparty creates a new Counterparty with required fields.
func NewCounterparty(code, name string, cpType Type) *Counterparty {
	return &Counterparty{
		Catalog: entity.NewCatalog(code, name),
		Type:    cpType,
	}
}

// Validate implements entity.Validatable interface.
func (c *Counterparty) Validate(ctx context.Context) error {
	if err := c.Catalog.Validate(ctx); err != nil {
		return err
	}

	if !c.Type.IsValid() {
		return apperror.NewValidation("invalid counterparty type").
			WithDetail("field", "type").
			WithDetail("value", string(c.Type))
	}

	if c.Phone != nil && *c.Phone != "" && !phoneRE.MatchString(*c.Phone) {
		return apperror.NewValidation("invalid phone format").
			WithDetail("field", "phone")
	}

	return nil
}

// IsValid reports whether t is a known type.
func (t Type) IsValid() bool {
	switch t {
	case TypeSupplier, TypeCustomer, TypeDyeFactory, TypeBoth:
		return true
	}
	return false
}

// Can reports whether the counterparty may act in role.
func (c *Counterparty) Can(role Type) bool {
	switch role {
	case TypeSupplier:
		return c.Type == TypeSupplier || c.Type == TypeBoth
	case TypeCustomer:
		return c.Type == TypeCustomer || c.Type == TypeBoth
	case TypeDyeFactory:
		return c.Type == TypeDyeFactory
	}
	return false
}
