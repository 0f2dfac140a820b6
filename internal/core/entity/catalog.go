package entity

import (
	"context"
	"strings"

	"millstock/internal/core/apperror"
)

// Catalog is the base type for reference data: products, colors,
// counterparties.
type Catalog struct {
	BaseEntity

	// Code is a human-readable identifier
	Code string `db:"code" json:"code"`

	// Name is the display name
	Name string `db:"name" json:"name"`

	// DeletionMark hides the entry from pickers without removing history
	DeletionMark bool `db:"deletion_mark" json:"deletionMark"`
}

// NewCatalog creates a new Catalog with generated ID.
func NewCatalog(code, name string) Catalog {
	return Catalog{
		BaseEntity: NewBaseEntity(),
		Code:       strings.TrimSpace(code),
		Name:       strings.TrimSpace(name),
	}
}

// Validate implements Validatable interface.
func (c *Catalog) Validate(ctx context.Context) error {
	if strings.TrimSpace(c.Code) == "" {
		return apperror.NewValidation("code is required").
			WithDetail("field", "code")
	}
	if strings.TrimSpace(c.Name) == "" {
		return apperror.NewValidation("name is required").
			WithDetail("field", "name")
	}
	return nil
}

// GetCode returns the catalog code (used by uniqueness checks).
func (c *Catalog) GetCode() string {
	return c.Code
}

// GetName returns the display name.
func (c *Catalog) GetName() string {
	return c.Name
}

// IsMarkedDeleted reports the deletion mark.
func (c *Catalog) IsMarkedDeleted() bool {
	return c.DeletionMark
}

// MarkDeleted sets or clears the deletion mark.
func (c *Catalog) MarkDeleted(marked bool) {
	c.DeletionMark = marked
}
