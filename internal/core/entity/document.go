package entity

import (
	"context"
	"time"

	"millstock/internal/core/apperror"
)

// Document is the common header of every order family.
type Document struct {
	BaseEntity

	// Number is generated on create, unique per family
	Number string `db:"number" json:"number"`

	// Date is the business date of the order
	Date time.Time `db:"date" json:"date"`

	// Operator is the opaque identity of whoever created the order
	Operator string `db:"operator" json:"operator"`

	Comment string `db:"comment" json:"comment,omitempty"`

	// CommittedAt is set once stock or ledger effects were applied
	CommittedAt *time.Time `db:"committed_at" json:"committedAt,omitempty"`
}

// NewDocument creates a new Document dated now.
func NewDocument(operator string) Document {
	return Document{
		BaseEntity: NewBaseEntity(),
		Date:       time.Now().UTC(),
		Operator:   operator,
	}
}

// Validate implements Validatable interface.
func (d *Document) Validate(ctx context.Context) error {
	if d.Date.IsZero() {
		return apperror.NewValidation("date is required").
			WithDetail("field", "date")
	}
	return nil
}

// GetDate returns the business date.
func (d *Document) GetDate() time.Time {
	return d.Date
}

// GetNumber returns the order number.
func (d *Document) GetNumber() string {
	return d.Number
}

// MarkCommitted stamps the commit time.
func (d *Document) MarkCommitted() {
	now := time.Now().UTC()
	d.CommittedAt = &now
}

// IsCommitted reports whether effects were applied.
func (d *Document) IsCommitted() bool {
	return d.CommittedAt != nil
}
