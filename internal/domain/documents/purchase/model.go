// Package purchase provides the purchase order (采购单): goods received from a
// supplier into batches, and the payable that remains unpaid.
package purchase

import (
	"context"
	"strings"
	"time"

	"millstock/internal/core/apperror"
	"millstock/internal/core/entity"
	"millstock/internal/core/id"
	"millstock/internal/core/types"
	"millstock/internal/domain/documents"
)

// Status of a purchase order.
type Status string

const (
	StatusDraft     Status = "草稿"
	StatusReviewed  Status = "已审核"
	StatusReceived  Status = "已入库"
	StatusCancelled Status = "已取消"
)

// Transitions is the purchase order lifecycle. Review is a pass-through
// checkpoint: commit is allowed from draft or reviewed.
var Transitions = documents.Transitions[Status]{
	StatusDraft:    {StatusReviewed, StatusReceived, StatusCancelled},
	StatusReviewed: {StatusDraft, StatusReceived, StatusCancelled},
}

func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusReviewed, StatusReceived, StatusCancelled:
		return true
	}
	return false
}

// Order is a purchase order.
type Order struct {
	entity.Document

	SupplierID id.ID  `db:"supplier_id" json:"supplierId"`
	Status     Status `db:"status" json:"status"`

	// Totals (calculated from lines)
	TotalQuantity types.Quantity `db:"total_quantity" json:"totalQuantity"`
	TotalAmount   types.Money    `db:"total_amount" json:"totalAmount"`

	// PaidAmount is paid upfront; the rest becomes a payable on commit
	PaidAmount types.Money `db:"paid_amount" json:"paidAmount"`

	// StockLocation of batches created by this order
	StockLocation string `db:"stock_location" json:"stockLocation,omitempty"`

	Lines entity.Lines[Line] `db:"lines" json:"lines"`
}

// Line is one received item. Lines with the same color and batch code land
// in one batch.
type Line struct {
	LineNo    int            `json:"lineNo"`
	ProductID id.ID          `json:"productId"`
	ColorID   id.ID          `json:"colorId"`
	BatchCode string         `json:"batchCode"`
	Quantity  types.Quantity `json:"quantity"`
	UnitPrice types.Money    `json:"unitPrice"`
	Amount    types.Money    `json:"amount"`

	// BatchID is set on commit
	BatchID *id.ID `json:"batchId,omitempty"`
}

// NewOrder creates a draft purchase order.
func NewOrder(operator string, supplierID id.ID) *Order {
	return &Order{
		Document:   entity.NewDocument(operator),
		SupplierID: supplierID,
		Status:     StatusDraft,
		PaidAmount: types.Zero(),
		Lines:      make(entity.Lines[Line], 0),
	}
}

// AddLine appends a line and recalculates totals.
func (o *Order) AddLine(productID, colorID id.ID, batchCode string, qty types.Quantity, unitPrice types.Money) {
	o.Lines = append(o.Lines, Line{
		ProductID: productID,
		ColorID:   colorID,
		BatchCode: strings.TrimSpace(batchCode),
		Quantity:  qty,
		UnitPrice: unitPrice,
	})
	o.Recalculate()
}

// Recalculate renumbers lines and derives amounts and totals.
func (o *Order) Recalculate() {
	o.TotalQuantity = 0
	o.TotalAmount = types.Zero()
	for i := range o.Lines {
		l := &o.Lines[i]
		l.LineNo = i + 1
		l.BatchCode = strings.TrimSpace(l.BatchCode)
		l.Amount = types.LineAmount(l.UnitPrice, l.Quantity)
		o.TotalQuantity = o.TotalQuantity.Add(l.Quantity)
		o.TotalAmount = o.TotalAmount.Add(l.Amount)
	}
}

// Unpaid is what becomes the payable.
func (o *Order) Unpaid() types.Money {
	return o.TotalAmount.Sub(o.PaidAmount)
}

// Validate implements entity.Validatable.
func (o *Order) Validate(ctx context.Context) error {
	if err := o.Document.Validate(ctx); err != nil {
		return err
	}
	if !o.Status.IsValid() {
		return apperror.NewValidation("invalid status").WithDetail("status", string(o.Status))
	}
	if id.IsNil(o.SupplierID) {
		return apperror.NewValidation("supplier is required").
			WithDetail("field", "supplierId")
	}
	if len(o.Lines) == 0 {
		return apperror.NewValidation("at least one line is required").
			WithDetail("field", "lines")
	}

	for i, line := range o.Lines {
		if id.IsNil(line.ProductID) {
			return lineError("product is required", i)
		}
		if id.IsNil(line.ColorID) {
			return lineError("color is required", i)
		}
		if line.BatchCode == "" {
			return lineError("batch code is required", i)
		}
		if !line.Quantity.IsPositive() {
			return lineError("quantity must be positive", i)
		}
		if line.UnitPrice.IsNegative() {
			return lineError("unit price must not be negative", i)
		}
	}

	if o.PaidAmount.IsNegative() {
		return apperror.NewValidation("paid amount must not be negative").
			WithDetail("field", "paidAmount")
	}
	if !types.FitsMoneyPlaces(o.PaidAmount) {
		return apperror.NewValidation("paid amount has more than 2 decimal places").
			WithDetail("field", "paidAmount")
	}
	if o.PaidAmount.GreaterThan(o.TotalAmount) {
		return apperror.NewValidation("paid amount exceeds total amount").
			WithDetail("field", "paidAmount").
			WithDetail("paidAmount", o.PaidAmount.String()).
			WithDetail("totalAmount", o.TotalAmount.String())
	}
	return nil
}

func lineError(msg string, i int) *apperror.AppError {
	return apperror.NewValidation(msg).
		WithDetail("field", "lines").
		WithDetail("lineNo", i+1)
}

// StatusValue implements documents.Order.
func (o *Order) StatusValue() string { return string(o.Status) }

// CounterpartyRef implements documents.Order.
func (o *Order) CounterpartyRef() id.ID { return o.SupplierID }

// Clone returns a deep copy.
func (o *Order) Clone() *Order {
	c := *o
	c.Lines = o.Lines.Clone()
	for i := range c.Lines {
		if b := c.Lines[i].BatchID; b != nil {
			v := *b
			c.Lines[i].BatchID = &v
		}
	}
	if o.CommittedAt != nil {
		t := *o.CommittedAt
		c.CommittedAt = &t
	}
	return &c
}

var _ documents.Order = (*Order)(nil)

// orderDate is used when the caller left Date empty.
func orderDate(d time.Time) time.Time {
	if d.IsZero() {
		return time.Now().UTC()
	}
	return d
}
