// Package sales provides the sales order (销售单): goods shipped to a customer
// out of batches, and the receivable that remains unpaid.
package sales

import (
	"context"
	"time"

	"millstock/internal/core/apperror"
	"millstock/internal/core/entity"
	"millstock/internal/core/id"
	"millstock/internal/core/types"
	"millstock/internal/domain/documents"
)

// Status of a sales order.
type Status string

const (
	StatusDraft     Status = "草稿"
	StatusReviewed  Status = "已审核"
	StatusShipped   Status = "已出库"
	StatusCancelled Status = "已取消"
)

// Transitions is the sales order lifecycle.
var Transitions = documents.Transitions[Status]{
	StatusDraft:    {StatusReviewed, StatusShipped, StatusCancelled},
	StatusReviewed: {StatusDraft, StatusShipped, StatusCancelled},
}

func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusReviewed, StatusShipped, StatusCancelled:
		return true
	}
	return false
}

// Order is a sales order.
type Order struct {
	entity.Document

	CustomerID id.ID  `db:"customer_id" json:"customerId"`
	Status     Status `db:"status" json:"status"`

	TotalQuantity types.Quantity `db:"total_quantity" json:"totalQuantity"`
	TotalAmount   types.Money    `db:"total_amount" json:"totalAmount"`

	// ReceivedAmount is collected upfront; the rest becomes a receivable
	ReceivedAmount types.Money `db:"received_amount" json:"receivedAmount"`

	Lines entity.Lines[Line] `db:"lines" json:"lines"`
}

// Line is one shipped item.
type Line struct {
	LineNo    int            `json:"lineNo"`
	BatchID   id.ID          `json:"batchId"`
	Quantity  types.Quantity `json:"quantity"`
	UnitPrice types.Money    `json:"unitPrice"`
	Amount    types.Money    `json:"amount"`
}

// NewOrder creates a draft sales order.
func NewOrder(operator string, customerID id.ID) *Order {
	return &Order{
		Document:       entity.NewDocument(operator),
		CustomerID:     customerID,
		Status:         StatusDraft,
		ReceivedAmount: types.Zero(),
		Lines:          make(entity.Lines[Line], 0),
	}
}

// AddLine appends a line and recalculates totals.
func (o *Order) AddLine(batchID id.ID, qty types.Quantity, unitPrice types.Money) {
	o.Lines = append(o.Lines, Line{BatchID: batchID, Quantity: qty, UnitPrice: unitPrice})
	o.Recalculate()
}

// Recalculate renumbers lines and derives amounts and totals.
func (o *Order) Recalculate() {
	o.TotalQuantity = 0
	o.TotalAmount = types.Zero()
	for i := range o.Lines {
		l := &o.Lines[i]
		l.LineNo = i + 1
		l.Amount = types.LineAmount(l.UnitPrice, l.Quantity)
		o.TotalQuantity = o.TotalQuantity.Add(l.Quantity)
		o.TotalAmount = o.TotalAmount.Add(l.Amount)
	}
}

// Unreceived is what becomes the receivable.
func (o *Order) Unreceived() types.Money {
	return o.TotalAmount.Sub(o.ReceivedAmount)
}

// QuantityByBatch sums line quantities per batch.
func (o *Order) QuantityByBatch() map[id.ID]types.Quantity {
	out := make(map[id.ID]types.Quantity, len(o.Lines))
	for _, l := range o.Lines {
		out[l.BatchID] = out[l.BatchID].Add(l.Quantity)
	}
	return out
}

// Validate implements entity.Validatable.
func (o *Order) Validate(ctx context.Context) error {
	if err := o.Document.Validate(ctx); err != nil {
		return err
	}
	if !o.Status.IsValid() {
		return apperror.NewValidation("invalid status").WithDetail("status", string(o.Status))
	}
	if id.IsNil(o.CustomerID) {
		return apperror.NewValidation("customer is required").
			WithDetail("field", "customerId")
	}
	if len(o.Lines) == 0 {
		return apperror.NewValidation("at least one line is required").
			WithDetail("field", "lines")
	}
	for i, line := range o.Lines {
		if id.IsNil(line.BatchID) {
			return lineError("batch is required", i)
		}
		if !line.Quantity.IsPositive() {
			return lineError("quantity must be positive", i)
		}
		if line.UnitPrice.IsNegative() {
			return lineError("unit price must not be negative", i)
		}
	}
	if o.ReceivedAmount.IsNegative() {
		return apperror.NewValidation("received amount must not be negative").
			WithDetail("field", "receivedAmount")
	}
	if !types.FitsMoneyPlaces(o.ReceivedAmount) {
		return apperror.NewValidation("received amount has more than 2 decimal places").
			WithDetail("field", "receivedAmount")
	}
	if o.ReceivedAmount.GreaterThan(o.TotalAmount) {
		return apperror.NewValidation("received amount exceeds total amount").
			WithDetail("field", "receivedAmount").
			WithDetail("receivedAmount", o.ReceivedAmount.String()).
			WithDetail("totalAmount", o.TotalAmount.String())
	}
	return nil
}

func lineError(msg string, i int) *apperror.AppError {
	return apperror.NewValidation(msg).
		WithDetail("field", "lines").
		WithDetail("lineNo", i+1)
}

func (o *Order) StatusValue() string    { return string(o.Status) }
func (o *Order) CounterpartyRef() id.ID { return o.CustomerID }

// Clone returns a deep copy.
func (o *Order) Clone() *Order {
	c := *o
	c.Lines = o.Lines.Clone()
	if o.CommittedAt != nil {
		t := *o.CommittedAt
		c.CommittedAt = &t
	}
	return &c
}

var _ documents.Order = (*Order)(nil)

func orderDate(d time.Time) time.Time {
	if d.IsZero() {
		return time.Now().UTC()
	}
	return d
}
