// Package dyeing provides the dyeing order (染色加工单): greige stock shipped to
// a dye factory and returned as new colored batches.
//
// Greige stock leaves the warehouse when the order is created, so the source
// batch is deducted then, not at stock-in.
package dyeing

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

// Status of a dyeing order.
type Status string

const (
	StatusPlanned    Status = "待发货"
	StatusProcessing Status = "加工中"
	StatusCompleted  Status = "已完成"
	StatusStocked    Status = "已入库"
	StatusCancelled  Status = "已取消"
)

// Transitions is the dyeing order lifecycle.
var Transitions = documents.Transitions[Status]{
	StatusPlanned:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusCompleted},
	StatusCompleted:  {StatusStocked},
}

func (s Status) IsValid() bool {
	switch s {
	case StatusPlanned, StatusProcessing, StatusCompleted, StatusStocked, StatusCancelled:
		return true
	}
	return false
}

// Order is a dyeing order.
type Order struct {
	entity.Document

	SourceBatchID id.ID  `db:"source_batch_id" json:"sourceBatchId"`
	DyeFactoryID  id.ID  `db:"dye_factory_id" json:"dyeFactoryId"`
	Status        Status `db:"status" json:"status"`

	// ProcessingPrice is the dye factory's fee per unit
	ProcessingPrice types.Money `db:"processing_price" json:"processingPrice"`

	// TotalPlannedQuantity is the sum of line quantities and what was taken
	// from the source batch
	TotalPlannedQuantity types.Quantity `db:"total_planned_quantity" json:"totalPlannedQuantity"`

	// ProcessingAmount is ProcessingPrice * TotalPlannedQuantity
	ProcessingAmount types.Money `db:"processing_amount" json:"processingAmount"`

	StockLocation string     `db:"stock_location" json:"stockLocation,omitempty"`
	ShippedAt     *time.Time `db:"shipped_at" json:"shippedAt,omitempty"`
	CompletedAt   *time.Time `db:"completed_at" json:"completedAt,omitempty"`

	Lines entity.Lines[Line] `db:"lines" json:"lines"`
}

// Line is one output batch.
type Line struct {
	LineNo        int            `json:"lineNo"`
	TargetColorID id.ID          `json:"targetColorId"`
	BatchCode     string         `json:"batchCode"`
	Quantity      types.Quantity `json:"quantity"`

	// BatchID is set on stock-in
	BatchID *id.ID `json:"batchId,omitempty"`
}

// NewOrder creates a planned dyeing order.
func NewOrder(operator string, sourceBatchID, dyeFactoryID id.ID, processingPrice types.Money) *Order {
	return &Order{
		Document:        entity.NewDocument(operator),
		SourceBatchID:   sourceBatchID,
		DyeFactoryID:    dyeFactoryID,
		Status:          StatusPlanned,
		ProcessingPrice: processingPrice,
		Lines:           make(entity.Lines[Line], 0),
	}
}

// AddLine appends an output line and recalculates totals.
func (o *Order) AddLine(targetColorID id.ID, batchCode string, qty types.Quantity) {
	o.Lines = append(o.Lines, Line{TargetColorID: targetColorID, BatchCode: batchCode, Quantity: qty})
	o.Recalculate()
}

// Recalculate renumbers lines and derives totals.
func (o *Order) Recalculate() {
	o.TotalPlannedQuantity = 0
	for i := range o.Lines {
		l := &o.Lines[i]
		l.LineNo = i + 1
		l.BatchCode = strings.TrimSpace(l.BatchCode)
		o.TotalPlannedQuantity = o.TotalPlannedQuantity.Add(l.Quantity)
	}
	o.ProcessingAmount = types.LineAmount(o.ProcessingPrice, o.TotalPlannedQuantity)
}

// Validate implements entity.Validatable.
func (o *Order) Validate(ctx context.Context) error {
	if err := o.Document.Validate(ctx); err != nil {
		return err
	}
	if !o.Status.IsValid() {
		return apperror.NewValidation("invalid status").WithDetail("status", string(o.Status))
	}
	if id.IsNil(o.SourceBatchID) {
		return apperror.NewValidation("source batch is required").
			WithDetail("field", "sourceBatchId")
	}
	if id.IsNil(o.DyeFactoryID) {
		return apperror.NewValidation("dye factory is required").
			WithDetail("field", "dyeFactoryId")
	}
	if o.ProcessingPrice.IsNegative() {
		return apperror.NewValidation("processing price must not be negative").
			WithDetail("field", "processingPrice")
	}
	if len(o.Lines) == 0 {
		return apperror.NewValidation("at least one line is required").
			WithDetail("field", "lines")
	}

	seen := make(map[string]int, len(o.Lines))
	for i, line := range o.Lines {
		if id.IsNil(line.TargetColorID) {
			return lineError("target color is required", i)
		}
		if line.BatchCode == "" {
			return lineError("batch code is required", i)
		}
		if !line.Quantity.IsPositive() {
			return lineError("quantity must be positive", i)
		}
		key := line.TargetColorID.String() + "/" + line.BatchCode
		if prev, dup := seen[key]; dup {
			return lineError("batch code repeated for the same color", i).
				WithDetail("sameAsLineNo", prev+1)
		}
		seen[key] = i
	}
	return nil
}

// CheckMassConservation verifies that the output lines account for exactly
// the quantity taken from the source batch.
func (o *Order) CheckMassConservation() error {
	var sum types.Quantity
	for _, l := range o.Lines {
		sum = sum.Add(l.Quantity)
	}
	if sum != o.TotalPlannedQuantity {
		return apperror.NewValidation("output quantity does not match the quantity taken from the source batch").
			WithDetail("planned", o.TotalPlannedQuantity.String()).
			WithDetail("output", sum.String())
	}
	return nil
}

func lineError(msg string, i int) *apperror.AppError {
	return apperror.NewValidation(msg).
		WithDetail("field", "lines").
		WithDetail("lineNo", i+1)
}

func (o *Order) StatusValue() string    { return string(o.Status) }
func (o *Order) CounterpartyRef() id.ID { return o.DyeFactoryID }

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
	c.CommittedAt = cloneTime(o.CommittedAt)
	c.ShippedAt = cloneTime(o.ShippedAt)
	c.CompletedAt = cloneTime(o.CompletedAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

var _ documents.Order = (*Order)(nil)

func orderDate(d time.Time) time.Time {
	if d.IsZero() {
		return time.Now().UTC()
	}
	return d
}
