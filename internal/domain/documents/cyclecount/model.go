// Package cyclecount provides the cycle count (盘点单): a physical count of
// selected batches whose differences become an adjustment order.
package cyclecount

import (
	"context"
	"time"

	"millstock/internal/core/apperror"
	"millstock/internal/core/entity"
	"millstock/internal/core/id"
	"millstock/internal/core/types"
	"millstock/internal/domain/documents"
)

// Status of a cycle count.
type Status string

const (
	StatusPlanned   Status = "计划中"
	StatusCounting  Status = "盘点中"
	StatusCompleted Status = "已完成"
	StatusCancelled Status = "已取消"
)

// Transitions is the cycle count lifecycle.
var Transitions = documents.Transitions[Status]{
	StatusPlanned:  {StatusCounting, StatusCancelled},
	StatusCounting: {StatusCompleted, StatusCancelled},
}

func (s Status) IsValid() bool {
	switch s {
	case StatusPlanned, StatusCounting, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Order is a cycle count.
type Order struct {
	entity.Document

	Status Status `db:"status" json:"status"`

	StartedAt *time.Time `db:"started_at" json:"startedAt,omitempty"`

	// AdjustmentID is the order generated on completion, if any
	AdjustmentID *id.ID `db:"adjustment_id" json:"adjustmentId,omitempty"`

	Lines entity.Lines[Line] `db:"lines" json:"lines"`
}

// Line is one counted batch.
type Line struct {
	LineNo  int   `json:"lineNo"`
	BatchID id.ID `json:"batchId"`

	// BookQuantity is the stock snapshot taken on Start
	BookQuantity types.Quantity `json:"bookQuantity"`

	// CountedQuantity is nil until recorded
	CountedQuantity *types.Quantity `json:"countedQuantity,omitempty"`

	Remark string `json:"remark,omitempty"`
}

// Difference is counted minus book; zero until counted.
func (l Line) Difference() types.Quantity {
	if l.CountedQuantity == nil {
		return 0
	}
	return l.CountedQuantity.Sub(l.BookQuantity)
}

// NewOrder creates a planned cycle count.
func NewOrder(operator string) *Order {
	return &Order{
		Document: entity.NewDocument(operator),
		Status:   StatusPlanned,
		Lines:    make(entity.Lines[Line], 0),
	}
}

// AddBatch appends a batch to count.
func (o *Order) AddBatch(batchID id.ID) {
	o.Lines = append(o.Lines, Line{BatchID: batchID})
	o.Recalculate()
}

// Recalculate renumbers lines.
func (o *Order) Recalculate() {
	for i := range o.Lines {
		o.Lines[i].LineNo = i + 1
	}
}

// Line returns the line counting batchID.
func (o *Order) Line(batchID id.ID) (*Line, bool) {
	for i := range o.Lines {
		if o.Lines[i].BatchID == batchID {
			return &o.Lines[i], true
		}
	}
	return nil, false
}

// Validate implements entity.Validatable.
func (o *Order) Validate(ctx context.Context) error {
	if err := o.Document.Validate(ctx); err != nil {
		return err
	}
	if !o.Status.IsValid() {
		return apperror.NewValidation("invalid status").WithDetail("status", string(o.Status))
	}
	if len(o.Lines) == 0 {
		return apperror.NewValidation("at least one batch is required").
			WithDetail("field", "lines")
	}
	seen := make(map[id.ID]int, len(o.Lines))
	for i, line := range o.Lines {
		if id.IsNil(line.BatchID) {
			return lineError("batch is required", i)
		}
		if prev, dup := seen[line.BatchID]; dup {
			return lineError("batch listed twice", i).WithDetail("sameAsLineNo", prev+1)
		}
		seen[line.BatchID] = i
		if line.CountedQuantity != nil && line.CountedQuantity.IsNegative() {
			return lineError("counted quantity must not be negative", i)
		}
	}
	return nil
}

func lineError(msg string, i int) *apperror.AppError {
	return apperror.NewValidation(msg).
		WithDetail("field", "lines").
		WithDetail("lineNo", i+1)
}

func (o *Order) StatusValue() string    { return string(o.Status) }
func (o *Order) CounterpartyRef() id.ID { return id.Nil() }

// Clone returns a deep copy.
func (o *Order) Clone() *Order {
	c := *o
	c.Lines = o.Lines.Clone()
	for i := range c.Lines {
		if q := c.Lines[i].CountedQuantity; q != nil {
			v := *q
			c.Lines[i].CountedQuantity = &v
		}
	}
	if o.AdjustmentID != nil {
		v := *o.AdjustmentID
		c.AdjustmentID = &v
	}
	if o.StartedAt != nil {
		t := *o.StartedAt
		c.StartedAt = &t
	}
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
