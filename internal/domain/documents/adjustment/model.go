// Package adjustment provides the stock adjustment order (调整单): direct
// corrections of batch stock with a typed reason per line.
package adjustment

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

// Status of an adjustment order.
type Status string

const (
	StatusDraft     Status = "草稿"
	StatusCompleted Status = "已完成"
	StatusCancelled Status = "已取消"
)

// Transitions is the adjustment order lifecycle.
var Transitions = documents.Transitions[Status]{
	StatusDraft: {StatusCompleted, StatusCancelled},
}

func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// LineType is the reason class of a line; it fixes the sign except for
// transfers and "other", which carry a Direction.
type LineType string

const (
	TypeSurplus  LineType = "盘盈" // count surplus, +
	TypeShortage LineType = "盘亏" // count shortage, -
	TypeDamage   LineType = "报损" // write-off, -
	TypeOverflow LineType = "报溢" // found stock, +
	TypeTransfer LineType = "调拨" // in or out
	TypeOther    LineType = "其他" // in or out
)

// Direction of a transfer or other line.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

func (t LineType) IsValid() bool {
	switch t {
	case TypeSurplus, TypeShortage, TypeDamage, TypeOverflow, TypeTransfer, TypeOther:
		return true
	}
	return false
}

// NeedsDirection reports whether the sign comes from the line's Direction.
func (t LineType) NeedsDirection() bool {
	return t == TypeTransfer || t == TypeOther
}

// Order is an adjustment order.
type Order struct {
	entity.Document

	Status Status `db:"status" json:"status"`

	// CycleCountID links an adjustment generated by a cycle count
	CycleCountID *id.ID `db:"cycle_count_id" json:"cycleCountId,omitempty"`

	Lines entity.Lines[Line] `db:"lines" json:"lines"`
}

// Line is one correction.
type Line struct {
	LineNo    int            `json:"lineNo"`
	BatchID   id.ID          `json:"batchId"`
	Type      LineType       `json:"type"`
	Direction Direction      `json:"direction,omitempty"`
	Quantity  types.Quantity `json:"quantity"`
	Reason    string         `json:"reason,omitempty"`
}

// SignedQuantity is the stock delta of the line.
func (l Line) SignedQuantity() types.Quantity {
	switch l.Type {
	case TypeShortage, TypeDamage:
		return l.Quantity.Neg()
	case TypeTransfer, TypeOther:
		if l.Direction == DirectionOut {
			return l.Quantity.Neg()
		}
	}
	return l.Quantity
}

// NewOrder creates a draft adjustment order.
func NewOrder(operator string) *Order {
	return &Order{
		Document: entity.NewDocument(operator),
		Status:   StatusDraft,
		Lines:    make(entity.Lines[Line], 0),
	}
}

// AddLine appends a line. dir is only meaningful for 调拨 and 其他.
func (o *Order) AddLine(batchID id.ID, t LineType, dir Direction, qty types.Quantity, reason string) {
	o.Lines = append(o.Lines, Line{BatchID: batchID, Type: t, Direction: dir, Quantity: qty, Reason: reason})
	o.Recalculate()
}

// Recalculate renumbers lines.
func (o *Order) Recalculate() {
	for i := range o.Lines {
		o.Lines[i].LineNo = i + 1
		o.Lines[i].Reason = strings.TrimSpace(o.Lines[i].Reason)
	}
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
		return apperror.NewValidation("at least one line is required").
			WithDetail("field", "lines")
	}
	for i, line := range o.Lines {
		if id.IsNil(line.BatchID) {
			return lineError("batch is required", i)
		}
		if !line.Type.IsValid() {
			return lineError("invalid adjustment type", i).WithDetail("type", string(line.Type))
		}
		if line.Type.NeedsDirection() {
			if line.Direction != DirectionIn && line.Direction != DirectionOut {
				return lineError("direction must be in or out", i).WithDetail("type", string(line.Type))
			}
		} else if line.Direction != "" {
			return lineError("direction is only allowed for transfer and other lines", i)
		}
		if !line.Quantity.IsPositive() {
			return lineError("quantity must be positive", i)
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
	if o.CycleCountID != nil {
		v := *o.CycleCountID
		c.CycleCountID = &v
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
