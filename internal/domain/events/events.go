// Package events defines the domain events written to the transactional
// outbox when a transition commits. Dependent views subscribe to them instead
// of re-reading everything.
package events

import (
	"context"
	"time"

	"millstock/internal/core/id"
)

// Event types.
const (
	TypeOrderCommitted  = "OrderCommitted"
	TypeOrderCancelled  = "OrderCancelled"
	TypeStockChanged    = "StockChanged"
	TypeBatchCreated    = "BatchCreated"
	TypeAccountOpened   = "AccountOpened"
	TypeAccountSettled  = "AccountSettled"
	TypeCycleCountDone  = "CycleCountCompleted"
	TypeDyeingStockedIn = "DyeingStockedIn"
)

// Event is one outbox message.
type Event struct {
	ID            id.ID          `json:"id"`
	AggregateType string         `json:"aggregateType"`
	AggregateID   id.ID          `json:"aggregateId"`
	EventType     string         `json:"eventType"`
	Payload       map[string]any `json:"payload"`
	OccurredAt    time.Time      `json:"occurredAt"`
}

// New creates an event stamped now.
func New(aggregateType string, aggregateID id.ID, eventType string, payload map[string]any) Event {
	return Event{
		ID:            id.New(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
		OccurredAt:    time.Now().UTC(),
	}
}

// Publisher writes events within the transaction carried by ctx, so they
// become visible exactly when the transition commits.
type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
}
