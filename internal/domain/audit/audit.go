// Package audit defines the audit trail of committed state transitions.
package audit

import (
	"context"
	"fmt"
	"time"

	appctx "millstock/internal/core/context"
	"millstock/internal/core/id"
)

// Action is the audited operation.
type Action string

const (
	ActionCreate   Action = "create"
	ActionUpdate   Action = "update"
	ActionCommit   Action = "commit"
	ActionCancel   Action = "cancel"
	ActionSettle   Action = "settle"
	ActionStockIn  Action = "stock_in"
	ActionComplete Action = "complete"
)

// Entry is one audit record.
type Entry struct {
	ID         id.ID          `json:"id"`
	EntityType string         `json:"entityType"`
	EntityID   id.ID          `json:"entityId"`
	Action     Action         `json:"action"`
	Operator   string         `json:"operator"`
	RequestID  string         `json:"requestId,omitempty"`
	Changes    map[string]any `json:"changes,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// Sink stores audit records inside the caller's transaction.
type Sink interface {
	Record(ctx context.Context, entry Entry) error
}

// DefaultHistoryLimit caps History when the caller passes no limit.
const DefaultHistoryLimit = 100

// Log is a Sink that can also be read back.
type Log interface {
	Sink
	// History returns the entries of one entity, newest first.
	History(ctx context.Context, entityType string, entityID id.ID, limit int) ([]Entry, error)
}

// NewEntry fills id, operator and timestamp.
func NewEntry(ctx context.Context, entityType string, entityID id.ID, action Action, changes map[string]any) Entry {
	return Entry{
		ID:         id.New(),
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		Operator:   appctx.OperatorName(ctx),
		RequestID:  appctx.GetRequestID(ctx),
		Changes:    changes,
		CreatedAt:  time.Now().UTC(),
	}
}

// Diff returns {"field": {"old": .., "new": ..}} for every differing key.
func Diff(oldState, newState map[string]any) map[string]any {
	changes := make(map[string]any)
	for key, newVal := range newState {
		oldVal, exists := oldState[key]
		if !exists || fmt.Sprint(oldVal) != fmt.Sprint(newVal) {
			changes[key] = map[string]any{"old": oldVal, "new": newVal}
		}
	}
	for key, oldVal := range oldState {
		if _, exists := newState[key]; !exists {
			changes[key] = map[string]any{"old": oldVal, "new": nil}
		}
	}
	return changes
}
