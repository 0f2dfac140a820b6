package posting

import (
	"strings"

	"millstock/internal/core/id"
	"millstock/internal/core/types"
	"millstock/internal/domain/events"
	"millstock/internal/domain/ledger"
	"millstock/internal/domain/registers/stock"
)

// MovementSet buffers the effects of one transition. A document builds it
// from its lines; the engine applies it only after every precondition holds.
type MovementSet struct {
	Recorder stock.Recorder

	// Deltas change existing batches. Several deltas on one batch add up.
	Deltas []StockDelta

	// Receipts add stock to the batch identified by color and code, creating
	// it when missing. Receipts with the same key add up to one batch.
	Receipts []BatchReceipt

	// NewBatches must not exist yet.
	NewBatches []NewBatch

	Accounts []ledger.AccountSpec

	// Events are published with the engine's own stock and ledger events.
	Events []events.Event

	// Changes is the audit summary of the transition.
	Changes map[string]any
}

// StockDelta is a signed change of one batch.
type StockDelta struct {
	BatchID id.ID
	Delta   types.Quantity
}

// BatchReceipt is incoming stock for a batch that may not exist yet.
// Spec.InitialQuantity is ignored; Quantity is used instead.
type BatchReceipt struct {
	ColorID  id.ID
	Quantity types.Quantity
	Spec     stock.BatchSpec
}

// NewBatch creates a batch with Spec.InitialQuantity as opening stock.
type NewBatch struct {
	ColorID id.ID
	Spec    stock.BatchSpec
}

// AddDelta appends a stock change.
func (m *MovementSet) AddDelta(batchID id.ID, delta types.Quantity) {
	m.Deltas = append(m.Deltas, StockDelta{BatchID: batchID, Delta: delta})
}

// AddReceipt appends incoming stock for (colorID, spec.Code).
func (m *MovementSet) AddReceipt(colorID id.ID, qty types.Quantity, spec stock.BatchSpec) {
	m.Receipts = append(m.Receipts, BatchReceipt{ColorID: colorID, Quantity: qty, Spec: spec})
}

// AddBatch appends a batch to create.
func (m *MovementSet) AddBatch(colorID id.ID, spec stock.BatchSpec) {
	m.NewBatches = append(m.NewBatches, NewBatch{ColorID: colorID, Spec: spec})
}

// AddAccount appends an account to open.
func (m *MovementSet) AddAccount(spec ledger.AccountSpec) {
	m.Accounts = append(m.Accounts, spec)
}

// AddEvent appends a domain event.
func (m *MovementSet) AddEvent(e events.Event) {
	m.Events = append(m.Events, e)
}

// Result is what a MovementSet left behind.
type Result struct {
	// Batches maps BatchKey(color, code) to every batch received or created.
	Batches map[string]*stock.Batch

	// Touched lists every batch written, in application order.
	Touched []*stock.Batch

	Accounts []*ledger.Account
}

// Batch returns the batch received or created for (colorID, code).
func (r *Result) Batch(colorID id.ID, code string) *stock.Batch {
	return r.Batches[BatchKey(colorID, code)]
}

// BatchKey identifies a batch by color and code.
func BatchKey(colorID id.ID, code string) string {
	return colorID.String() + "/" + strings.TrimSpace(code)
}
