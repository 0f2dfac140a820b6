// Package posting is the consistency coordinator. Every change to batch
// stock or account balances runs here as one locked, atomic, retried unit.
package posting

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"millstock/internal/core/apperror"
	"millstock/internal/core/id"
	"millstock/internal/core/lockkey"
	"millstock/internal/core/tx"
	"millstock/internal/core/types"
	"millstock/internal/domain/audit"
	"millstock/internal/domain/events"
	"millstock/internal/domain/ledger"
	"millstock/internal/domain/registers/stock"
	"millstock/pkg/logger"
)

var tracer = otel.Tracer("millstock/posting")

// Config tunes the retry loop.
type Config struct {
	// MaxAttempts bounds runs of one unit on CONCURRENT_MODIFICATION
	MaxAttempts int

	// Backoff is multiplied by the attempt number between runs
	Backoff time.Duration
}

// DefaultConfig returns 3 attempts with a 20ms linear backoff.
func DefaultConfig() Config {
	return Config{MaxAttempts: 3, Backoff: 20 * time.Millisecond}
}

// Engine applies movement sets.
type Engine struct {
	txManager tx.Manager
	stock     *stock.Service
	ledger    *ledger.Service
	locker    Locker
	publisher events.Publisher
	audit     audit.Sink
	cfg       Config
}

// NewEngine creates a posting engine.
func NewEngine(
	txManager tx.Manager,
	stockService *stock.Service,
	ledgerService *ledger.Service,
	locker Locker,
	publisher events.Publisher,
	sink audit.Sink,
	cfg Config,
) *Engine {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig().MaxAttempts
	}
	if cfg.Backoff < 0 {
		cfg.Backoff = 0
	}
	return &Engine{
		txManager: txManager,
		stock:     stockService,
		ledger:    ledgerService,
		locker:    locker,
		publisher: publisher,
		audit:     sink,
		cfg:       cfg,
	}
}

type runKey struct{}

// heldKeys are the locks acquired by the outermost unit.
type heldKeys map[string]struct{}

// InRun reports whether ctx belongs to a running unit.
func InRun(ctx context.Context) bool {
	_, ok := ctx.Value(runKey{}).(heldKeys)
	return ok
}

// errUnheldKey marks a plan that reached past the locks it was given. The
// document changed between the read that chose the keys and the locked
// re-read, so another run of the same unit cannot help.
var errUnheldKey = errors.New("plan touches a key that is not held")

// Run executes fn holding keys, inside a transaction, retrying the whole
// unit on CONCURRENT_MODIFICATION. Exhausted retries surface as
// CONCURRENCY_CONFLICT; other errors are returned as is.
//
// A Run nested in another joins it: fn is called inline and the outer unit
// owns locking, commit and retry. Keys a nested unit needs must therefore be
// declared by the outer one.
func (e *Engine) Run(ctx context.Context, keys []string, fn func(ctx context.Context) error) error {
	if InRun(ctx) {
		return fn(ctx)
	}

	keys = lockkey.Normalize(keys)
	ctx, span := tracer.Start(ctx, "posting.Run")
	defer span.End()
	span.SetAttributes(attribute.StringSlice("posting.keys", keys))

	release, err := e.locker.Acquire(ctx, keys)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "lock")
		return fmt.Errorf("acquire locks: %w", err)
	}
	defer release()

	held := make(heldKeys, len(keys))
	for _, k := range keys {
		held[k] = struct{}{}
	}
	runCtx := context.WithValue(ctx, runKey{}, held)

	var lastErr error
	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		err := e.txManager.RunInTransaction(runCtx, fn)
		if err == nil {
			span.SetAttributes(attribute.Int("posting.attempts", attempt))
			return nil
		}
		if !apperror.IsConcurrentModification(err) || errors.Is(err, errUnheldKey) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}

		lastErr = err
		logger.Warn(ctx, "concurrent modification, retrying unit",
			"attempt", attempt, "max_attempts", e.cfg.MaxAttempts, "error", err)

		if attempt < e.cfg.MaxAttempts {
			if err := sleep(ctx, e.cfg.Backoff*time.Duration(attempt)); err != nil {
				return err
			}
		}
	}

	span.SetStatus(codes.Error, "retries exhausted")
	return apperror.NewConcurrencyConflict(e.cfg.MaxAttempts, lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Command is one state transition of a document.
type Command struct {
	// Name labels logs and spans, e.g. "sales.commit"
	Name string

	EntityType string
	EntityID   id.ID
	Action     audit.Action

	// Keys are every lock the transition needs, nested units included
	Keys []string

	// Plan re-reads the document inside the transaction, checks its state and
	// returns the effects to apply. It must not write stock or documents.
	Plan func(ctx context.Context) (*MovementSet, error)

	// Finish runs after the effects were applied; the document stores its
	// new state here.
	Finish func(ctx context.Context, res *Result) error
}

// Execute runs cmd as one atomic unit.
func (e *Engine) Execute(ctx context.Context, cmd Command) (*Result, error) {
	var res *Result
	err := e.Run(ctx, cmd.Keys, func(ctx context.Context) error {
		set, err := cmd.Plan(ctx)
		if err != nil {
			return err
		}
		if err := checkHeld(ctx, cmd.EntityType, cmd.EntityID, set); err != nil {
			return err
		}

		r, evts, err := e.apply(ctx, set)
		if err != nil {
			return err
		}

		if cmd.Finish != nil {
			if err := cmd.Finish(ctx, r); err != nil {
				return err
			}
		}

		evts = append(evts, set.Events...)
		if err := e.publisher.Publish(ctx, evts...); err != nil {
			return fmt.Errorf("publish events: %w", err)
		}

		changes := map[string]any{
			"batchesTouched": len(r.Touched),
			"accountsOpened": len(r.Accounts),
		}
		for k, v := range set.Changes {
			changes[k] = v
		}
		if err := e.audit.Record(ctx, audit.NewEntry(ctx, cmd.EntityType, cmd.EntityID, cmd.Action, changes)); err != nil {
			return fmt.Errorf("audit %s: %w", cmd.Name, err)
		}

		res = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "transition committed",
		"command", cmd.Name, "entity_id", cmd.EntityID,
		"batches", len(res.Touched), "accounts", len(res.Accounts))
	return res, nil
}

// AdjustStock applies a manual correction to one batch.
func (e *Engine) AdjustStock(ctx context.Context, batchID id.ID, delta types.Quantity, reason string) (*stock.Batch, error) {
	rec := stock.Recorder{Type: stock.RecorderManual, ID: id.New(), Reason: reason}

	var out *stock.Batch
	err := e.Run(ctx, []string{lockkey.Batch(batchID)}, func(ctx context.Context) error {
		b, err := e.stock.AdjustStock(ctx, batchID, delta, rec)
		if err != nil {
			return err
		}
		if err := e.publisher.Publish(ctx, stockChanged(b, delta, rec)); err != nil {
			return fmt.Errorf("publish events: %w", err)
		}
		entry := audit.NewEntry(ctx, "batch", b.ID, audit.ActionUpdate, map[string]any{
			"delta":         delta.String(),
			"stockQuantity": b.StockQuantity.String(),
			"reason":        reason,
		})
		if err := e.audit.Record(ctx, entry); err != nil {
			return fmt.Errorf("audit stock adjustment: %w", err)
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// checkHeld verifies that every batch the set changes or creates is
// covered by a held key. Accounts are opened fresh and need none.
func checkHeld(ctx context.Context, entity string, entityID id.ID, set *MovementSet) error {
	if set == nil {
		return nil
	}

	var need []string
	for _, d := range set.Deltas {
		need = append(need, lockkey.Batch(d.BatchID))
	}
	for _, r := range set.Receipts {
		need = append(need, lockkey.BatchCode(r.ColorID, r.Spec.Code))
	}
	for _, nb := range set.NewBatches {
		need = append(need, lockkey.BatchCode(nb.ColorID, nb.Spec.Code))
	}

	return RequireHeld(ctx, entity, entityID, need...)
}

// RequireHeld fails with CONCURRENT_MODIFICATION, not retried, when one of
// keys is not held by the running unit. Plans that only read batches use it
// to detect lines added after the keys were chosen.
func RequireHeld(ctx context.Context, entity string, entityID id.ID, keys ...string) error {
	held, _ := ctx.Value(runKey{}).(heldKeys)
	for _, k := range keys {
		if _, ok := held[k]; !ok {
			return apperror.NewConcurrentModification(entity, entityID.String()).
				WithCause(errUnheldKey).
				WithDetail("key", k)
		}
	}
	return nil
}

type pendingReceipt struct {
	colorID  id.ID
	spec     stock.BatchSpec
	quantity types.Quantity
	existing *stock.Batch
}

// apply validates the whole set, then writes it. A failing precondition
// returns before the first write.
func (e *Engine) apply(ctx context.Context, set *MovementSet) (*Result, []events.Event, error) {
	if set == nil {
		set = &MovementSet{}
	}
	res := &Result{Batches: make(map[string]*stock.Batch)}

	// Validate.

	deltas, err := e.checkDeltas(ctx, set.Deltas)
	if err != nil {
		return nil, nil, err
	}

	receipts, err := e.checkReceipts(ctx, set.Receipts)
	if err != nil {
		return nil, nil, err
	}

	seen := make(map[string]struct{}, len(set.NewBatches))
	for _, nb := range set.NewBatches {
		if err := nb.Spec.Validate(); err != nil {
			return nil, nil, err
		}
		key := BatchKey(nb.ColorID, nb.Spec.Code)
		if _, dup := seen[key]; dup {
			return nil, nil, apperror.NewDuplicate("batch", "code", nb.Spec.Code).
				WithDetail("color_id", nb.ColorID.String())
		}
		seen[key] = struct{}{}
		if _, err := e.stock.FindBatch(ctx, nb.ColorID, nb.Spec.Code); err == nil {
			return nil, nil, apperror.NewDuplicate("batch", "code", nb.Spec.Code).
				WithDetail("color_id", nb.ColorID.String())
		} else if !apperror.IsNotFound(err) {
			return nil, nil, err
		}
	}

	for _, spec := range set.Accounts {
		if err := spec.Validate(); err != nil {
			return nil, nil, err
		}
	}

	// Apply.

	var evts []events.Event

	for _, d := range deltas {
		b, err := e.stock.AdjustStock(ctx, d.BatchID, d.Delta, set.Recorder)
		if err != nil {
			return nil, nil, err
		}
		res.Touched = append(res.Touched, b)
		evts = append(evts, stockChanged(b, d.Delta, set.Recorder))
	}

	for _, r := range receipts {
		var b *stock.Batch
		if r.existing != nil {
			b, err = e.stock.AdjustStock(ctx, r.existing.ID, r.quantity, set.Recorder)
			if err != nil {
				return nil, nil, err
			}
			evts = append(evts, stockChanged(b, r.quantity, set.Recorder))
		} else {
			spec := r.spec
			spec.InitialQuantity = r.quantity
			b, err = e.stock.CreateBatch(ctx, r.colorID, spec, set.Recorder)
			if err != nil {
				return nil, nil, err
			}
			evts = append(evts, batchCreated(b, set.Recorder))
		}
		res.Batches[BatchKey(r.colorID, r.spec.Code)] = b
		res.Touched = append(res.Touched, b)
	}

	for _, nb := range set.NewBatches {
		b, err := e.stock.CreateBatch(ctx, nb.ColorID, nb.Spec, set.Recorder)
		if err != nil {
			return nil, nil, err
		}
		res.Batches[BatchKey(nb.ColorID, nb.Spec.Code)] = b
		res.Touched = append(res.Touched, b)
		evts = append(evts, batchCreated(b, set.Recorder))
	}

	for _, spec := range set.Accounts {
		a, err := e.ledger.Open(ctx, spec)
		if err != nil {
			return nil, nil, err
		}
		res.Accounts = append(res.Accounts, a)
		evts = append(evts, events.New("account", a.ID, events.TypeAccountOpened, map[string]any{
			"kind":           string(a.Kind),
			"counterpartyId": a.CounterpartyID.String(),
			"orderId":        a.OrderID.String(),
			"totalAmount":    a.TotalAmount.String(),
			"unpaidAmount":   a.UnpaidAmount.String(),
		}))
	}

	return res, evts, nil
}

// checkDeltas folds deltas per batch and checks that no batch goes negative.
// Batches are returned in id order; folded deltas of zero are dropped.
func (e *Engine) checkDeltas(ctx context.Context, in []StockDelta) ([]StockDelta, error) {
	folded := make(map[id.ID]types.Quantity, len(in))
	for _, d := range in {
		if d.Delta.IsZero() {
			return nil, apperror.NewValidation("stock delta must not be zero").
				WithDetail("batch_id", d.BatchID.String())
		}
		folded[d.BatchID] = folded[d.BatchID].Add(d.Delta)
	}

	out := make([]StockDelta, 0, len(folded))
	for batchID, delta := range folded {
		if delta.IsZero() {
			continue
		}
		out = append(out, StockDelta{BatchID: batchID, Delta: delta})
	}
	sort.Slice(out, func(i, j int) bool { return id.Compare(out[i].BatchID, out[j].BatchID) < 0 })

	for _, d := range out {
		b, err := e.stock.GetBatch(ctx, d.BatchID)
		if err != nil {
			return nil, err
		}
		if b.StockQuantity.Add(d.Delta).IsNegative() {
			return nil, apperror.NewInsufficientStock(b.ID.String(), d.Delta.Neg().String(), b.StockQuantity.String()).
				WithDetail("batch_code", b.Code)
		}
	}
	return out, nil
}

// checkReceipts groups receipts by color and code and resolves which
// batches already exist.
func (e *Engine) checkReceipts(ctx context.Context, in []BatchReceipt) ([]*pendingReceipt, error) {
	groups := make(map[string]*pendingReceipt, len(in))
	var out []*pendingReceipt
	for _, r := range in {
		if !r.Quantity.IsPositive() {
			return nil, apperror.NewValidation("received quantity must be positive").
				WithDetail("field", "quantity").
				WithDetail("batch_code", r.Spec.Code)
		}
		spec := r.Spec
		spec.InitialQuantity = r.Quantity
		if err := spec.Validate(); err != nil {
			return nil, err
		}

		key := BatchKey(r.ColorID, r.Spec.Code)
		if p, ok := groups[key]; ok {
			p.quantity = p.quantity.Add(r.Quantity)
			continue
		}
		p := &pendingReceipt{colorID: r.ColorID, spec: r.Spec, quantity: r.Quantity}
		groups[key] = p
		out = append(out, p)
	}

	for _, p := range out {
		b, err := e.stock.FindBatch(ctx, p.colorID, p.spec.Code)
		switch {
		case err == nil:
			p.existing = b
		case apperror.IsNotFound(err):
		default:
			return nil, err
		}
	}
	return out, nil
}

func stockChanged(b *stock.Batch, delta types.Quantity, rec stock.Recorder) events.Event {
	return events.New("batch", b.ID, events.TypeStockChanged, map[string]any{
		"colorId":        b.ColorID.String(),
		"delta":          delta.String(),
		"stockQuantity":  b.StockQuantity.String(),
		"recorderType":   string(rec.Type),
		"recorderId":     rec.ID.String(),
		"recorderNumber": rec.Number,
	})
}

func batchCreated(b *stock.Batch, rec stock.Recorder) events.Event {
	return events.New("batch", b.ID, events.TypeBatchCreated, map[string]any{
		"colorId":         b.ColorID.String(),
		"code":            b.Code,
		"initialQuantity": b.InitialQuantity.String(),
		"recorderType":    string(rec.Type),
		"recorderId":      rec.ID.String(),
	})
}
