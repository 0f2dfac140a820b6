package cyclecount

import (
	"context"
	"fmt"
	"time"

	"millstock/internal/core/apperror"
	appctx "millstock/internal/core/context"
	"millstock/internal/core/id"
	"millstock/internal/core/lockkey"
	"millstock/internal/core/numerator"
	"millstock/internal/core/tx"
	"millstock/internal/core/types"
	"millstock/internal/domain"
	"millstock/internal/domain/audit"
	"millstock/internal/domain/documents"
	"millstock/internal/domain/documents/adjustment"
	"millstock/internal/domain/events"
	"millstock/internal/domain/posting"
	"millstock/internal/domain/registers/stock"
	"millstock/pkg/logger"
)

// BatchReader reads batches.
type BatchReader interface {
	GetBatch(ctx context.Context, batchID id.ID) (*stock.Batch, error)
}

// Adjustments creates and commits the adjustment of a completed count.
type Adjustments interface {
	Create(ctx context.Context, o *adjustment.Order) error
	Commit(ctx context.Context, orderID id.ID) (*adjustment.Order, error)
}

// Service provides business operations for cycle counts.
type Service struct {
	repo          Repository
	postingEngine *posting.Engine
	numerator     numerator.Generator
	txManager     tx.Manager
	batches       BatchReader
	adjustments   Adjustments
}

// NewService creates a new cycle count service.
func NewService(
	repo Repository,
	postingEngine *posting.Engine,
	numerator numerator.Generator,
	txManager tx.Manager,
	batches BatchReader,
	adjustments Adjustments,
) *Service {
	return &Service{
		repo:          repo,
		postingEngine: postingEngine,
		numerator:     numerator,
		txManager:     txManager,
		batches:       batches,
		adjustments:   adjustments,
	}
}

// Create validates and stores a planned count.
func (s *Service) Create(ctx context.Context, o *Order) error {
	o.Status = StatusPlanned
	o.StartedAt, o.CommittedAt, o.AdjustmentID = nil, nil, nil
	o.Date = orderDate(o.Date)
	if o.Operator == "" {
		o.Operator = appctx.OperatorName(ctx)
	}
	for i := range o.Lines {
		o.Lines[i].BookQuantity = 0
		o.Lines[i].CountedQuantity = nil
	}
	o.Recalculate()

	if err := o.Validate(ctx); err != nil {
		return err
	}
	if err := s.checkBatches(ctx, o); err != nil {
		return err
	}

	numbering := documents.NewNumbering(s.numerator, numerator.PrefixCycleCount, NumeratorStrategy, o.Number)
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := numbering.Assign(ctx, &o.Number, o.Date); err != nil {
			return err
		}
		if err := s.repo.Create(ctx, o); err != nil {
			return fmt.Errorf("create cycle count: %w", err)
		}
		return nil
	})
	if err != nil {
		numbering.Reset(&o.Number)
		return err
	}

	logger.Info(ctx, "cycle count created", "id", o.ID, "number", o.Number, "batches", len(o.Lines))
	return nil
}

func (s *Service) checkBatches(ctx context.Context, o *Order) error {
	for i, line := range o.Lines {
		if _, err := s.batches.GetBatch(ctx, line.BatchID); err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				appErr.WithDetail("lineNo", i+1)
			}
			return err
		}
	}
	return nil
}

// GetByID retrieves a cycle count.
func (s *Service) GetByID(ctx context.Context, orderID id.ID) (*Order, error) {
	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound(EntityName, orderID)
		}
		return nil, err
	}
	return o, nil
}

// List returns a page of cycle counts.
func (s *Service) List(ctx context.Context, filter documents.ListFilter) (domain.ListResult[*Order], error) {
	return s.repo.List(ctx, filter)
}

// Update replaces the batch list of a planned count.
func (s *Service) Update(ctx context.Context, o *Order) error {
	o.Date = orderDate(o.Date)
	o.Recalculate()
	return s.postingEngine.Run(ctx, []string{lockkey.Order(o.ID)}, func(ctx context.Context) error {
		cur, err := s.GetByID(ctx, o.ID)
		if err != nil {
			return err
		}
		if cur.Status != StatusPlanned {
			return apperror.NewStateTransition(EntityName, string(cur.Status), string(StatusPlanned)).
				WithDetail("reason", "only planned counts can be edited")
		}
		o.Number = cur.Number
		o.Status = cur.Status
		o.CreatedAt = cur.CreatedAt
		o.StartedAt, o.CommittedAt, o.AdjustmentID = nil, nil, nil
		for i := range o.Lines {
			o.Lines[i].BookQuantity = 0
			o.Lines[i].CountedQuantity = nil
		}
		if err := o.Validate(ctx); err != nil {
			return err
		}
		if err := s.checkBatches(ctx, o); err != nil {
			return err
		}
		return s.repo.Update(ctx, o)
	})
}

// Start snapshots the book quantity of every batch and opens counting.
func (s *Service) Start(ctx context.Context, orderID id.ID) (*Order, error) {
	pre, err := s.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	var out *Order
	_, err = s.postingEngine.Execute(ctx, posting.Command{
		Name:       "cycle_count.start",
		EntityType: EntityName,
		EntityID:   orderID,
		Action:     audit.ActionUpdate,
		Keys:       s.keys(pre),
		Plan: func(ctx context.Context) (*posting.MovementSet, error) {
			cur, err := s.GetByID(ctx, orderID)
			if err != nil {
				return nil, err
			}
			if err := Transitions.Check(EntityName, cur.Status, StatusCounting); err != nil {
				return nil, err
			}
			if err := posting.RequireHeld(ctx, EntityName, cur.ID, s.keys(cur)...); err != nil {
				return nil, err
			}
			for i := range cur.Lines {
				b, err := s.batches.GetBatch(ctx, cur.Lines[i].BatchID)
				if err != nil {
					return nil, err
				}
				cur.Lines[i].BookQuantity = b.StockQuantity
				cur.Lines[i].CountedQuantity = nil
			}
			out = cur
			return &posting.MovementSet{Changes: documents.StatusChange(StatusPlanned, StatusCounting)}, nil
		},
		Finish: func(ctx context.Context, _ *posting.Result) error {
			now := time.Now().UTC()
			out.Status = StatusCounting
			out.StartedAt = &now
			return s.repo.Update(ctx, out)
		},
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RecordCount stores the counted quantity of one batch.
func (s *Service) RecordCount(ctx context.Context, orderID, batchID id.ID, counted types.Quantity, remark string) (*Order, error) {
	if counted.IsNegative() {
		return nil, apperror.NewValidation("counted quantity must not be negative").
			WithDetail("field", "countedQuantity")
	}

	var out *Order
	err := s.postingEngine.Run(ctx, []string{lockkey.Order(orderID)}, func(ctx context.Context) error {
		cur, err := s.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		if cur.Status != StatusCounting {
			return apperror.NewStateTransition(EntityName, string(cur.Status), string(StatusCounting)).
				WithDetail("reason", "counts can only be recorded while counting")
		}
		line, ok := cur.Line(batchID)
		if !ok {
			return apperror.NewNotFound("cycle_count_line", batchID)
		}
		q := counted
		line.CountedQuantity = &q
		if remark != "" {
			line.Remark = remark
		}
		if err := s.repo.Update(ctx, cur); err != nil {
			return err
		}
		out = cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Complete closes counting. Lines whose count differs from the book produce
// one adjustment order, committed in the same atomic unit; when every line
// matches no adjustment is created.
func (s *Service) Complete(ctx context.Context, orderID id.ID) ([]*adjustment.Order, error) {
	pre, err := s.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	var (
		out  *Order
		adjs []*adjustment.Order
	)
	_, err = s.postingEngine.Execute(ctx, posting.Command{
		Name:       "cycle_count.complete",
		EntityType: EntityName,
		EntityID:   orderID,
		Action:     audit.ActionComplete,
		Keys:       s.keys(pre),
		Plan: func(ctx context.Context) (*posting.MovementSet, error) {
			cur, err := s.GetByID(ctx, orderID)
			if err != nil {
				return nil, err
			}
			if err := Transitions.Check(EntityName, cur.Status, StatusCompleted); err != nil {
				return nil, err
			}
			for i, l := range cur.Lines {
				if l.CountedQuantity == nil {
					return nil, lineError("batch has not been counted", i).
						WithDetail("batchId", l.BatchID.String())
				}
			}
			out = cur
			set := &posting.MovementSet{Changes: documents.StatusChange(cur.Status, StatusCompleted)}
			set.AddEvent(events.New(EntityName, cur.ID, events.TypeCycleCountDone, map[string]any{
				"number":      cur.Number,
				"differences": countDifferences(cur),
			}))
			return set, nil
		},
		Finish: func(ctx context.Context, _ *posting.Result) error {
			adjs = nil
			adj := s.buildAdjustment(ctx, out)
			if adj != nil {
				if err := s.adjustments.Create(ctx, adj); err != nil {
					return err
				}
				committed, err := s.adjustments.Commit(ctx, adj.ID)
				if err != nil {
					return err
				}
				adjID := committed.ID
				out.AdjustmentID = &adjID
				adjs = append(adjs, committed)
			}
			out.Status = StatusCompleted
			out.MarkCommitted()
			return s.repo.Update(ctx, out)
		},
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "cycle count completed", "id", out.ID, "number", out.Number, "adjustments", len(adjs))
	return adjs, nil
}

// buildAdjustment returns nil when every line matches its book quantity.
func (s *Service) buildAdjustment(ctx context.Context, o *Order) *adjustment.Order {
	adj := adjustment.NewOrder(appctx.OperatorName(ctx))
	countID := o.ID
	adj.CycleCountID = &countID
	adj.Comment = "cycle count " + o.Number

	for _, l := range o.Lines {
		diff := l.Difference()
		switch {
		case diff.IsPositive():
			adj.AddLine(l.BatchID, adjustment.TypeSurplus, "", diff, l.Remark)
		case diff.IsNegative():
			adj.AddLine(l.BatchID, adjustment.TypeShortage, "", diff.Neg(), l.Remark)
		}
	}
	if len(adj.Lines) == 0 {
		return nil
	}
	return adj
}

// Cancel cancels a count that has not completed.
func (s *Service) Cancel(ctx context.Context, orderID id.ID) (*Order, error) {
	var out *Order
	_, err := s.postingEngine.Execute(ctx, posting.Command{
		Name:       "cycle_count.cancel",
		EntityType: EntityName,
		EntityID:   orderID,
		Action:     audit.ActionCancel,
		Keys:       []string{lockkey.Order(orderID)},
		Plan: func(ctx context.Context) (*posting.MovementSet, error) {
			cur, err := s.GetByID(ctx, orderID)
			if err != nil {
				return nil, err
			}
			if err := Transitions.Check(EntityName, cur.Status, StatusCancelled); err != nil {
				return nil, err
			}
			out = cur
			return &posting.MovementSet{Changes: documents.StatusChange(cur.Status, StatusCancelled)}, nil
		},
		Finish: func(ctx context.Context, _ *posting.Result) error {
			out.Status = StatusCancelled
			return s.repo.Update(ctx, out)
		},
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) keys(o *Order) []string {
	keys := []string{lockkey.Order(o.ID)}
	for _, l := range o.Lines {
		keys = append(keys, lockkey.Batch(l.BatchID))
	}
	return keys
}

func countDifferences(o *Order) int {
	n := 0
	for _, l := range o.Lines {
		if !l.Difference().IsZero() {
			n++
		}
	}
	return n
}
