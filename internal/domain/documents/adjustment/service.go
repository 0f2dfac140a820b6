package adjustment

import (
	"context"
	"fmt"

	"millstock/internal/core/apperror"
	appctx "millstock/internal/core/context"
	"millstock/internal/core/id"
	"millstock/internal/core/lockkey"
	"millstock/internal/core/numerator"
	"millstock/internal/core/tx"
	"millstock/internal/domain"
	"millstock/internal/domain/audit"
	"millstock/internal/domain/documents"
	"millstock/internal/domain/events"
	"millstock/internal/domain/posting"
	"millstock/internal/domain/registers/stock"
	"millstock/pkg/logger"
)

// BatchReader reads batches.
type BatchReader interface {
	GetBatch(ctx context.Context, batchID id.ID) (*stock.Batch, error)
}

// Service provides business operations for adjustment orders.
type Service struct {
	repo          Repository
	postingEngine *posting.Engine
	numerator     numerator.Generator
	txManager     tx.Manager
	batches       BatchReader
}

// NewService creates a new adjustment order service.
func NewService(
	repo Repository,
	postingEngine *posting.Engine,
	numerator numerator.Generator,
	txManager tx.Manager,
	batches BatchReader,
) *Service {
	return &Service{
		repo:          repo,
		postingEngine: postingEngine,
		numerator:     numerator,
		txManager:     txManager,
		batches:       batches,
	}
}

// Create validates and stores a draft order.
func (s *Service) Create(ctx context.Context, o *Order) error {
	o.Status = StatusDraft
	o.CommittedAt = nil
	o.Date = orderDate(o.Date)
	if o.Operator == "" {
		o.Operator = appctx.OperatorName(ctx)
	}
	o.Recalculate()

	if err := o.Validate(ctx); err != nil {
		return err
	}
	if err := s.checkBatches(ctx, o); err != nil {
		return err
	}

	numbering := documents.NewNumbering(s.numerator, numerator.PrefixAdjustment, NumeratorStrategy, o.Number)
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := numbering.Assign(ctx, &o.Number, o.Date); err != nil {
			return err
		}
		if err := s.repo.Create(ctx, o); err != nil {
			return fmt.Errorf("create adjustment order: %w", err)
		}
		return nil
	})
	if err != nil {
		numbering.Reset(&o.Number)
		return err
	}

	logger.Info(ctx, "adjustment order created", "id", o.ID, "number", o.Number, "lines", len(o.Lines))
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

// GetByID retrieves an adjustment order.
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

// List returns a page of adjustment orders.
func (s *Service) List(ctx context.Context, filter documents.ListFilter) (domain.ListResult[*Order], error) {
	return s.repo.List(ctx, filter)
}

// Update replaces the lines of a draft order.
func (s *Service) Update(ctx context.Context, o *Order) error {
	o.Date = orderDate(o.Date)
	o.Recalculate()
	return s.postingEngine.Run(ctx, []string{lockkey.Order(o.ID)}, func(ctx context.Context) error {
		cur, err := s.GetByID(ctx, o.ID)
		if err != nil {
			return err
		}
		if cur.Status != StatusDraft {
			return apperror.NewStateTransition(EntityName, string(cur.Status), string(StatusDraft)).
				WithDetail("reason", "only draft orders can be edited")
		}
		o.Number = cur.Number
		o.Status = cur.Status
		o.CreatedAt = cur.CreatedAt
		o.CycleCountID = cur.CycleCountID
		o.CommittedAt = nil
		if err := o.Validate(ctx); err != nil {
			return err
		}
		if err := s.checkBatches(ctx, o); err != nil {
			return err
		}
		return s.repo.Update(ctx, o)
	})
}

// Commit applies every line's signed quantity. A line that would drive its
// batch below zero rejects the whole order.
func (s *Service) Commit(ctx context.Context, orderID id.ID) (*Order, error) {
	pre, err := s.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	keys := []string{lockkey.Order(orderID)}
	for _, l := range pre.Lines {
		keys = append(keys, lockkey.Batch(l.BatchID))
	}

	recType := stock.RecorderAdjustment
	if pre.CycleCountID != nil {
		recType = stock.RecorderCycleCount
	}

	var out *Order
	_, err = s.postingEngine.Execute(ctx, posting.Command{
		Name:       "adjustment.commit",
		EntityType: EntityName,
		EntityID:   orderID,
		Action:     audit.ActionCommit,
		Keys:       keys,
		Plan: func(ctx context.Context) (*posting.MovementSet, error) {
			cur, err := s.GetByID(ctx, orderID)
			if err != nil {
				return nil, err
			}
			if err := Transitions.Check(EntityName, cur.Status, StatusCompleted); err != nil {
				return nil, err
			}
			if err := cur.Validate(ctx); err != nil {
				return nil, err
			}

			set := &posting.MovementSet{
				Recorder: stock.Recorder{Type: recType, ID: cur.ID, Number: cur.Number, Reason: "stock adjustment"},
				Changes:  documents.StatusChange(cur.Status, StatusCompleted),
			}
			for _, l := range cur.Lines {
				set.AddDelta(l.BatchID, l.SignedQuantity())
			}
			set.AddEvent(events.New(EntityName, cur.ID, events.TypeOrderCommitted, map[string]any{
				"number": cur.Number,
				"lines":  len(cur.Lines),
			}))
			out = cur
			return set, nil
		},
		Finish: func(ctx context.Context, _ *posting.Result) error {
			out.Status = StatusCompleted
			out.MarkCommitted()
			return s.repo.Update(ctx, out)
		},
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "adjustment order completed", "id", out.ID, "number", out.Number)
	return out, nil
}

// Cancel cancels a draft order.
func (s *Service) Cancel(ctx context.Context, orderID id.ID) (*Order, error) {
	var out *Order
	_, err := s.postingEngine.Execute(ctx, posting.Command{
		Name:       "adjustment.cancel",
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
			set := &posting.MovementSet{Changes: documents.StatusChange(cur.Status, StatusCancelled)}
			set.AddEvent(events.New(EntityName, cur.ID, events.TypeOrderCancelled, map[string]any{"number": cur.Number}))
			return set, nil
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
