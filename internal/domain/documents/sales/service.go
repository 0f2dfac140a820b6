package sales

import (
	"context"
	"fmt"

	"millstock/internal/core/apperror"
	appctx "millstock/internal/core/context"
	"millstock/internal/core/id"
	"millstock/internal/core/lockkey"
	"millstock/internal/core/numerator"
	"millstock/internal/core/tx"
	"millstock/internal/core/types"
	"millstock/internal/domain"
	"millstock/internal/domain/audit"
	"millstock/internal/domain/catalogs/counterparty"
	"millstock/internal/domain/documents"
	"millstock/internal/domain/events"
	"millstock/internal/domain/ledger"
	"millstock/internal/domain/posting"
	"millstock/internal/domain/registers/stock"
	"millstock/pkg/logger"
)

// StockChecker reads batch stock.
type StockChecker interface {
	GetBatch(ctx context.Context, batchID id.ID) (*stock.Batch, error)
	CheckStock(ctx context.Context, batchID id.ID, qty types.Quantity) (bool, error)
}

// CounterpartyChecker resolves a counterparty in a role.
type CounterpartyChecker interface {
	Require(ctx context.Context, cpID id.ID, role counterparty.Type, field string) (*counterparty.Counterparty, error)
}

// Service provides business operations for sales orders.
type Service struct {
	repo           Repository
	postingEngine  *posting.Engine
	numerator      numerator.Generator
	txManager      tx.Manager
	stock          StockChecker
	counterparties CounterpartyChecker
	hooks          *domain.HookRegistry[*Order]
}

// NewService creates a new sales order service.
func NewService(
	repo Repository,
	postingEngine *posting.Engine,
	numerator numerator.Generator,
	txManager tx.Manager,
	stockChecker StockChecker,
	counterparties CounterpartyChecker,
) *Service {
	return &Service{
		repo:           repo,
		postingEngine:  postingEngine,
		numerator:      numerator,
		txManager:      txManager,
		stock:          stockChecker,
		counterparties: counterparties,
		hooks:          domain.NewHookRegistry[*Order](),
	}
}

// Hooks returns the hook registry for registering callbacks.
func (s *Service) Hooks() *domain.HookRegistry[*Order] {
	return s.hooks
}

// Create validates and stores a draft order. Stock is not reserved; it is
// checked again on commit.
func (s *Service) Create(ctx context.Context, o *Order) error {
	o.Status = StatusDraft
	o.CommittedAt = nil
	o.Date = orderDate(o.Date)
	if o.Operator == "" {
		o.Operator = appctx.OperatorName(ctx)
	}
	o.Recalculate()

	if err := s.hooks.Run(ctx, domain.BeforeCreate, o); err != nil {
		return err
	}
	if err := o.Validate(ctx); err != nil {
		return err
	}
	if err := s.checkRefs(ctx, o); err != nil {
		return err
	}

	numbering := documents.NewNumbering(s.numerator, numerator.PrefixSales, NumeratorStrategy, o.Number)
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := numbering.Assign(ctx, &o.Number, o.Date); err != nil {
			return err
		}
		if err := s.repo.Create(ctx, o); err != nil {
			return fmt.Errorf("create sales order: %w", err)
		}
		return nil
	})
	if err != nil {
		numbering.Reset(&o.Number)
		return err
	}

	if err := s.hooks.Run(ctx, domain.AfterCreate, o); err != nil {
		logger.Warn(ctx, "after-create hook failed", "error", err)
	}

	logger.Info(ctx, "sales order created", "id", o.ID, "number", o.Number, "total", o.TotalAmount.String())
	return nil
}

func (s *Service) checkRefs(ctx context.Context, o *Order) error {
	if _, err := s.counterparties.Require(ctx, o.CustomerID, counterparty.TypeCustomer, "customerId"); err != nil {
		return err
	}
	for i, line := range o.Lines {
		if _, err := s.stock.GetBatch(ctx, line.BatchID); err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				appErr.WithDetail("lineNo", i+1)
			}
			return err
		}
	}
	return nil
}

// GetByID retrieves a sales order.
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

// List returns a page of sales orders.
func (s *Service) List(ctx context.Context, filter documents.ListFilter) (domain.ListResult[*Order], error) {
	return s.repo.List(ctx, filter)
}

// Update replaces the editable part of a draft order.
func (s *Service) Update(ctx context.Context, o *Order) error {
	o.Date = orderDate(o.Date)
	o.Recalculate()
	if err := s.hooks.Run(ctx, domain.BeforeUpdate, o); err != nil {
		return err
	}

	err := s.postingEngine.Run(ctx, []string{lockkey.Order(o.ID)}, func(ctx context.Context) error {
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
		o.CommittedAt = nil
		if err := o.Validate(ctx); err != nil {
			return err
		}
		if err := s.checkRefs(ctx, o); err != nil {
			return err
		}
		return s.repo.Update(ctx, o)
	})
	if err != nil {
		return err
	}

	if err := s.hooks.Run(ctx, domain.AfterUpdate, o); err != nil {
		logger.Warn(ctx, "after-update hook failed", "error", err)
	}
	return nil
}

// CheckStock reports whether the batch holds at least qty.
func (s *Service) CheckStock(ctx context.Context, batchID id.ID, qty types.Quantity) (bool, error) {
	return s.stock.CheckStock(ctx, batchID, qty)
}

// Review marks a draft as reviewed.
func (s *Service) Review(ctx context.Context, orderID id.ID) (*Order, error) {
	return s.transition(ctx, orderID, StatusReviewed, audit.ActionUpdate)
}

// Unreview returns a reviewed order to draft.
func (s *Service) Unreview(ctx context.Context, orderID id.ID) (*Order, error) {
	return s.transition(ctx, orderID, StatusDraft, audit.ActionUpdate)
}

// Cancel cancels an unshipped order.
func (s *Service) Cancel(ctx context.Context, orderID id.ID) (*Order, error) {
	return s.transition(ctx, orderID, StatusCancelled, audit.ActionCancel)
}

func (s *Service) transition(ctx context.Context, orderID id.ID, to Status, action audit.Action) (*Order, error) {
	var out *Order
	_, err := s.postingEngine.Execute(ctx, posting.Command{
		Name:       "sales." + string(action),
		EntityType: EntityName,
		EntityID:   orderID,
		Action:     action,
		Keys:       []string{lockkey.Order(orderID)},
		Plan: func(ctx context.Context) (*posting.MovementSet, error) {
			cur, err := s.GetByID(ctx, orderID)
			if err != nil {
				return nil, err
			}
			if err := Transitions.Check(EntityName, cur.Status, to); err != nil {
				return nil, err
			}
			set := &posting.MovementSet{Changes: documents.StatusChange(cur.Status, to)}
			if to == StatusCancelled {
				set.AddEvent(events.New(EntityName, cur.ID, events.TypeOrderCancelled, map[string]any{
					"number": cur.Number,
				}))
			}
			out = cur
			return set, nil
		},
		Finish: func(ctx context.Context, _ *posting.Result) error {
			out.Status = to
			return s.repo.Update(ctx, out)
		},
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Commit ships the order. Quantities are summed per batch and every batch
// is checked before the first one is deducted; a single shortfall rejects the
// whole order with no batch touched.
func (s *Service) Commit(ctx context.Context, orderID id.ID) (*Order, error) {
	pre, err := s.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	keys := []string{lockkey.Order(orderID)}
	for _, l := range pre.Lines {
		keys = append(keys, lockkey.Batch(l.BatchID))
	}

	var out *Order
	_, err = s.postingEngine.Execute(ctx, posting.Command{
		Name:       "sales.commit",
		EntityType: EntityName,
		EntityID:   orderID,
		Action:     audit.ActionCommit,
		Keys:       keys,
		Plan: func(ctx context.Context) (*posting.MovementSet, error) {
			cur, err := s.GetByID(ctx, orderID)
			if err != nil {
				return nil, err
			}
			if err := Transitions.Check(EntityName, cur.Status, StatusShipped); err != nil {
				return nil, err
			}
			if err := cur.Validate(ctx); err != nil {
				return nil, err
			}

			set := &posting.MovementSet{
				Recorder: stock.Recorder{Type: stock.RecorderSales, ID: cur.ID, Number: cur.Number},
				Changes:  documents.StatusChange(cur.Status, StatusShipped),
			}
			for batchID, qty := range cur.QuantityByBatch() {
				set.AddDelta(batchID, qty.Neg())
			}
			if cur.Unreceived().IsPositive() {
				set.AddAccount(ledger.AccountSpec{
					Kind:           ledger.KindReceivable,
					CounterpartyID: cur.CustomerID,
					OrderID:        cur.ID,
					OrderNumber:    cur.Number,
					OrderType:      EntityName,
					TotalAmount:    cur.TotalAmount,
					PaidAmount:     cur.ReceivedAmount,
				})
			}
			set.AddEvent(events.New(EntityName, cur.ID, events.TypeOrderCommitted, map[string]any{
				"number":      cur.Number,
				"totalAmount": cur.TotalAmount.String(),
			}))
			out = cur
			return set, nil
		},
		Finish: func(ctx context.Context, _ *posting.Result) error {
			out.Status = StatusShipped
			out.MarkCommitted()
			return s.repo.Update(ctx, out)
		},
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "sales order shipped", "id", out.ID, "number", out.Number)
	return out, nil
}
