package purchase

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
	"millstock/internal/domain/catalogs/color"
	"millstock/internal/domain/catalogs/counterparty"
	"millstock/internal/domain/documents"
	"millstock/internal/domain/events"
	"millstock/internal/domain/ledger"
	"millstock/internal/domain/posting"
	"millstock/internal/domain/registers/stock"
	"millstock/pkg/logger"
)

// ColorReader resolves line colors.
type ColorReader interface {
	GetByID(ctx context.Context, id id.ID) (*color.Color, error)
}

// CounterpartyChecker resolves a counterparty in a role.
type CounterpartyChecker interface {
	Require(ctx context.Context, cpID id.ID, role counterparty.Type, field string) (*counterparty.Counterparty, error)
}

// Service provides business operations for purchase orders.
type Service struct {
	repo           Repository
	postingEngine  *posting.Engine
	numerator      numerator.Generator
	txManager      tx.Manager
	colors         ColorReader
	counterparties CounterpartyChecker
	hooks          *domain.HookRegistry[*Order]
}

// NewService creates a new purchase order service.
func NewService(
	repo Repository,
	postingEngine *posting.Engine,
	numerator numerator.Generator,
	txManager tx.Manager,
	colors ColorReader,
	counterparties CounterpartyChecker,
) *Service {
	return &Service{
		repo:           repo,
		postingEngine:  postingEngine,
		numerator:      numerator,
		txManager:      txManager,
		colors:         colors,
		counterparties: counterparties,
		hooks:          domain.NewHookRegistry[*Order](),
	}
}

// Hooks returns the hook registry for registering callbacks.
func (s *Service) Hooks() *domain.HookRegistry[*Order] {
	return s.hooks
}

// Create validates and stores a draft order.
func (s *Service) Create(ctx context.Context, o *Order) error {
	o.Status = StatusDraft
	o.CommittedAt = nil
	o.Date = orderDate(o.Date)
	if o.Operator == "" {
		o.Operator = appctx.OperatorName(ctx)
	}
	for i := range o.Lines {
		o.Lines[i].BatchID = nil
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

	numbering := documents.NewNumbering(s.numerator, numerator.PrefixPurchase, NumeratorStrategy, o.Number)
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := numbering.Assign(ctx, &o.Number, o.Date); err != nil {
			return err
		}
		if err := s.repo.Create(ctx, o); err != nil {
			return fmt.Errorf("create purchase order: %w", err)
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

	logger.Info(ctx, "purchase order created",
		"id", o.ID,
		"number", o.Number,
		"total", o.TotalAmount.String())
	return nil
}

// checkRefs verifies the supplier and that each color belongs to its line's
// product.
func (s *Service) checkRefs(ctx context.Context, o *Order) error {
	if _, err := s.counterparties.Require(ctx, o.SupplierID, counterparty.TypeSupplier, "supplierId"); err != nil {
		return err
	}
	for i, line := range o.Lines {
		c, err := s.colors.GetByID(ctx, line.ColorID)
		if err != nil {
			if apperror.IsNotFound(err) {
				return apperror.NewNotFound("color", line.ColorID).WithDetail("lineNo", i+1)
			}
			return err
		}
		if c.ProductID != line.ProductID {
			return lineError("color does not belong to product", i).
				WithDetail("colorId", line.ColorID.String()).
				WithDetail("productId", line.ProductID.String())
		}
	}
	return nil
}

// GetByID retrieves a purchase order.
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

// List returns a page of purchase orders.
func (s *Service) List(ctx context.Context, filter documents.ListFilter) (domain.ListResult[*Order], error) {
	return s.repo.List(ctx, filter)
}

// Update replaces the editable part of a draft order. o.Version must be the
// version the caller read.
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

// Review marks a draft as reviewed.
func (s *Service) Review(ctx context.Context, orderID id.ID) (*Order, error) {
	return s.transition(ctx, orderID, StatusReviewed, audit.ActionUpdate)
}

// Unreview returns a reviewed order to draft.
func (s *Service) Unreview(ctx context.Context, orderID id.ID) (*Order, error) {
	return s.transition(ctx, orderID, StatusDraft, audit.ActionUpdate)
}

// Cancel cancels an uncommitted order.
func (s *Service) Cancel(ctx context.Context, orderID id.ID) (*Order, error) {
	return s.transition(ctx, orderID, StatusCancelled, audit.ActionCancel)
}

// transition changes status without stock or ledger effects.
func (s *Service) transition(ctx context.Context, orderID id.ID, to Status, action audit.Action) (*Order, error) {
	var out *Order
	_, err := s.postingEngine.Execute(ctx, posting.Command{
		Name:       "purchase." + string(action),
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

// Commit receives the goods: each line's quantity lands in the batch of its
// color and batch code, created when missing, and the unpaid rest becomes a
// payable. Either all of it happens or none.
func (s *Service) Commit(ctx context.Context, orderID id.ID) (*Order, error) {
	pre, err := s.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	keys := []string{lockkey.Order(orderID)}
	for _, l := range pre.Lines {
		keys = append(keys, lockkey.BatchCode(l.ColorID, l.BatchCode))
	}

	var out *Order
	res, err := s.postingEngine.Execute(ctx, posting.Command{
		Name:       "purchase.commit",
		EntityType: EntityName,
		EntityID:   orderID,
		Action:     audit.ActionCommit,
		Keys:       keys,
		Plan: func(ctx context.Context) (*posting.MovementSet, error) {
			cur, err := s.GetByID(ctx, orderID)
			if err != nil {
				return nil, err
			}
			if err := Transitions.Check(EntityName, cur.Status, StatusReceived); err != nil {
				return nil, err
			}
			if err := cur.Validate(ctx); err != nil {
				return nil, err
			}

			set := &posting.MovementSet{
				Recorder: stock.Recorder{Type: stock.RecorderPurchase, ID: cur.ID, Number: cur.Number},
				Changes:  documents.StatusChange(cur.Status, StatusReceived),
			}
			supplierID := cur.SupplierID
			for _, l := range cur.Lines {
				set.AddReceipt(l.ColorID, l.Quantity, stock.BatchSpec{
					Code:          l.BatchCode,
					PurchasePrice: l.UnitPrice,
					SupplierID:    &supplierID,
					StockLocation: cur.StockLocation,
				})
			}
			if cur.Unpaid().IsPositive() {
				set.AddAccount(ledger.AccountSpec{
					Kind:           ledger.KindPayable,
					CounterpartyID: cur.SupplierID,
					OrderID:        cur.ID,
					OrderNumber:    cur.Number,
					OrderType:      EntityName,
					TotalAmount:    cur.TotalAmount,
					PaidAmount:     cur.PaidAmount,
				})
			}
			set.AddEvent(events.New(EntityName, cur.ID, events.TypeOrderCommitted, map[string]any{
				"number":      cur.Number,
				"totalAmount": cur.TotalAmount.String(),
			}))
			out = cur
			return set, nil
		},
		Finish: func(ctx context.Context, res *posting.Result) error {
			for i := range out.Lines {
				l := &out.Lines[i]
				b := res.Batch(l.ColorID, l.BatchCode)
				if b == nil {
					return apperror.NewInternal(fmt.Errorf("no batch resolved for line %d", l.LineNo))
				}
				batchID := b.ID
				l.BatchID = &batchID
			}
			out.Status = StatusReceived
			out.MarkCommitted()
			return s.repo.Update(ctx, out)
		},
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "purchase order received",
		"id", out.ID, "number", out.Number, "batches", len(res.Touched), "accounts", len(res.Accounts))
	return out, nil
}
