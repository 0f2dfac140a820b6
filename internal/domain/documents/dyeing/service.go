package dyeing

import (
	"context"
	"fmt"
	"strings"
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
	"millstock/internal/domain/catalogs/color"
	"millstock/internal/domain/catalogs/counterparty"
	"millstock/internal/domain/catalogs/product"
	"millstock/internal/domain/documents"
	"millstock/internal/domain/events"
	"millstock/internal/domain/ledger"
	"millstock/internal/domain/posting"
	"millstock/internal/domain/registers/stock"
	"millstock/pkg/logger"
)

// BatchReader reads batches.
type BatchReader interface {
	GetBatch(ctx context.Context, batchID id.ID) (*stock.Batch, error)
}

// ProductReader resolves products.
type ProductReader interface {
	GetByID(ctx context.Context, id id.ID) (*product.Product, error)
}

// ColorReader resolves target colors.
type ColorReader interface {
	GetByID(ctx context.Context, id id.ID) (*color.Color, error)
}

// CounterpartyChecker resolves a counterparty in a role.
type CounterpartyChecker interface {
	Require(ctx context.Context, cpID id.ID, role counterparty.Type, field string) (*counterparty.Counterparty, error)
}

// Service provides business operations for dyeing orders.
type Service struct {
	repo           Repository
	postingEngine  *posting.Engine
	numerator      numerator.Generator
	txManager      tx.Manager
	batches        BatchReader
	products       ProductReader
	colors         ColorReader
	counterparties CounterpartyChecker
}

// NewService creates a new dyeing order service.
func NewService(
	repo Repository,
	postingEngine *posting.Engine,
	numerator numerator.Generator,
	txManager tx.Manager,
	batches BatchReader,
	products ProductReader,
	colors ColorReader,
	counterparties CounterpartyChecker,
) *Service {
	return &Service{
		repo:           repo,
		postingEngine:  postingEngine,
		numerator:      numerator,
		txManager:      txManager,
		batches:        batches,
		products:       products,
		colors:         colors,
		counterparties: counterparties,
	}
}

// Create stores a planned order and takes TotalPlannedQuantity out of the
// source batch in the same atomic unit.
func (s *Service) Create(ctx context.Context, o *Order) error {
	o.Status = StatusPlanned
	o.CommittedAt, o.ShippedAt, o.CompletedAt = nil, nil, nil
	o.Date = orderDate(o.Date)
	if o.Operator == "" {
		o.Operator = appctx.OperatorName(ctx)
	}
	for i := range o.Lines {
		o.Lines[i].BatchID = nil
	}
	o.Recalculate()

	if err := o.Validate(ctx); err != nil {
		return err
	}
	if err := s.checkRefs(ctx, o); err != nil {
		return err
	}

	numbering := documents.NewNumbering(s.numerator, numerator.PrefixDyeing, NumeratorStrategy, o.Number)
	_, err := s.postingEngine.Execute(ctx, posting.Command{
		Name:       "dyeing.create",
		EntityType: EntityName,
		EntityID:   o.ID,
		Action:     audit.ActionCreate,
		Keys:       []string{lockkey.Order(o.ID), lockkey.Batch(o.SourceBatchID)},
		Plan: func(ctx context.Context) (*posting.MovementSet, error) {
			if _, err := s.greigeSource(ctx, o.SourceBatchID); err != nil {
				return nil, err
			}
			if err := numbering.Assign(ctx, &o.Number, o.Date); err != nil {
				return nil, err
			}
			set := &posting.MovementSet{
				Recorder: stock.Recorder{Type: stock.RecorderDyeing, ID: o.ID, Number: o.Number, Reason: "shipped to dye factory"},
				Changes: map[string]any{
					"status":        string(o.Status),
					"sourceBatchId": o.SourceBatchID.String(),
					"planned":       o.TotalPlannedQuantity.String(),
				},
			}
			set.AddDelta(o.SourceBatchID, o.TotalPlannedQuantity.Neg())
			return set, nil
		},
		Finish: func(ctx context.Context, _ *posting.Result) error {
			if err := s.repo.Create(ctx, o); err != nil {
				return fmt.Errorf("create dyeing order: %w", err)
			}
			return nil
		},
	})
	if err != nil {
		numbering.Reset(&o.Number)
		return err
	}

	logger.Info(ctx, "dyeing order created",
		"id", o.ID, "number", o.Number, "planned", o.TotalPlannedQuantity.String())
	return nil
}

// greigeSource loads the source batch and checks that it holds greige yarn.
func (s *Service) greigeSource(ctx context.Context, batchID id.ID) (*stock.Batch, error) {
	b, err := s.batches.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	p, err := s.products.GetByID(ctx, b.ProductID)
	if err != nil {
		return nil, err
	}
	if !p.IsRawGreigeYarn {
		return nil, apperror.NewValidation("source batch is not greige yarn").
			WithDetail("field", "sourceBatchId").
			WithDetail("productId", p.ID.String())
	}
	return b, nil
}

func (s *Service) checkRefs(ctx context.Context, o *Order) error {
	if _, err := s.counterparties.Require(ctx, o.DyeFactoryID, counterparty.TypeDyeFactory, "dyeFactoryId"); err != nil {
		return err
	}
	for i, line := range o.Lines {
		if _, err := s.colors.GetByID(ctx, line.TargetColorID); err != nil {
			if apperror.IsNotFound(err) {
				return apperror.NewNotFound("color", line.TargetColorID).WithDetail("lineNo", i+1)
			}
			return err
		}
	}
	return nil
}

// GetByID retrieves a dyeing order.
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

// List returns a page of dyeing orders.
func (s *Service) List(ctx context.Context, filter documents.ListFilter) (domain.ListResult[*Order], error) {
	return s.repo.List(ctx, filter)
}

// Update edits a planned order. The source batch and the planned total are
// fixed once stock was taken; lines may be redistributed.
func (s *Service) Update(ctx context.Context, o *Order) error {
	o.Date = orderDate(o.Date)
	return s.postingEngine.Run(ctx, []string{lockkey.Order(o.ID)}, func(ctx context.Context) error {
		cur, err := s.GetByID(ctx, o.ID)
		if err != nil {
			return err
		}
		if cur.Status != StatusPlanned {
			return apperror.NewStateTransition(EntityName, string(cur.Status), string(StatusPlanned)).
				WithDetail("reason", "only planned orders can be edited")
		}
		if o.SourceBatchID != cur.SourceBatchID {
			return apperror.NewValidation("source batch cannot change").
				WithDetail("field", "sourceBatchId")
		}

		o.Number = cur.Number
		o.Status = cur.Status
		o.CreatedAt = cur.CreatedAt
		o.CommittedAt, o.ShippedAt, o.CompletedAt = nil, nil, nil
		o.Recalculate()
		if o.TotalPlannedQuantity != cur.TotalPlannedQuantity {
			return apperror.NewValidation("planned quantity cannot change").
				WithDetail("field", "lines").
				WithDetail("planned", cur.TotalPlannedQuantity.String()).
				WithDetail("requested", o.TotalPlannedQuantity.String())
		}
		if err := o.Validate(ctx); err != nil {
			return err
		}
		if err := s.checkRefs(ctx, o); err != nil {
			return err
		}
		return s.repo.Update(ctx, o)
	})
}

// Ship records that the greige left for the dye factory.
func (s *Service) Ship(ctx context.Context, orderID id.ID) (*Order, error) {
	return s.transition(ctx, orderID, StatusProcessing, func(o *Order) {
		now := time.Now().UTC()
		o.ShippedAt = &now
	})
}

// Complete records that the dye factory finished processing.
func (s *Service) Complete(ctx context.Context, orderID id.ID) (*Order, error) {
	return s.transition(ctx, orderID, StatusCompleted, func(o *Order) {
		now := time.Now().UTC()
		o.CompletedAt = &now
	})
}

func (s *Service) transition(ctx context.Context, orderID id.ID, to Status, mutate func(*Order)) (*Order, error) {
	var out *Order
	_, err := s.postingEngine.Execute(ctx, posting.Command{
		Name:       "dyeing." + string(audit.ActionUpdate),
		EntityType: EntityName,
		EntityID:   orderID,
		Action:     audit.ActionUpdate,
		Keys:       []string{lockkey.Order(orderID)},
		Plan: func(ctx context.Context) (*posting.MovementSet, error) {
			cur, err := s.GetByID(ctx, orderID)
			if err != nil {
				return nil, err
			}
			if err := Transitions.Check(EntityName, cur.Status, to); err != nil {
				return nil, err
			}
			out = cur
			return &posting.MovementSet{Changes: documents.StatusChange(cur.Status, to)}, nil
		},
		Finish: func(ctx context.Context, _ *posting.Result) error {
			out.Status = to
			mutate(out)
			return s.repo.Update(ctx, out)
		},
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Cancel cancels a planned order and returns the greige to the source batch.
func (s *Service) Cancel(ctx context.Context, orderID id.ID) (*Order, error) {
	pre, err := s.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	var out *Order
	_, err = s.postingEngine.Execute(ctx, posting.Command{
		Name:       "dyeing.cancel",
		EntityType: EntityName,
		EntityID:   orderID,
		Action:     audit.ActionCancel,
		Keys:       []string{lockkey.Order(orderID), lockkey.Batch(pre.SourceBatchID)},
		Plan: func(ctx context.Context) (*posting.MovementSet, error) {
			cur, err := s.GetByID(ctx, orderID)
			if err != nil {
				return nil, err
			}
			if err := Transitions.Check(EntityName, cur.Status, StatusCancelled); err != nil {
				return nil, err
			}
			set := &posting.MovementSet{
				Recorder: stock.Recorder{Type: stock.RecorderDyeing, ID: cur.ID, Number: cur.Number, Reason: "dyeing order cancelled"},
				Changes:  documents.StatusChange(cur.Status, StatusCancelled),
			}
			if cur.TotalPlannedQuantity.IsPositive() {
				set.AddDelta(cur.SourceBatchID, cur.TotalPlannedQuantity)
			}
			set.AddEvent(events.New(EntityName, cur.ID, events.TypeOrderCancelled, map[string]any{
				"number":   cur.Number,
				"returned": cur.TotalPlannedQuantity.String(),
			}))
			out = cur
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

// StockIn creates one batch per line from a completed order. Each batch
// costs the source price plus the processing price, and the processing fee
// becomes a payable to the dye factory.
func (s *Service) StockIn(ctx context.Context, orderID id.ID, location string) ([]*stock.Batch, error) {
	pre, err := s.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	keys := []string{lockkey.Order(orderID)}
	for _, l := range pre.Lines {
		keys = append(keys, lockkey.BatchCode(l.TargetColorID, l.BatchCode))
	}

	var (
		out     *Order
		created []*stock.Batch
	)
	_, err = s.postingEngine.Execute(ctx, posting.Command{
		Name:       "dyeing.stock_in",
		EntityType: EntityName,
		EntityID:   orderID,
		Action:     audit.ActionStockIn,
		Keys:       keys,
		Plan: func(ctx context.Context) (*posting.MovementSet, error) {
			cur, err := s.GetByID(ctx, orderID)
			if err != nil {
				return nil, err
			}
			if err := Transitions.Check(EntityName, cur.Status, StatusStocked); err != nil {
				return nil, err
			}
			if err := cur.CheckMassConservation(); err != nil {
				return nil, err
			}
			source, err := s.batches.GetBatch(ctx, cur.SourceBatchID)
			if err != nil {
				return nil, err
			}

			loc := strings.TrimSpace(location)
			if loc == "" {
				loc = cur.StockLocation
			}
			cur.StockLocation = loc

			unitCost := source.PurchasePrice.Add(cur.ProcessingPrice)
			factoryID := cur.DyeFactoryID
			produced := time.Now().UTC()

			set := &posting.MovementSet{
				Recorder: stock.Recorder{Type: stock.RecorderDyeing, ID: cur.ID, Number: cur.Number, Reason: "dyed stock received"},
				Changes:  documents.StatusChange(cur.Status, StatusStocked),
			}
			for _, l := range cur.Lines {
				set.AddBatch(l.TargetColorID, stock.BatchSpec{
					Code:            l.BatchCode,
					InitialQuantity: l.Quantity,
					PurchasePrice:   unitCost,
					SupplierID:      &factoryID,
					ProductionDate:  &produced,
					StockLocation:   loc,
				})
			}
			if cur.ProcessingAmount.IsPositive() {
				set.AddAccount(ledger.AccountSpec{
					Kind:           ledger.KindPayable,
					CounterpartyID: cur.DyeFactoryID,
					OrderID:        cur.ID,
					OrderNumber:    cur.Number,
					OrderType:      EntityName,
					TotalAmount:    cur.ProcessingAmount,
					PaidAmount:     types.Zero(),
				})
			}
			set.AddEvent(events.New(EntityName, cur.ID, events.TypeDyeingStockedIn, map[string]any{
				"number":   cur.Number,
				"quantity": cur.TotalPlannedQuantity.String(),
				"batches":  len(cur.Lines),
			}))
			out = cur
			return set, nil
		},
		Finish: func(ctx context.Context, res *posting.Result) error {
			created = created[:0]
			for i := range out.Lines {
				l := &out.Lines[i]
				b := res.Batch(l.TargetColorID, l.BatchCode)
				if b == nil {
					return apperror.NewInternal(fmt.Errorf("no batch created for line %d", l.LineNo))
				}
				batchID := b.ID
				l.BatchID = &batchID
				created = append(created, b)
			}
			out.Status = StatusStocked
			out.MarkCommitted()
			return s.repo.Update(ctx, out)
		},
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "dyeing order stocked in", "id", out.ID, "number", out.Number, "batches", len(created))
	return created, nil
}
