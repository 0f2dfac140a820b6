package stock

import (
	"context"
	"fmt"
	"sort"
	"time"

	"millstock/internal/core/apperror"
	appctx "millstock/internal/core/context"
	"millstock/internal/core/entity"
	"millstock/internal/core/id"
	"millstock/internal/core/tx"
	"millstock/internal/core/types"
	"millstock/internal/domain"
	"millstock/internal/domain/catalogs/color"
	"millstock/internal/domain/catalogs/product"
	"millstock/pkg/logger"
)

// ColorReader resolves colors.
type ColorReader interface {
	GetByID(ctx context.Context, id id.ID) (*color.Color, error)
	ListByProduct(ctx context.Context, productID id.ID) ([]*color.Color, error)
}

// ProductReader resolves products.
type ProductReader interface {
	GetByID(ctx context.Context, id id.ID) (*product.Product, error)
}

// Service provides batch operations. Mutations run inside the caller's
// transaction; the posting engine supplies locking and retries.
type Service struct {
	repo     Repository
	colors   ColorReader
	products ProductReader
	reads    tx.ReadOnlyManager
}

func NewService(repo Repository, colors ColorReader, products ProductReader, reads tx.ReadOnlyManager) *Service {
	return &Service{repo: repo, colors: colors, products: products, reads: reads}
}

// CreateBatch creates a batch under colorID. Opening stock is journaled
// against rec.
func (s *Service) CreateBatch(ctx context.Context, colorID id.ID, spec BatchSpec, rec Recorder) (*Batch, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if err := rec.validate(); err != nil {
		return nil, err
	}

	c, err := s.colors.GetByID(ctx, colorID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("color", colorID)
		}
		return nil, err
	}

	if _, err := s.repo.FindBatch(ctx, colorID, spec.Code); err == nil {
		return nil, apperror.NewDuplicate("batch", "code", spec.Code).
			WithDetail("color_id", colorID.String())
	} else if !apperror.IsNotFound(err) {
		return nil, err
	}

	b := &Batch{
		BaseEntity:      entity.NewBaseEntity(),
		ColorID:         colorID,
		ProductID:       c.ProductID,
		Code:            spec.Code,
		StockQuantity:   spec.InitialQuantity,
		InitialQuantity: spec.InitialQuantity,
		PurchasePrice:   spec.PurchasePrice,
		SupplierID:      spec.SupplierID,
		ProductionDate:  spec.ProductionDate,
		StockLocation:   spec.StockLocation,
	}
	if err := s.repo.CreateBatch(ctx, b); err != nil {
		return nil, fmt.Errorf("create batch: %w", err)
	}

	if spec.InitialQuantity.IsPositive() {
		if err := s.repo.CreateMovements(ctx, []Movement{newMovement(ctx, b, spec.InitialQuantity, rec)}); err != nil {
			return nil, fmt.Errorf("record opening stock: %w", err)
		}
	}

	logger.Debug(ctx, "batch created",
		"batch_id", b.ID, "color_id", colorID, "code", b.Code, "initial", b.InitialQuantity.String())
	return b, nil
}

// AdjustStock applies stockQuantity += delta. This is the only path that
// changes stock after creation.
func (s *Service) AdjustStock(ctx context.Context, batchID id.ID, delta types.Quantity, rec Recorder) (*Batch, error) {
	if delta.IsZero() {
		return nil, apperror.NewValidation("stock delta must not be zero").
			WithDetail("batch_id", batchID.String())
	}
	if err := rec.validate(); err != nil {
		return nil, err
	}

	b, err := s.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}

	next := b.StockQuantity.Add(delta)
	if next.IsNegative() {
		return nil, apperror.NewInsufficientStock(batchID.String(), delta.Neg().String(), b.StockQuantity.String())
	}

	b.StockQuantity = next
	if err := s.repo.UpdateBatchStock(ctx, b); err != nil {
		return nil, err
	}
	if err := s.repo.CreateMovements(ctx, []Movement{newMovement(ctx, b, delta, rec)}); err != nil {
		return nil, fmt.Errorf("record movement: %w", err)
	}
	return b, nil
}

// CheckStock reports whether the batch holds at least qty.
func (s *Service) CheckStock(ctx context.Context, batchID id.ID, qty types.Quantity) (bool, error) {
	if !qty.IsPositive() {
		return false, apperror.NewValidation("quantity must be positive").
			WithDetail("field", "quantity")
	}
	b, err := s.GetBatch(ctx, batchID)
	if err != nil {
		return false, err
	}
	return b.StockQuantity >= qty, nil
}

// GetBatch returns a batch or NotFound.
func (s *Service) GetBatch(ctx context.Context, batchID id.ID) (*Batch, error) {
	b, err := s.repo.GetBatch(ctx, batchID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("batch", batchID)
		}
		return nil, err
	}
	return b, nil
}

// FindBatch returns the batch of a color with the given code, or NotFound.
func (s *Service) FindBatch(ctx context.Context, colorID id.ID, code string) (*Batch, error) {
	return s.repo.FindBatch(ctx, colorID, code)
}

// AggregateByColor sums the stock of the color's batches.
func (s *Service) AggregateByColor(ctx context.Context, colorID id.ID) (types.Quantity, error) {
	if _, err := s.colors.GetByID(ctx, colorID); err != nil {
		return 0, err
	}
	batches, err := s.repo.ListBatchesByColor(ctx, colorID)
	if err != nil {
		return 0, fmt.Errorf("list batches: %w", err)
	}
	return sumStock(batches), nil
}

// AggregateByProduct sums the stock of every batch of every color of the
// product.
func (s *Service) AggregateByProduct(ctx context.Context, productID id.ID) (types.Quantity, error) {
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return 0, err
	}
	batches, err := s.repo.ListBatchesByProduct(ctx, productID)
	if err != nil {
		return 0, fmt.Errorf("list batches: %w", err)
	}
	return sumStock(batches), nil
}

// GetInventoryByProduct returns the product's colors, each with its batches
// and stock total. Colors without batches are included with zero stock.
// Totals are summed from the one batch list, so the product total is always
// the sum of its colors. On PostgreSQL the three reads also share a snapshot;
// the memory store has none, so a color added between the reads may be
// missing from the result.
func (s *Service) GetInventoryByProduct(ctx context.Context, productID id.ID) (*ProductInventory, error) {
	var (
		p       *product.Product
		colors  []*color.Color
		batches []*Batch
	)
	err := s.reads.ReadOnly(ctx, func(ctx context.Context) error {
		var err error
		if p, err = s.products.GetByID(ctx, productID); err != nil {
			return err
		}
		if colors, err = s.colors.ListByProduct(ctx, productID); err != nil {
			return fmt.Errorf("list colors: %w", err)
		}
		if batches, err = s.repo.ListBatchesByProduct(ctx, productID); err != nil {
			return fmt.Errorf("list batches: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	byColor := make(map[id.ID][]*Batch, len(colors))
	for _, b := range batches {
		byColor[b.ColorID] = append(byColor[b.ColorID], b)
	}

	inv := &ProductInventory{
		ProductID:   p.ID,
		ProductCode: p.Code,
		ProductName: p.Name,
		Unit:        p.Unit,
		Colors:      make([]ColorInventory, 0, len(colors)),
	}
	for _, c := range colors {
		list := byColor[c.ID]
		sort.Slice(list, func(i, j int) bool { return list[i].Code < list[j].Code })
		if list == nil {
			list = []*Batch{}
		}
		ci := ColorInventory{
			ColorID:    c.ID,
			ColorCode:  c.Code,
			ColorName:  c.Name,
			Batches:    list,
			TotalStock: sumStock(list),
		}
		inv.Colors = append(inv.Colors, ci)
		inv.TotalStock += ci.TotalStock
	}
	return inv, nil
}

// ListBatches returns a page of batches.
func (s *Service) ListBatches(ctx context.Context, filter BatchFilter) (domain.ListResult[*Batch], error) {
	return s.repo.ListBatches(ctx, filter)
}

// ListMovements returns the journal of a batch, oldest first.
func (s *Service) ListMovements(ctx context.Context, batchID id.ID) ([]Movement, error) {
	if _, err := s.GetBatch(ctx, batchID); err != nil {
		return nil, err
	}
	return s.repo.ListMovements(ctx, MovementFilter{BatchID: &batchID})
}

func sumStock(batches []*Batch) types.Quantity {
	var total types.Quantity
	for _, b := range batches {
		total += b.StockQuantity
	}
	return total
}

func newMovement(ctx context.Context, b *Batch, delta types.Quantity, rec Recorder) Movement {
	return Movement{
		ID:             id.New(),
		BatchID:        b.ID,
		Delta:          delta,
		BalanceAfter:   b.StockQuantity,
		RecorderType:   rec.Type,
		RecorderID:     rec.ID,
		RecorderNumber: rec.Number,
		Reason:         rec.Reason,
		Operator:       appctx.OperatorName(ctx),
		RecordedAt:     time.Now().UTC(),
	}
}
