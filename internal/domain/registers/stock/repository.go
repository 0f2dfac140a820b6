package stock

import (
	"context"
	"time"

	"millstock/internal/core/id"
	"millstock/internal/domain"
)

// Repository defines persistence of batches and their movement journal.
// Writes join the transaction carried by ctx.
type Repository interface {
	CreateBatch(ctx context.Context, b *Batch) error

	GetBatch(ctx context.Context, batchID id.ID) (*Batch, error)

	// FindBatch looks a batch up by color and code; NotFound when absent.
	FindBatch(ctx context.Context, colorID id.ID, code string) (*Batch, error)

	// UpdateBatchStock writes StockQuantity if the stored version still equals
	// b.Version, then bumps b.Version. Fails with CONCURRENT_MODIFICATION
	// otherwise.
	UpdateBatchStock(ctx context.Context, b *Batch) error

	ListBatchesByColor(ctx context.Context, colorID id.ID) ([]*Batch, error)
	ListBatchesByProduct(ctx context.Context, productID id.ID) ([]*Batch, error)
	ListBatches(ctx context.Context, filter BatchFilter) (domain.ListResult[*Batch], error)

	CreateMovements(ctx context.Context, movements []Movement) error
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error)
}

// BatchFilter for batch listings.
type BatchFilter struct {
	ProductID   *id.ID
	ColorID     *id.ID
	Search      string
	ExcludeZero bool
	Limit       int
	Offset      int
}

// MovementFilter for journal queries.
type MovementFilter struct {
	BatchID    *id.ID
	RecorderID *id.ID
	FromDate   *time.Time
	ToDate     *time.Time
	Limit      int
}
