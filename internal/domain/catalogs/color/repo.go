package color

import (
	"context"

	"millstock/internal/core/id"
	"millstock/internal/domain"
)

// Repository defines the interface for Color persistence.
// GetByCode of the embedded interface is not meaningful for colors (codes are
// unique per product); use FindByProductAndCode.
type Repository interface {
	domain.CatalogRepository[*Color]

	FindByProductAndCode(ctx context.Context, productID id.ID, code string) (*Color, error)

	ListByProduct(ctx context.Context, productID id.ID) ([]*Color, error)
}
