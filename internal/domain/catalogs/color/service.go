package color

import (
	"context"

	"millstock/internal/core/apperror"
	"millstock/internal/core/id"
	"millstock/internal/core/tx"
	"millstock/internal/domain"
	"millstock/internal/domain/catalogs/product"
)

// EntityName names color entries in errors and audit records.
const EntityName = "color"

// ProductReader resolves the owning product.
type ProductReader interface {
	GetByID(ctx context.Context, id id.ID) (*product.Product, error)
}

// Service provides business logic for the Color catalog.
type Service struct {
	*domain.CatalogService[*Color]
	repo     Repository
	products ProductReader
}

// NewService creates a new Color service.
func NewService(repo Repository, products ProductReader, txManager tx.Manager) *Service {
	base := domain.NewCatalogService(domain.CatalogServiceConfig[*Color]{
		Repo:       repo,
		TxManager:  txManager,
		EntityName: EntityName,
	})

	svc := &Service{CatalogService: base, repo: repo, products: products}
	base.Hooks().OnBeforeCreate(svc.checkOwnerAndCode)
	base.Hooks().OnBeforeUpdate(svc.checkOwnerAndCode)
	return svc
}

// checkOwnerAndCode enforces that the product exists and the code is free
// within it.
func (s *Service) checkOwnerAndCode(ctx context.Context, c *Color) error {
	if _, err := s.products.GetByID(ctx, c.ProductID); err != nil {
		if apperror.IsNotFound(err) {
			return apperror.NewNotFound(product.EntityName, c.ProductID)
		}
		return err
	}

	existing, err := s.repo.FindByProductAndCode(ctx, c.ProductID, c.Code)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil
		}
		return err
	}
	if existing.ID != c.ID {
		return apperror.NewDuplicate(EntityName, "code", c.Code).
			WithDetail("product_id", c.ProductID.String())
	}
	return nil
}

// ListByProduct returns the colors of one product ordered by code.
func (s *Service) ListByProduct(ctx context.Context, productID id.ID) ([]*Color, error) {
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return nil, err
	}
	return s.repo.ListByProduct(ctx, productID)
}
