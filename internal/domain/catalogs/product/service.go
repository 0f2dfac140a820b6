package product

import (
	"millstock/internal/core/tx"
	"millstock/internal/domain"
)

// EntityName names product entries in errors and audit records.
const EntityName = "product"

// Service provides business logic for the Product catalog.
type Service struct {
	*domain.CatalogService[*Product]
	repo Repository
}

// NewService creates a new Product service.
func NewService(repo Repository, txManager tx.Manager) *Service {
	base := domain.NewCatalogService(domain.CatalogServiceConfig[*Product]{
		Repo:       repo,
		TxManager:  txManager,
		EntityName: EntityName,
		UniqueCode: true,
	})
	return &Service{CatalogService: base, repo: repo}
}
