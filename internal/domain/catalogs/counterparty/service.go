package counterparty

import (
	"context"

	"millstock/internal/core/apperror"
	"millstock/internal/core/id"
	"millstock/internal/core/tx"
	"millstock/internal/domain"
)

// EntityName names counterparty entries in errors and audit records.
const EntityName = "counterparty"

// Service provides business logic for Counterparty catalog.
type Service struct {
	*domain.CatalogService[*Counterparty]
	repo Repository
}

// NewService creates a new Counterparty service.
func NewService(repo Repository, txManager tx.Manager) *Service {
	base := domain.NewCatalogService(domain.CatalogServiceConfig[*Counterparty]{
		Repo:       repo,
		TxManager:  txManager,
		EntityName: EntityName,
		UniqueCode: true,
	})
	return &Service{CatalogService: base, repo: repo}
}

// Require loads a counterparty and checks it may act in role.
// A nil id is reported as a validation error on field.
func (s *Service) Require(ctx context.Context, cpID id.ID, role Type, field string) (*Counterparty, error) {
	if id.IsNil(cpID) {
		return nil, apperror.NewValidation(field + " is required").WithDetail("field", field)
	}
	cp, err := s.GetByID(ctx, cpID)
	if err != nil {
		return nil, err
	}
	if !cp.Can(role) {
		return nil, apperror.NewValidation("counterparty cannot act as "+string(role)).
			WithDetail("field", field).
			WithDetail("counterparty_type", string(cp.Type))
	}
	return cp, nil
}
