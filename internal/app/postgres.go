package app

import (
	"fmt"

	"millstock/internal/infrastructure/storage/postgres"
	"millstock/internal/infrastructure/storage/postgres/catalog_repo"
	"millstock/internal/infrastructure/storage/postgres/document_repo"
	"millstock/internal/infrastructure/storage/postgres/ledger_repo"
	"millstock/internal/infrastructure/storage/postgres/register_repo"
)

// PostgresStorage exposes the PostgreSQL repositories through the storage
// ports. Events go to the transactional outbox and audit rows to sys_audit.
func PostgresStorage(txm *postgres.TxManager) (Storage, error) {
	auditSvc, err := postgres.NewAuditService(txm)
	if err != nil {
		return Storage{}, fmt.Errorf("create audit service: %w", err)
	}

	return Storage{
		TxManager:      txm,
		Products:       catalog_repo.NewProductRepo(txm),
		Colors:         catalog_repo.NewColorRepo(txm),
		Counterparties: catalog_repo.NewCounterpartyRepo(txm),
		Stock:          register_repo.NewStockRepo(txm),
		Ledger:         ledger_repo.NewLedgerRepo(txm),
		Purchases:      document_repo.NewPurchaseRepo(txm),
		Sales:          document_repo.NewSalesRepo(txm),
		Dyeings:        document_repo.NewDyeingRepo(txm),
		Adjustments:    document_repo.NewAdjustmentRepo(txm),
		CycleCounts:    document_repo.NewCycleCountRepo(txm),
		Sequencer:      postgres.NewSequencer(txm),
		Publisher:      postgres.NewOutboxPublisher(txm),
		Audit:          auditSvc,
	}, nil
}
