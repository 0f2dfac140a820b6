// Package app wires the domain services over a set of storage ports.
// The server, the seeder and end-to-end tests build the engine through it.
package app

import (
	"millstock/internal/core/tx"
	"millstock/internal/domain/audit"
	"millstock/internal/domain/catalogs/color"
	"millstock/internal/domain/catalogs/counterparty"
	"millstock/internal/domain/catalogs/product"
	"millstock/internal/domain/documents/adjustment"
	"millstock/internal/domain/documents/cyclecount"
	"millstock/internal/domain/documents/dyeing"
	"millstock/internal/domain/documents/purchase"
	"millstock/internal/domain/documents/sales"
	"millstock/internal/domain/events"
	"millstock/internal/domain/ledger"
	"millstock/internal/domain/posting"
	"millstock/internal/domain/registers/stock"
	"millstock/internal/infrastructure/storage/memory"
	"millstock/pkg/numerator"
)

// Storage is every port the services persist through.
type Storage struct {
	TxManager tx.ReadOnlyManager

	Products       product.Repository
	Colors         color.Repository
	Counterparties counterparty.Repository
	Stock          stock.Repository
	Ledger         ledger.Repository

	Purchases   purchase.Repository
	Sales       sales.Repository
	Dyeings     dyeing.Repository
	Adjustments adjustment.Repository
	CycleCounts cyclecount.Repository

	Sequencer numerator.Sequencer
	Publisher events.Publisher
	Audit     audit.Log
}

// Options tunes the services.
type Options struct {
	// Locker serializes units per key; an in-process KeyedLocker when nil
	Locker posting.Locker

	Posting posting.Config

	// Numbering overrides the per-family numbering strategy when set
	Numbering *numerator.Service
}

// App is the assembled engine.
type App struct {
	Products       *product.Service
	Colors         *color.Service
	Counterparties *counterparty.Service
	Stock          *stock.Service
	Ledger         *ledger.Service
	Settlements    *ledger.SettlementService
	Engine         *posting.Engine
	Audit          audit.Log

	Purchases   *purchase.Service
	Sales       *sales.Service
	Dyeings     *dyeing.Service
	Adjustments *adjustment.Service
	CycleCounts *cyclecount.Service
}

// New assembles the services over st.
func New(st Storage, opts Options) *App {
	locker := opts.Locker
	if locker == nil {
		locker = posting.NewKeyedLocker()
	}
	numbers := opts.Numbering
	if numbers == nil {
		numbers = numerator.New(st.Sequencer)
	}

	a := &App{Audit: st.Audit}
	a.Products = product.NewService(st.Products, st.TxManager)
	a.Colors = color.NewService(st.Colors, a.Products, st.TxManager)
	a.Counterparties = counterparty.NewService(st.Counterparties, st.TxManager)
	a.Stock = stock.NewService(st.Stock, a.Colors, a.Products, st.TxManager)
	a.Ledger = ledger.NewService(st.Ledger)
	a.Engine = posting.NewEngine(st.TxManager, a.Stock, a.Ledger, locker, st.Publisher, st.Audit, opts.Posting)
	a.Settlements = ledger.NewSettlementService(a.Ledger, a.Engine, st.Publisher, st.Audit)

	a.Purchases = purchase.NewService(st.Purchases, a.Engine, numbers, st.TxManager, a.Colors, a.Counterparties)
	a.Sales = sales.NewService(st.Sales, a.Engine, numbers, st.TxManager, a.Stock, a.Counterparties)
	a.Dyeings = dyeing.NewService(st.Dyeings, a.Engine, numbers, st.TxManager, a.Stock, a.Products, a.Colors, a.Counterparties)
	a.Adjustments = adjustment.NewService(st.Adjustments, a.Engine, numbers, st.TxManager, a.Stock)
	a.CycleCounts = cyclecount.NewService(st.CycleCounts, a.Engine, numbers, st.TxManager, a.Stock, a.Adjustments)
	return a
}

// MemoryStorage exposes a memory store through the storage ports.
func MemoryStorage(s *memory.Store) Storage {
	return Storage{
		TxManager:      s,
		Products:       s.Products(),
		Colors:         s.Colors(),
		Counterparties: s.Counterparties(),
		Stock:          s.Stock(),
		Ledger:         s.Ledger(),
		Purchases:      s.Purchases(),
		Sales:          s.Sales(),
		Dyeings:        s.Dyeings(),
		Adjustments:    s.Adjustments(),
		CycleCounts:    s.CycleCounts(),
		Sequencer:      s,
		Publisher:      s,
		Audit:          s,
	}
}
