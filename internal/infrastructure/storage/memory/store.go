// Package memory is a transactional in-memory implementation of every
// storage port. Transactions stage their writes privately and validate them
// optimistically on commit: a row whose committed version moved since it was
// read fails the commit with CONCURRENT_MODIFICATION.
package memory

import (
	"context"
	"fmt"
	"sync"

	"millstock/internal/core/apperror"
	"millstock/internal/core/id"
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
	"millstock/internal/domain/registers/stock"
	"millstock/pkg/logger"
)

var _ tx.Manager = (*Store)(nil)

// Store is the in-memory database.
type Store struct {
	mu sync.RWMutex

	products       *table[*product.Product]
	colors         *table[*color.Color]
	counterparties *table[*counterparty.Counterparty]
	batches        *table[*stock.Batch]
	accounts       *table[*ledger.Account]
	purchases      *table[*purchase.Order]
	sales          *table[*sales.Order]
	dyeings        *table[*dyeing.Order]
	adjustments    *table[*adjustment.Order]
	cycleCounts    *table[*cyclecount.Order]

	tables map[string]anyTable

	// Append-only logs
	movements   []stock.Movement
	settlements []ledger.Settlement
	outbox      []events.Event
	auditLog    []audit.Entry

	seqMu     sync.Mutex
	sequences map[string]int64
}

// New creates an empty store.
func New() *Store {
	s := &Store{
		products:       newTable("product", cloneProduct, func(p *product.Product) string { return p.Code }),
		colors:         newTable("color", cloneColor, func(c *color.Color) string { return c.ProductID.String() + "/" + c.Code }),
		counterparties: newTable("counterparty", cloneCounterparty, func(c *counterparty.Counterparty) string { return c.Code }),
		batches:        newTable("batch", cloneBatch, func(b *stock.Batch) string { return b.ColorID.String() + "/" + b.Code }),
		accounts:       newTable("account", cloneAccount, nil),
		purchases:      newTable(purchase.EntityName, (*purchase.Order).Clone, func(o *purchase.Order) string { return o.Number }),
		sales:          newTable(sales.EntityName, (*sales.Order).Clone, func(o *sales.Order) string { return o.Number }),
		dyeings:        newTable(dyeing.EntityName, (*dyeing.Order).Clone, func(o *dyeing.Order) string { return o.Number }),
		adjustments:    newTable(adjustment.EntityName, (*adjustment.Order).Clone, func(o *adjustment.Order) string { return o.Number }),
		cycleCounts:    newTable(cyclecount.EntityName, (*cyclecount.Order).Clone, func(o *cyclecount.Order) string { return o.Number }),
		sequences:      make(map[string]int64),
	}
	s.tables = map[string]anyTable{
		s.products.name:       s.products,
		s.colors.name:         s.colors,
		s.counterparties.name: s.counterparties,
		s.batches.name:        s.batches,
		s.accounts.name:       s.accounts,
		s.purchases.name:      s.purchases,
		s.sales.name:          s.sales,
		s.dyeings.name:        s.dyeings,
		s.adjustments.name:    s.adjustments,
		s.cycleCounts.name:    s.cycleCounts,
	}
	return s
}

type write struct {
	val    any
	base   int
	insert bool
}

// memTx is a private write set.
type memTx struct {
	writes map[string]map[id.ID]*write
	order  []stagedKey

	movements   []stock.Movement
	settlements []ledger.Settlement
	outbox      []events.Event
	auditLog    []audit.Entry
}

type stagedKey struct {
	table string
	id    id.ID
}

func (t *memTx) stage(tableName string, rowID id.ID, w *write) {
	m, ok := t.writes[tableName]
	if !ok {
		m = make(map[id.ID]*write)
		t.writes[tableName] = m
	}
	if _, seen := m[rowID]; !seen {
		t.order = append(t.order, stagedKey{table: tableName, id: rowID})
	}
	m[rowID] = w
}

type txKey struct{}

func txFrom(ctx context.Context) *memTx {
	t, _ := ctx.Value(txKey{}).(*memTx)
	return t
}

// RunInTransaction implements tx.Manager. Nested calls join the outer
// transaction.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFrom(ctx) != nil {
		return fn(ctx)
	}

	t := &memTx{writes: make(map[string]map[id.ID]*write)}
	txCtx := context.WithValue(ctx, txKey{}, t)

	if err := fn(txCtx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return s.commit(ctx, t)
}

// ReadOnly runs fn without a write set; writes inside fn autocommit. There
// is no snapshot: each read sees the latest committed rows.
func (s *Store) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// inTx runs fn in the caller's transaction or a fresh one.
func (s *Store) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFrom(ctx) != nil {
		return fn(ctx)
	}
	return s.RunInTransaction(ctx, fn)
}

func (s *Store) commit(ctx context.Context, t *memTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range t.order {
		w := t.writes[k.table][k.id]
		tbl := s.tables[k.table]
		cur, exists := tbl.versionOf(k.id)
		switch {
		case w.insert && exists:
			return apperror.NewConcurrentModification(k.table, k.id).WithDetail("reason", "row inserted concurrently")
		case !w.insert && !exists:
			return apperror.NewConcurrentModification(k.table, k.id).WithDetail("reason", "row disappeared")
		case !w.insert && cur != w.base:
			return apperror.NewConcurrentModification(k.table, k.id).
				WithDetail("expected_version", w.base).
				WithDetail("actual_version", cur)
		}
		if key, taken := tbl.uniqueTaken(w.val); taken {
			return apperror.NewConcurrentModification(k.table, k.id).
				WithDetail("reason", "unique key taken concurrently").
				WithDetail("key", key)
		}
	}

	for _, k := range t.order {
		s.tables[k.table].put(t.writes[k.table][k.id].val)
	}
	s.movements = append(s.movements, t.movements...)
	s.settlements = append(s.settlements, t.settlements...)
	s.outbox = append(s.outbox, t.outbox...)
	s.auditLog = append(s.auditLog, t.auditLog...)

	logger.Debug(ctx, "memory transaction committed", "rows", len(t.order), "events", len(t.outbox))
	return nil
}
