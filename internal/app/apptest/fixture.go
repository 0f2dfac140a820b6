// Package apptest builds a fully wired engine over the memory store with a
// small textile catalog, for tests.
package apptest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"millstock/internal/app"
	appctx "millstock/internal/core/context"
	"millstock/internal/core/id"
	"millstock/internal/core/types"
	"millstock/internal/domain/catalogs/color"
	"millstock/internal/domain/catalogs/counterparty"
	"millstock/internal/domain/catalogs/product"
	"millstock/internal/domain/documents/purchase"
	"millstock/internal/domain/events"
	"millstock/internal/domain/ledger"
	"millstock/internal/domain/posting"
	"millstock/internal/domain/registers/stock"
	"millstock/internal/infrastructure/storage/memory"
)

// Fixture is a wired engine with reference data.
type Fixture struct {
	T     testing.TB
	Ctx   context.Context
	Store *memory.Store
	App   *app.App

	Greige *product.Product // raw greige yarn
	Fabric *product.Product // dyed fabric

	Raw  *color.Color // the greige "color"
	Red  *color.Color
	Blue *color.Color

	Supplier   *counterparty.Counterparty
	Customer   *counterparty.Counterparty
	DyeFactory *counterparty.Counterparty
}

// New creates a fixture with default posting options.
func New(t testing.TB) *Fixture {
	return NewWithOptions(t, app.Options{Posting: posting.Config{MaxAttempts: 5}})
}

// NewWithOptions creates a fixture with custom options.
func NewWithOptions(t testing.TB, opts app.Options) *Fixture {
	t.Helper()

	store := memory.New()
	ctx := appctx.WithOperator(context.Background(), appctx.Operator{ID: "u-1", Name: "仓管员"})
	f := &Fixture{
		T:     t,
		Ctx:   ctx,
		Store: store,
		App:   app.New(app.MemoryStorage(store), opts),
	}

	f.Greige = product.NewProduct("GY-40S", "40支坯纱", "公斤", true)
	require.NoError(t, f.App.Products.Create(ctx, f.Greige))
	f.Fabric = product.NewProduct("FB-JR", "精梳棉布", "米", false)
	require.NoError(t, f.App.Products.Create(ctx, f.Fabric))

	f.Raw = color.NewColor(f.Greige.ID, "RAW", "本白")
	require.NoError(t, f.App.Colors.Create(ctx, f.Raw))
	f.Red = color.NewColor(f.Fabric.ID, "R01", "大红")
	require.NoError(t, f.App.Colors.Create(ctx, f.Red))
	f.Blue = color.NewColor(f.Fabric.ID, "B01", "藏青")
	require.NoError(t, f.App.Colors.Create(ctx, f.Blue))

	f.Supplier = counterparty.NewCounterparty("S001", "绍兴纺织", counterparty.TypeSupplier)
	require.NoError(t, f.App.Counterparties.Create(ctx, f.Supplier))
	f.Customer = counterparty.NewCounterparty("C001", "杭州服饰", counterparty.TypeCustomer)
	require.NoError(t, f.App.Counterparties.Create(ctx, f.Customer))
	f.DyeFactory = counterparty.NewCounterparty("D001", "柯桥印染", counterparty.TypeDyeFactory)
	require.NoError(t, f.App.Counterparties.Create(ctx, f.DyeFactory))

	return f
}

// Receive commits a fully paid purchase of qty into (c, code) and returns
// the resulting batch.
func (f *Fixture) Receive(c *color.Color, code string, qty, price string) *stock.Batch {
	f.T.Helper()

	o := purchase.NewOrder("", f.Supplier.ID)
	o.AddLine(c.ProductID, c.ID, code, Q(qty), M(price))
	o.PaidAmount = o.TotalAmount
	require.NoError(f.T, f.App.Purchases.Create(f.Ctx, o))

	committed, err := f.App.Purchases.Commit(f.Ctx, o.ID)
	require.NoError(f.T, err)
	require.NotNil(f.T, committed.Lines[0].BatchID)

	b, err := f.App.Stock.GetBatch(f.Ctx, *committed.Lines[0].BatchID)
	require.NoError(f.T, err)
	return b
}

// Stock returns the current stock of a batch.
func (f *Fixture) Stock(batchID id.ID) types.Quantity {
	f.T.Helper()
	b, err := f.App.Stock.GetBatch(f.Ctx, batchID)
	require.NoError(f.T, err)
	return b.StockQuantity
}

// AssertStock checks the stock of a batch.
func (f *Fixture) AssertStock(batchID id.ID, want string) {
	f.T.Helper()
	assert.Equal(f.T, Q(want), f.Stock(batchID), "stock of batch %s", batchID)
}

// Account returns the single account opened by an order, or nil.
func (f *Fixture) Account(orderID id.ID) *ledger.Account {
	f.T.Helper()
	res, err := f.App.Ledger.ListAccounts(f.Ctx, ledger.AccountFilter{OrderID: &orderID})
	require.NoError(f.T, err)
	require.LessOrEqual(f.T, len(res.Items), 1, "order %s opened several accounts", orderID)
	if len(res.Items) == 0 {
		return nil
	}
	return res.Items[0]
}

// EventsOf returns the published events of one type for an aggregate.
func (f *Fixture) EventsOf(aggregateID id.ID, eventType string) []events.Event {
	var out []events.Event
	for _, e := range f.Store.Events() {
		if e.AggregateID == aggregateID && e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

// Q parses a quantity.
func Q(s string) types.Quantity { return types.MustQuantity(s) }

// M parses an amount.
func M(s string) types.Money { return types.MustMoney(s) }

// AssertMoney compares amounts numerically.
func AssertMoney(t testing.TB, want string, got types.Money, msgAndArgs ...any) bool {
	t.Helper()
	return assert.Truef(t, M(want).Equal(got), "want %s, got %s %v", want, got.String(), msgAndArgs)
}
