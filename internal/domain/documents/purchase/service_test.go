package purchase_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"millstock/internal/app/apptest"
	"millstock/internal/core/apperror"
	"millstock/internal/core/id"
	"millstock/internal/domain/documents/purchase"
	"millstock/internal/domain/events"
	"millstock/internal/domain/ledger"
	"millstock/internal/domain/registers/stock"
)

func newOrder(f *apptest.Fixture) *purchase.Order {
	return purchase.NewOrder("", f.Supplier.ID)
}

func TestCreate_AssignsNumberAndTotals(t *testing.T) {
	f := apptest.New(t)

	o := newOrder(f)
	o.AddLine(f.Fabric.ID, f.Red.ID, " R-1 ", apptest.Q("120.5"), apptest.M("18"))
	o.AddLine(f.Fabric.ID, f.Blue.ID, "B-1", apptest.Q("80"), apptest.M("20.25"))
	require.NoError(t, f.App.Purchases.Create(f.Ctx, o))

	got, err := f.App.Purchases.GetByID(f.Ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got.Number, "CG"), got.Number)
	assert.Equal(t, purchase.StatusDraft, got.Status)
	assert.Equal(t, "仓管员", got.Operator)
	assert.Equal(t, apptest.Q("200.5"), got.TotalQuantity)
	apptest.AssertMoney(t, "3789", got.TotalAmount)
	assert.Equal(t, "R-1", got.Lines[0].BatchCode)
	assert.Nil(t, got.Lines[0].BatchID)
}

func TestCreate_Rejections(t *testing.T) {
	f := apptest.New(t)

	tests := []struct {
		name  string
		build func() *purchase.Order
		check func(error) bool
	}{
		{
			name:  "no lines",
			build: func() *purchase.Order { return newOrder(f) },
			check: apperror.IsValidation,
		},
		{
			name: "zero quantity",
			build: func() *purchase.Order {
				o := newOrder(f)
				o.AddLine(f.Fabric.ID, f.Red.ID, "R-1", 0, apptest.M("1"))
				return o
			},
			check: apperror.IsValidation,
		},
		{
			name: "color of another product",
			build: func() *purchase.Order {
				o := newOrder(f)
				o.AddLine(f.Greige.ID, f.Red.ID, "R-1", apptest.Q("1"), apptest.M("1"))
				return o
			},
			check: apperror.IsValidation,
		},
		{
			name: "unknown color",
			build: func() *purchase.Order {
				o := newOrder(f)
				o.AddLine(f.Fabric.ID, id.New(), "R-1", apptest.Q("1"), apptest.M("1"))
				return o
			},
			check: apperror.IsNotFound,
		},
		{
			name: "customer is not a supplier",
			build: func() *purchase.Order {
				o := purchase.NewOrder("", f.Customer.ID)
				o.AddLine(f.Fabric.ID, f.Red.ID, "R-1", apptest.Q("1"), apptest.M("1"))
				return o
			},
			check: apperror.IsValidation,
		},
		{
			name: "overpaid",
			build: func() *purchase.Order {
				o := newOrder(f)
				o.AddLine(f.Fabric.ID, f.Red.ID, "R-1", apptest.Q("1"), apptest.M("10"))
				o.PaidAmount = apptest.M("10.01")
				return o
			},
			check: apperror.IsValidation,
		},
		{
			name: "paid amount below a cent",
			build: func() *purchase.Order {
				o := newOrder(f)
				o.AddLine(f.Fabric.ID, f.Red.ID, "R-1", apptest.Q("1"), apptest.M("10"))
				o.PaidAmount = apptest.M("0.005")
				return o
			},
			check: apperror.IsValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.App.Purchases.Create(f.Ctx, tt.build())
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error: %v", err)
		})
	}
}

func TestCommit_ResolvesOrCreatesBatches(t *testing.T) {
	f := apptest.New(t)
	existing := f.Receive(f.Red, "R-1", "50", "18")

	o := newOrder(f)
	o.AddLine(f.Fabric.ID, f.Red.ID, "R-1", apptest.Q("10"), apptest.M("18"))
	o.AddLine(f.Fabric.ID, f.Blue.ID, "B-7", apptest.Q("30"), apptest.M("21"))
	o.AddLine(f.Fabric.ID, f.Blue.ID, "B-7", apptest.Q("12.5"), apptest.M("21"))
	o.StockLocation = "A-03"
	require.NoError(t, f.App.Purchases.Create(f.Ctx, o))

	got, err := f.App.Purchases.Commit(f.Ctx, o.ID)
	require.NoError(t, err)

	assert.Equal(t, purchase.StatusReceived, got.Status)
	require.NotNil(t, got.CommittedAt)
	assert.Equal(t, existing.ID, *got.Lines[0].BatchID)
	require.NotNil(t, got.Lines[1].BatchID)
	assert.Equal(t, *got.Lines[1].BatchID, *got.Lines[2].BatchID, "same color and code land in one batch")

	f.AssertStock(existing.ID, "60")

	blue, err := f.App.Stock.GetBatch(f.Ctx, *got.Lines[1].BatchID)
	require.NoError(t, err)
	assert.Equal(t, apptest.Q("42.5"), blue.StockQuantity)
	assert.Equal(t, apptest.Q("42.5"), blue.InitialQuantity)
	assert.Equal(t, f.Fabric.ID, blue.ProductID)
	assert.Equal(t, "A-03", blue.StockLocation)
	require.NotNil(t, blue.SupplierID)
	assert.Equal(t, f.Supplier.ID, *blue.SupplierID)
	apptest.AssertMoney(t, "21", blue.PurchasePrice)

	moves, err := f.App.Stock.ListMovements(f.Ctx, blue.ID)
	require.NoError(t, err)
	require.Len(t, moves, 1)
	assert.Equal(t, stock.RecorderPurchase, moves[0].RecorderType)
	assert.Equal(t, o.ID, moves[0].RecorderID)
	assert.Equal(t, got.Number, moves[0].RecorderNumber)

	assert.Len(t, f.EventsOf(o.ID, events.TypeOrderCommitted), 1)
}

func TestCommit_OpensPayableForUnpaidRest(t *testing.T) {
	f := apptest.New(t)

	o := newOrder(f)
	o.AddLine(f.Fabric.ID, f.Red.ID, "R-1", apptest.Q("100"), apptest.M("15"))
	o.PaidAmount = apptest.M("500")
	require.NoError(t, f.App.Purchases.Create(f.Ctx, o))
	_, err := f.App.Purchases.Commit(f.Ctx, o.ID)
	require.NoError(t, err)

	acc := f.Account(o.ID)
	require.NotNil(t, acc)
	assert.Equal(t, ledger.KindPayable, acc.Kind)
	assert.Equal(t, f.Supplier.ID, acc.CounterpartyID)
	assert.Equal(t, o.Number, acc.OrderNumber)
	apptest.AssertMoney(t, "1500", acc.TotalAmount)
	apptest.AssertMoney(t, "500", acc.PaidAmount)
	apptest.AssertMoney(t, "1000", acc.UnpaidAmount)
	assert.Equal(t, ledger.StatusOpen, acc.Status)

	settlements, err := f.App.Ledger.ListSettlements(f.Ctx, acc.ID)
	require.NoError(t, err)
	assert.Empty(t, settlements, "upfront payment is part of the order")
}

func TestCommit_FullyPaidOpensNothing(t *testing.T) {
	f := apptest.New(t)
	b := f.Receive(f.Red, "R-1", "10", "10")

	moves, err := f.App.Stock.ListMovements(f.Ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, moves, 1)
	assert.Nil(t, f.Account(moves[0].RecorderID))
}

func TestCommit_Twice(t *testing.T) {
	f := apptest.New(t)

	o := newOrder(f)
	o.AddLine(f.Fabric.ID, f.Red.ID, "R-1", apptest.Q("10"), apptest.M("1"))
	require.NoError(t, f.App.Purchases.Create(f.Ctx, o))

	got, err := f.App.Purchases.Commit(f.Ctx, o.ID)
	require.NoError(t, err)
	batchID := *got.Lines[0].BatchID

	_, err = f.App.Purchases.Commit(f.Ctx, o.ID)
	assert.True(t, apperror.IsStateTransition(err), "unexpected error: %v", err)
	f.AssertStock(batchID, "10")

	_, err = f.App.Purchases.Cancel(f.Ctx, o.ID)
	assert.True(t, apperror.IsStateTransition(err))
}

func TestLifecycle_ReviewUpdateCancel(t *testing.T) {
	f := apptest.New(t)

	o := newOrder(f)
	o.AddLine(f.Fabric.ID, f.Red.ID, "R-1", apptest.Q("10"), apptest.M("1"))
	require.NoError(t, f.App.Purchases.Create(f.Ctx, o))

	reviewed, err := f.App.Purchases.Review(f.Ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, purchase.StatusReviewed, reviewed.Status)

	reviewed.Lines[0].Quantity = apptest.Q("11")
	err = f.App.Purchases.Update(f.Ctx, reviewed)
	assert.True(t, apperror.IsStateTransition(err), "reviewed orders are read-only")

	draft, err := f.App.Purchases.Unreview(f.Ctx, o.ID)
	require.NoError(t, err)
	draft.Lines[0].Quantity = apptest.Q("11")
	require.NoError(t, f.App.Purchases.Update(f.Ctx, draft))

	stale := draft.Clone()
	stale.Version--
	err = f.App.Purchases.Update(f.Ctx, stale)
	require.Error(t, err)
	assert.True(t, apperror.IsConcurrencyConflict(err), "unexpected error: %v", err)

	cancelled, err := f.App.Purchases.Cancel(f.Ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, purchase.StatusCancelled, cancelled.Status)
	assert.Len(t, f.EventsOf(o.ID, events.TypeOrderCancelled), 1)

	_, err = f.App.Purchases.Commit(f.Ctx, o.ID)
	assert.True(t, apperror.IsStateTransition(err))

	batch, err := f.App.Stock.FindBatch(f.Ctx, f.Red.ID, "R-1")
	assert.Nil(t, batch)
	assert.True(t, apperror.IsNotFound(err))
}

func TestCommit_FromReviewed(t *testing.T) {
	f := apptest.New(t)

	o := newOrder(f)
	o.AddLine(f.Fabric.ID, f.Red.ID, "R-1", apptest.Q("10"), apptest.M("1"))
	require.NoError(t, f.App.Purchases.Create(f.Ctx, o))
	_, err := f.App.Purchases.Review(f.Ctx, o.ID)
	require.NoError(t, err)

	got, err := f.App.Purchases.Commit(f.Ctx, o.ID)
	require.NoError(t, err)
	f.AssertStock(*got.Lines[0].BatchID, "10")
}
