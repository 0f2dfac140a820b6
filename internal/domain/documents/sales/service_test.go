package sales_test

import (
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"millstock/internal/app/apptest"
	"millstock/internal/core/apperror"
	"millstock/internal/core/id"
	"millstock/internal/domain/documents/sales"
	"millstock/internal/domain/events"
	"millstock/internal/domain/ledger"
	"millstock/internal/domain/registers/stock"
)

func TestCommit_DeductsAndOpensReceivable(t *testing.T) {
	f := apptest.New(t)
	red := f.Receive(f.Red, "R-1", "100", "10")
	blue := f.Receive(f.Blue, "B-1", "40", "10")

	o := sales.NewOrder("", f.Customer.ID)
	o.AddLine(red.ID, apptest.Q("30"), apptest.M("25"))
	o.AddLine(blue.ID, apptest.Q("15.5"), apptest.M("30"))
	o.AddLine(red.ID, apptest.Q("20"), apptest.M("25"))
	o.ReceivedAmount = apptest.M("465")
	require.NoError(t, f.App.Sales.Create(f.Ctx, o))
	assert.True(t, strings.HasPrefix(o.Number, "XS"), o.Number)
	apptest.AssertMoney(t, "1715", o.TotalAmount)

	got, err := f.App.Sales.Commit(f.Ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, sales.StatusShipped, got.Status)
	require.NotNil(t, got.CommittedAt)

	f.AssertStock(red.ID, "50")
	f.AssertStock(blue.ID, "24.5")

	moves, err := f.App.Stock.ListMovements(f.Ctx, red.ID)
	require.NoError(t, err)
	require.Len(t, moves, 2, "lines of one batch are folded into one movement")
	assert.Equal(t, apptest.Q("-50"), moves[1].Delta)
	assert.Equal(t, stock.RecorderSales, moves[1].RecorderType)

	acc := f.Account(o.ID)
	require.NotNil(t, acc)
	assert.Equal(t, ledger.KindReceivable, acc.Kind)
	assert.Equal(t, f.Customer.ID, acc.CounterpartyID)
	apptest.AssertMoney(t, "1250", acc.UnpaidAmount)

	s, err := f.App.Settlements.RegisterPayment(f.Ctx, acc.ID, apptest.M("1250"), ledger.Meta{})
	require.NoError(t, err)
	assert.Equal(t, ledger.SettlementReceipt, s.Kind)

	assert.Len(t, f.EventsOf(o.ID, events.TypeOrderCommitted), 1)
	assert.Len(t, f.EventsOf(red.ID, events.TypeStockChanged), 1)
}

func TestCommit_ShortfallTouchesNothing(t *testing.T) {
	f := apptest.New(t)
	red := f.Receive(f.Red, "R-1", "100", "10")
	blue := f.Receive(f.Blue, "B-1", "10", "10")

	o := sales.NewOrder("", f.Customer.ID)
	o.AddLine(red.ID, apptest.Q("60"), apptest.M("25"))
	o.AddLine(blue.ID, apptest.Q("6"), apptest.M("25"))
	o.AddLine(blue.ID, apptest.Q("6"), apptest.M("25"))
	require.NoError(t, f.App.Sales.Create(f.Ctx, o), "stock is not checked while drafting")

	_, err := f.App.Sales.Commit(f.Ctx, o.ID)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInsufficientStock, appErr.Code)
	assert.Equal(t, blue.ID.String(), appErr.Details["batch_id"])
	assert.Equal(t, "B-1", appErr.Details["batch_code"])

	f.AssertStock(red.ID, "100")
	f.AssertStock(blue.ID, "10")
	assert.Nil(t, f.Account(o.ID))

	got, err := f.App.Sales.GetByID(f.Ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, sales.StatusDraft, got.Status)
	assert.Nil(t, got.CommittedAt)
}

func TestCommit_Twice(t *testing.T) {
	f := apptest.New(t)
	red := f.Receive(f.Red, "R-1", "100", "10")

	o := sales.NewOrder("", f.Customer.ID)
	o.AddLine(red.ID, apptest.Q("10"), apptest.M("25"))
	o.ReceivedAmount = o.TotalAmount
	require.NoError(t, f.App.Sales.Create(f.Ctx, o))

	_, err := f.App.Sales.Commit(f.Ctx, o.ID)
	require.NoError(t, err)
	assert.Nil(t, f.Account(o.ID), "fully received orders open no receivable")

	_, err = f.App.Sales.Commit(f.Ctx, o.ID)
	assert.True(t, apperror.IsStateTransition(err))
	f.AssertStock(red.ID, "90")
}

func TestCreate_Rejections(t *testing.T) {
	f := apptest.New(t)
	red := f.Receive(f.Red, "R-1", "100", "10")

	o := sales.NewOrder("", f.Customer.ID)
	o.AddLine(id.New(), apptest.Q("1"), apptest.M("1"))
	assert.True(t, apperror.IsNotFound(f.App.Sales.Create(f.Ctx, o)))

	o = sales.NewOrder("", f.Supplier.ID)
	o.AddLine(red.ID, apptest.Q("1"), apptest.M("1"))
	assert.True(t, apperror.IsValidation(f.App.Sales.Create(f.Ctx, o)))

	o = sales.NewOrder("", f.Customer.ID)
	o.AddLine(red.ID, apptest.Q("1"), apptest.M("1"))
	o.ReceivedAmount = apptest.M("2")
	assert.True(t, apperror.IsValidation(f.App.Sales.Create(f.Ctx, o)))

	o = sales.NewOrder("", f.Customer.ID)
	o.AddLine(red.ID, apptest.Q("1"), apptest.M("1"))
	o.ReceivedAmount = apptest.M("0.001")
	assert.True(t, apperror.IsValidation(f.App.Sales.Create(f.Ctx, o)))
}

func TestCheckStock(t *testing.T) {
	f := apptest.New(t)
	red := f.Receive(f.Red, "R-1", "5", "10")

	ok, err := f.App.Sales.CheckStock(f.Ctx, red.ID, apptest.Q("5"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.App.Sales.CheckStock(f.Ctx, red.ID, apptest.Q("6"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConcurrentCommits_NeverOversell(t *testing.T) {
	f := apptest.New(t)
	red := f.Receive(f.Red, "R-1", "100", "10")

	orders := make([]*sales.Order, 8)
	for i := range orders {
		o := sales.NewOrder("", f.Customer.ID)
		o.AddLine(red.ID, apptest.Q("30"), apptest.M("25"))
		require.NoError(t, f.App.Sales.Create(f.Ctx, o))
		orders[i] = o
	}

	var shipped, short int32
	var g errgroup.Group
	for _, o := range orders {
		g.Go(func() error {
			_, err := f.App.Sales.Commit(f.Ctx, o.ID)
			switch {
			case err == nil:
				atomic.AddInt32(&shipped, 1)
			case apperror.IsInsufficientStock(err):
				atomic.AddInt32(&short, 1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(3), shipped)
	assert.Equal(t, int32(5), short)
	f.AssertStock(red.ID, "10")
}

func TestReviewAndCancel(t *testing.T) {
	f := apptest.New(t)
	red := f.Receive(f.Red, "R-1", "100", "10")

	o := sales.NewOrder("", f.Customer.ID)
	o.AddLine(red.ID, apptest.Q("10"), apptest.M("25"))
	require.NoError(t, f.App.Sales.Create(f.Ctx, o))

	_, err := f.App.Sales.Review(f.Ctx, o.ID)
	require.NoError(t, err)
	_, err = f.App.Sales.Review(f.Ctx, o.ID)
	assert.True(t, apperror.IsStateTransition(err))

	cancelled, err := f.App.Sales.Cancel(f.Ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, sales.StatusCancelled, cancelled.Status)

	_, err = f.App.Sales.Commit(f.Ctx, o.ID)
	assert.True(t, apperror.IsStateTransition(err))
	f.AssertStock(red.ID, "100")
}
