package ledger_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"millstock/internal/app/apptest"
	"millstock/internal/core/apperror"
	"millstock/internal/core/id"
	"millstock/internal/domain/documents/purchase"
	"millstock/internal/domain/events"
	"millstock/internal/domain/ledger"
)

// payable commits a purchase worth total with paid upfront and returns its
// account.
func payable(f *apptest.Fixture, code, total, paid string) *ledger.Account {
	f.T.Helper()
	o := purchase.NewOrder("", f.Supplier.ID)
	o.AddLine(f.Fabric.ID, f.Red.ID, code, apptest.Q("1"), apptest.M(total))
	o.PaidAmount = apptest.M(paid)
	require.NoError(f.T, f.App.Purchases.Create(f.Ctx, o))
	_, err := f.App.Purchases.Commit(f.Ctx, o.ID)
	require.NoError(f.T, err)

	acc := f.Account(o.ID)
	require.NotNil(f.T, acc)
	return acc
}

func TestRegisterPayment(t *testing.T) {
	f := apptest.New(t)
	acc := payable(f, "R-1", "1000", "200")

	date := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	s, err := f.App.Settlements.RegisterPayment(f.Ctx, acc.ID, apptest.M("300"), ledger.Meta{Date: date, Remark: "电汇"})
	require.NoError(t, err)
	assert.Equal(t, ledger.SettlementPayment, s.Kind)
	assert.Equal(t, f.Supplier.ID, s.CounterpartyID)
	assert.Equal(t, date, s.Date)
	assert.Equal(t, "仓管员", s.Operator)

	got, err := f.App.Ledger.GetAccount(f.Ctx, acc.ID)
	require.NoError(t, err)
	apptest.AssertMoney(t, "500", got.PaidAmount)
	apptest.AssertMoney(t, "500", got.UnpaidAmount)
	assert.Equal(t, ledger.StatusOpen, got.Status)

	_, err = f.App.Settlements.RegisterPayment(f.Ctx, acc.ID, apptest.M("500.01"), ledger.Meta{})
	assert.True(t, apperror.IsValidation(err))

	_, err = f.App.Settlements.RegisterPayment(f.Ctx, acc.ID, apptest.M("500"), ledger.Meta{Operator: "出纳"})
	require.NoError(t, err)

	got, err = f.App.Ledger.GetAccount(f.Ctx, acc.ID)
	require.NoError(t, err)
	assert.True(t, got.UnpaidAmount.IsZero())
	assert.Equal(t, ledger.StatusSettled, got.Status)

	list, err := f.App.Ledger.ListSettlements(f.Ctx, acc.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "出纳", list[1].Operator)

	_, err = f.App.Settlements.RegisterPayment(f.Ctx, acc.ID, apptest.M("0.01"), ledger.Meta{})
	assert.True(t, apperror.IsValidation(err), "settled accounts accept nothing")

	assert.Len(t, f.EventsOf(acc.ID, events.TypeAccountSettled), 2)
}

func TestRegisterPayment_Rejections(t *testing.T) {
	f := apptest.New(t)
	acc := payable(f, "R-1", "100", "0")

	for _, amount := range []string{"0", "-1", "0.001", "0.005", "10.125"} {
		_, err := f.App.Settlements.RegisterPayment(f.Ctx, acc.ID, apptest.M(amount), ledger.Meta{})
		assert.True(t, apperror.IsValidation(err), "amount %s", amount)
	}

	got, err := f.App.Ledger.GetAccount(f.Ctx, acc.ID)
	require.NoError(t, err)
	assert.True(t, got.PaidAmount.IsZero())
	apptest.AssertMoney(t, "100", got.UnpaidAmount)

	_, err = f.App.Settlements.RegisterPayment(f.Ctx, id.New(), apptest.M("1"), ledger.Meta{})
	assert.True(t, apperror.IsNotFound(err))

	_, err = f.App.Settlements.RegisterBatchPayment(f.Ctx, nil, ledger.Meta{})
	assert.True(t, apperror.IsValidation(err))
}

func TestRegisterBatchPayment_AllOrNothing(t *testing.T) {
	f := apptest.New(t)
	a := payable(f, "R-1", "100", "0")
	b := payable(f, "R-2", "50", "0")

	// The second entry on a would overpay it once the first is applied.
	_, err := f.App.Settlements.RegisterBatchPayment(f.Ctx, []ledger.Entry{
		{AccountID: b.ID, Amount: apptest.M("50")},
		{AccountID: a.ID, Amount: apptest.M("60")},
		{AccountID: a.ID, Amount: apptest.M("60")},
	}, ledger.Meta{})
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))

	for _, acc := range []*ledger.Account{a, b} {
		got, err := f.App.Ledger.GetAccount(f.Ctx, acc.ID)
		require.NoError(t, err)
		assert.True(t, got.PaidAmount.IsZero(), "account %s was touched", got.OrderNumber)
		list, err := f.App.Ledger.ListSettlements(f.Ctx, acc.ID)
		require.NoError(t, err)
		assert.Empty(t, list)
	}

	list, err := f.App.Settlements.RegisterBatchPayment(f.Ctx, []ledger.Entry{
		{AccountID: b.ID, Amount: apptest.M("50")},
		{AccountID: a.ID, Amount: apptest.M("60")},
		{AccountID: a.ID, Amount: apptest.M("40")},
	}, ledger.Meta{})
	require.NoError(t, err)
	assert.Len(t, list, 3)

	bal, err := f.App.Ledger.CounterpartyBalance(f.Ctx, f.Supplier.ID, ledger.KindPayable)
	require.NoError(t, err)
	apptest.AssertMoney(t, "150", bal.TotalAmount)
	assert.True(t, bal.UnpaidAmount.IsZero())
	assert.Equal(t, 0, bal.OpenAccounts)
}

func TestRegisterPayment_ConcurrentNeverOverpays(t *testing.T) {
	f := apptest.New(t)
	acc := payable(f, "R-1", "500", "0")

	var g errgroup.Group
	results := make([]error, 10)
	for i := range results {
		g.Go(func() error {
			_, results[i] = f.App.Settlements.RegisterPayment(f.Ctx, acc.ID, apptest.M("100"), ledger.Meta{})
			return nil
		})
	}
	require.NoError(t, g.Wait())

	var ok int
	for _, err := range results {
		if err == nil {
			ok++
		} else {
			assert.True(t, apperror.IsValidation(err), "unexpected error: %v", err)
		}
	}
	assert.Equal(t, 5, ok)

	got, err := f.App.Ledger.GetAccount(f.Ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusSettled, got.Status)
	apptest.AssertMoney(t, "500", got.PaidAmount)
}

func TestCounterpartyBalance(t *testing.T) {
	f := apptest.New(t)
	payable(f, "R-1", "100", "40")
	payable(f, "R-2", "70", "0")

	bal, err := f.App.Ledger.CounterpartyBalance(f.Ctx, f.Supplier.ID, ledger.KindPayable)
	require.NoError(t, err)
	apptest.AssertMoney(t, "170", bal.TotalAmount)
	apptest.AssertMoney(t, "40", bal.PaidAmount)
	apptest.AssertMoney(t, "130", bal.UnpaidAmount)
	assert.Equal(t, 2, bal.OpenAccounts)

	none, err := f.App.Ledger.CounterpartyBalance(f.Ctx, f.Supplier.ID, ledger.KindReceivable)
	require.NoError(t, err)
	assert.True(t, none.TotalAmount.IsZero())

	_, err = f.App.Ledger.CounterpartyBalance(f.Ctx, f.Supplier.ID, ledger.Kind("loan"))
	assert.True(t, apperror.IsValidation(err))
}
