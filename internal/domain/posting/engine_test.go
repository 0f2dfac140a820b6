package posting_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"millstock/internal/app"
	"millstock/internal/app/apptest"
	"millstock/internal/core/apperror"
	"millstock/internal/core/id"
	"millstock/internal/core/lockkey"
	"millstock/internal/core/types"
	"millstock/internal/domain/events"
	"millstock/internal/domain/posting"
	"millstock/internal/domain/registers/stock"
)

// noLocks lets every caller in, leaving version checks as the only guard.
type noLocks struct{}

func (noLocks) Acquire(context.Context, []string) (func(), error) { return func() {}, nil }

func TestRun_RetriesThenConflict(t *testing.T) {
	f := apptest.New(t)

	var calls int32
	err := f.App.Engine.Run(f.Ctx, []string{"batch:x"}, func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return apperror.NewConcurrentModification("batch", "x")
	})

	require.Error(t, err)
	assert.True(t, apperror.IsConcurrencyConflict(err))
	assert.Equal(t, int32(5), calls)
}

func TestRun_RecoversAfterTransientConflict(t *testing.T) {
	f := apptest.New(t)

	var calls int32
	err := f.App.Engine.Run(f.Ctx, nil, func(ctx context.Context) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return apperror.NewConcurrentModification("batch", "x")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, int32(3), calls)
}

func TestRun_OtherErrorsAreNotRetried(t *testing.T) {
	f := apptest.New(t)
	boom := errors.New("boom")

	var calls int32
	err := f.App.Engine.Run(f.Ctx, nil, func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return boom
	})

	require.ErrorIs(t, err, boom)
	assert.Equal(t, int32(1), calls)
}

func TestRun_NestedJoinsOuterUnit(t *testing.T) {
	f := apptest.New(t)
	b := f.Receive(f.Red, "R-1", "10", "12.5")

	boom := errors.New("outer fails after inner applied")
	err := f.App.Engine.Run(f.Ctx, []string{lockkey.Batch(b.ID)}, func(ctx context.Context) error {
		assert.True(t, posting.InRun(ctx))
		if _, err := f.App.Engine.AdjustStock(ctx, b.ID, apptest.Q("-4"), "damaged"); err != nil {
			return err
		}
		return boom
	})

	require.ErrorIs(t, err, boom)
	f.AssertStock(b.ID, "10")
}

func TestAdjustStock_RoundTrip(t *testing.T) {
	f := apptest.New(t)
	b := f.Receive(f.Red, "R-1", "100", "10")

	_, err := f.App.Engine.AdjustStock(f.Ctx, b.ID, apptest.Q("5"), "found")
	require.NoError(t, err)
	_, err = f.App.Engine.AdjustStock(f.Ctx, b.ID, apptest.Q("-5"), "recount")
	require.NoError(t, err)

	f.AssertStock(b.ID, "100")

	moves, err := f.App.Stock.ListMovements(f.Ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, moves, 3)
	assert.Equal(t, stock.RecorderPurchase, moves[0].RecorderType)
	assert.Equal(t, stock.RecorderManual, moves[1].RecorderType)
	assert.Equal(t, apptest.Q("105"), moves[1].BalanceAfter)
	assert.Equal(t, apptest.Q("100"), moves[2].BalanceAfter)
	assert.Equal(t, "仓管员", moves[2].Operator)
}

func TestAdjustStock_Rejections(t *testing.T) {
	f := apptest.New(t)
	b := f.Receive(f.Red, "R-1", "3", "10")

	_, err := f.App.Engine.AdjustStock(f.Ctx, b.ID, apptest.Q("-3.5"), "too much")
	assert.True(t, apperror.IsInsufficientStock(err))

	_, err = f.App.Engine.AdjustStock(f.Ctx, b.ID, 0, "nothing")
	assert.True(t, apperror.IsValidation(err))

	_, err = f.App.Engine.AdjustStock(f.Ctx, b.ID, apptest.Q("1"), " ")
	assert.True(t, apperror.IsValidation(err), "manual changes need a reason")

	_, err = f.App.Engine.AdjustStock(f.Ctx, id.New(), apptest.Q("1"), "ghost")
	assert.True(t, apperror.IsNotFound(err))

	_, err = f.App.Engine.AdjustStock(f.Ctx, b.ID, apptest.Q("-3"), "sold out")
	require.NoError(t, err)
	f.AssertStock(b.ID, "0")
}

func TestExecute_NothingAppliedWhenOneDeltaFails(t *testing.T) {
	f := apptest.New(t)
	a := f.Receive(f.Red, "R-1", "10", "10")
	b := f.Receive(f.Blue, "B-1", "2", "10")
	eventsBefore := len(f.Store.Events())

	_, err := f.App.Engine.Execute(f.Ctx, posting.Command{
		Name:     "test.two_batches",
		EntityID: id.New(),
		Keys:     []string{lockkey.Batch(a.ID), lockkey.Batch(b.ID)},
		Plan: func(ctx context.Context) (*posting.MovementSet, error) {
			set := &posting.MovementSet{Recorder: stock.Recorder{Type: stock.RecorderSales, ID: id.New()}}
			set.AddDelta(a.ID, apptest.Q("-5"))
			set.AddDelta(b.ID, apptest.Q("-1"))
			set.AddDelta(b.ID, apptest.Q("-1.5"))
			return set, nil
		},
	})

	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))
	f.AssertStock(a.ID, "10")
	f.AssertStock(b.ID, "2")
	assert.Len(t, f.Store.Events(), eventsBefore)
}

func TestExecute_RejectsBatchesOutsideHeldKeys(t *testing.T) {
	f := apptest.New(t)
	a := f.Receive(f.Red, "R-1", "10", "10")
	b := f.Receive(f.Blue, "B-1", "10", "10")
	orderID := id.New()

	tests := []struct {
		name string
		plan func(set *posting.MovementSet)
	}{
		{
			name: "delta on a batch read before the lock",
			plan: func(set *posting.MovementSet) {
				set.AddDelta(a.ID, apptest.Q("-1"))
				set.AddDelta(b.ID, apptest.Q("-1"))
			},
		},
		{
			name: "receipt for an undeclared code",
			plan: func(set *posting.MovementSet) {
				set.AddReceipt(f.Red.ID, apptest.Q("1"), stock.BatchSpec{Code: "R-9"})
			},
		},
		{
			name: "new batch for an undeclared code",
			plan: func(set *posting.MovementSet) {
				set.AddBatch(f.Blue.ID, stock.BatchSpec{Code: "B-9", InitialQuantity: apptest.Q("1")})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			_, err := f.App.Engine.Execute(f.Ctx, posting.Command{
				Name:       "test.unheld",
				EntityType: "sales_order",
				EntityID:   orderID,
				Keys:       []string{lockkey.Order(orderID), lockkey.Batch(a.ID)},
				Plan: func(ctx context.Context) (*posting.MovementSet, error) {
					atomic.AddInt32(&calls, 1)
					set := &posting.MovementSet{Recorder: stock.Recorder{Type: stock.RecorderSales, ID: orderID}}
					tt.plan(set)
					return set, nil
				},
			})

			require.Error(t, err)
			assert.True(t, apperror.IsConcurrentModification(err), "unexpected error: %v", err)
			assert.Equal(t, int32(1), calls, "a stale key set is not retried")
		})
	}

	f.AssertStock(a.ID, "10")
	f.AssertStock(b.ID, "10")
	_, err := f.App.Stock.FindBatch(f.Ctx, f.Red.ID, "R-9")
	assert.True(t, apperror.IsNotFound(err))
}

func TestRequireHeld(t *testing.T) {
	f := apptest.New(t)
	orderID, held, other := id.New(), id.New(), id.New()

	err := f.App.Engine.Run(f.Ctx, []string{lockkey.Batch(held)}, func(ctx context.Context) error {
		require.NoError(t, posting.RequireHeld(ctx, "cycle_count", orderID, lockkey.Batch(held)))
		return posting.RequireHeld(ctx, "cycle_count", orderID, lockkey.Batch(held), lockkey.Batch(other))
	})
	require.Error(t, err)
	assert.True(t, apperror.IsConcurrentModification(err))

	assert.Error(t, posting.RequireHeld(f.Ctx, "cycle_count", orderID, lockkey.Batch(held)), "outside a unit nothing is held")
}

func TestExecute_ReceiptsResolveOrCreate(t *testing.T) {
	f := apptest.New(t)
	existing := f.Receive(f.Red, "R-1", "10", "10")

	rec := stock.Recorder{Type: stock.RecorderPurchase, ID: id.New(), Number: "CG-TEST"}
	res, err := f.App.Engine.Execute(f.Ctx, posting.Command{
		Name:     "test.receipts",
		EntityID: rec.ID,
		Keys:     []string{lockkey.BatchCode(f.Red.ID, "R-1"), lockkey.BatchCode(f.Red.ID, "R-2")},
		Plan: func(ctx context.Context) (*posting.MovementSet, error) {
			set := &posting.MovementSet{Recorder: rec}
			set.AddReceipt(f.Red.ID, apptest.Q("1"), stock.BatchSpec{Code: "R-1"})
			set.AddReceipt(f.Red.ID, apptest.Q("2"), stock.BatchSpec{Code: "R-2"})
			set.AddReceipt(f.Red.ID, apptest.Q("3"), stock.BatchSpec{Code: "R-2"})
			return set, nil
		},
	})
	require.NoError(t, err)

	assert.Equal(t, existing.ID, res.Batch(f.Red.ID, "R-1").ID)
	f.AssertStock(existing.ID, "11")

	created := res.Batch(f.Red.ID, "R-2")
	require.NotNil(t, created)
	assert.Equal(t, apptest.Q("5"), created.InitialQuantity)
	f.AssertStock(created.ID, "5")

	var createdEvents int
	for _, e := range f.Store.Events() {
		if e.EventType == events.TypeBatchCreated && e.AggregateID == created.ID {
			createdEvents++
		}
	}
	assert.Equal(t, 1, createdEvents)
}

func TestConcurrentDeductions_NeverOversell(t *testing.T) {
	cases := []struct {
		name string
		opts app.Options
	}{
		{name: "keyed locks", opts: app.Options{}},
		{name: "optimistic only", opts: app.Options{Locker: noLocks{}, Posting: posting.Config{MaxAttempts: 50}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := apptest.NewWithOptions(t, tc.opts)
			b := f.Receive(f.Red, "R-1", "10", "10")

			var ok, short, conflict int32
			var g errgroup.Group
			for i := 0; i < 25; i++ {
				g.Go(func() error {
					_, err := f.App.Engine.AdjustStock(f.Ctx, b.ID, apptest.Q("-1"), "pick")
					switch {
					case err == nil:
						atomic.AddInt32(&ok, 1)
					case apperror.IsInsufficientStock(err):
						atomic.AddInt32(&short, 1)
					case apperror.IsConcurrencyConflict(err):
						atomic.AddInt32(&conflict, 1)
					default:
						return err
					}
					return nil
				})
			}
			require.NoError(t, g.Wait())

			assert.LessOrEqual(t, ok, int32(10))
			assert.Equal(t, int32(25), ok+short+conflict)
			assert.Equal(t, types.NewQuantity(10-int64(ok)), f.Stock(b.ID))

			moves, err := f.App.Stock.ListMovements(f.Ctx, b.ID)
			require.NoError(t, err)
			assert.Len(t, moves, 1+int(ok))
		})
	}
}
