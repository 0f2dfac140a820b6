package cyclecount_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"millstock/internal/app/apptest"
	"millstock/internal/core/apperror"
	"millstock/internal/core/id"
	"millstock/internal/domain/documents"
	"millstock/internal/domain/documents/adjustment"
	"millstock/internal/domain/documents/cyclecount"
	"millstock/internal/domain/events"
	"millstock/internal/domain/registers/stock"
)

func started(t *testing.T, f *apptest.Fixture, batches ...*stock.Batch) *cyclecount.Order {
	t.Helper()
	o := cyclecount.NewOrder("")
	for _, b := range batches {
		o.AddBatch(b.ID)
	}
	require.NoError(t, f.App.CycleCounts.Create(f.Ctx, o))
	assert.True(t, strings.HasPrefix(o.Number, "PD"), o.Number)

	got, err := f.App.CycleCounts.Start(f.Ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, cyclecount.StatusCounting, got.Status)
	require.NotNil(t, got.StartedAt)
	return got
}

func TestComplete_MatchingCountCreatesNoAdjustment(t *testing.T) {
	f := apptest.New(t)
	red := f.Receive(f.Red, "R-1", "100", "10")

	o := started(t, f, red)
	assert.Equal(t, apptest.Q("100"), o.Lines[0].BookQuantity)

	_, err := f.App.CycleCounts.RecordCount(f.Ctx, o.ID, red.ID, apptest.Q("100"), "")
	require.NoError(t, err)

	adjs, err := f.App.CycleCounts.Complete(f.Ctx, o.ID)
	require.NoError(t, err)
	assert.Empty(t, adjs)

	got, err := f.App.CycleCounts.GetByID(f.Ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, cyclecount.StatusCompleted, got.Status)
	assert.Nil(t, got.AdjustmentID)
	f.AssertStock(red.ID, "100")

	list, err := f.App.Adjustments.List(f.Ctx, documents.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, list.Items)
	assert.Len(t, f.EventsOf(o.ID, events.TypeCycleCountDone), 1)
}

func TestComplete_DifferencesBecomeOneCommittedAdjustment(t *testing.T) {
	f := apptest.New(t)
	red := f.Receive(f.Red, "R-1", "100", "10")
	blue := f.Receive(f.Blue, "B-1", "40", "10")
	same := f.Receive(f.Blue, "B-2", "7", "10")

	o := started(t, f, red, blue, same)

	_, err := f.App.CycleCounts.RecordCount(f.Ctx, o.ID, red.ID, apptest.Q("98.5"), "边角料")
	require.NoError(t, err)
	_, err = f.App.CycleCounts.RecordCount(f.Ctx, o.ID, blue.ID, apptest.Q("42"), "")
	require.NoError(t, err)
	_, err = f.App.CycleCounts.RecordCount(f.Ctx, o.ID, same.ID, apptest.Q("7"), "")
	require.NoError(t, err)

	adjs, err := f.App.CycleCounts.Complete(f.Ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, adjs, 1)

	adj := adjs[0]
	assert.Equal(t, adjustment.StatusCompleted, adj.Status)
	require.NotNil(t, adj.CycleCountID)
	assert.Equal(t, o.ID, *adj.CycleCountID)
	require.Len(t, adj.Lines, 2)
	assert.Equal(t, adjustment.TypeShortage, adj.Lines[0].Type)
	assert.Equal(t, apptest.Q("1.5"), adj.Lines[0].Quantity)
	assert.Equal(t, "边角料", adj.Lines[0].Reason)
	assert.Equal(t, adjustment.TypeSurplus, adj.Lines[1].Type)
	assert.Equal(t, apptest.Q("2"), adj.Lines[1].Quantity)

	f.AssertStock(red.ID, "98.5")
	f.AssertStock(blue.ID, "42")
	f.AssertStock(same.ID, "7")

	moves, err := f.App.Stock.ListMovements(f.Ctx, red.ID)
	require.NoError(t, err)
	require.Len(t, moves, 2)
	assert.Equal(t, stock.RecorderCycleCount, moves[1].RecorderType)
	assert.Equal(t, adj.ID, moves[1].RecorderID)

	got, err := f.App.CycleCounts.GetByID(f.Ctx, o.ID)
	require.NoError(t, err)
	require.NotNil(t, got.AdjustmentID)
	assert.Equal(t, adj.ID, *got.AdjustmentID)

	_, err = f.App.CycleCounts.Complete(f.Ctx, o.ID)
	assert.True(t, apperror.IsStateTransition(err))
	f.AssertStock(red.ID, "98.5")
}

func TestComplete_FailedAdjustmentRollsBackCount(t *testing.T) {
	f := apptest.New(t)
	red := f.Receive(f.Red, "R-1", "10", "10")

	o := started(t, f, red)
	_, err := f.App.CycleCounts.RecordCount(f.Ctx, o.ID, red.ID, apptest.Q("2"), "")
	require.NoError(t, err)

	// Stock sold after the snapshot leaves less than the shortage to book.
	_, err = f.App.Engine.AdjustStock(f.Ctx, red.ID, apptest.Q("-9"), "sold during count")
	require.NoError(t, err)

	_, err = f.App.CycleCounts.Complete(f.Ctx, o.ID)
	assert.True(t, apperror.IsInsufficientStock(err), "unexpected error: %v", err)

	got, err := f.App.CycleCounts.GetByID(f.Ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, cyclecount.StatusCounting, got.Status)
	assert.Nil(t, got.AdjustmentID)
	f.AssertStock(red.ID, "1")

	list, err := f.App.Adjustments.List(f.Ctx, documents.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, list.Items, "the generated adjustment is rolled back with the count")
}

func TestRecordCount_Rules(t *testing.T) {
	f := apptest.New(t)
	red := f.Receive(f.Red, "R-1", "10", "10")
	blue := f.Receive(f.Blue, "B-1", "10", "10")

	o := cyclecount.NewOrder("")
	o.AddBatch(red.ID)
	require.NoError(t, f.App.CycleCounts.Create(f.Ctx, o))

	_, err := f.App.CycleCounts.RecordCount(f.Ctx, o.ID, red.ID, apptest.Q("10"), "")
	assert.True(t, apperror.IsStateTransition(err), "counting has not started")

	_, err = f.App.CycleCounts.Start(f.Ctx, o.ID)
	require.NoError(t, err)

	_, err = f.App.CycleCounts.RecordCount(f.Ctx, o.ID, blue.ID, apptest.Q("10"), "")
	assert.True(t, apperror.IsNotFound(err))

	_, err = f.App.CycleCounts.RecordCount(f.Ctx, o.ID, red.ID, apptest.Q("-1"), "")
	assert.True(t, apperror.IsValidation(err))

	_, err = f.App.CycleCounts.Complete(f.Ctx, o.ID)
	assert.True(t, apperror.IsValidation(err), "every batch must be counted")

	cancelled, err := f.App.CycleCounts.Cancel(f.Ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, cyclecount.StatusCancelled, cancelled.Status)
}

func TestCreate_Rejections(t *testing.T) {
	f := apptest.New(t)
	red := f.Receive(f.Red, "R-1", "10", "10")

	o := cyclecount.NewOrder("")
	o.AddBatch(red.ID)
	o.AddBatch(red.ID)
	assert.True(t, apperror.IsValidation(f.App.CycleCounts.Create(f.Ctx, o)))

	o = cyclecount.NewOrder("")
	o.AddBatch(id.New())
	assert.True(t, apperror.IsNotFound(f.App.CycleCounts.Create(f.Ctx, o)))
}
