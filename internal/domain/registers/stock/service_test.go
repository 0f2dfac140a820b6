package stock_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"millstock/internal/app/apptest"
	"millstock/internal/core/apperror"
	"millstock/internal/core/id"
	"millstock/internal/core/types"
	"millstock/internal/domain/registers/stock"
)

func manual() stock.Recorder {
	return stock.Recorder{Type: stock.RecorderManual, ID: id.New(), Reason: "opening balance"}
}

func TestCreateBatch(t *testing.T) {
	f := apptest.New(t)

	b, err := f.App.Stock.CreateBatch(f.Ctx, f.Red.ID, stock.BatchSpec{
		Code:            "R-1",
		InitialQuantity: apptest.Q("25.5"),
		PurchasePrice:   apptest.M("12"),
	}, manual())
	require.NoError(t, err)
	assert.Equal(t, f.Fabric.ID, b.ProductID)
	assert.Equal(t, apptest.Q("25.5"), b.StockQuantity)
	assert.Equal(t, b.InitialQuantity, b.StockQuantity)

	moves, err := f.App.Stock.ListMovements(f.Ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, moves, 1)
	assert.Equal(t, apptest.Q("25.5"), moves[0].Delta)
	assert.Equal(t, "opening balance", moves[0].Reason)

	t.Run("code is unique per color", func(t *testing.T) {
		_, err := f.App.Stock.CreateBatch(f.Ctx, f.Red.ID, stock.BatchSpec{Code: "R-1"}, manual())
		assert.True(t, apperror.IsDuplicate(err), "unexpected error: %v", err)

		other, err := f.App.Stock.CreateBatch(f.Ctx, f.Blue.ID, stock.BatchSpec{Code: "R-1"}, manual())
		require.NoError(t, err)
		assert.True(t, other.StockQuantity.IsZero())
	})

	t.Run("empty batch has no journal entry", func(t *testing.T) {
		empty, err := f.App.Stock.CreateBatch(f.Ctx, f.Red.ID, stock.BatchSpec{Code: "R-EMPTY"}, manual())
		require.NoError(t, err)
		moves, err := f.App.Stock.ListMovements(f.Ctx, empty.ID)
		require.NoError(t, err)
		assert.Empty(t, moves)
	})

	t.Run("rejections", func(t *testing.T) {
		_, err := f.App.Stock.CreateBatch(f.Ctx, id.New(), stock.BatchSpec{Code: "X"}, manual())
		assert.True(t, apperror.IsNotFound(err))

		_, err = f.App.Stock.CreateBatch(f.Ctx, f.Red.ID, stock.BatchSpec{Code: "  "}, manual())
		assert.True(t, apperror.IsValidation(err))

		_, err = f.App.Stock.CreateBatch(f.Ctx, f.Red.ID, stock.BatchSpec{Code: "R-9", InitialQuantity: apptest.Q("-1")}, manual())
		assert.True(t, apperror.IsValidation(err))

		_, err = f.App.Stock.CreateBatch(f.Ctx, f.Red.ID, stock.BatchSpec{Code: "R-9"}, stock.Recorder{})
		assert.True(t, apperror.IsValidation(err), "unattributed changes are rejected")
	})
}

func TestCheckStock(t *testing.T) {
	f := apptest.New(t)
	b := f.Receive(f.Red, "R-1", "10", "1")

	ok, err := f.App.Stock.CheckStock(f.Ctx, b.ID, apptest.Q("10"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.App.Stock.CheckStock(f.Ctx, b.ID, apptest.Q("10.0001"))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.App.Stock.CheckStock(f.Ctx, b.ID, 0)
	assert.True(t, apperror.IsValidation(err))

	_, err = f.App.Stock.CheckStock(f.Ctx, id.New(), apptest.Q("1"))
	assert.True(t, apperror.IsNotFound(err))
}

func TestAggregation(t *testing.T) {
	f := apptest.New(t)
	f.Receive(f.Red, "R-1", "10", "1")
	f.Receive(f.Red, "R-2", "5.25", "1")
	f.Receive(f.Blue, "B-1", "7", "1")

	red, err := f.App.Stock.AggregateByColor(f.Ctx, f.Red.ID)
	require.NoError(t, err)
	assert.Equal(t, apptest.Q("15.25"), red)

	fabric, err := f.App.Stock.AggregateByProduct(f.Ctx, f.Fabric.ID)
	require.NoError(t, err)
	assert.Equal(t, apptest.Q("22.25"), fabric)

	greige, err := f.App.Stock.AggregateByProduct(f.Ctx, f.Greige.ID)
	require.NoError(t, err)
	assert.True(t, greige.IsZero())

	_, err = f.App.Stock.AggregateByColor(f.Ctx, id.New())
	assert.True(t, apperror.IsNotFound(err))
}

func TestGetInventoryByProduct(t *testing.T) {
	f := apptest.New(t)
	f.Receive(f.Red, "R-2", "5", "1")
	f.Receive(f.Red, "R-1", "10", "1")

	inv, err := f.App.Stock.GetInventoryByProduct(f.Ctx, f.Fabric.ID)
	require.NoError(t, err)
	assert.Equal(t, "FB-JR", inv.ProductCode)
	assert.Equal(t, apptest.Q("15"), inv.TotalStock)
	require.Len(t, inv.Colors, 2)

	byColor := make(map[id.ID]stock.ColorInventory)
	for _, c := range inv.Colors {
		byColor[c.ColorID] = c
	}

	red := byColor[f.Red.ID]
	require.Len(t, red.Batches, 2)
	assert.Equal(t, "R-1", red.Batches[0].Code)
	assert.Equal(t, "R-2", red.Batches[1].Code)
	assert.Equal(t, apptest.Q("15"), red.TotalStock)

	blue := byColor[f.Blue.ID]
	assert.NotNil(t, blue.Batches)
	assert.Empty(t, blue.Batches)
	assert.True(t, blue.TotalStock.IsZero())

	var sum types.Quantity
	for _, c := range inv.Colors {
		sum += c.TotalStock
	}
	assert.Equal(t, inv.TotalStock, sum)
}
