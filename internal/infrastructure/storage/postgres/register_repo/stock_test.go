package register_repo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"millstock/internal/core/entity"
	"millstock/internal/core/id"
	"millstock/internal/core/types"
	"millstock/internal/domain/registers/stock"
)

func TestStockRepo_BatchColumns(t *testing.T) {
	repo := NewStockRepo(nil)
	assert.Equal(t, []string{
		"id", "version", "created_at", "updated_at",
		"color_id", "product_id", "code",
		"stock_quantity", "initial_quantity",
		"purchase_price", "supplier_id", "production_date", "stock_location",
	}, repo.batchCols)
}

func TestStockRepo_FindBatchQuery(t *testing.T) {
	repo := NewStockRepo(nil)
	colorID := id.New()

	sql, args, err := repo.findBatchQuery(colorID, "A-001").Limit(1).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "FROM reg_batches WHERE code = $1 AND color_id = $2 LIMIT 1")
	assert.Equal(t, []any{"A-001", colorID.String()}, args)
}

func TestStockRepo_UpdateStockIsVersionChecked(t *testing.T) {
	repo := NewStockRepo(nil)
	b := &stock.Batch{BaseEntity: entity.NewBaseEntity(), StockQuantity: types.NewQuantity(7)}
	b.Version = 4

	sql, args, err := repo.updateStockQuery(b).ToSql()
	require.NoError(t, err)

	assert.Equal(t,
		"UPDATE reg_batches SET stock_quantity = $1, version = version + 1, updated_at = NOW() WHERE id = $2 AND version = $3",
		sql)
	assert.Equal(t, []any{types.NewQuantity(7), b.ID.String(), 4}, args)
}

func TestStockRepo_ListBatchesQuery(t *testing.T) {
	repo := NewStockRepo(nil)
	productID := id.New()

	sql, args, err := repo.listBatchesQuery(stock.BatchFilter{
		ProductID:   &productID,
		Search:      " A- ",
		ExcludeZero: true,
	}).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "WHERE product_id = $1 AND code ILIKE $2 AND stock_quantity > $3")
	assert.Equal(t, []any{productID.String(), "%A-%", 0}, args)
}

func TestStockRepo_ListMovementsQuery(t *testing.T) {
	repo := NewStockRepo(nil)
	batchID := id.New()
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	sql, args, err := repo.listMovementsQuery(stock.MovementFilter{
		BatchID:  &batchID,
		FromDate: &from,
		Limit:    50,
	}).ToSql()
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT id, batch_id, delta, balance_after, recorder_type, recorder_id, recorder_number, reason, operator, recorded_at"+
			" FROM reg_stock_movements WHERE batch_id = $1 AND recorded_at >= $2 ORDER BY recorded_at, id LIMIT 50",
		sql)
	assert.Equal(t, []any{batchID.String(), from}, args)
}

func TestMovementRows(t *testing.T) {
	m := stock.Movement{
		ID:             id.New(),
		BatchID:        id.New(),
		Delta:          types.MustQuantity("-2.5"),
		BalanceAfter:   types.NewQuantity(10),
		RecorderType:   stock.RecorderSales,
		RecorderID:     id.New(),
		RecorderNumber: "XS-2026-00003",
		Operator:       "仓管员",
		RecordedAt:     time.Now().UTC(),
	}

	rows := movementRows([]stock.Movement{m})
	require.Len(t, rows, 1)
	require.Len(t, rows[0], len(movementColumns))
	assert.Equal(t, int64(-25000), rows[0][2])
	assert.Equal(t, int64(100000), rows[0][3])
	assert.Equal(t, "sales", rows[0][4])
	assert.Equal(t, "XS-2026-00003", rows[0][6])
}
