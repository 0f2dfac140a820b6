// Package register_repo provides PostgreSQL implementations for register
// repositories: batches with their stock journal.
package register_repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"millstock/internal/core/apperror"
	"millstock/internal/core/id"
	"millstock/internal/domain"
	"millstock/internal/domain/registers/stock"
	"millstock/internal/infrastructure/storage/postgres"
)

const (
	batchesTable        = "reg_batches"
	stockMovementsTable = "reg_stock_movements"

	batchEntity = "batch"
)

var movementColumns = []string{
	"id", "batch_id", "delta", "balance_after",
	"recorder_type", "recorder_id", "recorder_number", "reason",
	"operator", "recorded_at",
}

// StockRepo implements stock.Repository.
type StockRepo struct {
	txm      *postgres.TxManager
	builder  squirrel.StatementBuilderType
	inserter *postgres.BatchInserter

	batchCols []string
}

// NewStockRepo creates a new stock register repository.
func NewStockRepo(txm *postgres.TxManager) *StockRepo {
	return &StockRepo{
		txm:       txm,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		inserter:  postgres.NewBatchInserter(txm),
		batchCols: postgres.ExtractDBColumns[stock.Batch](),
	}
}

var _ stock.Repository = (*StockRepo)(nil)

func (r *StockRepo) querier(ctx context.Context) postgres.Querier {
	return r.txm.GetQuerier(ctx)
}

// CreateBatch inserts a batch.
func (r *StockRepo) CreateBatch(ctx context.Context, b *stock.Batch) error {
	data := postgres.StructToMap(b)
	filtered := make(map[string]any, len(r.batchCols))
	for _, col := range r.batchCols {
		if v, ok := data[col]; ok {
			filtered[col] = v
		}
	}

	sql, args, err := r.builder.Insert(batchesTable).SetMap(filtered).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(fmt.Errorf("insert batch: %w", err), batchEntity, b.Code)
	}
	return nil
}

func (r *StockRepo) batchSelect() squirrel.SelectBuilder {
	return r.builder.Select(r.batchCols...).From(batchesTable)
}

func (r *StockRepo) getBatch(ctx context.Context, q squirrel.SelectBuilder, key any) (*stock.Batch, error) {
	sql, args, err := q.Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	b := &stock.Batch{}
	if err := pgxscan.Get(ctx, r.querier(ctx), b, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound(batchEntity, key)
		}
		return nil, fmt.Errorf("get batch: %w", err)
	}
	return b, nil
}

// GetBatch retrieves a batch by ID.
func (r *StockRepo) GetBatch(ctx context.Context, batchID id.ID) (*stock.Batch, error) {
	return r.getBatch(ctx, r.batchSelect().Where(squirrel.Eq{"id": batchID}), batchID)
}

// FindBatch retrieves a batch by color and code.
func (r *StockRepo) FindBatch(ctx context.Context, colorID id.ID, code string) (*stock.Batch, error) {
	code = strings.TrimSpace(code)
	return r.getBatch(ctx, r.findBatchQuery(colorID, code), code)
}

func (r *StockRepo) findBatchQuery(colorID id.ID, code string) squirrel.SelectBuilder {
	return r.batchSelect().Where(squirrel.Eq{"color_id": colorID, "code": code})
}

// updateStockQuery writes the quantity guarded by the loaded version.
func (r *StockRepo) updateStockQuery(b *stock.Batch) squirrel.UpdateBuilder {
	return r.builder.Update(batchesTable).
		Set("stock_quantity", b.StockQuantity).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": b.ID}).
		Where(squirrel.Eq{"version": b.Version})
}

// UpdateBatchStock writes StockQuantity with optimistic locking.
func (r *StockRepo) UpdateBatchStock(ctx context.Context, b *stock.Batch) error {
	sql, args, err := r.updateStockQuery(b).ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		// chk_reg_batches_stock_non_negative surfaces as a validation error
		return postgres.MapError(fmt.Errorf("update batch stock: %w", err), batchEntity, b.ID)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification(batchEntity, b.ID)
	}

	b.Touch()
	return nil
}

func (r *StockRepo) selectBatches(ctx context.Context, q squirrel.SelectBuilder) ([]*stock.Batch, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	items := []*stock.Batch{}
	if err := pgxscan.Select(ctx, r.querier(ctx), &items, sql, args...); err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	return items, nil
}

// ListBatchesByColor returns the batches of a color ordered by code.
func (r *StockRepo) ListBatchesByColor(ctx context.Context, colorID id.ID) ([]*stock.Batch, error) {
	return r.selectBatches(ctx, r.batchSelect().Where(squirrel.Eq{"color_id": colorID}).OrderBy("code ASC"))
}

// ListBatchesByProduct returns the batches of every color of a product.
func (r *StockRepo) ListBatchesByProduct(ctx context.Context, productID id.ID) ([]*stock.Batch, error) {
	return r.selectBatches(ctx, r.batchSelect().Where(squirrel.Eq{"product_id": productID}).OrderBy("color_id", "code ASC"))
}

func (r *StockRepo) listBatchesQuery(filter stock.BatchFilter) squirrel.SelectBuilder {
	q := r.batchSelect()
	if filter.ProductID != nil {
		q = q.Where(squirrel.Eq{"product_id": *filter.ProductID})
	}
	if filter.ColorID != nil {
		q = q.Where(squirrel.Eq{"color_id": *filter.ColorID})
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		q = q.Where(squirrel.ILike{"code": "%" + s + "%"})
	}
	if filter.ExcludeZero {
		q = q.Where(squirrel.Gt{"stock_quantity": 0})
	}
	return q
}

// ListBatches pages through batches matching filter.
func (r *StockRepo) ListBatches(ctx context.Context, filter stock.BatchFilter) (domain.ListResult[*stock.Batch], error) {
	result := domain.ListResult[*stock.Batch]{
		Items:  []*stock.Batch{},
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	q := r.listBatchesQuery(filter)

	countSQL, countArgs, err := r.builder.Select("COUNT(*)").FromSelect(q, "sub").ToSql()
	if err != nil {
		return result, fmt.Errorf("build count query: %w", err)
	}
	if err := r.querier(ctx).QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count batches: %w", err)
	}

	q = q.OrderBy("code ASC", "id")
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	items, err := r.selectBatches(ctx, q)
	if err != nil {
		return result, err
	}
	result.Items = items
	return result, nil
}

// movementRows flattens movements for COPY.
func movementRows(movements []stock.Movement) [][]any {
	rows := make([][]any, 0, len(movements))
	for _, m := range movements {
		rows = append(rows, []any{
			m.ID, m.BatchID, m.Delta.Int64Scaled(), m.BalanceAfter.Int64Scaled(),
			string(m.RecorderType), m.RecorderID, m.RecorderNumber, m.Reason,
			m.Operator, m.RecordedAt,
		})
	}
	return rows
}

// CreateMovements appends journal entries.
func (r *StockRepo) CreateMovements(ctx context.Context, movements []stock.Movement) error {
	if len(movements) == 0 {
		return nil
	}
	if _, err := r.inserter.Insert(ctx, stockMovementsTable, movementColumns, movementRows(movements)); err != nil {
		return postgres.MapError(err, "stock_movement", movements[0].BatchID)
	}
	return nil
}

func (r *StockRepo) listMovementsQuery(filter stock.MovementFilter) squirrel.SelectBuilder {
	q := r.builder.Select(movementColumns...).From(stockMovementsTable)
	if filter.BatchID != nil {
		q = q.Where(squirrel.Eq{"batch_id": *filter.BatchID})
	}
	if filter.RecorderID != nil {
		q = q.Where(squirrel.Eq{"recorder_id": *filter.RecorderID})
	}
	if filter.FromDate != nil {
		q = q.Where(squirrel.GtOrEq{"recorded_at": *filter.FromDate})
	}
	if filter.ToDate != nil {
		q = q.Where(squirrel.LtOrEq{"recorded_at": *filter.ToDate})
	}

	// ids are UUIDv7, so id breaks ties in insertion order
	q = q.OrderBy("recorded_at", "id")
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	return q
}

// ListMovements returns journal entries oldest first.
func (r *StockRepo) ListMovements(ctx context.Context, filter stock.MovementFilter) ([]stock.Movement, error) {
	sql, args, err := r.listMovementsQuery(filter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	movements := []stock.Movement{}
	if err := pgxscan.Select(ctx, r.querier(ctx), &movements, sql, args...); err != nil {
		return nil, fmt.Errorf("select movements: %w", err)
	}
	return movements, nil
}
