package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
)

// copyThreshold is the row count from which COPY beats a multi-row INSERT.
const copyThreshold = 8

// BatchInserter appends rows to journal tables. Large sets inside a
// transaction go through COPY; small ones and calls outside a transaction
// use a single multi-row INSERT.
type BatchInserter struct {
	txManager *TxManager
	builder   squirrel.StatementBuilderType
}

func NewBatchInserter(txManager *TxManager) *BatchInserter {
	return &BatchInserter{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Insert writes rows into table. Every row must follow columns.
func (b *BatchInserter) Insert(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	if tx := b.txManager.GetTx(ctx); tx != nil && len(rows) >= copyThreshold {
		n, err := tx.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
		if err != nil {
			return n, fmt.Errorf("copy into %s: %w", table, err)
		}
		return n, nil
	}

	q := b.builder.Insert(table).Columns(columns...)
	for _, row := range rows {
		if len(row) != len(columns) {
			return 0, fmt.Errorf("insert into %s: row has %d values for %d columns", table, len(row), len(columns))
		}
		q = q.Values(row...)
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build insert into %s: %w", table, err)
	}
	tag, err := b.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("insert into %s: %w", table, err)
	}
	return tag.RowsAffected(), nil
}
