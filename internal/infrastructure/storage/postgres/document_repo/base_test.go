package document_repo

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"millstock/internal/core/apperror"
	"millstock/internal/core/id"
	"millstock/internal/core/types"
	"millstock/internal/domain/documents"
	"millstock/internal/domain/documents/sales"
)

func TestSalesRepo_Columns(t *testing.T) {
	repo := NewSalesRepo(nil)
	assert.Equal(t, []string{
		"id", "version", "created_at", "updated_at",
		"number", "date", "operator", "comment", "committed_at",
		"customer_id", "status", "total_quantity", "total_amount", "received_amount", "lines",
	}, repo.selectCols)
}

func TestBaseDocumentRepo_ListQuery(t *testing.T) {
	customer := id.New()
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	salesRepo := NewSalesRepo(nil)
	adjustmentRepo := NewAdjustmentRepo(nil)

	tests := []struct {
		name      string
		where     func(documents.ListFilter) (string, []any, error)
		filter    documents.ListFilter
		wantWhere string
		wantArgs  []any
	}{
		{
			name:      "no filter",
			where:     whereFn(salesRepo),
			filter:    documents.ListFilter{},
			wantWhere: "",
		},
		{
			name:  "status, customer and date",
			where: whereFn(salesRepo),
			filter: documents.ListFilter{
				Status:         string(sales.StatusShipped),
				CounterpartyID: &customer,
				DateFrom:       &from,
			},
			wantWhere: " WHERE status = $1 AND customer_id = $2 AND date >= $3",
			wantArgs:  []any{"已出库", customer.String(), from},
		},
		{
			name:      "counterparty on a family without one matches nothing",
			where:     whereFn(adjustmentRepo),
			filter:    documents.ListFilter{CounterpartyID: &customer},
			wantWhere: " WHERE 1 = 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, args, err := tt.where(tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.wantWhere, where)
			if tt.wantArgs == nil {
				assert.Empty(t, args)
				return
			}
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestBaseDocumentRepo_SearchMatchesNumber(t *testing.T) {
	f := documents.ListFilter{}
	f.Search = " XS-2026 "

	where, args, err := whereFn(NewSalesRepo(nil))(f)
	require.NoError(t, err)
	assert.Equal(t, " WHERE number ILIKE $1", where)
	assert.Equal(t, []any{"%XS-2026%"}, args)
}

func TestBaseDocumentRepo_UpdateKeepsNumber(t *testing.T) {
	repo := NewSalesRepo(nil)
	o := sales.NewOrder("仓管员", id.New())
	o.Number = "XS-2026-00001"
	o.AddLine(id.New(), types.NewQuantity(10), types.MustMoney("25"))
	o.Version = 2

	q, err := repo.updateQuery(o)
	require.NoError(t, err)

	sql, args, err := q.ToSql()
	require.NoError(t, err)

	assert.NotContains(t, sql, "number =")
	assert.NotContains(t, sql, "created_at =")
	assert.Contains(t, sql, "lines = $")
	assert.True(t, strings.HasSuffix(sql, "version = version + 1, updated_at = NOW() WHERE id = $11 AND version = $12"), sql)
	require.Len(t, args, 12)
	assert.Equal(t, o.ID.String(), args[10])
	assert.Equal(t, 2, args[11])
}

func TestBaseDocumentRepo_ParseOrderBy(t *testing.T) {
	repo := NewSalesRepo(nil)

	got, err := repo.parseOrderBy("")
	require.NoError(t, err)
	assert.Equal(t, []string{"date DESC", "number DESC"}, got)

	got, err = repo.parseOrderBy("-total_amount")
	require.NoError(t, err)
	assert.Equal(t, []string{"total_amount DESC"}, got)

	_, err = repo.parseOrderBy("lines")
	assert.True(t, apperror.IsValidation(err))
}

// whereFn returns the WHERE part of the repo's list query.
func whereFn[T documents.Order](r *BaseDocumentRepo[T]) func(documents.ListFilter) (string, []any, error) {
	return func(f documents.ListFilter) (string, []any, error) {
		sql, args, err := r.listQuery(f).ToSql()
		if err != nil {
			return "", nil, err
		}
		i := strings.Index(sql, " WHERE ")
		if i < 0 {
			return "", args, nil
		}
		return sql[i:], args, nil
	}
}
