package catalog_repo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"millstock/internal/core/apperror"
	"millstock/internal/core/id"
	"millstock/internal/domain"
	"millstock/internal/domain/catalogs/color"
	"millstock/internal/domain/catalogs/product"
)

const colorCols = "id, version, created_at, updated_at, code, name, deletion_mark, product_id, hex"

func TestColorRepo_SelectColumns(t *testing.T) {
	repo := NewColorRepo(nil)
	assert.Equal(t,
		[]string{"id", "version", "created_at", "updated_at", "code", "name", "deletion_mark", "product_id", "hex"},
		repo.selectCols)
}

func TestColorRepo_FindByProductAndCode_SQL(t *testing.T) {
	repo := NewColorRepo(nil)
	productID := id.New()

	sql, args, err := repo.byProductAndCode(productID, " R01 ").ToSql()
	require.NoError(t, err)

	assert.Equal(t, "SELECT "+colorCols+" FROM cat_colors WHERE code = $1 AND product_id = $2 LIMIT 1", sql)
	// squirrel.Eq resolves driver.Valuer ids to their string form
	assert.Equal(t, []any{"R01", productID.String()}, args)
}

func TestColorRepo_ListByProduct_SQL(t *testing.T) {
	repo := NewColorRepo(nil)
	productID := id.New()

	sql, args, err := repo.byProduct(productID).ToSql()
	require.NoError(t, err)

	assert.Equal(t, "SELECT "+colorCols+" FROM cat_colors WHERE deletion_mark = $1 AND product_id = $2 ORDER BY code ASC", sql)
	assert.Equal(t, []any{false, productID.String()}, args)
}

func TestBaseCatalogRepo_UpdateIsVersionChecked(t *testing.T) {
	repo := NewProductRepo(nil)
	p := product.NewProduct("GY-40S", "40支坯纱", "kg", true)
	p.Version = 3

	q, entityID, err := repo.updateQuery(p)
	require.NoError(t, err)
	assert.Equal(t, p.ID, entityID)

	sql, args, err := q.ToSql()
	require.NoError(t, err)

	assert.Equal(t,
		"UPDATE cat_products SET code = $1, deletion_mark = $2, is_raw_greige_yarn = $3, name = $4, spec = $5, unit = $6, version = version + 1, updated_at = NOW() WHERE id = $7 AND version = $8",
		sql)
	require.Len(t, args, 8)
	assert.Equal(t, "GY-40S", args[0])
	assert.Equal(t, p.ID.String(), args[6])
	assert.Equal(t, 3, args[7])
}

func TestBaseCatalogRepo_InsertUsesTableColumns(t *testing.T) {
	repo := NewColorRepo(nil)
	c := color.NewColor(id.New(), "R01", "大红")

	q, err := repo.insertQuery(c)
	require.NoError(t, err)

	sql, args, err := q.ToSql()
	require.NoError(t, err)

	assert.Equal(t,
		"INSERT INTO cat_colors (code,created_at,deletion_mark,hex,id,name,product_id,updated_at,version) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)",
		sql)
	assert.Len(t, args, 9)
}

func TestBaseCatalogRepo_ListQuery(t *testing.T) {
	repo := NewProductRepo(nil)

	tests := []struct {
		name     string
		filter   domain.ListFilter
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "default hides marked entries",
			filter:   domain.ListFilter{},
			wantSQL:  " FROM cat_products WHERE deletion_mark = $1",
			wantArgs: []any{false},
		},
		{
			name:     "search on code and name",
			filter:   domain.ListFilter{Search: " 坯 ", IncludeDeleted: true},
			wantSQL:  " FROM cat_products WHERE (name ILIKE $1 OR code ILIKE $2)",
			wantArgs: []any{"%坯%", "%坯%"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := repo.listQuery(tt.filter).ToSql()
			require.NoError(t, err)
			assert.Contains(t, sql, tt.wantSQL)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestBaseCatalogRepo_ParseOrderBy(t *testing.T) {
	repo := NewProductRepo(nil)

	tests := []struct {
		in      string
		want    string
		invalid bool
	}{
		{in: "", want: "code ASC"},
		{in: "name", want: "name ASC"},
		{in: "-created_at", want: "created_at DESC"},
		{in: "+unit", want: "unit ASC"},
		{in: "name; DROP TABLE cat_products", invalid: true},
		{in: "-", invalid: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := repo.parseOrderBy(tt.in)
			if tt.invalid {
				assert.True(t, apperror.IsValidation(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
