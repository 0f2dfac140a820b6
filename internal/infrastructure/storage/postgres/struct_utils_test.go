package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"millstock/internal/core/entity"
	"millstock/internal/core/id"
	"millstock/internal/core/types"
)

type mockCatalog struct {
	entity.Catalog
	Unit    string `db:"unit"`
	Comment string `json:"comment"`
	Ignored string `db:"-"`
}

type mockDocument struct {
	entity.Document
	Status string                 `db:"status"`
	Total  types.Quantity         `db:"total_quantity"`
	Lines  entity.Lines[mockLine] `db:"lines"`
}

type mockLine struct {
	Qty types.Quantity `json:"qty"`
}

func TestExtractDBColumns_EmbeddedFirst(t *testing.T) {
	cols := ExtractDBColumns[mockCatalog]()

	assert.Equal(t, []string{
		"id", "version", "created_at", "updated_at",
		"code", "name", "deletion_mark",
		"unit",
	}, cols)
}

func TestExtractDBColumns_Pointer(t *testing.T) {
	assert.Equal(t, ExtractDBColumns[mockDocument](), ExtractDBColumns[*mockDocument]())
	assert.Nil(t, ExtractDBColumns[int]())
}

func TestStructToMap(t *testing.T) {
	now := time.Now().UTC()
	c := &mockCatalog{
		Catalog: entity.Catalog{
			BaseEntity: entity.BaseEntity{
				ID:        id.New(),
				Version:   5,
				CreatedAt: now,
			},
			Code:         "GY-40S",
			Name:         "40支坯纱",
			DeletionMark: true,
		},
		Unit:    "kg",
		Comment: "not persisted",
	}

	m := StructToMap(c)

	assert.Equal(t, c.ID, m["id"])
	assert.Equal(t, 5, m["version"])
	assert.Equal(t, now, m["created_at"])
	assert.Equal(t, true, m["deletion_mark"])
	assert.Equal(t, "GY-40S", m["code"])
	assert.Equal(t, "kg", m["unit"])
	assert.NotContains(t, m, "comment")
	assert.NotContains(t, m, "-")
	assert.Len(t, m, 8)
}

func TestStructToMap_Document(t *testing.T) {
	d := mockDocument{
		Document: entity.NewDocument("仓管员"),
		Status:   "草稿",
		Total:    types.NewQuantity(3),
		Lines:    entity.Lines[mockLine]{{Qty: types.NewQuantity(3)}},
	}
	d.Number = "CG-2026-00001"

	m := StructToMap(d)

	require.Contains(t, m, "committed_at")
	assert.Nil(t, m["committed_at"])
	assert.Equal(t, "CG-2026-00001", m["number"])
	assert.Equal(t, "仓管员", m["operator"])
	assert.Equal(t, types.NewQuantity(3), m["total_quantity"])
	assert.Len(t, m["lines"], 1)
}

func TestStructToMap_NonStruct(t *testing.T) {
	assert.Nil(t, StructToMap(42))
}
