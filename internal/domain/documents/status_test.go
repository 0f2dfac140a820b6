package documents

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"millstock/internal/core/apperror"
)

type testStatus string

const (
	stDraft     testStatus = "草稿"
	stCommitted testStatus = "已入库"
	stCancelled testStatus = "已取消"
)

var testTable = Transitions[testStatus]{
	stDraft: {stCommitted, stCancelled},
}

func TestTransitions(t *testing.T) {
	assert.True(t, testTable.Allowed(stDraft, stCommitted))
	assert.False(t, testTable.Allowed(stCommitted, stDraft))
	assert.False(t, testTable.Allowed(stCommitted, stCommitted))

	assert.NoError(t, testTable.Check("order", stDraft, stCancelled))

	err := testTable.Check("order", stCommitted, stCommitted)
	assert.True(t, apperror.IsStateTransition(err))

	assert.True(t, testTable.IsTerminal(stCommitted))
	assert.False(t, testTable.IsTerminal(stDraft))
}
