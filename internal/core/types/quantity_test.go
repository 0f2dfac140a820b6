package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		in   string
		want Quantity
	}{
		{"100", NewQuantity(100)},
		{"12.5", Quantity(125_000)},
		{"-3", NewQuantity(-3)},
		{"0.00015", Quantity(1)},
		{".75", Quantity(7_500)},
		{"+2.25", Quantity(22_500)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseQuantity(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseQuantity("abc")
	assert.Error(t, err)
	_, err = ParseQuantity("")
	assert.Error(t, err)
}

func TestQuantity_JSON(t *testing.T) {
	var q Quantity
	require.NoError(t, json.Unmarshal([]byte(`"30"`), &q))
	assert.Equal(t, NewQuantity(30), q)

	require.NoError(t, json.Unmarshal([]byte(`2.5`), &q))
	assert.Equal(t, "2.5000", q.String())

	out, err := json.Marshal(NewQuantity(-3))
	require.NoError(t, err)
	assert.JSONEq(t, `-3.0000`, string(out))
}

func TestLineAmount(t *testing.T) {
	price := MustMoney("10")
	assert.True(t, LineAmount(price, NewQuantity(30)).Equal(MustMoney("300")))
	assert.True(t, LineAmount(MustMoney("3.33"), MustQuantity("1.5")).Equal(MustMoney("5.00")))
}

func TestFitsMoneyPlaces(t *testing.T) {
	for s, want := range map[string]bool{
		"0":      true,
		"12.5":   true,
		"12.50":  true,
		"12.500": true,
		"0.001":  false,
		"0.005":  false,
		"-3.141": false,
	} {
		assert.Equal(t, want, FitsMoneyPlaces(MustMoney(s)), s)
	}
}
