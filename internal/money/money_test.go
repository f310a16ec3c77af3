package money_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/filmpass/internal/money"
)

func TestParseHeuristic(t *testing.T) {
	testCases := []struct {
		name  string
		raw   string
		minor int64
		eur   string
	}{
		{name: "integer above threshold is cents", raw: "1250", minor: 1250, eur: "€12.50"},
		{name: "decimal is euros", raw: "12.5", minor: 1250, eur: "€12.50"},
		{name: "small integer is euros", raw: "12", minor: 1200, eur: "€12.00"},
		{name: "threshold itself is euros", raw: "100", minor: 10000, eur: "€100.00"},
		{name: "rounding", raw: "9.999", minor: 1000, eur: "€10.00"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			a, err := money.Parse(tc.raw)
			require.NoError(t, err)
			assert.Equal(t, tc.minor, a.Minor())
			assert.Equal(t, tc.eur, a.EUR())
		})
	}

	_, err := money.Parse("")
	assert.ErrorIs(t, err, money.ErrNoAmount)
	_, err = money.Parse("abc")
	assert.Error(t, err)
}

func TestRawUnmarshal(t *testing.T) {
	var body struct {
		Total  money.Raw `json:"total"`
		Price  money.Raw `json:"price"`
		Absent money.Raw `json:"absent"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"total":1250,"price":"12.50","absent":null}`), &body))

	total, err := body.Total.Amount()
	require.NoError(t, err)
	assert.Equal(t, "€12.50", total.EUR())

	price, err := body.Price.Amount()
	require.NoError(t, err)
	assert.Equal(t, int64(1250), price.Minor())

	assert.True(t, body.Absent.IsZero())
	assert.Error(t, json.Unmarshal([]byte(`{"total":true}`), &body))
}

func TestNegativeFormatting(t *testing.T) {
	assert.Equal(t, "-€0.05", money.FromMinor(-5).EUR())
	assert.Equal(t, money.FromMinor(3000), money.FromMajor(10).Times(3))
}
