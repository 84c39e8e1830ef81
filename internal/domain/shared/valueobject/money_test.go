package valueobject

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pcts(values ...string) []decimal.Decimal {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		out[i] = decimal.RequireFromString(v)
	}
	return out
}

func sumMoney(t *testing.T, shares []Money) decimal.Decimal {
	t.Helper()
	total := decimal.Zero
	for _, s := range shares {
		total = total.Add(s.Amount())
	}
	return total
}

func TestParseCurrency(t *testing.T) {
	t.Run("normalises case", func(t *testing.T) {
		c, err := ParseCurrency(" usd ")
		require.NoError(t, err)
		assert.Equal(t, USD, c)
	})

	t.Run("rejects empty", func(t *testing.T) {
		_, err := ParseCurrency("")
		assert.ErrorContains(t, err, "currency cannot be empty")
	})

	t.Run("rejects unknown code", func(t *testing.T) {
		_, err := ParseCurrency("ZZZ")
		assert.Error(t, err)
	})
}

func TestCurrency_MinorUnits(t *testing.T) {
	assert.Equal(t, int32(2), USD.MinorUnits())
	assert.Equal(t, int32(0), JPY.MinorUnits())
}

func TestNewMoneyFromString(t *testing.T) {
	m, err := NewMoneyFromString("123.45", "eur")
	require.NoError(t, err)
	assert.Equal(t, EUR, m.Currency())
	assert.True(t, m.Amount().Equal(decimal.RequireFromString("123.45")))

	_, err = NewMoneyFromString("not-a-number", USD)
	assert.Error(t, err)
}

func TestMoney_AddSubtract(t *testing.T) {
	a := MustMoney("10.10", USD)
	b := MustMoney("0.90", USD)

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.Equal(t, "11.00 USD", sum.String())

	diff, err := a.Subtract(b)
	require.NoError(t, err)
	assert.True(t, diff.Amount().Equal(decimal.RequireFromString("9.2")))

	_, err = a.Add(MustMoney("1", EUR))
	assert.ErrorContains(t, err, "different currencies")
}

func TestMoney_Round(t *testing.T) {
	assert.Equal(t, "0.01", MustMoney("0.005", USD).Round(2).Amount().String())
	assert.Equal(t, "-0.01", MustMoney("-0.005", USD).Round(2).Amount().String())

	negZero := MustMoney("-0.001", USD).Round(2)
	assert.True(t, negZero.IsZero())
	assert.Equal(t, "0", negZero.Amount().String())
}

func TestMoney_AllocateByPercent(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		percents []decimal.Decimal
		want     []string
	}{
		{"even split", "1000.00", pcts("40", "40", "20"), []string{"400", "400", "200"}},
		{"non terminating split", "100.00", pcts("33", "34", "33"), []string{"33", "34", "33"}},
		{"residual goes to largest", "10.00", pcts("33.33", "33.33", "33.34"), []string{"3.33", "3.33", "3.34"}},
		{"one cent", "0.01", pcts("40", "40", "20"), []string{"0.01", "0", "0"}},
		{"large amount", "999999.99", pcts("33", "34", "33"), []string{"330000", "339999.99", "330000"}},
		{"zero percent party", "50.00", pcts("70", "30", "0"), []string{"35", "15", "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := MustMoney(tt.amount, USD)
			shares, err := m.AllocateByPercent(tt.percents)
			require.NoError(t, err)
			require.Len(t, shares, len(tt.want))

			for i, w := range tt.want {
				assert.True(t, shares[i].Amount().Equal(decimal.RequireFromString(w)),
					"share %d: got %s want %s", i, shares[i].Amount(), w)
			}
			assert.True(t, sumMoney(t, shares).Equal(m.Amount()))
		})
	}
}

func TestMoney_AllocateByPercent_Errors(t *testing.T) {
	m := MustMoney("10", USD)

	_, err := m.AllocateByPercent(nil)
	assert.Error(t, err)

	_, err = m.AllocateByPercent(pcts("-10", "110"))
	assert.ErrorContains(t, err, "negative")
}

func TestMoney_JSON(t *testing.T) {
	m := MustMoney("42.5", USD)

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":"42.50","currency":"USD"}`, string(data))

	var back Money
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, back.Equals(m))

	assert.Error(t, json.Unmarshal([]byte(`{"amount":"1","currency":"NOPE"}`), &back))
}
