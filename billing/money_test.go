package billing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightpath/tuition-engine/billing"
)

func TestMoney_PercentOfRoundsHalfUp(t *testing.T) {
	cases := []struct {
		fee  string
		pct  string
		want string
	}{
		{"10000.00", "25", "2500.00"},
		{"1000.00", "33.33", "333.30"},
		{"999.99", "10", "100.00"}, // 99.999 rounds up
		{"100.00", "12.345", "12.35"},
		{"100.00", "0", "0.00"},
	}

	for _, tc := range cases {
		got := billing.MustMoney(tc.fee).PercentOf(mustDecimal(tc.pct))
		assert.Equal(t, tc.want, got.String(), "%s%% of %s", tc.pct, tc.fee)
	}
}

func TestMoney_DivFloorNeverExceedsTotal(t *testing.T) {
	// The floored base times n never exceeds the amount being split; the
	// difference is the adjustment the last installment absorbs.

	cases := []struct {
		amount string
		n      int
	}{
		{"1000.00", 3},
		{"666.70", 3},
		{"999.99", 7},
		{"0.01", 2},
	}

	for _, tc := range cases {
		m := billing.MustMoney(tc.amount)
		base := m.DivFloor(tc.n)
		product := base.MulInt(tc.n)
		assert.False(t, m.LessThan(product),
			"%s split %d ways: base %s overshoots", tc.amount, tc.n, base)

		adjustment := m.Sub(product)
		assert.False(t, adjustment.IsNegative())
	}
}

func TestMoney_FloorZero(t *testing.T) {
	assert.Equal(t, "0.00", billing.MustMoney("-5.00").FloorZero().String())
	assert.Equal(t, "5.00", billing.MustMoney("5.00").FloorZero().String())
	assert.Equal(t, "0.00", billing.ZeroMoney().FloorZero().String())
}

func TestParseMoney_RoundsToCent(t *testing.T) {
	m, err := billing.ParseMoney("10.005")
	require.NoError(t, err)
	assert.Equal(t, "10.01", m.String())

	_, err = billing.ParseMoney("not-money")
	assert.Error(t, err)
}
