package domain

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_ReconcilesForAllAmounts(t *testing.T) {
	rates := []string{"0", "0.15", "0.333", "0.5", "0.999"}
	for _, r := range rates {
		rate := decimal.RequireFromString(r)
		for gross := int64(0); gross <= 5000; gross += 7 {
			commission, net, err := Split(NewMoney(gross, "USD"), rate)
			require.NoError(t, err)
			assert.Equal(t, gross, commission.Amount+net.Amount, "rate=%s gross=%d", r, gross)
			assert.False(t, commission.IsNegative())
			assert.False(t, net.IsNegative())
		}
	}
}

func TestSplit_CommissionRoundsDown(t *testing.T) {
	// 0.15 * 101 = 15.15 -> 15
	commission, net, err := Split(NewMoney(101, "USD"), DefaultCommissionRate)
	require.NoError(t, err)
	assert.Equal(t, int64(15), commission.Amount)
	assert.Equal(t, int64(86), net.Amount)
}

func TestSplit_ScenarioOneHundredThirtyFive(t *testing.T) {
	gross, err := ParseMoney("135.00", "USD")
	require.NoError(t, err)

	commission, net, err := Split(gross, DefaultCommissionRate)
	require.NoError(t, err)
	assert.Equal(t, "20.25", commission.Major())
	assert.Equal(t, "114.75", net.Major())
}

func TestSplit_IsDeterministic(t *testing.T) {
	gross := NewMoney(987654321, "KES")
	rate := decimal.RequireFromString("0.137")
	c1, n1, _ := Split(gross, rate)
	for i := 0; i < 100; i++ {
		c2, n2, _ := Split(gross, rate)
		assert.Equal(t, c1, c2)
		assert.Equal(t, n1, n2)
	}
}

func TestSplit_RejectsInvalidInput(t *testing.T) {
	_, _, err := Split(NewMoney(100, "USD"), decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrInvalidRate)

	_, _, err = Split(NewMoney(100, "USD"), decimal.RequireFromString("-0.01"))
	assert.ErrorIs(t, err, ErrInvalidRate)

	_, _, err = Split(NewMoney(-1, "USD"), DefaultCommissionRate)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestNewCommissionPolicy(t *testing.T) {
	p, err := NewCommissionPolicy(decimal.RequireFromString("0.2"))
	require.NoError(t, err)

	c, n, err := p.Split(NewMoney(1000, "USD"))
	require.NoError(t, err)
	assert.Equal(t, int64(200), c.Amount)
	assert.Equal(t, int64(800), n.Amount)

	_, err = NewCommissionPolicy(decimal.RequireFromString("1.5"))
	assert.ErrorIs(t, err, ErrInvalidRate)
}

func TestParseMoney(t *testing.T) {
	m, err := ParseMoney("10", "usd")
	require.NoError(t, err)
	assert.Equal(t, NewMoney(1000, "USD"), m)

	m, err = ParseMoney(" 850.5 ", "USD")
	require.NoError(t, err)
	assert.Equal(t, int64(85050), m.Amount)
	assert.Equal(t, "850.50 USD", m.String())

	_, err = ParseMoney("1.005", "USD")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = ParseMoney("ten", "USD")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	m, err = ParseMoney("92233720368547758.07", "USD")
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), m.Amount)

	// 2^64 and 2^64 + 40000 minor units must not wrap to 0.00 and 400.00.
	for _, huge := range []string{"92233720368547758.08", "184467440737095516.16", "184467440737095916.16", "-92233720368547758.09"} {
		_, err = ParseMoney(huge, "USD")
		assert.ErrorIs(t, err, ErrInvalidAmount, huge)
	}
}

func TestMoney_ArithmeticRequiresSameCurrency(t *testing.T) {
	a := NewMoney(500, "USD")
	b := NewMoney(200, "USD")

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.Equal(t, int64(700), sum.Amount)

	diff, err := a.Sub(b)
	require.NoError(t, err)
	assert.Equal(t, int64(300), diff.Amount)

	cmp, err := a.Cmp(b)
	require.NoError(t, err)
	assert.Equal(t, 1, cmp)

	_, err = a.Add(NewMoney(1, "KES"))
	assert.ErrorIs(t, err, ErrCurrencyMismatch)
}
