package domain

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// minorUnitExponent is the number of minor-unit digits for every supported currency.
const minorUnitExponent = 2

var (
	minMinorUnits = decimal.NewFromInt(math.MinInt64)
	maxMinorUnits = decimal.NewFromInt(math.MaxInt64)
)

// Money is an exact amount in minor units (cents) tagged with an ISO 4217 currency code.
type Money struct {
	Amount   int64  `json:"amount_minor"`
	Currency string `json:"currency"`
}

// NewMoney creates a Money value from minor units.
func NewMoney(amount int64, currency string) Money {
	return Money{Amount: amount, Currency: strings.ToUpper(currency)}
}

// ZeroMoney returns a zero amount in the given currency.
func ZeroMoney(currency string) Money {
	return NewMoney(0, currency)
}

// ParseMoney parses a major-unit decimal string such as "135.00".
// Amounts with more precision than the minor unit are rejected rather than rounded.
func ParseMoney(major, currency string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(major))
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q is not a decimal amount", ErrInvalidAmount, major)
	}

	minor := d.Shift(minorUnitExponent)
	if !minor.Equal(minor.Truncate(0)) {
		return Money{}, fmt.Errorf("%w: %q has more than %d decimal places", ErrInvalidAmount, major, minorUnitExponent)
	}
	if minor.LessThan(minMinorUnits) || minor.GreaterThan(maxMinorUnits) {
		return Money{}, fmt.Errorf("%w: %q is out of range", ErrInvalidAmount, major)
	}

	return NewMoney(minor.IntPart(), currency), nil
}

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Amount, -minorUnitExponent)
}

// Major formats the amount in major units with exactly two decimals.
func (m Money) Major() string {
	return m.Decimal().StringFixed(minorUnitExponent)
}

func (m Money) String() string {
	return m.Major() + " " + m.Currency
}

func (m Money) IsZero() bool     { return m.Amount == 0 }
func (m Money) IsNegative() bool { return m.Amount < 0 }
func (m Money) IsPositive() bool { return m.Amount > 0 }

// Add returns m + o. Both values must share a currency.
func (m Money) Add(o Money) (Money, error) {
	if err := m.sameCurrency(o); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount + o.Amount, Currency: m.Currency}, nil
}

// Sub returns m - o. Both values must share a currency.
func (m Money) Sub(o Money) (Money, error) {
	if err := m.sameCurrency(o); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount - o.Amount, Currency: m.Currency}, nil
}

// Cmp compares m and o, returning -1, 0 or +1.
func (m Money) Cmp(o Money) (int, error) {
	if err := m.sameCurrency(o); err != nil {
		return 0, err
	}
	switch {
	case m.Amount < o.Amount:
		return -1, nil
	case m.Amount > o.Amount:
		return 1, nil
	default:
		return 0, nil
	}
}

// MulFloor multiplies by a fraction and rounds down to the minor unit.
func (m Money) MulFloor(f decimal.Decimal) Money {
	product := decimal.NewFromInt(m.Amount).Mul(f).Floor()
	return Money{Amount: product.IntPart(), Currency: m.Currency}
}

func (m Money) sameCurrency(o Money) error {
	if m.Currency != o.Currency {
		return fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.Currency, o.Currency)
	}
	return nil
}
