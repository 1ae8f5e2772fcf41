package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultCommissionRate is the platform's cut of every booking.
var DefaultCommissionRate = decimal.RequireFromString("0.15")

// CommissionPolicy splits gross booking amounts into platform commission and provider net.
type CommissionPolicy struct {
	Rate decimal.Decimal
}

// NewCommissionPolicy validates the rate and returns a policy.
func NewCommissionPolicy(rate decimal.Decimal) (CommissionPolicy, error) {
	if err := validateRate(rate); err != nil {
		return CommissionPolicy{}, err
	}
	return CommissionPolicy{Rate: rate}, nil
}

// Split applies the policy rate to gross. See Split.
func (p CommissionPolicy) Split(gross Money) (commission, net Money, err error) {
	return Split(gross, p.Rate)
}

// Split computes commission = floor(gross * rate) and net = gross - commission,
// so commission + net == gross for every input.
func Split(gross Money, rate decimal.Decimal) (commission, net Money, err error) {
	if err := validateRate(rate); err != nil {
		return Money{}, Money{}, err
	}
	if gross.IsNegative() {
		return Money{}, Money{}, fmt.Errorf("%w: gross %s is negative", ErrInvalidAmount, gross)
	}

	commission = gross.MulFloor(rate)
	net = Money{Amount: gross.Amount - commission.Amount, Currency: gross.Currency}
	return commission, net, nil
}

func validateRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: %s not in [0, 1)", ErrInvalidRate, rate)
	}
	return nil
}
