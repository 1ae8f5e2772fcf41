package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// WithdrawalMethod is the external payout rail.
type WithdrawalMethod string

const (
	WithdrawalMethodMpesa       WithdrawalMethod = "MPESA"
	WithdrawalMethodAirtelMoney WithdrawalMethod = "AIRTEL_MONEY"
	WithdrawalMethodBankCard    WithdrawalMethod = "BANK_CARD"
)

// WithdrawalStatus represents the payout state of a withdrawal request.
type WithdrawalStatus string

const (
	WithdrawalStatusSubmitted  WithdrawalStatus = "SUBMITTED"
	WithdrawalStatusProcessing WithdrawalStatus = "PROCESSING"
	WithdrawalStatusCompleted  WithdrawalStatus = "COMPLETED"
	WithdrawalStatusFailed     WithdrawalStatus = "FAILED"
)

// HoldsFunds reports whether a withdrawal in this status still counts against the balance.
func (s WithdrawalStatus) HoldsFunds() bool {
	return s != WithdrawalStatusFailed
}

// WithdrawalRequest moves available net earnings to an external payout account.
type WithdrawalRequest struct {
	ID            string           `json:"id"`
	OwnerID       string           `json:"owner_id"`
	Amount        Money            `json:"amount"`
	Method        WithdrawalMethod `json:"method"`
	MethodDetails string           `json:"method_details"`
	Status        WithdrawalStatus `json:"status"`
	Reference     string           `json:"reference"`
	FailureReason string           `json:"failure_reason,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// ParseWithdrawalMethod accepts the method name case-insensitively.
func ParseWithdrawalMethod(s string) (WithdrawalMethod, error) {
	switch m := WithdrawalMethod(strings.ToUpper(strings.TrimSpace(s))); m {
	case WithdrawalMethodMpesa, WithdrawalMethodAirtelMoney, WithdrawalMethodBankCard:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMethod, s)
	}
}

// NewWithdrawalReference generates an external-facing payout reference.
func NewWithdrawalReference() string {
	raw := strings.ReplaceAll(uuid.New().String(), "-", "")
	return "WD-" + strings.ToUpper(raw[:12])
}

// Advance moves the withdrawal along SUBMITTED -> PROCESSING -> COMPLETED|FAILED.
func (w *WithdrawalRequest) Advance(to WithdrawalStatus, reason string, at time.Time) error {
	var allowed bool
	switch w.Status {
	case WithdrawalStatusSubmitted:
		allowed = to == WithdrawalStatusProcessing
	case WithdrawalStatusProcessing:
		allowed = to == WithdrawalStatusCompleted || to == WithdrawalStatusFailed
	}
	if !allowed {
		return fmt.Errorf("%w: withdrawal %s cannot move from %s to %s", ErrInvalidTransition, w.ID, w.Status, to)
	}

	w.Status = to
	if to == WithdrawalStatusFailed {
		w.FailureReason = reason
	}
	w.UpdatedAt = at
	return nil
}

// ValidateMethodDetails checks the account reference for the method and returns it masked.
// Mobile money needs a Kenyan MSISDN (07XXXXXXXX, 01XXXXXXXX or 2547/2541 + 8 digits);
// cards need 13-19 digits passing the Luhn check.
func ValidateMethodDetails(method WithdrawalMethod, details string) (string, error) {
	digits := stripSeparators(details)

	switch method {
	case WithdrawalMethodMpesa, WithdrawalMethodAirtelMoney:
		digits = strings.TrimPrefix(digits, "+")
		if !isDigits(digits) || !validMSISDN(digits) {
			return "", fmt.Errorf("%w: phone number must be 10 digits (07..) or 12 digits (254..)", ErrInvalidMethodDetails)
		}
	case WithdrawalMethodBankCard:
		if !isDigits(digits) || len(digits) < 13 || len(digits) > 19 {
			return "", fmt.Errorf("%w: card number must be 13 to 19 digits", ErrInvalidMethodDetails)
		}
		if !luhnValid(digits) {
			return "", fmt.Errorf("%w: card number failed checksum", ErrInvalidMethodDetails)
		}
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMethod, method)
	}

	return maskTail(digits, 4), nil
}

func validMSISDN(d string) bool {
	switch len(d) {
	case 10:
		return d[0] == '0' && (d[1] == '7' || d[1] == '1')
	case 12:
		return strings.HasPrefix(d, "2547") || strings.HasPrefix(d, "2541")
	default:
		return false
	}
}

func stripSeparators(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '\t':
			return -1
		}
		return r
	}, s)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func luhnValid(digits string) bool {
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

func maskTail(s string, keep int) string {
	if len(s) <= keep {
		return s
	}
	return strings.Repeat("*", len(s)-keep) + s[len(s)-keep:]
}
