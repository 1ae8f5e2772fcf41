package domain

import "errors"

var (
	// ErrInvalidSchedule is returned when dropoff is not after pickup.
	ErrInvalidSchedule = errors.New("invalid schedule: dropoff must be after pickup")

	// ErrInvalidAmount is returned for non-positive or malformed amounts.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidRate is returned when a rate is outside [0, 1).
	ErrInvalidRate = errors.New("invalid rate")

	// ErrCurrencyMismatch is returned when combining amounts in different currencies.
	ErrCurrencyMismatch = errors.New("currency mismatch")

	// ErrInvalidTransition is returned for any state change the state machine does not allow.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrReasonRequired is returned when rejecting without a reason.
	ErrReasonRequired = errors.New("rejection reason is required")

	// ErrInvalidMethod is returned for an unknown withdrawal method.
	ErrInvalidMethod = errors.New("invalid withdrawal method")

	// ErrInvalidMethodDetails is returned when the payout account reference is malformed.
	ErrInvalidMethodDetails = errors.New("invalid withdrawal method details")
)
