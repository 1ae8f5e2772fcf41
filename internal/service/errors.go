package service

import "errors"

var (
	// ErrConflictingTransition is returned when a concurrent change won the race.
	ErrConflictingTransition = errors.New("conflicting concurrent change")

	// ErrBelowMinimum is returned when a withdrawal is smaller than the minimum.
	ErrBelowMinimum = errors.New("amount below minimum withdrawal")

	// ErrInsufficientBalance is returned when a withdrawal exceeds the available balance.
	ErrInsufficientBalance = errors.New("insufficient available balance")

	// ErrInvalidBookingID is returned when booking ID is empty.
	ErrInvalidBookingID = errors.New("invalid booking id")

	// ErrInvalidRenterID is returned when renter ID is empty.
	ErrInvalidRenterID = errors.New("invalid renter id")

	// ErrInvalidProviderID is returned when owner or driver ID is empty.
	ErrInvalidProviderID = errors.New("invalid provider id")

	// ErrInvalidProviderRole is returned when the provider is neither an owner nor a driver.
	ErrInvalidProviderRole = errors.New("invalid provider role")

	// ErrInvalidVehicleID is returned when vehicle ID is empty.
	ErrInvalidVehicleID = errors.New("invalid vehicle id")

	// ErrInvalidActorID is returned when the acting party is unknown.
	ErrInvalidActorID = errors.New("invalid actor id")

	// ErrInvalidOwnerID is returned when owner ID is empty.
	ErrInvalidOwnerID = errors.New("invalid owner id")

	// ErrInvalidWithdrawalID is returned when withdrawal ID is empty.
	ErrInvalidWithdrawalID = errors.New("invalid withdrawal id")

	// ErrRenterIsProvider is returned when a party tries to book their own vehicle.
	ErrRenterIsProvider = errors.New("renter cannot book their own vehicle")

	// ErrUnsupportedCurrency is returned for amounts not in the settlement currency.
	ErrUnsupportedCurrency = errors.New("unsupported currency")
)
