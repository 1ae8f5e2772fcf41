package domain

import "fmt"

// BookingStatus represents the lifecycle state of a booking.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusActive    BookingStatus = "ACTIVE"
	BookingStatusCompleted BookingStatus = "COMPLETED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
	BookingStatusRejected  BookingStatus = "REJECTED"
)

// IsTerminal reports whether no further status transitions are possible.
func (s BookingStatus) IsTerminal() bool {
	switch s {
	case BookingStatusCompleted, BookingStatusCancelled, BookingStatusRejected:
		return true
	default:
		return false
	}
}

// Valid reports whether s is a known status.
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingStatusPending, BookingStatusActive, BookingStatusCompleted,
		BookingStatusCancelled, BookingStatusRejected:
		return true
	default:
		return false
	}
}

// ActorRole is the part an actor plays in a particular booking.
type ActorRole string

const (
	ActorRenter   ActorRole = "RENTER"
	ActorProvider ActorRole = "PROVIDER" // owner (host) or driver
)

type transitionKey struct {
	from BookingStatus
	to   BookingStatus
	role ActorRole
}

// transitionGuard checks the precondition of a tabulated transition.
type transitionGuard func(b *Booking, reason string) error

var noGuard transitionGuard = func(*Booking, string) error { return nil }

// bookingTransitions is the complete transition table. Anything absent is invalid.
var bookingTransitions = map[transitionKey]transitionGuard{
	{BookingStatusPending, BookingStatusActive, ActorProvider}:    noGuard,
	{BookingStatusPending, BookingStatusRejected, ActorProvider}:  requireReason,
	{BookingStatusActive, BookingStatusCompleted, ActorProvider}:  noGuard,
	{BookingStatusPending, BookingStatusCancelled, ActorRenter}:   noGuard,
	{BookingStatusPending, BookingStatusCancelled, ActorProvider}: noGuard,
	{BookingStatusActive, BookingStatusCancelled, ActorRenter}:    noGuard,
	{BookingStatusActive, BookingStatusCancelled, ActorProvider}:  noGuard,
}

func requireReason(_ *Booking, reason string) error {
	if reason == "" {
		return ErrReasonRequired
	}
	return nil
}

// CanTransition reports whether role may move a booking from one status to another,
// ignoring preconditions.
func CanTransition(from, to BookingStatus, role ActorRole) bool {
	_, ok := bookingTransitions[transitionKey{from, to, role}]
	return ok
}

func checkTransition(b *Booking, to BookingStatus, role ActorRole, reason string) error {
	guard, ok := bookingTransitions[transitionKey{b.Status, to, role}]
	if !ok {
		return fmt.Errorf("%w: %s cannot move booking %s from %s to %s", ErrInvalidTransition, role, b.ID, b.Status, to)
	}
	return guard(b, reason)
}
