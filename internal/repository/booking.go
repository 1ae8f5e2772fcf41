package repository

import (
	"context"

	"carshare/internal/domain"
)

// BookingRepository defines the persistence operations for bookings.
type BookingRepository interface {
	// Create persists a new booking with its initial status history.
	Create(ctx context.Context, booking *domain.Booking) error

	// GetByID retrieves a booking and its status history.
	GetByID(ctx context.Context, id string) (*domain.Booking, error)

	// Update persists a new snapshot if the stored version still equals expectedVersion.
	// On success booking.Version is advanced. A stale version yields ErrVersionConflict.
	Update(ctx context.Context, booking *domain.Booking, expectedVersion int64) error

	// ListByProvider retrieves the bookings fulfilled by an owner or driver, newest first.
	ListByProvider(ctx context.Context, providerID string) ([]*domain.Booking, error)

	// SumNetByProvider totals the net amount of the provider's bookings in the given status.
	SumNetByProvider(ctx context.Context, providerID string, status domain.BookingStatus, currency string) (domain.Money, error)
}
