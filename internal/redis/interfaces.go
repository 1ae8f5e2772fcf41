package redis

import (
	"context"
	"time"

	"carshare/internal/domain"
)

// LockStoreInterface defines the interface for distributed locking.
type LockStoreInterface interface {
	AcquireBookingLock(ctx context.Context, bookingID string, ttl time.Duration) (token string, ok bool, err error)
	ReleaseBookingLock(ctx context.Context, bookingID, token string) error
}

// BookingCacheInterface defines the interface for booking snapshot caching.
type BookingCacheInterface interface {
	GetBooking(ctx context.Context, bookingID string) (*domain.Booking, error)
	SetBooking(ctx context.Context, booking *domain.Booking) error
	InvalidateBooking(ctx context.Context, bookingID string) error
}

// Ensure concrete types implement interfaces.
var (
	_ LockStoreInterface    = (*LockStore)(nil)
	_ BookingCacheInterface = (*CacheStore)(nil)
)
