package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"carshare/internal/domain"
	"carshare/internal/redis"
	"carshare/internal/repository"
)

const (
	defaultLockTTL               = 10 * time.Second
	defaultMaxWithdrawalAttempts = 3
)

// SettlementPolicy holds the tunable money rules of the marketplace.
type SettlementPolicy struct {
	Currency              string
	Commission            domain.CommissionPolicy
	LiquidRatio           decimal.Decimal
	MinimumWithdrawal     domain.Money
	Cancellation          domain.CancellationPolicy
	LockTTL               time.Duration
	MaxWithdrawalAttempts int
}

// DefaultSettlementPolicy returns the policy used when nothing is configured.
func DefaultSettlementPolicy() SettlementPolicy {
	return SettlementPolicy{
		Currency:              "USD",
		Commission:            domain.CommissionPolicy{Rate: domain.DefaultCommissionRate},
		LiquidRatio:           decimal.RequireFromString("0.70"),
		MinimumWithdrawal:     domain.NewMoney(1000, "USD"),
		Cancellation:          domain.NewCancellationPolicy(domain.DefaultRefundTiers()),
		LockTTL:               defaultLockTTL,
		MaxWithdrawalAttempts: defaultMaxWithdrawalAttempts,
	}
}

// Notifier receives settlement events after they are persisted.
type Notifier interface {
	BookingStatusChanged(ctx context.Context, event domain.BookingStatusChanged) error
	WithdrawalStatusChanged(ctx context.Context, event domain.WithdrawalStatusChanged) error
}

// Ensure NotificationService implements Notifier.
var _ Notifier = (*NotificationService)(nil)

// SettlementService is the only writer of bookings and withdrawals.
type SettlementService struct {
	bookingRepo    repository.BookingRepository
	withdrawalRepo repository.WithdrawalRepository
	lockStore      redis.LockStoreInterface
	cache          redis.BookingCacheInterface
	notifier       Notifier
	payouts        PayoutProcessor
	policy         SettlementPolicy
	now            func() time.Time
}

// NewSettlementService creates a new SettlementService.
// lockStore, cache, notifier and payouts are optional.
func NewSettlementService(
	bookingRepo repository.BookingRepository,
	withdrawalRepo repository.WithdrawalRepository,
	lockStore redis.LockStoreInterface,
	cache redis.BookingCacheInterface,
	notifier Notifier,
	payouts PayoutProcessor,
	policy SettlementPolicy,
) *SettlementService {
	if policy.LockTTL <= 0 {
		policy.LockTTL = defaultLockTTL
	}
	if policy.MaxWithdrawalAttempts <= 0 {
		policy.MaxWithdrawalAttempts = defaultMaxWithdrawalAttempts
	}

	return &SettlementService{
		bookingRepo:    bookingRepo,
		withdrawalRepo: withdrawalRepo,
		lockStore:      lockStore,
		cache:          cache,
		notifier:       notifier,
		payouts:        payouts,
		policy:         policy,
		now:            time.Now,
	}
}

// WithClock replaces the time source.
func (s *SettlementService) WithClock(now func() time.Time) *SettlementService {
	s.now = now
	return s
}

// Policy returns the settlement policy in effect.
func (s *SettlementService) Policy() SettlementPolicy {
	return s.policy
}

// CreateBookingRequest contains the parameters for creating a booking.
type CreateBookingRequest struct {
	RenterID            string
	ProviderID          string
	ProviderRole        domain.PartyRole // Optional: defaults to OWNER
	VehicleID           string
	PickupAt            time.Time
	DropoffAt           time.Time
	GrossAmount         domain.Money
	SpecialInstructions string
}

// CreateBooking creates a PENDING booking with its financial breakdown.
func (s *SettlementService) CreateBooking(ctx context.Context, req CreateBookingRequest) (*domain.Booking, error) {
	if err := s.validateCreateRequest(req); err != nil {
		return nil, err
	}

	b, err := domain.NewBooking(domain.NewBookingParams{
		ID:                  uuid.New().String(),
		RenterID:            req.RenterID,
		ProviderID:          req.ProviderID,
		ProviderRole:        req.ProviderRole,
		VehicleID:           req.VehicleID,
		PickupAt:            req.PickupAt,
		DropoffAt:           req.DropoffAt,
		GrossAmount:         req.GrossAmount,
		SpecialInstructions: req.SpecialInstructions,
	}, s.policy.Commission, s.now())
	if err != nil {
		return nil, err
	}

	if err := s.bookingRepo.Create(ctx, b); err != nil {
		return nil, err
	}

	s.notifyBooking(ctx, b)
	return b, nil
}

func (s *SettlementService) validateCreateRequest(req CreateBookingRequest) error {
	if req.RenterID == "" {
		return ErrInvalidRenterID
	}
	if req.ProviderID == "" {
		return ErrInvalidProviderID
	}
	if req.VehicleID == "" {
		return ErrInvalidVehicleID
	}
	if req.RenterID == req.ProviderID {
		return ErrRenterIsProvider
	}
	switch req.ProviderRole {
	case "", domain.PartyRoleOwner, domain.PartyRoleDriver:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidProviderRole, req.ProviderRole)
	}
	if req.GrossAmount.Currency != s.policy.Currency {
		return fmt.Errorf("%w: %q, expected %s", ErrUnsupportedCurrency, req.GrossAmount.Currency, s.policy.Currency)
	}
	return nil
}

// AcceptBooking moves a PENDING booking to ACTIVE on behalf of the provider.
func (s *SettlementService) AcceptBooking(ctx context.Context, bookingID, actorID string) (*domain.Booking, error) {
	return s.applyTransition(ctx, bookingID, actorID, func(b *domain.Booking, now time.Time) (*domain.Booking, error) {
		return b.Transition(actorID, domain.BookingStatusActive, "", now)
	})
}

// RejectBooking moves a PENDING booking to REJECTED. A reason is required.
func (s *SettlementService) RejectBooking(ctx context.Context, bookingID, actorID, reason string) (*domain.Booking, error) {
	return s.applyTransition(ctx, bookingID, actorID, func(b *domain.Booking, now time.Time) (*domain.Booking, error) {
		return b.Transition(actorID, domain.BookingStatusRejected, reason, now)
	})
}

// StartRide records that the provider has handed over the vehicle or picked up the renter.
func (s *SettlementService) StartRide(ctx context.Context, bookingID, actorID string) (*domain.Booking, error) {
	return s.applyTransition(ctx, bookingID, actorID, func(b *domain.Booking, now time.Time) (*domain.Booking, error) {
		return b.MarkStarted(actorID, now)
	})
}

// CompleteBooking moves an ACTIVE booking to COMPLETED, making its net amount withdrawable.
func (s *SettlementService) CompleteBooking(ctx context.Context, bookingID, actorID string) (*domain.Booking, error) {
	return s.applyTransition(ctx, bookingID, actorID, func(b *domain.Booking, now time.Time) (*domain.Booking, error) {
		return b.Transition(actorID, domain.BookingStatusCompleted, "", now)
	})
}

// CancelBooking cancels a PENDING or ACTIVE booking and records the refund owed to the renter.
func (s *SettlementService) CancelBooking(ctx context.Context, bookingID, actorID, reason string) (*domain.Booking, error) {
	return s.applyTransition(ctx, bookingID, actorID, func(b *domain.Booking, now time.Time) (*domain.Booking, error) {
		next, err := b.Transition(actorID, domain.BookingStatusCancelled, reason, now)
		if err != nil {
			return nil, err
		}
		role, _ := b.RoleOf(actorID)
		return next.WithRefund(s.policy.Cancellation.Refund(b, role, now)), nil
	})
}

// GetBooking retrieves a booking, preferring the cache.
func (s *SettlementService) GetBooking(ctx context.Context, bookingID string) (*domain.Booking, error) {
	if bookingID == "" {
		return nil, ErrInvalidBookingID
	}

	if s.cache != nil {
		if cached, err := s.cache.GetBooking(ctx, bookingID); err == nil && cached != nil {
			return cached, nil
		}
	}

	b, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetBooking(ctx, b); err != nil {
			log.Printf("[SETTLEMENT] cache set failed for booking %s: %v", b.ID, err)
		}
	}
	return b, nil
}

// ListProviderBookings retrieves the bookings fulfilled by an owner or driver.
func (s *SettlementService) ListProviderBookings(ctx context.Context, providerID string) ([]*domain.Booking, error) {
	if providerID == "" {
		return nil, ErrInvalidProviderID
	}
	return s.bookingRepo.ListByProvider(ctx, providerID)
}

type bookingMutation func(b *domain.Booking, now time.Time) (*domain.Booking, error)

// applyTransition serializes a booking change: per-booking lock, fresh read,
// pure transition, versioned write, then cache refresh and notification.
func (s *SettlementService) applyTransition(ctx context.Context, bookingID, actorID string, mutate bookingMutation) (*domain.Booking, error) {
	if bookingID == "" {
		return nil, ErrInvalidBookingID
	}
	if actorID == "" {
		return nil, ErrInvalidActorID
	}

	if s.lockStore != nil {
		token, locked, err := s.lockStore.AcquireBookingLock(ctx, bookingID, s.policy.LockTTL)
		if err != nil {
			return nil, err
		}
		if !locked {
			return nil, fmt.Errorf("%w: booking %s is being modified", ErrConflictingTransition, bookingID)
		}
		defer func() {
			if err := s.lockStore.ReleaseBookingLock(ctx, bookingID, token); err != nil {
				log.Printf("[SETTLEMENT] failed to release lock for booking %s: %v", bookingID, err)
			}
		}()
	}

	current, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	next, err := mutate(current, s.now())
	if err != nil {
		return nil, err
	}

	if err := s.bookingRepo.Update(ctx, next, current.Version); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, fmt.Errorf("%w: booking %s changed concurrently", ErrConflictingTransition, bookingID)
		}
		return nil, err
	}

	s.refreshCache(ctx, next)
	s.notifyBooking(ctx, next)
	return next, nil
}

// refreshCache replaces the cached snapshot with the new version. The cache keeps
// the higher version, so a read that raced the transition cannot put the old one back.
func (s *SettlementService) refreshCache(ctx context.Context, b *domain.Booking) {
	if s.cache == nil {
		return
	}
	err := s.cache.SetBooking(ctx, b)
	if err == nil {
		return
	}
	log.Printf("[SETTLEMENT] cache refresh failed for booking %s: %v", b.ID, err)
	if err := s.cache.InvalidateBooking(ctx, b.ID); err != nil {
		log.Printf("[SETTLEMENT] cache invalidation failed for booking %s: %v", b.ID, err)
	}
}

// notifyBooking is fire-and-forget: a delivery failure never undoes a persisted change.
func (s *SettlementService) notifyBooking(ctx context.Context, b *domain.Booking) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.BookingStatusChanged(ctx, domain.NewBookingStatusChanged(b)); err != nil {
		log.Printf("[SETTLEMENT] notification failed for booking %s: %v", b.ID, err)
	}
}
