package tests

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"carshare/internal/domain"
	"carshare/internal/service"
)

const (
	renterID = "renter-1"
	ownerID  = "owner-1"
	driverID = "driver-1"
	vehicle  = "vehicle-1"
)

var fixedNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// settlementFixture wires a SettlementService to in-memory collaborators.
type settlementFixture struct {
	bookings    *MockBookingRepository
	withdrawals *MockWithdrawalRepository
	locks       *MockLockStore
	cache       *MockBookingCache
	notifier    *MockNotifier
	payouts     *MockPayouts
	service     *service.SettlementService
}

type fixtureOption func(*settlementFixture, *service.SettlementPolicy)

// withoutLocks leaves the version check as the only guard.
func withoutLocks() fixtureOption {
	return func(f *settlementFixture, _ *service.SettlementPolicy) { f.locks = nil }
}

func withLiquidRatio(ratio string) fixtureOption {
	return func(_ *settlementFixture, p *service.SettlementPolicy) {
		p.LiquidRatio = decimal.RequireFromString(ratio)
	}
}

func newSettlementFixture(t *testing.T, opts ...fixtureOption) *settlementFixture {
	t.Helper()

	f := &settlementFixture{
		bookings:    NewMockBookingRepository(),
		withdrawals: NewMockWithdrawalRepository(),
		locks:       NewMockLockStore(),
		cache:       NewMockBookingCache(),
		notifier:    NewMockNotifier(),
		payouts:     NewMockPayouts(),
	}
	policy := service.DefaultSettlementPolicy()
	for _, opt := range opts {
		opt(f, &policy)
	}

	// A nil *MockLockStore must become a nil interface.
	var svc *service.SettlementService
	if f.locks != nil {
		svc = service.NewSettlementService(f.bookings, f.withdrawals, f.locks, f.cache, f.notifier, f.payouts, policy)
	} else {
		svc = service.NewSettlementService(f.bookings, f.withdrawals, nil, f.cache, f.notifier, f.payouts, policy)
	}
	f.service = svc.WithClock(func() time.Time { return fixedNow })
	return f
}

func (f *settlementFixture) createBooking(t *testing.T, gross string) *domain.Booking {
	t.Helper()

	amount, err := domain.ParseMoney(gross, "USD")
	if err != nil {
		t.Fatalf("parse %q: %v", gross, err)
	}
	b, err := f.service.CreateBooking(context.Background(), service.CreateBookingRequest{
		RenterID:    renterID,
		ProviderID:  ownerID,
		VehicleID:   vehicle,
		PickupAt:    fixedNow.Add(72 * time.Hour),
		DropoffAt:   fixedNow.Add(144 * time.Hour),
		GrossAmount: amount,
	})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	return b
}

// completedBooking drives a new booking through accept and complete.
func (f *settlementFixture) completedBooking(t *testing.T, gross string) *domain.Booking {
	t.Helper()
	ctx := context.Background()

	b := f.createBooking(t, gross)
	if _, err := f.service.AcceptBooking(ctx, b.ID, ownerID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	done, err := f.service.CompleteBooking(ctx, b.ID, ownerID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	return done
}

func (f *settlementFixture) available(t *testing.T) domain.Money {
	t.Helper()
	m, err := f.service.ComputeAvailableBalance(context.Background(), ownerID)
	if err != nil {
		t.Fatalf("available balance: %v", err)
	}
	return m
}

func usd(t *testing.T, major string) domain.Money {
	t.Helper()
	m, err := domain.ParseMoney(major, "USD")
	if err != nil {
		t.Fatalf("parse %q: %v", major, err)
	}
	return m
}
