package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// RefundTier describes the refund a renter receives when cancelling with at least
// MinNotice before pickup. RentalShare applies to the provider's net amount and
// FeeShare to the platform commission (the booking fee).
type RefundTier struct {
	MinNotice   time.Duration
	RentalShare decimal.Decimal
	FeeShare    decimal.Decimal
}

// CancellationPolicy maps notice before pickup to refund tiers.
type CancellationPolicy struct {
	tiers []RefundTier
}

// DefaultRefundTiers: 48h+ full refund, 24-48h half the booking fee, under 24h nothing.
func DefaultRefundTiers() []RefundTier {
	return []RefundTier{
		{MinNotice: 48 * time.Hour, RentalShare: decimal.NewFromInt(1), FeeShare: decimal.NewFromInt(1)},
		{MinNotice: 24 * time.Hour, RentalShare: decimal.Zero, FeeShare: decimal.RequireFromString("0.5")},
		{MinNotice: 0, RentalShare: decimal.Zero, FeeShare: decimal.Zero},
	}
}

// NewCancellationPolicy builds a policy; tiers are evaluated longest notice first.
func NewCancellationPolicy(tiers []RefundTier) CancellationPolicy {
	sorted := make([]RefundTier, len(tiers))
	copy(sorted, tiers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MinNotice > sorted[j].MinNotice
	})
	return CancellationPolicy{tiers: sorted}
}

// Tiers returns the tiers, longest notice first.
func (p CancellationPolicy) Tiers() []RefundTier {
	out := make([]RefundTier, len(p.tiers))
	copy(out, p.tiers)
	return out
}

// Refund computes the amount returned to the renter when b is cancelled at cancelledAt
// by a party with the given role. b is the booking as it was before cancellation.
// The platform retains gross minus refund; providers are credited only for completed
// bookings, so a cancelled booking never adds to the provider's balance.
func (p CancellationPolicy) Refund(b *Booking, role ActorRole, cancelledAt time.Time) Money {
	// Nothing has been consumed yet, or the provider backed out.
	if b.Status == BookingStatusPending || role == ActorProvider {
		return b.GrossAmount
	}

	notice := b.PickupAt.Sub(cancelledAt)
	for _, tier := range p.tiers {
		if notice >= tier.MinNotice {
			rental := b.NetAmount.MulFloor(tier.RentalShare)
			fee := b.CommissionAmount.MulFloor(tier.FeeShare)
			return Money{Amount: rental.Amount + fee.Amount, Currency: b.GrossAmount.Currency}
		}
	}
	return ZeroMoney(b.GrossAmount.Currency)
}
