package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PartyRole represents what kind of participant a party is on the marketplace.
type PartyRole string

const (
	PartyRoleRenter PartyRole = "RENTER"
	PartyRoleOwner  PartyRole = "OWNER"
	PartyRoleDriver PartyRole = "DRIVER"
)

// rideStartedReason marks the audit entry written when a ride starts.
const rideStartedReason = "ride started"

// StatusChange is one entry of a booking's append-only status history.
type StatusChange struct {
	Status  BookingStatus `json:"status"`
	ActorID string        `json:"actor_id"`
	Reason  string        `json:"reason,omitempty"`
	At      time.Time     `json:"at"`
}

// Booking is a renter's reservation of a vehicle from an owner or driver.
type Booking struct {
	ID                  string          `json:"id"`
	RenterID            string          `json:"renter_id"`
	ProviderID          string          `json:"provider_id"`
	ProviderRole        PartyRole       `json:"provider_role"`
	VehicleID           string          `json:"vehicle_id"`
	PickupAt            time.Time       `json:"pickup_at"`
	DropoffAt           time.Time       `json:"dropoff_at"`
	GrossAmount         Money           `json:"gross_amount"`
	CommissionRate      decimal.Decimal `json:"commission_rate"`
	CommissionAmount    Money           `json:"commission_amount"`
	NetAmount           Money           `json:"net_amount"`
	RefundAmount        Money           `json:"refund_amount"`
	Status              BookingStatus   `json:"status"`
	StatusHistory       []StatusChange  `json:"status_history"`
	RejectionReason     string          `json:"rejection_reason,omitempty"`
	SpecialInstructions string          `json:"special_instructions,omitempty"`
	StartedAt           time.Time       `json:"started_at"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
	Version             int64           `json:"version"`
}

// NewBookingParams contains the inputs for creating a booking.
type NewBookingParams struct {
	ID                  string
	RenterID            string
	ProviderID          string
	ProviderRole        PartyRole
	VehicleID           string
	PickupAt            time.Time
	DropoffAt           time.Time
	GrossAmount         Money
	SpecialInstructions string
}

// NewBooking creates a PENDING booking with commission and net derived from policy.
func NewBooking(p NewBookingParams, policy CommissionPolicy, now time.Time) (*Booking, error) {
	if !p.DropoffAt.After(p.PickupAt) {
		return nil, ErrInvalidSchedule
	}
	if !p.GrossAmount.IsPositive() {
		return nil, fmt.Errorf("%w: gross amount must be positive", ErrInvalidAmount)
	}

	providerRole := p.ProviderRole
	if providerRole == "" {
		providerRole = PartyRoleOwner
	}

	b := &Booking{
		ID:                  p.ID,
		RenterID:            p.RenterID,
		ProviderID:          p.ProviderID,
		ProviderRole:        providerRole,
		VehicleID:           p.VehicleID,
		PickupAt:            p.PickupAt,
		DropoffAt:           p.DropoffAt,
		GrossAmount:         p.GrossAmount,
		CommissionRate:      policy.Rate,
		RefundAmount:        ZeroMoney(p.GrossAmount.Currency),
		Status:              BookingStatusPending,
		SpecialInstructions: p.SpecialInstructions,
		StatusHistory: []StatusChange{
			{Status: BookingStatusPending, ActorID: p.RenterID, At: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := b.applyFinancials(); err != nil {
		return nil, err
	}
	return b, nil
}

// RoleOf returns the role actorID plays in this booking, or false if it is not a party.
func (b *Booking) RoleOf(actorID string) (ActorRole, bool) {
	switch actorID {
	case "":
		return "", false
	case b.RenterID:
		return ActorRenter, true
	case b.ProviderID:
		return ActorProvider, true
	default:
		return "", false
	}
}

// Transition returns a new snapshot of b moved to target by actorID.
// b itself is never modified.
func (b *Booking) Transition(actorID string, target BookingStatus, reason string, at time.Time) (*Booking, error) {
	role, ok := b.RoleOf(actorID)
	if !ok {
		return nil, fmt.Errorf("%w: actor %q is not a party to booking %s", ErrInvalidTransition, actorID, b.ID)
	}
	if err := checkTransition(b, target, role, reason); err != nil {
		return nil, err
	}

	next := b.clone()
	next.Status = target
	if target == BookingStatusRejected {
		next.RejectionReason = reason
	}
	next.appendHistory(StatusChange{Status: target, ActorID: actorID, Reason: reason, At: at})
	return next, nil
}

// MarkStarted records the start of the rental on an ACTIVE booking.
// Only the provider may start it, and only once.
func (b *Booking) MarkStarted(actorID string, at time.Time) (*Booking, error) {
	role, ok := b.RoleOf(actorID)
	if !ok || role != ActorProvider {
		return nil, fmt.Errorf("%w: only the provider can start booking %s", ErrInvalidTransition, b.ID)
	}
	if b.Status != BookingStatusActive {
		return nil, fmt.Errorf("%w: booking %s is %s, not ACTIVE", ErrInvalidTransition, b.ID, b.Status)
	}
	if b.IsStarted() {
		return nil, fmt.Errorf("%w: booking %s already started", ErrInvalidTransition, b.ID)
	}

	next := b.clone()
	next.appendHistory(StatusChange{Status: BookingStatusActive, ActorID: actorID, Reason: rideStartedReason, At: at})
	next.StartedAt = next.UpdatedAt
	return next, nil
}

// IsStarted reports whether the ride has been started.
func (b *Booking) IsStarted() bool {
	return !b.StartedAt.IsZero()
}

// RecomputeFinancials returns a snapshot with commission and net re-derived from
// the current gross amount and commission rate.
func (b *Booking) RecomputeFinancials() (*Booking, error) {
	next := b.clone()
	if err := next.applyFinancials(); err != nil {
		return nil, err
	}
	return next, nil
}

// WithRefund returns a snapshot carrying the given refund amount.
func (b *Booking) WithRefund(refund Money) *Booking {
	next := b.clone()
	next.RefundAmount = refund
	return next
}

// LastChange returns the most recent history entry.
func (b *Booking) LastChange() StatusChange {
	if len(b.StatusHistory) == 0 {
		return StatusChange{}
	}
	return b.StatusHistory[len(b.StatusHistory)-1]
}

func (b *Booking) applyFinancials() error {
	commission, net, err := Split(b.GrossAmount, b.CommissionRate)
	if err != nil {
		return err
	}
	b.CommissionAmount = commission
	b.NetAmount = net
	return nil
}

// appendHistory appends an entry, never letting timestamps go backwards.
func (b *Booking) appendHistory(change StatusChange) {
	if last := b.LastChange(); change.At.Before(last.At) {
		change.At = last.At
	}
	b.StatusHistory = append(b.StatusHistory, change)
	b.UpdatedAt = change.At
}

func (b *Booking) clone() *Booking {
	next := *b
	next.StatusHistory = make([]StatusChange, len(b.StatusHistory), len(b.StatusHistory)+1)
	copy(next.StatusHistory, b.StatusHistory)
	return &next
}
