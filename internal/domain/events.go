package domain

import "time"

// BookingStatusChanged is emitted after every persisted booking transition.
type BookingStatusChanged struct {
	BookingID    string        `json:"booking_id"`
	Status       BookingStatus `json:"status"`
	ActorID      string        `json:"actor_id"`
	Reason       string        `json:"reason,omitempty"`
	RenterID     string        `json:"renter_id"`
	ProviderID   string        `json:"provider_id"`
	RefundAmount Money         `json:"refund_amount"`
	OccurredAt   time.Time     `json:"occurred_at"`
}

// NewBookingStatusChanged builds the event for the latest history entry of b.
func NewBookingStatusChanged(b *Booking) BookingStatusChanged {
	last := b.LastChange()
	return BookingStatusChanged{
		BookingID:    b.ID,
		Status:       b.Status,
		ActorID:      last.ActorID,
		Reason:       last.Reason,
		RenterID:     b.RenterID,
		ProviderID:   b.ProviderID,
		RefundAmount: b.RefundAmount,
		OccurredAt:   last.At,
	}
}

// Counterparties returns the parties to notify, excluding the actor.
func (e BookingStatusChanged) Counterparties() []string {
	var out []string
	for _, id := range []string{e.RenterID, e.ProviderID} {
		if id != "" && id != e.ActorID {
			out = append(out, id)
		}
	}
	return out
}

// WithdrawalStatusChanged is emitted when a withdrawal is submitted or advanced.
type WithdrawalStatusChanged struct {
	WithdrawalID  string           `json:"withdrawal_id"`
	OwnerID       string           `json:"owner_id"`
	Reference     string           `json:"reference"`
	Amount        Money            `json:"amount"`
	Status        WithdrawalStatus `json:"status"`
	FailureReason string           `json:"failure_reason,omitempty"`
	OccurredAt    time.Time        `json:"occurred_at"`
}

// NewWithdrawalStatusChanged builds the event for the current state of w.
func NewWithdrawalStatusChanged(w *WithdrawalRequest) WithdrawalStatusChanged {
	return WithdrawalStatusChanged{
		WithdrawalID:  w.ID,
		OwnerID:       w.OwnerID,
		Reference:     w.Reference,
		Amount:        w.Amount,
		Status:        w.Status,
		FailureReason: w.FailureReason,
		OccurredAt:    w.UpdatedAt,
	}
}
