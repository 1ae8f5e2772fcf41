package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"carshare/internal/domain"
	"carshare/internal/repository"
)

// NotificationType represents the type of notification.
type NotificationType string

const (
	NotificationBookingRequested  NotificationType = "BOOKING_REQUESTED"
	NotificationBookingAccepted   NotificationType = "BOOKING_ACCEPTED"
	NotificationBookingRejected   NotificationType = "BOOKING_REJECTED"
	NotificationRideStarted       NotificationType = "RIDE_STARTED"
	NotificationBookingCompleted  NotificationType = "BOOKING_COMPLETED"
	NotificationBookingCancelled  NotificationType = "BOOKING_CANCELLED"
	NotificationWithdrawalUpdated NotificationType = "WITHDRAWAL_UPDATED"
)

// Event types published on the settlement channel.
const (
	EventBookingStatusChanged    = "booking.status_changed"
	EventWithdrawalStatusChanged = "withdrawal.status_changed"
)

// Notification represents a notification to be sent.
type Notification struct {
	Type        NotificationType
	RecipientID string
	Title       string
	Message     string
	Data        map[string]string
	CreatedAt   time.Time
}

// EventPublisher broadcasts domain events to other services.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
}

// EmailSender delivers email notifications.
type EmailSender interface {
	SendEmail(ctx context.Context, toName, toAddress, subject, body string) error
}

// PushSender delivers push notifications to a party's devices.
type PushSender interface {
	SendToParty(ctx context.Context, partyID, title, body string, data map[string]string) error
}

// NotificationService fans settlement events out to the log, the event bus,
// email and push. Every channel except the log is optional.
type NotificationService struct {
	parties   repository.PartyRepository
	publisher EventPublisher
	email     EmailSender
	push      PushSender
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(parties repository.PartyRepository, publisher EventPublisher, email EmailSender, push PushSender) *NotificationService {
	return &NotificationService{
		parties:   parties,
		publisher: publisher,
		email:     email,
		push:      push,
	}
}

// BookingStatusChanged publishes the event and notifies every party except the actor.
func (s *NotificationService) BookingStatusChanged(ctx context.Context, event domain.BookingStatusChanged) error {
	var errs []error
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, EventBookingStatusChanged, event); err != nil {
			errs = append(errs, fmt.Errorf("publish: %w", err))
		}
	}

	notificationType, title, message := describeBooking(event)
	for _, recipientID := range event.Counterparties() {
		errs = append(errs, s.send(ctx, Notification{
			Type:        notificationType,
			RecipientID: recipientID,
			Title:       title,
			Message:     message,
			Data: map[string]string{
				"booking_id": event.BookingID,
				"status":     string(event.Status),
				"actor_id":   event.ActorID,
			},
			CreatedAt: event.OccurredAt,
		}))
	}
	return errors.Join(errs...)
}

// WithdrawalStatusChanged publishes the event and notifies the owner.
func (s *NotificationService) WithdrawalStatusChanged(ctx context.Context, event domain.WithdrawalStatusChanged) error {
	var errs []error
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, EventWithdrawalStatusChanged, event); err != nil {
			errs = append(errs, fmt.Errorf("publish: %w", err))
		}
	}

	message := fmt.Sprintf("Your withdrawal %s of %s is %s", event.Reference, event.Amount, event.Status)
	if event.FailureReason != "" {
		message += ": " + event.FailureReason
	}

	errs = append(errs, s.send(ctx, Notification{
		Type:        NotificationWithdrawalUpdated,
		RecipientID: event.OwnerID,
		Title:       "Withdrawal " + string(event.Status),
		Message:     message,
		Data: map[string]string{
			"withdrawal_id": event.WithdrawalID,
			"reference":     event.Reference,
			"status":        string(event.Status),
		},
		CreatedAt: event.OccurredAt,
	}))
	return errors.Join(errs...)
}

func describeBooking(event domain.BookingStatusChanged) (NotificationType, string, string) {
	switch event.Status {
	case domain.BookingStatusPending:
		return NotificationBookingRequested, "New Booking Request", "You have a new booking request awaiting your response"
	case domain.BookingStatusActive:
		if event.Reason != "" {
			return NotificationRideStarted, "Ride Started", "Your ride has started. Enjoy the trip!"
		}
		return NotificationBookingAccepted, "Booking Accepted", "Your booking has been accepted"
	case domain.BookingStatusRejected:
		return NotificationBookingRejected, "Booking Rejected", "Your booking was rejected: " + event.Reason
	case domain.BookingStatusCompleted:
		return NotificationBookingCompleted, "Booking Completed", "Your booking is complete. Thank you!"
	case domain.BookingStatusCancelled:
		msg := "The booking has been cancelled"
		if event.RefundAmount.IsPositive() {
			msg += fmt.Sprintf(". Refund: %s", event.RefundAmount)
		}
		return NotificationBookingCancelled, "Booking Cancelled", msg
	default:
		return NotificationType(event.Status), "Booking Updated", "Your booking status changed to " + string(event.Status)
	}
}

// send logs the notification and delivers it over email and push.
func (s *NotificationService) send(ctx context.Context, notification Notification) error {
	log.Printf("[NOTIFICATION] Type=%s, Recipient=%s, Title=%s, Message=%s",
		notification.Type, notification.RecipientID, notification.Title, notification.Message)

	var errs []error
	if s.push != nil {
		if err := s.push.SendToParty(ctx, notification.RecipientID, notification.Title, notification.Message, notification.Data); err != nil {
			errs = append(errs, fmt.Errorf("push to %s: %w", notification.RecipientID, err))
		}
	}

	if s.email != nil && s.parties != nil {
		party, err := s.parties.GetByID(ctx, notification.RecipientID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
		case err != nil:
			errs = append(errs, fmt.Errorf("lookup %s: %w", notification.RecipientID, err))
		case party.Email != "":
			if err := s.email.SendEmail(ctx, party.Name, party.Email, notification.Title, notification.Message); err != nil {
				errs = append(errs, fmt.Errorf("email to %s: %w", notification.RecipientID, err))
			}
		}
	}
	return errors.Join(errs...)
}
