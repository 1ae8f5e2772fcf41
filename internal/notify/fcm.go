package notify

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"carshare/internal/service"
)

// messagingClient is the part of the FCM client used here.
type messagingClient interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

var _ service.PushSender = (*FCMSender)(nil)

// FCMSender delivers push notifications to the topic each party's devices subscribe to.
type FCMSender struct {
	client messagingClient
}

// NewFCMSender initializes Firebase from a service account file.
func NewFCMSender(ctx context.Context, credentialsFile string) (*FCMSender, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create messaging client: %w", err)
	}
	return &FCMSender{client: client}, nil
}

// PartyTopic returns the FCM topic for a party.
func PartyTopic(partyID string) string {
	return "party-" + partyID
}

// SendToParty pushes a notification to all devices of the party.
func (s *FCMSender) SendToParty(ctx context.Context, partyID, title, body string, data map[string]string) error {
	_, err := s.client.Send(ctx, &messaging.Message{
		Topic: PartyTopic(partyID),
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
	})
	if err != nil {
		return fmt.Errorf("failed to push to %s: %w", partyID, err)
	}
	return nil
}
