package redis

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

// SettlementChannel is the pub/sub channel carrying booking and withdrawal events.
const SettlementChannel = "events:settlement"

// EventBus publishes domain events over Redis pub/sub.
type EventBus struct {
	client  *redis.Client
	channel string
}

// NewEventBus creates an EventBus publishing on SettlementChannel.
func NewEventBus(client *redis.Client) *EventBus {
	return &EventBus{client: client, channel: SettlementChannel}
}

type envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Publish sends the event, wrapped with its type name, to subscribers.
func (b *EventBus) Publish(ctx context.Context, eventType string, payload any) error {
	data, err := json.Marshal(envelope{Type: eventType, Payload: payload})
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, data).Err()
}
