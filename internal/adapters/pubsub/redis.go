// Package pubsub publishes stream notifications to the event bus.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Event is the envelope written to the bus.
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEvent wraps payload in an envelope with a fresh id.
func NewEvent(eventType string, payload any, now time.Time) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Payload:   data,
		Timestamp: now,
	}, nil
}

// RedisPublisher implements domain.EventPublisher on Redis pub/sub.
type RedisPublisher struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client, now: time.Now}
}

// Publish publishes an event to the specified channel.
func (r *RedisPublisher) Publish(ctx context.Context, channel, eventType string, payload any) error {
	event, err := NewEvent(eventType, payload, r.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return r.client.Publish(ctx, channel, data).Err()
}

// Noop drops events. Used when no Redis address is configured.
type Noop struct{}

func (Noop) Publish(context.Context, string, string, any) error { return nil }
