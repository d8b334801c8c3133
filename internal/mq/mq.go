package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bayanihan-data/povassess/config"
)

// Domain event channels.
const (
	ChannelHouseholdImported     = "household.imported"
	ChannelReferralStatusChanged = "referral.status_changed"
	ChannelHouseholdsPurged      = "households.purged"
)

// Channels lists every domain event channel.
var Channels = []string{
	ChannelHouseholdImported,
	ChannelReferralStatusChanged,
	ChannelHouseholdsPurged,
}

// Attribute keys set on every published event.
const (
	AttrEventID     = "event_id"
	AttrEventType   = "event_type"
	AttrContentType = "content_type"
)

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. Return an error to signal a retry/nack.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// Event is the JSON envelope of a domain event.
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// MQ wraps a backend with a stable API. A nil *MQ drops every event.
type MQ struct {
	backend Backend
	now     func() time.Time
}

// New constructs an MQ wrapper for the provided backend.
func New(backend Backend) *MQ {
	return &MQ{backend: backend, now: time.Now}
}

// FromConfig connects the configured broker. It returns nil when event
// publishing is disabled.
func FromConfig(ctx context.Context, cfg config.MQConfig) (*MQ, error) {
	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case "rabbitmq":
		client, err := NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, err
		}
		return New(client), nil
	case "pubsub":
		client, err := NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, err
		}
		return New(client), nil
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.Backend)
	}
}

// Publish sends a message to the named channel.
func (m *MQ) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if m == nil {
		return "", nil
	}
	return m.backend.Publish(ctx, channel, data, attrs)
}

// PublishEvent wraps payload in an Event envelope and publishes it on the
// channel named after eventType.
func (m *MQ) PublishEvent(ctx context.Context, eventType string, payload any) (string, error) {
	if m == nil {
		return "", nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	event := Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: m.now().UTC(),
		Payload:    body,
	}
	data, err := json.Marshal(event)
	if err != nil {
		return "", err
	}
	return m.backend.Publish(ctx, eventType, data, map[string]string{
		AttrEventID:     event.ID,
		AttrEventType:   eventType,
		AttrContentType: "application/json",
	})
}

// Subscribe consumes messages from the named channel.
func (m *MQ) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if m == nil {
		return fmt.Errorf("mq backend is not configured")
	}
	return m.backend.Subscribe(ctx, channel, handler)
}

// Close closes the underlying backend.
func (m *MQ) Close() error {
	if m == nil {
		return nil
	}
	return m.backend.Close()
}

// DecodeEvent parses an Event envelope from a delivered message.
func DecodeEvent(msg Message) (Event, error) {
	var event Event
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		return Event{}, fmt.Errorf("decode event %s: %w", msg.ID, err)
	}
	return event, nil
}
