package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Publisher delivers serialized outbox messages to a broker.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload []byte) error
	Close() error
}

// EventConsumer handles the events whose routing keys match its bindings.
type EventConsumer interface {
	// Bindings returns topic patterns such as "payments.trainer.risk_changed"
	// or "payments.#".
	Bindings() []string

	Handle(ctx context.Context, event *ConsumedEvent) error
}

// ConsumedEvent is the envelope of a delivered event. Payload holds the full
// serialized event so consumers can decode their own fields.
type ConsumedEvent struct {
	EventID       uuid.UUID       `json:"event_id"`
	AggregateID   uuid.UUID       `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	RoutingKey    string          `json:"routing_key"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"-"`
}

// Decode unmarshals the payload into v.
func (e *ConsumedEvent) Decode(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// DecodeEnvelope reads the envelope fields of a serialized event. An
// envelope without a routing key takes the one it was published under.
func DecodeEnvelope(routingKey string, payload []byte) (*ConsumedEvent, error) {
	event := &ConsumedEvent{}
	if err := json.Unmarshal(payload, event); err != nil {
		return nil, fmt.Errorf("decode event %s: %w", routingKey, err)
	}
	if event.RoutingKey == "" {
		event.RoutingKey = routingKey
	}
	event.Payload = payload
	return event, nil
}
