// Package outbox stores domain events in the same transaction as the state
// change that produced them and relays them to the broker afterwards.
package outbox

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/felixgeelhaar/coachpay/internal/shared/domain"
	"github.com/google/uuid"
)

// ErrEmptyRoutingKey is returned for events that cannot be routed.
var ErrEmptyRoutingKey = errors.New("outbox: event has no routing key")

// Message is one row of the outbox table. RoutingKey doubles as the event
// type; both columns are kept so consumers can filter without parsing keys.
type Message struct {
	ID               int64
	EventID          uuid.UUID
	AggregateType    string
	AggregateID      uuid.UUID
	EventType        string
	RoutingKey       string
	Payload          json.RawMessage
	Metadata         json.RawMessage
	CreatedAt        time.Time
	PublishedAt      *time.Time
	NextRetryAt      *time.Time
	RetryCount       int
	LastError        *string
	DeadLetteredAt   *time.Time
	DeadLetterReason *string
}

// NewMessage serializes a domain event, its metadata included, into a row
// ready to be saved alongside the state change that raised it.
func NewMessage(event domain.DomainEvent) (*Message, error) {
	if event.RoutingKey() == "" {
		return nil, ErrEmptyRoutingKey
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	metadata, err := json.Marshal(event.Metadata())
	if err != nil {
		return nil, err
	}

	return &Message{
		EventID:       event.EventID(),
		AggregateType: event.AggregateType(),
		AggregateID:   event.AggregateID(),
		EventType:     event.RoutingKey(),
		RoutingKey:    event.RoutingKey(),
		Payload:       payload,
		Metadata:      metadata,
		CreatedAt:     event.OccurredAt(),
	}, nil
}

// Trace decodes the correlation metadata stored with the message. A missing
// or unreadable column yields the zero value.
func (m *Message) Trace() domain.EventMetadata {
	var meta domain.EventMetadata
	if len(m.Metadata) > 0 {
		_ = json.Unmarshal(m.Metadata, &meta)
	}
	return meta
}
