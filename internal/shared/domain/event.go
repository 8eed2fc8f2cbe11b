// Package domain holds the building blocks shared by bounded contexts.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent is a fact recorded by a context and fanned out through the outbox.
type DomainEvent interface {
	EventID() uuid.UUID
	AggregateID() uuid.UUID
	AggregateType() string
	RoutingKey() string
	OccurredAt() time.Time
	Metadata() EventMetadata
}

// EventMetadata ties an internal event back to what caused it. For events
// produced while reconciling a provider notification, CorrelationID is the
// provider's event id.
type EventMetadata struct {
	CorrelationID string `json:"correlation_id,omitempty"`
	CausationID   string `json:"causation_id,omitempty"`
	ActorID       string `json:"actor_id,omitempty"`
}

// BaseEvent carries the envelope fields; concrete events embed it. Fields are
// exported so they appear in the serialized outbox payload.
type BaseEvent struct {
	ID        uuid.UUID     `json:"event_id"`
	Aggregate uuid.UUID     `json:"aggregate_id"`
	Kind      string        `json:"aggregate_type"`
	Key       string        `json:"routing_key"`
	At        time.Time     `json:"occurred_at"`
	Meta      EventMetadata `json:"-"`
}

// NewBaseEvent creates a base event stamped with a fresh id and the current time.
func NewBaseEvent(aggregateID uuid.UUID, aggregateType, routingKey string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New(),
		Aggregate: aggregateID,
		Kind:      aggregateType,
		Key:       routingKey,
		At:        time.Now().UTC(),
	}
}

func (e BaseEvent) EventID() uuid.UUID      { return e.ID }
func (e BaseEvent) AggregateID() uuid.UUID  { return e.Aggregate }
func (e BaseEvent) AggregateType() string   { return e.Kind }
func (e BaseEvent) RoutingKey() string      { return e.Key }
func (e BaseEvent) OccurredAt() time.Time   { return e.At }
func (e BaseEvent) Metadata() EventMetadata { return e.Meta }

// SetMetadata sets the event metadata.
func (e *BaseEvent) SetMetadata(metadata EventMetadata) {
	e.Meta = metadata
}
