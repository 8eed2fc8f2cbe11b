// Package domain models the payment reconciliation and compliance risk rules
// of the coaching marketplace.
package domain

import (
	"encoding/json"
	"time"
)

// EventType is the processor's event type tag.
type EventType string

const (
	EventCheckoutCompleted   EventType = "checkout.session.completed"
	EventSubscriptionUpdated EventType = "customer.subscription.updated"
	EventSubscriptionDeleted EventType = "customer.subscription.deleted"
	EventPayoutPaid          EventType = "payout.paid"
	EventPayoutFailed        EventType = "payout.failed"
	EventDisputeCreated      EventType = "charge.dispute.created"
	EventDisputeClosed       EventType = "charge.dispute.closed"
	EventAccountUpdated      EventType = "account.updated"
)

// HandledEventTypes lists every event type the reconciler must handle.
func HandledEventTypes() []EventType {
	return []EventType{
		EventCheckoutCompleted,
		EventSubscriptionUpdated,
		EventSubscriptionDeleted,
		EventPayoutPaid,
		EventPayoutFailed,
		EventDisputeCreated,
		EventDisputeClosed,
		EventAccountUpdated,
	}
}

// Event is an authenticated processor notification.
type Event struct {
	ID   string
	Type EventType
	// AccountRef is the connected account the event belongs to, if any.
	AccountRef string
	OccurredAt time.Time
	// Payload is the raw data.object of the notification.
	Payload json.RawMessage
}

// ApplyResult tells the caller whether an event's effects were applied now
// or had been applied by an earlier delivery.
type ApplyResult int

const (
	FirstSeen ApplyResult = iota + 1
	AlreadyProcessed
	// Ignored is returned for event types outside the handled set. No
	// ledger row is written for them.
	Ignored
)

func (r ApplyResult) String() string {
	switch r {
	case FirstSeen:
		return "first_seen"
	case AlreadyProcessed:
		return "already_processed"
	case Ignored:
		return "ignored"
	default:
		return "unknown"
	}
}
