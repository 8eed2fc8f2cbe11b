package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus is the lifecycle state of a client's subscription.
type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionTrialing SubscriptionStatus = "trialing"
	SubscriptionPastDue  SubscriptionStatus = "past_due"
	SubscriptionCanceled SubscriptionStatus = "canceled"
)

// IsValid reports whether s is a known status.
func (s SubscriptionStatus) IsValid() bool {
	switch s {
	case SubscriptionActive, SubscriptionTrialing, SubscriptionPastDue, SubscriptionCanceled:
		return true
	}
	return false
}

// Counts reports whether a subscription in this status counts towards the
// trainer's total_subscribers.
func (s SubscriptionStatus) Counts() bool {
	return s == SubscriptionActive
}

// Live reports whether the subscription can still transition.
func (s SubscriptionStatus) Live() bool {
	return s == SubscriptionActive || s == SubscriptionTrialing || s == SubscriptionPastDue
}

// Subscription links a client to a trainer's plan.
type Subscription struct {
	ID                   uuid.UUID
	ClientID             uuid.UUID
	TrainerID            uuid.UUID
	PlanID               uuid.UUID
	StripeSubscriptionID string
	Status               SubscriptionStatus
	CurrentPeriodStart   *time.Time
	CurrentPeriodEnd     *time.Time
	CanceledAt           *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// NewSubscription creates the record for a completed checkout. Checkout only
// notifies after payment, so the subscription starts active.
func NewSubscription(refs CheckoutRefs, snap *SubscriptionSnapshot, now time.Time) *Subscription {
	s := &Subscription{
		ID:                   uuid.New(),
		ClientID:             refs.ClientID,
		TrainerID:            refs.TrainerID,
		PlanID:               refs.PlanID,
		StripeSubscriptionID: snap.ExternalID,
		Status:               SubscriptionActive,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	s.setPeriod(snap)
	return s
}

func (s *Subscription) setPeriod(snap *SubscriptionSnapshot) {
	if !snap.CurrentPeriodStart.IsZero() {
		start := snap.CurrentPeriodStart
		s.CurrentPeriodStart = &start
	}
	if !snap.CurrentPeriodEnd.IsZero() {
		end := snap.CurrentPeriodEnd
		s.CurrentPeriodEnd = &end
	}
}

// Transition is a validated status change with its counter effect.
type Transition struct {
	From SubscriptionStatus
	To   SubscriptionStatus
	// CounterDelta is the change to the trainer's total_subscribers.
	CounterDelta int
}

// ApplyUpdate moves a live subscription to the status carried by the
// snapshot and copies its period bounds.
func (s *Subscription) ApplyUpdate(snap *SubscriptionSnapshot, now time.Time) (Transition, error) {
	if !snap.Status.IsValid() {
		return Transition{}, fmt.Errorf("%w: %s has unknown status %q", ErrIllegalTransition, s.StripeSubscriptionID, snap.Status)
	}
	t, err := s.transition(snap.Status)
	if err != nil {
		return t, err
	}
	s.setPeriod(snap)
	if snap.Status == SubscriptionCanceled {
		s.CanceledAt = cancelTime(snap, now)
	}
	s.UpdatedAt = now
	return t, nil
}

// Cancel ends a live subscription. canceled_at comes from the snapshot, or
// the event time when the snapshot has none.
func (s *Subscription) Cancel(snap *SubscriptionSnapshot, at time.Time) (Transition, error) {
	t, err := s.transition(SubscriptionCanceled)
	if err != nil {
		return t, err
	}
	s.CanceledAt = cancelTime(snap, at)
	s.UpdatedAt = at
	return t, nil
}

func (s *Subscription) transition(to SubscriptionStatus) (Transition, error) {
	from := s.Status
	if !from.Live() {
		return Transition{}, fmt.Errorf("%w: %s %s -> %s", ErrIllegalTransition, s.StripeSubscriptionID, from, to)
	}
	s.Status = to
	return Transition{From: from, To: to, CounterDelta: counterDelta(from, to)}, nil
}

func counterDelta(from, to SubscriptionStatus) int {
	delta := 0
	if to.Counts() {
		delta++
	}
	if from.Counts() {
		delta--
	}
	return delta
}

func cancelTime(snap *SubscriptionSnapshot, fallback time.Time) *time.Time {
	if snap != nil && snap.CanceledAt != nil {
		t := *snap.CanceledAt
		return &t
	}
	t := fallback
	return &t
}
