package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// PayloadDecoder reads the data object of an authenticated notification into
// domain values. A malformed object is an ErrPolicyViolation.
type PayloadDecoder interface {
	CheckoutSession(ev *Event) (CheckoutSession, error)
	Subscription(ev *Event) (*SubscriptionSnapshot, error)
	Payout(ev *Event) (PayoutSnapshot, error)
	Dispute(ev *Event) (DisputeSnapshot, error)
	Account(ev *Event) (*AccountSnapshot, error)
}

// CheckoutSession is the subset of a completed checkout session the
// lifecycle needs. Metadata carries the marketplace ids set at checkout.
type CheckoutSession struct {
	ID             string
	SubscriptionID string
	Metadata       map[string]string
}

// CheckoutRefs are the marketplace ids linked to a checkout.
type CheckoutRefs struct {
	ClientID  uuid.UUID
	TrainerID uuid.UUID
	PlanID    uuid.UUID
}

// Refs parses the marketplace ids out of the session metadata.
func (s CheckoutSession) Refs() (CheckoutRefs, error) {
	var refs CheckoutRefs
	var err error
	if refs.ClientID, err = uuid.Parse(s.Metadata["client_id"]); err != nil {
		return refs, fmt.Errorf("%w: checkout %s: client_id: %v", ErrPolicyViolation, s.ID, err)
	}
	if refs.TrainerID, err = uuid.Parse(s.Metadata["trainer_id"]); err != nil {
		return refs, fmt.Errorf("%w: checkout %s: trainer_id: %v", ErrPolicyViolation, s.ID, err)
	}
	if refs.PlanID, err = uuid.Parse(s.Metadata["plan_id"]); err != nil {
		return refs, fmt.Errorf("%w: checkout %s: plan_id: %v", ErrPolicyViolation, s.ID, err)
	}
	return refs, nil
}

// PayoutSnapshot is the processor's view of a payout.
type PayoutSnapshot struct {
	ID             string
	Amount         int64
	Currency       string
	Status         string
	ArrivalDate    int64
	Method         string
	FailureCode    string
	FailureMessage string
}
