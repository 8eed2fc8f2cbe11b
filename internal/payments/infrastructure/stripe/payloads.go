package stripe

import (
	"encoding/json"
	"fmt"

	"github.com/felixgeelhaar/coachpay/internal/payments/domain"
	stripego "github.com/stripe/stripe-go/v76"
)

// PayloadDecoder implements domain.PayloadDecoder on the stripe-go resource
// types. Expandable references decode whether sent as an id or an object.
type PayloadDecoder struct{}

// NewPayloadDecoder creates a decoder.
func NewPayloadDecoder() PayloadDecoder {
	return PayloadDecoder{}
}

func decode(ev *domain.Event, v any) error {
	if err := json.Unmarshal(ev.Payload, v); err != nil {
		return fmt.Errorf("%w: malformed %s payload in %s: %v", domain.ErrPolicyViolation, ev.Type, ev.ID, err)
	}
	return nil
}

// CheckoutSession implements domain.PayloadDecoder. A session without a
// subscription was a one-off payment and is rejected.
func (PayloadDecoder) CheckoutSession(ev *domain.Event) (domain.CheckoutSession, error) {
	var s stripego.CheckoutSession
	if err := decode(ev, &s); err != nil {
		return domain.CheckoutSession{}, err
	}
	if s.Subscription == nil || s.Subscription.ID == "" {
		return domain.CheckoutSession{}, fmt.Errorf("%w: checkout %s has no subscription", domain.ErrPolicyViolation, s.ID)
	}
	return domain.CheckoutSession{
		ID:             s.ID,
		SubscriptionID: s.Subscription.ID,
		Metadata:       s.Metadata,
	}, nil
}

// Subscription implements domain.PayloadDecoder.
func (PayloadDecoder) Subscription(ev *domain.Event) (*domain.SubscriptionSnapshot, error) {
	var s stripego.Subscription
	if err := decode(ev, &s); err != nil {
		return nil, err
	}
	if s.ID == "" {
		return nil, fmt.Errorf("%w: subscription payload in %s has no id", domain.ErrPolicyViolation, ev.ID)
	}
	return subscriptionSnapshot(&s), nil
}

// Payout implements domain.PayloadDecoder.
func (PayloadDecoder) Payout(ev *domain.Event) (domain.PayoutSnapshot, error) {
	var p stripego.Payout
	if err := decode(ev, &p); err != nil {
		return domain.PayoutSnapshot{}, err
	}
	return domain.PayoutSnapshot{
		ID:             p.ID,
		Amount:         p.Amount,
		Currency:       string(p.Currency),
		Status:         string(p.Status),
		ArrivalDate:    p.ArrivalDate,
		Method:         string(p.Method),
		FailureCode:    string(p.FailureCode),
		FailureMessage: p.FailureMessage,
	}, nil
}

// Dispute implements domain.PayloadDecoder.
func (PayloadDecoder) Dispute(ev *domain.Event) (domain.DisputeSnapshot, error) {
	var d stripego.Dispute
	if err := decode(ev, &d); err != nil {
		return domain.DisputeSnapshot{}, err
	}
	return disputeSnapshot(&d), nil
}

// Account implements domain.PayloadDecoder.
func (PayloadDecoder) Account(ev *domain.Event) (*domain.AccountSnapshot, error) {
	var a stripego.Account
	if err := decode(ev, &a); err != nil {
		return nil, err
	}
	if a.ID == "" {
		return nil, fmt.Errorf("%w: account payload in %s has no id", domain.ErrPolicyViolation, ev.ID)
	}
	return accountSnapshot(&a), nil
}
