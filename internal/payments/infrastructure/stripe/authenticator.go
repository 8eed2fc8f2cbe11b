// Package stripe adapts the Stripe API to the payments domain: webhook
// signature verification and the read-only processor gateway.
package stripe

import (
	"fmt"
	"time"

	"github.com/felixgeelhaar/coachpay/internal/payments/domain"
	"github.com/stripe/stripe-go/v76/webhook"
)

// DefaultTolerance is the maximum accepted age of a signed payload.
const DefaultTolerance = webhook.DefaultTolerance

// SignatureHeader carries the webhook signature.
const SignatureHeader = "Stripe-Signature"

// Authenticator verifies webhook signatures before anything in the body is
// trusted.
type Authenticator struct {
	secret    string
	tolerance time.Duration
}

// NewAuthenticator creates an authenticator for the endpoint secret. A zero
// tolerance uses DefaultTolerance.
func NewAuthenticator(secret string, tolerance time.Duration) *Authenticator {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Authenticator{secret: secret, tolerance: tolerance}
}

// Authenticate checks the signature over the raw payload and decodes the
// event envelope.
func (a *Authenticator) Authenticate(payload []byte, signature string) (*domain.Event, error) {
	if a.secret == "" {
		return nil, fmt.Errorf("%w: webhook secret not configured", domain.ErrAuthenticationFailed)
	}
	if signature == "" {
		return nil, fmt.Errorf("%w: missing %s header", domain.ErrAuthenticationFailed, SignatureHeader)
	}
	// Events carry the API version of the sending account, which need not
	// match the library's pinned version.
	env, err := webhook.ConstructEventWithOptions(payload, signature, a.secret, webhook.ConstructEventOptions{
		Tolerance:                a.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrAuthenticationFailed, err)
	}
	if env.ID == "" || env.Type == "" || env.Data == nil {
		return nil, fmt.Errorf("%w: envelope without id, type or data", domain.ErrAuthenticationFailed)
	}

	occurred := time.Now().UTC()
	if env.Created > 0 {
		occurred = time.Unix(env.Created, 0).UTC()
	}
	return &domain.Event{
		ID:         env.ID,
		Type:       domain.EventType(env.Type),
		AccountRef: env.Account,
		OccurredAt: occurred,
		Payload:    env.Data.Raw,
	}, nil
}
