package domain

import (
	"context"
	"time"
)

// PaymentGateway reads canonical state from the payment processor.
// Implementations return ErrUnknownEntity for ids the processor does not
// know and wrap everything else in ErrTransient.
type PaymentGateway interface {
	RetrieveSubscription(ctx context.Context, externalID string) (*SubscriptionSnapshot, error)
	RetrieveAccount(ctx context.Context, accountRef string) (*AccountSnapshot, error)
	ListDisputes(ctx context.Context, accountRef string) ([]DisputeSnapshot, error)
}

// SubscriptionSnapshot is the processor's view of a subscription.
type SubscriptionSnapshot struct {
	ExternalID         string
	Status             SubscriptionStatus
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	CanceledAt         *time.Time
	UnitAmount         int64
	Currency           string
}

// AccountSnapshot is the processor's view of a connected account.
type AccountSnapshot struct {
	ID               string
	DetailsSubmitted bool
	ChargesEnabled   bool
	PayoutsEnabled   bool
	CurrentlyDue     []string
	PastDue          []string
}

// Onboarded reports whether the account can both charge and receive payouts.
func (a *AccountSnapshot) Onboarded() bool {
	return a.ChargesEnabled && a.PayoutsEnabled
}

// Verification maps the account onto the trainer's verification status.
func (a *AccountSnapshot) Verification() VerificationStatus {
	if a.DetailsSubmitted {
		return VerificationVerified
	}
	return VerificationPending
}

// RequirementsDue reports whether the processor is asking for anything.
func (a *AccountSnapshot) RequirementsDue() bool {
	return len(a.CurrentlyDue) > 0 || len(a.PastDue) > 0
}

// DisputeSnapshot is the processor's view of a dispute.
type DisputeSnapshot struct {
	ID       string
	ChargeID string
	Status   string
	Amount   int64
	Currency string
	Reason   string
}

// Won reports whether the dispute closed in the trainer's favour.
func (d DisputeSnapshot) Won() bool {
	return d.Status == "won"
}

// Active reports whether the dispute still awaits an outcome.
func (d DisputeSnapshot) Active() bool {
	return d.Status == "needs_response" || d.Status == "under_review"
}

// DisputeSummary condenses a dispute listing into risk inputs.
type DisputeSummary struct {
	Active int
	Total  int
}

// SummarizeDisputes counts active and total disputes.
func SummarizeDisputes(disputes []DisputeSnapshot) DisputeSummary {
	s := DisputeSummary{Total: len(disputes)}
	for _, d := range disputes {
		if d.Active() {
			s.Active++
		}
	}
	return s
}
