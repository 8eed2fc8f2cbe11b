package domain

import (
	"time"

	"github.com/google/uuid"
)

// VerificationStatus reflects whether the trainer submitted account details.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
)

// Trainer is a seller on the marketplace. Counters and risk fields are owned
// by the reconciliation engine.
type Trainer struct {
	ID                      uuid.UUID
	UserID                  uuid.UUID
	DisplayName             string
	StripeConnectID         string
	StripeOnboarded         bool
	VerificationStatus      VerificationStatus
	RiskLevel               RiskLevel
	SuspiciousActivityCount int
	TotalSubscribers        int
	DisputesTotal           int
	ActiveDispute           bool
	PastDueRequirements     int
	TermsAccepted           bool
	TermsAcceptedAt         *time.Time
	LastPayoutAt            *time.Time
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// NewTrainer creates a trainer with a clean compliance record.
func NewTrainer(userID uuid.UUID, displayName string) *Trainer {
	now := time.Now().UTC()
	return &Trainer{
		ID:                 uuid.New(),
		UserID:             userID,
		DisplayName:        displayName,
		VerificationStatus: VerificationPending,
		RiskLevel:          RiskLow,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// HasConnectAccount reports whether the trainer started processor onboarding.
func (t *Trainer) HasConnectAccount() bool {
	return t.StripeConnectID != ""
}

// RiskInputs collects the stored inputs of the risk policy.
func (t *Trainer) RiskInputs() RiskInputs {
	return RiskInputs{
		Verification:        t.VerificationStatus,
		ActiveDispute:       t.ActiveDispute,
		PastDueRequirements: t.PastDueRequirements,
		SuspiciousActivity:  t.SuspiciousActivityCount,
		DisputesTotal:       t.DisputesTotal,
	}
}

// AccountUpdate carries processor account state onto a trainer.
type AccountUpdate struct {
	Onboarded           bool
	Verification        VerificationStatus
	PastDueRequirements int
}

// AccountUpdateFrom maps a processor snapshot to trainer fields.
func AccountUpdateFrom(a *AccountSnapshot) AccountUpdate {
	return AccountUpdate{
		Onboarded:           a.Onboarded(),
		Verification:        a.Verification(),
		PastDueRequirements: len(a.PastDue),
	}
}
