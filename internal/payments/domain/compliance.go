package domain

import (
	"time"

	"github.com/google/uuid"
)

// CheckType names a compliance check.
type CheckType string

const (
	CheckAccountVerification CheckType = "account_verification"
	CheckRiskAssessment      CheckType = "risk_assessment"
	CheckTermsAcceptance     CheckType = "terms_acceptance"
)

// CheckStatus is the outcome of a compliance check.
type CheckStatus string

const (
	CheckPassed  CheckStatus = "passed"
	CheckPending CheckStatus = "pending"
)

// ComplianceCheck is an audit snapshot of a trainer's compliance state.
type ComplianceCheck struct {
	ID        uuid.UUID
	TrainerID uuid.UUID
	Type      CheckType
	Status    CheckStatus
	Details   map[string]any
	CheckedAt time.Time
}

// NewComplianceCheck creates a check stamped now.
func NewComplianceCheck(trainerID uuid.UUID, typ CheckType, status CheckStatus, details map[string]any) *ComplianceCheck {
	if details == nil {
		details = map[string]any{}
	}
	return &ComplianceCheck{
		ID:        uuid.New(),
		TrainerID: trainerID,
		Type:      typ,
		Status:    status,
		Details:   details,
		CheckedAt: time.Now().UTC(),
	}
}

// RiskAssessment records the outcome of a risk recomputation.
func RiskAssessment(trainerID uuid.UUID, in RiskInputs, level RiskLevel, trigger string) *ComplianceCheck {
	status := CheckPending
	if level == RiskLow {
		status = CheckPassed
	}
	return NewComplianceCheck(trainerID, CheckRiskAssessment, status, map[string]any{
		"risk_level": level,
		"inputs":     in,
		"trigger":    trigger,
	})
}

// DetailsJSON encodes the details for storage.
func (c *ComplianceCheck) DetailsJSON() (string, error) {
	return encodeJSON(c.Details)
}
