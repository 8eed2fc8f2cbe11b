package domain

// RiskLevel classifies a trainer for compliance review.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Rank orders levels by severity.
func (l RiskLevel) Rank() int {
	switch l {
	case RiskHigh:
		return 2
	case RiskMedium:
		return 1
	default:
		return 0
	}
}

// RiskInputs are the trainer fields the risk policy reads. Verification is
// part of the snapshot recorded with each assessment.
type RiskInputs struct {
	Verification        VerificationStatus `json:"verification_status"`
	ActiveDispute       bool               `json:"active_dispute"`
	PastDueRequirements int                `json:"past_due_requirements"`
	SuspiciousActivity  int                `json:"suspicious_activity_count"`
	DisputesTotal       int                `json:"disputes_total"`
}

// ScoreRisk classifies a trainer. The first matching rule wins:
//  1. a dispute awaiting response or under review: high
//  2. more than two suspicious activities: high
//  3. past-due requirements, more than two disputes, or any suspicious activity: medium
//  4. otherwise: low
func ScoreRisk(in RiskInputs) RiskLevel {
	switch {
	case in.ActiveDispute:
		return RiskHigh
	case in.SuspiciousActivity > 2:
		return RiskHigh
	case in.PastDueRequirements > 0,
		in.DisputesTotal > 2,
		in.SuspiciousActivity >= 1:
		return RiskMedium
	default:
		return RiskLow
	}
}
