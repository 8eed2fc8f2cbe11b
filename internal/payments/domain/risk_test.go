package domain_test

import (
	"testing"

	"github.com/felixgeelhaar/coachpay/internal/payments/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestScoreRisk(t *testing.T) {
	tests := []struct {
		name string
		in   domain.RiskInputs
		want domain.RiskLevel
	}{
		{name: "clean record", in: domain.RiskInputs{}, want: domain.RiskLow},
		{name: "verified clean record", in: domain.RiskInputs{Verification: domain.VerificationVerified}, want: domain.RiskLow},
		{name: "active dispute wins", in: domain.RiskInputs{ActiveDispute: true}, want: domain.RiskHigh},
		{name: "three suspicious activities", in: domain.RiskInputs{SuspiciousActivity: 3}, want: domain.RiskHigh},
		{name: "one suspicious activity", in: domain.RiskInputs{SuspiciousActivity: 1}, want: domain.RiskMedium},
		{name: "two suspicious activities", in: domain.RiskInputs{SuspiciousActivity: 2}, want: domain.RiskMedium},
		{name: "past due requirements", in: domain.RiskInputs{PastDueRequirements: 2}, want: domain.RiskMedium},
		{name: "more than two historical disputes", in: domain.RiskInputs{DisputesTotal: 3}, want: domain.RiskMedium},
		{name: "two historical disputes alone", in: domain.RiskInputs{DisputesTotal: 2}, want: domain.RiskLow},
		{
			name: "active dispute with everything else clean",
			in:   domain.RiskInputs{Verification: domain.VerificationVerified, ActiveDispute: true},
			want: domain.RiskHigh,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, domain.ScoreRisk(tt.in))
			// Same inputs, same answer.
			assert.Equal(t, domain.ScoreRisk(tt.in), domain.ScoreRisk(tt.in))
		})
	}
}

func TestScoreRisk_DisputesEscalateOnThird(t *testing.T) {
	var in domain.RiskInputs
	var levels []domain.RiskLevel
	for i := 0; i < 3; i++ {
		in.SuspiciousActivity++
		in.DisputesTotal++
		levels = append(levels, domain.ScoreRisk(in))
	}
	assert.Equal(t, []domain.RiskLevel{domain.RiskMedium, domain.RiskMedium, domain.RiskHigh}, levels)
}

func TestRiskAssessment_Status(t *testing.T) {
	trainer := domain.NewTrainer(uuid.New(), "Sam")

	low := domain.RiskAssessment(trainer.ID, trainer.RiskInputs(), domain.RiskLow, "test")
	assert.Equal(t, domain.CheckPassed, low.Status)
	assert.Equal(t, domain.CheckRiskAssessment, low.Type)

	high := domain.RiskAssessment(trainer.ID, trainer.RiskInputs(), domain.RiskHigh, "test")
	assert.Equal(t, domain.CheckPending, high.Status)
	assert.Equal(t, domain.RiskHigh, high.Details["risk_level"])
}
