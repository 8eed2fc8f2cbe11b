package application

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/coachpay/internal/payments/domain"
	"github.com/felixgeelhaar/coachpay/internal/shared/infrastructure/convert"
	"github.com/google/uuid"
)

// Page sizes of the compliance summary.
const (
	summaryChecks   = 20
	summaryActivity = 50
	summaryPayouts  = 20

	// DefaultRiskAccountsLimit is used when no limit is requested.
	DefaultRiskAccountsLimit = 10
)

// TrainerRiskDTO is the risk part of a trainer record.
type TrainerRiskDTO struct {
	ID                      uuid.UUID  `json:"id"`
	DisplayName             string     `json:"display_name"`
	StripeConnectID         string     `json:"stripe_connect_id,omitempty"`
	StripeOnboarded         bool       `json:"stripe_onboarded"`
	VerificationStatus      string     `json:"verification_status"`
	RiskLevel               string     `json:"risk_level"`
	SuspiciousActivityCount int        `json:"suspicious_activity_count"`
	DisputesTotal           int        `json:"disputes_total"`
	ActiveDispute           bool       `json:"active_dispute"`
	PastDueRequirements     int        `json:"past_due_requirements"`
	TotalSubscribers        int        `json:"total_subscribers"`
	TermsAccepted           bool       `json:"terms_accepted"`
	TermsAcceptedAt         *time.Time `json:"terms_accepted_at,omitempty"`
	LastPayoutAt            *time.Time `json:"last_payout_at,omitempty"`
}

// ComplianceCheckDTO is a compliance check as served to readers.
type ComplianceCheckDTO struct {
	ID        uuid.UUID      `json:"id"`
	CheckType string         `json:"check_type"`
	Status    string         `json:"status"`
	Details   map[string]any `json:"details"`
	CheckedAt time.Time      `json:"checked_at"`
}

// ActivityDTO is an activity log entry as served to readers.
type ActivityDTO struct {
	ID           uuid.UUID      `json:"id"`
	ActivityType string         `json:"activity_type"`
	Severity     string         `json:"severity"`
	Description  string         `json:"description"`
	Metadata     map[string]any `json:"metadata"`
	CreatedAt    time.Time      `json:"created_at"`
}

// PayoutDTO is a payout outcome as served to readers.
type PayoutDTO struct {
	ID             uuid.UUID      `json:"id"`
	StripePayoutID string         `json:"stripe_payout_id"`
	Amount         float64        `json:"amount"`
	Currency       string         `json:"currency"`
	Status         string         `json:"status"`
	Metadata       map[string]any `json:"metadata"`
	CreatedAt      time.Time      `json:"created_at"`
}

// ComplianceMetrics aggregates a trainer's audit trail.
type ComplianceMetrics struct {
	HighSeverityCount  int `json:"high_severity_count"`
	FailedPayoutsCount int `json:"failed_payouts_count"`
	TotalPayouts       int `json:"total_payouts"`
}

// ComplianceSummaryDTO is the compliance dashboard of one trainer.
type ComplianceSummaryDTO struct {
	Trainer          TrainerRiskDTO       `json:"trainer"`
	ComplianceChecks []ComplianceCheckDTO `json:"compliance_checks"`
	ActivityLogs     []ActivityDTO        `json:"activity_logs"`
	PayoutLogs       []PayoutDTO          `json:"payout_logs"`
	Metrics          ComplianceMetrics    `json:"metrics"`
}

// RiskAccountDTO is one row of the at-risk accounts list.
type RiskAccountDTO struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	RiskLevel string    `json:"risk_level"`
	Issues    string    `json:"issues"`
}

// ComplianceQueries serves read-only views over the reconciled state.
type ComplianceQueries struct {
	trainers domain.TrainerRepository
	plans    domain.PlanRepository
	activity domain.ActivityRepository
	payouts  domain.PayoutRepository
	checks   domain.ComplianceRepository
}

// NewComplianceQueries creates the query service.
func NewComplianceQueries(
	trainers domain.TrainerRepository,
	plans domain.PlanRepository,
	activity domain.ActivityRepository,
	payouts domain.PayoutRepository,
	checks domain.ComplianceRepository,
) *ComplianceQueries {
	return &ComplianceQueries{
		trainers: trainers,
		plans:    plans,
		activity: activity,
		payouts:  payouts,
		checks:   checks,
	}
}

// ComplianceSummary returns the trainer's risk fields with its latest checks,
// activity and payouts.
func (q *ComplianceQueries) ComplianceSummary(ctx context.Context, trainerID uuid.UUID) (*ComplianceSummaryDTO, error) {
	trainer, err := q.trainers.FindByID(ctx, trainerID)
	if err != nil {
		return nil, err
	}

	checks, err := q.checks.ListRecent(ctx, trainerID, summaryChecks)
	if err != nil {
		return nil, fmt.Errorf("failed to list compliance checks: %w", err)
	}
	activity, err := q.activity.ListRecent(ctx, trainerID, summaryActivity)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	payouts, err := q.payouts.ListRecent(ctx, trainerID, summaryPayouts)
	if err != nil {
		return nil, fmt.Errorf("failed to list payouts: %w", err)
	}

	var metrics ComplianceMetrics
	if metrics.HighSeverityCount, err = q.activity.CountBySeverity(ctx, trainerID, domain.SeverityHigh); err != nil {
		return nil, fmt.Errorf("failed to count activity: %w", err)
	}
	if metrics.FailedPayoutsCount, err = q.payouts.CountByStatus(ctx, trainerID, domain.PayoutFailed); err != nil {
		return nil, fmt.Errorf("failed to count payouts: %w", err)
	}
	if metrics.TotalPayouts, err = q.payouts.Count(ctx, trainerID); err != nil {
		return nil, fmt.Errorf("failed to count payouts: %w", err)
	}

	summary := &ComplianceSummaryDTO{
		Trainer:          toTrainerRiskDTO(trainer),
		ComplianceChecks: make([]ComplianceCheckDTO, 0, len(checks)),
		ActivityLogs:     make([]ActivityDTO, 0, len(activity)),
		PayoutLogs:       make([]PayoutDTO, 0, len(payouts)),
		Metrics:          metrics,
	}
	for _, c := range checks {
		summary.ComplianceChecks = append(summary.ComplianceChecks, ComplianceCheckDTO{
			ID:        c.ID,
			CheckType: string(c.Type),
			Status:    string(c.Status),
			Details:   c.Details,
			CheckedAt: c.CheckedAt,
		})
	}
	for _, a := range activity {
		summary.ActivityLogs = append(summary.ActivityLogs, ActivityDTO{
			ID:           a.ID,
			ActivityType: string(a.Type),
			Severity:     string(a.Severity),
			Description:  a.Description,
			Metadata:     a.Metadata,
			CreatedAt:    a.CreatedAt,
		})
	}
	for _, p := range payouts {
		summary.PayoutLogs = append(summary.PayoutLogs, PayoutDTO{
			ID:             p.ID,
			StripePayoutID: p.StripePayoutID,
			Amount:         convert.MinorToMajor(p.AmountMinor),
			Currency:       p.Currency,
			Status:         string(p.Status),
			Metadata:       p.Metadata,
			CreatedAt:      p.CreatedAt,
		})
	}
	return summary, nil
}

// RiskAccounts lists medium and high risk trainers, most severe first.
func (q *ComplianceQueries) RiskAccounts(ctx context.Context, limit int) ([]RiskAccountDTO, error) {
	if limit <= 0 {
		limit = DefaultRiskAccountsLimit
	}
	trainers, err := q.trainers.ListAtRisk(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list risk accounts: %w", err)
	}

	accounts := make([]RiskAccountDTO, 0, len(trainers))
	for _, t := range trainers {
		failed, err := q.payouts.CountByStatus(ctx, t.ID, domain.PayoutFailed)
		if err != nil {
			return nil, fmt.Errorf("failed to count payouts: %w", err)
		}
		accounts = append(accounts, RiskAccountDTO{
			ID:        t.ID,
			Name:      t.DisplayName,
			RiskLevel: string(t.RiskLevel),
			Issues:    fmt.Sprintf("%d failed payouts, %d disputes", failed, t.DisputesTotal),
		})
	}
	return accounts, nil
}

// TrainerRevenue computes monthly recurring revenue over the trainer's
// active subscriptions.
func (q *ComplianceQueries) TrainerRevenue(ctx context.Context, trainerID uuid.UUID) (domain.Revenue, error) {
	if _, err := q.trainers.FindByID(ctx, trainerID); err != nil {
		return domain.Revenue{}, err
	}
	plans, err := q.plans.ListForActiveSubscriptions(ctx, trainerID)
	if err != nil {
		return domain.Revenue{}, fmt.Errorf("failed to list active plans: %w", err)
	}
	return domain.ComputeRevenue(plans), nil
}

func toTrainerRiskDTO(t *domain.Trainer) TrainerRiskDTO {
	return TrainerRiskDTO{
		ID:                      t.ID,
		DisplayName:             t.DisplayName,
		StripeConnectID:         t.StripeConnectID,
		StripeOnboarded:         t.StripeOnboarded,
		VerificationStatus:      string(t.VerificationStatus),
		RiskLevel:               string(t.RiskLevel),
		SuspiciousActivityCount: t.SuspiciousActivityCount,
		DisputesTotal:           t.DisputesTotal,
		ActiveDispute:           t.ActiveDispute,
		PastDueRequirements:     t.PastDueRequirements,
		TotalSubscribers:        t.TotalSubscribers,
		TermsAccepted:           t.TermsAccepted,
		TermsAcceptedAt:         t.TermsAcceptedAt,
		LastPayoutAt:            t.LastPayoutAt,
	}
}
