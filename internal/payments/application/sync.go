package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/coachpay/internal/payments/domain"
	sharedApplication "github.com/felixgeelhaar/coachpay/internal/shared/application"
	"github.com/felixgeelhaar/coachpay/pkg/observability"
	"github.com/google/uuid"
)

// DefaultSyncLockTTL bounds how long a crashed sync can block the next one.
const DefaultSyncLockTTL = 30 * time.Second

// triggerAccountSync is the risk trigger recorded for polled updates.
const triggerAccountSync = "account_sync"

// AccountStatus is the result of an account sync.
type AccountStatus struct {
	TrainerID         uuid.UUID                 `json:"trainer_id"`
	Onboarded         bool                      `json:"onboarded"`
	VerificationState domain.VerificationStatus `json:"verification_status,omitempty"`
	CurrentlyDue      []string                  `json:"currently_due,omitempty"`
	PastDue           []string                  `json:"past_due,omitempty"`
	HasActiveDisputes bool                      `json:"has_active_disputes"`
	DisputesCount     int                       `json:"disputes_count"`
	RiskLevel         domain.RiskLevel          `json:"risk_level,omitempty"`
}

// AccountSynchronizer pulls a trainer's connected-account state from the
// processor and converges it with what the event path stored.
type AccountSynchronizer struct {
	uow      sharedApplication.UnitOfWork
	trainers domain.TrainerRepository
	checks   domain.ComplianceRepository
	gateway  domain.PaymentGateway
	risk     *RiskEngine
	locker   Locker
	lockTTL  time.Duration
	logger   *slog.Logger
	metrics  observability.Metrics
}

// NewAccountSynchronizer creates a synchronizer. A zero lockTTL uses
// DefaultSyncLockTTL.
func NewAccountSynchronizer(
	uow sharedApplication.UnitOfWork,
	trainers domain.TrainerRepository,
	checks domain.ComplianceRepository,
	gateway domain.PaymentGateway,
	risk *RiskEngine,
	locker Locker,
	lockTTL time.Duration,
	logger *slog.Logger,
	metrics observability.Metrics,
) *AccountSynchronizer {
	if lockTTL <= 0 {
		lockTTL = DefaultSyncLockTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &AccountSynchronizer{
		uow:      uow,
		trainers: trainers,
		checks:   checks,
		gateway:  gateway,
		risk:     risk,
		locker:   locker,
		lockTTL:  lockTTL,
		logger:   logger,
		metrics:  metrics,
	}
}

// Sync refreshes onboarding, verification and dispute inputs for the trainer
// and recomputes its risk. Only one sync per trainer runs at a time; a
// concurrent call fails with domain.ErrSyncInProgress.
func (s *AccountSynchronizer) Sync(ctx context.Context, trainerID uuid.UUID) (*AccountStatus, error) {
	trainer, err := s.trainers.FindByID(ctx, trainerID)
	if err != nil {
		return nil, err
	}
	if !trainer.HasConnectAccount() {
		return &AccountStatus{TrainerID: trainerID, Onboarded: false}, nil
	}

	release, err := s.locker.Acquire(ctx, "sync:trainer:"+trainerID.String(), s.lockTTL)
	if err != nil {
		if errors.Is(err, ErrLockHeld) {
			s.metrics.Counter(observability.MetricSyncBusy, 1)
			return nil, fmt.Errorf("%w: trainer %s", domain.ErrSyncInProgress, trainerID)
		}
		return nil, domain.Transient("acquire sync lock", err)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.WarnContext(ctx, "failed to release sync lock", "trainer_id", trainerID, "error", err)
		}
	}()

	account, err := observability.TimeOperationResult(ctx, s.logger, s.metrics, "gateway.retrieve_account", func() (*domain.AccountSnapshot, error) {
		return s.gateway.RetrieveAccount(ctx, trainer.StripeConnectID)
	})
	if err != nil {
		s.metrics.Counter(observability.MetricSyncFailed, 1)
		return nil, err
	}
	disputes, err := observability.TimeOperationResult(ctx, s.logger, s.metrics, "gateway.list_disputes", func() ([]domain.DisputeSnapshot, error) {
		return s.gateway.ListDisputes(ctx, trainer.StripeConnectID)
	})
	if err != nil {
		s.metrics.Counter(observability.MetricSyncFailed, 1)
		return nil, err
	}
	summary := domain.SummarizeDisputes(disputes)

	status := &AccountStatus{
		TrainerID:         trainerID,
		Onboarded:         account.Onboarded(),
		VerificationState: account.Verification(),
		CurrentlyDue:      account.CurrentlyDue,
		PastDue:           account.PastDue,
		HasActiveDisputes: summary.Active > 0,
		DisputesCount:     summary.Total,
	}

	err = sharedApplication.WithUnitOfWork(ctx, s.uow, func(txCtx context.Context) error {
		if err := s.trainers.ApplyAccountUpdate(txCtx, trainerID, domain.AccountUpdateFrom(account)); err != nil {
			return lookupError("apply account update", err)
		}
		if err := applyDisputeSummary(txCtx, s.trainers, trainerID, summary); err != nil {
			return err
		}

		level, err := s.risk.Recompute(txCtx, trainerID, triggerAccountSync)
		if err != nil {
			return err
		}
		status.RiskLevel = level

		checkStatus := domain.CheckPending
		if status.Onboarded {
			checkStatus = domain.CheckPassed
		}
		if err := s.checks.Record(txCtx, domain.NewComplianceCheck(trainerID,
			domain.CheckAccountVerification,
			checkStatus,
			map[string]any{
				"details_submitted": account.DetailsSubmitted,
				"charges_enabled":   account.ChargesEnabled,
				"payouts_enabled":   account.PayoutsEnabled,
				"currently_due":     account.CurrentlyDue,
				"past_due":          account.PastDue,
				"disputes_count":    summary.Total,
				"active_disputes":   summary.Active,
				"risk_level":        level,
			},
		)); err != nil {
			return domain.Transient("record verification check", err)
		}
		return nil
	})
	if err != nil {
		s.metrics.Counter(observability.MetricSyncFailed, 1)
		return nil, err
	}

	s.metrics.Counter(observability.MetricSyncCompleted, 1)
	s.logger.InfoContext(ctx, "account synced",
		"trainer_id", trainerID,
		"onboarded", status.Onboarded,
		"risk_level", status.RiskLevel,
	)
	return status, nil
}
