package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/coachpay/internal/payments/domain"
	sharedApplication "github.com/felixgeelhaar/coachpay/internal/shared/application"
	"github.com/google/uuid"
)

// TermsService records trainers accepting the marketplace terms.
type TermsService struct {
	uow      sharedApplication.UnitOfWork
	trainers domain.TrainerRepository
	checks   domain.ComplianceRepository
	logger   *slog.Logger
}

// NewTermsService creates a terms service.
func NewTermsService(uow sharedApplication.UnitOfWork, trainers domain.TrainerRepository, checks domain.ComplianceRepository, logger *slog.Logger) *TermsService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TermsService{uow: uow, trainers: trainers, checks: checks, logger: logger}
}

// AcceptTerms marks the terms accepted. Accepting again keeps the first
// acceptance time and records nothing.
func (s *TermsService) AcceptTerms(ctx context.Context, trainerID uuid.UUID) error {
	now := time.Now().UTC()
	return sharedApplication.WithUnitOfWork(ctx, s.uow, func(txCtx context.Context) error {
		accepted, err := s.trainers.AcceptTerms(txCtx, trainerID, now)
		if err != nil {
			return err
		}
		if !accepted {
			return nil
		}

		s.logger.InfoContext(txCtx, "terms accepted", "trainer_id", trainerID)
		return s.checks.Record(txCtx, domain.NewComplianceCheck(trainerID,
			domain.CheckTermsAcceptance,
			domain.CheckPassed,
			map[string]any{"accepted_at": now.Format(time.RFC3339)},
		))
	})
}
