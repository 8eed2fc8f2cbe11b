package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/coachpay/internal/payments/domain"
)

// SweepReport summarises one compliance sweep.
type SweepReport struct {
	Synced  int
	Skipped int
	Failed  int
}

// ComplianceSweep re-syncs every trainer with a connected account so polled
// state catches anything the pushed events missed.
type ComplianceSweep struct {
	trainers domain.TrainerRepository
	sync     *AccountSynchronizer
	logger   *slog.Logger
}

// NewComplianceSweep creates a sweep over the synchronizer.
func NewComplianceSweep(trainers domain.TrainerRepository, sync *AccountSynchronizer, logger *slog.Logger) *ComplianceSweep {
	if logger == nil {
		logger = slog.Default()
	}
	return &ComplianceSweep{trainers: trainers, sync: sync, logger: logger}
}

// Run syncs all trainers. A failing trainer does not stop the sweep; trainers
// already being synced elsewhere are skipped.
func (s *ComplianceSweep) Run(ctx context.Context) (SweepReport, error) {
	var report SweepReport

	ids, err := s.trainers.ListWithConnectAccount(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list trainers: %w", err)
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		_, err := s.sync.Sync(ctx, id)
		switch {
		case err == nil:
			report.Synced++
		case errors.Is(err, domain.ErrSyncInProgress):
			report.Skipped++
		default:
			report.Failed++
			s.logger.WarnContext(ctx, "compliance sweep: sync failed", "trainer_id", id, "error", err)
		}
	}

	s.logger.InfoContext(ctx, "compliance sweep finished",
		"synced", report.Synced,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)
	return report, nil
}
