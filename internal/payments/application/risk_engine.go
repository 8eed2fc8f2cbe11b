package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/coachpay/internal/payments/domain"
	"github.com/google/uuid"
)

// RiskEngine is the only writer of trainers' risk_level.
type RiskEngine struct {
	trainers domain.TrainerRepository
	checks   domain.ComplianceRepository
	audit    *AuditLog
	logger   *slog.Logger
}

// NewRiskEngine creates a risk engine.
func NewRiskEngine(trainers domain.TrainerRepository, checks domain.ComplianceRepository, audit *AuditLog, logger *slog.Logger) *RiskEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &RiskEngine{trainers: trainers, checks: checks, audit: audit, logger: logger}
}

// Recompute scores the trainer from its stored inputs and records the
// assessment. It must run inside the unit of work that changed the inputs;
// the trainer row stays locked until that transaction ends.
func (e *RiskEngine) Recompute(ctx context.Context, trainerID uuid.UUID, trigger string) (domain.RiskLevel, error) {
	trainer, err := e.trainers.FindForUpdate(ctx, trainerID)
	if err != nil {
		if domain.Absorbed(err) {
			return "", err
		}
		return "", domain.Transient("load trainer for risk", err)
	}

	inputs := trainer.RiskInputs()
	level := domain.ScoreRisk(inputs)

	if level != trainer.RiskLevel {
		if err := e.trainers.SetRiskLevel(ctx, trainerID, level); err != nil {
			return "", domain.Transient("set risk level", err)
		}
		if err := e.audit.Record(ctx, domain.NewActivityEntry(trainerID,
			domain.ActivityRiskLevelChanged,
			changeSeverity(level),
			fmt.Sprintf("Risk level changed from %s to %s", trainer.RiskLevel, level),
			map[string]any{"from": trainer.RiskLevel, "to": level, "trigger": trigger},
		)); err != nil {
			return "", err
		}
		if err := e.audit.publish(ctx, domain.NewRiskLevelChanged(trainerID, trainer.RiskLevel, level, inputs, trigger)); err != nil {
			return "", err
		}
		e.logger.InfoContext(ctx, "trainer risk level changed",
			"trainer_id", trainerID,
			"from", trainer.RiskLevel,
			"to", level,
			"trigger", trigger,
		)
	}

	if err := e.checks.Record(ctx, domain.RiskAssessment(trainerID, inputs, level, trigger)); err != nil {
		return "", domain.Transient("record risk assessment", err)
	}
	return level, nil
}

func changeSeverity(level domain.RiskLevel) domain.Severity {
	switch level {
	case domain.RiskHigh:
		return domain.SeverityHigh
	case domain.RiskMedium:
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}
