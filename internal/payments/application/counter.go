package application

import (
	"context"
	"log/slog"

	"github.com/felixgeelhaar/coachpay/internal/payments/domain"
	"github.com/google/uuid"
)

// SubscriberCounter maintains trainers' total_subscribers with single atomic
// statements.
type SubscriberCounter struct {
	trainers domain.TrainerRepository
	audit    *AuditLog
	logger   *slog.Logger
}

// NewSubscriberCounter creates a subscriber counter.
func NewSubscriberCounter(trainers domain.TrainerRepository, audit *AuditLog, logger *slog.Logger) *SubscriberCounter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubscriberCounter{trainers: trainers, audit: audit, logger: logger}
}

// Increment adds one subscriber.
func (c *SubscriberCounter) Increment(ctx context.Context, trainerID uuid.UUID) error {
	return c.Adjust(ctx, trainerID, 1)
}

// Decrement removes one subscriber. A counter already at zero stays there
// and an anomaly is written to the audit log.
func (c *SubscriberCounter) Decrement(ctx context.Context, trainerID uuid.UUID) error {
	return c.Adjust(ctx, trainerID, -1)
}

// Adjust applies a transition's counter delta.
func (c *SubscriberCounter) Adjust(ctx context.Context, trainerID uuid.UUID, delta int) error {
	if delta == 0 {
		return nil
	}

	applied, err := c.trainers.AdjustSubscribers(ctx, trainerID, delta)
	if err != nil {
		if domain.Absorbed(err) {
			return err
		}
		return domain.Transient("adjust subscribers", err)
	}
	if applied {
		return nil
	}

	c.logger.WarnContext(ctx, "subscriber count would go negative, clamped at zero",
		"trainer_id", trainerID,
		"delta", delta,
	)
	return c.audit.Record(ctx, domain.NewActivityEntry(trainerID,
		domain.ActivitySubscriberCountAnomaly,
		domain.SeverityMedium,
		"Subscriber count decrement attempted at zero",
		map[string]any{"delta": delta},
	))
}
