package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/coachpay/internal/payments/domain"
	sharedApplication "github.com/felixgeelhaar/coachpay/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/coachpay/internal/shared/domain"
)

// AuditLog writes activity entries and fans them out through the outbox.
type AuditLog struct {
	activity  domain.ActivityRepository
	publisher EventPublisher
	logger    *slog.Logger
}

// NewAuditLog creates an audit log writer.
func NewAuditLog(activity domain.ActivityRepository, publisher EventPublisher, logger *slog.Logger) *AuditLog {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLog{activity: activity, publisher: publisher, logger: logger}
}

// Record appends the entry and its ActivityRecorded event.
func (a *AuditLog) Record(ctx context.Context, entry *domain.ActivityEntry) error {
	if err := a.activity.Append(ctx, entry); err != nil {
		return domain.Transient("append activity", err)
	}
	if err := a.publish(ctx, domain.NewActivityRecorded(entry)); err != nil {
		return err
	}

	a.logger.DebugContext(ctx, "activity recorded",
		"trainer_id", entry.TrainerID,
		"activity_type", entry.Type,
		"severity", entry.Severity,
	)
	return nil
}

func (a *AuditLog) publish(ctx context.Context, events ...sharedDomain.DomainEvent) error {
	if a.publisher == nil {
		return nil
	}
	sharedApplication.StampCausation(ctx, events...)
	if err := a.publisher.Append(ctx, events...); err != nil {
		return domain.Transient(fmt.Sprintf("publish %d events", len(events)), err)
	}
	return nil
}
