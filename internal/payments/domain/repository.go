package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventLedger is the idempotency record of processed events.
type EventLedger interface {
	// Record inserts the event id if absent and reports whether it did.
	// Inside a unit of work the row commits or rolls back with the effects.
	Record(ctx context.Context, eventID string, eventType EventType, at time.Time) (bool, error)
	Seen(ctx context.Context, eventID string) (bool, error)
	// Prune deletes entries processed before the cutoff.
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// TrainerRepository persists trainers. Counter and risk fields are only
// changed through the dedicated methods, each a single atomic statement.
type TrainerRepository interface {
	Create(ctx context.Context, t *Trainer) error
	FindByID(ctx context.Context, id uuid.UUID) (*Trainer, error)
	FindByConnectID(ctx context.Context, accountRef string) (*Trainer, error)
	// FindForUpdate loads the trainer and holds its row lock until the
	// surrounding transaction ends.
	FindForUpdate(ctx context.Context, id uuid.UUID) (*Trainer, error)
	SetConnectAccount(ctx context.Context, id uuid.UUID, accountRef string) error

	// AdjustSubscribers adds delta (+1 or -1) to total_subscribers. It
	// reports false when a decrement found the counter already at zero.
	AdjustSubscribers(ctx context.Context, id uuid.UUID, delta int) (bool, error)
	// RecordDispute increments suspicious_activity_count and disputes_total.
	RecordDispute(ctx context.Context, id uuid.UUID) error
	SetDisputeState(ctx context.Context, id uuid.UUID, active bool, total int) error
	ApplyAccountUpdate(ctx context.Context, id uuid.UUID, u AccountUpdate) error
	SetRiskLevel(ctx context.Context, id uuid.UUID, level RiskLevel) error
	SetLastPayoutAt(ctx context.Context, id uuid.UUID, at time.Time) error
	// AcceptTerms marks terms accepted and reports false if they already were.
	AcceptTerms(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)

	ListWithConnectAccount(ctx context.Context) ([]uuid.UUID, error)
	// ListAtRisk returns medium and high risk trainers, highest first.
	ListAtRisk(ctx context.Context, limit int) ([]*Trainer, error)
}

// SubscriptionRepository persists subscriptions.
type SubscriptionRepository interface {
	// Insert stores s and reports false if its external id already exists.
	Insert(ctx context.Context, s *Subscription) (bool, error)
	FindByExternalID(ctx context.Context, externalID string) (*Subscription, error)
	// CompareAndSetStatus writes status, periods and canceled_at of s only
	// if the stored status still equals from.
	CompareAndSetStatus(ctx context.Context, s *Subscription, from SubscriptionStatus) (bool, error)
	CountActive(ctx context.Context, trainerID uuid.UUID) (int, error)
}

// PlanRepository persists subscription plans.
type PlanRepository interface {
	Create(ctx context.Context, p *Plan) error
	FindByID(ctx context.Context, id uuid.UUID) (*Plan, error)
	// ListForActiveSubscriptions returns the plan of every active
	// subscription of the trainer, once per subscription.
	ListForActiveSubscriptions(ctx context.Context, trainerID uuid.UUID) ([]Plan, error)
}

// ActivityRepository persists the audit log.
type ActivityRepository interface {
	Append(ctx context.Context, e *ActivityEntry) error
	ListRecent(ctx context.Context, trainerID uuid.UUID, limit int) ([]*ActivityEntry, error)
	CountBySeverity(ctx context.Context, trainerID uuid.UUID, severity Severity) (int, error)
	CountByType(ctx context.Context, trainerID uuid.UUID, typ ActivityType) (int, error)
}

// PayoutRepository persists payout outcomes.
type PayoutRepository interface {
	// Append stores p and reports false if the same payout outcome exists.
	Append(ctx context.Context, p *PayoutLog) (bool, error)
	ListRecent(ctx context.Context, trainerID uuid.UUID, limit int) ([]*PayoutLog, error)
	CountByStatus(ctx context.Context, trainerID uuid.UUID, status PayoutStatus) (int, error)
	Count(ctx context.Context, trainerID uuid.UUID) (int, error)
}

// ComplianceRepository persists compliance checks.
type ComplianceRepository interface {
	Record(ctx context.Context, c *ComplianceCheck) error
	ListRecent(ctx context.Context, trainerID uuid.UUID, limit int) ([]*ComplianceCheck, error)
}
