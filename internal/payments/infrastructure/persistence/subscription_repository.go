package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/felixgeelhaar/coachpay/internal/payments/domain"
	"github.com/felixgeelhaar/coachpay/internal/shared/infrastructure/database"
	"github.com/google/uuid"
)

const subscriptionColumns = `id, client_id, trainer_id, plan_id, stripe_subscription_id, status,
	current_period_start, current_period_end, canceled_at, created_at, updated_at`

// SubscriptionRepository implements domain.SubscriptionRepository.
type SubscriptionRepository struct {
	store
}

// NewSubscriptionRepository creates a subscription repository.
func NewSubscriptionRepository(conn database.Connection) *SubscriptionRepository {
	return &SubscriptionRepository{store{conn: conn}}
}

// Insert stores s unless its external id is already known.
func (r *SubscriptionRepository) Insert(ctx context.Context, s *domain.Subscription) (bool, error) {
	res, err := r.exec(ctx).Exec(ctx, r.q(`
		INSERT INTO subscriptions (`+subscriptionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (stripe_subscription_id) DO NOTHING`),
		s.ID.String(),
		s.ClientID.String(),
		s.TrainerID.String(),
		s.PlanID.String(),
		s.StripeSubscriptionID,
		string(s.Status),
		database.FormatNullableTime(s.CurrentPeriodStart),
		database.FormatNullableTime(s.CurrentPeriodEnd),
		database.FormatNullableTime(s.CanceledAt),
		database.FormatTime(s.CreatedAt),
		database.FormatTime(s.UpdatedAt),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// FindByExternalID loads a subscription by its processor id.
func (r *SubscriptionRepository) FindByExternalID(ctx context.Context, externalID string) (*domain.Subscription, error) {
	row := r.exec(ctx).QueryRow(ctx, r.q(`SELECT `+subscriptionColumns+` FROM subscriptions WHERE stripe_subscription_id = ?`), externalID)
	return scanSubscription(row)
}

// CompareAndSetStatus writes the lifecycle fields of s if the stored status
// is still from.
func (r *SubscriptionRepository) CompareAndSetStatus(ctx context.Context, s *domain.Subscription, from domain.SubscriptionStatus) (bool, error) {
	res, err := r.exec(ctx).Exec(ctx, r.q(`
		UPDATE subscriptions
		SET status = ?, current_period_start = ?, current_period_end = ?, canceled_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`),
		string(s.Status),
		database.FormatNullableTime(s.CurrentPeriodStart),
		database.FormatNullableTime(s.CurrentPeriodEnd),
		database.FormatNullableTime(s.CanceledAt),
		database.FormatTime(s.UpdatedAt),
		s.ID.String(),
		string(from),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// CountActive counts the trainer's active subscriptions.
func (r *SubscriptionRepository) CountActive(ctx context.Context, trainerID uuid.UUID) (int, error) {
	var n int
	err := r.exec(ctx).QueryRow(ctx, r.q(`SELECT COUNT(*) FROM subscriptions WHERE trainer_id = ? AND status = ?`),
		trainerID.String(), string(domain.SubscriptionActive)).Scan(&n)
	return n, err
}

func scanSubscription(row database.Row) (*domain.Subscription, error) {
	var (
		s                                       domain.Subscription
		id, clientID, trainerID, planID, status string
		createdAt, updatedAt                    string
		periodStart, periodEnd, canceledAt      sql.NullString
	)
	err := row.Scan(
		&id, &clientID, &trainerID, &planID, &s.StripeSubscriptionID, &status,
		&periodStart, &periodEnd, &canceledAt, &createdAt, &updatedAt,
	)
	if database.IsNoRows(err) {
		return nil, domain.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := parseUUIDs([]*uuid.UUID{&s.ID, &s.ClientID, &s.TrainerID, &s.PlanID}, id, clientID, trainerID, planID); err != nil {
		return nil, fmt.Errorf("subscription %s: %w", id, err)
	}
	s.Status = domain.SubscriptionStatus(status)
	if s.CurrentPeriodStart, err = database.ParseNullableTime(ptrString(periodStart)); err != nil {
		return nil, err
	}
	if s.CurrentPeriodEnd, err = database.ParseNullableTime(ptrString(periodEnd)); err != nil {
		return nil, err
	}
	if s.CanceledAt, err = database.ParseNullableTime(ptrString(canceledAt)); err != nil {
		return nil, err
	}
	if s.CreatedAt, err = database.ParseTime(createdAt); err != nil {
		return nil, err
	}
	if s.UpdatedAt, err = database.ParseTime(updatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}
