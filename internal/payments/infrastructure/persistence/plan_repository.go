package persistence

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/coachpay/internal/payments/domain"
	"github.com/felixgeelhaar/coachpay/internal/shared/infrastructure/database"
	"github.com/google/uuid"
)

const planColumns = `id, trainer_id, name, description, price_minor, currency, billing_period, is_active, created_at`

// PlanRepository implements domain.PlanRepository.
type PlanRepository struct {
	store
}

// NewPlanRepository creates a plan repository.
func NewPlanRepository(conn database.Connection) *PlanRepository {
	return &PlanRepository{store{conn: conn}}
}

// Create stores a plan.
func (r *PlanRepository) Create(ctx context.Context, p *domain.Plan) error {
	_, err := r.exec(ctx).Exec(ctx, r.q(`INSERT INTO subscription_plans (`+planColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		p.ID.String(), p.TrainerID.String(), p.Name, p.Description, p.PriceMinor,
		p.Currency, string(p.BillingPeriod), p.IsActive, database.FormatTime(p.CreatedAt))
	return err
}

// FindByID loads a plan.
func (r *PlanRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Plan, error) {
	row := r.exec(ctx).QueryRow(ctx, r.q(`SELECT `+planColumns+` FROM subscription_plans WHERE id = ?`), id.String())
	p, err := scanPlan(row)
	if database.IsNoRows(err) {
		return nil, domain.ErrPlanNotFound
	}
	return p, err
}

// ListForActiveSubscriptions returns one plan per active subscription.
func (r *PlanRepository) ListForActiveSubscriptions(ctx context.Context, trainerID uuid.UUID) ([]domain.Plan, error) {
	rows, err := r.exec(ctx).Query(ctx, r.q(`
		SELECT p.id, p.trainer_id, p.name, p.description, p.price_minor, p.currency,
		       p.billing_period, p.is_active, p.created_at
		FROM subscriptions s
		JOIN subscription_plans p ON p.id = s.plan_id
		WHERE s.trainer_id = ? AND s.status = ?`),
		trainerID.String(), string(domain.SubscriptionActive))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var plans []domain.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, *p)
	}
	return plans, rows.Err()
}

func scanPlan(row database.Row) (*domain.Plan, error) {
	var (
		p                         domain.Plan
		id, trainerID, period, at string
	)
	if err := row.Scan(&id, &trainerID, &p.Name, &p.Description, &p.PriceMinor, &p.Currency, &period, &p.IsActive, &at); err != nil {
		return nil, err
	}
	if err := parseUUIDs([]*uuid.UUID{&p.ID, &p.TrainerID}, id, trainerID); err != nil {
		return nil, fmt.Errorf("plan %s: %w", id, err)
	}
	p.BillingPeriod = domain.BillingPeriod(period)
	var err error
	if p.CreatedAt, err = database.ParseTime(at); err != nil {
		return nil, err
	}
	return &p, nil
}
