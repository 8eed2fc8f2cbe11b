package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/felixgeelhaar/coachpay/internal/payments/domain"
	"github.com/felixgeelhaar/coachpay/internal/shared/infrastructure/database"
	"github.com/google/uuid"
)

const trainerColumns = `id, user_id, display_name, stripe_connect_id, stripe_onboarded,
	verification_status, risk_level, suspicious_activity_count, total_subscribers,
	disputes_total, active_dispute, past_due_requirements, terms_accepted,
	terms_accepted_at, last_payout_at, created_at, updated_at`

// TrainerRepository implements domain.TrainerRepository.
type TrainerRepository struct {
	store
}

// NewTrainerRepository creates a trainer repository.
func NewTrainerRepository(conn database.Connection) *TrainerRepository {
	return &TrainerRepository{store{conn: conn}}
}

// Create stores a new trainer.
func (r *TrainerRepository) Create(ctx context.Context, t *domain.Trainer) error {
	_, err := r.exec(ctx).Exec(ctx, r.q(`
		INSERT INTO trainers (`+trainerColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		t.ID.String(),
		t.UserID.String(),
		t.DisplayName,
		nullableString(t.StripeConnectID),
		t.StripeOnboarded,
		string(t.VerificationStatus),
		string(t.RiskLevel),
		t.SuspiciousActivityCount,
		t.TotalSubscribers,
		t.DisputesTotal,
		t.ActiveDispute,
		t.PastDueRequirements,
		t.TermsAccepted,
		database.FormatNullableTime(t.TermsAcceptedAt),
		database.FormatNullableTime(t.LastPayoutAt),
		database.FormatTime(t.CreatedAt),
		database.FormatTime(t.UpdatedAt),
	)
	return err
}

// FindByID loads a trainer.
func (r *TrainerRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Trainer, error) {
	row := r.exec(ctx).QueryRow(ctx, r.q(`SELECT `+trainerColumns+` FROM trainers WHERE id = ?`), id.String())
	return scanTrainer(row)
}

// FindByConnectID loads the trainer owning a connected account.
func (r *TrainerRepository) FindByConnectID(ctx context.Context, accountRef string) (*domain.Trainer, error) {
	if accountRef == "" {
		return nil, domain.ErrTrainerNotFound
	}
	row := r.exec(ctx).QueryRow(ctx, r.q(`SELECT `+trainerColumns+` FROM trainers WHERE stripe_connect_id = ?`), accountRef)
	return scanTrainer(row)
}

// FindForUpdate loads a trainer and locks its row on drivers that support it.
func (r *TrainerRepository) FindForUpdate(ctx context.Context, id uuid.UUID) (*domain.Trainer, error) {
	query := `SELECT ` + trainerColumns + ` FROM trainers WHERE id = ?` + database.ForUpdate(r.conn.Driver())
	return scanTrainer(r.exec(ctx).QueryRow(ctx, r.q(query), id.String()))
}

// SetConnectAccount links a connected account to the trainer.
func (r *TrainerRepository) SetConnectAccount(ctx context.Context, id uuid.UUID, accountRef string) error {
	return r.update(ctx, `UPDATE trainers SET stripe_connect_id = ?, updated_at = ? WHERE id = ?`,
		nullableString(accountRef), now(), id.String())
}

// AdjustSubscribers applies +1 or -1 in a single statement. The decrement is
// guarded so the counter never goes below zero.
func (r *TrainerRepository) AdjustSubscribers(ctx context.Context, id uuid.UUID, delta int) (bool, error) {
	var query string
	switch {
	case delta > 0:
		query = `UPDATE trainers SET total_subscribers = total_subscribers + 1, updated_at = ? WHERE id = ?`
	case delta < 0:
		query = `UPDATE trainers SET total_subscribers = total_subscribers - 1, updated_at = ? WHERE id = ? AND total_subscribers > 0`
	default:
		return true, nil
	}

	res, err := r.exec(ctx).Exec(ctx, r.q(query), now(), id.String())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}
	if err := r.mustExist(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

// RecordDispute counts one more dispute and suspicious activity.
func (r *TrainerRepository) RecordDispute(ctx context.Context, id uuid.UUID) error {
	return r.update(ctx, `
		UPDATE trainers
		SET suspicious_activity_count = suspicious_activity_count + 1,
		    disputes_total = disputes_total + 1,
		    updated_at = ?
		WHERE id = ?`, now(), id.String())
}

// SetDisputeState stores the dispute picture reported by the processor.
func (r *TrainerRepository) SetDisputeState(ctx context.Context, id uuid.UUID, active bool, total int) error {
	return r.update(ctx, `UPDATE trainers SET active_dispute = ?, disputes_total = ?, updated_at = ? WHERE id = ?`,
		active, total, now(), id.String())
}

// ApplyAccountUpdate stores processor account state.
func (r *TrainerRepository) ApplyAccountUpdate(ctx context.Context, id uuid.UUID, u domain.AccountUpdate) error {
	return r.update(ctx, `
		UPDATE trainers
		SET stripe_onboarded = ?, verification_status = ?, past_due_requirements = ?, updated_at = ?
		WHERE id = ?`,
		u.Onboarded, string(u.Verification), u.PastDueRequirements, now(), id.String())
}

// SetRiskLevel writes the classification computed by the risk engine.
func (r *TrainerRepository) SetRiskLevel(ctx context.Context, id uuid.UUID, level domain.RiskLevel) error {
	return r.update(ctx, `UPDATE trainers SET risk_level = ?, updated_at = ? WHERE id = ?`,
		string(level), now(), id.String())
}

// SetLastPayoutAt records the time of the latest paid payout.
func (r *TrainerRepository) SetLastPayoutAt(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.update(ctx, `UPDATE trainers SET last_payout_at = ?, updated_at = ? WHERE id = ?`,
		database.FormatTime(at), now(), id.String())
}

// AcceptTerms marks the terms accepted unless they already were.
func (r *TrainerRepository) AcceptTerms(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res, err := r.exec(ctx).Exec(ctx, r.q(`
		UPDATE trainers SET terms_accepted = ?, terms_accepted_at = ?, updated_at = ?
		WHERE id = ? AND terms_accepted = ?`),
		true, database.FormatTime(at), now(), id.String(), false)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}
	return false, r.mustExist(ctx, id)
}

// ListWithConnectAccount returns the ids of trainers that started onboarding.
func (r *TrainerRepository) ListWithConnectAccount(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.exec(ctx).Query(ctx, `SELECT id FROM trainers WHERE stripe_connect_id IS NOT NULL ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListAtRisk returns medium and high risk trainers, high first.
func (r *TrainerRepository) ListAtRisk(ctx context.Context, limit int) ([]*domain.Trainer, error) {
	rows, err := r.exec(ctx).Query(ctx, r.q(`
		SELECT `+trainerColumns+`
		FROM trainers
		WHERE risk_level IN ('medium', 'high')
		ORDER BY CASE risk_level WHEN 'high' THEN 0 ELSE 1 END,
		         suspicious_activity_count DESC,
		         updated_at DESC
		LIMIT ?`), limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var trainers []*domain.Trainer
	for rows.Next() {
		t, err := scanTrainer(rows)
		if err != nil {
			return nil, err
		}
		trainers = append(trainers, t)
	}
	return trainers, rows.Err()
}

func (r *TrainerRepository) update(ctx context.Context, query string, args ...any) error {
	res, err := r.exec(ctx).Exec(ctx, r.q(query), args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrTrainerNotFound
	}
	return nil
}

func (r *TrainerRepository) mustExist(ctx context.Context, id uuid.UUID) error {
	var one int
	err := r.exec(ctx).QueryRow(ctx, r.q(`SELECT 1 FROM trainers WHERE id = ?`), id.String()).Scan(&one)
	if database.IsNoRows(err) {
		return domain.ErrTrainerNotFound
	}
	return err
}

func scanTrainer(row database.Row) (*domain.Trainer, error) {
	var (
		t                                domain.Trainer
		id, userID, createdAt, updatedAt string
		verification, risk               string
		connectID, termsAt, lastPayoutAt sql.NullString
	)
	err := row.Scan(
		&id, &userID, &t.DisplayName, &connectID, &t.StripeOnboarded,
		&verification, &risk, &t.SuspiciousActivityCount, &t.TotalSubscribers,
		&t.DisputesTotal, &t.ActiveDispute, &t.PastDueRequirements, &t.TermsAccepted,
		&termsAt, &lastPayoutAt, &createdAt, &updatedAt,
	)
	if database.IsNoRows(err) {
		return nil, domain.ErrTrainerNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := parseUUIDs([]*uuid.UUID{&t.ID, &t.UserID}, id, userID); err != nil {
		return nil, fmt.Errorf("trainer %s: %w", id, err)
	}
	t.StripeConnectID = connectID.String
	t.VerificationStatus = domain.VerificationStatus(verification)
	t.RiskLevel = domain.RiskLevel(risk)
	if t.TermsAcceptedAt, err = database.ParseNullableTime(ptrString(termsAt)); err != nil {
		return nil, err
	}
	if t.LastPayoutAt, err = database.ParseNullableTime(ptrString(lastPayoutAt)); err != nil {
		return nil, err
	}
	if t.CreatedAt, err = database.ParseTime(createdAt); err != nil {
		return nil, err
	}
	if t.UpdatedAt, err = database.ParseTime(updatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}
