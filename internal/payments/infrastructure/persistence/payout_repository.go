package persistence

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/coachpay/internal/payments/domain"
	"github.com/felixgeelhaar/coachpay/internal/shared/infrastructure/convert"
	"github.com/felixgeelhaar/coachpay/internal/shared/infrastructure/database"
	"github.com/google/uuid"
)

// PayoutRepository implements domain.PayoutRepository.
type PayoutRepository struct {
	store
}

// NewPayoutRepository creates a payout repository.
func NewPayoutRepository(conn database.Connection) *PayoutRepository {
	return &PayoutRepository{store{conn: conn}}
}

// Append inserts a payout outcome. The same payout id and status is stored
// once.
func (r *PayoutRepository) Append(ctx context.Context, p *domain.PayoutLog) (bool, error) {
	metadata, err := p.MetadataJSON()
	if err != nil {
		return false, fmt.Errorf("encode payout metadata: %w", err)
	}
	res, err := r.exec(ctx).Exec(ctx, r.q(`
		INSERT INTO payout_logs (id, trainer_id, stripe_payout_id, amount_minor, amount, currency, status, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (stripe_payout_id, status) DO NOTHING`),
		p.ID.String(), p.TrainerID.String(), p.StripePayoutID, p.AmountMinor,
		convert.MinorToMajor(p.AmountMinor), p.Currency, string(p.Status), metadata,
		database.FormatTime(p.CreatedAt))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ListRecent returns the newest payouts first.
func (r *PayoutRepository) ListRecent(ctx context.Context, trainerID uuid.UUID, limit int) ([]*domain.PayoutLog, error) {
	rows, err := r.exec(ctx).Query(ctx, r.q(`
		SELECT id, trainer_id, stripe_payout_id, amount_minor, currency, status, metadata, created_at
		FROM payout_logs
		WHERE trainer_id = ?
		ORDER BY created_at DESC
		LIMIT ?`), trainerID.String(), limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var payouts []*domain.PayoutLog
	for rows.Next() {
		var (
			p                                  domain.PayoutLog
			id, tid, status, metadata, created string
		)
		if err := rows.Scan(&id, &tid, &p.StripePayoutID, &p.AmountMinor, &p.Currency, &status, &metadata, &created); err != nil {
			return nil, err
		}
		if err := parseUUIDs([]*uuid.UUID{&p.ID, &p.TrainerID}, id, tid); err != nil {
			return nil, err
		}
		p.Status = domain.PayoutStatus(status)
		if p.Metadata, err = decodeMap("payout_logs.metadata", metadata); err != nil {
			return nil, err
		}
		if p.CreatedAt, err = database.ParseTime(created); err != nil {
			return nil, err
		}
		payouts = append(payouts, &p)
	}
	return payouts, rows.Err()
}

// CountByStatus counts the trainer's payouts with one outcome.
func (r *PayoutRepository) CountByStatus(ctx context.Context, trainerID uuid.UUID, status domain.PayoutStatus) (int, error) {
	var n int
	err := r.exec(ctx).QueryRow(ctx, r.q(`SELECT COUNT(*) FROM payout_logs WHERE trainer_id = ? AND status = ?`),
		trainerID.String(), string(status)).Scan(&n)
	return n, err
}

// Count counts all of the trainer's payouts.
func (r *PayoutRepository) Count(ctx context.Context, trainerID uuid.UUID) (int, error) {
	var n int
	err := r.exec(ctx).QueryRow(ctx, r.q(`SELECT COUNT(*) FROM payout_logs WHERE trainer_id = ?`), trainerID.String()).Scan(&n)
	return n, err
}
