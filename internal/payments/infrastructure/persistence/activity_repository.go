package persistence

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/coachpay/internal/payments/domain"
	"github.com/felixgeelhaar/coachpay/internal/shared/infrastructure/database"
	"github.com/google/uuid"
)

// ActivityRepository implements domain.ActivityRepository.
type ActivityRepository struct {
	store
}

// NewActivityRepository creates an activity repository.
func NewActivityRepository(conn database.Connection) *ActivityRepository {
	return &ActivityRepository{store{conn: conn}}
}

// Append inserts an activity entry.
func (r *ActivityRepository) Append(ctx context.Context, e *domain.ActivityEntry) error {
	metadata, err := e.MetadataJSON()
	if err != nil {
		return fmt.Errorf("encode activity metadata: %w", err)
	}
	_, err = r.exec(ctx).Exec(ctx, r.q(`
		INSERT INTO activity_logs (id, trainer_id, activity_type, severity, description, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		e.ID.String(), e.TrainerID.String(), string(e.Type), string(e.Severity),
		e.Description, metadata, database.FormatTime(e.CreatedAt))
	return err
}

// ListRecent returns the newest entries first.
func (r *ActivityRepository) ListRecent(ctx context.Context, trainerID uuid.UUID, limit int) ([]*domain.ActivityEntry, error) {
	rows, err := r.exec(ctx).Query(ctx, r.q(`
		SELECT id, trainer_id, activity_type, severity, description, metadata, created_at
		FROM activity_logs
		WHERE trainer_id = ?
		ORDER BY created_at DESC
		LIMIT ?`), trainerID.String(), limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []*domain.ActivityEntry
	for rows.Next() {
		var (
			e                                         domain.ActivityEntry
			id, tid, typ, severity, metadata, created string
		)
		if err := rows.Scan(&id, &tid, &typ, &severity, &e.Description, &metadata, &created); err != nil {
			return nil, err
		}
		if err := parseUUIDs([]*uuid.UUID{&e.ID, &e.TrainerID}, id, tid); err != nil {
			return nil, err
		}
		e.Type = domain.ActivityType(typ)
		e.Severity = domain.Severity(severity)
		if e.Metadata, err = decodeMap("activity_logs.metadata", metadata); err != nil {
			return nil, err
		}
		if e.CreatedAt, err = database.ParseTime(created); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// CountBySeverity counts the trainer's entries of one severity.
func (r *ActivityRepository) CountBySeverity(ctx context.Context, trainerID uuid.UUID, severity domain.Severity) (int, error) {
	var n int
	err := r.exec(ctx).QueryRow(ctx, r.q(`SELECT COUNT(*) FROM activity_logs WHERE trainer_id = ? AND severity = ?`),
		trainerID.String(), string(severity)).Scan(&n)
	return n, err
}

// CountByType counts the trainer's entries of one type.
func (r *ActivityRepository) CountByType(ctx context.Context, trainerID uuid.UUID, typ domain.ActivityType) (int, error) {
	var n int
	err := r.exec(ctx).QueryRow(ctx, r.q(`SELECT COUNT(*) FROM activity_logs WHERE trainer_id = ? AND activity_type = ?`),
		trainerID.String(), string(typ)).Scan(&n)
	return n, err
}
