package persistence

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/coachpay/internal/payments/domain"
	"github.com/felixgeelhaar/coachpay/internal/shared/infrastructure/database"
	"github.com/google/uuid"
)

// ComplianceRepository implements domain.ComplianceRepository.
type ComplianceRepository struct {
	store
}

// NewComplianceRepository creates a compliance check repository.
func NewComplianceRepository(conn database.Connection) *ComplianceRepository {
	return &ComplianceRepository{store{conn: conn}}
}

// Record inserts a compliance check.
func (r *ComplianceRepository) Record(ctx context.Context, c *domain.ComplianceCheck) error {
	details, err := c.DetailsJSON()
	if err != nil {
		return fmt.Errorf("encode check details: %w", err)
	}
	_, err = r.exec(ctx).Exec(ctx, r.q(`
		INSERT INTO compliance_checks (id, trainer_id, check_type, status, details, checked_at)
		VALUES (?, ?, ?, ?, ?, ?)`),
		c.ID.String(), c.TrainerID.String(), string(c.Type), string(c.Status), details,
		database.FormatTime(c.CheckedAt))
	return err
}

// ListRecent returns the newest checks first.
func (r *ComplianceRepository) ListRecent(ctx context.Context, trainerID uuid.UUID, limit int) ([]*domain.ComplianceCheck, error) {
	rows, err := r.exec(ctx).Query(ctx, r.q(`
		SELECT id, trainer_id, check_type, status, details, checked_at
		FROM compliance_checks
		WHERE trainer_id = ?
		ORDER BY checked_at DESC
		LIMIT ?`), trainerID.String(), limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var checks []*domain.ComplianceCheck
	for rows.Next() {
		var (
			c                                      domain.ComplianceCheck
			id, tid, typ, status, details, checked string
		)
		if err := rows.Scan(&id, &tid, &typ, &status, &details, &checked); err != nil {
			return nil, err
		}
		if err := parseUUIDs([]*uuid.UUID{&c.ID, &c.TrainerID}, id, tid); err != nil {
			return nil, err
		}
		c.Type = domain.CheckType(typ)
		c.Status = domain.CheckStatus(status)
		if c.Details, err = decodeMap("compliance_checks.details", details); err != nil {
			return nil, err
		}
		if c.CheckedAt, err = database.ParseTime(checked); err != nil {
			return nil, err
		}
		checks = append(checks, &c)
	}
	return checks, rows.Err()
}
