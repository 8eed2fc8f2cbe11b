package outbox

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/felixgeelhaar/coachpay/internal/shared/domain"
	"github.com/felixgeelhaar/coachpay/internal/shared/infrastructure/database"
	"github.com/google/uuid"
)

const messageColumns = `id, event_id, aggregate_type, aggregate_id, event_type, routing_key,
	payload, metadata, created_at, published_at, next_retry_at, retry_count,
	last_error, dead_lettered_at, dead_letter_reason`

// SQLRepository implements Repository for both supported drivers.
type SQLRepository struct {
	conn database.Connection
}

// NewSQLRepository creates an outbox repository over conn.
func NewSQLRepository(conn database.Connection) *SQLRepository {
	return &SQLRepository{conn: conn}
}

func (r *SQLRepository) q(query string) string {
	return database.Rebind(r.conn.Driver(), query)
}

// Save stores a new outbox message and sets its ID.
func (r *SQLRepository) Save(ctx context.Context, msg *Message) error {
	exec := database.ExecutorFromContext(ctx, r.conn)
	var metadata any
	if len(msg.Metadata) > 0 {
		metadata = string(msg.Metadata)
	}
	return exec.QueryRow(ctx, r.q(`
		INSERT INTO outbox (
			event_id, aggregate_type, aggregate_id, event_type, routing_key,
			payload, metadata, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`),
		msg.EventID.String(),
		msg.AggregateType,
		msg.AggregateID.String(),
		msg.EventType,
		msg.RoutingKey,
		string(msg.Payload),
		metadata,
		database.FormatTime(msg.CreatedAt),
	).Scan(&msg.ID)
}

// Append converts and stores domain events. It is the hook application
// services use to publish events atomically with their writes.
func (r *SQLRepository) Append(ctx context.Context, events ...domain.DomainEvent) error {
	for _, event := range events {
		msg, err := NewMessage(event)
		if err != nil {
			return fmt.Errorf("outbox: encode %s: %w", event.RoutingKey(), err)
		}
		if err := r.Save(ctx, msg); err != nil {
			return fmt.Errorf("outbox: save %s: %w", event.RoutingKey(), err)
		}
	}
	return nil
}

// GetUnpublished retrieves unpublished messages that are due.
func (r *SQLRepository) GetUnpublished(ctx context.Context, limit int) ([]*Message, error) {
	rows, err := r.conn.Query(ctx, r.q(`
		SELECT `+messageColumns+`
		FROM outbox
		WHERE published_at IS NULL
		  AND dead_lettered_at IS NULL
		  AND (next_retry_at IS NULL OR next_retry_at <= ?)
		ORDER BY id
		LIMIT ?`),
		database.FormatTime(time.Now()), limit,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []*Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

// MarkPublished marks a message as successfully published.
func (r *SQLRepository) MarkPublished(ctx context.Context, id int64) error {
	_, err := r.conn.Exec(ctx, r.q(`UPDATE outbox SET published_at = ?, last_error = NULL WHERE id = ?`),
		database.FormatTime(time.Now()), id)
	return err
}

// MarkFailed records a publish failure and schedules the next attempt.
func (r *SQLRepository) MarkFailed(ctx context.Context, id int64, errMsg string, nextRetryAt time.Time) error {
	_, err := r.conn.Exec(ctx, r.q(`
		UPDATE outbox
		SET retry_count = retry_count + 1, last_error = ?, next_retry_at = ?
		WHERE id = ?`),
		errMsg, database.FormatTime(nextRetryAt), id)
	return err
}

// MarkDead parks a message that exhausted its retries.
func (r *SQLRepository) MarkDead(ctx context.Context, id int64, reason string) error {
	_, err := r.conn.Exec(ctx, r.q(`
		UPDATE outbox
		SET retry_count = retry_count + 1, dead_lettered_at = ?, dead_letter_reason = ?, last_error = ?
		WHERE id = ?`),
		database.FormatTime(time.Now()), reason, reason, id)
	return err
}

// DeleteOld removes published messages created before olderThan.
func (r *SQLRepository) DeleteOld(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := r.conn.Exec(ctx, r.q(`DELETE FROM outbox WHERE published_at IS NOT NULL AND created_at < ?`),
		database.FormatTime(olderThan))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Backlog counts pending and dead-lettered messages.
func (r *SQLRepository) Backlog(ctx context.Context) (int64, int64, error) {
	var pending, dead int64
	err := r.conn.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN published_at IS NULL AND dead_lettered_at IS NULL THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN dead_lettered_at IS NOT NULL THEN 1 ELSE 0 END), 0)
		FROM outbox`).Scan(&pending, &dead)
	return pending, dead, err
}

func scanMessage(row database.Row) (*Message, error) {
	var (
		msg                                         Message
		eventID, aggregateID, payload, createdAt    string
		metadata, publishedAt, nextRetryAt          sql.NullString
		lastError, deadLetteredAt, deadLetterReason sql.NullString
	)
	if err := row.Scan(
		&msg.ID, &eventID, &msg.AggregateType, &aggregateID, &msg.EventType, &msg.RoutingKey,
		&payload, &metadata, &createdAt, &publishedAt, &nextRetryAt, &msg.RetryCount,
		&lastError, &deadLetteredAt, &deadLetterReason,
	); err != nil {
		return nil, err
	}

	var err error
	if msg.EventID, err = uuid.Parse(eventID); err != nil {
		return nil, err
	}
	if msg.AggregateID, err = uuid.Parse(aggregateID); err != nil {
		return nil, err
	}
	if msg.CreatedAt, err = database.ParseTime(createdAt); err != nil {
		return nil, err
	}
	msg.Payload = []byte(payload)
	if metadata.Valid {
		msg.Metadata = []byte(metadata.String)
	}
	if msg.PublishedAt, err = database.ParseNullableTime(nullString(publishedAt)); err != nil {
		return nil, err
	}
	if msg.NextRetryAt, err = database.ParseNullableTime(nullString(nextRetryAt)); err != nil {
		return nil, err
	}
	if msg.DeadLetteredAt, err = database.ParseNullableTime(nullString(deadLetteredAt)); err != nil {
		return nil, err
	}
	msg.LastError = nullString(lastError)
	msg.DeadLetterReason = nullString(deadLetterReason)
	return &msg, nil
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}
