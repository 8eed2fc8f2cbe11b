package persistence

import (
	"context"
	"time"

	"github.com/felixgeelhaar/coachpay/internal/payments/domain"
	"github.com/felixgeelhaar/coachpay/internal/shared/infrastructure/database"
)

// EventLedger implements domain.EventLedger on the processed_events table.
type EventLedger struct {
	store
}

// NewEventLedger creates an event ledger.
func NewEventLedger(conn database.Connection) *EventLedger {
	return &EventLedger{store{conn: conn}}
}

// Record inserts the event id if absent. A concurrent insert of the same id
// blocks on the primary key until the other transaction finishes.
func (l *EventLedger) Record(ctx context.Context, eventID string, eventType domain.EventType, at time.Time) (bool, error) {
	res, err := l.exec(ctx).Exec(ctx, l.q(`
		INSERT INTO processed_events (event_id, event_type, processed_at)
		VALUES (?, ?, ?)
		ON CONFLICT (event_id) DO NOTHING`),
		eventID, string(eventType), database.FormatTime(at))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Seen reports whether the event id has been committed.
func (l *EventLedger) Seen(ctx context.Context, eventID string) (bool, error) {
	var one int
	err := l.exec(ctx).QueryRow(ctx, l.q(`SELECT 1 FROM processed_events WHERE event_id = ?`), eventID).Scan(&one)
	if database.IsNoRows(err) {
		return false, nil
	}
	return err == nil, err
}

// Prune deletes entries processed before the cutoff.
func (l *EventLedger) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := l.exec(ctx).Exec(ctx, l.q(`DELETE FROM processed_events WHERE processed_at < ?`), database.FormatTime(before))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
