package application

import (
	"context"
	"time"

	"github.com/felixgeelhaar/coachpay/internal/payments/domain"
)

// Deduplicator guards event effects with the idempotency ledger.
type Deduplicator struct {
	ledger domain.EventLedger
}

// NewDeduplicator creates a deduplicator.
func NewDeduplicator(ledger domain.EventLedger) *Deduplicator {
	return &Deduplicator{ledger: ledger}
}

// ApplyOnce claims the event id. Called inside the event's unit of work so
// the claim is released if the effects roll back.
func (d *Deduplicator) ApplyOnce(ctx context.Context, ev *domain.Event) (domain.ApplyResult, error) {
	inserted, err := d.ledger.Record(ctx, ev.ID, ev.Type, time.Now())
	if err != nil {
		return 0, domain.Transient("record event", err)
	}
	if !inserted {
		return domain.AlreadyProcessed, nil
	}
	return domain.FirstSeen, nil
}

// Seen reports whether the event was already committed. It is a read-only
// shortcut taken before any processor call; ApplyOnce stays authoritative.
func (d *Deduplicator) Seen(ctx context.Context, eventID string) (bool, error) {
	seen, err := d.ledger.Seen(ctx, eventID)
	if err != nil {
		return false, domain.Transient("check ledger", err)
	}
	return seen, nil
}

// Prune drops ledger entries older than the retention window.
func (d *Deduplicator) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	return d.ledger.Prune(ctx, time.Now().Add(-olderThan))
}
