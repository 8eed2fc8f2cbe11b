package outbox

import (
	"context"
	"time"
)

// Repository defines outbox persistence.
type Repository interface {
	// Save stores a message. Inside a unit of work it joins the transaction.
	Save(ctx context.Context, msg *Message) error

	// GetUnpublished returns messages that are due for (re)delivery, oldest first.
	GetUnpublished(ctx context.Context, limit int) ([]*Message, error)

	MarkPublished(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, err string, nextRetryAt time.Time) error
	MarkDead(ctx context.Context, id int64, reason string) error

	// DeleteOld removes published messages older than the cutoff.
	DeleteOld(ctx context.Context, olderThan time.Time) (int64, error)

	// Backlog reports how many messages are pending and dead-lettered.
	Backlog(ctx context.Context) (pending, dead int64, err error)
}
