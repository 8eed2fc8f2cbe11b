// Package application reconciles payment processor events into marketplace
// state and serves the compliance read models.
package application

import (
	"context"
	"errors"
	"time"

	sharedDomain "github.com/felixgeelhaar/coachpay/internal/shared/domain"
)

// EventPublisher appends domain events to the outbox. Inside a unit of work
// the events commit with the state change.
type EventPublisher interface {
	Append(ctx context.Context, events ...sharedDomain.DomainEvent) error
}

// ErrLockHeld is returned by a Locker when someone else holds the lock.
var ErrLockHeld = errors.New("lock held")

// Locker hands out named mutual-exclusion locks with a lease.
type Locker interface {
	// Acquire takes the lock without waiting. It returns ErrLockHeld when
	// the lock is taken and a release function otherwise.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error)
}
