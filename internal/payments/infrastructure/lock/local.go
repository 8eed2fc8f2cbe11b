// Package lock provides the named leases that keep account syncs for one
// trainer from overlapping.
package lock

import (
	"context"
	"sync"
	"time"

	"github.com/felixgeelhaar/coachpay/internal/payments/application"
	"github.com/google/uuid"
)

type lease struct {
	token   string
	expires time.Time
}

// Local is an in-process Locker for single-instance deployments.
type Local struct {
	mu     sync.Mutex
	leases map[string]lease
	now    func() time.Time
}

// NewLocal creates an in-process locker.
func NewLocal() *Local {
	return &Local{leases: make(map[string]lease), now: time.Now}
}

// Acquire implements application.Locker. An expired lease is taken over.
func (l *Local) Acquire(_ context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if held, ok := l.leases[key]; ok && now.Before(held.expires) {
		return nil, application.ErrLockHeld
	}

	token := uuid.NewString()
	l.leases[key] = lease{token: token, expires: now.Add(ttl)}

	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if held, ok := l.leases[key]; ok && held.token == token {
			delete(l.leases, key)
		}
		return nil
	}, nil
}
