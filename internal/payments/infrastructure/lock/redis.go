package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/coachpay/internal/payments/application"
	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces lock keys in a shared Redis.
const keyPrefix = "coachpay:lock:"

// Redis is a Locker backed by redsync, shared by every API and worker
// instance.
type Redis struct {
	rs *redsync.Redsync
}

// NewRedis creates a locker on the client.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{rs: redsync.New(goredis.NewPool(client))}
}

// Acquire implements application.Locker. It tries once; a taken lock is
// reported as application.ErrLockHeld.
func (r *Redis) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	mutex := r.rs.NewMutex(keyPrefix+key,
		redsync.WithExpiry(ttl),
		redsync.WithTries(1),
	)

	if err := mutex.LockContext(ctx); err != nil {
		var taken *redsync.ErrTaken
		if errors.Is(err, redsync.ErrFailed) || errors.As(err, &taken) {
			return nil, application.ErrLockHeld
		}
		return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}

	return func(ctx context.Context) error {
		ok, err := mutex.UnlockContext(ctx)
		if err != nil {
			return fmt.Errorf("failed to release lock %s: %w", key, err)
		}
		if !ok {
			return fmt.Errorf("lock %s expired before release", key)
		}
		return nil
	}, nil
}
