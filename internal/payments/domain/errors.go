package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthenticationFailed means the payload or its signature cannot be
	// trusted. The sender must not retry.
	ErrAuthenticationFailed = errors.New("event authentication failed")

	// ErrUnknownEntity marks events that reference an entity this platform
	// does not know. Such events are acknowledged and dropped.
	ErrUnknownEntity = errors.New("unknown entity")

	// ErrTransient wraps store and processor failures; the event is redelivered.
	ErrTransient = errors.New("transient failure")

	// ErrPolicyViolation marks a request that would break an invariant.
	ErrPolicyViolation = errors.New("policy violation")

	// ErrIllegalTransition is returned for subscription transitions the
	// lifecycle does not allow.
	ErrIllegalTransition = errors.New("illegal subscription transition")

	// ErrSyncInProgress is returned when another account sync holds the
	// trainer's lock.
	ErrSyncInProgress = errors.New("account sync already in progress")

	ErrTrainerNotFound      = fmt.Errorf("%w: trainer", ErrUnknownEntity)
	ErrSubscriptionNotFound = fmt.Errorf("%w: subscription", ErrUnknownEntity)
	ErrPlanNotFound         = fmt.Errorf("%w: plan", ErrUnknownEntity)
)

// Absorbed reports whether err describes an event that should be
// acknowledged without applying effects.
func Absorbed(err error) bool {
	return errors.Is(err, ErrUnknownEntity) ||
		errors.Is(err, ErrPolicyViolation) ||
		errors.Is(err, ErrIllegalTransition)
}

// Transient wraps err as a retryable failure.
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrTransient, err)
}
