package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/coachpay/internal/payments/domain"
)

// maxStatusAttempts bounds the compare-and-set retries of one status write.
const maxStatusAttempts = 5

// SubscriptionLifecycle drives subscriptions through their states from
// checkout and subscription events.
type SubscriptionLifecycle struct {
	subscriptions domain.SubscriptionRepository
	trainers      domain.TrainerRepository
	plans         domain.PlanRepository
	gateway       domain.PaymentGateway
	decoder       domain.PayloadDecoder
	counter       *SubscriberCounter
	audit         *AuditLog
	logger        *slog.Logger
}

// NewSubscriptionLifecycle creates the lifecycle handler.
func NewSubscriptionLifecycle(
	subscriptions domain.SubscriptionRepository,
	trainers domain.TrainerRepository,
	plans domain.PlanRepository,
	gateway domain.PaymentGateway,
	decoder domain.PayloadDecoder,
	counter *SubscriberCounter,
	audit *AuditLog,
	logger *slog.Logger,
) *SubscriptionLifecycle {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubscriptionLifecycle{
		subscriptions: subscriptions,
		trainers:      trainers,
		plans:         plans,
		gateway:       gateway,
		decoder:       decoder,
		counter:       counter,
		audit:         audit,
		logger:        logger,
	}
}

// EventTypes implements EventHandler.
func (l *SubscriptionLifecycle) EventTypes() []domain.EventType {
	return []domain.EventType{
		domain.EventCheckoutCompleted,
		domain.EventSubscriptionUpdated,
		domain.EventSubscriptionDeleted,
	}
}

// Prepare implements EventHandler.
func (l *SubscriptionLifecycle) Prepare(ctx context.Context, ev *domain.Event) (ApplyFunc, error) {
	switch ev.Type {
	case domain.EventCheckoutCompleted:
		return l.prepareCheckout(ctx, ev)
	case domain.EventSubscriptionUpdated, domain.EventSubscriptionDeleted:
		snap, err := l.decoder.Subscription(ev)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context) error {
			return l.transition(ctx, ev, snap)
		}, nil
	default:
		return nil, fmt.Errorf("%w: lifecycle cannot handle %s", domain.ErrPolicyViolation, ev.Type)
	}
}

func (l *SubscriptionLifecycle) prepareCheckout(ctx context.Context, ev *domain.Event) (ApplyFunc, error) {
	session, err := l.decoder.CheckoutSession(ev)
	if err != nil {
		return nil, err
	}
	refs, err := session.Refs()
	if err != nil {
		return nil, err
	}

	snap, err := l.gateway.RetrieveSubscription(ctx, session.SubscriptionID)
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context) error {
		return l.create(ctx, ev, refs, snap)
	}, nil
}

func (l *SubscriptionLifecycle) create(ctx context.Context, ev *domain.Event, refs domain.CheckoutRefs, snap *domain.SubscriptionSnapshot) error {
	if _, err := l.trainers.FindByID(ctx, refs.TrainerID); err != nil {
		return lookupError("load trainer", err)
	}
	plan, err := l.plans.FindByID(ctx, refs.PlanID)
	if err != nil {
		return lookupError("load plan", err)
	}
	if plan.TrainerID != refs.TrainerID {
		return fmt.Errorf("%w: plan %s does not belong to trainer %s", domain.ErrPolicyViolation, plan.ID, refs.TrainerID)
	}

	sub := domain.NewSubscription(refs, snap, time.Now().UTC())
	inserted, err := l.subscriptions.Insert(ctx, sub)
	if err != nil {
		return domain.Transient("insert subscription", err)
	}
	if !inserted {
		l.logger.InfoContext(ctx, "subscription already exists",
			"stripe_subscription_id", sub.StripeSubscriptionID,
		)
		return nil
	}

	if err := l.counter.Increment(ctx, sub.TrainerID); err != nil {
		return err
	}
	return l.audit.Record(ctx, domain.NewActivityEntry(sub.TrainerID,
		domain.ActivitySubscriptionCreated,
		domain.SeverityLow,
		fmt.Sprintf("New subscription to %s", plan.Name),
		map[string]any{
			"subscription_id":        sub.ID,
			"stripe_subscription_id": sub.StripeSubscriptionID,
			"client_id":              sub.ClientID,
			"plan_id":                sub.PlanID,
			"event_id":               ev.ID,
		},
	))
}

// transition applies an updated or deleted event with compare-and-set on the
// stored status, re-reading the row when a concurrent event got there first.
func (l *SubscriptionLifecycle) transition(ctx context.Context, ev *domain.Event, snap *domain.SubscriptionSnapshot) error {
	for attempt := 1; attempt <= maxStatusAttempts; attempt++ {
		sub, err := l.subscriptions.FindByExternalID(ctx, snap.ExternalID)
		if err != nil {
			return lookupError("load subscription", err)
		}

		now := time.Now().UTC()
		var t domain.Transition
		if ev.Type == domain.EventSubscriptionDeleted {
			t, err = sub.Cancel(snap, ev.OccurredAt)
		} else {
			t, err = sub.ApplyUpdate(snap, now)
		}
		if err != nil {
			return err
		}

		ok, err := l.subscriptions.CompareAndSetStatus(ctx, sub, t.From)
		if err != nil {
			return domain.Transient("update subscription status", err)
		}
		if !ok {
			l.logger.DebugContext(ctx, "subscription status changed concurrently, retrying",
				"stripe_subscription_id", sub.StripeSubscriptionID,
				"attempt", attempt,
			)
			continue
		}

		if err := l.counter.Adjust(ctx, sub.TrainerID, t.CounterDelta); err != nil {
			return err
		}
		if t.To != domain.SubscriptionCanceled {
			return nil
		}
		return l.audit.Record(ctx, domain.NewActivityEntry(sub.TrainerID,
			domain.ActivitySubscriptionCanceled,
			domain.SeverityLow,
			"Subscription canceled",
			map[string]any{
				"subscription_id":        sub.ID,
				"stripe_subscription_id": sub.StripeSubscriptionID,
				"previous_status":        t.From,
				"event_id":               ev.ID,
			},
		))
	}
	return domain.Transient("update subscription status",
		fmt.Errorf("%s still contended after %d attempts", snap.ExternalID, maxStatusAttempts))
}

// lookupError passes unknown-entity errors through and marks the rest
// transient.
func lookupError(op string, err error) error {
	if domain.Absorbed(err) {
		return err
	}
	return domain.Transient(op, err)
}
