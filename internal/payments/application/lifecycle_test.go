package application_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/felixgeelhaar/coachpay/internal/payments/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLifecycle_CheckoutCreatesActiveSubscription(t *testing.T) {
	h := newHarness(t)
	trainer := h.createTrainer(t, "acct_life")
	plan := h.createPlan(t, trainer.ID, 4900, domain.BillingMonthly)

	subID := h.subscribe(t, trainer, plan)

	sub, err := h.subscriptions.FindByExternalID(context.Background(), subID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionActive, sub.Status)
	assert.Equal(t, trainer.ID, sub.TrainerID)
	assert.Equal(t, plan.ID, sub.PlanID)
	require.NotNil(t, sub.CurrentPeriodEnd)

	assert.Equal(t, 1, h.trainer(t, trainer.ID).TotalSubscribers)
	assert.Equal(t, 1, h.activityCount(t, trainer.ID, domain.ActivitySubscriptionCreated))

	pending, _, err := h.outbox.Backlog(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending, "activity is fanned out through the outbox")
}

func TestLifecycle_CheckoutRejectsForeignPlan(t *testing.T) {
	h := newHarness(t)
	trainer := h.createTrainer(t, "acct_a")
	other := h.createTrainer(t, "acct_b")
	plan := h.createPlan(t, other.ID, 4900, domain.BillingMonthly)
	h.gateway.subscriptions["sub_foreign"] = &domain.SubscriptionSnapshot{ExternalID: "sub_foreign", Status: domain.SubscriptionActive}

	result := h.reconcile(t, checkoutEvent(newEventID(), "sub_foreign", uuid.New(), trainer.ID, plan.ID))

	assert.Equal(t, domain.FirstSeen, result)
	_, err := h.subscriptions.FindByExternalID(context.Background(), "sub_foreign")
	assert.ErrorIs(t, err, domain.ErrSubscriptionNotFound)
	assert.Zero(t, h.trainer(t, trainer.ID).TotalSubscribers)
	assert.Zero(t, h.trainer(t, other.ID).TotalSubscribers)
}

func TestLifecycle_CheckoutForSameSubscriptionTwiceCountsOnce(t *testing.T) {
	h := newHarness(t)
	trainer := h.createTrainer(t, "acct_twice")
	plan := h.createPlan(t, trainer.ID, 4900, domain.BillingMonthly)
	h.gateway.subscriptions["sub_twice"] = &domain.SubscriptionSnapshot{ExternalID: "sub_twice", Status: domain.SubscriptionActive}

	client := uuid.New()
	h.reconcile(t, checkoutEvent(newEventID(), "sub_twice", client, trainer.ID, plan.ID))
	h.reconcile(t, checkoutEvent(newEventID(), "sub_twice", client, trainer.ID, plan.ID))

	assert.Equal(t, 1, h.trainer(t, trainer.ID).TotalSubscribers)
}

func TestLifecycle_OrderIndependence(t *testing.T) {
	tests := []struct {
		name  string
		order []domain.EventType
	}{
		{"updated then deleted", []domain.EventType{domain.EventSubscriptionUpdated, domain.EventSubscriptionDeleted}},
		{"deleted then updated", []domain.EventType{domain.EventSubscriptionDeleted, domain.EventSubscriptionUpdated}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			trainer := h.createTrainer(t, "acct_order")
			plan := h.createPlan(t, trainer.ID, 4900, domain.BillingMonthly)
			subID := h.subscribe(t, trainer, plan)

			for _, typ := range tt.order {
				status := domain.SubscriptionPastDue
				if typ == domain.EventSubscriptionDeleted {
					status = domain.SubscriptionCanceled
				}
				h.reconcile(t, subscriptionEvent(t, newEventID(), typ, subID, status))
			}

			sub, err := h.subscriptions.FindByExternalID(context.Background(), subID)
			require.NoError(t, err)
			assert.Equal(t, domain.SubscriptionCanceled, sub.Status)
			assert.NotNil(t, sub.CanceledAt)
			assert.Zero(t, h.trainer(t, trainer.ID).TotalSubscribers)
			assert.Zero(t, h.activityCount(t, trainer.ID, domain.ActivitySubscriberCountAnomaly))
			assert.Equal(t, 1, h.activityCount(t, trainer.ID, domain.ActivitySubscriptionCanceled))
		})
	}
}

func TestLifecycle_CounterMatchesActiveSubscriptions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	trainer := h.createTrainer(t, "acct_count")
	plan := h.createPlan(t, trainer.ID, 4900, domain.BillingMonthly)

	a := h.subscribe(t, trainer, plan)
	b := h.subscribe(t, trainer, plan)
	c := h.subscribe(t, trainer, plan)

	steps := []struct {
		typ    domain.EventType
		sub    string
		status domain.SubscriptionStatus
	}{
		{domain.EventSubscriptionUpdated, a, domain.SubscriptionPastDue},
		{domain.EventSubscriptionUpdated, a, domain.SubscriptionActive},
		{domain.EventSubscriptionUpdated, b, domain.SubscriptionTrialing},
		{domain.EventSubscriptionDeleted, c, domain.SubscriptionCanceled},
		{domain.EventSubscriptionUpdated, c, domain.SubscriptionActive},
		{domain.EventSubscriptionUpdated, b, domain.SubscriptionActive},
		{domain.EventSubscriptionUpdated, a, domain.SubscriptionPastDue},
	}

	for _, s := range steps {
		h.reconcile(t, subscriptionEvent(t, newEventID(), s.typ, s.sub, s.status))

		active, err := h.subscriptions.CountActive(ctx, trainer.ID)
		require.NoError(t, err)
		assert.Equal(t, active, h.trainer(t, trainer.ID).TotalSubscribers,
			"after %s %s -> %s", s.typ, s.sub, s.status)
	}
	assert.Equal(t, 1, h.trainer(t, trainer.ID).TotalSubscribers)
}

func TestLifecycle_CounterSurvivesConcurrentInterleavings(t *testing.T) {
	const newClients = 10

	for _, seed := range []uint64{1, 7, 42} {
		h := newHarness(t)
		ctx := context.Background()
		trainer := h.createTrainer(t, "acct_interleave")
		plan := h.createPlan(t, trainer.ID, 4900, domain.BillingMonthly)

		existing := []string{
			h.subscribe(t, trainer, plan),
			h.subscribe(t, trainer, plan),
			h.subscribe(t, trainer, plan),
		}

		var events []*domain.Event
		for i := range newClients {
			subID := fmt.Sprintf("sub_new_%d_%d", seed, i)
			h.gateway.mu.Lock()
			h.gateway.subscriptions[subID] = &domain.SubscriptionSnapshot{
				ExternalID:         subID,
				Status:             domain.SubscriptionActive,
				CurrentPeriodStart: time.Now().UTC().Truncate(time.Second),
				CurrentPeriodEnd:   time.Now().UTC().Add(30 * 24 * time.Hour).Truncate(time.Second),
			}
			h.gateway.mu.Unlock()
			events = append(events, checkoutEvent(newEventID(), subID, uuid.New(), trainer.ID, plan.ID))
		}
		for _, subID := range existing {
			events = append(events,
				subscriptionEvent(t, newEventID(), domain.EventSubscriptionUpdated, subID, domain.SubscriptionPastDue),
				subscriptionEvent(t, newEventID(), domain.EventSubscriptionDeleted, subID, domain.SubscriptionCanceled),
			)
		}

		// Every event is delivered twice, in a seeded random order.
		deliveries := append(append([]*domain.Event(nil), events...), events...)
		rnd := rand.New(rand.NewPCG(seed, seed))
		rnd.Shuffle(len(deliveries), func(i, j int) {
			deliveries[i], deliveries[j] = deliveries[j], deliveries[i]
		})

		var wg sync.WaitGroup
		errs := make(chan error, len(deliveries))
		for _, ev := range deliveries {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- reconcileWithRedelivery(ctx, h, ev)
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err, "seed %d", seed)
		}

		active, err := h.subscriptions.CountActive(ctx, trainer.ID)
		require.NoError(t, err)
		assert.Equal(t, newClients, active, "seed %d", seed)
		assert.Equal(t, active, h.trainer(t, trainer.ID).TotalSubscribers, "seed %d", seed)
		assert.Equal(t, len(existing)+newClients, h.activityCount(t, trainer.ID, domain.ActivitySubscriptionCreated), "seed %d", seed)
	}
}

// reconcileWithRedelivery retries transient failures the way the processor
// redelivers a webhook that was not acknowledged.
func reconcileWithRedelivery(ctx context.Context, h *harness, ev *domain.Event) error {
	var err error
	for range 5 {
		if _, err = h.reconciler.Reconcile(ctx, ev); !errors.Is(err, domain.ErrTransient) {
			return err
		}
	}
	return err
}

func TestLifecycle_IllegalTransitionIsDropped(t *testing.T) {
	h := newHarness(t)
	trainer := h.createTrainer(t, "acct_illegal")
	plan := h.createPlan(t, trainer.ID, 4900, domain.BillingMonthly)
	subID := h.subscribe(t, trainer, plan)

	h.reconcile(t, subscriptionEvent(t, newEventID(), domain.EventSubscriptionDeleted, subID, domain.SubscriptionCanceled))
	result := h.reconcile(t, subscriptionEvent(t, newEventID(), domain.EventSubscriptionDeleted, subID, domain.SubscriptionCanceled))

	assert.Equal(t, domain.FirstSeen, result)
	assert.Zero(t, h.trainer(t, trainer.ID).TotalSubscribers)
	assert.Equal(t, 1, h.activityCount(t, trainer.ID, domain.ActivitySubscriptionCanceled))
}

func TestLifecycle_UnknownSubscriptionIsAbsorbed(t *testing.T) {
	h := newHarness(t)

	result := h.reconcile(t, subscriptionEvent(t, newEventID(), domain.EventSubscriptionUpdated, "sub_missing", domain.SubscriptionPastDue))

	assert.Equal(t, domain.FirstSeen, result)
}

func TestSubscriberCounter_ClampsAtZero(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	trainer := h.createTrainer(t, "")

	require.NoError(t, h.counter.Decrement(ctx, trainer.ID))

	assert.Zero(t, h.trainer(t, trainer.ID).TotalSubscribers)
	assert.Equal(t, 1, h.activityCount(t, trainer.ID, domain.ActivitySubscriberCountAnomaly))

	medium, err := h.activity.CountBySeverity(ctx, trainer.ID, domain.SeverityMedium)
	require.NoError(t, err)
	assert.Equal(t, 1, medium)

	require.NoError(t, h.counter.Increment(ctx, trainer.ID))
	require.NoError(t, h.counter.Decrement(ctx, trainer.ID))
	assert.Zero(t, h.trainer(t, trainer.ID).TotalSubscribers)
	assert.Equal(t, 1, h.activityCount(t, trainer.ID, domain.ActivitySubscriberCountAnomaly))
}

func TestSubscriberCounter_CancelOfUncountedSubscriptionClamps(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	trainer := h.createTrainer(t, "acct_clamp")
	plan := h.createPlan(t, trainer.ID, 4900, domain.BillingMonthly)
	subID := h.subscribe(t, trainer, plan)

	// Simulate drift: the counter lost the subscription.
	_, err := h.trainers.AdjustSubscribers(ctx, trainer.ID, -1)
	require.NoError(t, err)

	result := h.reconcile(t, subscriptionEvent(t, newEventID(), domain.EventSubscriptionDeleted, subID, domain.SubscriptionCanceled))

	assert.Equal(t, domain.FirstSeen, result)
	assert.Zero(t, h.trainer(t, trainer.ID).TotalSubscribers)
	assert.Equal(t, 1, h.activityCount(t, trainer.ID, domain.ActivitySubscriberCountAnomaly))
}
