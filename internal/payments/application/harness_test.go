package application_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/felixgeelhaar/coachpay/internal/payments/application"
	"github.com/felixgeelhaar/coachpay/internal/payments/domain"
	"github.com/felixgeelhaar/coachpay/internal/payments/infrastructure/persistence"
	"github.com/felixgeelhaar/coachpay/internal/payments/infrastructure/stripe"
	"github.com/felixgeelhaar/coachpay/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/coachpay/internal/shared/infrastructure/database/sqlite"
	"github.com/felixgeelhaar/coachpay/internal/shared/infrastructure/migrations"
	"github.com/felixgeelhaar/coachpay/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/coachpay/pkg/observability"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	mu            sync.Mutex
	subscriptions map[string]*domain.SubscriptionSnapshot
	accounts      map[string]*domain.AccountSnapshot
	disputes      map[string][]domain.DisputeSnapshot
	err           error
	calls         int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		subscriptions: map[string]*domain.SubscriptionSnapshot{},
		accounts:      map[string]*domain.AccountSnapshot{},
		disputes:      map[string][]domain.DisputeSnapshot{},
	}
}

func (g *fakeGateway) RetrieveSubscription(_ context.Context, externalID string) (*domain.SubscriptionSnapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	snap, ok := g.subscriptions[externalID]
	if !ok {
		return nil, domain.ErrUnknownEntity
	}
	copied := *snap
	return &copied, nil
}

func (g *fakeGateway) RetrieveAccount(_ context.Context, accountRef string) (*domain.AccountSnapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	account, ok := g.accounts[accountRef]
	if !ok {
		return nil, domain.ErrUnknownEntity
	}
	copied := *account
	return &copied, nil
}

func (g *fakeGateway) ListDisputes(_ context.Context, accountRef string) ([]domain.DisputeSnapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return append([]domain.DisputeSnapshot(nil), g.disputes[accountRef]...), nil
}

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type fakeLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: map[string]bool{}}
}

func (l *fakeLocker) Acquire(_ context.Context, key string, _ time.Duration) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, application.ErrLockHeld
	}
	l.held[key] = true
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
		return nil
	}, nil
}

type harness struct {
	conn          database.Connection
	gateway       *fakeGateway
	locker        *fakeLocker
	metrics       *observability.InMemoryMetrics
	trainers      *persistence.TrainerRepository
	subscriptions *persistence.SubscriptionRepository
	plans         *persistence.PlanRepository
	activity      *persistence.ActivityRepository
	payouts       *persistence.PayoutRepository
	checks        *persistence.ComplianceRepository
	outbox        *outbox.SQLRepository
	counter       *application.SubscriberCounter
	risk          *application.RiskEngine
	reconciler    *application.Reconciler
	sync          *application.AccountSynchronizer
	terms         *application.TermsService
	queries       *application.ComplianceQueries
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()

	conn, err := sqlite.NewConnection(ctx, database.Config{SQLitePath: filepath.Join(t.TempDir(), "coachpay.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	_, err = migrations.Run(ctx, conn)
	require.NoError(t, err)

	h := &harness{
		conn:          conn,
		gateway:       newFakeGateway(),
		locker:        newFakeLocker(),
		metrics:       observability.NewInMemoryMetrics(),
		trainers:      persistence.NewTrainerRepository(conn),
		subscriptions: persistence.NewSubscriptionRepository(conn),
		plans:         persistence.NewPlanRepository(conn),
		activity:      persistence.NewActivityRepository(conn),
		payouts:       persistence.NewPayoutRepository(conn),
		checks:        persistence.NewComplianceRepository(conn),
		outbox:        outbox.NewSQLRepository(conn),
	}

	uow := database.NewUnitOfWork(conn)
	audit := application.NewAuditLog(h.activity, h.outbox, nil)
	h.counter = application.NewSubscriberCounter(h.trainers, audit, nil)
	h.risk = application.NewRiskEngine(h.trainers, h.checks, audit, nil)

	decoder := stripe.NewPayloadDecoder()
	h.reconciler, err = application.NewReconciler(uow,
		application.NewDeduplicator(persistence.NewEventLedger(conn)),
		[]application.EventHandler{
			application.NewSubscriptionLifecycle(h.subscriptions, h.trainers, h.plans, h.gateway, decoder, h.counter, audit, nil),
			application.NewPayoutReconciler(h.trainers, h.payouts, decoder, audit, nil),
			application.NewDisputeHandler(h.trainers, h.gateway, decoder, h.risk, audit, nil),
			application.NewAccountHandler(h.trainers, decoder, h.risk, audit, nil),
		},
		nil, h.metrics,
	)
	require.NoError(t, err)

	h.sync = application.NewAccountSynchronizer(uow, h.trainers, h.checks, h.gateway, h.risk, h.locker, 0, nil, h.metrics)
	h.terms = application.NewTermsService(uow, h.trainers, h.checks, nil)
	h.queries = application.NewComplianceQueries(h.trainers, h.plans, h.activity, h.payouts, h.checks)
	return h
}

func (h *harness) createTrainer(t *testing.T, connectID string) *domain.Trainer {
	t.Helper()
	trainer := domain.NewTrainer(uuid.New(), "Sam Trainer")
	trainer.StripeConnectID = connectID
	require.NoError(t, h.trainers.Create(context.Background(), trainer))
	return trainer
}

func (h *harness) createPlan(t *testing.T, trainerID uuid.UUID, priceMinor int64, period domain.BillingPeriod) *domain.Plan {
	t.Helper()
	plan := &domain.Plan{
		ID:            uuid.New(),
		TrainerID:     trainerID,
		Name:          "Strength Coaching",
		PriceMinor:    priceMinor,
		Currency:      "usd",
		BillingPeriod: period,
		IsActive:      true,
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, h.plans.Create(context.Background(), plan))
	return plan
}

func (h *harness) trainer(t *testing.T, id uuid.UUID) *domain.Trainer {
	t.Helper()
	trainer, err := h.trainers.FindByID(context.Background(), id)
	require.NoError(t, err)
	return trainer
}

func (h *harness) activityCount(t *testing.T, trainerID uuid.UUID, typ domain.ActivityType) int {
	t.Helper()
	n, err := h.activity.CountByType(context.Background(), trainerID, typ)
	require.NoError(t, err)
	return n
}

func (h *harness) reconcile(t *testing.T, ev *domain.Event) domain.ApplyResult {
	t.Helper()
	result, err := h.reconciler.Reconcile(context.Background(), ev)
	require.NoError(t, err)
	return result
}

// subscribe completes a checkout for a new client and returns the processor
// subscription id.
func (h *harness) subscribe(t *testing.T, trainer *domain.Trainer, plan *domain.Plan) string {
	t.Helper()
	subID := "sub_" + uuid.NewString()[:8]
	h.gateway.mu.Lock()
	h.gateway.subscriptions[subID] = &domain.SubscriptionSnapshot{
		ExternalID:         subID,
		Status:             domain.SubscriptionActive,
		CurrentPeriodStart: time.Now().UTC().Truncate(time.Second),
		CurrentPeriodEnd:   time.Now().UTC().Add(30 * 24 * time.Hour).Truncate(time.Second),
	}
	h.gateway.mu.Unlock()

	result := h.reconcile(t, checkoutEvent(newEventID(), subID, uuid.New(), trainer.ID, plan.ID))
	require.Equal(t, domain.FirstSeen, result)
	return subID
}

func newEventID() string {
	return "evt_" + uuid.NewString()
}

func event(t *testing.T, id string, typ domain.EventType, account string, object any) *domain.Event {
	payload, err := json.Marshal(object)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return &domain.Event{
		ID:         id,
		Type:       typ,
		AccountRef: account,
		OccurredAt: time.Now().UTC().Truncate(time.Second),
		Payload:    payload,
	}
}

func checkoutEvent(id, subID string, clientID, trainerID, planID uuid.UUID) *domain.Event {
	payload, _ := json.Marshal(map[string]any{
		"id":           "cs_" + id,
		"subscription": subID,
		"metadata": map[string]string{
			"client_id":  clientID.String(),
			"trainer_id": trainerID.String(),
			"plan_id":    planID.String(),
		},
	})
	return &domain.Event{
		ID:         id,
		Type:       domain.EventCheckoutCompleted,
		OccurredAt: time.Now().UTC().Truncate(time.Second),
		Payload:    payload,
	}
}

func subscriptionEvent(t *testing.T, id string, typ domain.EventType, subID string, status domain.SubscriptionStatus) *domain.Event {
	now := time.Now().UTC()
	return event(t, id, typ, "", map[string]any{
		"id":                   subID,
		"status":               status,
		"current_period_start": now.Unix(),
		"current_period_end":   now.Add(30 * 24 * time.Hour).Unix(),
	})
}

func disputeEvent(t *testing.T, id string, typ domain.EventType, account, status string) *domain.Event {
	return event(t, id, typ, account, map[string]any{
		"id":       "dp_" + id,
		"charge":   "ch_" + id,
		"amount":   5000,
		"currency": "usd",
		"reason":   "fraudulent",
		"status":   status,
	})
}

func accountEvent(t *testing.T, id string, account domain.AccountSnapshot) *domain.Event {
	return event(t, id, domain.EventAccountUpdated, account.ID, map[string]any{
		"id":                account.ID,
		"details_submitted": account.DetailsSubmitted,
		"charges_enabled":   account.ChargesEnabled,
		"payouts_enabled":   account.PayoutsEnabled,
		"requirements": map[string]any{
			"currently_due": account.CurrentlyDue,
			"past_due":      account.PastDue,
		},
	})
}
