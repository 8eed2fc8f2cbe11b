package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/felixgeelhaar/coachpay/internal/payments/domain"
	"github.com/felixgeelhaar/coachpay/internal/payments/infrastructure/lock"
	"github.com/felixgeelhaar/coachpay/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/coachpay/pkg/config"
	"github.com/felixgeelhaar/coachpay/pkg/observability"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		AppEnv:                 "development",
		SQLitePath:             filepath.Join(t.TempDir(), "coachpay.db"),
		StripeAPIKey:           "sk_test_container",
		StripeWebhookSecret:    "whsec_container",
		StripeWebhookTolerance: 5 * time.Minute,
		SyncLockTTL:            30 * time.Second,
		OutboxBatchSize:        50,
		OutboxMaxRetries:       3,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewContainer_LocalMode(t *testing.T) {
	ctx := context.Background()
	c, err := NewContainer(ctx, testConfig(t), discardLogger())
	require.NoError(t, err)
	t.Cleanup(c.Close)

	assert.Equal(t, database.DriverSQLite, c.DBDriver)
	assert.Nil(t, c.RedisClient)
	assert.IsType(t, &lock.Local{}, c.Locker)
	require.NotNil(t, c.InProcessEventBus)
	assert.Same(t, c.InProcessEventBus, c.EventPublisher)
	assert.NotNil(t, c.Reconciler)
	assert.NotNil(t, c.OutboxProcessor)

	health := c.HealthRegistry().GetOverallHealth(ctx)
	assert.Contains(t, health.Checks, "database")
	assert.Contains(t, health.Checks, "outbox")
	assert.Contains(t, health.Checks, "stripe")
	assert.NotContains(t, health.Checks, "redis")
	assert.NotContains(t, health.Checks, "rabbitmq")
	assert.Equal(t, observability.HealthStatusHealthy, health.Status)
}

func TestNewContainer_EventsReachAlertSubscriber(t *testing.T) {
	ctx := context.Background()
	c, err := NewContainer(ctx, testConfig(t), discardLogger())
	require.NoError(t, err)
	t.Cleanup(c.Close)

	trainer := domain.NewTrainer(uuid.New(), "Alex Coach")
	trainer.StripeConnectID = "acct_container"
	require.NoError(t, c.TrainerRepo.Create(ctx, trainer))

	payload, err := json.Marshal(map[string]any{
		"id": "dp_container", "charge": "ch_1", "amount": 5000,
		"currency": "usd", "reason": "fraudulent", "status": "needs_response",
	})
	require.NoError(t, err)
	result, err := c.Reconciler.Reconcile(ctx, &domain.Event{
		ID:         "evt_container",
		Type:       domain.EventDisputeCreated,
		AccountRef: "acct_container",
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.FirstSeen, result)

	require.NoError(t, c.OutboxProcessor.ProcessOnce(ctx))

	reasons := map[string]bool{}
	for _, alert := range c.AlertSubscriber.Recent() {
		assert.Equal(t, trainer.ID, alert.TrainerID)
		reasons[alert.Reason] = true
	}
	assert.True(t, reasons["risk_escalated"])
	assert.True(t, reasons[string(domain.ActivityDisputeCreated)])

	pending, dead, err := c.OutboxRepo.Backlog(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)
	assert.Zero(t, dead)
}

func TestOpenDatabase_SQLiteURL(t *testing.T) {
	cfg := &config.Config{DatabaseURL: "sqlite://" + filepath.Join(t.TempDir(), "url.db")}

	conn, err := OpenDatabase(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	assert.Equal(t, database.DriverSQLite, conn.Driver())
	var count int
	require.NoError(t, conn.QueryRow(context.Background(), `SELECT COUNT(*) FROM schema_migrations`).Scan(&count))
	assert.Positive(t, count)
}
