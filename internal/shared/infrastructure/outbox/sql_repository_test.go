package outbox_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/felixgeelhaar/coachpay/internal/shared/application"
	"github.com/felixgeelhaar/coachpay/internal/shared/domain"
	"github.com/felixgeelhaar/coachpay/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/coachpay/internal/shared/infrastructure/database/sqlite"
	"github.com/felixgeelhaar/coachpay/internal/shared/infrastructure/migrations"
	"github.com/felixgeelhaar/coachpay/internal/shared/infrastructure/outbox"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRepo(t *testing.T) (*outbox.SQLRepository, database.Connection) {
	t.Helper()
	ctx := context.Background()
	conn, err := sqlite.NewConnection(ctx, database.Config{SQLitePath: filepath.Join(t.TempDir(), "outbox.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	_, err = migrations.Run(ctx, conn)
	require.NoError(t, err)
	return outbox.NewSQLRepository(conn), conn
}

func TestSQLRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo, _ := setupRepo(t)

	first := newTestMessage("payments.activity.recorded")
	second := newTestMessage("payments.trainer.risk_changed")
	require.NoError(t, repo.Save(ctx, first))
	require.NoError(t, repo.Save(ctx, second))
	assert.NotZero(t, first.ID)
	assert.Greater(t, second.ID, first.ID)

	due, err := repo.GetUnpublished(ctx, 10)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, first.EventID, due[0].EventID)
	assert.JSONEq(t, string(first.Payload), string(due[0].Payload))

	require.NoError(t, repo.MarkFailed(ctx, first.ID, "broker down", time.Now().Add(time.Hour)))
	require.NoError(t, repo.MarkPublished(ctx, second.ID))

	due, err = repo.GetUnpublished(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	pending, dead, err := repo.Backlog(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending)
	assert.Zero(t, dead)

	require.NoError(t, repo.MarkDead(ctx, first.ID, "gave up"))
	pending, dead, err = repo.Backlog(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)
	assert.Equal(t, int64(1), dead)

	deleted, err := repo.DeleteOld(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestSQLRepository_AppendJoinsUnitOfWork(t *testing.T) {
	ctx := context.Background()
	repo, conn := setupRepo(t)
	uow := database.NewUnitOfWork(conn)

	event := &riskChanged{
		BaseEvent: domain.NewBaseEvent(uuid.New(), "trainer", "payments.trainer.risk_changed"),
		From:      "low",
		To:        "medium",
	}

	boom := errors.New("boom")
	err := application.WithUnitOfWork(ctx, uow, func(txCtx context.Context) error {
		require.NoError(t, repo.Append(txCtx, event))
		return boom
	})
	require.ErrorIs(t, err, boom)

	due, err := repo.GetUnpublished(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	err = application.WithUnitOfWork(ctx, uow, func(txCtx context.Context) error {
		return repo.Append(txCtx, event)
	})
	require.NoError(t, err)

	due, err = repo.GetUnpublished(ctx, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, event.EventID(), due[0].EventID)
}
