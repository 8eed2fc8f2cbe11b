package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/coachpay/internal/shared/infrastructure/database"
)

func openTestConnection(t *testing.T) database.Connection {
	t.Helper()
	conn, err := NewConnection(context.Background(), database.Config{
		Driver:     database.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "nested", "test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestNewConnection_CreatesDirectory(t *testing.T) {
	conn := openTestConnection(t)

	assert.NoError(t, conn.Ping(context.Background()))
	assert.Equal(t, database.DriverSQLite, conn.Driver())
}

func TestNewConnection_RegisteredWithFactory(t *testing.T) {
	conn, err := database.NewConnection(context.Background(), database.Config{
		SQLitePath: filepath.Join(t.TempDir(), "factory.db"),
	})
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, database.DriverSQLite, conn.Driver())
}

func TestBuildDSN(t *testing.T) {
	assert.Contains(t, buildDSN("/tmp/a.db"), "/tmp/a.db?_pragma=journal_mode(WAL)")
	assert.Contains(t, buildDSN("file:a.db?mode=rwc"), "file:a.db?mode=rwc&_pragma=")
}

func TestConnection_ForeignKeysEnabled(t *testing.T) {
	conn := openTestConnection(t)

	var enabled int
	require.NoError(t, conn.QueryRow(context.Background(), `PRAGMA foreign_keys`).Scan(&enabled))
	assert.Equal(t, 1, enabled)
}

func TestConnection_UniqueViolationDetected(t *testing.T) {
	ctx := context.Background()
	conn := openTestConnection(t)

	_, err := conn.Exec(ctx, `CREATE TABLE ledger (event_id TEXT PRIMARY KEY)`)
	require.NoError(t, err)
	_, err = conn.Exec(ctx, `INSERT INTO ledger (event_id) VALUES (?)`, "evt_1")
	require.NoError(t, err)

	_, err = conn.Exec(ctx, `INSERT INTO ledger (event_id) VALUES (?)`, "evt_1")
	require.Error(t, err)
	assert.True(t, database.IsUniqueViolation(err))

	result, err := conn.Exec(ctx, `INSERT INTO ledger (event_id) VALUES (?) ON CONFLICT (event_id) DO NOTHING`, "evt_1")
	require.NoError(t, err)
	affected, err := result.RowsAffected()
	require.NoError(t, err)
	assert.Equal(t, int64(0), affected)
}

func TestConnection_UnitOfWorkRollback(t *testing.T) {
	ctx := context.Background()
	conn := openTestConnection(t)

	_, err := conn.Exec(ctx, `CREATE TABLE counters (id TEXT PRIMARY KEY, n INTEGER NOT NULL)`)
	require.NoError(t, err)
	_, err = conn.Exec(ctx, `INSERT INTO counters (id, n) VALUES ('t1', 0)`)
	require.NoError(t, err)

	uow := database.NewUnitOfWork(conn)
	txCtx, err := uow.Begin(ctx)
	require.NoError(t, err)

	exec := database.ExecutorFromContext(txCtx, conn)
	_, err = exec.Exec(txCtx, `UPDATE counters SET n = n + 1 WHERE id = 't1'`)
	require.NoError(t, err)
	require.NoError(t, uow.Rollback(txCtx))

	var n int
	require.NoError(t, conn.QueryRow(ctx, `SELECT n FROM counters WHERE id = 't1'`).Scan(&n))
	assert.Equal(t, 0, n)
}
