// Package migrations embeds the schema for both drivers and applies it.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/felixgeelhaar/coachpay/internal/shared/infrastructure/database"
)

//go:embed sqlite/*.sql postgres/*.sql
var migrationsFS embed.FS

const createVersionTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
    version    TEXT PRIMARY KEY,
    applied_at TEXT NOT NULL
)`

// Files lists the up migrations for a driver in apply order.
func Files(driver database.Driver) ([]string, error) {
	dir := dirFor(driver)
	entries, err := fs.ReadDir(migrationsFS, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

// Run applies every migration not yet recorded in schema_migrations.
// It returns the versions applied by this call.
func Run(ctx context.Context, conn database.Connection) ([]string, error) {
	if _, err := conn.Exec(ctx, createVersionTable); err != nil {
		return nil, fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	files, err := Files(conn.Driver())
	if err != nil {
		return nil, err
	}

	var applied []string
	for _, file := range files {
		version := strings.TrimSuffix(file, ".up.sql")

		var existing string
		err := conn.QueryRow(ctx,
			database.Rebind(conn.Driver(), `SELECT version FROM schema_migrations WHERE version = ?`),
			version,
		).Scan(&existing)
		if err == nil {
			continue
		}
		if !database.IsNoRows(err) {
			return applied, fmt.Errorf("failed to check migration %s: %w", version, err)
		}

		body, err := migrationsFS.ReadFile(dirFor(conn.Driver()) + "/" + file)
		if err != nil {
			return applied, fmt.Errorf("failed to read migration %s: %w", file, err)
		}
		if _, err := conn.Exec(ctx, string(body)); err != nil {
			return applied, fmt.Errorf("failed to execute migration %s: %w", file, err)
		}
		if _, err := conn.Exec(ctx,
			database.Rebind(conn.Driver(), `INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`),
			version, database.FormatTime(time.Now()),
		); err != nil {
			return applied, fmt.Errorf("failed to record migration %s: %w", version, err)
		}
		applied = append(applied, version)
	}
	return applied, nil
}

func dirFor(driver database.Driver) string {
	if driver == database.DriverPostgres {
		return "postgres"
	}
	return "sqlite"
}
