// Package persistence implements the payments repositories for both
// supported drivers. Queries are written once with '?' placeholders and
// rebound per connection.
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/felixgeelhaar/coachpay/internal/shared/infrastructure/database"
	"github.com/google/uuid"
)

type store struct {
	conn database.Connection
}

func (s store) exec(ctx context.Context) database.Executor {
	return database.ExecutorFromContext(ctx, s.conn)
}

func (s store) q(query string) string {
	return database.Rebind(s.conn.Driver(), query)
}

func now() string {
	return database.FormatTime(time.Now())
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func ptrString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

func decodeMap(column, raw string) (map[string]any, error) {
	m := map[string]any{}
	if raw == "" {
		return m, nil
	}
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("decode %s: %w", column, err)
	}
	return m, nil
}

func parseUUIDs(dst []*uuid.UUID, src ...string) error {
	for i, s := range src {
		id, err := uuid.Parse(s)
		if err != nil {
			return err
		}
		*dst[i] = id
	}
	return nil
}
