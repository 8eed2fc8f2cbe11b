package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Resolved(t *testing.T) {
	tests := []struct {
		name       string
		cfg        Config
		driver     Driver
		sqlitePath string
	}{
		{"sqlite url", Config{URL: "sqlite:///srv/coachpay.db"}, DriverSQLite, "/srv/coachpay.db"},
		{"explicit path wins", Config{URL: "sqlite:///srv/a.db", SQLitePath: "/tmp/b.db"}, DriverSQLite, "/tmp/b.db"},
		{"empty falls back to home", Config{}, DriverSQLite, DefaultSQLitePath()},
		{"postgres keeps path empty", Config{URL: "postgres://db/coachpay"}, DriverPostgres, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.cfg.resolved()
			assert.Equal(t, tt.driver, got.Driver)
			assert.Equal(t, tt.sqlitePath, got.SQLitePath)
		})
	}
}

func TestNewConnection_UsesRegisteredOpener(t *testing.T) {
	const fake Driver = "fake"
	var seen Config
	Register(fake, func(_ context.Context, cfg Config) (Connection, error) {
		seen = cfg
		return nil, nil
	})
	t.Cleanup(func() {
		openersMu.Lock()
		delete(openers, fake)
		openersMu.Unlock()
	})

	_, err := NewConnection(context.Background(), Config{Driver: fake, URL: "fake://x"})
	require.NoError(t, err)
	assert.Equal(t, "fake://x", seen.URL)

	_, err = NewConnection(context.Background(), Config{Driver: "mysql"})
	assert.EqualError(t, err, "unsupported database driver: mysql")
}
