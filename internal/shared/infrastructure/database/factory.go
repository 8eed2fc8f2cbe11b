package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Config selects and configures the store.
type Config struct {
	// Driver is detected from URL when empty.
	Driver Driver
	// URL is the PostgreSQL connection string, or a sqlite:// URL.
	URL string
	// SQLitePath overrides the file a SQLite store uses. When both it and a
	// sqlite:// URL are empty, DefaultSQLitePath is used.
	SQLitePath string
	// MaxConns caps the PostgreSQL pool.
	MaxConns int
}

// Opener opens a connection for one driver.
type Opener func(ctx context.Context, cfg Config) (Connection, error)

var (
	openersMu sync.RWMutex
	openers   = map[Driver]Opener{}
)

// Register makes a driver available to NewConnection. Driver packages call it
// from init; import them for side effects.
func Register(driver Driver, open Opener) {
	openersMu.Lock()
	defer openersMu.Unlock()
	openers[driver] = open
}

// NewConnection opens the store described by cfg.
func NewConnection(ctx context.Context, cfg Config) (Connection, error) {
	cfg = cfg.resolved()

	openersMu.RLock()
	open, ok := openers[cfg.Driver]
	openersMu.RUnlock()
	if !ok {
		if cfg.Driver.IsValid() {
			return nil, fmt.Errorf("%s driver not registered", cfg.Driver)
		}
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
	return open(ctx, cfg)
}

func (c Config) resolved() Config {
	if c.Driver == "" {
		c.Driver = DetectDriver(c.URL)
	}
	if c.Driver == DriverSQLite && c.SQLitePath == "" {
		if c.URL != "" {
			c.SQLitePath = SQLitePathFromURL(c.URL)
		} else {
			c.SQLitePath = DefaultSQLitePath()
		}
	}
	return c
}

// DefaultSQLitePath is ~/.coachpay/coachpay.db.
func DefaultSQLitePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, ".coachpay", "coachpay.db")
}

// EnsureDirectory creates the parent directory of path.
func EnsureDirectory(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o750)
}
