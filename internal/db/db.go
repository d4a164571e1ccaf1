// Package db opens the SQLite database backing the sync state store.
// The driver is selected at build time; see the sqlite3 build-tag pair.
package db

import (
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/wpsync/wpsync/internal/utils"
)

// defaultPragma tunes SQLite for a small, single-writer state file.
// WAL keeps readers out of the writer's way; the busy timeout rides out
// a concurrent wpsync process touching another site.
const defaultPragma = `
PRAGMA journal_mode=WAL;
PRAGMA busy_timeout=5000;
PRAGMA foreign_keys=ON;
PRAGMA temp_store=MEMORY;
`

type config struct {
	path         string
	maxOpenConns int
}

// SqliteOption configures NewSqliteDB.
type SqliteOption func(*config)

// WithPath sets the database file. ":memory:" keeps everything
// in-process, which the tests use.
func WithPath(path string) SqliteOption {
	return func(c *config) { c.path = path }
}

// WithMaxOpenConns caps the connection pool. The state store uses 1:
// its access pattern is strictly read-modify-write.
func WithMaxOpenConns(n int) SqliteOption {
	return func(c *config) { c.maxOpenConns = n }
}

// NewSqliteDB opens the database, creating the file and its parent
// directory when needed, and applies the pragmas.
func NewSqliteDB(opts ...SqliteOption) (*sqlx.DB, error) {
	cfg := &config{path: ":memory:"}
	for _, opt := range opts {
		opt(cfg)
	}

	dsn := cfg.path
	if cfg.path != ":memory:" {
		if err := utils.EnsureParent(cfg.path); err != nil {
			return nil, fmt.Errorf("create state directory: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_txlock=immediate&mode=rwc", cfg.path)
	}

	slog.Debug("opening state database", "driver", driverID, "path", cfg.path)
	conn, err := sqlx.Connect(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.path, err)
	}

	if cfg.maxOpenConns > 0 {
		conn.SetMaxOpenConns(cfg.maxOpenConns)
	}

	if _, err := conn.Exec(defaultPragma); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}
	return conn, nil
}
