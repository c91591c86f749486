// Package db provides the Query Executor used by every repository: a single
// contract with a networked PostgreSQL implementation (pgx) and an embedded
// SQLite implementation (modernc.org/sqlite).
package db

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Backend names.
const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Config holds database connection configuration.
type Config struct {
	// URL selects the networked backend when non-empty.
	URL string
	// SQLitePath is the embedded database file used when URL is empty.
	// ":memory:" keeps the database in process memory.
	SQLitePath string

	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	// AcquireTimeout bounds how long a statement waits for a pooled connection.
	AcquireTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(url string) Config {
	return Config{
		URL:             url,
		SQLitePath:      "data/orgtree.db",
		MaxConns:        25,
		MinConns:        5,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
		AcquireTimeout:  5 * time.Second,
	}
}

// Backend reports which implementation Open will select.
func (c Config) Backend() string {
	if c.URL != "" {
		return BackendPostgres
	}
	return BackendSQLite
}

// Params maps named statement parameters (written @name) to values.
type Params map[string]any

// Result is the backend-independent result of a statement.
type Result struct {
	Rows         []Row
	RowsAffected int64
}

// Executor runs parameterized statements against the configured backend.
//
// Statements reference parameters as @name. Every referenced name must be
// present in Params; values are always bound, never spliced into the text.
// Pool exhaustion, acquisition timeouts and network failures surface as
// apperr.CodeBackendUnavailable. Constraint failures surface as
// apperr.CodeConstraintViolation carrying the constraint name when known.
type Executor interface {
	// Query runs a statement that returns rows (SELECT, or DML with RETURNING).
	Query(ctx context.Context, stmt string, params Params) (*Result, error)
	// Exec runs a statement and reports the affected row count.
	Exec(ctx context.Context, stmt string, params Params) (*Result, error)
	// Dialect exposes the SQL fragments that differ between backends.
	Dialect() Dialect
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	// CurrentVersion reports the highest applied migration, 0 before the first.
	CurrentVersion(ctx context.Context) (int, error)
	Health() map[string]any
	Close()
}

// Open connects to the backend selected by cfg. It does not run migrations.
func Open(ctx context.Context, cfg Config, logger zerolog.Logger) (Executor, error) {
	if cfg.Backend() == BackendPostgres {
		pg, err := NewPostgres(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return pg, nil
	}
	lite, err := NewSQLite(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return lite, nil
}

// Migration represents a database migration.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

func acquireContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
