package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/MacJediWizard/orgtree/internal/apperr"
)

const memoryPath = ":memory:"

// SQLite is the embedded Executor used when no networked database is
// configured. It runs in process through modernc.org/sqlite.
type SQLite struct {
	db             *sql.DB
	path           string
	acquireTimeout time.Duration
	logger         zerolog.Logger
}

// NewSQLite opens (creating if needed) the database file at cfg.SQLitePath.
func NewSQLite(ctx context.Context, cfg Config, logger zerolog.Logger) (*SQLite, error) {
	path := cfg.SQLitePath
	if path == "" {
		path = memoryPath
	}

	if path != memoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return newSQLiteFromDB(ctx, db, path, cfg, logger)
}

func newSQLiteFromDB(ctx context.Context, db *sql.DB, path string, cfg Config, logger zerolog.Logger) (*SQLite, error) {
	if path == memoryPath {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	} else if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(int(cfg.MaxConns))
	}
	db.SetConnMaxLifetime(cfg.MaxConnLifetime)
	db.SetConnMaxIdleTime(cfg.MaxConnIdleTime)

	s := &SQLite{
		db:             db,
		path:           path,
		acquireTimeout: cfg.AcquireTimeout,
		logger:         logger.With().Str("component", "db").Str("backend", BackendSQLite).Logger(),
	}

	if err := s.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s.logger.Info().Str("path", path).Msg("embedded database opened")
	return s, nil
}

func sqliteDSN(path string) string {
	pragmas := []string{
		"_pragma=foreign_keys(1)",
		"_pragma=busy_timeout(5000)",
	}
	if path != memoryPath {
		pragmas = append(pragmas, "_pragma=journal_mode(WAL)")
	}
	return path + "?" + strings.Join(pragmas, "&")
}

// Dialect returns the SQLite dialect.
func (s *SQLite) Dialect() Dialect { return sqliteDialect{} }

// conn takes a pooled connection, waiting at most acquireTimeout.
func (s *SQLite) conn(ctx context.Context) (*sql.Conn, error) {
	actx, cancel := acquireContext(ctx, s.acquireTimeout)
	defer cancel()

	conn, err := s.db.Conn(actx)
	if err != nil {
		return nil, apperr.BackendUnavailable(fmt.Errorf("acquire connection: %w", err))
	}
	return conn, nil
}

// Query runs a row-returning statement.
func (s *SQLite) Query(ctx context.Context, stmt string, params Params) (*Result, error) {
	args, err := bindParams(stmt, params)
	if err != nil {
		return nil, err
	}

	conn, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, stmt, namedArgs(args)...)
	if err != nil {
		return nil, mapSQLiteError(err)
	}
	defer rows.Close()

	result, err := collectRows(rows)
	if err != nil {
		return nil, mapSQLiteError(err)
	}
	return result, nil
}

// Exec runs a statement that does not return rows.
func (s *SQLite) Exec(ctx context.Context, stmt string, params Params) (*Result, error) {
	args, err := bindParams(stmt, params)
	if err != nil {
		return nil, err
	}

	conn, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	res, err := conn.ExecContext(ctx, stmt, namedArgs(args)...)
	if err != nil {
		return nil, mapSQLiteError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, mapSQLiteError(err)
	}
	return &Result{RowsAffected: affected}, nil
}

func namedArgs(params Params) []any {
	args := make([]any, 0, len(params))
	for name, v := range params {
		args = append(args, sql.Named(name, v))
	}
	return args
}

// collectRows converts rows into Row maps. Columns declared BOOLEAN come back
// from SQLite as integers and are converted to bool here.
func collectRows(rows *sql.Rows) (*Result, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("read column types: %w", err)
	}
	boolCols := make([]bool, len(cols))
	for i, ct := range types {
		boolCols[i] = strings.EqualFold(ct.DatabaseTypeName(), "BOOLEAN")
	}

	result := &Result{}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		row := make(Row, len(cols))
		for i, col := range cols {
			v := values[i]
			if n, ok := v.(int64); ok && boolCols[i] {
				v = n != 0
			}
			row[col] = v
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	result.RowsAffected = int64(len(result.Rows))
	return result, nil
}

// Ping verifies the database is reachable.
func (s *SQLite) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return mapSQLiteError(err)
	}
	return nil
}

// Close closes the database.
func (s *SQLite) Close() {
	if err := s.db.Close(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to close embedded database")
		return
	}
	s.logger.Info().Msg("embedded database closed")
}

// Health returns connection statistics.
func (s *SQLite) Health() map[string]any {
	stats := s.db.Stats()
	return map[string]any{
		"backend":          BackendSQLite,
		"path":             s.path,
		"open_conns":       stats.OpenConnections,
		"in_use":           stats.InUse,
		"idle":             stats.Idle,
		"max_open_conns":   stats.MaxOpenConnections,
		"wait_count":       stats.WaitCount,
		"wait_duration":    stats.WaitDuration.String(),
		"max_idle_closed":  stats.MaxIdleClosed,
		"max_lifetime_dst": stats.MaxLifetimeClosed,
	}
}

// Migrate runs all pending migrations, each in its own transaction.
func (s *SQLite) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	migrations, err := GetMigrations(BackendSQLite)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		var exists bool
		err := s.db.QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = ?)", m.Version,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}

		if exists {
			s.logger.Debug().Int("version", m.Version).Str("name", m.Name).Msg("migration already applied")
			continue
		}

		s.logger.Info().Int("version", m.Version).Str("name", m.Name).Msg("applying migration")

		if err := s.applyMigration(ctx, m); err != nil {
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Name, err)
		}

		s.logger.Info().Int("version", m.Version).Str("name", m.Name).Msg("migration applied successfully")
	}

	return nil
}

func (s *SQLite) applyMigration(ctx context.Context, m Migration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v, original error: %w", rbErr, err)
		}
		return fmt.Errorf("execute migration SQL: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, name) VALUES (?, ?)", m.Version, m.Name,
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record migration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// CurrentVersion returns the current schema version.
func (s *SQLite) CurrentVersion(ctx context.Context) (int, error) {
	var version int
	err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		if strings.Contains(err.Error(), "no such table") {
			return 0, nil
		}
		return 0, fmt.Errorf("get current version: %w", err)
	}
	return version, nil
}
