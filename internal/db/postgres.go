package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/MacJediWizard/orgtree/internal/apperr"
)

// migrationLockID is the advisory lock key that serializes migrations across
// server replicas.
const migrationLockID int64 = 4817210593

// Postgres is the networked Executor backed by a pgxpool.Pool.
type Postgres struct {
	Pool           *pgxpool.Pool
	acquireTimeout time.Duration
	logger         zerolog.Logger
}

// NewPostgres creates a connection pool and verifies it with a ping.
func NewPostgres(ctx context.Context, cfg Config, logger zerolog.Logger) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	pg := &Postgres{
		Pool:           pool,
		acquireTimeout: cfg.AcquireTimeout,
		logger:         logger.With().Str("component", "db").Str("backend", BackendPostgres).Logger(),
	}

	if err := pg.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	pg.logger.Info().Msg("database connection pool established")
	return pg, nil
}

// Dialect returns the PostgreSQL dialect.
func (p *Postgres) Dialect() Dialect { return postgresDialect{} }

// acquire takes a pooled connection, waiting at most acquireTimeout.
func (p *Postgres) acquire(ctx context.Context) (*pgxpool.Conn, error) {
	actx, cancel := acquireContext(ctx, p.acquireTimeout)
	defer cancel()

	conn, err := p.Pool.Acquire(actx)
	if err != nil {
		return nil, apperr.BackendUnavailable(fmt.Errorf("acquire connection: %w", err))
	}
	return conn, nil
}

// Query runs a row-returning statement.
func (p *Postgres) Query(ctx context.Context, stmt string, params Params) (*Result, error) {
	args, err := bindParams(stmt, params)
	if err != nil {
		return nil, err
	}

	conn, err := p.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, stmt, pgx.NamedArgs(args))
	if err != nil {
		return nil, mapPostgresError(err)
	}

	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, mapPostgresError(err)
	}

	result := &Result{Rows: make([]Row, len(maps)), RowsAffected: int64(len(maps))}
	for i, m := range maps {
		result.Rows[i] = Row(m)
	}
	return result, nil
}

// Exec runs a statement that does not return rows.
func (p *Postgres) Exec(ctx context.Context, stmt string, params Params) (*Result, error) {
	args, err := bindParams(stmt, params)
	if err != nil {
		return nil, err
	}

	conn, err := p.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, stmt, pgx.NamedArgs(args))
	if err != nil {
		return nil, mapPostgresError(err)
	}
	return &Result{RowsAffected: tag.RowsAffected()}, nil
}

// Ping verifies the database connection is alive.
func (p *Postgres) Ping(ctx context.Context) error {
	if err := p.Pool.Ping(ctx); err != nil {
		return mapPostgresError(err)
	}
	return nil
}

// Close closes the database connection pool.
func (p *Postgres) Close() {
	p.Pool.Close()
	p.logger.Info().Msg("database connection pool closed")
}

// Health returns basic health information about the connection pool.
func (p *Postgres) Health() map[string]any {
	stats := p.Pool.Stat()
	return map[string]any{
		"backend":          BackendPostgres,
		"total_conns":      stats.TotalConns(),
		"acquired_conns":   stats.AcquiredConns(),
		"idle_conns":       stats.IdleConns(),
		"max_conns":        stats.MaxConns(),
		"empty_acquire":    stats.EmptyAcquireCount(),
		"canceled_acquire": stats.CanceledAcquireCount(),
		"acquire_duration": stats.AcquireDuration().String(),
	}
}

// Migrate runs all pending database migrations.
func (p *Postgres) Migrate(ctx context.Context) error {
	conn, err := p.Pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection for migration lock: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", migrationLockID); err != nil {
		return fmt.Errorf("acquire migration advisory lock: %w", err)
	}
	defer func() {
		_, _ = conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", migrationLockID)
	}()

	_, err = conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			applied_at TIMESTAMPTZ DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	migrations, err := GetMigrations(BackendPostgres)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		var exists bool
		err := conn.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)",
			m.Version,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}

		if exists {
			p.logger.Debug().Int("version", m.Version).Str("name", m.Name).Msg("migration already applied")
			continue
		}

		p.logger.Info().Int("version", m.Version).Str("name", m.Name).Msg("applying migration")

		err = pgx.BeginFunc(ctx, conn, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, m.SQL); err != nil {
				return fmt.Errorf("execute migration SQL: %w", err)
			}
			if _, err := tx.Exec(ctx,
				"INSERT INTO schema_migrations (version, name) VALUES ($1, $2)",
				m.Version, m.Name,
			); err != nil {
				return fmt.Errorf("record migration: %w", err)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Name, err)
		}

		p.logger.Info().Int("version", m.Version).Str("name", m.Name).Msg("migration applied successfully")
	}

	return nil
}

// CurrentVersion returns the current schema version.
func (p *Postgres) CurrentVersion(ctx context.Context) (int, error) {
	var version int
	err := p.Pool.QueryRow(ctx,
		"SELECT COALESCE(MAX(version), 0) FROM schema_migrations",
	).Scan(&version)
	if err != nil {
		if pgErr, ok := asPgError(err); ok && pgErr.Code == "42P01" {
			return 0, nil
		}
		return 0, fmt.Errorf("get current version: %w", err)
	}
	return version, nil
}
