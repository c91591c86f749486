package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MacJediWizard/orgtree/internal/apperr"
)

func newTestSQLite(t *testing.T) *SQLite {
	t.Helper()

	cfg := DefaultConfig("")
	cfg.SQLitePath = filepath.Join(t.TempDir(), "orgtree.db")
	cfg.MaxConns = 4

	ctx := context.Background()
	exec, err := NewSQLite(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(exec.Close)

	require.NoError(t, exec.Migrate(ctx))
	return exec
}

func insertCompany(t *testing.T, exec Executor, code string) {
	t.Helper()
	now := time.Now().UTC()
	_, err := exec.Exec(context.Background(), `
		INSERT INTO companies (company_code, name_th, is_active, created_by, created_at, updated_by, updated_at)
		VALUES (@code, @name, @active, 'test', @now, 'test', @now)`,
		Params{"code": code, "name": "Company " + code, "active": true, "now": now})
	require.NoError(t, err)
}

func TestSQLiteMigrateIsIdempotent(t *testing.T) {
	exec := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, exec.Migrate(ctx))

	version, err := exec.CurrentVersion(ctx)
	require.NoError(t, err)
	latest, err := LatestVersion(BackendSQLite)
	require.NoError(t, err)
	assert.Equal(t, latest, version)
	assert.Equal(t, 1, version)
}

func TestSQLiteQueryNormalizesTypes(t *testing.T) {
	exec := newTestSQLite(t)
	insertCompany(t, exec, "ACME")

	res, err := exec.Query(context.Background(),
		`SELECT company_code, is_active, created_at FROM companies WHERE company_code = @code`,
		Params{"code": "ACME"})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)

	row := res.Rows[0]
	assert.Equal(t, "ACME", row.String("company_code"))
	assert.Equal(t, true, row["is_active"])
	assert.True(t, row.Bool("is_active"))
	assert.WithinDuration(t, time.Now(), row.Time("created_at"), time.Minute)
}

func TestSQLiteMissingParameter(t *testing.T) {
	exec := newTestSQLite(t)

	_, err := exec.Query(context.Background(),
		`SELECT * FROM companies WHERE company_code = @code AND is_active = @active`,
		Params{"code": "ACME"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "@active")
}

func TestSQLiteBindingNeverInterpolates(t *testing.T) {
	exec := newTestSQLite(t)
	insertCompany(t, exec, "ACME")

	hostile := "ACME' OR '1'='1"
	res, err := exec.Query(context.Background(),
		`SELECT company_code FROM companies WHERE company_code = @code`, Params{"code": hostile})
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
}

func TestSQLiteExecRowsAffected(t *testing.T) {
	exec := newTestSQLite(t)
	insertCompany(t, exec, "ACME")
	insertCompany(t, exec, "GLOBEX")

	res, err := exec.Exec(context.Background(),
		`UPDATE companies SET is_active = @active`, Params{"active": false})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.RowsAffected)
}

func TestSQLiteReturningClause(t *testing.T) {
	exec := newTestSQLite(t)
	insertCompany(t, exec, "ACME")

	res, err := exec.Query(context.Background(),
		`UPDATE companies SET name_en = @name WHERE company_code = @code RETURNING company_code, name_en`,
		Params{"name": "Acme", "code": "ACME"})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "Acme", res.Rows[0].String("name_en"))
}

func TestSQLiteDuplicatePrimaryKey(t *testing.T) {
	exec := newTestSQLite(t)
	insertCompany(t, exec, "ACME")

	now := time.Now().UTC()
	_, err := exec.Exec(context.Background(), `
		INSERT INTO companies (company_code, name_th, created_by, created_at, updated_by, updated_at)
		VALUES (@code, 'dup', 'test', @now, 'test', @now)`,
		Params{"code": "ACME", "now": now})

	e, ok := apperr.As(err)
	require.True(t, ok, "expected taxonomy error, got %v", err)
	assert.Equal(t, apperr.CodeConstraintViolation, e.Code)
	assert.Equal(t, apperr.ConstraintUnique, e.Kind)
	assert.Equal(t, ConstraintCompaniesPK, e.Constraint)
}

func TestSQLiteHeadquartersIndex(t *testing.T) {
	exec := newTestSQLite(t)
	insertCompany(t, exec, "ACME")
	ctx := context.Background()
	now := time.Now().UTC()

	insert := `
		INSERT INTO branches (branch_code, company_code, name, is_headquarters, is_active, created_by, created_at, updated_by, updated_at)
		VALUES (@code, 'ACME', @code, @hq, @active, 'test', @now, 'test', @now)`

	_, err := exec.Exec(ctx, insert, Params{"code": "ACME-HQ", "hq": true, "active": true, "now": now})
	require.NoError(t, err)

	// An inactive headquarters row does not collide.
	_, err = exec.Exec(ctx, insert, Params{"code": "ACME-OLD", "hq": true, "active": false, "now": now})
	require.NoError(t, err)

	_, err = exec.Exec(ctx, insert, Params{"code": "ACME-BKK", "hq": true, "active": true, "now": now})
	e, ok := apperr.As(err)
	require.True(t, ok, "expected taxonomy error, got %v", err)
	assert.Equal(t, apperr.CodeConstraintViolation, e.Code)
	assert.Equal(t, ConstraintHeadquarters, e.Constraint)
}

func TestSQLiteForeignKeyEnforced(t *testing.T) {
	exec := newTestSQLite(t)
	now := time.Now().UTC()

	_, err := exec.Exec(context.Background(), `
		INSERT INTO branches (branch_code, company_code, name, created_by, created_at, updated_by, updated_at)
		VALUES ('X-1', 'MISSING', 'x', 'test', @now, 'test', @now)`, Params{"now": now})

	e, ok := apperr.As(err)
	require.True(t, ok, "expected taxonomy error, got %v", err)
	assert.Equal(t, apperr.ConstraintForeignKey, e.Kind)
}

func TestSQLiteClosedIsUnavailable(t *testing.T) {
	exec := newTestSQLite(t)
	exec.Close()

	_, err := exec.Query(context.Background(), `SELECT 1`, nil)
	assert.True(t, apperr.IsCode(err, apperr.CodeBackendUnavailable), "got %v", err)
}

func TestSQLiteMatchDialect(t *testing.T) {
	exec := newTestSQLite(t)
	insertCompany(t, exec, "ACME_1")
	insertCompany(t, exec, "ACMEX1")

	d := exec.Dialect()
	res, err := exec.Query(context.Background(),
		`SELECT company_code FROM companies WHERE `+d.Match("company_code", "q"),
		Params{"q": LikePattern("acme_")})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "ACME_1", res.Rows[0].String("company_code"))
}

func TestOpenSelectsBackend(t *testing.T) {
	cfg := DefaultConfig("")
	cfg.SQLitePath = filepath.Join(t.TempDir(), "open.db")

	exec, err := Open(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer exec.Close()

	assert.Equal(t, BackendSQLite, exec.Dialect().Name())
	assert.Equal(t, BackendPostgres, DefaultConfig("postgres://localhost/db").Backend())
}

func TestSQLiteInMemory(t *testing.T) {
	cfg := DefaultConfig("")
	cfg.SQLitePath = ":memory:"
	ctx := context.Background()

	exec, err := NewSQLite(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	defer exec.Close()

	require.NoError(t, exec.Migrate(ctx))
	insertCompany(t, exec, "ACME")

	res, err := exec.Query(ctx, `SELECT COUNT(*) AS n FROM companies`, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Rows[0].Int64("n"))
}
