//go:build integration

package db

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/MacJediWizard/orgtree/internal/apperr"
)

var testPG *Postgres

func TestMain(m *testing.M) {
	if !dockerAvailable() {
		fmt.Println("Docker is not available, skipping integration tests")
		os.Exit(0)
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("orgtree_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		log.Fatalf("failed to start postgres container: %v", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		pgContainer.Terminate(ctx)
		log.Fatalf("failed to get connection string: %v", err)
	}

	logger := zerolog.New(zerolog.NewConsoleWriter())
	cfg := DefaultConfig(connStr)
	cfg.MaxConns = 5
	cfg.MinConns = 1

	testPG, err = NewPostgres(ctx, cfg, logger)
	if err != nil {
		pgContainer.Terminate(ctx)
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := testPG.Migrate(ctx); err != nil {
		testPG.Close()
		pgContainer.Terminate(ctx)
		log.Fatalf("failed to run migrations: %v", err)
	}

	code := m.Run()

	testPG.Close()
	pgContainer.Terminate(ctx)

	os.Exit(code)
}

func dockerAvailable() bool {
	cmd := exec.Command("docker", "info")
	return cmd.Run() == nil
}

func setupPostgres(t *testing.T) *Postgres {
	t.Helper()
	_, err := testPG.Exec(context.Background(),
		`TRUNCATE api_keys, departments, divisions, branches, companies CASCADE`, nil)
	require.NoError(t, err)
	return testPG
}

func TestPostgresMigrateIsIdempotent(t *testing.T) {
	pg := setupPostgres(t)
	ctx := context.Background()

	require.NoError(t, pg.Migrate(ctx))
	version, err := pg.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, version)
}

func TestPostgresQueryAndExec(t *testing.T) {
	pg := setupPostgres(t)
	insertCompany(t, pg, "ACME")
	insertCompany(t, pg, "GLOBEX")

	res, err := pg.Query(context.Background(),
		`SELECT company_code, is_active, created_at FROM companies WHERE company_code = @code`,
		Params{"code": "ACME"})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.True(t, res.Rows[0].Bool("is_active"))
	assert.False(t, res.Rows[0].Time("created_at").IsZero())

	res, err = pg.Exec(context.Background(), `UPDATE companies SET is_active = @active`, Params{"active": false})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.RowsAffected)
}

func TestPostgresMatchIsCaseInsensitive(t *testing.T) {
	pg := setupPostgres(t)
	insertCompany(t, pg, "ACME_1")
	insertCompany(t, pg, "ACMEX1")

	res, err := pg.Query(context.Background(),
		`SELECT company_code FROM companies WHERE `+pg.Dialect().Match("company_code", "q"),
		Params{"q": LikePattern("acme_")})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "ACME_1", res.Rows[0].String("company_code"))
}

func TestPostgresConstraintNames(t *testing.T) {
	pg := setupPostgres(t)
	insertCompany(t, pg, "ACME")
	ctx := context.Background()
	now := time.Now().UTC()

	insert := `
		INSERT INTO branches (branch_code, company_code, name, is_headquarters, is_active, created_by, created_at, updated_by, updated_at)
		VALUES (@code, @company, @code, @hq, TRUE, 'test', @now, 'test', @now)`

	_, err := pg.Exec(ctx, insert, Params{"code": "ACME-HQ", "company": "ACME", "hq": true, "now": now})
	require.NoError(t, err)

	_, err = pg.Exec(ctx, insert, Params{"code": "ACME-BKK", "company": "ACME", "hq": true, "now": now})
	e, ok := apperr.As(err)
	require.True(t, ok, "expected taxonomy error, got %v", err)
	assert.Equal(t, ConstraintHeadquarters, e.Constraint)

	_, err = pg.Exec(ctx, insert, Params{"code": "ACME-HQ", "company": "ACME", "hq": false, "now": now})
	e, ok = apperr.As(err)
	require.True(t, ok, "expected taxonomy error, got %v", err)
	assert.Equal(t, ConstraintBranchesPK, e.Constraint)

	_, err = pg.Exec(ctx, insert, Params{"code": "X-1", "company": "MISSING", "hq": false, "now": now})
	e, ok = apperr.As(err)
	require.True(t, ok, "expected taxonomy error, got %v", err)
	assert.Equal(t, apperr.ConstraintForeignKey, e.Kind)
	assert.Equal(t, ConstraintBranchCompanyFK, e.Constraint)
}

func TestPostgresAcquireTimeout(t *testing.T) {
	pg := setupPostgres(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := pg.Query(ctx, `SELECT 1 AS one`, nil)
	require.Error(t, err)
}
