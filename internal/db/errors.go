package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/MacJediWizard/orgtree/internal/apperr"
)

// Constraint names declared by the schema. Repositories map these to the
// closest taxonomy error.
const (
	ConstraintCompaniesPK          = "pk_companies"
	ConstraintBranchesPK           = "pk_branches"
	ConstraintDivisionsPK          = "pk_divisions"
	ConstraintDepartmentsPK        = "pk_departments"
	ConstraintAPIKeysPK            = "pk_api_keys"
	ConstraintHeadquarters         = "uq_branches_company_headquarters"
	ConstraintBranchCompanyFK      = "fk_branches_company"
	ConstraintDivisionCompanyFK    = "fk_divisions_company"
	ConstraintDivisionBranchFK     = "fk_divisions_branch"
	ConstraintDepartmentDivisionFK = "fk_departments_division"
)

// PostgreSQL SQLSTATE codes handled explicitly.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
	pgNotNullViolation    = "23502"
	pgTooManyConnections  = "53300"
	pgAdminShutdown       = "57P01"
	pgCannotConnectNow    = "57P03"
	pgQueryCanceled       = "57014"
)

// mapPostgresError converts pgx errors to the taxonomy.
func mapPostgresError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperr.As(err); ok {
		return err
	}

	if pgErr, ok := asPgError(err); ok {
		switch pgErr.Code {
		case pgUniqueViolation:
			return apperr.ConstraintViolation(apperr.ConstraintUnique, pgErr.ConstraintName, err)
		case pgForeignKeyViolation:
			return apperr.ConstraintViolation(apperr.ConstraintForeignKey, pgErr.ConstraintName, err)
		case pgCheckViolation:
			return apperr.ConstraintViolation(apperr.ConstraintCheck, pgErr.ConstraintName, err)
		case pgNotNullViolation:
			return apperr.ConstraintViolation(apperr.ConstraintNotNull, pgErr.ColumnName, err)
		case pgTooManyConnections, pgAdminShutdown, pgCannotConnectNow, pgQueryCanceled:
			return apperr.BackendUnavailable(err)
		}
		// Class 08: connection exception.
		if strings.HasPrefix(pgErr.Code, "08") {
			return apperr.BackendUnavailable(err)
		}
		return err
	}

	if errors.Is(err, context.Canceled) {
		return err
	}
	if isUnavailable(err) || pgconn.Timeout(err) {
		return apperr.BackendUnavailable(err)
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return apperr.BackendUnavailable(err)
	}
	if strings.Contains(err.Error(), "closed pool") {
		return apperr.BackendUnavailable(err)
	}
	return err
}

var (
	sqliteConstraintPattern = regexp.MustCompile(`(UNIQUE|CHECK|NOT NULL|FOREIGN KEY) constraint failed(?::\s*(.+?))?(?:\s*\(\d+\))?$`)
	sqliteIndexPattern      = regexp.MustCompile(`index '([^']+)'`)
)

// sqliteConstraintNames maps the column lists SQLite reports for UNIQUE and
// PRIMARY KEY failures to the schema's constraint names.
var sqliteConstraintNames = map[string]string{
	"companies.company_code":      ConstraintCompaniesPK,
	"branches.branch_code":        ConstraintBranchesPK,
	"divisions.division_code":     ConstraintDivisionsPK,
	"departments.department_code": ConstraintDepartmentsPK,
	"api_keys.api_key_id":         ConstraintAPIKeysPK,
	"branches.company_code":       ConstraintHeadquarters,
}

// mapSQLiteError converts database/sql and modernc errors to the taxonomy.
func mapSQLiteError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperr.As(err); ok {
		return err
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		switch code & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED, sqlite3.SQLITE_CANTOPEN, sqlite3.SQLITE_IOERR:
			return apperr.BackendUnavailable(err)
		case sqlite3.SQLITE_CONSTRAINT:
			kind, name := parseSQLiteConstraint(code, liteErr.Error())
			return apperr.ConstraintViolation(kind, name, err)
		}
		return err
	}

	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn) ||
		strings.Contains(err.Error(), "database is closed") || isUnavailable(err) {
		return apperr.BackendUnavailable(err)
	}
	return err
}

func parseSQLiteConstraint(code int, msg string) (apperr.ConstraintKind, string) {
	kind := apperr.ConstraintCheck
	switch code {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		kind = apperr.ConstraintUnique
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		kind = apperr.ConstraintForeignKey
	case sqlite3.SQLITE_CONSTRAINT_NOTNULL:
		kind = apperr.ConstraintNotNull
	}

	if m := sqliteIndexPattern.FindStringSubmatch(msg); m != nil {
		return kind, m[1]
	}
	m := sqliteConstraintPattern.FindStringSubmatch(msg)
	if m == nil {
		return kind, ""
	}
	detail := strings.TrimSpace(m[2])
	if name, ok := sqliteConstraintNames[detail]; ok {
		return kind, name
	}
	// CHECK failures report the constraint name; NOT NULL reports the column.
	return kind, detail
}

func isUnavailable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func asPgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}
