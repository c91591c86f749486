package db

import (
	"fmt"
	"strings"
)

// Dialect isolates the SQL fragments that differ between backends so that
// repositories never branch on backend identity.
type Dialect interface {
	Name() string
	// Match returns a case-insensitive substring predicate of column against
	// the pattern bound to param. The pattern is built with LikePattern.
	Match(column, param string) string
	// Paginate returns the row-window clause for the given parameters.
	Paginate(limitParam, offsetParam string) string
}

type postgresDialect struct{}

func (postgresDialect) Name() string { return BackendPostgres }

func (postgresDialect) Match(column, param string) string {
	return fmt.Sprintf(`%s ILIKE @%s ESCAPE '\'`, column, param)
}

func (postgresDialect) Paginate(limitParam, offsetParam string) string {
	return fmt.Sprintf(" LIMIT @%s OFFSET @%s", limitParam, offsetParam)
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string { return BackendSQLite }

// Match relies on LIKE, which SQLite evaluates case-insensitively for ASCII.
// Thai script has no letter case.
func (sqliteDialect) Match(column, param string) string {
	return fmt.Sprintf(`%s LIKE @%s ESCAPE '\'`, column, param)
}

func (sqliteDialect) Paginate(limitParam, offsetParam string) string {
	return fmt.Sprintf(" LIMIT @%s OFFSET @%s", limitParam, offsetParam)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// LikePattern escapes LIKE metacharacters in term and wraps it for a
// substring match.
func LikePattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}
