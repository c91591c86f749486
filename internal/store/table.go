package store

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/MacJediWizard/orgtree/internal/apperr"
	"github.com/MacJediWizard/orgtree/internal/db"
	"github.com/MacJediWizard/orgtree/internal/models"
)

// table describes one entity table. Identifiers in it are fixed at compile
// time; caller-supplied values only ever reach the database as parameters.
type table struct {
	name     string
	kind     models.Kind
	key      string
	columns  string
	sorts    map[string]string
	children []childRef
}

// childRef is a table whose active rows block deactivating or deleting a parent.
type childRef struct {
	table  string
	column string
}

// predicate accumulates WHERE clauses and their parameters.
type predicate struct {
	clauses []string
	params  db.Params
}

func newPredicate() *predicate {
	return &predicate{params: db.Params{}}
}

func (p *predicate) eq(column, param string, value any) {
	p.clauses = append(p.clauses, fmt.Sprintf("%s = @%s", column, param))
	p.params[param] = value
}

func (p *predicate) add(clause string) {
	p.clauses = append(p.clauses, clause)
}

func (p *predicate) active(isActive *bool) {
	if isActive != nil {
		p.eq("is_active", "is_active", *isActive)
	}
}

// search adds a case-insensitive substring match over columns.
func (p *predicate) search(d db.Dialect, term string, columns ...string) {
	term = models.NormalizeText(term)
	if term == "" {
		return
	}
	p.params["search"] = db.LikePattern(term)
	parts := make([]string, len(columns))
	for i, c := range columns {
		parts[i] = d.Match(c, "search")
	}
	p.clauses = append(p.clauses, "("+strings.Join(parts, " OR ")+")")
}

func (p *predicate) sql() string {
	if len(p.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(p.clauses, " AND ")
}

// orderBy resolves the requested sort key against the table's whitelist.
// Ties always break on the primary key so paging is stable.
func (t *table) orderBy(req models.PageRequest) (string, error) {
	key := req.Sort
	if key == "" {
		key = "name"
	}
	col, ok := t.sorts[key]
	if !ok {
		return "", apperr.Validation("sort must be one of: %s", strings.Join(slices.Sorted(maps.Keys(t.sorts)), ", "))
	}
	dir := "ASC"
	if req.Order == models.OrderDesc {
		dir = "DESC"
	}
	if col == t.key {
		return fmt.Sprintf(" ORDER BY %s %s", col, dir), nil
	}
	return fmt.Sprintf(" ORDER BY %s %s, %s ASC", col, dir, t.key), nil
}

func (t *table) find(ctx context.Context, exec db.Executor, code string) (db.Row, error) {
	res, err := exec.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM %s WHERE %s = @code`, t.columns, t.name, t.key),
		db.Params{"code": code})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", t.kind, err)
	}
	if len(res.Rows) == 0 {
		return nil, apperr.NotFound(string(t.kind), code)
	}
	return res.Rows[0], nil
}

func (t *table) count(ctx context.Context, exec db.Executor, p *predicate) (int64, error) {
	res, err := exec.Query(ctx, `SELECT COUNT(*) AS total FROM `+t.name+p.sql(), p.params)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", t.kind, err)
	}
	if len(res.Rows) == 0 {
		return 0, nil
	}
	return res.Rows[0].Int64("total"), nil
}

// all returns every matching row in default order.
func (t *table) all(ctx context.Context, exec db.Executor, p *predicate) ([]db.Row, error) {
	order, err := t.orderBy(models.PageRequest{})
	if err != nil {
		return nil, err
	}
	res, err := exec.Query(ctx, `SELECT `+t.columns+` FROM `+t.name+p.sql()+order, p.params)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", t.kind, err)
	}
	return res.Rows, nil
}

// page runs the count and the windowed select for one page.
func page[T any](ctx context.Context, b *base, t *table, p *predicate, req models.PageRequest, scan func(db.Row) T) (*models.Page[T], error) {
	req = req.Normalize(b.opts.DefaultPageSize, b.opts.MaxPageSize)
	if err := req.Validate(); err != nil {
		return nil, err
	}
	order, err := t.orderBy(req)
	if err != nil {
		return nil, err
	}

	total, err := t.count(ctx, b.exec, p)
	if err != nil {
		return nil, err
	}

	params := maps.Clone(p.params)
	params["limit"] = req.Limit
	params["offset"] = req.Offset()
	stmt := `SELECT ` + t.columns + ` FROM ` + t.name + p.sql() + order + b.exec.Dialect().Paginate("limit", "offset")

	res, err := b.exec.Query(ctx, stmt, params)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", t.kind, err)
	}

	items := make([]T, 0, len(res.Rows))
	for _, row := range res.Rows {
		items = append(items, scan(row))
	}
	return &models.Page[T]{Items: items, Pagination: models.NewPagination(req, total)}, nil
}

// assignment is one column set by an update.
type assignment struct {
	column string
	value  any
}

// update applies sets to one row and stamps the update audit pair.
func (t *table) update(ctx context.Context, exec db.Executor, code string, sets []assignment, actor string, at time.Time) (db.Row, error) {
	params := db.Params{"code": code, "actor": actor, "at": at}
	parts := make([]string, 0, len(sets)+2)
	for _, s := range sets {
		parts = append(parts, fmt.Sprintf("%s = @set_%s", s.column, s.column))
		params["set_"+s.column] = s.value
	}
	parts = append(parts, "updated_by = @actor", "updated_at = @at")

	stmt := fmt.Sprintf(`UPDATE %s SET %s WHERE %s = @code RETURNING %s`,
		t.name, strings.Join(parts, ", "), t.key, t.columns)
	res, err := exec.Query(ctx, stmt, params)
	if err != nil {
		return nil, err
	}
	if len(res.Rows) == 0 {
		return nil, apperr.NotFound(string(t.kind), code)
	}
	return res.Rows[0], nil
}

// noActiveChildren is the guard shared by deactivation and delete.
func (t *table) noActiveChildren() string {
	if len(t.children) == 0 {
		return "1 = 1"
	}
	parts := make([]string, len(t.children))
	for i, c := range t.children {
		parts[i] = fmt.Sprintf("NOT EXISTS (SELECT 1 FROM %s WHERE %s = @code AND is_active)", c.table, c.column)
	}
	return strings.Join(parts, " AND ")
}

// activeChildren counts the active rows referencing code across all child tables.
func (t *table) activeChildren(ctx context.Context, exec db.Executor, code string) (int64, error) {
	if len(t.children) == 0 {
		return 0, nil
	}
	parts := make([]string, len(t.children))
	for i, c := range t.children {
		parts[i] = fmt.Sprintf("(SELECT COUNT(*) FROM %s WHERE %s = @code AND is_active)", c.table, c.column)
	}
	res, err := exec.Query(ctx, `SELECT `+strings.Join(parts, " + ")+` AS total`, db.Params{"code": code})
	if err != nil {
		return 0, fmt.Errorf("count active children of %s: %w", t.kind, err)
	}
	return res.Rows[0].Int64("total"), nil
}

// setActive flips the active flag. Deactivation only succeeds while no active
// child references the row, enforced in the same statement.
func (t *table) setActive(ctx context.Context, exec db.Executor, code string, active bool, actor string, at time.Time) (db.Row, error) {
	stmt := fmt.Sprintf(`
		UPDATE %s SET is_active = @active, updated_by = @actor, updated_at = @at
		WHERE %s = @code AND (@active OR (%s))
		RETURNING %s`, t.name, t.key, t.noActiveChildren(), t.columns)

	res, err := exec.Query(ctx, stmt, db.Params{"code": code, "active": active, "actor": actor, "at": at})
	if err != nil {
		return nil, err
	}
	if len(res.Rows) == 1 {
		return res.Rows[0], nil
	}
	return nil, t.blocked(ctx, exec, code)
}

// delete removes the row unless an active child references it.
func (t *table) delete(ctx context.Context, exec db.Executor, code string) error {
	stmt := fmt.Sprintf(`DELETE FROM %s WHERE %s = @code AND %s`, t.name, t.key, t.noActiveChildren())
	res, err := exec.Exec(ctx, stmt, db.Params{"code": code})
	if err != nil {
		return fmt.Errorf("delete %s: %w", t.kind, err)
	}
	if res.RowsAffected > 0 {
		return nil
	}
	return t.blocked(ctx, exec, code)
}

// blocked explains why a guarded write touched no row.
func (t *table) blocked(ctx context.Context, exec db.Executor, code string) error {
	if _, err := t.find(ctx, exec, code); err != nil {
		return err
	}
	n, err := t.activeChildren(ctx, exec, code)
	if err != nil {
		return err
	}
	return apperr.HasActiveChildren(string(t.kind), code, n)
}

// constraintOf reports the backend constraint failure carried by err, if any.
func constraintOf(err error) (*apperr.Error, bool) {
	if !errors.Is(err, apperr.ErrConstraintViolation) {
		return nil, false
	}
	return apperr.As(err)
}

func auditFromRow(r db.Row) models.Audit {
	return models.Audit{
		CreatedBy: r.String("created_by"),
		CreatedAt: r.Time("created_at"),
		UpdatedBy: r.String("updated_by"),
		UpdatedAt: r.Time("updated_at"),
	}
}

func auditParams(p db.Params, a models.Audit) db.Params {
	p["created_by"] = a.CreatedBy
	p["created_at"] = a.CreatedAt
	p["updated_by"] = a.UpdatedBy
	p["updated_at"] = a.UpdatedAt
	return p
}
