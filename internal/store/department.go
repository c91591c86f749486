package store

import (
	"context"
	"fmt"

	"github.com/MacJediWizard/orgtree/internal/apperr"
	"github.com/MacJediWizard/orgtree/internal/db"
	"github.com/MacJediWizard/orgtree/internal/models"
)

var departments = &table{
	name:    "departments",
	kind:    models.KindDepartment,
	key:     "department_code",
	columns: `department_code, division_code, name, description, is_active, created_by, created_at, updated_by, updated_at`,
	sorts: map[string]string{
		"name":       "name",
		"code":       "department_code",
		"division":   "division_code",
		"created_at": "created_at",
		"updated_at": "updated_at",
	},
}

// DepartmentStore persists departments.
type DepartmentStore struct {
	*base
}

func departmentFromRow(r db.Row) *models.Department {
	return &models.Department{
		DepartmentCode: r.String("department_code"),
		DivisionCode:   r.String("division_code"),
		Name:           r.String("name"),
		Description:    r.String("description"),
		IsActive:       r.Bool("is_active"),
		Audit:          auditFromRow(r),
	}
}

func (s *DepartmentStore) predicate(f models.DepartmentFilter) *predicate {
	p := newPredicate()
	p.active(f.IsActive)
	if f.DivisionCode != "" {
		p.eq("division_code", "division_code", f.DivisionCode)
	}
	if f.CompanyCode != "" {
		p.add("division_code IN (SELECT division_code FROM divisions WHERE company_code = @company_code)")
		p.params["company_code"] = f.CompanyCode
	}
	p.search(s.exec.Dialect(), f.Search, "department_code", "name")
	return p
}

// FindByCode returns the department or a NotFound error.
func (s *DepartmentStore) FindByCode(ctx context.Context, code string) (*models.Department, error) {
	row, err := departments.find(ctx, s.exec, code)
	if err != nil {
		return nil, err
	}
	return departmentFromRow(row), nil
}

// List returns one page of departments matching f.
func (s *DepartmentStore) List(ctx context.Context, f models.DepartmentFilter, req models.PageRequest) (*models.Page[*models.Department], error) {
	return page(ctx, s.base, departments, s.predicate(f), req, departmentFromRow)
}

// Count returns the number of departments matching f.
func (s *DepartmentStore) Count(ctx context.Context, f models.DepartmentFilter) (int64, error) {
	return departments.count(ctx, s.exec, s.predicate(f))
}

// All returns every department matching f ordered by name.
func (s *DepartmentStore) All(ctx context.Context, f models.DepartmentFilter) ([]*models.Department, error) {
	rows, err := departments.all(ctx, s.exec, s.predicate(f))
	if err != nil {
		return nil, err
	}
	out := make([]*models.Department, 0, len(rows))
	for _, r := range rows {
		out = append(out, departmentFromRow(r))
	}
	return out, nil
}

// Create inserts d stamped with actor and returns the stored row.
func (s *DepartmentStore) Create(ctx context.Context, d *models.Department, actor string) (*models.Department, error) {
	d.Stamp(actor, s.now())
	params := auditParams(db.Params{
		"department_code": d.DepartmentCode,
		"division_code":   d.DivisionCode,
		"name":            d.Name,
		"description":     d.Description,
		"is_active":       d.IsActive,
	}, d.Audit)

	res, err := s.exec.Query(ctx, `
		INSERT INTO departments (department_code, division_code, name, description, is_active,
			created_by, created_at, updated_by, updated_at)
		VALUES (@department_code, @division_code, @name, @description, @is_active,
			@created_by, @created_at, @updated_by, @updated_at)
		RETURNING `+departments.columns, params)
	if err != nil {
		return nil, s.translate(err, d.DepartmentCode, d.DivisionCode)
	}
	return departmentFromRow(res.Rows[0]), nil
}

// Update applies the set fields of p and returns the stored row.
func (s *DepartmentStore) Update(ctx context.Context, code string, p *models.DepartmentPatch, actor string) (*models.Department, error) {
	var sets []assignment
	for _, f := range []struct {
		column string
		value  *string
	}{
		{"division_code", p.DivisionCode},
		{"name", p.Name},
		{"description", p.Description},
	} {
		if f.value != nil {
			sets = append(sets, assignment{f.column, *f.value})
		}
	}

	row, err := departments.update(ctx, s.exec, code, sets, actor, s.now())
	if err != nil {
		division := ""
		if p.DivisionCode != nil {
			division = *p.DivisionCode
		}
		return nil, s.translate(err, code, division)
	}
	return departmentFromRow(row), nil
}

// SetActive sets the active flag.
func (s *DepartmentStore) SetActive(ctx context.Context, code string, active bool, actor string) (*models.Department, error) {
	row, err := departments.setActive(ctx, s.exec, code, active, actor, s.now())
	if err != nil {
		return nil, fmt.Errorf("set department status: %w", err)
	}
	return departmentFromRow(row), nil
}

// Delete removes the department.
func (s *DepartmentStore) Delete(ctx context.Context, code string) error {
	return departments.delete(ctx, s.exec, code)
}

// ActiveChildren always reports zero; departments are leaves.
func (s *DepartmentStore) ActiveChildren(ctx context.Context, code string) (int64, error) {
	return departments.activeChildren(ctx, s.exec, code)
}

func (s *DepartmentStore) translate(err error, code, division string) error {
	e, ok := constraintOf(err)
	if !ok {
		return fmt.Errorf("write department: %w", err)
	}
	switch {
	case e.Constraint == db.ConstraintDepartmentsPK:
		return apperr.AlreadyExists(string(models.KindDepartment), code)
	case e.Kind == apperr.ConstraintForeignKey:
		return apperr.NotFound(string(models.KindDivision), division)
	}
	return err
}
