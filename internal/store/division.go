package store

import (
	"context"
	"fmt"

	"github.com/MacJediWizard/orgtree/internal/apperr"
	"github.com/MacJediWizard/orgtree/internal/db"
	"github.com/MacJediWizard/orgtree/internal/models"
)

var divisions = &table{
	name:    "divisions",
	kind:    models.KindDivision,
	key:     "division_code",
	columns: `division_code, company_code, branch_code, name, description, is_active, created_by, created_at, updated_by, updated_at`,
	sorts: map[string]string{
		"name":       "name",
		"code":       "division_code",
		"company":    "company_code",
		"created_at": "created_at",
		"updated_at": "updated_at",
	},
	children: []childRef{
		{table: "departments", column: "division_code"},
	},
}

// DivisionStore persists divisions.
type DivisionStore struct {
	*base
}

func divisionFromRow(r db.Row) *models.Division {
	return &models.Division{
		DivisionCode: r.String("division_code"),
		CompanyCode:  r.String("company_code"),
		BranchCode:   r.NullString("branch_code"),
		Name:         r.String("name"),
		Description:  r.String("description"),
		IsActive:     r.Bool("is_active"),
		Audit:        auditFromRow(r),
	}
}

func (s *DivisionStore) predicate(f models.DivisionFilter) *predicate {
	p := newPredicate()
	p.active(f.IsActive)
	if f.CompanyCode != "" {
		p.eq("company_code", "company_code", f.CompanyCode)
	}
	switch {
	case f.Unassigned:
		p.add("branch_code IS NULL")
	case f.BranchCode != "":
		p.eq("branch_code", "branch_code", f.BranchCode)
	}
	p.search(s.exec.Dialect(), f.Search, "division_code", "name")
	return p
}

// FindByCode returns the division or a NotFound error.
func (s *DivisionStore) FindByCode(ctx context.Context, code string) (*models.Division, error) {
	row, err := divisions.find(ctx, s.exec, code)
	if err != nil {
		return nil, err
	}
	return divisionFromRow(row), nil
}

// List returns one page of divisions matching f.
func (s *DivisionStore) List(ctx context.Context, f models.DivisionFilter, req models.PageRequest) (*models.Page[*models.Division], error) {
	return page(ctx, s.base, divisions, s.predicate(f), req, divisionFromRow)
}

// Count returns the number of divisions matching f.
func (s *DivisionStore) Count(ctx context.Context, f models.DivisionFilter) (int64, error) {
	return divisions.count(ctx, s.exec, s.predicate(f))
}

// All returns every division matching f ordered by name.
func (s *DivisionStore) All(ctx context.Context, f models.DivisionFilter) ([]*models.Division, error) {
	rows, err := divisions.all(ctx, s.exec, s.predicate(f))
	if err != nil {
		return nil, err
	}
	out := make([]*models.Division, 0, len(rows))
	for _, r := range rows {
		out = append(out, divisionFromRow(r))
	}
	return out, nil
}

// Create inserts d stamped with actor and returns the stored row.
func (s *DivisionStore) Create(ctx context.Context, d *models.Division, actor string) (*models.Division, error) {
	d.Stamp(actor, s.now())
	params := auditParams(db.Params{
		"division_code": d.DivisionCode,
		"company_code":  d.CompanyCode,
		"branch_code":   d.BranchCode,
		"name":          d.Name,
		"description":   d.Description,
		"is_active":     d.IsActive,
	}, d.Audit)

	res, err := s.exec.Query(ctx, `
		INSERT INTO divisions (division_code, company_code, branch_code, name, description, is_active,
			created_by, created_at, updated_by, updated_at)
		VALUES (@division_code, @company_code, @branch_code, @name, @description, @is_active,
			@created_by, @created_at, @updated_by, @updated_at)
		RETURNING `+divisions.columns, params)
	if err != nil {
		return nil, s.translate(err, d.DivisionCode, d.CompanyCode, d.Branch())
	}
	return divisionFromRow(res.Rows[0]), nil
}

// Update applies the set fields of p and returns the stored row. A cleared
// BranchCode detaches the division from its branch.
func (s *DivisionStore) Update(ctx context.Context, code string, p *models.DivisionPatch, actor string) (*models.Division, error) {
	var sets []assignment
	if p.CompanyCode != nil {
		sets = append(sets, assignment{"company_code", *p.CompanyCode})
	}
	if p.BranchCode.Set {
		if p.BranchCode.Clear() {
			sets = append(sets, assignment{"branch_code", nil})
		} else {
			sets = append(sets, assignment{"branch_code", *p.BranchCode.Value})
		}
	}
	if p.Name != nil {
		sets = append(sets, assignment{"name", *p.Name})
	}
	if p.Description != nil {
		sets = append(sets, assignment{"description", *p.Description})
	}

	row, err := divisions.update(ctx, s.exec, code, sets, actor, s.now())
	if err != nil {
		company, branch := "", ""
		if p.CompanyCode != nil {
			company = *p.CompanyCode
		}
		if p.BranchCode.Set && !p.BranchCode.Clear() {
			branch = *p.BranchCode.Value
		}
		return nil, s.translate(err, code, company, branch)
	}
	return divisionFromRow(row), nil
}

// SetActive sets the active flag. Deactivation fails with HasActiveChildren
// while an active department references the division.
func (s *DivisionStore) SetActive(ctx context.Context, code string, active bool, actor string) (*models.Division, error) {
	row, err := divisions.setActive(ctx, s.exec, code, active, actor, s.now())
	if err != nil {
		return nil, fmt.Errorf("set division status: %w", err)
	}
	return divisionFromRow(row), nil
}

// Delete removes the division and its inactive departments. It fails with
// HasActiveChildren while an active department references it.
func (s *DivisionStore) Delete(ctx context.Context, code string) error {
	return divisions.delete(ctx, s.exec, code)
}

// ActiveChildren counts the active departments of the division.
func (s *DivisionStore) ActiveChildren(ctx context.Context, code string) (int64, error) {
	return divisions.activeChildren(ctx, s.exec, code)
}

func (s *DivisionStore) translate(err error, code, company, branch string) error {
	e, ok := constraintOf(err)
	if !ok {
		return fmt.Errorf("write division: %w", err)
	}
	switch {
	case e.Constraint == db.ConstraintDivisionsPK:
		return apperr.AlreadyExists(string(models.KindDivision), code)
	case e.Constraint == db.ConstraintDivisionBranchFK:
		return apperr.NotFound(string(models.KindBranch), branch)
	case e.Constraint == db.ConstraintDivisionCompanyFK:
		return apperr.NotFound(string(models.KindCompany), company)
	case e.Kind == apperr.ConstraintForeignKey:
		// The embedded backend does not name the failed foreign key.
		if branch != "" {
			return apperr.NotFound(string(models.KindBranch), branch)
		}
		return apperr.NotFound(string(models.KindCompany), company)
	}
	return err
}
