package store

import (
	"context"
	"fmt"

	"github.com/MacJediWizard/orgtree/internal/apperr"
	"github.com/MacJediWizard/orgtree/internal/db"
	"github.com/MacJediWizard/orgtree/internal/models"
)

var branches = &table{
	name:    "branches",
	kind:    models.KindBranch,
	key:     "branch_code",
	columns: `branch_code, company_code, name, address, phone, is_headquarters, is_active, created_by, created_at, updated_by, updated_at`,
	sorts: map[string]string{
		"name":       "name",
		"code":       "branch_code",
		"company":    "company_code",
		"created_at": "created_at",
		"updated_at": "updated_at",
	},
	children: []childRef{
		{table: "divisions", column: "branch_code"},
	},
}

// BranchStore persists branches.
type BranchStore struct {
	*base
}

func branchFromRow(r db.Row) *models.Branch {
	return &models.Branch{
		BranchCode:     r.String("branch_code"),
		CompanyCode:    r.String("company_code"),
		Name:           r.String("name"),
		Address:        r.String("address"),
		Phone:          r.String("phone"),
		IsHeadquarters: r.Bool("is_headquarters"),
		IsActive:       r.Bool("is_active"),
		Audit:          auditFromRow(r),
	}
}

func (s *BranchStore) predicate(f models.BranchFilter) *predicate {
	p := newPredicate()
	p.active(f.IsActive)
	if f.CompanyCode != "" {
		p.eq("company_code", "company_code", f.CompanyCode)
	}
	if f.IsHeadquarters != nil {
		p.eq("is_headquarters", "is_headquarters", *f.IsHeadquarters)
	}
	p.search(s.exec.Dialect(), f.Search, "branch_code", "name")
	return p
}

// FindByCode returns the branch or a NotFound error.
func (s *BranchStore) FindByCode(ctx context.Context, code string) (*models.Branch, error) {
	row, err := branches.find(ctx, s.exec, code)
	if err != nil {
		return nil, err
	}
	return branchFromRow(row), nil
}

// List returns one page of branches matching f.
func (s *BranchStore) List(ctx context.Context, f models.BranchFilter, req models.PageRequest) (*models.Page[*models.Branch], error) {
	return page(ctx, s.base, branches, s.predicate(f), req, branchFromRow)
}

// Count returns the number of branches matching f.
func (s *BranchStore) Count(ctx context.Context, f models.BranchFilter) (int64, error) {
	return branches.count(ctx, s.exec, s.predicate(f))
}

// All returns every branch matching f ordered by name.
func (s *BranchStore) All(ctx context.Context, f models.BranchFilter) ([]*models.Branch, error) {
	rows, err := branches.all(ctx, s.exec, s.predicate(f))
	if err != nil {
		return nil, err
	}
	out := make([]*models.Branch, 0, len(rows))
	for _, r := range rows {
		out = append(out, branchFromRow(r))
	}
	return out, nil
}

// Create inserts b stamped with actor and returns the stored row.
func (s *BranchStore) Create(ctx context.Context, b *models.Branch, actor string) (*models.Branch, error) {
	b.Stamp(actor, s.now())
	params := auditParams(db.Params{
		"branch_code":     b.BranchCode,
		"company_code":    b.CompanyCode,
		"name":            b.Name,
		"address":         b.Address,
		"phone":           b.Phone,
		"is_headquarters": b.IsHeadquarters,
		"is_active":       b.IsActive,
	}, b.Audit)

	res, err := s.exec.Query(ctx, `
		INSERT INTO branches (branch_code, company_code, name, address, phone, is_headquarters, is_active,
			created_by, created_at, updated_by, updated_at)
		VALUES (@branch_code, @company_code, @name, @address, @phone, @is_headquarters, @is_active,
			@created_by, @created_at, @updated_by, @updated_at)
		RETURNING `+branches.columns, params)
	if err != nil {
		return nil, s.translate(ctx, err, b.BranchCode, b.CompanyCode)
	}
	return branchFromRow(res.Rows[0]), nil
}

// Update applies the set fields of p and returns the stored row. Setting
// CompanyCode moves the branch to another company.
func (s *BranchStore) Update(ctx context.Context, code string, p *models.BranchPatch, actor string) (*models.Branch, error) {
	var sets []assignment
	for _, f := range []struct {
		column string
		value  *string
	}{
		{"company_code", p.CompanyCode},
		{"name", p.Name},
		{"address", p.Address},
		{"phone", p.Phone},
	} {
		if f.value != nil {
			sets = append(sets, assignment{f.column, *f.value})
		}
	}
	if p.IsHeadquarters != nil {
		sets = append(sets, assignment{"is_headquarters", *p.IsHeadquarters})
	}

	row, err := branches.update(ctx, s.exec, code, sets, actor, s.now())
	if err != nil {
		company := ""
		if p.CompanyCode != nil {
			company = *p.CompanyCode
		}
		return nil, s.translate(ctx, err, code, company)
	}
	return branchFromRow(row), nil
}

// SetActive sets the active flag. Deactivation fails with HasActiveChildren
// while an active division references the branch. Activating a second
// headquarters for a company fails with DuplicateHeadquarters.
func (s *BranchStore) SetActive(ctx context.Context, code string, active bool, actor string) (*models.Branch, error) {
	row, err := branches.setActive(ctx, s.exec, code, active, actor, s.now())
	if err != nil {
		return nil, s.translate(ctx, err, code, "")
	}
	return branchFromRow(row), nil
}

// Delete removes the branch. Inactive divisions that referenced it become
// company-level. It fails with HasActiveChildren while an active division
// references the branch.
func (s *BranchStore) Delete(ctx context.Context, code string) error {
	return branches.delete(ctx, s.exec, code)
}

// ActiveChildren counts the active divisions assigned to the branch.
func (s *BranchStore) ActiveChildren(ctx context.Context, code string) (int64, error) {
	return branches.activeChildren(ctx, s.exec, code)
}

// translate maps constraint failures to the taxonomy. company is the company
// the write targeted, or "" when it is unchanged and must be looked up.
func (s *BranchStore) translate(ctx context.Context, err error, code, company string) error {
	e, ok := constraintOf(err)
	if !ok {
		return fmt.Errorf("write branch: %w", err)
	}
	switch {
	case e.Constraint == db.ConstraintBranchesPK:
		return apperr.AlreadyExists(string(models.KindBranch), code)
	case e.Constraint == db.ConstraintHeadquarters:
		if company == "" {
			if b, ferr := s.FindByCode(ctx, code); ferr == nil {
				company = b.CompanyCode
			}
		}
		return apperr.DuplicateHeadquarters(company)
	case e.Kind == apperr.ConstraintForeignKey:
		return apperr.NotFound(string(models.KindCompany), company)
	}
	return err
}
