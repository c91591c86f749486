package store

import (
	"context"
	"fmt"

	"github.com/MacJediWizard/orgtree/internal/apperr"
	"github.com/MacJediWizard/orgtree/internal/db"
	"github.com/MacJediWizard/orgtree/internal/models"
)

var companies = &table{
	name:    "companies",
	kind:    models.KindCompany,
	key:     "company_code",
	columns: `company_code, name_th, name_en, tax_id, address, phone, email, is_active, created_by, created_at, updated_by, updated_at`,
	sorts: map[string]string{
		"name":       "name_th",
		"name_en":    "name_en",
		"code":       "company_code",
		"created_at": "created_at",
		"updated_at": "updated_at",
	},
	children: []childRef{
		{table: "branches", column: "company_code"},
		{table: "divisions", column: "company_code"},
	},
}

// CompanyStore persists companies.
type CompanyStore struct {
	*base
}

func companyFromRow(r db.Row) *models.Company {
	return &models.Company{
		CompanyCode: r.String("company_code"),
		NameTH:      r.String("name_th"),
		NameEN:      r.String("name_en"),
		TaxID:       r.String("tax_id"),
		Address:     r.String("address"),
		Phone:       r.String("phone"),
		Email:       r.String("email"),
		IsActive:    r.Bool("is_active"),
		Audit:       auditFromRow(r),
	}
}

func (s *CompanyStore) predicate(f models.CompanyFilter) *predicate {
	p := newPredicate()
	p.active(f.IsActive)
	p.search(s.exec.Dialect(), f.Search, "company_code", "name_th", "name_en")
	return p
}

// FindByCode returns the company or a NotFound error.
func (s *CompanyStore) FindByCode(ctx context.Context, code string) (*models.Company, error) {
	row, err := companies.find(ctx, s.exec, code)
	if err != nil {
		return nil, err
	}
	return companyFromRow(row), nil
}

// List returns one page of companies matching f.
func (s *CompanyStore) List(ctx context.Context, f models.CompanyFilter, req models.PageRequest) (*models.Page[*models.Company], error) {
	return page(ctx, s.base, companies, s.predicate(f), req, companyFromRow)
}

// Count returns the number of companies matching f.
func (s *CompanyStore) Count(ctx context.Context, f models.CompanyFilter) (int64, error) {
	return companies.count(ctx, s.exec, s.predicate(f))
}

// All returns every company matching f ordered by name.
func (s *CompanyStore) All(ctx context.Context, f models.CompanyFilter) ([]*models.Company, error) {
	rows, err := companies.all(ctx, s.exec, s.predicate(f))
	if err != nil {
		return nil, err
	}
	out := make([]*models.Company, 0, len(rows))
	for _, r := range rows {
		out = append(out, companyFromRow(r))
	}
	return out, nil
}

// Create inserts c stamped with actor and returns the stored row.
func (s *CompanyStore) Create(ctx context.Context, c *models.Company, actor string) (*models.Company, error) {
	c.Stamp(actor, s.now())
	params := auditParams(db.Params{
		"company_code": c.CompanyCode,
		"name_th":      c.NameTH,
		"name_en":      c.NameEN,
		"tax_id":       c.TaxID,
		"address":      c.Address,
		"phone":        c.Phone,
		"email":        c.Email,
		"is_active":    c.IsActive,
	}, c.Audit)

	res, err := s.exec.Query(ctx, `
		INSERT INTO companies (company_code, name_th, name_en, tax_id, address, phone, email, is_active,
			created_by, created_at, updated_by, updated_at)
		VALUES (@company_code, @name_th, @name_en, @tax_id, @address, @phone, @email, @is_active,
			@created_by, @created_at, @updated_by, @updated_at)
		RETURNING `+companies.columns, params)
	if err != nil {
		return nil, s.translate(err, c.CompanyCode)
	}
	return companyFromRow(res.Rows[0]), nil
}

// Update applies the set fields of p and returns the stored row.
func (s *CompanyStore) Update(ctx context.Context, code string, p *models.CompanyPatch, actor string) (*models.Company, error) {
	var sets []assignment
	for _, f := range []struct {
		column string
		value  *string
	}{
		{"name_th", p.NameTH},
		{"name_en", p.NameEN},
		{"tax_id", p.TaxID},
		{"address", p.Address},
		{"phone", p.Phone},
		{"email", p.Email},
	} {
		if f.value != nil {
			sets = append(sets, assignment{f.column, *f.value})
		}
	}

	row, err := companies.update(ctx, s.exec, code, sets, actor, s.now())
	if err != nil {
		return nil, s.translate(err, code)
	}
	return companyFromRow(row), nil
}

// SetActive sets the active flag. Deactivation fails with HasActiveChildren
// while an active branch or division references the company.
func (s *CompanyStore) SetActive(ctx context.Context, code string, active bool, actor string) (*models.Company, error) {
	row, err := companies.setActive(ctx, s.exec, code, active, actor, s.now())
	if err != nil {
		return nil, fmt.Errorf("set company status: %w", err)
	}
	return companyFromRow(row), nil
}

// Delete removes the company and its inactive descendants. It fails with
// HasActiveChildren while an active branch or division references it.
func (s *CompanyStore) Delete(ctx context.Context, code string) error {
	return companies.delete(ctx, s.exec, code)
}

// ActiveChildren counts the active branches and divisions of the company.
func (s *CompanyStore) ActiveChildren(ctx context.Context, code string) (int64, error) {
	return companies.activeChildren(ctx, s.exec, code)
}

func (s *CompanyStore) translate(err error, code string) error {
	e, ok := constraintOf(err)
	if !ok {
		return fmt.Errorf("write company: %w", err)
	}
	if e.Constraint == db.ConstraintCompaniesPK {
		return apperr.AlreadyExists(string(models.KindCompany), code)
	}
	return err
}
