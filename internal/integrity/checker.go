package integrity

import (
	"context"
	"fmt"

	"github.com/MacJediWizard/orgtree/internal/apperr"
	"github.com/MacJediWizard/orgtree/internal/models"
)

// ChildCounter counts the active rows that reference a code one level down.
type ChildCounter interface {
	ActiveChildren(ctx context.Context, code string) (int64, error)
}

// CompanyReader is the read access the rules need to companies.
type CompanyReader interface {
	ChildCounter
	FindByCode(ctx context.Context, code string) (*models.Company, error)
}

// BranchReader is the read access the rules need to branches.
type BranchReader interface {
	ChildCounter
	FindByCode(ctx context.Context, code string) (*models.Branch, error)
	All(ctx context.Context, f models.BranchFilter) ([]*models.Branch, error)
	Count(ctx context.Context, f models.BranchFilter) (int64, error)
}

// DivisionReader is the read access the rules need to divisions.
type DivisionReader interface {
	ChildCounter
	FindByCode(ctx context.Context, code string) (*models.Division, error)
	Count(ctx context.Context, f models.DivisionFilter) (int64, error)
}

// DepartmentReader is the read access the rules need to departments.
type DepartmentReader interface {
	ChildCounter
}

// Checker builds rules over read-only views of the repositories.
type Checker struct {
	companies   CompanyReader
	branches    BranchReader
	divisions   DivisionReader
	departments DepartmentReader
}

// NewChecker creates a Checker.
func NewChecker(companies CompanyReader, branches BranchReader, divisions DivisionReader, departments DepartmentReader) *Checker {
	return &Checker{
		companies:   companies,
		branches:    branches,
		divisions:   divisions,
		departments: departments,
	}
}

// ParentExists fails with NotFound when the parent of the given kind is
// missing and with ParentInactive when it exists but is inactive.
func (c *Checker) ParentExists(parent models.Kind, code string) Rule {
	return func(ctx context.Context) error {
		var isActive bool
		switch parent {
		case models.KindCompany:
			p, err := c.companies.FindByCode(ctx, code)
			if err != nil {
				return err
			}
			isActive = p.IsActive
		case models.KindBranch:
			p, err := c.branches.FindByCode(ctx, code)
			if err != nil {
				return err
			}
			isActive = p.IsActive
		case models.KindDivision:
			p, err := c.divisions.FindByCode(ctx, code)
			if err != nil {
				return err
			}
			isActive = p.IsActive
		default:
			return fmt.Errorf("%s cannot be a parent", parent)
		}
		if !isActive {
			return apperr.ParentInactive(string(parent), code)
		}
		return nil
	}
}

// BranchCompanyConsistency fails with CrossCompanyReference when branchCode
// belongs to a company other than companyCode. An empty branchCode passes.
func (c *Checker) BranchCompanyConsistency(companyCode, branchCode string) Rule {
	return func(ctx context.Context) error {
		if branchCode == "" {
			return nil
		}
		b, err := c.branches.FindByCode(ctx, branchCode)
		if err != nil {
			return err
		}
		if b.CompanyCode != companyCode {
			return apperr.CrossCompanyReference(
				"branch %s belongs to company %s, not %s", branchCode, b.CompanyCode, companyCode)
		}
		return nil
	}
}

// SingleHeadquarters fails with DuplicateHeadquarters when an active
// headquarters branch other than excludingBranchCode exists for the company.
func (c *Checker) SingleHeadquarters(companyCode, excludingBranchCode string) Rule {
	return func(ctx context.Context) error {
		hq := true
		found, err := c.branches.All(ctx, models.BranchFilter{
			CompanyCode:    companyCode,
			IsActive:       activeOnly(),
			IsHeadquarters: &hq,
		})
		if err != nil {
			return err
		}
		for _, b := range found {
			if b.BranchCode != excludingBranchCode {
				return apperr.DuplicateHeadquarters(companyCode)
			}
		}
		return nil
	}
}

// NoActiveChildren fails with HasActiveChildren, carrying the count, when any
// active child references the entity.
func (c *Checker) NoActiveChildren(kind models.Kind, code string) Rule {
	return func(ctx context.Context) error {
		var counter ChildCounter
		switch kind {
		case models.KindCompany:
			counter = c.companies
		case models.KindBranch:
			counter = c.branches
		case models.KindDivision:
			counter = c.divisions
		case models.KindDepartment:
			counter = c.departments
		default:
			return fmt.Errorf("unknown kind %q", kind)
		}
		n, err := counter.ActiveChildren(ctx, code)
		if err != nil {
			return err
		}
		if n > 0 {
			return apperr.HasActiveChildren(string(kind), code, n)
		}
		return nil
	}
}

// BranchUnreferenced fails with CrossCompanyReference while any division,
// active or not, is assigned to the branch. A branch may only change company
// once nothing would be left pointing across companies.
func (c *Checker) BranchUnreferenced(branchCode string) Rule {
	return func(ctx context.Context) error {
		n, err := c.divisions.Count(ctx, models.DivisionFilter{BranchCode: branchCode})
		if err != nil {
			return err
		}
		if n > 0 {
			return apperr.CrossCompanyReference(
				"branch %s cannot change company while %d division(s) reference it", branchCode, n)
		}
		return nil
	}
}

func activeOnly() *bool {
	v := true
	return &v
}
