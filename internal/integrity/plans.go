package integrity

import (
	"github.com/MacJediWizard/orgtree/internal/models"
)

// CreateBranch checks a new branch.
func (c *Checker) CreateBranch(b *models.Branch) *Plan {
	p := NewPlan().Add(StageExistence, c.ParentExists(models.KindCompany, b.CompanyCode))
	if b.IsHeadquarters && b.IsActive {
		p.Add(StageUniqueness, c.SingleHeadquarters(b.CompanyCode, b.BranchCode))
	}
	return p
}

// UpdateBranch checks the transition of a branch from current to next.
func (c *Checker) UpdateBranch(current, next *models.Branch) *Plan {
	p := NewPlan()
	moved := next.CompanyCode != current.CompanyCode
	if moved {
		p.Add(StageExistence, c.ParentExists(models.KindCompany, next.CompanyCode))
		p.Add(StageConsistency, c.BranchUnreferenced(current.BranchCode))
	}
	promoted := next.IsHeadquarters && !current.IsHeadquarters
	if next.IsHeadquarters && next.IsActive && (promoted || moved) {
		p.Add(StageUniqueness, c.SingleHeadquarters(next.CompanyCode, next.BranchCode))
	}
	return p
}

// CreateDivision checks a new division.
func (c *Checker) CreateDivision(d *models.Division) *Plan {
	p := NewPlan().Add(StageExistence, c.ParentExists(models.KindCompany, d.CompanyCode))
	if branch := d.Branch(); branch != "" {
		p.Add(StageExistence, c.ParentExists(models.KindBranch, branch))
		p.Add(StageConsistency, c.BranchCompanyConsistency(d.CompanyCode, branch))
	}
	return p
}

// UpdateDivision checks the transition of a division from current to next. A
// division that changes company must keep or take a branch of the new company.
func (c *Checker) UpdateDivision(current, next *models.Division) *Plan {
	p := NewPlan()
	companyChanged := next.CompanyCode != current.CompanyCode
	branchChanged := next.Branch() != current.Branch()
	if companyChanged {
		p.Add(StageExistence, c.ParentExists(models.KindCompany, next.CompanyCode))
	}
	if branch := next.Branch(); branch != "" {
		if branchChanged {
			p.Add(StageExistence, c.ParentExists(models.KindBranch, branch))
		}
		if companyChanged || branchChanged {
			p.Add(StageConsistency, c.BranchCompanyConsistency(next.CompanyCode, branch))
		}
	}
	return p
}

// CreateDepartment checks a new department.
func (c *Checker) CreateDepartment(d *models.Department) *Plan {
	return NewPlan().Add(StageExistence, c.ParentExists(models.KindDivision, d.DivisionCode))
}

// UpdateDepartment checks the transition of a department from current to next.
func (c *Checker) UpdateDepartment(current, next *models.Department) *Plan {
	p := NewPlan()
	if next.DivisionCode != current.DivisionCode {
		p.Add(StageExistence, c.ParentExists(models.KindDivision, next.DivisionCode))
	}
	return p
}

// ActivateBranch checks re-activation of a branch.
func (c *Checker) ActivateBranch(b *models.Branch) *Plan {
	p := NewPlan().Add(StageExistence, c.ParentExists(models.KindCompany, b.CompanyCode))
	if b.IsHeadquarters {
		p.Add(StageUniqueness, c.SingleHeadquarters(b.CompanyCode, b.BranchCode))
	}
	return p
}

// ActivateDivision checks re-activation of a division.
func (c *Checker) ActivateDivision(d *models.Division) *Plan {
	p := NewPlan().Add(StageExistence, c.ParentExists(models.KindCompany, d.CompanyCode))
	if branch := d.Branch(); branch != "" {
		p.Add(StageExistence, c.ParentExists(models.KindBranch, branch))
	}
	return p
}

// ActivateDepartment checks re-activation of a department.
func (c *Checker) ActivateDepartment(d *models.Department) *Plan {
	return NewPlan().Add(StageExistence, c.ParentExists(models.KindDivision, d.DivisionCode))
}

// Deactivate checks deactivation. It applies the same dependent check as Remove.
func (c *Checker) Deactivate(kind models.Kind, code string) *Plan {
	return c.Remove(kind, code)
}

// Remove checks a hard delete.
func (c *Checker) Remove(kind models.Kind, code string) *Plan {
	p := NewPlan()
	if kind != models.KindDepartment {
		p.Add(StageDependents, c.NoActiveChildren(kind, code))
	}
	return p
}
