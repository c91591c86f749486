// Package hierarchy orchestrates mutations of the organization hierarchy and
// composes read-only tree views over it.
//
// Every mutation validates its input, runs the integrity plan for the
// operation and then issues exactly one write through the repositories. The
// storage constraints remain the final guard for races between the plan and
// the write.
package hierarchy

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/MacJediWizard/orgtree/internal/auth"
	"github.com/MacJediWizard/orgtree/internal/integrity"
	"github.com/MacJediWizard/orgtree/internal/models"
	"github.com/MacJediWizard/orgtree/internal/store"
)

// Service is the mutation and lookup entry point for the four entity kinds.
type Service struct {
	stores  *store.Stores
	checker *integrity.Checker
	retry   retrier
	logger  zerolog.Logger
}

// NewService creates a Service over stores.
func NewService(stores *store.Stores, retry RetryConfig, logger zerolog.Logger) *Service {
	logger = logger.With().Str("component", "hierarchy").Logger()
	return &Service{
		stores:  stores,
		checker: integrity.NewChecker(stores.Companies, stores.Branches, stores.Divisions, stores.Departments),
		retry:   retrier{cfg: retry, logger: logger},
		logger:  logger,
	}
}

// Stores returns the underlying repositories.
func (s *Service) Stores() *store.Stores {
	return s.stores
}

// nextActive resolves a status request: nil flips the current flag.
func nextActive(current bool, requested *bool) bool {
	if requested == nil {
		return !current
	}
	return *requested
}

func (s *Service) logWrite(ctx context.Context, action string, kind models.Kind, code string) {
	s.logger.Info().
		Str("action", action).
		Str("kind", string(kind)).
		Str("code", code).
		Str("actor", auth.ActorFrom(ctx)).
		Msg("hierarchy updated")
}

// Companies

// GetCompany returns one company.
func (s *Service) GetCompany(ctx context.Context, code string) (*models.Company, error) {
	return read(ctx, s.retry, func(ctx context.Context) (*models.Company, error) {
		return s.stores.Companies.FindByCode(ctx, code)
	})
}

// ListCompanies returns one page of companies.
func (s *Service) ListCompanies(ctx context.Context, f models.CompanyFilter, req models.PageRequest) (*models.Page[*models.Company], error) {
	return read(ctx, s.retry, func(ctx context.Context) (*models.Page[*models.Company], error) {
		return s.stores.Companies.List(ctx, f, req)
	})
}

// CreateCompany validates and stores a new company.
func (s *Service) CreateCompany(ctx context.Context, in *models.CompanyInput) (*models.Company, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}
	c, err := s.stores.Companies.Create(ctx, in.Company(), auth.ActorFrom(ctx))
	if err != nil {
		return nil, err
	}
	s.logWrite(ctx, "create", models.KindCompany, c.CompanyCode)
	return c, nil
}

// UpdateCompany applies a partial update.
func (s *Service) UpdateCompany(ctx context.Context, code string, p *models.CompanyPatch) (*models.Company, error) {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	c, err := s.stores.Companies.Update(ctx, code, p, auth.ActorFrom(ctx))
	if err != nil {
		return nil, err
	}
	s.logWrite(ctx, "update", models.KindCompany, code)
	return c, nil
}

// SetCompanyStatus activates or deactivates a company. A nil active flips
// the current flag. Deactivation is refused while active branches or
// divisions reference the company.
func (s *Service) SetCompanyStatus(ctx context.Context, code string, active *bool) (*models.Company, error) {
	current, err := s.stores.Companies.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	next := nextActive(current.IsActive, active)
	if !next {
		if err := s.checker.Deactivate(models.KindCompany, code).Run(ctx); err != nil {
			return nil, err
		}
	}
	c, err := s.stores.Companies.SetActive(ctx, code, next, auth.ActorFrom(ctx))
	if err != nil {
		return nil, err
	}
	s.logWrite(ctx, statusAction(next), models.KindCompany, code)
	return c, nil
}

// DeleteCompany removes a company and its inactive descendants.
func (s *Service) DeleteCompany(ctx context.Context, code string) error {
	if err := s.checker.Remove(models.KindCompany, code).Run(ctx); err != nil {
		return err
	}
	if err := s.stores.Companies.Delete(ctx, code); err != nil {
		return err
	}
	s.logWrite(ctx, "delete", models.KindCompany, code)
	return nil
}

// Branches

// GetBranch returns one branch.
func (s *Service) GetBranch(ctx context.Context, code string) (*models.Branch, error) {
	return read(ctx, s.retry, func(ctx context.Context) (*models.Branch, error) {
		return s.stores.Branches.FindByCode(ctx, code)
	})
}

// ListBranches returns one page of branches.
func (s *Service) ListBranches(ctx context.Context, f models.BranchFilter, req models.PageRequest) (*models.Page[*models.Branch], error) {
	return read(ctx, s.retry, func(ctx context.Context) (*models.Page[*models.Branch], error) {
		return s.stores.Branches.List(ctx, f, req)
	})
}

// CreateBranch validates and stores a new branch.
func (s *Service) CreateBranch(ctx context.Context, in *models.BranchInput) (*models.Branch, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}
	b := in.Branch()
	if err := s.checker.CreateBranch(b).Run(ctx); err != nil {
		return nil, err
	}
	created, err := s.stores.Branches.Create(ctx, b, auth.ActorFrom(ctx))
	if err != nil {
		return nil, err
	}
	s.logWrite(ctx, "create", models.KindBranch, created.BranchCode)
	return created, nil
}

// UpdateBranch applies a partial update. Moving a branch to another company
// is only allowed while no division references it.
func (s *Service) UpdateBranch(ctx context.Context, code string, p *models.BranchPatch) (*models.Branch, error) {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	current, err := s.stores.Branches.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := s.checker.UpdateBranch(current, p.Apply(current)).Run(ctx); err != nil {
		return nil, err
	}
	b, err := s.stores.Branches.Update(ctx, code, p, auth.ActorFrom(ctx))
	if err != nil {
		return nil, err
	}
	s.logWrite(ctx, "update", models.KindBranch, code)
	return b, nil
}

// SetBranchStatus activates or deactivates a branch. A nil active flips the
// current flag.
func (s *Service) SetBranchStatus(ctx context.Context, code string, active *bool) (*models.Branch, error) {
	current, err := s.stores.Branches.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	next := nextActive(current.IsActive, active)
	plan := s.checker.Deactivate(models.KindBranch, code)
	if next {
		plan = s.checker.ActivateBranch(current)
	}
	if err := plan.Run(ctx); err != nil {
		return nil, err
	}
	b, err := s.stores.Branches.SetActive(ctx, code, next, auth.ActorFrom(ctx))
	if err != nil {
		return nil, err
	}
	s.logWrite(ctx, statusAction(next), models.KindBranch, code)
	return b, nil
}

// DeleteBranch removes a branch. Inactive divisions that referenced it are
// detached.
func (s *Service) DeleteBranch(ctx context.Context, code string) error {
	if err := s.checker.Remove(models.KindBranch, code).Run(ctx); err != nil {
		return err
	}
	if err := s.stores.Branches.Delete(ctx, code); err != nil {
		return err
	}
	s.logWrite(ctx, "delete", models.KindBranch, code)
	return nil
}

// Divisions

// GetDivision returns one division.
func (s *Service) GetDivision(ctx context.Context, code string) (*models.Division, error) {
	return read(ctx, s.retry, func(ctx context.Context) (*models.Division, error) {
		return s.stores.Divisions.FindByCode(ctx, code)
	})
}

// ListDivisions returns one page of divisions.
func (s *Service) ListDivisions(ctx context.Context, f models.DivisionFilter, req models.PageRequest) (*models.Page[*models.Division], error) {
	return read(ctx, s.retry, func(ctx context.Context) (*models.Page[*models.Division], error) {
		return s.stores.Divisions.List(ctx, f, req)
	})
}

// CreateDivision validates and stores a new division. A division with a
// branch must name a branch of its own company.
func (s *Service) CreateDivision(ctx context.Context, in *models.DivisionInput) (*models.Division, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}
	d := in.Division()
	if err := s.checker.CreateDivision(d).Run(ctx); err != nil {
		return nil, err
	}
	created, err := s.stores.Divisions.Create(ctx, d, auth.ActorFrom(ctx))
	if err != nil {
		return nil, err
	}
	s.logWrite(ctx, "create", models.KindDivision, created.DivisionCode)
	return created, nil
}

// UpdateDivision applies a partial update. Changed references are checked
// again; unchanged ones are not.
func (s *Service) UpdateDivision(ctx context.Context, code string, p *models.DivisionPatch) (*models.Division, error) {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	current, err := s.stores.Divisions.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := s.checker.UpdateDivision(current, p.Apply(current)).Run(ctx); err != nil {
		return nil, err
	}
	d, err := s.stores.Divisions.Update(ctx, code, p, auth.ActorFrom(ctx))
	if err != nil {
		return nil, err
	}
	s.logWrite(ctx, "update", models.KindDivision, code)
	return d, nil
}

// SetDivisionStatus activates or deactivates a division. A nil active flips
// the current flag.
func (s *Service) SetDivisionStatus(ctx context.Context, code string, active *bool) (*models.Division, error) {
	current, err := s.stores.Divisions.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	next := nextActive(current.IsActive, active)
	plan := s.checker.Deactivate(models.KindDivision, code)
	if next {
		plan = s.checker.ActivateDivision(current)
	}
	if err := plan.Run(ctx); err != nil {
		return nil, err
	}
	d, err := s.stores.Divisions.SetActive(ctx, code, next, auth.ActorFrom(ctx))
	if err != nil {
		return nil, err
	}
	s.logWrite(ctx, statusAction(next), models.KindDivision, code)
	return d, nil
}

// DeleteDivision removes a division and its inactive departments.
func (s *Service) DeleteDivision(ctx context.Context, code string) error {
	if err := s.checker.Remove(models.KindDivision, code).Run(ctx); err != nil {
		return err
	}
	if err := s.stores.Divisions.Delete(ctx, code); err != nil {
		return err
	}
	s.logWrite(ctx, "delete", models.KindDivision, code)
	return nil
}

// Departments

// GetDepartment returns one department.
func (s *Service) GetDepartment(ctx context.Context, code string) (*models.Department, error) {
	return read(ctx, s.retry, func(ctx context.Context) (*models.Department, error) {
		return s.stores.Departments.FindByCode(ctx, code)
	})
}

// ListDepartments returns one page of departments.
func (s *Service) ListDepartments(ctx context.Context, f models.DepartmentFilter, req models.PageRequest) (*models.Page[*models.Department], error) {
	return read(ctx, s.retry, func(ctx context.Context) (*models.Page[*models.Department], error) {
		return s.stores.Departments.List(ctx, f, req)
	})
}

// CreateDepartment validates and stores a new department.
func (s *Service) CreateDepartment(ctx context.Context, in *models.DepartmentInput) (*models.Department, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}
	d := in.Department()
	if err := s.checker.CreateDepartment(d).Run(ctx); err != nil {
		return nil, err
	}
	created, err := s.stores.Departments.Create(ctx, d, auth.ActorFrom(ctx))
	if err != nil {
		return nil, err
	}
	s.logWrite(ctx, "create", models.KindDepartment, created.DepartmentCode)
	return created, nil
}

// UpdateDepartment applies a partial update.
func (s *Service) UpdateDepartment(ctx context.Context, code string, p *models.DepartmentPatch) (*models.Department, error) {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	current, err := s.stores.Departments.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	next := *current
	if p.DivisionCode != nil {
		next.DivisionCode = *p.DivisionCode
	}
	if err := s.checker.UpdateDepartment(current, &next).Run(ctx); err != nil {
		return nil, err
	}
	d, err := s.stores.Departments.Update(ctx, code, p, auth.ActorFrom(ctx))
	if err != nil {
		return nil, err
	}
	s.logWrite(ctx, "update", models.KindDepartment, code)
	return d, nil
}

// SetDepartmentStatus activates or deactivates a department. A nil active
// flips the current flag.
func (s *Service) SetDepartmentStatus(ctx context.Context, code string, active *bool) (*models.Department, error) {
	current, err := s.stores.Departments.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	next := nextActive(current.IsActive, active)
	plan := s.checker.Deactivate(models.KindDepartment, code)
	if next {
		plan = s.checker.ActivateDepartment(current)
	}
	if err := plan.Run(ctx); err != nil {
		return nil, err
	}
	d, err := s.stores.Departments.SetActive(ctx, code, next, auth.ActorFrom(ctx))
	if err != nil {
		return nil, err
	}
	s.logWrite(ctx, statusAction(next), models.KindDepartment, code)
	return d, nil
}

// DeleteDepartment removes a department.
func (s *Service) DeleteDepartment(ctx context.Context, code string) error {
	if err := s.checker.Remove(models.KindDepartment, code).Run(ctx); err != nil {
		return err
	}
	if err := s.stores.Departments.Delete(ctx, code); err != nil {
		return err
	}
	s.logWrite(ctx, "delete", models.KindDepartment, code)
	return nil
}

func statusAction(active bool) string {
	if active {
		return "activate"
	}
	return "deactivate"
}
