package hierarchy

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/MacJediWizard/orgtree/internal/apperr"
	"github.com/MacJediWizard/orgtree/internal/models"
	"github.com/MacJediWizard/orgtree/internal/store"
)

// Composer assembles read-only tree views. It reads each level with one
// query and joins the rows in memory; only active rows are traversed.
type Composer struct {
	stores *store.Stores
	retry  retrier
	logger zerolog.Logger
}

// NewComposer creates a Composer over stores.
func NewComposer(stores *store.Stores, retry RetryConfig, logger zerolog.Logger) *Composer {
	logger = logger.With().Str("component", "composer").Logger()
	return &Composer{
		stores: stores,
		retry:  retrier{cfg: retry, logger: logger},
		logger: logger,
	}
}

// levelRows is one snapshot of the active rows of every level.
type levelRows struct {
	companies   []*models.Company
	branches    []*models.Branch
	divisions   []*models.Division
	departments []*models.Department
}

// FullTree returns every active company with its active descendants.
func (c *Composer) FullTree(ctx context.Context) ([]*models.CompanyNode, error) {
	return read(ctx, c.retry, func(ctx context.Context) ([]*models.CompanyNode, error) {
		rows, err := c.load(ctx, "")
		if err != nil {
			return nil, err
		}
		return assemble(rows), nil
	})
}

// CompanyTree returns one active company with its active descendants. A
// missing or inactive company is NotFound.
func (c *Composer) CompanyTree(ctx context.Context, code string) (*models.CompanyNode, error) {
	return read(ctx, c.retry, func(ctx context.Context) (*models.CompanyNode, error) {
		rows, err := c.load(ctx, code)
		if err != nil {
			return nil, err
		}
		tree := assemble(rows)
		if len(tree) == 0 {
			return nil, apperr.NotFound(string(models.KindCompany), code)
		}
		return tree[0], nil
	})
}

// Flexible returns the hierarchy restricted to the selected levels. The
// descendants of an excluded level are attached to the nearest included
// ancestor. With a company code the result holds that company only.
func (c *Composer) Flexible(ctx context.Context, opts models.FlexibleOptions) ([]*models.Node, error) {
	var tree []*models.CompanyNode
	if opts.CompanyCode != "" {
		node, err := c.CompanyTree(ctx, opts.CompanyCode)
		if err != nil {
			return nil, err
		}
		tree = []*models.CompanyNode{node}
	} else {
		var err error
		if tree, err = c.FullTree(ctx); err != nil {
			return nil, err
		}
	}

	out := make([]*models.Node, 0, len(tree))
	for _, company := range tree {
		out = append(out, flexCompany(company, opts.Levels))
	}
	return out, nil
}

// load reads the active rows of every level, scoped to one company when
// companyCode is set.
func (c *Composer) load(ctx context.Context, companyCode string) (*levelRows, error) {
	active := true
	rows := &levelRows{}

	if companyCode != "" {
		company, err := c.stores.Companies.FindByCode(ctx, companyCode)
		if err != nil {
			return nil, err
		}
		if !company.IsActive {
			return nil, apperr.NotFound(string(models.KindCompany), companyCode)
		}
		rows.companies = []*models.Company{company}
	} else {
		companies, err := c.stores.Companies.All(ctx, models.CompanyFilter{IsActive: &active})
		if err != nil {
			return nil, err
		}
		rows.companies = companies
	}

	var err error
	if rows.branches, err = c.stores.Branches.All(ctx, models.BranchFilter{IsActive: &active, CompanyCode: companyCode}); err != nil {
		return nil, err
	}
	if rows.divisions, err = c.stores.Divisions.All(ctx, models.DivisionFilter{IsActive: &active, CompanyCode: companyCode}); err != nil {
		return nil, err
	}
	if rows.departments, err = c.stores.Departments.All(ctx, models.DepartmentFilter{IsActive: &active, CompanyCode: companyCode}); err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("company_code", companyCode).
		Int("companies", len(rows.companies)).
		Int("branches", len(rows.branches)).
		Int("divisions", len(rows.divisions)).
		Int("departments", len(rows.departments)).
		Msg("hierarchy loaded")
	return rows, nil
}

// assemble joins the level rows into company trees. A row whose parent is not
// in the snapshot is unreachable and dropped; every child list is non-nil.
func assemble(rows *levelRows) []*models.CompanyNode {
	departmentsOf := make(map[string][]*models.Department)
	for _, d := range rows.departments {
		departmentsOf[d.DivisionCode] = append(departmentsOf[d.DivisionCode], d)
	}

	companies := make(map[string]*models.CompanyNode, len(rows.companies))
	tree := make([]*models.CompanyNode, 0, len(rows.companies))
	for _, c := range rows.companies {
		node := &models.CompanyNode{
			Company:   c,
			Branches:  []*models.BranchNode{},
			Divisions: []*models.DivisionNode{},
		}
		companies[c.CompanyCode] = node
		tree = append(tree, node)
	}

	branches := make(map[string]*models.BranchNode, len(rows.branches))
	for _, b := range rows.branches {
		company, ok := companies[b.CompanyCode]
		if !ok {
			continue
		}
		node := &models.BranchNode{Branch: b, Divisions: []*models.DivisionNode{}}
		branches[b.BranchCode] = node
		company.Branches = append(company.Branches, node)
	}

	for _, d := range rows.divisions {
		company, ok := companies[d.CompanyCode]
		if !ok {
			continue
		}
		deps := departmentsOf[d.DivisionCode]
		if deps == nil {
			deps = []*models.Department{}
		}
		node := &models.DivisionNode{Division: d, Departments: deps}

		if code := d.Branch(); code != "" {
			if branch, ok := branches[code]; ok {
				branch.Divisions = append(branch.Divisions, node)
			}
			continue
		}
		company.Divisions = append(company.Divisions, node)
	}
	return tree
}

func flexCompany(c *models.CompanyNode, levels models.LevelSet) *models.Node {
	children := []*models.Node{}
	for _, b := range c.Branches {
		divisions := flexDivisions(b.Divisions, levels)
		if !levels.Branches {
			children = append(children, divisions...)
			continue
		}
		children = append(children, &models.Node{
			Level:    models.KindBranch,
			Code:     b.BranchCode,
			Name:     b.Name,
			Data:     b.Branch,
			Children: divisions,
		})
	}
	children = append(children, flexDivisions(c.Divisions, levels)...)

	return &models.Node{
		Level:    models.KindCompany,
		Code:     c.CompanyCode,
		Name:     c.NameTH,
		Data:     c.Company,
		Children: children,
	}
}

func flexDivisions(divisions []*models.DivisionNode, levels models.LevelSet) []*models.Node {
	out := []*models.Node{}
	for _, d := range divisions {
		departments := []*models.Node{}
		if levels.Departments {
			for _, dep := range d.Departments {
				departments = append(departments, &models.Node{
					Level:    models.KindDepartment,
					Code:     dep.DepartmentCode,
					Name:     dep.Name,
					Data:     dep,
					Children: []*models.Node{},
				})
			}
		}
		if !levels.Divisions {
			out = append(out, departments...)
			continue
		}
		out = append(out, &models.Node{
			Level:    models.KindDivision,
			Code:     d.DivisionCode,
			Name:     d.Name,
			Data:     d.Division,
			Children: departments,
		})
	}
	return out
}
