package models

import (
	"strings"

	"github.com/MacJediWizard/orgtree/internal/apperr"
)

// CompanyNode is a company with its active descendants.
type CompanyNode struct {
	*Company
	Branches []*BranchNode `json:"branches"`
	// Divisions lists the company-level divisions that have no branch.
	Divisions []*DivisionNode `json:"divisions"`
}

// BranchNode is a branch with its active divisions.
type BranchNode struct {
	*Branch
	Divisions []*DivisionNode `json:"divisions"`
}

// DivisionNode is a division with its active departments.
type DivisionNode struct {
	*Division
	Departments []*Department `json:"departments"`
}

// Level names accepted by the flexible view.
const (
	LevelBranches    = "branches"
	LevelDivisions   = "divisions"
	LevelDepartments = "departments"
)

// LevelSet selects which descendant levels appear in a flexible view.
// The company level is always present.
type LevelSet struct {
	Branches    bool
	Divisions   bool
	Departments bool
}

// AllLevels includes every descendant level.
func AllLevels() LevelSet {
	return LevelSet{Branches: true, Divisions: true, Departments: true}
}

// ParseLevels builds a LevelSet from comma separated include and exclude
// lists. An empty include list means every level.
func ParseLevels(include, exclude string) (LevelSet, error) {
	set := AllLevels()
	if names := splitLevels(include); len(names) > 0 {
		set = LevelSet{}
		for _, name := range names {
			if err := set.toggle(name, true); err != nil {
				return LevelSet{}, err
			}
		}
	}
	for _, name := range splitLevels(exclude) {
		if err := set.toggle(name, false); err != nil {
			return LevelSet{}, err
		}
	}
	return set, nil
}

func (s *LevelSet) toggle(name string, on bool) error {
	switch name {
	case LevelBranches, "branch":
		s.Branches = on
	case LevelDivisions, "division":
		s.Divisions = on
	case LevelDepartments, "department":
		s.Departments = on
	case "companies", "company":
		if !on {
			return apperr.Validation("the company level cannot be excluded")
		}
	default:
		return apperr.Validation("unknown hierarchy level %q", name)
	}
	return nil
}

func splitLevels(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// FlexibleOptions selects the scope and shape of a flexible view.
type FlexibleOptions struct {
	CompanyCode string
	Levels      LevelSet
}

// Node is a generic hierarchy node used by the flexible view.
type Node struct {
	Level    Kind    `json:"level"`
	Code     string  `json:"code"`
	Name     string  `json:"name"`
	Data     any     `json:"data"`
	Children []*Node `json:"children"`
}
