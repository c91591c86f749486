// Package integrity holds the cross-entity rules of the organization
// hierarchy. Rules only read; they run in a fixed order before the single
// write that a mutation issues, and the first failure stops the chain.
//
// The storage schema repeats the headquarters and foreign key rules as
// constraints, so a write that races past these checks still fails.
package integrity

import (
	"context"
)

// Rule checks one condition and returns a taxonomy error when it does not hold.
type Rule func(ctx context.Context) error

// Stage orders rules within a Plan.
type Stage int

const (
	// StageExistence checks that referenced parents exist and are active.
	StageExistence Stage = iota
	// StageConsistency checks cross-field references between parents.
	StageConsistency
	// StageUniqueness checks per-parent uniqueness such as the headquarters flag.
	StageUniqueness
	// StageDependents checks for active children before deactivation or delete.
	StageDependents

	stageCount
)

func (s Stage) String() string {
	switch s {
	case StageExistence:
		return "existence"
	case StageConsistency:
		return "consistency"
	case StageUniqueness:
		return "uniqueness"
	case StageDependents:
		return "dependents"
	default:
		return "unknown"
	}
}

// Plan is an ordered set of rules for one mutation.
type Plan struct {
	stages [stageCount][]Rule
}

// NewPlan returns an empty plan.
func NewPlan() *Plan {
	return &Plan{}
}

// Add appends rule to stage. Rules within a stage run in insertion order.
func (p *Plan) Add(stage Stage, rule Rule) *Plan {
	p.stages[stage] = append(p.stages[stage], rule)
	return p
}

// Len returns the number of rules in the plan.
func (p *Plan) Len() int {
	n := 0
	for _, rules := range p.stages {
		n += len(rules)
	}
	return n
}

// Rules returns the rules in execution order.
func (p *Plan) Rules() []Rule {
	out := make([]Rule, 0, p.Len())
	for _, rules := range p.stages {
		out = append(out, rules...)
	}
	return out
}

// Run executes the plan.
func (p *Plan) Run(ctx context.Context) error {
	return Run(ctx, p.Rules()...)
}

// Run executes rules in order and returns the first failure.
func Run(ctx context.Context, rules ...Rule) error {
	for _, rule := range rules {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := rule(ctx); err != nil {
			return err
		}
	}
	return nil
}
