// Package pipeline runs a workflow's resolved, ordered steps and stops at the
// first failure.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Step is a single named unit of work.
type Step struct {
	Name string
	Run  func(ctx context.Context) error

	// Skip marks a step disabled for this invocation; it is reported as skipped.
	Skip       bool
	SkipReason string

	// Confirm, when set, is asked through the gate before Run. A negative
	// answer aborts the plan.
	Confirm string
}

// Plan is an immutable ordered list of steps for one workflow variant.
type Plan struct {
	name  string
	steps []Step
}

// NewPlan validates steps and freezes them into a Plan.
func NewPlan(name string, steps ...Step) (Plan, error) {
	if strings.TrimSpace(name) == "" {
		return Plan{}, errors.New("plan name must not be empty")
	}
	seen := make(map[string]struct{}, len(steps))
	for i, step := range steps {
		if strings.TrimSpace(step.Name) == "" {
			return Plan{}, fmt.Errorf("plan %s: step %d has no name", name, i)
		}
		if step.Run == nil && !step.Skip {
			return Plan{}, fmt.Errorf("plan %s: step %s has no action", name, step.Name)
		}
		if _, dup := seen[step.Name]; dup {
			return Plan{}, fmt.Errorf("plan %s: duplicate step %s", name, step.Name)
		}
		seen[step.Name] = struct{}{}
	}

	frozen := make([]Step, len(steps))
	copy(frozen, steps)
	return Plan{name: name, steps: frozen}, nil
}

// MustPlan is NewPlan for statically known plans.
func MustPlan(name string, steps ...Step) Plan {
	plan, err := NewPlan(name, steps...)
	if err != nil {
		panic(err)
	}
	return plan
}

// Name identifies the workflow variant, e.g. "build" or "release-minor".
func (p Plan) Name() string { return p.name }

// Steps returns a copy of the ordered steps.
func (p Plan) Steps() []Step {
	out := make([]Step, len(p.steps))
	copy(out, p.steps)
	return out
}

// Len returns the number of steps.
func (p Plan) Len() int { return len(p.steps) }

// StepNames lists step names in execution order.
func (p Plan) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, s := range p.steps {
		names[i] = s.Name
	}
	return names
}
