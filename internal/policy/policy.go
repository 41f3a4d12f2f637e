package policy

import (
	"context"
)

// Policy decides whether a grace sweep pass should run.
type Policy interface {
	Name() string
	ShouldTriggerSweep(ctx context.Context) (bool, error)
}

// Engine evaluates a set of sweep policies.
type Engine struct {
	policies []Policy
}

// NewEngine creates a new policy engine.
func NewEngine(policies ...Policy) *Engine {
	return &Engine{
		policies: policies,
	}
}

// SetPolicies sets the policies for the engine, replacing any existing ones.
func (e *Engine) SetPolicies(policies ...Policy) {
	e.policies = policies
}

// ShouldTriggerSweep reports whether the sweep should run.
// Without policies the sweep always runs. Otherwise policies are checked until one returns true.
func (e *Engine) ShouldTriggerSweep(ctx context.Context) (bool, error) {
	if len(e.policies) == 0 {
		return true, nil
	}

	for _, policy := range e.policies {
		trigger, err := policy.ShouldTriggerSweep(ctx)
		if err != nil {
			return false, err
		}
		if trigger {
			return true, nil
		}
	}
	return false, nil
}
