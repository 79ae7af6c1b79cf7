// Package workflow holds the workflow definition data model, the
// per-execution context threaded through a driver, the transformer
// library, and the fluent builder that assembles definitions (spec §3,
// §4.6).
package workflow

import "github.com/aigateway/gateway/provider"

// InputResolver computes a step's typed category input from the
// workflow's original input and the running context. It is the function
// form of Step.Input (spec §3: "input is either a literal value ... OR a
// transformer function").
type InputResolver func(workflowInput interface{}, ctx *Context) (interface{}, error)

// SkipIf decides, from the running context, whether a step should be
// skipped rather than executed.
type SkipIf func(ctx *Context) bool

// Step is one entry in a Definition's step list (spec §3).
type Step struct {
	Name string
	// Category selects which failover executor and result-accumulation
	// rule (stream-to-string vs. structured result) applies to this step.
	Category provider.Category
	// Input is either a literal category-input value or an InputResolver.
	// The driver type-switches on it at resolution time.
	Input interface{}
	// TimeoutMs overrides the definition's DefaultStepTimeoutMs for this
	// step only; zero means "use the default".
	TimeoutMs int
	// SkipIf, when non-nil and true, causes the step to be marked skipped
	// without invoking any provider.
	SkipIf SkipIf
}

// ResolveInput computes this step's input value. If Input is an
// InputResolver it is invoked with workflowInput and ctx; otherwise Input
// is used verbatim as a literal.
func (s Step) ResolveInput(workflowInput interface{}, ctx *Context) (interface{}, error) {
	if resolver, ok := s.Input.(InputResolver); ok {
		return resolver(workflowInput, ctx)
	}
	return s.Input, nil
}

// Definition is an assembled, immutable workflow definition (spec §3).
// Step count must be ≥ 1; this is enforced by Builder.Build rather than
// by Definition itself, since a definition may also be constructed
// directly by tests.
type Definition struct {
	Name                 string
	Description          string
	Steps                []Step
	TotalTimeoutMs        int
	DefaultStepTimeoutMs int
}

// StepByName returns the last step registered under name, matching
// spec §3's "lookup by name uses last write wins" invariant for
// definitions whose step names collide.
func (d *Definition) StepByName(name string) (Step, bool) {
	var found Step
	ok := false
	for _, s := range d.Steps {
		if s.Name == name {
			found = s
			ok = true
		}
	}
	return found, ok
}
