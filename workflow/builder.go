package workflow

import "github.com/aigateway/gateway/core"

// Builder is a fluent assembler producing a Definition (spec §4.6). Its
// only enforced invariant is step count ≥ 1; everything else is
// mechanical field assignment.
type Builder struct {
	def Definition
}

// NewBuilder starts a Builder for a workflow named name.
func NewBuilder(name string) *Builder {
	return &Builder{def: Definition{Name: name}}
}

// Description sets the definition's description.
func (b *Builder) Description(d string) *Builder {
	b.def.Description = d
	return b
}

// Step appends a step to the definition.
func (b *Builder) Step(s Step) *Builder {
	b.def.Steps = append(b.def.Steps, s)
	return b
}

// TotalTimeoutMs sets the workflow's total-timeout override.
func (b *Builder) TotalTimeoutMs(ms int) *Builder {
	b.def.TotalTimeoutMs = ms
	return b
}

// DefaultStepTimeoutMs sets the per-step default-timeout override.
func (b *Builder) DefaultStepTimeoutMs(ms int) *Builder {
	b.def.DefaultStepTimeoutMs = ms
	return b
}

// Build returns the assembled Definition, failing if no steps were
// added.
func (b *Builder) Build() (*Definition, error) {
	if len(b.def.Steps) == 0 {
		return nil, core.ErrNoSteps
	}
	def := b.def
	def.Steps = append([]Step(nil), b.def.Steps...)
	return &def, nil
}
