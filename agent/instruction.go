package agent

import "github.com/deskmate-ai/deskmate/core"

// Provider yields instruction text for a run. Implementations may read
// session state, the clock, or anything else reachable from the RunContext.
type Provider interface {
	Instruction(*core.RunContext) (string, error)
}

// Func adapts a plain function into a Provider.
type Func func(*core.RunContext) (string, error)

func (f Func) Instruction(rc *core.RunContext) (string, error) { return f(rc) }

// Instruction holds either fixed instruction text or a Provider that
// computes it per run. Exactly one of the two is set.
type Instruction struct {
	text     string
	provider Provider
}

// NewInstructionFromText wraps a fixed string.
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromProvider wraps a dynamic Provider.
func NewInstructionFromProvider(p Provider) Instruction { return Instruction{provider: p} }

// NewInstructionFromFunc wraps a function as a dynamic provider.
func NewInstructionFromFunc(f func(*core.RunContext) (string, error)) Instruction {
	return Instruction{provider: Func(f)}
}

// IsStatic reports whether the instruction resolves without a provider.
func (i Instruction) IsStatic() bool { return i.provider == nil }

// Resolve produces the instruction text for this run.
func (i Instruction) Resolve(ctx *core.RunContext) (string, error) {
	if i.provider == nil {
		return i.text, nil
	}
	return i.provider.Instruction(ctx)
}
