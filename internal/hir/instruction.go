package hir

import (
	"fmt"
	"strings"

	"specbmc/internal/expr"
)

// Instruction holds an Operation plus its block-local index, any attached
// Effects, and an optional source address for counterexample rendering
// (§4.C, §4.G).
type Instruction struct {
	Index     int
	Operation Operation
	Effects   []Effect
	Address   *uint64
	Pseudo    bool // ghost instruction added by instrumentation, not modeled code (§3)
}

func newInstruction(index int, op Operation) *Instruction {
	return &Instruction{Index: index, Operation: op}
}

func (i *Instruction) AddEffect(e Effect)    { i.Effects = append(i.Effects, e) }
func (i *Instruction) HasEffects() bool      { return len(i.Effects) > 0 }
func (i *Instruction) IsBranch() bool        { return i.Operation.Kind == OpBranch }
func (i *Instruction) IsConditionalBranch() bool {
	return i.Operation.Kind == OpConditionalBranch
}
func (i *Instruction) IsBarrier() bool    { return i.Operation.Kind == OpBarrier }
func (i *Instruction) IsObservable() bool { return i.Operation.Kind == OpObservable }

func (i *Instruction) VariablesRead() []*expr.Variable {
	vars := i.Operation.VariablesRead()
	for _, e := range i.Effects {
		vars = append(vars, e.VariablesRead()...)
	}
	return vars
}

func (i *Instruction) VariablesWritten() []*expr.Variable {
	vars := i.Operation.VariablesWritten()
	for _, e := range i.Effects {
		vars = append(vars, e.VariablesWritten()...)
	}
	return vars
}

func (i *Instruction) String() string {
	var sb strings.Builder
	if i.Address != nil {
		fmt.Fprintf(&sb, "%X ", *i.Address)
	}
	sb.WriteString(i.Operation.String())
	for _, e := range i.Effects {
		fmt.Fprintf(&sb, "\n\t# %s", e)
	}
	return sb.String()
}
