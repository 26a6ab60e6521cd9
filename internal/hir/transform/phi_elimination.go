package transform

import (
	"specbmc/internal/expr"
	"specbmc/internal/hir"
)

// PhiElimination replaces trivial phi nodes — `x2 = phi[x1, x1, ..., x1]` —
// with a plain assignment `x2 := x1` at the top of the block (§9). Requires
// SSA form. Run after SSATransformation and again after any optimization
// that can make a previously-nontrivial phi trivial (e.g. constant folding
// collapsing two incoming arms to the same value).
type PhiElimination struct{}

func (PhiElimination) Name() string { return "PhiElimination" }

func (PhiElimination) Description() string { return "replace trivial phi nodes with assignments" }

func (PhiElimination) Apply(program *hir.Program) error {
	for _, b := range program.ControlFlowGraph().Blocks() {
		var trivialIndices []int
		for i, phi := range b.PhiNodes() {
			if phi.IsTrivial() {
				trivialIndices = append(trivialIndices, i)
			}
		}

		for i := len(trivialIndices) - 1; i >= 0; i-- {
			index := trivialIndices[i]
			phi, ok := b.RemovePhiNode(index)
			if !ok {
				continue
			}
			if in := phi.AnyIncoming(); in != nil {
				inst := b.InsertInstructionAt(0, hir.Assign(phi.Out, expr.VariableExpr(in)))
				inst.Pseudo = true
			}
		}
	}

	return nil
}
