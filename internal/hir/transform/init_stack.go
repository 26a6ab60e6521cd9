package transform

import (
	"specbmc/internal/environment"
	"specbmc/internal/expr"
	"specbmc/internal/hir"
)

// stackBase is the lowest address a well-formed stack pointer can hold,
// chosen far below any realistic heap/data address so InitStack's bound
// only excludes pathological pointers, not real stack usage.
const stackBase = 0xffff_0000_0000

// InitStack sets up the initial state of the stack (§4.C.4): the base and
// stack pointers are havoced, declared low (attacker-visible, since an
// adversary can always observe its own stack layout), and constrained so
// the stack grows downward from a fixed base; the return address on top of
// the stack is declared low as well, since it is determined by the
// (public) call site.
type InitStack struct{}

func (InitStack) Name() string { return "InitStack" }

func (InitStack) Description() string { return "set up initial state of the stack" }

func (InitStack) Apply(program *hir.Program) error {
	entry, err := program.ControlFlowGraph().EntryBlock()
	if err != nil {
		return err
	}

	wordSort := expr.BitVectorSort(environment.WordSize)
	basePointer := expr.NewVariable(environment.BasePointerName, wordSort)
	stackPointer := expr.NewVariable(environment.StackPointerName, wordSort)

	havocVariable(entry, basePointer)
	lowEquivalent(entry, expr.VariableExpr(basePointer))

	havocVariable(entry, stackPointer)
	lowEquivalent(entry, expr.VariableExpr(stackPointer))

	below, err := expr.BVULt(expr.VariableExpr(stackPointer), expr.VariableExpr(basePointer))
	if err != nil {
		return err
	}
	entry.Assume(below).Pseudo = true

	above, err := expr.BVUGt(expr.VariableExpr(stackPointer), bvConstant(stackBase, environment.WordSize))
	if err != nil {
		return err
	}
	entry.Assume(above).Pseudo = true

	memory := expr.NewVariable("memory", expr.MemorySort())
	returnAddress, err := expr.MemLoad(environment.WordSize, expr.VariableExpr(memory), expr.VariableExpr(stackPointer))
	if err != nil {
		return err
	}
	lowEquivalent(entry, returnAddress)

	return nil
}

func havocVariable(b *hir.Block, v *expr.Variable) {
	inst := b.Assign(v, expr.Nondet(v.VarSort))
	inst.Pseudo = true
}

func lowEquivalent(b *hir.Block, e *expr.Expr) {
	b.Indistinguishable(e).Pseudo = true
}
