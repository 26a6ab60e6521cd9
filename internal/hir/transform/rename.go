package transform

import (
	"sort"

	"specbmc/internal/expr"
	"specbmc/internal/hir"
)

// variableVersioning assigns fresh SSA version numbers to each definition of
// a variable and tracks, per lexical scope, which version is currently
// visible by name. Scopes nest along the dominator tree: a block's scope
// inherits its immediate dominator's visible versions, so a use only ever
// resolves to a definition that dominates it.
type variableVersioning struct {
	counter       map[string]int
	scopedVersion []map[string]int
}

func newVariableVersioning() *variableVersioning {
	return &variableVersioning{counter: map[string]int{}}
}

func (v *variableVersioning) startNewScope() {
	scope := map[string]int{}
	if len(v.scopedVersion) > 0 {
		parent := v.scopedVersion[len(v.scopedVersion)-1]
		for k, val := range parent {
			scope[k] = val
		}
	}
	v.scopedVersion = append(v.scopedVersion, scope)
}

func (v *variableVersioning) endScope() {
	v.scopedVersion = v.scopedVersion[:len(v.scopedVersion)-1]
}

// getVersion returns the version currently visible for variable's name in
// the innermost scope, or nil if the name has never been defined on this
// path (e.g. it is read before any dominating definition — left unversioned).
func (v *variableVersioning) getVersion(variable *expr.Variable) *int {
	if len(v.scopedVersion) == 0 {
		return nil
	}
	scope := v.scopedVersion[len(v.scopedVersion)-1]
	if ver, ok := scope[variable.Name]; ok {
		return &ver
	}
	return nil
}

// newVersion allocates the next version number for variable's name (the
// counter is global across the whole renaming, never reused) and makes it
// visible in the innermost scope.
func (v *variableVersioning) newVersion(variable *expr.Variable) int {
	version := v.counter[variable.Name] + 1
	v.counter[variable.Name] = version
	v.scopedVersion[len(v.scopedVersion)-1][variable.Name] = version
	return version
}

func renameVariables(program *hir.Program) error {
	versioning := newVariableVersioning()
	cfg := program.ControlFlowGraph()
	entry, err := cfg.Entry()
	if err != nil {
		return err
	}

	idom, err := computeDominatorTree(cfg, entry)
	if err != nil {
		return err
	}

	children := map[int][]int{}
	for node, dominator := range idom {
		if node == dominator {
			continue // entry dominates itself, has no parent
		}
		children[dominator] = append(children[dominator], node)
	}
	for node := range children {
		sort.Ints(children[node])
	}

	var visit func(node int) error
	visit = func(node int) error {
		versioning.startNewScope()
		defer versioning.endScope()

		block, err := cfg.Block(node)
		if err != nil {
			return err
		}
		renameBlock(block, versioning)

		for _, successor := range cfg.SuccessorIndices(node) {
			edge, err := cfg.Edge(node, successor)
			if err != nil {
				return err
			}
			if edge.Condition != nil {
				edge.Condition = renameExpr(edge.Condition, versioning)
			}

			successorBlock, err := cfg.Block(successor)
			if err != nil {
				return err
			}
			for _, phi := range successorBlock.PhiNodes() {
				if incoming, ok := phi.IncomingVariable(node); ok {
					if ver := versioning.getVersion(incoming); ver != nil {
						phi.Incoming[node] = incoming.WithVersion(*ver)
					}
				}
			}
		}

		for _, child := range children[node] {
			if err := visit(child); err != nil {
				return err
			}
		}
		return nil
	}

	return visit(entry)
}

func renameExpr(e *expr.Expr, versioning *variableVersioning) *expr.Expr {
	return expr.SubstituteVariables(e, func(v *expr.Variable) *expr.Variable {
		if ver := versioning.getVersion(v); ver != nil {
			return v.WithVersion(*ver)
		}
		return nil
	})
}

// renameBlock renames phi-node outputs (fresh definitions) then every
// instruction's reads (rewritten to the currently visible version) followed
// by its writes (fresh definitions), in program order.
func renameBlock(b *hir.Block, versioning *variableVersioning) {
	for _, phi := range b.PhiNodes() {
		phi.Out = phi.Out.WithVersion(versioning.newVersion(phi.Out))
	}

	for _, inst := range b.Instructions() {
		renameInstruction(inst, versioning)
	}
}

// renameInstruction rewrites reads using the versions visible at this point
// in the block, then introduces fresh versions for every write, matching
// read-before-write instruction semantics (e.g. `x := x` reads the old `x`
// before the assignment defines a new one).
func renameInstruction(inst *hir.Instruction, versioning *variableVersioning) {
	op := &inst.Operation

	switch op.Kind {
	case hir.OpAssign:
		op.Expr = renameExpr(op.Expr, versioning)
		op.Variable = op.Variable.WithVersion(versioning.newVersion(op.Variable))
	case hir.OpStore:
		op.Memory = versionOf(op.Memory, versioning)
		op.Addr = renameExpr(op.Addr, versioning)
		op.Value = renameExpr(op.Value, versioning)
		op.NewMemory = op.NewMemory.WithVersion(versioning.newVersion(op.NewMemory))
	case hir.OpLoad:
		op.Memory = versionOf(op.Memory, versioning)
		op.Addr = renameExpr(op.Addr, versioning)
		op.Variable = op.Variable.WithVersion(versioning.newVersion(op.Variable))
	case hir.OpBranch:
		op.Target = renameExpr(op.Target, versioning)
	case hir.OpConditionalBranch:
		op.Condition = renameExpr(op.Condition, versioning)
		op.Target = renameExpr(op.Target, versioning)
	case hir.OpCall:
		for i, a := range op.Args {
			op.Args[i] = renameExpr(a, versioning)
		}
		if op.Result != nil {
			op.Result = op.Result.WithVersion(versioning.newVersion(op.Result))
		}
	case hir.OpAssert, hir.OpAssume:
		op.Condition = renameExpr(op.Condition, versioning)
	case hir.OpObservable, hir.OpIndistinguishable:
		op.Observed = renameExpr(op.Observed, versioning)
	case hir.OpBarrier:
		// no operands
	}
}

func versionOf(v *expr.Variable, versioning *variableVersioning) *expr.Variable {
	if ver := versioning.getVersion(v); ver != nil {
		return v.WithVersion(*ver)
	}
	return v
}
