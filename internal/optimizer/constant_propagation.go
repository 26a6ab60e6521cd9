package optimizer

import (
	"specbmc/internal/expr"
	"specbmc/internal/lir"
)

// ConstantPropagation propagates every `x := c` binding (c constant) into
// later uses of x, without removing the originating Let — DeadCodeElimination
// is responsible for dropping bindings that become unused. Grounded on
// lir/optimization/constant_propagation.rs; requires SSA input (each
// variable defined exactly once), as the original documents.
type ConstantPropagation struct{}

func (ConstantPropagation) Name() string { return "Constant Propagation" }

func (ConstantPropagation) Description() string {
	return "Propagates constant-valued variables into their uses"
}

func (ConstantPropagation) Apply(program *lir.Program) bool {
	constants := map[string]*expr.Expr{}
	for _, n := range program.Nodes {
		if n.Kind == lir.NodeLet && n.Value.Op == expr.OpConstant {
			constants[n.Variable.Identifier()] = n.Value
		}
	}
	if len(constants) == 0 {
		return false
	}

	changed := false
	for _, n := range program.Nodes {
		if n.Kind == lir.NodeComment {
			continue
		}
		replaced, ok := substitute(n.Value, constants)
		if ok {
			n.Value = replaced
			changed = true
		}
	}
	return changed
}
