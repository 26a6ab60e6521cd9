package optimizer

import (
	"specbmc/internal/expr"
	"specbmc/internal/lir"
)

// ConstantFolding evaluates constant subexpressions in every node's value,
// grounded on lir/optimization/constant_folding.rs's generic Expr::fold()
// tree walk. The actual per-expression evaluation is expr.Fold
// (internal/expr/fold.go), so this pass is just the node-level driver.
type ConstantFolding struct{}

func (ConstantFolding) Name() string { return "Constant Folding" }

func (ConstantFolding) Description() string {
	return "Evaluates constant subexpressions at compile time"
}

func (ConstantFolding) Apply(program *lir.Program) bool {
	changed := false
	for _, n := range program.Nodes {
		switch n.Kind {
		case lir.NodeLet, lir.NodeAssert, lir.NodeAssume:
			folded, ok := expr.Fold(n.Value)
			if ok {
				n.Value = folded
				changed = true
			}
		}
	}
	return changed
}
