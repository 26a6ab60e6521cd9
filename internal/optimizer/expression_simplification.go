package optimizer

import (
	"specbmc/internal/expr"
	"specbmc/internal/lir"
)

// ExpressionSimplification applies the peephole algebraic rewrites of
// expr.Simplify (boolean/bitvector identities, ite collapse, nested-cast
// fusion) to every node's value, grounded on
// lir/optimization/expression_simplification.rs's Simplify trait walk.
type ExpressionSimplification struct{}

func (ExpressionSimplification) Name() string { return "Expression Simplification" }

func (ExpressionSimplification) Description() string {
	return "Applies algebraic identities to simplify expressions"
}

func (ExpressionSimplification) Apply(program *lir.Program) bool {
	changed := false
	for _, n := range program.Nodes {
		switch n.Kind {
		case lir.NodeLet, lir.NodeAssert, lir.NodeAssume:
			simplified, ok := expr.Simplify(n.Value)
			if ok {
				n.Value = simplified
				changed = true
			}
		}
	}
	return changed
}
