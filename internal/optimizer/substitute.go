package optimizer

import "specbmc/internal/expr"

// substitute rewrites every OpVariable leaf in e whose identifier is a key
// of repl with the mapped expression, recursing into operands first, and
// reports whether anything changed. expr.Expr's fields are only settable
// from within the expr package's own constructors, so — exactly like
// expr.Fold and expr.Simplify — this rebuilds affected nodes via a struct
// literal rather than mutating in place.
func substitute(e *expr.Expr, repl map[string]*expr.Expr) (*expr.Expr, bool) {
	if e == nil {
		return e, false
	}
	if e.Op == expr.OpVariable {
		if r, ok := repl[e.Var.Identifier()]; ok {
			return r, true
		}
		return e, false
	}

	changed := false
	newOperands := make([]*expr.Expr, len(e.Operands))
	for i, o := range e.Operands {
		s, ok := substitute(o, repl)
		newOperands[i] = s
		changed = changed || ok
	}
	if !changed {
		return e, false
	}
	return &expr.Expr{
		Op:         e.Op,
		Operands:   newOperands,
		ResultSort: e.ResultSort,
		Var:        e.Var,
		Const:      e.Const,
		CastTo:     e.CastTo,
		Hi:         e.Hi,
		Lo:         e.Lo,
	}, true
}
