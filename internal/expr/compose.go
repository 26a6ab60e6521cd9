package expr

// SelfCompose clones e and stamps composition = k on every composable
// variable in its subtree (§4.A). Predictor-sorted variables are left
// unstamped: the oracle is shared across compositions (DESIGN NOTES §9).
func SelfCompose(e *Expr, k int) *Expr {
	if e == nil {
		return nil
	}
	clone := &Expr{Op: e.Op, ResultSort: e.ResultSort, CastTo: e.CastTo, Hi: e.Hi, Lo: e.Lo, Const: e.Const}
	if e.Var != nil {
		clone.Var = e.Var.WithComposition(k)
	}
	if len(e.Operands) > 0 {
		clone.Operands = make([]*Expr, len(e.Operands))
		for i, o := range e.Operands {
			clone.Operands[i] = SelfCompose(o, k)
		}
	}
	return clone
}

// Idempotent: self_compose(k) ∘ self_compose(k) == self_compose(k), since
// WithComposition overwrites rather than appends the composition stamp.
