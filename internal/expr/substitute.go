package expr

// SubstituteVariables clones e, replacing every OpVariable leaf using
// lookup. lookup returns nil to leave a variable unchanged. Mirrors
// SelfCompose's clone-and-rewrite shape, generalized to an arbitrary
// per-variable replacement rather than a fixed composition stamp (used by
// SSA renaming, §4.C.8).
func SubstituteVariables(e *Expr, lookup func(*Variable) *Variable) *Expr {
	if e == nil {
		return nil
	}
	clone := &Expr{Op: e.Op, ResultSort: e.ResultSort, CastTo: e.CastTo, Hi: e.Hi, Lo: e.Lo, Const: e.Const}
	if e.Var != nil {
		if replacement := lookup(e.Var); replacement != nil {
			clone.Var = replacement
			clone.ResultSort = replacement.VarSort
		} else {
			clone.Var = e.Var
		}
	}
	if len(e.Operands) > 0 {
		clone.Operands = make([]*Expr, len(e.Operands))
		for i, o := range e.Operands {
			clone.Operands[i] = SubstituteVariables(o, lookup)
		}
	}
	return clone
}
