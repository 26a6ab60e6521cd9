package expr

// Simplify applies the pure algebraic rewrites of §4.A: boolean identities,
// bitvector identities, ITE collapse, nested-cast fusion. It recurses into
// operands first. Like Fold, it reports whether it changed anything; the
// optimizer runs both to a fixed point (§4.F).
func Simplify(e *Expr) (*Expr, bool) {
	if e == nil {
		return e, false
	}
	changed := false
	newOperands := make([]*Expr, len(e.Operands))
	for i, o := range e.Operands {
		s, ok := Simplify(o)
		newOperands[i] = s
		changed = changed || ok
	}
	e = &Expr{Op: e.Op, Operands: newOperands, ResultSort: e.ResultSort, Var: e.Var, Const: e.Const, CastTo: e.CastTo, Hi: e.Hi, Lo: e.Lo}

	if simplified, ok := simplifyTop(e); ok {
		return simplified, true
	}
	return e, changed
}

func isConstBool(e *Expr, want bool) bool {
	return e.Op == OpConstant && e.Const.Kind() == ConstBoolean && e.Const.Bool() == want
}

func isConstBVZero(e *Expr) bool {
	return e.Op == OpConstant && e.Const.Kind() == ConstBitVector && e.Const.BitVector().IsZero()
}

func isConstBVOne(e *Expr) bool {
	if e.Op != OpConstant || e.Const.Kind() != ConstBitVector {
		return false
	}
	v, ok := e.Const.BitVector().Uint64()
	return ok && v == 1
}

func sameExpr(a, b *Expr) bool {
	// Structural equality on the s-expression rendering is sufficient for
	// the identity/ITE-collapse rules below; this is conservative (it may
	// miss semantically-equal-but-differently-shaped subtrees) which is
	// acceptable for a peephole pass.
	return a.String() == b.String()
}

func simplifyTop(e *Expr) (*Expr, bool) {
	switch e.Op {
	case OpNot:
		if inner := e.Operands[0]; inner.Op == OpNot {
			return inner.Operands[0], true // not(not(x)) = x
		}
	case OpAnd:
		l, r := e.Operands[0], e.Operands[1]
		if isConstBool(l, true) {
			return r, true // true and x = x
		}
		if isConstBool(r, true) {
			return l, true
		}
		if isConstBool(l, false) || isConstBool(r, false) {
			return ConstantExpr(BoolConstant(false)), true
		}
	case OpOr:
		l, r := e.Operands[0], e.Operands[1]
		if isConstBool(l, false) {
			return r, true // false or x = x
		}
		if isConstBool(r, false) {
			return l, true
		}
		if isConstBool(l, true) || isConstBool(r, true) {
			return ConstantExpr(BoolConstant(true)), true
		}
	case OpImplies:
		l, r := e.Operands[0], e.Operands[1]
		if isConstBool(l, true) {
			return r, true // true => x = x
		}
		if isConstBool(l, false) {
			return ConstantExpr(BoolConstant(true)), true // false => x = true
		}
		if isConstBool(r, true) {
			return ConstantExpr(BoolConstant(true)), true // x => true = true
		}
	case OpIte:
		cond, then, els := e.Operands[0], e.Operands[1], e.Operands[2]
		if isConstBool(cond, true) {
			return then, true
		}
		if isConstBool(cond, false) {
			return els, true
		}
		if sameExpr(then, els) {
			return then, true // ite(c, x, x) = x
		}
	case OpBVAdd:
		l, r := e.Operands[0], e.Operands[1]
		if isConstBVZero(l) {
			return r, true
		}
		if isConstBVZero(r) {
			return l, true
		}
	case OpBVSub:
		if isConstBVZero(e.Operands[1]) {
			return e.Operands[0], true
		}
	case OpBVMul:
		l, r := e.Operands[0], e.Operands[1]
		if isConstBVOne(l) {
			return r, true
		}
		if isConstBVOne(r) {
			return l, true
		}
		if isConstBVZero(l) {
			return l, true
		}
		if isConstBVZero(r) {
			return r, true
		}
	case OpBVOr, OpBVXor:
		l, r := e.Operands[0], e.Operands[1]
		if isConstBVZero(l) {
			return r, true
		}
		if isConstBVZero(r) {
			return l, true
		}
	case OpBVZExt:
		if inner := e.Operands[0]; inner.Op == OpBVZExt {
			// zero_extend(zero_extend(x, w1), w2) = zero_extend(x, w2)
			fused := &Expr{Op: OpBVZExt, Operands: []*Expr{inner.Operands[0]}, ResultSort: e.ResultSort}
			return fused, true
		}
		if e.ResultSort.Width() == e.Operands[0].Sort().Width() {
			return e.Operands[0], true
		}
	case OpBVSExt:
		if inner := e.Operands[0]; inner.Op == OpBVSExt {
			fused := &Expr{Op: OpBVSExt, Operands: []*Expr{inner.Operands[0]}, ResultSort: e.ResultSort}
			return fused, true
		}
		if e.ResultSort.Width() == e.Operands[0].Sort().Width() {
			return e.Operands[0], true
		}
	case OpEqual:
		if sameExpr(e.Operands[0], e.Operands[1]) {
			return ConstantExpr(BoolConstant(true)), true // x = x
		}
	}
	return e, false
}
