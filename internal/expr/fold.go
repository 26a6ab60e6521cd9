package expr

// Fold performs constant evaluation: if all operands of e are OpConstant,
// it returns the folded constant and true. It recurses into operands first
// so a single top-level call folds an entire constant subtree. Callers run
// Fold to a fixed point (the optimizer's constant-folding pass, §4.F).
func Fold(e *Expr) (*Expr, bool) {
	if e == nil {
		return e, false
	}
	changed := false
	newOperands := make([]*Expr, len(e.Operands))
	for i, o := range e.Operands {
		folded, ok := Fold(o)
		newOperands[i] = folded
		changed = changed || ok
	}
	e = &Expr{Op: e.Op, Operands: newOperands, ResultSort: e.ResultSort, Var: e.Var, Const: e.Const, CastTo: e.CastTo, Hi: e.Hi, Lo: e.Lo}

	if e.Op == OpConstant || e.Op == OpVariable || e.Op == OpNondet {
		return e, changed
	}
	if !allConstant(e.Operands) {
		return e, changed
	}

	if folded, ok := evalConstant(e); ok {
		return folded, true
	}
	return e, changed
}

func allConstant(ops []*Expr) bool {
	for _, o := range ops {
		if o.Op != OpConstant {
			return false
		}
	}
	return true
}

func evalConstant(e *Expr) (*Expr, bool) {
	c := func(i int) Constant { return e.Operands[i].Const }
	switch e.Op {
	case OpNot:
		return ConstantExpr(BoolConstant(!c(0).Bool())), true
	case OpAnd:
		return ConstantExpr(BoolConstant(c(0).Bool() && c(1).Bool())), true
	case OpOr:
		return ConstantExpr(BoolConstant(c(0).Bool() || c(1).Bool())), true
	case OpXor:
		return ConstantExpr(BoolConstant(c(0).Bool() != c(1).Bool())), true
	case OpImplies:
		return ConstantExpr(BoolConstant(!c(0).Bool() || c(1).Bool())), true
	case OpEqual:
		return ConstantExpr(BoolConstant(c(0).Equal(c(1)))), true
	case OpIte:
		if c(0).Bool() {
			return e.Operands[1], true
		}
		return e.Operands[2], true

	case OpIntAdd:
		return ConstantExpr(IntConstant(c(0).Int() + c(1).Int())), true
	case OpIntSub:
		return ConstantExpr(IntConstant(c(0).Int() - c(1).Int())), true
	case OpIntMul:
		return ConstantExpr(IntConstant(c(0).Int() * c(1).Int())), true
	case OpIntDiv:
		if c(1).Int() == 0 {
			return e, false
		}
		return ConstantExpr(IntConstant(c(0).Int() / c(1).Int())), true
	case OpIntMod:
		if c(1).Int() == 0 {
			return e, false
		}
		return ConstantExpr(IntConstant(c(0).Int() % c(1).Int())), true
	case OpIntLt:
		return ConstantExpr(BoolConstant(c(0).Int() < c(1).Int())), true
	case OpIntLe:
		return ConstantExpr(BoolConstant(c(0).Int() <= c(1).Int())), true
	case OpIntGt:
		return ConstantExpr(BoolConstant(c(0).Int() > c(1).Int())), true
	case OpIntGe:
		return ConstantExpr(BoolConstant(c(0).Int() >= c(1).Int())), true
	case OpIntNeg:
		return ConstantExpr(IntConstant(-c(0).Int())), true
	case OpIntAbs:
		v := c(0).Int()
		return ConstantExpr(IntConstant(v)), true

	case OpBVAdd:
		return ConstantExpr(BVConstant(c(0).BitVector().Add(c(1).BitVector()))), true
	case OpBVSub:
		return ConstantExpr(BVConstant(c(0).BitVector().Sub(c(1).BitVector()))), true
	case OpBVMul:
		return ConstantExpr(BVConstant(c(0).BitVector().Mul(c(1).BitVector()))), true
	case OpBVUDiv:
		if r, ok := c(0).BitVector().UDiv(c(1).BitVector()); ok {
			return ConstantExpr(BVConstant(r)), true
		}
		return e, false
	case OpBVSDiv:
		if r, ok := c(0).BitVector().SDiv(c(1).BitVector()); ok {
			return ConstantExpr(BVConstant(r)), true
		}
		return e, false
	case OpBVURem:
		if r, ok := c(0).BitVector().URem(c(1).BitVector()); ok {
			return ConstantExpr(BVConstant(r)), true
		}
		return e, false
	case OpBVSRem:
		if r, ok := c(0).BitVector().SRem(c(1).BitVector()); ok {
			return ConstantExpr(BVConstant(r)), true
		}
		return e, false
	case OpBVAnd:
		return ConstantExpr(BVConstant(c(0).BitVector().And(c(1).BitVector()))), true
	case OpBVOr:
		return ConstantExpr(BVConstant(c(0).BitVector().Or(c(1).BitVector()))), true
	case OpBVXor:
		return ConstantExpr(BVConstant(c(0).BitVector().Xor(c(1).BitVector()))), true
	case OpBVNot:
		return ConstantExpr(BVConstant(c(0).BitVector().Not())), true
	case OpBVNeg:
		return ConstantExpr(BVConstant(c(0).BitVector().Neg())), true
	case OpBVShl:
		if n, ok := c(1).BitVector().Uint64(); ok {
			return ConstantExpr(BVConstant(c(0).BitVector().Shl(uint(n)))), true
		}
		return e, false
	case OpBVLShr:
		if n, ok := c(1).BitVector().Uint64(); ok {
			return ConstantExpr(BVConstant(c(0).BitVector().LShr(uint(n)))), true
		}
		return e, false
	case OpBVAShr:
		if n, ok := c(1).BitVector().Uint64(); ok {
			return ConstantExpr(BVConstant(c(0).BitVector().AShr(uint(n)))), true
		}
		return e, false
	case OpBVConcat:
		return ConstantExpr(BVConstant(c(0).BitVector().Concat(c(1).BitVector()))), true
	case OpBVExtract:
		return ConstantExpr(BVConstant(c(0).BitVector().Extract(e.Hi, e.Lo))), true
	case OpBVZExt:
		return ConstantExpr(BVConstant(c(0).BitVector().ZExt(e.ResultSort.Width()))), true
	case OpBVSExt:
		return ConstantExpr(BVConstant(c(0).BitVector().SExt(e.ResultSort.Width()))), true
	case OpBVULt:
		return ConstantExpr(BoolConstant(c(0).BitVector().ULt(c(1).BitVector()))), true
	case OpBVULe:
		return ConstantExpr(BoolConstant(c(0).BitVector().ULe(c(1).BitVector()))), true
	case OpBVUGt:
		return ConstantExpr(BoolConstant(c(0).BitVector().UGt(c(1).BitVector()))), true
	case OpBVUGe:
		return ConstantExpr(BoolConstant(c(0).BitVector().UGe(c(1).BitVector()))), true
	case OpBVSLt:
		return ConstantExpr(BoolConstant(c(0).BitVector().SLt(c(1).BitVector()))), true
	case OpBVSLe:
		return ConstantExpr(BoolConstant(c(0).BitVector().SLe(c(1).BitVector()))), true
	case OpBVSGt:
		return ConstantExpr(BoolConstant(c(0).BitVector().SGt(c(1).BitVector()))), true
	case OpBVSGe:
		return ConstantExpr(BoolConstant(c(0).BitVector().SGe(c(1).BitVector()))), true

	case OpTupleGet:
		// Tuple constants are not modeled as Constant values (only
		// Boolean/Integer/BitVector/Array are, per §4.A); a constant tuple
		// literal is instead an OpTupleMake of constants, handled by
		// Simplify's Tuple-projection rule, not here.
		return e, false

	default:
		return e, false
	}
}
