package solver

import (
	"fmt"
	"strings"

	perr "specbmc/internal/errors"
	"specbmc/internal/expr"
)

// sortToSMT renders s as an SMT-LIB2 sort expression. Memory/Cache/BTB/PHT
// are opaque aliases the preamble defines (§4.G, grounded on
// original_source/src/solver/rsmt.rs's define_memory/define_cache/
// define_btb/define_pht, which alias each to a concrete Array sort via
// define-sort/define-fun rather than an SMT theory of its own).
func sortToSMT(s expr.Sort) (string, error) {
	switch s.Kind() {
	case expr.Boolean:
		return "Bool", nil
	case expr.Integer:
		return "Int", nil
	case expr.BitVector:
		return fmt.Sprintf("(_ BitVec %d)", s.Width()), nil
	case expr.Array:
		key, value := s.KeyValue()
		ks, err := sortToSMT(key)
		if err != nil {
			return "", err
		}
		vs, err := sortToSMT(value)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(Array %s %s)", ks, vs), nil
	case expr.List:
		elem, err := sortToSMT(s.Elem())
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(List %s)", elem), nil
	case expr.Tuple:
		return fmt.Sprintf("Tuple%d", len(s.Fields())), nil
	case expr.Memory:
		return "Memory", nil
	case expr.Cache:
		return "Cache", nil
	case expr.Predictor:
		return "Predictor", nil
	case expr.BranchTargetBuffer:
		return "BTB", nil
	case expr.PatternHistoryTable:
		return "PHT", nil
	default:
		return "", perr.Solverf("smtlib: unsupported sort %s", s)
	}
}

// symbol quotes a variable's identifier as an SMT-LIB2 quoted symbol. `|...|`
// quoting lets SSA/composition-stamped identifiers (containing '.' and '@')
// pass through unchanged instead of needing a separate mangling scheme.
func symbol(id string) string { return "|" + id + "|" }

func unary(op string, e *expr.Expr) (string, error) {
	inner, err := exprToSMT(e.Operands[0])
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("(%s %s)", op, inner), nil
}

func nary(op string, operands []*expr.Expr) (string, error) {
	parts := make([]string, len(operands))
	for i, o := range operands {
		s, err := exprToSMT(o)
		if err != nil {
			return "", err
		}
		parts[i] = s
	}
	return fmt.Sprintf("(%s %s)", op, strings.Join(parts, " ")), nil
}

// exprToSMT renders e as an SMT-LIB2 term. Callers must not pass a
// Nondet leaf (those are encoded at the Let-binding level as a bare
// declare-const, matching the original's define_variable special case).
func exprToSMT(e *expr.Expr) (string, error) {
	switch e.Op {
	case expr.OpVariable:
		return symbol(e.Var.Identifier()), nil

	case expr.OpConstant:
		return constantToSMT(e.Const)

	case expr.OpNondet:
		return "", perr.Solverf("smtlib: nondet() used outside a let binding")

	case expr.OpIte:
		return nary("ite", e.Operands)
	case expr.OpEqual:
		return nary("=", e.Operands)
	case expr.OpCast:
		return castToSMT(e)

	case expr.OpNot:
		return unary("not", e)
	case expr.OpAnd:
		return nary("and", e.Operands)
	case expr.OpOr:
		return nary("or", e.Operands)
	case expr.OpXor:
		return nary("xor", e.Operands)
	case expr.OpImplies:
		return nary("=>", e.Operands)

	case expr.OpIntAdd:
		return nary("+", e.Operands)
	case expr.OpIntSub:
		return nary("-", e.Operands)
	case expr.OpIntMul:
		return nary("*", e.Operands)
	case expr.OpIntDiv:
		return nary("div", e.Operands)
	case expr.OpIntMod:
		return nary("mod", e.Operands)
	case expr.OpIntAbs:
		return unary("abs", e)
	case expr.OpIntNeg:
		return unary("-", e)
	case expr.OpIntLt:
		return nary("<", e.Operands)
	case expr.OpIntLe:
		return nary("<=", e.Operands)
	case expr.OpIntGt:
		return nary(">", e.Operands)
	case expr.OpIntGe:
		return nary(">=", e.Operands)

	case expr.OpBVAdd:
		return nary("bvadd", e.Operands)
	case expr.OpBVSub:
		return nary("bvsub", e.Operands)
	case expr.OpBVMul:
		return nary("bvmul", e.Operands)
	case expr.OpBVUDiv:
		return nary("bvudiv", e.Operands)
	case expr.OpBVSDiv:
		return nary("bvsdiv", e.Operands)
	case expr.OpBVURem:
		return nary("bvurem", e.Operands)
	case expr.OpBVSRem:
		return nary("bvsrem", e.Operands)
	case expr.OpBVAnd:
		return nary("bvand", e.Operands)
	case expr.OpBVOr:
		return nary("bvor", e.Operands)
	case expr.OpBVXor:
		return nary("bvxor", e.Operands)
	case expr.OpBVNot:
		return unary("bvnot", e)
	case expr.OpBVNeg:
		return unary("bvneg", e)
	case expr.OpBVShl:
		return nary("bvshl", e.Operands)
	case expr.OpBVLShr:
		return nary("bvlshr", e.Operands)
	case expr.OpBVAShr:
		return nary("bvashr", e.Operands)
	case expr.OpBVConcat:
		return nary("concat", e.Operands)
	case expr.OpBVExtract:
		inner, err := exprToSMT(e.Operands[0])
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("((_ extract %d %d) %s)", e.Hi, e.Lo, inner), nil
	case expr.OpBVZExt:
		inner, err := exprToSMT(e.Operands[0])
		if err != nil {
			return "", err
		}
		extra := e.ResultSort.Width() - e.Operands[0].Sort().Width()
		return fmt.Sprintf("((_ zero_extend %d) %s)", extra, inner), nil
	case expr.OpBVSExt:
		inner, err := exprToSMT(e.Operands[0])
		if err != nil {
			return "", err
		}
		extra := e.ResultSort.Width() - e.Operands[0].Sort().Width()
		return fmt.Sprintf("((_ sign_extend %d) %s)", extra, inner), nil
	case expr.OpBVULt:
		return nary("bvult", e.Operands)
	case expr.OpBVULe:
		return nary("bvule", e.Operands)
	case expr.OpBVUGt:
		return nary("bvugt", e.Operands)
	case expr.OpBVUGe:
		return nary("bvuge", e.Operands)
	case expr.OpBVSLt:
		return nary("bvslt", e.Operands)
	case expr.OpBVSLe:
		return nary("bvsle", e.Operands)
	case expr.OpBVSGt:
		return nary("bvsgt", e.Operands)
	case expr.OpBVSGe:
		return nary("bvsge", e.Operands)

	case expr.OpArraySelect:
		return nary("select", e.Operands)
	case expr.OpArrayStore:
		return nary("store", e.Operands)

	case expr.OpListNil:
		sort, err := sortToSMT(e.ResultSort)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(as nil %s)", sort), nil
	case expr.OpListInsert:
		return nary("cons", e.Operands)
	case expr.OpListHead:
		return unary("head", e)
	case expr.OpListTail:
		return unary("tail", e)

	case expr.OpTupleMake:
		return nary(fmt.Sprintf("tuple%d", len(e.Operands)), e.Operands)
	case expr.OpTupleGet:
		inner, err := exprToSMT(e.Operands[0])
		if err != nil {
			return "", err
		}
		n := len(e.Operands[0].Sort().Fields())
		return fmt.Sprintf("(tuple%d-field%d %s)", n, e.Hi, inner), nil

	case expr.OpMemLoad:
		return nary(fmt.Sprintf("mem-load%d", e.Hi), e.Operands)
	case expr.OpMemStore:
		return nary(fmt.Sprintf("mem-store%d", e.Hi), e.Operands)
	case expr.OpCacheFetch:
		return nary(fmt.Sprintf("cache-fetch%d", e.Hi), e.Operands)
	case expr.OpCacheEvict:
		return nary(fmt.Sprintf("cache-evict%d", e.Hi), e.Operands)
	case expr.OpBTBTrack:
		return nary("btb-track", e.Operands)
	case expr.OpBTBLookup:
		return nary("btb-lookup", e.Operands)
	case expr.OpPHTTaken:
		return nary("pht-taken", e.Operands)
	case expr.OpPHTNotTaken:
		return nary("pht-not-taken", e.Operands)
	case expr.OpPHTLookup:
		return nary("pht-lookup", e.Operands)
	case expr.OpPredictorSpeculate:
		return nary("predictor-speculate", e.Operands)
	case expr.OpPredictorTaken:
		return nary("predictor-taken", e.Operands)
	case expr.OpPredictorWindow:
		return nary("speculation-window", e.Operands)

	default:
		return "", perr.Solverf("smtlib: unsupported operator %s", e.Op)
	}
}

// castToSMT implements §4.A's narrow Cast contract: BitVector<->BitVector
// width change, and BitVector<->Integer conversion.
func castToSMT(e *expr.Expr) (string, error) {
	from := e.Operands[0].Sort()
	to := e.CastTo
	inner, err := exprToSMT(e.Operands[0])
	if err != nil {
		return "", err
	}

	switch {
	case from.IsBitVector() && to.IsBitVector():
		switch {
		case to.Width() > from.Width():
			return fmt.Sprintf("((_ zero_extend %d) %s)", to.Width()-from.Width(), inner), nil
		case to.Width() < from.Width():
			return fmt.Sprintf("((_ extract %d 0) %s)", to.Width()-1, inner), nil
		default:
			return inner, nil
		}
	case from.IsBitVector() && to.IsInteger():
		return fmt.Sprintf("(bv2nat %s)", inner), nil
	case from.IsInteger() && to.IsBitVector():
		return fmt.Sprintf("((_ int2bv %d) %s)", to.Width(), inner), nil
	default:
		return "", perr.Solverf("smtlib: unsupported cast from %s to %s", from, to)
	}
}

func constantToSMT(c expr.Constant) (string, error) {
	switch c.Kind() {
	case expr.ConstBoolean:
		if c.Bool() {
			return "true", nil
		}
		return "false", nil
	case expr.ConstInteger:
		return fmt.Sprintf("%d", c.Int()), nil
	case expr.ConstBitVector:
		bv := c.BitVector()
		return fmt.Sprintf("(_ bv%s %d)", bv.Magnitude().String(), bv.Bits()), nil
	case expr.ConstArray:
		return arrayConstantToSMT(c.Array())
	default:
		return "", perr.Solverf("smtlib: unsupported constant kind")
	}
}

// arrayConstantToSMT renders a finite ArrayValue as a chain of stores over
// an `(as const ...)` default base, the standard SMT-LIB2 idiom for a
// literal finite array.
func arrayConstantToSMT(a *expr.ArrayValue) (string, error) {
	arraySort, err := sortToSMT(expr.ArraySort(a.KeySort, a.ValueSort))
	if err != nil {
		return "", err
	}

	base := fmt.Sprintf("((as const %s) %s)", arraySort, zeroOf(a.ValueSort))
	if a.Default != nil {
		defaultSMT, err := constantToSMT(*a.Default)
		if err != nil {
			return "", err
		}
		base = fmt.Sprintf("((as const %s) %s)", arraySort, defaultSMT)
	}

	out := base
	for _, key := range a.Keys {
		value, _ := a.Select(key)
		keySMT, err := constantToSMT(key)
		if err != nil {
			return "", err
		}
		valueSMT, err := constantToSMT(value)
		if err != nil {
			return "", err
		}
		out = fmt.Sprintf("(store %s %s %s)", out, keySMT, valueSMT)
	}
	return out, nil
}

func zeroOf(s expr.Sort) string {
	switch s.Kind() {
	case expr.Boolean:
		return "false"
	case expr.BitVector:
		return fmt.Sprintf("(_ bv0 %d)", s.Width())
	default:
		return "false"
	}
}
