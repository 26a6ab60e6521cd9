package muasm

import (
	"fmt"
	"strconv"

	"specbmc/internal/expr"
)

func register(name string) *expr.Variable {
	return expr.NewVariable(name, expr.BitVectorSort(expr.WordWidth))
}

func wordConstant(v uint64) *expr.Expr {
	return expr.ConstantExpr(expr.BVConstant(expr.NewBitVectorValue(v, expr.WordWidth)))
}

func parseAddress(s string) (uint64, error) {
	return strconv.ParseUint(s, 0, 64)
}

// wordToBoolean converts a word-valued expression to a boolean via e != 0
// (muasm.rs's BitVector::to_boolean, which this port's expr package has no
// standalone equivalent of).
func wordToBoolean(e *expr.Expr) (*expr.Expr, error) {
	eq, err := expr.Equal(e, wordConstant(0))
	if err != nil {
		return nil, err
	}
	return expr.Not(eq)
}

// booleanToWord converts a boolean expression back to a word (1 or 0),
// muasm.rs's BitVector::word_from_boolean.
func booleanToWord(cond *expr.Expr) (*expr.Expr, error) {
	return expr.Ite(cond, wordConstant(1), wordConstant(0))
}

// toHIRExpr lowers a parsed Expression into an expr.Expr (muasm.rs's
// ExpressionBuilder impl for ir::Expression).
func toHIRExpr(e *Expression) (*expr.Expr, error) {
	cond, err := toHIRTerm(e.Cond)
	if err != nil {
		return nil, err
	}
	if e.Rest == nil {
		return cond, nil
	}

	then, err := toHIRExpr(e.Rest.Then)
	if err != nil {
		return nil, err
	}
	els, err := toHIRExpr(e.Rest.Else)
	if err != nil {
		return nil, err
	}

	condBool, err := wordToBoolean(cond)
	if err != nil {
		return nil, err
	}
	return expr.Ite(condBool, then, els)
}

func toHIRTerm(t *Term) (*expr.Expr, error) {
	switch {
	case t.Number != nil:
		v, err := parseAddress(*t.Number)
		if err != nil {
			return nil, fmt.Errorf("muasm: bad integer literal %q: %w", *t.Number, err)
		}
		return wordConstant(v), nil

	case t.Register != nil:
		return expr.VariableExpr(register(*t.Register)), nil

	case t.Paren != nil:
		return toHIRExpr(t.Paren)

	case t.Unary != nil:
		return toHIRUnary(t.Unary)

	case t.Binary != nil:
		return toHIRBinary(t.Binary)

	default:
		return nil, fmt.Errorf("muasm: empty term")
	}
}

func toHIRUnary(u *UnaryApplication) (*expr.Expr, error) {
	arg, err := toHIRExpr(u.Arg)
	if err != nil {
		return nil, err
	}

	switch u.Op {
	case "neg":
		return expr.BVNeg(arg)
	case "not":
		return expr.BVNot(arg)
	case "sext":
		return expr.BVSExt(expr.WordWidth, arg)
	case "zext":
		return expr.BVZExt(expr.WordWidth, arg)
	default:
		return nil, fmt.Errorf("muasm: unknown unary operator %q", u.Op)
	}
}

func toHIRBinary(b *BinaryApplication) (*expr.Expr, error) {
	lhs, err := toHIRExpr(b.Left)
	if err != nil {
		return nil, err
	}
	rhs, err := toHIRExpr(b.Right)
	if err != nil {
		return nil, err
	}

	switch b.Op {
	case "add":
		return expr.BVAdd(lhs, rhs)
	case "sub":
		return expr.BVSub(lhs, rhs)
	case "mul":
		return expr.BVMul(lhs, rhs)
	case "udiv":
		return expr.BVUDiv(lhs, rhs)
	case "urem":
		return expr.BVURem(lhs, rhs)
	case "srem":
		return expr.BVSRem(lhs, rhs)
	case "smod":
		// No signed-modulo primitive in this port's expr package (§4.A);
		// approximated with signed remainder, whose result takes the
		// dividend's sign, so the two differ on mixed-sign operands.
		return expr.BVSRem(lhs, rhs)
	case "and":
		return expr.BVAnd(lhs, rhs)
	case "or":
		return expr.BVOr(lhs, rhs)
	case "xor":
		return expr.BVXor(lhs, rhs)
	case "shl":
		return expr.BVShl(lhs, rhs)
	case "ashr":
		return expr.BVAShr(lhs, rhs)
	case "lshr":
		return expr.BVLShr(lhs, rhs)
	case "ule":
		return wordFromComparison(expr.BVULe(lhs, rhs))
	case "ult":
		return wordFromComparison(expr.BVULt(lhs, rhs))
	case "uge":
		return wordFromComparison(expr.BVUGe(lhs, rhs))
	case "ugt":
		return wordFromComparison(expr.BVUGt(lhs, rhs))
	case "sle":
		return wordFromComparison(expr.BVSLe(lhs, rhs))
	case "slt":
		return wordFromComparison(expr.BVSLt(lhs, rhs))
	case "sge":
		return wordFromComparison(expr.BVSGe(lhs, rhs))
	case "sgt":
		return wordFromComparison(expr.BVSGt(lhs, rhs))
	case "eq":
		return wordFromComparison(expr.Equal(lhs, rhs))
	case "neq":
		return wordFromComparison(notEqual(lhs, rhs))
	default:
		return nil, fmt.Errorf("muasm: unknown binary operator %q", b.Op)
	}
}

func notEqual(lhs, rhs *expr.Expr) (*expr.Expr, error) {
	eq, err := expr.Equal(lhs, rhs)
	if err != nil {
		return nil, err
	}
	return expr.Not(eq)
}

// wordFromComparison folds a (boolean, error) comparison result back into a
// word, matching each Binary arm's `word_from_boolean(cmp(...)?)` shape in
// muasm.rs.
func wordFromComparison(cond *expr.Expr, err error) (*expr.Expr, error) {
	if err != nil {
		return nil, err
	}
	return booleanToWord(cond)
}
