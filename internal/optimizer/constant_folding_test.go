package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specbmc/internal/expr"
	"specbmc/internal/lir"
)

func bv8(name string) *expr.Variable {
	return expr.NewVariable(name, expr.BitVectorSort(8))
}

func bvConst8(v uint64) *expr.Expr {
	return expr.ConstantExpr(expr.BVConstant(expr.NewBitVectorValue(v, 8)))
}

func TestConstantFoldingEvaluatesArithmetic(t *testing.T) {
	sum, err := expr.BVAdd(bvConst8(2), bvConst8(3))
	require.NoError(t, err)

	program := lir.NewProgram()
	program.AppendLet(bv8("x"), sum)

	changed := ConstantFolding{}.Apply(program)
	assert.True(t, changed)
	assert.Equal(t, "5#8", program.Nodes[0].Value.String())
}

func TestConstantFoldingLeavesNonConstantExpressionsAlone(t *testing.T) {
	sum, err := expr.BVAdd(bv8NoConst(t), bvConst8(3))
	require.NoError(t, err)

	program := lir.NewProgram()
	program.AppendLet(bv8("x"), sum)

	changed := ConstantFolding{}.Apply(program)
	assert.False(t, changed)
}

func bv8NoConst(t *testing.T) *expr.Expr {
	t.Helper()
	return expr.VariableExpr(bv8("a"))
}
