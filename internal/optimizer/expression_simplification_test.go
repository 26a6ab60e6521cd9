package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specbmc/internal/expr"
	"specbmc/internal/lir"
)

func TestExpressionSimplificationCollapsesIdentities(t *testing.T) {
	// assume(x /\ true)  ->  assume(x)
	and, err := expr.And(expr.VariableExpr(boolVar("x")), boolConst(true))
	require.NoError(t, err)

	program := lir.NewProgram()
	program.AppendAssume(and)

	changed := ExpressionSimplification{}.Apply(program)
	require.True(t, changed)
	assert.Equal(t, "x:Bool", program.Nodes[0].Value.String())
}

func TestExpressionSimplificationLeavesIrreducibleExpressionsAlone(t *testing.T) {
	and, err := expr.And(expr.VariableExpr(boolVar("x")), expr.VariableExpr(boolVar("y")))
	require.NoError(t, err)

	program := lir.NewProgram()
	program.AppendAssert(and)

	changed := ExpressionSimplification{}.Apply(program)
	assert.False(t, changed)
}
