package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specbmc/internal/expr"
	"specbmc/internal/lir"
)

func TestAssertionEliminationDropsAssertAlreadyAssumed(t *testing.T) {
	cond, err := expr.Equal(expr.VariableExpr(bv8("x")), bvConst8(1))
	require.NoError(t, err)

	program := lir.NewProgram()
	program.AppendAssume(cond)
	program.AppendAssert(cond)

	changed := AssertionElimination{}.Apply(program)
	require.True(t, changed)
	require.Len(t, program.Nodes, 1)
	assert.Equal(t, lir.NodeAssume, program.Nodes[0].Kind)
}

func TestAssertionEliminationKeepsAssertWithNoMatchingAssume(t *testing.T) {
	cond, err := expr.Equal(expr.VariableExpr(bv8("x")), bvConst8(1))
	require.NoError(t, err)
	other, err := expr.Equal(expr.VariableExpr(bv8("y")), bvConst8(2))
	require.NoError(t, err)

	program := lir.NewProgram()
	program.AppendAssume(other)
	program.AppendAssert(cond)

	changed := AssertionElimination{}.Apply(program)
	assert.False(t, changed)
	assert.Len(t, program.Nodes, 2)
}
