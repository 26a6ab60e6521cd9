package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specbmc/internal/expr"
	"specbmc/internal/lir"
)

func TestDeadCodeEliminationRemovesUnusedLet(t *testing.T) {
	// x := 1 (unused)
	// y := 2
	// assert(y = 2)
	program := lir.NewProgram()
	program.AppendLet(bv8("x"), bvConst8(1))
	program.AppendLet(bv8("y"), bvConst8(2))
	eq, err := expr.Equal(expr.VariableExpr(bv8("y")), bvConst8(2))
	require.NoError(t, err)
	program.AppendAssert(eq)

	changed := DeadCodeElimination{}.Apply(program)
	require.True(t, changed)
	require.Len(t, program.Nodes, 2)
	assert.Equal(t, "y", program.Nodes[0].Variable.Name)
	assert.Equal(t, lir.NodeAssert, program.Nodes[1].Kind)
}

func TestDeadCodeEliminationKeepsTransitivelyUsedLets(t *testing.T) {
	// a := 1
	// b := a
	// assert(b = 1)
	program := lir.NewProgram()
	program.AppendLet(bv8("a"), bvConst8(1))
	program.AppendLet(bv8("b"), expr.VariableExpr(bv8("a")))
	eq, err := expr.Equal(expr.VariableExpr(bv8("b")), bvConst8(1))
	require.NoError(t, err)
	program.AppendAssert(eq)

	changed := DeadCodeElimination{}.Apply(program)
	assert.False(t, changed)
	assert.Len(t, program.Nodes, 3)
}

func TestDeadCodeEliminationKeepsCommentsAndCriticalNodes(t *testing.T) {
	program := lir.NewProgram()
	program.AppendComment("unreachable branch")
	program.AppendAssume(expr.ConstantExpr(expr.BoolConstant(true)))

	changed := DeadCodeElimination{}.Apply(program)
	assert.False(t, changed)
	assert.Len(t, program.Nodes, 2)
}
