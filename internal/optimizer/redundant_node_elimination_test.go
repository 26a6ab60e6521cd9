package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specbmc/internal/expr"
	"specbmc/internal/lir"
)

func TestRedundantNodeEliminationDropsDuplicateAssumes(t *testing.T) {
	program := lir.NewProgram()
	cond := expr.ConstantExpr(expr.BoolConstant(true))
	program.AppendAssume(cond)
	program.AppendAssume(cond)

	changed := RedundantNodeElimination{}.Apply(program)
	require.True(t, changed)
	assert.Len(t, program.Nodes, 1)
}

func TestRedundantNodeEliminationKeepsDistinctAssertAndAssumeOfSameCondition(t *testing.T) {
	program := lir.NewProgram()
	cond := expr.ConstantExpr(expr.BoolConstant(true))
	program.AppendAssert(cond)
	program.AppendAssume(cond)

	changed := RedundantNodeElimination{}.Apply(program)
	assert.False(t, changed)
	assert.Len(t, program.Nodes, 2)
}

func TestRedundantNodeEliminationNeverTouchesLets(t *testing.T) {
	program := lir.NewProgram()
	program.AppendLet(bv8("x"), bvConst8(1))
	program.AppendLet(bv8("y"), bvConst8(1))

	changed := RedundantNodeElimination{}.Apply(program)
	assert.False(t, changed)
	assert.Len(t, program.Nodes, 2)
}
