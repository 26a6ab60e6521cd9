package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specbmc/internal/expr"
	"specbmc/internal/lir"
)

func TestCopyPropagationResolvesChainsOfCopies(t *testing.T) {
	// b := a
	// c := b
	// d := c
	// assume(d)
	program := lir.NewProgram()
	program.AppendLet(boolVar("b"), expr.VariableExpr(boolVar("a")))
	program.AppendLet(boolVar("c"), expr.VariableExpr(boolVar("b")))
	program.AppendLet(boolVar("d"), expr.VariableExpr(boolVar("c")))
	program.AppendAssume(expr.VariableExpr(boolVar("d")))

	changed := CopyPropagation{}.Apply(program)
	require.True(t, changed)

	assert.Equal(t, "a:Bool", program.Nodes[1].Value.String()) // c := a
	assert.Equal(t, "a:Bool", program.Nodes[2].Value.String()) // d := a
	assert.Equal(t, "a:Bool", program.Nodes[3].Value.String()) // assume(a)
}

func TestCopyPropagationIgnoresNonCopyAssignments(t *testing.T) {
	program := lir.NewProgram()
	program.AppendLet(boolVar("x"), boolConst(true))

	changed := CopyPropagation{}.Apply(program)
	assert.False(t, changed)
}
