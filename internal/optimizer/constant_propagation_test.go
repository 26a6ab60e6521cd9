package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specbmc/internal/expr"
	"specbmc/internal/lir"
)

func TestConstantPropagationSubstitutesIntoLaterUses(t *testing.T) {
	// x := true
	// y := x
	// assume(y /\ x)
	program := lir.NewProgram()
	program.AppendLet(boolVar("x"), boolConst(true))
	program.AppendLet(boolVar("y"), expr.VariableExpr(boolVar("x")))
	and, err := expr.And(expr.VariableExpr(boolVar("y")), expr.VariableExpr(boolVar("x")))
	require.NoError(t, err)
	program.AppendAssume(and)

	changed := ConstantPropagation{}.Apply(program)
	require.True(t, changed)

	// x := true is untouched; y := x becomes y := true (x was constant,
	// not a copy, so CopyPropagation does not apply here); the assume's x
	// operand becomes true, its y operand is unchanged (y isn't constant).
	assert.Equal(t, "true", program.Nodes[1].Value.String())
	assert.Equal(t, "(and y:Bool true)", program.Nodes[2].Value.String())
}

func TestConstantPropagationNoConstantsIsUnchanged(t *testing.T) {
	program := lir.NewProgram()
	program.AppendLet(boolVar("x"), expr.VariableExpr(boolVar("u")))

	changed := ConstantPropagation{}.Apply(program)
	assert.False(t, changed)
}
