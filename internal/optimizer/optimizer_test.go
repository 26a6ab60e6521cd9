package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specbmc/internal/environment"
	"specbmc/internal/expr"
	"specbmc/internal/lir"
)

func boolVar(name string) *expr.Variable {
	return expr.NewVariable(name, expr.BooleanSort())
}

func boolConst(v bool) *expr.Expr {
	return expr.ConstantExpr(expr.BoolConstant(v))
}

func TestPipelineDisabledNeverRuns(t *testing.T) {
	p := NewPipeline(environment.OptimizationDisabled)

	program := lir.NewProgram()
	program.AppendLet(boolVar("x"), boolConst(true))
	program.AppendAssume(expr.VariableExpr(boolVar("x")))

	before := len(program.Nodes)
	p.Run(program)
	assert.Len(t, program.Nodes, before)
}

func TestPipelineFoldsPropagatesAndPrunesEndToEnd(t *testing.T) {
	// x := true
	// y := x
	// assume(y /\ x)
	program := lir.NewProgram()
	program.AppendLet(boolVar("x"), boolConst(true))
	program.AppendLet(boolVar("y"), expr.VariableExpr(boolVar("x")))
	and, err := expr.And(expr.VariableExpr(boolVar("y")), expr.VariableExpr(boolVar("x")))
	require.NoError(t, err)
	program.AppendAssume(and)

	p := NewPipeline(environment.OptimizationFull)
	p.Run(program)

	// Fully optimized: constant propagation turns `y := x` into `y := true`
	// and the assume into `y /\ true`, expression simplification reduces
	// that to `y`, a second constant propagation makes it `true`, and dead
	// code elimination drops the now-unused x/y Lets, leaving a single
	// trivially-true assume.
	require.Len(t, program.Nodes, 1)
	assert.Equal(t, lir.NodeAssume, program.Nodes[0].Kind)
	assert.Equal(t, "true", program.Nodes[0].Value.String())
}
