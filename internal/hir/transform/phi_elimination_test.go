package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specbmc/internal/expr"
	"specbmc/internal/hir"
)

func ssaVar(name string, version int) *expr.Variable {
	return expr.NewVariable(name, expr.BooleanSort()).WithVersion(version)
}

func TestPhiEliminationReplacesTrivialPhiWithAssignment(t *testing.T) {
	cfg := hir.NewControlFlowGraph()
	b := cfg.NewBlock()
	phi := hir.NewPhiNode(ssaVar("x", 2))
	phi.AddIncoming(1, ssaVar("x", 1))
	phi.AddIncoming(2, ssaVar("x", 1))
	b.AddPhiNode(phi)

	require.NoError(t, cfg.SetEntry(b.Index()))
	require.NoError(t, cfg.SetExit(b.Index()))

	program := hir.NewProgram(cfg)
	require.NoError(t, PhiElimination{}.Apply(program))

	assert.Empty(t, b.PhiNodes())
	require.Len(t, b.Instructions(), 1)
	assert.Equal(t, hir.OpAssign, b.Instructions()[0].Operation.Kind)
	assert.Equal(t, "x", b.Instructions()[0].Operation.Variable.Name)
}

func TestPhiEliminationKeepsNonTrivialPhi(t *testing.T) {
	cfg := hir.NewControlFlowGraph()
	b := cfg.NewBlock()
	phi := hir.NewPhiNode(ssaVar("x", 3))
	phi.AddIncoming(1, ssaVar("x", 1))
	phi.AddIncoming(2, ssaVar("x", 2))
	b.AddPhiNode(phi)

	require.NoError(t, cfg.SetEntry(b.Index()))
	require.NoError(t, cfg.SetExit(b.Index()))

	program := hir.NewProgram(cfg)
	require.NoError(t, PhiElimination{}.Apply(program))

	assert.Len(t, b.PhiNodes(), 1)
	assert.Empty(t, b.Instructions())
}
