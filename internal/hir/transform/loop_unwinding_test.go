package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specbmc/internal/environment"
	"specbmc/internal/expr"
	"specbmc/internal/hir"
)

func addBlockWithID(cfg *hir.ControlFlowGraph, id string) int {
	b := cfg.NewBlock()
	b.Assign(expr.NewVariable(id, expr.BooleanSort()), expr.ConstantExpr(expr.BoolConstant(true)))
	return b.Index()
}

func TestUnwindSelfLoopZeroTimes(t *testing.T) {
	// block0 self-loops on L, exits to block1 on !L.
	cfg := hir.NewControlFlowGraph()
	l := expr.VariableExpr(expr.NewVariable("L", expr.BooleanSort()))
	notL, err := expr.Not(l)
	require.NoError(t, err)

	b0 := addBlockWithID(cfg, "c0")
	b1 := addBlockWithID(cfg, "c1")
	_, err = cfg.ConditionalEdge(b0, b0, l)
	require.NoError(t, err)
	_, err = cfg.ConditionalEdge(b0, b1, notL)
	require.NoError(t, err)
	require.NoError(t, cfg.SetEntry(b0))
	require.NoError(t, cfg.SetExit(b1))

	program := hir.NewProgram(cfg)
	require.NoError(t, NewLoopUnwinding(0, environment.UnwindingAssumption).Apply(program))

	// The self-loop back edge is gone; block0 now only reaches block1.
	block0, _ := cfg.Block(b0)
	assert.Empty(t, cfg.SuccessorIndices(b0)[1:])
	_, err = cfg.Edge(b0, b0)
	assert.Error(t, err, "self-loop edge should have been removed")
	assert.NotEmpty(t, block0.Instructions())
}

func TestUnwindLoopThreeTimesGrowsBlockCount(t *testing.T) {
	cfg := hir.NewControlFlowGraph()
	l := expr.VariableExpr(expr.NewVariable("L", expr.BooleanSort()))
	notL, err := expr.Not(l)
	require.NoError(t, err)

	b0 := addBlockWithID(cfg, "c0")
	b1 := addBlockWithID(cfg, "c1")
	_, err = cfg.ConditionalEdge(b0, b0, l)
	require.NoError(t, err)
	_, err = cfg.ConditionalEdge(b0, b1, notL)
	require.NoError(t, err)
	require.NoError(t, cfg.SetEntry(b0))
	require.NoError(t, cfg.SetExit(b1))

	before := len(cfg.Blocks())

	program := hir.NewProgram(cfg)
	require.NoError(t, NewLoopUnwinding(3, environment.UnwindingAssumption).Apply(program))

	// Unwinding duplicated the loop body; simplification may then merge or
	// prune blocks, but the graph must still have grown and the former loop
	// header must still be the entry.
	assert.Greater(t, len(cfg.Blocks()), before)

	entry, err := cfg.Entry()
	require.NoError(t, err)
	assert.Equal(t, b0, entry)
}
