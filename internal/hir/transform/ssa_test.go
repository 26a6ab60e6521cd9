package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specbmc/internal/expr"
	"specbmc/internal/hir"
)

func bv64(name string) *expr.Variable {
	return expr.NewVariable(name, expr.BitVectorSort(64))
}

func constU64(value uint64) *expr.Expr {
	return expr.ConstantExpr(expr.BVConstant(expr.NewBitVectorValue(value, 64)))
}

func TestInsertPhiNodesPlacesPhisAtLoopAndJoinPoints(t *testing.T) {
	// block0 -> block1 -> {block2, block3}
	// block2 -> block4, block3 -> {block4, block5}
	// block4 -> {block1 (loop back), block5}
	cfg := hir.NewControlFlowGraph()
	b0 := cfg.NewBlock().Index()
	b1 := cfg.NewBlock().Index()
	b2 := func() int {
		b := cfg.NewBlock()
		b.Assign(bv64("x"), constU64(0))
		return b.Index()
	}()
	b3 := cfg.NewBlock().Index()
	b4 := cfg.NewBlock().Index()
	b5 := func() int {
		b := cfg.NewBlock()
		b.Assign(bv64("y"), expr.VariableExpr(bv64("x")))
		return b.Index()
	}()

	edges := [][2]int{{b0, b1}, {b1, b2}, {b1, b3}, {b2, b4}, {b3, b4}, {b3, b5}, {b4, b1}, {b4, b5}}
	for _, e := range edges {
		_, err := cfg.UnconditionalEdge(e[0], e[1])
		require.NoError(t, err)
	}
	require.NoError(t, cfg.SetEntry(b0))

	program := hir.NewProgram(cfg)
	require.NoError(t, insertPhiNodes(program))

	block1, _ := cfg.Block(b1)
	block4, _ := cfg.Block(b4)
	block5, _ := cfg.Block(b5)

	assert.Len(t, block1.PhiNodes(), 1)
	assert.Len(t, block4.PhiNodes(), 1)
	assert.Len(t, block5.PhiNodes(), 1)

	phi1 := block1.PhiNodes()[0]
	assert.Equal(t, "x", phi1.Out.Name)
	_, ok := phi1.IncomingVariable(b0)
	assert.True(t, ok)
	_, ok = phi1.IncomingVariable(b4)
	assert.True(t, ok)
}

func TestSSATransformationVersionsDefinitionsAndUses(t *testing.T) {
	// entry -> loopHeader
	// loopHeader -> {init, merge}; init -> merge; merge -> {loopHeader, exit}
	// init: x = 0; merge: x = x + x; exit: res = x
	cfg := hir.NewControlFlowGraph()
	entryBlock := cfg.NewBlock().Index()
	loopHeader := cfg.NewBlock().Index()
	initBlock := func() int {
		b := cfg.NewBlock()
		b.Assign(bv64("x"), constU64(0))
		return b.Index()
	}()
	mergeBlock := func() int {
		b := cfg.NewBlock()
		sum, err := expr.BVAdd(expr.VariableExpr(bv64("x")), expr.VariableExpr(bv64("x")))
		require.NoError(t, err)
		b.Assign(bv64("x"), sum)
		return b.Index()
	}()
	exitBlock := func() int {
		b := cfg.NewBlock()
		b.Assign(bv64("res"), expr.VariableExpr(bv64("x")))
		return b.Index()
	}()

	edges := [][2]int{
		{entryBlock, loopHeader},
		{loopHeader, initBlock},
		{initBlock, mergeBlock},
		{mergeBlock, loopHeader},
		{mergeBlock, exitBlock},
	}
	for _, e := range edges {
		_, err := cfg.UnconditionalEdge(e[0], e[1])
		require.NoError(t, err)
	}
	require.NoError(t, cfg.SetEntry(entryBlock))

	program := hir.NewProgram(cfg)
	require.NoError(t, SSATransformation{}.Apply(program))

	// loopHeader gains a phi for x merging the initial def and the loop-back value.
	header, _ := cfg.Block(loopHeader)
	require.Len(t, header.PhiNodes(), 1)
	assert.Equal(t, "x", header.PhiNodes()[0].Out.Name)
	assert.NotNil(t, header.PhiNodes()[0].Out.SSAVersion)

	exit, _ := cfg.Block(exitBlock)
	resInst := exit.Instructions()[0]
	assert.NotNil(t, resInst.Operation.Variable.SSAVersion)
	assert.NotNil(t, resInst.Operation.Expr.Var.SSAVersion)
}

func TestInsertPhiNodesOmitsNonPersistentIncomingOnRollbackEdges(t *testing.T) {
	cfg := hir.NewControlFlowGraph()
	speculative := func() int {
		b := cfg.NewBlock()
		b.SetTransient(true)
		b.Assign(bv64("x"), constU64(1))
		return b.Index()
	}()
	rollbackTarget := func() int {
		b := cfg.NewBlock()
		b.Assign(bv64("x"), constU64(2))
		return b.Index()
	}()
	otherPred := cfg.NewBlock().Index()
	join := func() int {
		b := cfg.NewBlock()
		b.Assign(bv64("y"), expr.VariableExpr(bv64("x")))
		return b.Index()
	}()

	_, err := cfg.UnconditionalEdge(speculative, join)
	require.NoError(t, err)
	_, err = cfg.UnconditionalEdge(rollbackTarget, join)
	require.NoError(t, err)
	_, err = cfg.UnconditionalEdge(otherPred, join)
	require.NoError(t, err)
	_, err = cfg.UnconditionalEdge(otherPred, speculative)
	require.NoError(t, err)
	_, err = cfg.UnconditionalEdge(otherPred, rollbackTarget)
	require.NoError(t, err)
	require.NoError(t, cfg.SetEntry(otherPred))

	program := hir.NewProgram(cfg)
	require.NoError(t, insertPhiNodes(program))

	joinBlock, _ := cfg.Block(join)
	require.Len(t, joinBlock.PhiNodes(), 1)
	phi := joinBlock.PhiNodes()[0]
	_, ok := phi.IncomingVariable(speculative)
	assert.False(t, ok, "transient predecessor must not feed a non-rollback-persistent phi")
	_, ok = phi.IncomingVariable(rollbackTarget)
	assert.True(t, ok)
}
