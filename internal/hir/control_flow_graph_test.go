package hir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specbmc/internal/expr"
)

func boolVar(name string) *expr.Expr {
	return expr.VariableExpr(expr.NewVariable(name, expr.BooleanSort()))
}

func TestSplitBlockAtRewiresOutgoingEdgesToNewTailBlock(t *testing.T) {
	g := NewControlFlowGraph()

	pred1 := g.NewBlock().Index()
	pred2 := g.NewBlock().Index()

	blockIndex := func() int {
		b := g.NewBlock()
		b.Barrier()
		b.Barrier()
		return b.Index()
	}()

	succ1 := g.NewBlock().Index()
	succ2 := g.NewBlock().Index()

	_, err := g.UnconditionalEdge(pred1, blockIndex)
	require.NoError(t, err)
	_, err = g.UnconditionalEdge(pred2, blockIndex)
	require.NoError(t, err)
	_, err = g.UnconditionalEdge(blockIndex, succ1)
	require.NoError(t, err)
	trueConst := expr.ConstantExpr(expr.BoolConstant(true))
	_, err = g.ConditionalEdge(blockIndex, succ2, trueConst)
	require.NoError(t, err)

	tailIndex, err := g.SplitBlockAt(blockIndex, 1)
	require.NoError(t, err)

	assert.Len(t, g.Edges(), 4)
	_, err = g.Edge(pred1, blockIndex)
	assert.NoError(t, err)
	_, err = g.Edge(pred2, blockIndex)
	assert.NoError(t, err)
	_, err = g.Edge(blockIndex, succ1)
	assert.Error(t, err)
	_, err = g.Edge(blockIndex, succ2)
	assert.Error(t, err)
	_, err = g.Edge(tailIndex, succ1)
	assert.NoError(t, err)
	e, err := g.Edge(tailIndex, succ2)
	require.NoError(t, err)
	assert.Equal(t, trueConst.String(), e.Condition.String())
}

func TestSplitBlockAtMovesInstructionsToTailBlock(t *testing.T) {
	g := NewControlFlowGraph()
	blockIndex := func() int {
		b := g.NewBlock()
		b.Barrier()
		b.Barrier()
		b.Barrier()
		return b.Index()
	}()

	tailIndex, err := g.SplitBlockAt(blockIndex, 1)
	require.NoError(t, err)

	head, err := g.Block(blockIndex)
	require.NoError(t, err)
	assert.Len(t, head.Instructions(), 1)

	tail, err := g.Block(tailIndex)
	require.NoError(t, err)
	assert.Len(t, tail.Instructions(), 2)
}

func TestSplitBlockAtZeroGivesEmptyHeadBlock(t *testing.T) {
	g := NewControlFlowGraph()
	blockIndex := func() int {
		b := g.NewBlock()
		b.Barrier()
		b.Barrier()
		return b.Index()
	}()

	tailIndex, err := g.SplitBlockAt(blockIndex, 0)
	require.NoError(t, err)

	head, _ := g.Block(blockIndex)
	assert.Len(t, head.Instructions(), 0)
	tail, _ := g.Block(tailIndex)
	assert.Len(t, tail.Instructions(), 2)
}

func TestSplitBlockAtUpdatesExitToNewTailBlock(t *testing.T) {
	g := NewControlFlowGraph()
	blockIndex := func() int {
		b := g.NewBlock()
		b.Barrier()
		b.Barrier()
		return b.Index()
	}()
	require.NoError(t, g.SetExit(blockIndex))

	tailIndex, err := g.SplitBlockAt(blockIndex, 1)
	require.NoError(t, err)

	exit, err := g.Exit()
	require.NoError(t, err)
	assert.Equal(t, tailIndex, exit)
}

func TestRemoveDeadEndBlocksPrunesBlocksThatCannotReachExit(t *testing.T) {
	g := NewControlFlowGraph()
	entry := g.NewBlock().Index()
	deadEnd := g.NewBlock().Index()
	exit := g.NewBlock().Index()

	_, err := g.UnconditionalEdge(entry, deadEnd)
	require.NoError(t, err)
	_, err = g.UnconditionalEdge(entry, exit)
	require.NoError(t, err)
	require.NoError(t, g.SetEntry(entry))
	require.NoError(t, g.SetExit(exit))

	require.NoError(t, g.RemoveDeadEndBlocks(Ignore))

	assert.False(t, g.HasBlock(deadEnd))
	assert.True(t, g.HasBlock(exit))
}

func TestDuplicateBlocksRemapsInternalEdges(t *testing.T) {
	g := NewControlFlowGraph()
	a := g.NewBlock().Index()
	b := g.NewBlock().Index()
	outside := g.NewBlock().Index()

	_, err := g.UnconditionalEdge(a, b)
	require.NoError(t, err)
	_, err = g.UnconditionalEdge(b, outside)
	require.NoError(t, err)

	mapping, err := g.DuplicateBlocks([]int{a, b})
	require.NoError(t, err)

	newA, newB := mapping[a], mapping[b]
	assert.True(t, g.HasEdge(newA, newB), "internal edge should be remapped to the duplicated blocks")
	assert.True(t, g.HasEdge(newB, outside), "edge leaving the duplicated set should point at the original external block")
}
