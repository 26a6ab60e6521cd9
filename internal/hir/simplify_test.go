package hir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specbmc/internal/expr"
)

func TestSimplifyMergesChainsAndDropsUnreachableBlocks(t *testing.T) {
	g := NewControlFlowGraph()

	b0 := g.NewBlock().Index()
	b1 := g.NewBlock().Index() // unreachable

	b2 := func() int {
		b := g.NewBlock()
		b.Assign(expr.NewVariable("b2", expr.BooleanSort()), expr.ConstantExpr(expr.BoolConstant(true)))
		return b.Index()
	}()

	b3 := g.NewBlock().Index()
	b4 := g.NewBlock().Index()
	b5 := g.NewBlock().Index()

	b6 := func() int {
		b := g.NewBlock()
		b.Assign(expr.NewVariable("b6", expr.BooleanSort()), expr.ConstantExpr(expr.BoolConstant(true)))
		return b.Index()
	}()

	b7 := func() int {
		b := g.NewBlock()
		b.Assign(expr.NewVariable("b7", expr.BooleanSort()), expr.ConstantExpr(expr.BoolConstant(true)))
		return b.Index()
	}()

	b8 := g.NewBlock().Index()

	edges := [][2]int{{b0, b2}, {b0, b6}, {b1, b2}, {b2, b3}, {b2, b5}, {b3, b4}, {b3, b5}, {b4, b5}, {b5, b6}, {b6, b7}, {b7, b8}}
	for _, e := range edges {
		_, err := g.UnconditionalEdge(e[0], e[1])
		require.NoError(t, err)
	}
	require.NoError(t, g.SetEntry(b0))
	require.NoError(t, g.SetExit(b8))

	require.NoError(t, g.Simplify())

	assert.False(t, g.HasBlock(b1), "unreachable block must be removed")
	remaining := g.Blocks()
	assert.Len(t, remaining, 4, "straight-line chains collapse into their surviving heads")

	entry, _ := g.Entry()
	exit, _ := g.Exit()
	assert.Equal(t, b0, entry)
	assert.Equal(t, b8, exit)
}

func TestSimplifyCombinesCollidingEdgeConditionsOnEmptyBlockRemoval(t *testing.T) {
	g := NewControlFlowGraph()
	b0 := g.NewBlock().Index()
	b1 := func() int {
		b := g.NewBlock()
		b.Assign(expr.NewVariable("c", expr.BooleanSort()), expr.ConstantExpr(expr.BoolConstant(true)))
		return b.Index()
	}()
	b2 := g.NewBlock().Index() // empty, single successor: should be elided
	b3 := g.NewBlock().Index()

	a := boolVar("a")
	notA, err := expr.Not(a)
	require.NoError(t, err)
	bv := boolVar("b")
	notB, err := expr.Not(bv)
	require.NoError(t, err)

	_, err = g.ConditionalEdge(b0, b1, a)
	require.NoError(t, err)
	_, err = g.ConditionalEdge(b0, b3, notA)
	require.NoError(t, err)
	_, err = g.ConditionalEdge(b1, b3, bv)
	require.NoError(t, err)
	_, err = g.ConditionalEdge(b1, b2, notB)
	require.NoError(t, err)
	_, err = g.UnconditionalEdge(b2, b3)
	require.NoError(t, err)

	require.NoError(t, g.SetEntry(b0))
	require.NoError(t, g.SetExit(b3))

	require.NoError(t, g.Simplify())

	assert.False(t, g.HasBlock(b2))
	e, err := g.Edge(b1, b3)
	require.NoError(t, err)
	assert.NotNil(t, e.Condition, "colliding conditional edges into the surviving successor must be combined, not dropped")
}
