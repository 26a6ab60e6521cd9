package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specbmc/internal/expr"
	"specbmc/internal/hir"
)

func singleBlockFunction(name string, address uint64, build func(b *hir.Block)) *hir.Function {
	cfg := hir.NewControlFlowGraph()
	b := cfg.NewBlock()
	build(b)
	if err := cfg.SetEntry(b.Index()); err != nil {
		panic(err)
	}
	if err := cfg.SetExit(b.Index()); err != nil {
		panic(err)
	}
	return hir.NewFunction(name, address, cfg)
}

func TestInlineSplicesCalleeAtCallSite(t *testing.T) {
	callee := singleBlockFunction("double", 0x2000, func(b *hir.Block) {
		b.Assign(bv64("y"), expr.VariableExpr(bv64("x")))
	})

	entry := singleBlockFunction("main", 0x1000, func(b *hir.Block) {
		b.Assign(bv64("x"), constU64(1))
		b.Call(nil, "double", nil)
		b.Assign(bv64("z"), constU64(2))
	})

	module := &hir.Module{Functions: []*hir.Function{entry, callee}, EntryFunction: "main"}

	program, err := Inline{}.Apply(module)
	require.NoError(t, err)

	var sawCalleeAssign, sawTailAssign, sawCall bool
	for _, b := range program.ControlFlowGraph().Blocks() {
		for _, inst := range b.Instructions() {
			switch inst.Operation.Kind {
			case hir.OpCall:
				sawCall = true
			case hir.OpAssign:
				if inst.Operation.Variable.Name == "y" {
					sawCalleeAssign = true
				}
				if inst.Operation.Variable.Name == "z" {
					sawTailAssign = true
				}
			}
		}
	}

	assert.False(t, sawCall, "call instruction should have been spliced away")
	assert.True(t, sawCalleeAssign, "callee's instructions should be present in the inlined graph")
	assert.True(t, sawTailAssign, "instructions after the call site should survive the split")
}

func TestInlineBindsCallResultFromConventionalReturnVariable(t *testing.T) {
	callee := singleBlockFunction("get", 0x2000, func(b *hir.Block) {
		b.Assign(bv64("_ret"), constU64(7))
	})

	entry := singleBlockFunction("main", 0x1000, func(b *hir.Block) {
		b.Call(bv64("result"), "get", nil)
	})

	module := &hir.Module{Functions: []*hir.Function{entry, callee}, EntryFunction: "main"}

	program, err := Inline{}.Apply(module)
	require.NoError(t, err)

	var sawResultBinding bool
	for _, b := range program.ControlFlowGraph().Blocks() {
		for _, inst := range b.Instructions() {
			if inst.Operation.Kind == hir.OpAssign && inst.Operation.Variable.Name == "result" {
				sawResultBinding = true
			}
		}
	}
	assert.True(t, sawResultBinding, "call result should be bound from the callee's return value")
}

func TestInlineRejectsRecursiveCallGraph(t *testing.T) {
	a := singleBlockFunction("a", 0x1000, func(b *hir.Block) {
		b.Call(nil, "b", nil)
	})
	b := singleBlockFunction("b", 0x2000, func(blk *hir.Block) {
		blk.Call(nil, "a", nil)
	})

	module := &hir.Module{Functions: []*hir.Function{a, b}, EntryFunction: "a"}

	_, err := Inline{}.Apply(module)
	require.Error(t, err)
}

func TestInlineWithNoCallsReturnsEntryGraphUnchanged(t *testing.T) {
	entry := singleBlockFunction("main", 0x1000, func(b *hir.Block) {
		b.Assign(bv64("x"), constU64(1))
	})
	module := &hir.Module{Functions: []*hir.Function{entry}, EntryFunction: "main"}

	program, err := Inline{}.Apply(module)
	require.NoError(t, err)
	assert.Equal(t, "main", program.EntryLabel)
	assert.Len(t, program.ControlFlowGraph().Blocks(), 1)
}
