package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specbmc/internal/environment"
	"specbmc/internal/expr"
	"specbmc/internal/hir"
)

func addr64(v uint64) *expr.Expr { return constU64(v) }

func TestTransientStoreAddsBypassAndExecuteEdges(t *testing.T) {
	cfg := hir.NewControlFlowGraph()
	x := bv64("x")
	mem := expr.NewVariable("mem", expr.MemorySort())

	b := cfg.NewBlock()
	b.Assign(x, addr64(0))
	storeInst := b.Store(mem, mem, addr64(42), expr.VariableExpr(x))
	storeInst.Address = uint64Ptr(2)
	b.Load(x, mem, addr64(42))

	require.NoError(t, cfg.SetEntry(b.Index()))
	require.NoError(t, cfg.SetExit(b.Index()))

	ref := instructionRef{block: b.Index(), index: 1, address: 2}
	entryPoints := map[instructionRef]int{}
	require.NoError(t, transientStore(cfg, entryPoints, ref))

	headOut := cfg.EdgesOut(b.Index())
	require.Len(t, headOut, 2)

	var sawSpeculate bool
	for _, e := range headOut {
		if e.Labels.Has(hir.Speculate) {
			sawSpeculate = true
		}
	}
	assert.True(t, sawSpeculate, "bypass edge should be labeled speculate")
	assert.Contains(t, entryPoints, ref)
}

func TestTransientConditionalBranchChoosePathAddsTakenEdge(t *testing.T) {
	cfg := hir.NewControlFlowGraph()
	cond := expr.VariableExpr(expr.NewVariable("c", expr.BooleanSort()))
	notCond, err := expr.Not(cond)
	require.NoError(t, err)

	head := cfg.NewBlock()
	branchInst := head.ConditionalBranch(cond, addr64(0x100))
	branchInst.Address = uint64Ptr(4)
	thenBlock := cfg.NewBlock()
	elseBlock := cfg.NewBlock()

	takenEdge, err := cfg.ConditionalEdge(head.Index(), thenBlock.Index(), cond)
	require.NoError(t, err)
	takenEdge.Labels |= hir.Taken
	_, err = cfg.ConditionalEdge(head.Index(), elseBlock.Index(), notCond)
	require.NoError(t, err)

	require.NoError(t, cfg.SetEntry(head.Index()))
	require.NoError(t, cfg.SetExit(elseBlock.Index()))

	ref := instructionRef{block: head.Index(), index: 0, address: 4}
	entryPoints := map[instructionRef]int{}
	require.NoError(t, transientConditionalBranch(cfg, entryPoints, ref, environment.ChoosePath))

	speculateIndex, ok := entryPoints[ref]
	require.True(t, ok)

	speculateOut := cfg.EdgesOut(speculateIndex)
	require.Len(t, speculateOut, 2)

	var sawTaken bool
	for _, e := range speculateOut {
		if e.Labels.Has(hir.Taken) {
			sawTaken = true
		}
	}
	assert.True(t, sawTaken)
}

func TestTransientConditionalBranchInvertConditionNegatesOriginalConditions(t *testing.T) {
	cfg := hir.NewControlFlowGraph()
	cond := expr.VariableExpr(expr.NewVariable("c", expr.BooleanSort()))
	notCond, err := expr.Not(cond)
	require.NoError(t, err)

	head := cfg.NewBlock()
	branchInst := head.ConditionalBranch(cond, addr64(0x100))
	branchInst.Address = uint64Ptr(4)
	thenBlock := cfg.NewBlock()
	elseBlock := cfg.NewBlock()

	takenEdge, err := cfg.ConditionalEdge(head.Index(), thenBlock.Index(), cond)
	require.NoError(t, err)
	takenEdge.Labels |= hir.Taken
	_, err = cfg.ConditionalEdge(head.Index(), elseBlock.Index(), notCond)
	require.NoError(t, err)

	require.NoError(t, cfg.SetEntry(head.Index()))
	require.NoError(t, cfg.SetExit(elseBlock.Index()))

	ref := instructionRef{block: head.Index(), index: 0, address: 4}
	entryPoints := map[instructionRef]int{}
	require.NoError(t, transientConditionalBranch(cfg, entryPoints, ref, environment.InvertCondition))

	speculateIndex := entryPoints[ref]
	speculateOut := cfg.EdgesOut(speculateIndex)
	require.Len(t, speculateOut, 2)
	// Neither edge out of speculate should carry the Predictor oracle;
	// InvertCondition derives both conditions from the branch's own edges.
	for _, e := range speculateOut {
		assert.NotContains(t, e.Condition.String(), "predictor")
	}
}

func TestTransientBarrierRoutesToResolve(t *testing.T) {
	cfg := hir.NewControlFlowGraph()
	head := cfg.NewBlock()
	barrierInst := head.Barrier()
	barrierInst.Address = uint64Ptr(9)
	resolve := cfg.NewBlock()

	require.NoError(t, cfg.SetEntry(head.Index()))
	require.NoError(t, cfg.SetExit(resolve.Index()))

	ref := instructionRef{block: head.Index(), index: 0, address: 9}
	require.NoError(t, transientBarrier(cfg, ref))

	assert.True(t, cfg.HasEdge(head.Index(), resolve.Index()))
}

func TestTransientExecutionApplyGrowsGraphAndStaysWellFormed(t *testing.T) {
	cfg := hir.NewControlFlowGraph()
	cond := expr.VariableExpr(expr.NewVariable("secret", expr.BooleanSort()))
	notCond, err := expr.Not(cond)
	require.NoError(t, err)

	head := cfg.NewBlock()
	branchInst := head.ConditionalBranch(cond, addr64(0x10))
	branchInst.Address = uint64Ptr(1)

	thenBlock := cfg.NewBlock()
	mem := expr.NewVariable("mem", expr.MemorySort())
	thenBlock.Load(bv64("tmp"), mem, addr64(0x20))

	elseBlock := cfg.NewBlock()

	takenEdge, err := cfg.ConditionalEdge(head.Index(), thenBlock.Index(), cond)
	require.NoError(t, err)
	takenEdge.Labels |= hir.Taken
	_, err = cfg.ConditionalEdge(head.Index(), elseBlock.Index(), notCond)
	require.NoError(t, err)
	_, err = cfg.UnconditionalEdge(thenBlock.Index(), elseBlock.Index())
	require.NoError(t, err)

	require.NoError(t, cfg.SetEntry(head.Index()))
	require.NoError(t, cfg.SetExit(elseBlock.Index()))

	before := len(cfg.Blocks())

	program := hir.NewProgram(cfg)
	pass := TransientExecution{
		SpectrePHT:          true,
		PredictorStrategy:   environment.ChoosePath,
		SpeculationWindow:   4,
		IntermediateResolve: true,
	}
	require.NoError(t, pass.Apply(program))

	assert.Greater(t, len(cfg.Blocks()), before)

	entry, err := cfg.Entry()
	require.NoError(t, err)
	assert.Equal(t, head.Index(), entry)
	_, err = cfg.Exit()
	require.NoError(t, err)
}

func uint64Ptr(v uint64) *uint64 { return &v }
