package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specbmc/internal/environment"
	"specbmc/internal/expr"
	"specbmc/internal/hir"
)

func TestExplicitProgramCounterInsertsAddressBeforeLoad(t *testing.T) {
	cfg := hir.NewControlFlowGraph()
	b := cfg.NewBlock()
	mem := expr.NewVariable("mem", expr.MemorySort())
	b.Load(bv64("x"), mem, constU64(0x40))

	require.NoError(t, cfg.SetEntry(b.Index()))
	require.NoError(t, cfg.SetExit(b.Index()))

	program := hir.NewProgram(cfg)
	pass := ExplicitProgramCounter{ObserveMemoryLoads: true}
	require.NoError(t, pass.Apply(program))

	require.Len(t, b.Instructions(), 2)
	assert.Equal(t, hir.OpAssign, b.Instructions()[0].Operation.Kind)
	assert.Equal(t, "_address", b.Instructions()[0].Operation.Variable.Name)
	assert.Equal(t, hir.OpLoad, b.Instructions()[1].Operation.Kind)
}

func TestExplicitProgramCounterInsertsPCAfterConditionalBranch(t *testing.T) {
	cfg := hir.NewControlFlowGraph()
	b := cfg.NewBlock()
	cond := expr.VariableExpr(expr.NewVariable("c", expr.BooleanSort()))
	branch := b.ConditionalBranch(cond, constU64(0x100))
	addr := uint64(8)
	branch.Address = &addr

	require.NoError(t, cfg.SetEntry(b.Index()))
	require.NoError(t, cfg.SetExit(b.Index()))

	program := hir.NewProgram(cfg)
	pass := ExplicitProgramCounter{ObserveProgramCounter: true}
	require.NoError(t, pass.Apply(program))

	require.Len(t, b.Instructions(), 2)
	assert.Equal(t, hir.OpConditionalBranch, b.Instructions()[0].Operation.Kind)
	assert.Equal(t, hir.OpAssign, b.Instructions()[1].Operation.Kind)
	assert.Equal(t, "_pc", b.Instructions()[1].Operation.Variable.Name)
}

func TestProgramCounterModelObservationsOnlyTransientLeaksWeakensNonTransientBlock(t *testing.T) {
	cfg := hir.NewControlFlowGraph()
	b := cfg.NewBlock()
	mem := expr.NewVariable("mem", expr.MemorySort())
	b.Load(bv64("x"), mem, constU64(0x8))

	require.NoError(t, cfg.SetEntry(b.Index()))
	require.NoError(t, cfg.SetExit(b.Index()))

	program := hir.NewProgram(cfg)
	pass := ProgramCounterModelObservations{Check: environment.OnlyTransientExecutionLeaks, ObserveMemoryLoads: true}
	require.NoError(t, pass.Apply(program))

	require.Len(t, b.Instructions(), 2)
	assert.Equal(t, hir.OpIndistinguishable, b.Instructions()[0].Operation.Kind)
}

func TestProgramCounterModelObservationsTransientBlockObserves(t *testing.T) {
	cfg := hir.NewControlFlowGraph()
	b := cfg.NewBlock()
	b.SetTransient(true)
	mem := expr.NewVariable("mem", expr.MemorySort())
	b.Load(bv64("x"), mem, constU64(0x8))

	require.NoError(t, cfg.SetEntry(b.Index()))
	require.NoError(t, cfg.SetExit(b.Index()))

	program := hir.NewProgram(cfg)
	pass := ProgramCounterModelObservations{Check: environment.OnlyTransientExecutionLeaks, ObserveMemoryLoads: true}
	require.NoError(t, pass.Apply(program))

	require.Len(t, b.Instructions(), 2)
	assert.Equal(t, hir.OpObservable, b.Instructions()[0].Operation.Kind)
}
