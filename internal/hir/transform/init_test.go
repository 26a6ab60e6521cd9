package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specbmc/internal/environment"
	"specbmc/internal/expr"
	"specbmc/internal/hir"
)

func TestInitGlobalVariablesHavocsOnlyVariablesReadBeforeWritten(t *testing.T) {
	cfg := hir.NewControlFlowGraph()

	b0 := cfg.NewBlock()
	b0.Assign(bv64("x"), constU64(1))

	b1 := cfg.NewBlock()
	b1.Assign(bv64("tmp"), constU64(1))
	b1.Assign(bv64("x"), expr.VariableExpr(bv64("tmp")))

	b2 := cfg.NewBlock()
	mem := expr.NewVariable("mem", expr.MemorySort())
	b2.Load(bv64("y"), mem, expr.VariableExpr(bv64("x")))

	_, err := cfg.UnconditionalEdge(b0.Index(), b1.Index())
	require.NoError(t, err)
	_, err = cfg.UnconditionalEdge(b1.Index(), b2.Index())
	require.NoError(t, err)
	require.NoError(t, cfg.SetEntry(b0.Index()))
	require.NoError(t, cfg.SetExit(b2.Index()))

	program := hir.NewProgram(cfg)
	require.NoError(t, InitGlobalVariables{}.Apply(program))

	var sawHavocX bool
	for _, inst := range b0.Instructions() {
		if inst.Operation.Kind == hir.OpAssign && inst.Operation.Variable.Name == "x" && inst.Pseudo {
			sawHavocX = true
		}
	}
	assert.True(t, sawHavocX, "x is read in block2 without being locally defined first, so it is global")
}

func TestInitStackAddsBoundsAndIndistinguishableAssumptions(t *testing.T) {
	cfg := hir.NewControlFlowGraph()
	b := cfg.NewBlock()
	require.NoError(t, cfg.SetEntry(b.Index()))
	require.NoError(t, cfg.SetExit(b.Index()))

	program := hir.NewProgram(cfg)
	require.NoError(t, InitStack{}.Apply(program))

	var assumes, indist int
	for _, inst := range b.Instructions() {
		switch inst.Operation.Kind {
		case hir.OpAssume:
			assumes++
		case hir.OpIndistinguishable:
			indist++
		}
	}
	assert.Equal(t, 2, assumes)
	assert.Equal(t, 3, indist)
}

func TestInitMemoryHighDefaultDeclaresOnlyLowAddressesIndistinguishable(t *testing.T) {
	cfg := hir.NewControlFlowGraph()
	b := cfg.NewBlock()
	require.NoError(t, cfg.SetEntry(b.Index()))
	require.NoError(t, cfg.SetExit(b.Index()))

	program := hir.NewProgram(cfg)
	pass := InitMemory{DefaultSecurityLevel: environment.SecurityHigh, LowSecurityAddresses: []uint64{0x10, 0x20}}
	require.NoError(t, pass.Apply(program))

	var indist int
	for _, inst := range b.Instructions() {
		if inst.Operation.Kind == hir.OpIndistinguishable {
			indist++
		}
	}
	assert.Equal(t, 2, indist)
}

func TestInitMemoryLowDefaultStoresSecretsAtHighAddresses(t *testing.T) {
	cfg := hir.NewControlFlowGraph()
	b := cfg.NewBlock()
	require.NoError(t, cfg.SetEntry(b.Index()))
	require.NoError(t, cfg.SetExit(b.Index()))

	program := hir.NewProgram(cfg)
	pass := InitMemory{DefaultSecurityLevel: environment.SecurityLow, HighSecurityAddresses: []uint64{0x30}}
	require.NoError(t, pass.Apply(program))

	var stores int
	for _, inst := range b.Instructions() {
		if inst.Operation.Kind == hir.OpStore {
			stores++
		}
	}
	assert.Equal(t, 1, stores)
}

func TestObservationsPlacesOneObservableAfterEffectfulInstruction(t *testing.T) {
	cfg := hir.NewControlFlowGraph()
	b := cfg.NewBlock()
	mem := expr.NewVariable("mem", expr.MemorySort())
	loadInst := b.Load(bv64("x"), mem, constU64(0))
	loadInst.AddEffect(hir.CacheFetchEffectOf(constU64(0), 8))

	require.NoError(t, cfg.SetEntry(b.Index()))
	require.NoError(t, cfg.SetExit(b.Index()))

	program := hir.NewProgram(cfg)
	pass := Observations{CacheAvailable: true, ObserveEffectfulInstructions: true}
	require.NoError(t, pass.Apply(program))

	require.Len(t, b.Instructions(), 2)
	assert.Equal(t, hir.OpObservable, b.Instructions()[1].Operation.Kind)
}

func TestObservationsEndOfProgramAppendsToExitBlock(t *testing.T) {
	cfg := hir.NewControlFlowGraph()
	b := cfg.NewBlock()
	require.NoError(t, cfg.SetEntry(b.Index()))
	require.NoError(t, cfg.SetExit(b.Index()))

	program := hir.NewProgram(cfg)
	pass := Observations{CacheAvailable: true, BTBAvailable: true, ObserveEndOfProgram: true}
	require.NoError(t, pass.Apply(program))

	assert.Len(t, b.Instructions(), 2)
}

func TestNonSpecObsEquivalenceShadowsObservableInstructions(t *testing.T) {
	cfg := hir.NewControlFlowGraph()
	b := cfg.NewBlock()
	cache := expr.NewVariable("cache", expr.CacheSort())
	b.Observable(expr.VariableExpr(cache))

	require.NoError(t, cfg.SetEntry(b.Index()))
	require.NoError(t, cfg.SetExit(b.Index()))

	program := hir.NewProgram(cfg)
	pass := NonSpecObsEquivalence{CacheAvailable: true}
	require.NoError(t, pass.Apply(program))

	require.Len(t, b.Instructions(), 3)
	assert.Equal(t, hir.OpIndistinguishable, b.Instructions()[1].Operation.Kind)

	var sawInitialAssume bool
	for _, inst := range b.Instructions() {
		if inst.Operation.Kind == hir.OpAssume {
			sawInitialAssume = true
		}
	}
	assert.True(t, sawInitialAssume)
}

func TestNonSpecObsEquivalenceSkipsInstructionsWithoutRollbackPersistentVars(t *testing.T) {
	cfg := hir.NewControlFlowGraph()
	b := cfg.NewBlock()
	b.Assign(bv64("x"), constU64(1))

	require.NoError(t, cfg.SetEntry(b.Index()))
	require.NoError(t, cfg.SetExit(b.Index()))

	program := hir.NewProgram(cfg)
	require.NoError(t, NonSpecObsEquivalence{}.Apply(program))

	assert.Len(t, b.Instructions(), 1)
}
