package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specbmc/internal/expr"
	"specbmc/internal/hir"
)

func TestInstructionEffectsAttachesCacheFetchToLoad(t *testing.T) {
	cfg := hir.NewControlFlowGraph()
	b := cfg.NewBlock()
	addr := expr.ConstantExpr(expr.BVConstant(expr.NewBitVectorValue(0x10, expr.WordWidth)))
	mem := expr.NewVariable("mem", expr.MemorySort())
	loadInst := b.Load(bv64("x"), mem, addr)
	require.NoError(t, cfg.SetEntry(b.Index()))
	require.NoError(t, cfg.SetExit(b.Index()))

	program := hir.NewProgram(cfg)
	pass := InstructionEffects{ModelCacheEffects: true, ModelBTBEffects: true, ModelPHTEffects: true}
	require.NoError(t, pass.Apply(program))

	require.Len(t, loadInst.Effects, 1)
	assert.Equal(t, hir.CacheFetchEffect, loadInst.Effects[0].Kind)
	assert.Equal(t, 64, loadInst.Effects[0].Width)
}

func TestExplicitEffectsMaterializesCacheFetchBeforeLoad(t *testing.T) {
	cfg := hir.NewControlFlowGraph()
	b := cfg.NewBlock()
	addr := expr.ConstantExpr(expr.BVConstant(expr.NewBitVectorValue(0x10, expr.WordWidth)))
	mem := expr.NewVariable("mem", expr.MemorySort())
	b.Load(bv64("x"), mem, addr)
	require.NoError(t, cfg.SetEntry(b.Index()))
	require.NoError(t, cfg.SetExit(b.Index()))

	program := hir.NewProgram(cfg)
	require.NoError(t, (InstructionEffects{ModelCacheEffects: true}).Apply(program))
	require.NoError(t, (ExplicitEffects{}).Apply(program))

	insts := b.Instructions()
	require.Len(t, insts, 2)
	assert.Equal(t, hir.OpAssign, insts[0].Operation.Kind)
	assert.Equal(t, "cache", insts[0].Operation.Variable.Name)
	assert.True(t, insts[0].Pseudo)
	assert.Equal(t, hir.OpLoad, insts[1].Operation.Kind)
}
