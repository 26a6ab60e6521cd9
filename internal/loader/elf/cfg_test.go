package elf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specbmc/internal/hir"
)

func allInstructions(cfg *hir.ControlFlowGraph) []*hir.Instruction {
	var out []*hir.Instruction
	for _, b := range cfg.Blocks() {
		out = append(out, b.Instructions()...)
	}
	return out
}

func TestTranslateToHIRLowersStraightLineCode(t *testing.T) {
	// mov eax, 1 ; add eax, ecx ; ret
	code := []byte{
		0xB8, 0x01, 0x00, 0x00, 0x00,
		0x01, 0xC8,
		0xC3,
	}
	cfg, err := translateToHIR(code)
	require.NoError(t, err)

	entry, err := cfg.Entry()
	require.NoError(t, err)
	exit, err := cfg.Exit()
	require.NoError(t, err)
	assert.NotEqual(t, entry, exit)

	var assigns []string
	for _, inst := range allInstructions(cfg) {
		if inst.Operation.Kind == hir.OpAssign {
			assigns = append(assigns, inst.Operation.Variable.Name)
		}
	}
	assert.Contains(t, assigns, "rax")
}

func TestTranslateToHIRBuildsConditionalBranchFromCmpAndJz(t *testing.T) {
	// cmp eax, 0 ; jz +5 (over the mov, to the ret) ; mov eax, 1 ; ret
	code := []byte{
		0x83, 0xF8, 0x00,
		0x74, 0x05,
		0xB8, 0x01, 0x00, 0x00, 0x00,
		0xC3,
	}
	cfg, err := translateToHIR(code)
	require.NoError(t, err)

	entry, err := cfg.Entry()
	require.NoError(t, err)
	entryEdges := cfg.EdgesOut(entry)
	require.Len(t, entryEdges, 1)

	cmpBlock := entryEdges[0].Tail
	edges := cfg.EdgesOut(cmpBlock)
	require.Len(t, edges, 2)
	for _, e := range edges {
		require.NotNil(t, e.Condition)
	}

	var assignedZF bool
	for _, inst := range allInstructions(cfg) {
		if inst.Operation.Kind == hir.OpAssign && inst.Operation.Variable.Name == "zf" {
			assignedZF = true
		}
	}
	assert.True(t, assignedZF)
}

func TestTranslateToHIRLowersFenceAndCallToBarrier(t *testing.T) {
	// lfence ; call +0 ; ret
	code := []byte{
		0x0F, 0xAE, 0xE8,
		0xE8, 0x00, 0x00, 0x00, 0x00,
		0xC3,
	}
	cfg, err := translateToHIR(code)
	require.NoError(t, err)

	var barriers int
	for _, inst := range allInstructions(cfg) {
		if inst.Operation.Kind == hir.OpBarrier {
			barriers++
		}
	}
	assert.Equal(t, 2, barriers)
}

func TestTranslateToHIRFallsBackToExitOnUnresolvedJumpTarget(t *testing.T) {
	// jmp past the end of the decoded range
	code := []byte{0xE9, 0x7F, 0x00, 0x00, 0x00}
	cfg, err := translateToHIR(code)
	require.NoError(t, err)

	entry, err := cfg.Entry()
	require.NoError(t, err)
	exit, err := cfg.Exit()
	require.NoError(t, err)

	entryEdges := cfg.EdgesOut(entry)
	require.Len(t, entryEdges, 1)
	jmpEdges := cfg.EdgesOut(entryEdges[0].Tail)
	require.Len(t, jmpEdges, 1)
	assert.Equal(t, exit, jmpEdges[0].Tail)
}

func TestTranslateToHIREmptyCodeConnectsEntryDirectlyToExit(t *testing.T) {
	cfg, err := translateToHIR(nil)
	require.NoError(t, err)

	entry, err := cfg.Entry()
	require.NoError(t, err)
	exit, err := cfg.Exit()
	require.NoError(t, err)

	entryEdges := cfg.EdgesOut(entry)
	require.Len(t, entryEdges, 1)
	assert.Equal(t, exit, entryEdges[0].Tail)
}
