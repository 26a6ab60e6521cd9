package muasm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specbmc/internal/hir"
)

func parseAndLower(t *testing.T, source string) *hir.ControlFlowGraph {
	t.Helper()
	program, err := ParseString("t.muasm", source)
	require.NoError(t, err)
	cfg, err := translateToHIR(program)
	require.NoError(t, err)
	return cfg
}

// allInstructions flattens every block's instructions, robust against
// Simplify's block-merging (the straight-line test programs below always
// merge their instruction blocks together, so asserting on individual
// block indices would be brittle).
func allInstructions(cfg *hir.ControlFlowGraph) []*hir.Instruction {
	var out []*hir.Instruction
	for _, b := range cfg.Blocks() {
		out = append(out, b.Instructions()...)
	}
	return out
}

func TestTranslateToHIRBuildsReachableGraphWithExpectedInstructions(t *testing.T) {
	cfg := parseAndLower(t, "r0 = 1\nr1 = add(r0, 2)\n")

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
	assert.ElementsMatch(t, []string{"r0", "r1"}, assigns)
}

func TestTranslateToHIRResolvesLabelsForJumpsAndBranches(t *testing.T) {
	cfg := parseAndLower(t, `
loop:
  beqz r0, done
  jmp loop
done:
  skip
`)

	entry, err := cfg.Entry()
	require.NoError(t, err)
	entrySuccessors := cfg.EdgesOut(entry)
	require.Len(t, entrySuccessors, 1)

	beqzBlock := entrySuccessors[0].Tail
	beqzEdges := cfg.EdgesOut(beqzBlock)
	require.Len(t, beqzEdges, 2)

	var takenCount, notTakenCount int
	for _, e := range beqzEdges {
		require.NotNil(t, e.Condition)
		if e.Labels.Has(hir.Taken) {
			takenCount++
		} else {
			notTakenCount++
		}
	}
	assert.Equal(t, 1, takenCount)
	assert.Equal(t, 1, notTakenCount)
}

func TestTranslateToHIRElidesEmptySkipFallingThroughToExit(t *testing.T) {
	cfg := parseAndLower(t, "skip\n")

	entry, err := cfg.Entry()
	require.NoError(t, err)
	exit, err := cfg.Exit()
	require.NoError(t, err)

	entryEdges := cfg.EdgesOut(entry)
	require.Len(t, entryEdges, 1)
	assert.Equal(t, exit, entryEdges[0].Tail)
}

func TestLowerFlushAssignsCacheVariable(t *testing.T) {
	cfg := parseAndLower(t, "flush\n")

	var found bool
	for _, inst := range allInstructions(cfg) {
		if inst.Operation.Kind == hir.OpAssign && inst.Operation.Variable.Name == "cache" {
			found = true
			assert.True(t, inst.Operation.Variable.VarSort.IsCache())
		}
	}
	assert.True(t, found, "flush should assign the cache variable")
}

func TestLowerStoreAndLoadUseSharedMemoryVariable(t *testing.T) {
	cfg := parseAndLower(t, "r1 = load[r0]\nstore[r0] = r1\n")

	var loadInst, storeInst *hir.Instruction
	for _, inst := range allInstructions(cfg) {
		switch inst.Operation.Kind {
		case hir.OpLoad:
			loadInst = inst
		case hir.OpStore:
			storeInst = inst
		}
	}
	require.NotNil(t, loadInst)
	require.NotNil(t, storeInst)

	assert.Equal(t, "memory", loadInst.Operation.Memory.Name)
	assert.Equal(t, "memory", storeInst.Operation.Memory.Name)
	assert.Equal(t, "memory", storeInst.Operation.NewMemory.Name)
}

func TestLowerConditionalAssignBuildsIteOverPreviousValue(t *testing.T) {
	cfg := parseAndLower(t, "r0 = 1 if r1\n")

	var assign *hir.Instruction
	for _, inst := range allInstructions(cfg) {
		if inst.Operation.Kind == hir.OpAssign && inst.Operation.Variable.Name == "r0" {
			assign = inst
		}
	}
	require.NotNil(t, assign)
	assert.Contains(t, assign.Operation.Expr.String(), "r0")
}
