// Package transform holds the HIR-to-HIR passes of the pipeline (§4.C):
// loop unwinding, effect attachment, transient-execution weaving, global/
// stack initialization, observation placement, explicit-effect
// materialization, non-speculative-observation equivalence, and SSA
// construction, plus the supplemented phi-elimination, explicit-PC, and
// inlining passes (§9).
package transform

import (
	"sort"

	mapset "github.com/deckarep/golang-set/v2"

	perr "specbmc/internal/errors"
	"specbmc/internal/expr"
	"specbmc/internal/hir"
)

// Pass is the HIR transformation contract, mirrored on the optimizer
// pipeline's pass shape: a name/description pair for progress reporting and
// an Apply step that mutates the Program in place.
type Pass interface {
	Name() string
	Description() string
	Apply(program *hir.Program) error
}

// SSATransformation rewrites a Program into semi-pruned static single
// assignment form: phi nodes are placed at dominance-frontier join points
// for every non-local variable, then every definition and use is given a
// fresh version number (§4.C.8). Grounded on the two-phase
// insert_phi_nodes/rename_variables algorithm of the original
// implementation's SSA pass ("SSA-based Compiler Design", Algorithm 3.1).
type SSATransformation struct{}

func (SSATransformation) Name() string { return "SSATransformation" }
func (SSATransformation) Description() string {
	return "transform into static single assignment form"
}

func (t SSATransformation) Apply(program *hir.Program) error {
	if err := insertPhiNodes(program); err != nil {
		return err
	}
	return renameVariables(program)
}

// insertPhiNodes places a phi node at every dominance-frontier block for
// each variable that is assigned somewhere and is live on entry to at least
// one block (a "non-local" variable in semi-pruned SSA terms). Incoming values from a
// transient-to-default rollback edge are omitted for variables that do not
// survive rollback (§4.C.8): a transient execution never reaches the join
// with a value worth merging.
func insertPhiNodes(program *hir.Program) error {
	cfg := program.ControlFlowGraph()
	entry, err := cfg.Entry()
	if err != nil {
		return err
	}
	if len(cfg.PredecessorIndices(entry)) != 0 {
		return perr.Preconditionf("ssa: control flow graph entry must not have predecessors")
	}

	frontiers, err := computeDominanceFrontiers(cfg, entry)
	if err != nil {
		return err
	}

	nonLocals := computeNonLocalVariables(cfg)
	mutatedIn := variablesMutatedInBlocks(cfg)

	var keys []string
	for key := range mutatedIn {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		site := mutatedIn[key]
		variable := site.variable
		if !containsVariable(nonLocals, variable) {
			continue // local to a single block: no join to merge at
		}
		defs := site.blocks

		phiInsertions := mapset.NewThreadUnsafeSet[int]()
		queue := append([]int(nil), defs...)
		for len(queue) > 0 {
			blockIndex := queue[0]
			queue = queue[1:]

			for _, dfIndex := range frontiers[blockIndex] {
				if phiInsertions.Contains(dfIndex) {
					continue
				}

				dfBlock, err := cfg.Block(dfIndex)
				if err != nil {
					return err
				}

				phiNode := hir.NewPhiNode(variable)
				for _, predecessor := range cfg.PredecessorIndices(dfIndex) {
					predBlock, err := cfg.Block(predecessor)
					if err != nil {
						return err
					}

					// Skip rollback phi inputs (transient- to default-execution
					// edges) for variables that don't survive the rollback, such
					// as ordinary registers.
					isRollback := predBlock.IsTransient() && !dfBlock.IsTransient()
					if isRollback && !variable.IsRollbackPersistent() {
						continue
					}

					phiNode.AddIncoming(predecessor, variable)
				}

				dfBlock.AddPhiNode(phiNode)
				phiInsertions.Add(dfIndex)

				if !containsInt(defs, dfIndex) {
					queue = append(queue, dfIndex)
				}
			}
		}
	}

	return nil
}

// variablesMutatedInBlock returns the distinct variables written by the
// instructions (not phi nodes) of a single block.
func variablesMutatedInBlock(b *hir.Block) []*expr.Variable {
	seen := map[string]bool{}
	var out []*expr.Variable
	for _, inst := range b.Instructions() {
		for _, v := range inst.VariablesWritten() {
			if v == nil || seen[v.Identifier()] {
				continue
			}
			seen[v.Identifier()] = true
			out = append(out, v)
		}
	}
	return out
}

// mutationSites pairs a variable with the sorted set of block indices in
// which it is written.
type mutationSites struct {
	variable *expr.Variable
	blocks   []int
}

// variablesMutatedInBlocks maps each variable's identifier to its
// mutationSites, used to key and drive the phi-placement worklist.
func variablesMutatedInBlocks(cfg *hir.ControlFlowGraph) map[string]*mutationSites {
	mutatedIn := map[string]*mutationSites{}
	blockSets := map[string]mapset.Set[int]{}
	for _, b := range cfg.Blocks() {
		for _, variable := range variablesMutatedInBlock(b) {
			key := variable.Identifier()
			if mutatedIn[key] == nil {
				mutatedIn[key] = &mutationSites{variable: variable}
				blockSets[key] = mapset.NewThreadUnsafeSet[int]()
			}
			blockSets[key].Add(b.Index())
		}
	}

	for key, entry := range mutatedIn {
		indices := blockSets[key].ToSlice()
		sort.Ints(indices)
		entry.blocks = indices
	}
	return mutatedIn
}

// computeNonLocalVariables returns the set of variables live on entry to at
// least one block: those read before being (re)defined within that block.
// Semi-pruned SSA only needs phi nodes for such "non local" variables.
func computeNonLocalVariables(cfg *hir.ControlFlowGraph) map[string]*expr.Variable {
	nonLocals := map[string]*expr.Variable{}

	for _, b := range cfg.Blocks() {
		killed := map[string]bool{}
		for _, inst := range b.Instructions() {
			for _, v := range inst.VariablesRead() {
				if v == nil || killed[v.Identifier()] {
					continue
				}
				nonLocals[v.Identifier()] = v
			}
			for _, v := range inst.VariablesWritten() {
				if v != nil {
					killed[v.Identifier()] = true
				}
			}
		}
	}

	return nonLocals
}

func containsVariable(set map[string]*expr.Variable, v *expr.Variable) bool {
	_, ok := set[v.Identifier()]
	return ok
}

func containsInt(haystack []int, needle int) bool {
	for _, x := range haystack {
		if x == needle {
			return true
		}
	}
	return false
}
