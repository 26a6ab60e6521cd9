package transform

import (
	"sort"

	"specbmc/internal/environment"
	"specbmc/internal/hir"
)

// LoopUnwinding bounds every loop in the control flow graph to a fixed
// number of iterations (§4.C.1): each natural loop is duplicated
// unwindingBound times, the back edge of the final copy is replaced by an
// unwinding assumption or assertion (per guard), and any resulting dead-end
// blocks (speculative paths that can never retire) are pruned. Grounded on
// the original implementation's LoopUnwinding transform, adapted to use
// this package's from-scratch dominator computation (dominance.go) in
// place of a graph library's built-in loop-tree analysis.
type LoopUnwinding struct {
	UnwindingBound int
	Guard          environment.UnwindingGuard
}

func NewLoopUnwinding(bound int, guard environment.UnwindingGuard) LoopUnwinding {
	return LoopUnwinding{UnwindingBound: bound, Guard: guard}
}

func (LoopUnwinding) Name() string        { return "LoopUnwinding" }
func (LoopUnwinding) Description() string { return "unwind loops" }

func (t LoopUnwinding) removedEdgeGuard() hir.RemovedEdgeGuard {
	if t.Guard == environment.UnwindingAssertion {
		return hir.AssertEdgeNotTaken
	}
	return hir.AssumeEdgeNotTaken
}

func (t LoopUnwinding) Apply(program *hir.Program) error {
	cfg := program.ControlFlowGraph()
	if err := t.unwindCFG(cfg); err != nil {
		return err
	}
	return cfg.Simplify()
}

func (t LoopUnwinding) unwindCFG(cfg *hir.ControlFlowGraph) error {
	entry, err := cfg.Entry()
	if err != nil {
		return err
	}

	idom, err := computeDominatorTree(cfg, entry)
	if err != nil {
		return err
	}

	loopsByHeader := map[int]map[int]bool{}
	for _, b := range cfg.Blocks() {
		n := b.Index()
		if _, ok := idom[n]; !ok {
			continue // unreachable
		}
		for _, s := range cfg.SuccessorIndices(n) {
			if !dominates(idom, s, n) {
				continue // not a back edge
			}
			header := s
			nodes := loopsByHeader[header]
			if nodes == nil {
				nodes = map[int]bool{header: true}
				loopsByHeader[header] = nodes
			}
			addPredecessorsUntil(cfg, n, header, nodes)
		}
	}

	if len(loopsByHeader) == 0 {
		return nil
	}

	// Process innermost loops first: a loop with fewer nodes than another
	// whose header it also contains is more deeply nested. Sorting by node
	// count ascending approximates processing leaves of the loop-nesting
	// forest before their ancestors, which is enough here since unwinding
	// only adds nodes to enclosing loops, never removes loop structure.
	var headers []int
	for h := range loopsByHeader {
		headers = append(headers, h)
	}
	sort.Slice(headers, func(i, j int) bool {
		return len(loopsByHeader[headers[i]]) < len(loopsByHeader[headers[j]])
	})

	for _, header := range headers {
		nodes := loopsByHeader[header]
		unwound, err := t.unwindLoop(cfg, header, nodes)
		if err != nil {
			return err
		}
		// Newly created nodes join any enclosing loop whose body already
		// contained this loop's header.
		for otherHeader, otherNodes := range loopsByHeader {
			if otherHeader == header {
				continue
			}
			if otherNodes[header] {
				for n := range unwound {
					otherNodes[n] = true
				}
			}
		}
	}

	return cfg.RemoveDeadEndBlocks(t.removedEdgeGuard())
}

func dominates(idom dominatorTree, a, b int) bool {
	for b != a {
		parent, ok := idom[b]
		if !ok || parent == b {
			return a == b
		}
		b = parent
	}
	return true
}

// addPredecessorsUntil walks backward from n, adding every node reached
// before header, to build header's natural loop body.
func addPredecessorsUntil(cfg *hir.ControlFlowGraph, n, header int, nodes map[int]bool) {
	if nodes[n] {
		return
	}
	nodes[n] = true
	for _, p := range cfg.PredecessorIndices(n) {
		if !nodes[p] {
			addPredecessorsUntil(cfg, p, header, nodes)
		}
	}
}

func (t LoopUnwinding) unwindLoop(cfg *hir.ControlFlowGraph, header int, loopNodes map[int]bool) (map[int]bool, error) {
	var sortedNodes []int
	for n := range loopNodes {
		sortedNodes = append(sortedNodes, n)
	}
	sort.Ints(sortedNodes)

	var backNodes []int
	for _, p := range cfg.PredecessorIndices(header) {
		if loopNodes[p] {
			backNodes = append(backNodes, p)
		}
	}
	sort.Ints(backNodes)

	unwound := map[int]bool{}
	for n := range loopNodes {
		unwound[n] = true
	}

	if t.UnwindingBound == 0 {
		for _, backNode := range backNodes {
			if _, err := cfg.RemoveEdge(backNode, header, hir.AssumeEdgeNotTaken); err != nil {
				return nil, err
			}
		}
		return unwound, nil
	}

	// First copy stands in for the final iteration: its back edges are cut
	// (with an unwinding guard) instead of looping again.
	newIndices, err := cfg.DuplicateBlocks(sortedNodes)
	if err != nil {
		return nil, err
	}
	lastHeader := newIndices[header]
	for _, backNode := range backNodes {
		dup := newIndices[backNode]
		if _, err := cfg.RemoveEdge(dup, lastHeader, t.removedEdgeGuard()); err != nil {
			return nil, err
		}
	}
	for _, idx := range newIndices {
		unwound[idx] = true
	}

	// Remaining bound-1 copies: each copy's back edges rewire to the
	// previous copy's header (iterations run in reverse creation order,
	// feeding toward the final copy built above).
	nextHeader := lastHeader
	for i := 1; i < t.UnwindingBound; i++ {
		newIndices, err := cfg.DuplicateBlocks(sortedNodes)
		if err != nil {
			return nil, err
		}
		currentHeader := newIndices[header]
		for _, backNode := range backNodes {
			dup := newIndices[backNode]
			if err := cfg.RewireEdge(dup, currentHeader, dup, nextHeader); err != nil {
				return nil, err
			}
		}
		for _, idx := range newIndices {
			unwound[idx] = true
		}
		nextHeader = currentHeader
	}

	// The original loop's back edges now feed the first unwound copy,
	// eliminating the loop.
	for _, backNode := range backNodes {
		if err := cfg.RewireEdge(backNode, header, backNode, nextHeader); err != nil {
			return nil, err
		}
	}

	return unwound, nil
}
