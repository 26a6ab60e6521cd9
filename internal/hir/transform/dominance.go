package transform

import (
	"sort"

	mapset "github.com/deckarep/golang-set/v2"

	perr "specbmc/internal/errors"
	"specbmc/internal/hir"
)

// computeDominatorTree and computeDominanceFrontiers implement the iterative
// dataflow algorithm of Cooper, Harvey & Kennedy, "A Simple, Fast Dominance
// Algorithm" (2001). No dominance/graph library appears anywhere in the
// retrieved corpus (the original implementation leans on a Rust graph
// crate's built-in dominator computation), so the algorithm itself is a
// from-scratch port of a textbook algorithm rather than an adapted
// third-party dependency (see DESIGN.md); its visited/frontier sets use
// mapset.Set (thread-unsafe variant — this core is single-threaded, §5).
//
// Block indices need not be contiguous or reverse-postorder; this
// implementation computes its own reverse postorder over the reachable
// subgraph before iterating, so it works directly against hir.ControlFlowGraph's
// arena indices.

// dominatorTree maps each reachable block index to its immediate dominator.
// The entry block maps to itself.
type dominatorTree map[int]int

func computeDominatorTree(cfg *hir.ControlFlowGraph, entry int) (dominatorTree, error) {
	order, postIndex, err := reversePostorder(cfg, entry)
	if err != nil {
		return nil, err
	}

	idom := make(map[int]int, len(order))
	idom[entry] = entry

	changed := true
	for changed {
		changed = false
		for _, b := range order {
			if b == entry {
				continue
			}
			var newIdom = -1
			for _, p := range cfg.PredecessorIndices(b) {
				if _, ok := idom[p]; !ok {
					continue // predecessor not yet processed
				}
				if newIdom == -1 {
					newIdom = p
					continue
				}
				newIdom = intersect(idom, postIndex, newIdom, p)
			}
			if newIdom == -1 {
				continue // unreachable from entry
			}
			if prev, ok := idom[b]; !ok || prev != newIdom {
				idom[b] = newIdom
				changed = true
			}
		}
	}

	return dominatorTree(idom), nil
}

func intersect(idom dominatorTree, postIndex map[int]int, a, b int) int {
	for a != b {
		for postIndex[a] < postIndex[b] {
			a = idom[a]
		}
		for postIndex[b] < postIndex[a] {
			b = idom[b]
		}
	}
	return a
}

// reversePostorder returns the reachable blocks from entry in reverse
// postorder, plus a lookup from block index to position in that order
// (higher means "earlier"/closer to entry, matching the Cooper-Harvey-Kennedy
// convention of processing in reverse postorder with entry ranked highest).
func reversePostorder(cfg *hir.ControlFlowGraph, entry int) ([]int, map[int]int, error) {
	if !cfg.HasBlock(entry) {
		return nil, nil, perr.Graphf("reverse postorder: no block %d", entry)
	}

	visited := mapset.NewThreadUnsafeSet[int]()
	var post []int

	var visit func(int)
	visit = func(b int) {
		if visited.Contains(b) {
			return
		}
		visited.Add(b)
		for _, s := range cfg.SuccessorIndices(b) {
			visit(s)
		}
		post = append(post, b)
	}
	visit(entry)

	order := make([]int, len(post))
	postIndex := make(map[int]int, len(post))
	for i, b := range post {
		rpo := len(post) - 1 - i
		order[rpo] = b
		postIndex[b] = len(post) - rpo // higher = earlier in reverse postorder
	}

	return order, postIndex, nil
}

// dominanceFrontiers computes, for every reachable block, the set of blocks
// at which its dominance ends (Cytron et al.'s DF sets), used to place phi
// nodes in semi-pruned SSA construction.
func computeDominanceFrontiers(cfg *hir.ControlFlowGraph, entry int) (map[int][]int, error) {
	idom, err := computeDominatorTree(cfg, entry)
	if err != nil {
		return nil, err
	}

	df := map[int]mapset.Set[int]{}
	for b := range idom {
		df[b] = mapset.NewThreadUnsafeSet[int]()
	}

	for _, b := range sortedKeys(map[int]int(idom)) {
		preds := cfg.PredecessorIndices(b)
		if len(preds) < 2 {
			continue
		}
		for _, p := range preds {
			if _, ok := idom[p]; !ok {
				continue // predecessor unreachable from entry
			}
			runner := p
			for runner != idom[b] {
				df[runner].Add(b)
				runner = idom[runner]
			}
		}
	}

	out := make(map[int][]int, len(df))
	for b, set := range df {
		members := set.ToSlice()
		sort.Ints(members)
		out[b] = members
	}
	return out, nil
}

func sortedKeys(m map[int]int) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
