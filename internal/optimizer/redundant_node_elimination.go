package optimizer

import "specbmc/internal/lir"

// RedundantNodeElimination removes duplicate Assert/Assume nodes, keeping
// the first occurrence of each distinct condition. Grounded on
// lir/optimization/redundant_node_elimination.rs. Let bindings are never
// deduplicated: SSA guarantees each variable is defined exactly once, so
// no two Lets are true duplicates of one another.
type RedundantNodeElimination struct{}

func (RedundantNodeElimination) Name() string { return "Redundant Node Elimination" }

func (RedundantNodeElimination) Description() string {
	return "Removes duplicate assert/assume nodes"
}

func (RedundantNodeElimination) Apply(program *lir.Program) bool {
	seen := map[string]bool{}
	changed := false
	kept := make([]*lir.Node, 0, len(program.Nodes))
	for _, n := range program.Nodes {
		if n.Kind == lir.NodeAssert || n.Kind == lir.NodeAssume {
			key := nodeSignature(n)
			if seen[key] {
				changed = true
				continue
			}
			seen[key] = true
		}
		kept = append(kept, n)
	}
	if changed {
		program.Nodes = kept
	}
	return changed
}

// nodeSignature is the structural key two nodes must share to be
// considered duplicates: the node kind plus the s-expression rendering of
// its condition, distinguishing `assert c` from `assume c`.
func nodeSignature(n *lir.Node) string {
	if n.Kind == lir.NodeAssert {
		return "assert:" + n.Value.String()
	}
	return "assume:" + n.Value.String()
}
