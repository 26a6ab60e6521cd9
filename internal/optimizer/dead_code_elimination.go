package optimizer

import "specbmc/internal/lir"

// DeadCodeElimination removes Let bindings nothing critical depends on, via
// mark-and-sweep: every Assert/Assume/Comment node is a critical root, and
// a worklist walks backward through variable uses to mark all transitively
// needed Let definitions. Unmarked Lets are swept. Grounded on
// lir/optimization/dead_code_elimination.rs; requires SSA input (one
// definition per variable), as the original documents.
type DeadCodeElimination struct{}

func (DeadCodeElimination) Name() string { return "Dead Code Elimination" }

func (DeadCodeElimination) Description() string {
	return "Removes Let bindings that are never used"
}

func (DeadCodeElimination) Apply(program *lir.Program) bool {
	definitions := map[string]int{}
	for i, n := range program.Nodes {
		if n.Kind == lir.NodeLet {
			definitions[n.Variable.Identifier()] = i
		}
	}

	marked := make([]bool, len(program.Nodes))
	var worklist []int
	for i, n := range program.Nodes {
		if n.Kind != lir.NodeLet {
			marked[i] = true
			worklist = append(worklist, i)
		}
	}

	for len(worklist) > 0 {
		i := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		n := program.Nodes[i]
		if n.Value == nil {
			continue
		}
		for _, v := range n.Value.Variables() {
			defIndex, ok := definitions[v.Identifier()]
			if ok && !marked[defIndex] {
				marked[defIndex] = true
				worklist = append(worklist, defIndex)
			}
		}
	}

	changed := false
	kept := make([]*lir.Node, 0, len(program.Nodes))
	for i, n := range program.Nodes {
		if n.Kind == lir.NodeLet && !marked[i] {
			changed = true
			continue
		}
		kept = append(kept, n)
	}
	if changed {
		program.Nodes = kept
	}
	return changed
}
