package optimizer

import "specbmc/internal/lir"

// AssertionElimination removes Assert nodes whose condition is also
// assumed elsewhere in the program: once the solver is constrained to
// assume a condition, asserting the same condition again proves nothing
// new. Grounded on lir/optimization/assertion_elimination.rs — the LIR-
// level counterpart of the HIR-level redundant_node_elimination pass the
// original also runs (spec.md §4.F names both as distinct call sites of
// the same kind of pass).
type AssertionElimination struct{}

func (AssertionElimination) Name() string { return "Assertion Elimination" }

func (AssertionElimination) Description() string {
	return "Removes assertions whose condition is already assumed"
}

func (AssertionElimination) Apply(program *lir.Program) bool {
	assumed := map[string]bool{}
	for _, n := range program.Nodes {
		if n.Kind == lir.NodeAssume {
			assumed[n.Value.String()] = true
		}
	}
	if len(assumed) == 0 {
		return false
	}

	changed := false
	kept := make([]*lir.Node, 0, len(program.Nodes))
	for _, n := range program.Nodes {
		if n.Kind == lir.NodeAssert && assumed[n.Value.String()] {
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
