package lir

import (
	perr "specbmc/internal/errors"
)

// Validate checks that the program never re-assigns a variable and never
// reads one that no Let defines, grounded on
// original_source/src/lir/validate.rs's validate_program. It does not check
// that the defining Let comes before the read. cmd/specbmc runs it once, on
// the optimized program, before the program reaches the solver.
func Validate(program *Program) error {
	defined := map[string]bool{}

	for i, node := range program.Nodes {
		if node.Kind != NodeLet {
			continue
		}
		id := node.Variable.Identifier()
		if defined[id] {
			return perr.Graphf("lir: @%d: re-assignment of variable %q", i, id)
		}
		defined[id] = true
	}

	for i, node := range program.Nodes {
		if node.Kind != NodeLet && node.Kind != NodeAssert && node.Kind != NodeAssume {
			continue
		}
		for _, v := range node.Value.Variables() {
			if !defined[v.Identifier()] {
				return perr.Graphf("lir: @%d: use of undefined variable %q", i, v.Identifier())
			}
		}
	}

	return nil
}
