// Package analysis holds read-only dataflow queries over a hir.Program,
// used by transform passes that need whole-program facts (which variables
// are live across block boundaries, which functions call which) without
// mutating anything themselves.
package analysis

import (
	"specbmc/internal/expr"
	"specbmc/internal/hir"
)

// GlobalVariables returns every variable read in some block before it is
// written in that same block, in the order first encountered: a variable
// the block's own instructions don't locally define before using, so its
// value must come from outside the block (entry state, another block, or
// the program's initial/uninitialized state). Initialization passes havoc
// these at the entry block (§4.C.4).
func GlobalVariables(program *hir.Program) []*expr.Variable {
	seen := map[string]bool{}
	var globals []*expr.Variable

	for _, b := range program.ControlFlowGraph().Blocks() {
		killed := map[string]bool{}
		for _, inst := range b.Instructions() {
			for _, v := range inst.VariablesRead() {
				if killed[v.Identifier()] {
					continue
				}
				if !seen[v.Identifier()] {
					seen[v.Identifier()] = true
					globals = append(globals, v)
				}
			}
			for _, v := range inst.VariablesWritten() {
				killed[v.Identifier()] = true
			}
		}
	}

	return globals
}
