// Package optimizer is the LIR-level optimization pipeline spec.md §4.F
// describes: a sequence of peephole passes run to a fixed point over a
// flat lir.Program node list. Grounded on the teacher's
// internal/ir/optimizations.go (OptimizationPass interface and
// OptimizationPipeline, reused near-verbatim in shape) and on
// original_source/src/lir/optimization/{constant_folding,
// expression_simplification,constant_propagation,copy_propagation,
// dead_code_elimination,redundant_node_elimination,assertion_elimination}.rs
// for each pass's algorithm, and on
// original_source/src/hir/transformation/optimization/mod.rs for the
// repeat-until-no-change loop shape (that file's Optimizer operates on
// hir::ControlFlowGraph; this port targets the flat lir.Program this
// pipeline actually sits downstream of, per spec.md §4.F).
package optimizer

import (
	"fmt"

	"specbmc/internal/environment"
	"specbmc/internal/lir"
)

// OptimizationPass is one LIR rewrite. Apply mutates program in place and
// reports whether it changed anything, mirroring the teacher's
// OptimizationPass.Apply(program) bool signature exactly.
type OptimizationPass interface {
	Name() string
	Description() string
	Apply(program *lir.Program) bool
}

// Pipeline runs a fixed sequence of passes to a fixed point, capped at a
// repetition bound (basic=3, full=5, per environment.OptimizationLevel.Repetitions).
type Pipeline struct {
	passes      []OptimizationPass
	repetitions int
}

// NewPipeline builds the default pass sequence at the given optimization
// level. Order follows the teacher's NewOptimizationPipeline: cheap
// algebraic rewrites first (folding, simplification), then propagation,
// then the passes that actually shrink the node list (dead code,
// redundant node, assertion elimination), since those benefit most from
// running last once propagation has exposed more dead/duplicate nodes.
func NewPipeline(level environment.OptimizationLevel) *Pipeline {
	p := &Pipeline{repetitions: level.Repetitions()}
	p.AddPass(ConstantFolding{})
	p.AddPass(ExpressionSimplification{})
	p.AddPass(ConstantPropagation{})
	p.AddPass(CopyPropagation{})
	p.AddPass(DeadCodeElimination{})
	p.AddPass(RedundantNodeElimination{})
	p.AddPass(AssertionElimination{})
	return p
}

// AddPass appends a pass to the pipeline.
func (p *Pipeline) AddPass(pass OptimizationPass) {
	p.passes = append(p.passes, pass)
}

// Run executes the pipeline, looping over the full pass sequence until a
// complete round changes nothing or the repetition bound is reached.
// OptimizationDisabled has a zero repetition bound, so Run is a no-op.
func (p *Pipeline) Run(program *lir.Program) {
	for round := 0; round < p.repetitions; round++ {
		roundChanged := false
		for _, pass := range p.passes {
			if pass.Apply(program) {
				roundChanged = true
				fmt.Printf("  - %s: %s\n", pass.Name(), pass.Description())
			}
		}
		if !roundChanged {
			return
		}
	}
}
