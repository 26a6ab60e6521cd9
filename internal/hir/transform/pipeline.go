package transform

import (
	"fmt"

	"specbmc/internal/hir"
)

// Pipeline composes the §4.C passes into the order cmd/specbmc runs them,
// adapted from internal/optimizer.Pipeline (itself grounded on the
// teacher's ir.OptimizationPipeline). Unlike the optimizer's pipeline,
// each pass here runs exactly once: the §4.C transformations build up the
// model in stages rather than converging to a fixed point, so there is no
// repetition bound to track.
type Pipeline struct {
	passes []Pass
}

// NewPipeline returns an empty Pipeline ready for AddPass.
func NewPipeline() *Pipeline {
	return &Pipeline{}
}

// AddPass appends pass to the pipeline and returns the Pipeline, so calls
// can be chained.
func (p *Pipeline) AddPass(pass Pass) *Pipeline {
	p.passes = append(p.passes, pass)
	return p
}

// Run applies every pass in order, stopping and wrapping the error with
// the failing pass's name if one fails.
func (p *Pipeline) Run(program *hir.Program) error {
	for _, pass := range p.passes {
		fmt.Printf("  - %s: %s\n", pass.Name(), pass.Description())
		if err := pass.Apply(program); err != nil {
			return fmt.Errorf("%s: %w", pass.Name(), err)
		}
	}
	return nil
}
