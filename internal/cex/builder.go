package cex

import (
	perr "specbmc/internal/errors"
	"specbmc/internal/expr"
	"specbmc/internal/hir"
	"specbmc/internal/solver"
)

// Build reconstructs a CounterExample from a violated-assertions model
// (cex_builder.rs's build_counter_example): for each composition, walk the
// CFG taking the first edge whose condition the model satisfies, then
// record every block/edge on that trace as executed and every trace
// instruction's written-variable values and fired effects.
func Build(program *hir.Program, model solver.Model) (*CounterExample, error) {
	cfg := program.ControlFlowGraph()
	annotated := fromHIR(cfg)

	for _, composition := range Compositions {
		trace, err := extractTrace(cfg, model, composition)
		if err != nil {
			return nil, err
		}
		if err := addTraceInfo(annotated, model, trace, composition); err != nil {
			return nil, err
		}
	}

	return newCounterExample(annotated), nil
}

// extractTrace walks cfg from entry, at each block taking the first
// outgoing edge whose condition evaluates true under composition (or the
// first unconditional edge), stopping when no edge is taken.
func extractTrace(cfg *hir.ControlFlowGraph, model solver.Model, composition Composition) ([]int, error) {
	entry, err := cfg.Entry()
	if err != nil {
		return nil, err
	}

	trace := []int{entry}
	for {
		last := trace[len(trace)-1]

		var next *int
		for _, edge := range cfg.EdgesOut(last) {
			if edge.Condition == nil {
				tail := edge.Tail
				next = &tail
				break
			}
			value, ok := evaluateExpr(edge.Condition, model, composition)
			if ok && value.Kind() == expr.ConstBoolean && value.Bool() {
				tail := edge.Tail
				next = &tail
				break
			}
		}

		if next == nil {
			return trace, nil
		}
		trace = append(trace, *next)
	}
}

func addTraceInfo(cfg *ControlFlowGraph, model solver.Model, trace []int, composition Composition) error {
	for _, index := range trace {
		block, err := cfg.Block(index)
		if err != nil {
			return perr.Graphf("cex: trace references %v", err)
		}
		block.AnnotationMut(composition).MarkAsExecuted()

		for _, annotatedInst := range block.Block().Instructions {
			inst := annotatedInst.Instruction()

			for _, effect := range inst.Effects {
				if resolved, ok := evaluateEffect(effect, model, composition); ok {
					annotatedInst.AnnotationMut(composition).AddEffect(resolved)
				}
			}

			for _, v := range inst.VariablesWritten() {
				if value, ok := evaluateVariable(v, model, composition); ok {
					annotatedInst.AnnotationMut(composition).AddAssignment(v, value)
				}
			}
		}
	}

	for i := 0; i+1 < len(trace); i++ {
		edge, err := cfg.Edge(trace[i], trace[i+1])
		if err != nil {
			return perr.Graphf("cex: trace edge (%d,%d) not in annotated graph", trace[i], trace[i+1])
		}
		edge.AnnotationMut(composition).MarkAsExecuted()
	}

	return nil
}

// evaluateVariable evaluates v under composition via the model, skipping
// Predictor-sorted variables (the oracle is shared across compositions and
// has no single per-composition valuation worth reporting, matching
// cex_builder.rs's `Evaluate for Variable`, which special-cases the same
// sort with a FIXME).
func evaluateVariable(v *expr.Variable, model solver.Model, composition Composition) (expr.Constant, bool) {
	if v.VarSort.IsPredictor() {
		return expr.Constant{}, false
	}
	e, ok := model.GetInterpretation(v.WithComposition(composition.Number()))
	if !ok {
		return expr.Constant{}, false
	}
	return e.Const, true
}

func evaluateExpr(e *expr.Expr, model solver.Model, composition Composition) (expr.Constant, bool) {
	if e.Sort().IsPredictor() {
		return expr.Constant{}, false
	}
	composed := expr.SelfCompose(e, composition.Number())
	resolved, ok := model.Evaluate(composed)
	if !ok {
		return expr.Constant{}, false
	}
	return resolved.Const, true
}

func evaluateEffect(e hir.Effect, model solver.Model, composition Composition) (Effect, bool) {
	if e.Guard != nil {
		if guard, ok := evaluateExpr(e.Guard, model, composition); !ok || guard.Kind() != expr.ConstBoolean || !guard.Bool() {
			return Effect{}, false
		}
	}

	switch e.Kind {
	case hir.CacheFetchEffect:
		address, ok := evaluateExpr(e.Address, model, composition)
		if !ok {
			return Effect{}, false
		}
		return NewCacheFetchEffect(address, e.Width), true

	case hir.BranchTargetEffect:
		location, ok1 := evaluateExpr(e.Location, model, composition)
		target, ok2 := evaluateExpr(e.Target, model, composition)
		if !ok1 || !ok2 {
			return Effect{}, false
		}
		return NewBranchTargetEffect(location, target), true

	case hir.BranchConditionEffect:
		location, ok1 := evaluateExpr(e.Location, model, composition)
		condition, ok2 := evaluateExpr(e.Condition, model, composition)
		if !ok1 || !ok2 {
			return Effect{}, false
		}
		return NewBranchConditionEffect(location, condition), true

	default:
		return Effect{}, false
	}
}
