package transform

import (
	"specbmc/internal/expr"
	"specbmc/internal/hir"
)

// ExplicitEffects turns every attached Effect (§4.C.2) into a real, pseudo
// Assign instruction ahead of the instruction that produced it, so that
// SSA construction and the lowering to MIR see Cache/BTB/PHT state updates
// as ordinary definitions rather than as instrumentation metadata.
// Grounded on the original implementation's ExplicitEffects transform.
type ExplicitEffects struct{}

func (ExplicitEffects) Name() string        { return "ExplicitEffects" }
func (ExplicitEffects) Description() string { return "make instruction effects explicit" }

func (ExplicitEffects) Apply(program *hir.Program) error {
	for _, b := range program.ControlFlowGraph().Blocks() {
		// Walk by position, re-reading Instructions() each time an effect is
		// spliced in ahead of the current instruction so later effects still
		// land immediately before their own originating instruction.
		position := 0
		for position < len(b.Instructions()) {
			inst := b.Instructions()[position]
			for _, effect := range inst.Effects {
				op, err := encodeEffect(effect)
				if err != nil {
					return err
				}
				inserted := b.InsertBefore(position, op)
				inserted.Address = inst.Address
				inserted.Pseudo = true
				position++
			}
			position++
		}
	}
	return nil
}

func encodeEffect(effect hir.Effect) (hir.Operation, error) {
	if effect.Guard != nil {
		unguarded := effect
		unguarded.Guard = nil
		op, err := encodeEffect(unguarded)
		if err != nil {
			return hir.Operation{}, err
		}
		guarded, err := expr.Ite(effect.Guard, op.Expr, expr.VariableExpr(op.Variable))
		if err != nil {
			return hir.Operation{}, err
		}
		return hir.Assign(op.Variable, guarded), nil
	}

	switch effect.Kind {
	case hir.CacheFetchEffect:
		return encodeCacheFetchEffect(effect.Address, effect.Width)
	case hir.BranchTargetEffect:
		return encodeBranchTargetEffect(effect.Location, effect.Target)
	case hir.BranchConditionEffect:
		return encodeBranchConditionEffect(effect.Location, effect.Condition)
	default:
		return hir.Operation{}, nil
	}
}

func encodeCacheFetchEffect(address *expr.Expr, width int) (hir.Operation, error) {
	cache := expr.NewVariable("cache", expr.CacheSort())
	fetch, err := expr.CacheFetch(width, expr.VariableExpr(cache), address)
	if err != nil {
		return hir.Operation{}, err
	}
	return hir.Assign(cache, fetch), nil
}

func encodeBranchTargetEffect(location, target *expr.Expr) (hir.Operation, error) {
	btb := expr.NewVariable("btb", expr.BranchTargetBufferSort())
	track, err := expr.BTBTrack(expr.VariableExpr(btb), location, target)
	if err != nil {
		return hir.Operation{}, err
	}
	return hir.Assign(btb, track), nil
}

func encodeBranchConditionEffect(location, condition *expr.Expr) (hir.Operation, error) {
	pht := expr.NewVariable("pht", expr.PatternHistoryTableSort())
	taken, err := expr.PHTTaken(expr.VariableExpr(pht), location)
	if err != nil {
		return hir.Operation{}, err
	}
	notTaken, err := expr.PHTNotTaken(expr.VariableExpr(pht), location)
	if err != nil {
		return hir.Operation{}, err
	}
	ite, err := expr.Ite(condition, taken, notTaken)
	if err != nil {
		return hir.Operation{}, err
	}
	return hir.Assign(pht, ite), nil
}
