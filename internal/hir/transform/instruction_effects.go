package transform

import (
	"specbmc/internal/expr"
	"specbmc/internal/hir"
)

// InstructionEffects attaches the microarchitectural side effects a
// modeled instruction has beyond its architectural Operation (§4.C.2):
// memory accesses fetch into the cache, and branches update the branch
// target buffer and pattern history table. Each effect is enabled
// independently, matching the per-channel flags of the leakage model
// being checked (disabling cache effects when only Spectre-PHT is
// checked, for instance, keeps the resulting formula smaller). Grounded
// on the original implementation's InstructionEffects transform.
type InstructionEffects struct {
	ModelCacheEffects bool
	ModelBTBEffects   bool
	ModelPHTEffects   bool
}

func (InstructionEffects) Name() string        { return "InstructionEffects" }
func (InstructionEffects) Description() string { return "add instruction effects" }

func (t InstructionEffects) Apply(program *hir.Program) error {
	for _, b := range program.ControlFlowGraph().Blocks() {
		for _, inst := range b.Instructions() {
			for _, effect := range t.instructionEffects(inst) {
				inst.AddEffect(effect)
			}
		}
	}
	return nil
}

func (t InstructionEffects) instructionEffects(inst *hir.Instruction) []hir.Effect {
	op := inst.Operation
	var effects []hir.Effect

	switch op.Kind {
	case hir.OpStore:
		if t.ModelCacheEffects {
			effects = append(effects, hir.CacheFetchEffectOf(op.Addr, op.Value.Sort().Width()))
		}
	case hir.OpLoad:
		if t.ModelCacheEffects {
			effects = append(effects, hir.CacheFetchEffectOf(op.Addr, op.Variable.VarSort.Width()))
		}
	case hir.OpCall, hir.OpBranch:
		if t.ModelBTBEffects {
			effects = append(effects, hir.BranchTarget(instructionLocation(inst), op.Target))
		}
	case hir.OpConditionalBranch:
		if t.ModelBTBEffects {
			effects = append(effects, hir.BranchTarget(instructionLocation(inst), op.Target).Guarded(op.Condition))
		}
		if t.ModelPHTEffects {
			effects = append(effects, hir.BranchCondition(instructionLocation(inst), op.Condition))
		}
	}

	return effects
}

func instructionLocation(inst *hir.Instruction) *expr.Expr {
	var address uint64
	if inst.Address != nil {
		address = *inst.Address
	}
	return expr.ConstantExpr(expr.BVConstant(expr.NewBitVectorValue(address, expr.WordWidth)))
}
