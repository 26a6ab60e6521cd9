package transform

import (
	"specbmc/internal/environment"
	"specbmc/internal/expr"
	"specbmc/internal/hir"
)

// ExplicitProgramCounter materializes a program counter and a memory
// address as real variables (§9): an `_address` assignment before every
// Load/Store, and a `_pc` assignment after every Branch/ConditionalBranch,
// set to the branch target or, for a conditional branch, an if-then-else
// between the taken target and the fallthrough address. Both variables
// are rollback-persistent, since their value must survive a misspeculation
// rollback to be observed consistently by a later pass.
type ExplicitProgramCounter struct {
	ObserveProgramCounter bool
	ObserveMemoryLoads    bool
}

func (ExplicitProgramCounter) Name() string { return "ExplicitProgramCounter" }

func (ExplicitProgramCounter) Description() string { return "add explicit program counter" }

func AddressVariable() *expr.Variable {
	return expr.NewVariable("_address", expr.BitVectorSort(environment.WordSize)).WithLabel(expr.RollbackPersistent)
}

func ProgramCounterVariable() *expr.Variable {
	return expr.NewVariable("_pc", expr.BitVectorSort(environment.WordSize)).WithLabel(expr.RollbackPersistent)
}

// fallthroughTarget returns the constant expr.Expr for the instruction
// immediately following a conditional branch at the given address,
// assuming a fixed 8-byte instruction width; a nil address yields 0. This
// differs from muasm's line-index addressing, where consecutive
// instructions are one address apart.
func fallthroughTarget(address *uint64) *expr.Expr {
	var next uint64
	if address != nil {
		next = *address + 8
	}
	return bvConstant(next, environment.WordSize)
}

func (t ExplicitProgramCounter) Apply(program *hir.Program) error {
	for _, b := range program.ControlFlowGraph().Blocks() {
		type observation struct {
			index int
			op    hir.Operation
		}
		var observations []observation

		for i, inst := range b.Instructions() {
			switch inst.Operation.Kind {
			case hir.OpLoad, hir.OpStore:
				if t.ObserveMemoryLoads {
					observations = append(observations, observation{i, hir.Assign(AddressVariable(), inst.Operation.Addr)})
				}
			case hir.OpBranch:
				if t.ObserveProgramCounter {
					observations = append(observations, observation{i + 1, hir.Assign(ProgramCounterVariable(), inst.Operation.Target)})
				}
			case hir.OpConditionalBranch:
				if t.ObserveProgramCounter {
					pc, err := expr.Ite(inst.Operation.Condition, inst.Operation.Target, fallthroughTarget(inst.Address))
					if err != nil {
						return err
					}
					observations = append(observations, observation{i + 1, hir.Assign(ProgramCounterVariable(), pc)})
				}
			}
		}

		for i := len(observations) - 1; i >= 0; i-- {
			obs := observations[i]
			inst := b.InsertInstructionAt(obs.index, obs.op)
			inst.Pseudo = true
		}
	}

	return nil
}
