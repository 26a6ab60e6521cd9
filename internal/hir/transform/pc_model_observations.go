package transform

import (
	"specbmc/internal/environment"
	"specbmc/internal/expr"
	"specbmc/internal/hir"
)

// ProgramCounterModelObservations adds the observations a program-counter
// leakage model needs (§9): the address of every memory access and/or the
// target of every branch is made Observable. When the analysis only checks
// transient-execution leaks, a non-transient block's observation is
// weakened to Indistinguishable instead — on the non-speculative path the
// model doesn't expect to catch anything, so forcing equivalence there
// rather than asserting observability avoids spuriously flagging a
// normal-execution difference no speculation window ever reaches.
type ProgramCounterModelObservations struct {
	Check                 environment.Check
	ObserveProgramCounter bool
	ObserveMemoryLoads    bool
}

func (ProgramCounterModelObservations) Name() string { return "ProgramCounterModelObservations" }

func (ProgramCounterModelObservations) Description() string {
	return "add program-counter model observations"
}

func (t ProgramCounterModelObservations) Apply(program *hir.Program) error {
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
					observations = append(observations, observation{i, t.makeObservation(b, inst.Operation.Addr)})
				}
			case hir.OpBranch:
				if t.ObserveProgramCounter {
					observations = append(observations, observation{i, t.makeObservation(b, inst.Operation.Target)})
				}
			case hir.OpConditionalBranch:
				if t.ObserveProgramCounter {
					pc, err := expr.Ite(inst.Operation.Condition, inst.Operation.Target, fallthroughTarget(inst.Address))
					if err != nil {
						return err
					}
					observations = append(observations, observation{i, t.makeObservation(b, pc)})
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

func (t ProgramCounterModelObservations) makeObservation(b *hir.Block, e *expr.Expr) hir.Operation {
	if t.Check == environment.OnlyTransientExecutionLeaks && !b.IsTransient() {
		return hir.Indistinguishable(e)
	}
	return hir.Observable(e)
}
