package transform

import (
	"specbmc/internal/expr"
	"specbmc/internal/hir"
)

// NonSpecObsEquivalence adds non-speculative observational equivalence
// constraints (§4.C.7): for every microarchitectural component the
// analysis tracks, a shadow "_ns" (non-speculative) copy is threaded
// alongside the speculative one, updated only outside transient execution.
// Observable instructions additionally get an Indistinguishable instruction
// over their non-speculative shadow — the non-speculative executions of
// the two self-composed program copies must already agree on what an
// attacker can see, since Spectre leaks are defined relative to that
// baseline, not an arbitrary divergence normal execution would allow too.
type NonSpecObsEquivalence struct {
	CacheAvailable bool
	BTBAvailable   bool
	PHTAvailable   bool
}

func (NonSpecObsEquivalence) Name() string { return "NonSpecObsEquivalence" }

func (NonSpecObsEquivalence) Description() string {
	return "add non-speculative observational equivalence constraints"
}

func cacheNonspec() *expr.Variable {
	return expr.NewVariable("_cache_ns", expr.CacheSort())
}

func btbNonspec() *expr.Variable {
	return expr.NewVariable("_btb_ns", expr.BranchTargetBufferSort())
}

func phtNonspec() *expr.Variable {
	return expr.NewVariable("_pht_ns", expr.PatternHistoryTableSort())
}

func nonspecEquivalentOf(v *expr.Variable) *expr.Variable {
	switch v.VarSort.Kind() {
	case expr.Cache:
		return cacheNonspec()
	case expr.BranchTargetBuffer:
		return btbNonspec()
	case expr.PatternHistoryTable:
		return phtNonspec()
	default:
		return nil
	}
}

// instructionRequiresNonspecEquivalent reports whether inst touches any
// rollback-persistent (Cache/BTB/PHT) variable, and so needs a shadow
// non-speculative counterpart tracking the same effect outside transient
// execution.
func instructionRequiresNonspecEquivalent(inst *hir.Instruction) bool {
	for _, v := range inst.VariablesRead() {
		if v.IsRollbackPersistent() {
			return true
		}
	}
	for _, v := range inst.VariablesWritten() {
		if v.IsRollbackPersistent() {
			return true
		}
	}
	return false
}

// createNonspecIndistinguishableEquivalent builds the Indistinguishable
// operation that shadows an Observable instruction's non-speculative
// counterpart.
func createNonspecIndistinguishableEquivalent(inst *hir.Instruction) hir.Operation {
	nonspecExpr := expr.SubstituteVariables(inst.Operation.Observed, nonspecEquivalentOf)
	return hir.Indistinguishable(nonspecExpr)
}

// createNonspecInstructionEquivalent clones inst's operation with every
// rollback-persistent variable it reads or writes replaced by its "_ns"
// counterpart.
func createNonspecInstructionEquivalent(op hir.Operation) hir.Operation {
	replace := func(v *expr.Variable) *expr.Variable {
		if v == nil {
			return nil
		}
		if eq := nonspecEquivalentOf(v); eq != nil {
			return eq
		}
		return v
	}

	nonspec := op
	if op.Variable != nil {
		nonspec.Variable = replace(op.Variable)
	}
	if op.NewMemory != nil {
		nonspec.NewMemory = replace(op.NewMemory)
	}
	if op.Memory != nil {
		nonspec.Memory = replace(op.Memory)
	}
	if op.Result != nil {
		nonspec.Result = replace(op.Result)
	}
	nonspec.Expr = expr.SubstituteVariables(op.Expr, nonspecEquivalentOf)
	nonspec.Addr = expr.SubstituteVariables(op.Addr, nonspecEquivalentOf)
	nonspec.Value = expr.SubstituteVariables(op.Value, nonspecEquivalentOf)
	nonspec.Target = expr.SubstituteVariables(op.Target, nonspecEquivalentOf)
	nonspec.Condition = expr.SubstituteVariables(op.Condition, nonspecEquivalentOf)
	if len(op.Args) > 0 {
		args := make([]*expr.Expr, len(op.Args))
		for i, a := range op.Args {
			args[i] = expr.SubstituteVariables(a, nonspecEquivalentOf)
		}
		nonspec.Args = args
	}

	return nonspec
}

type pendingInsert struct {
	afterIndex int
	op         hir.Operation
}

func (t NonSpecObsEquivalence) Apply(program *hir.Program) error {
	cfg := program.ControlFlowGraph()

	for _, b := range cfg.Blocks() {
		var pending []pendingInsert
		isTransient := b.IsTransient()

		for i, inst := range b.Instructions() {
			switch {
			case inst.IsObservable():
				pending = append(pending, pendingInsert{afterIndex: i, op: createNonspecIndistinguishableEquivalent(inst)})
			case !isTransient && instructionRequiresNonspecEquivalent(inst):
				pending = append(pending, pendingInsert{afterIndex: i, op: createNonspecInstructionEquivalent(inst.Operation)})
			}
		}

		for i := len(pending) - 1; i >= 0; i-- {
			p := pending[i]
			inst := b.InsertInstructionAt(p.afterIndex+1, p.op)
			inst.Pseudo = true
		}
	}

	return t.addInitialSpecNonspecEquivalenceConstraints(cfg)
}

// addInitialSpecNonspecEquivalenceConstraints assumes every tracked
// microarchitectural component starts in the same state as its
// non-speculative shadow, since before any instruction runs there has been
// no opportunity for the two to diverge.
func (t NonSpecObsEquivalence) addInitialSpecNonspecEquivalenceConstraints(cfg *hir.ControlFlowGraph) error {
	type pair struct{ nonspec, spec *expr.Variable }
	var pairs []pair

	if t.CacheAvailable {
		pairs = append(pairs, pair{cacheNonspec(), expr.NewVariable("cache", expr.CacheSort())})
	}
	if t.BTBAvailable {
		pairs = append(pairs, pair{btbNonspec(), expr.NewVariable("btb", expr.BranchTargetBufferSort())})
	}
	if t.PHTAvailable {
		pairs = append(pairs, pair{phtNonspec(), expr.NewVariable("pht", expr.PatternHistoryTableSort())})
	}

	entry, err := cfg.EntryBlock()
	if err != nil {
		return err
	}

	for _, p := range pairs {
		eq, err := expr.Equal(expr.VariableExpr(p.nonspec), expr.VariableExpr(p.spec))
		if err != nil {
			return err
		}
		entry.Assume(eq).Pseudo = true
	}

	return nil
}
