package transform

import (
	"specbmc/internal/expr"
	"specbmc/internal/hir"
)

// Observations threads Observable instructions through the control flow
// graph, one per enabled microarchitectural component, at the program
// points an attacker model is configured to watch (§4.C.5): after every
// effectful instruction, at every control-flow join, and/or once at the
// end of the program.
type Observations struct {
	CacheAvailable bool
	BTBAvailable   bool
	PHTAvailable   bool

	ObserveEndOfProgram        bool
	ObserveEffectfulInstructions bool
	ObserveControlFlowJoins      bool
}

func (Observations) Name() string { return "Observations" }

func (Observations) Description() string { return "add observations" }

func (o Observations) observableExprs() []*expr.Expr {
	var exprs []*expr.Expr
	if o.CacheAvailable {
		exprs = append(exprs, expr.VariableExpr(expr.NewVariable("cache", expr.CacheSort())))
	}
	if o.BTBAvailable {
		exprs = append(exprs, expr.VariableExpr(expr.NewVariable("btb", expr.BranchTargetBufferSort())))
	}
	if o.PHTAvailable {
		exprs = append(exprs, expr.VariableExpr(expr.NewVariable("pht", expr.PatternHistoryTableSort())))
	}
	return exprs
}

func (o Observations) insertObserveInstructionsAt(b *hir.Block, index int) {
	for _, e := range o.observableExprs() {
		inst := b.InsertInstructionAt(index, hir.Observable(e))
		inst.Pseudo = true
	}
}

func (o Observations) appendObserveInstructions(b *hir.Block) {
	for _, e := range o.observableExprs() {
		b.Observable(e).Pseudo = true
	}
}

func (o Observations) placeObserveAfterEachEffectfulInstruction(cfg *hir.ControlFlowGraph) {
	for _, b := range cfg.Blocks() {
		var effectfulIndices []int
		for i, inst := range b.Instructions() {
			if inst.HasEffects() {
				effectfulIndices = append(effectfulIndices, i)
			}
		}

		for i := len(effectfulIndices) - 1; i >= 0; i-- {
			o.insertObserveInstructionsAt(b, effectfulIndices[i]+1)
		}
	}
}

func (o Observations) placeObserveAtControlFlowJoins(cfg *hir.ControlFlowGraph) {
	var joinBlocks []int
	for _, b := range cfg.Blocks() {
		if len(cfg.EdgesIn(b.Index())) > 1 {
			joinBlocks = append(joinBlocks, b.Index())
		}
	}

	for _, index := range joinBlocks {
		b, err := cfg.Block(index)
		if err != nil {
			continue
		}
		o.insertObserveInstructionsAt(b, 0)
	}
}

func (o Observations) placeObserveAtEndOfProgram(cfg *hir.ControlFlowGraph) error {
	exit, err := cfg.ExitBlock()
	if err != nil {
		return err
	}
	o.appendObserveInstructions(exit)
	return nil
}

func (o Observations) Apply(program *hir.Program) error {
	cfg := program.ControlFlowGraph()

	if o.ObserveEffectfulInstructions {
		o.placeObserveAfterEachEffectfulInstruction(cfg)
	}
	if o.ObserveControlFlowJoins {
		o.placeObserveAtControlFlowJoins(cfg)
	}
	if o.ObserveEndOfProgram {
		if err := o.placeObserveAtEndOfProgram(cfg); err != nil {
			return err
		}
	}

	return nil
}
