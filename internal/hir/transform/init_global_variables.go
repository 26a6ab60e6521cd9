package transform

import (
	"specbmc/internal/expr"
	"specbmc/internal/hir"
	"specbmc/internal/hir/analysis"
)

// InitGlobalVariables havocs every variable live on entry to some block
// (§4.C.4): a program may read a register or memory word before any
// instruction in it defines one, and the analysis has to assume nothing
// about its initial value beyond what later assumptions pin down.
type InitGlobalVariables struct{}

func (InitGlobalVariables) Name() string { return "InitGlobalVariables" }

func (InitGlobalVariables) Description() string { return "initialize global variables" }

func (InitGlobalVariables) Apply(program *hir.Program) error {
	globals := analysis.GlobalVariables(program)

	entry, err := program.ControlFlowGraph().EntryBlock()
	if err != nil {
		return err
	}

	for _, v := range globals {
		inst := entry.Assign(v, expr.Nondet(v.VarSort))
		inst.Pseudo = true
	}

	return nil
}
