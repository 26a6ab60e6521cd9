package hir

// Program is the loader boundary artifact (§4, "Loader boundary"): a single
// ControlFlowGraph plus the metadata a transformation pass needs beyond the
// graph itself. Multi-function inputs are inlined into one graph before
// reaching this type (§4.C.9, "inline").
type Program struct {
	cfg *ControlFlowGraph

	// EntryLabel/ExitLabel preserve the loader's symbolic names for the
	// entry/exit blocks, used by counterexample rendering and by the
	// .muasm loader to resolve label-based branch targets.
	EntryLabel string
	ExitLabel  string
}

// NewProgram wraps a ControlFlowGraph as a Program.
func NewProgram(cfg *ControlFlowGraph) *Program {
	return &Program{cfg: cfg}
}

func (p *Program) ControlFlowGraph() *ControlFlowGraph { return p.cfg }

// Clone deep-copies the Program's graph, used by transformation passes that
// must preserve their input (§4.C, SSA transformation's "ssa_transformation"
// entry point, as opposed to the in-place "SSATransformation.transform").
func (p *Program) Clone() *Program {
	return &Program{cfg: p.cfg.clone(), EntryLabel: p.EntryLabel, ExitLabel: p.ExitLabel}
}

func (p *Program) String() string { return p.cfg.String() }
