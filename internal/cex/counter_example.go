package cex

// CounterExample is the fully-annotated control-flow graph build_counter_example
// produces: one or two composition traces through the same CFG shape,
// showing which blocks/edges executed and what every instruction's written
// variables and effects resolved to under the solver's model (spec.md
// §4.G). A gap not present in the retrieval pack's mod.rs (which names a
// `counter_example` submodule the pack never captured) — its shape here is
// inferred directly from cex_builder.rs's usage of it.
type CounterExample struct {
	cfg *ControlFlowGraph
}

func newCounterExample(cfg *ControlFlowGraph) *CounterExample {
	return &CounterExample{cfg: cfg}
}

func (c *CounterExample) ControlFlowGraph() *ControlFlowGraph { return c.cfg }

func (c *CounterExample) String() string { return c.cfg.String() }
