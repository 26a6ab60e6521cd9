package cex

import (
	"fmt"
	"strings"

	perr "specbmc/internal/errors"
	"specbmc/internal/hir"
)

// ControlFlowGraph is the annotated copy of an hir.ControlFlowGraph the
// counterexample is rendered from (control_flow_graph.rs, without the
// falcon-graph-backed dot rendering: no graphviz library appears anywhere
// in the example pack, so this package renders as plain text instead).
type ControlFlowGraph struct {
	blocks map[int]*AnnotatedBlock
	edges  map[[2]int]*AnnotatedEdge
	order  []int
}

func newControlFlowGraph() *ControlFlowGraph {
	return &ControlFlowGraph{blocks: map[int]*AnnotatedBlock{}, edges: map[[2]int]*AnnotatedEdge{}}
}

func (g *ControlFlowGraph) addBlock(b *AnnotatedBlock) {
	g.blocks[b.Block().Index] = b
	g.order = append(g.order, b.Block().Index)
}

func (g *ControlFlowGraph) addEdge(e *AnnotatedEdge) {
	g.edges[[2]int{e.Edge().Head, e.Edge().Tail}] = e
}

func (g *ControlFlowGraph) Block(index int) (*AnnotatedBlock, error) {
	b, ok := g.blocks[index]
	if !ok {
		return nil, perr.Graphf("cex: unknown block %d", index)
	}
	return b, nil
}

func (g *ControlFlowGraph) Edge(head, tail int) (*AnnotatedEdge, error) {
	e, ok := g.edges[[2]int{head, tail}]
	if !ok {
		return nil, perr.Graphf("cex: unknown edge (%d,%d)", head, tail)
	}
	return e, nil
}

// Blocks returns every block in CFG insertion order.
func (g *ControlFlowGraph) Blocks() []*AnnotatedBlock {
	out := make([]*AnnotatedBlock, len(g.order))
	for i, index := range g.order {
		out[i] = g.blocks[index]
	}
	return out
}

func (g *ControlFlowGraph) Edges() []*AnnotatedEdge {
	out := make([]*AnnotatedEdge, 0, len(g.edges))
	for _, e := range g.edges {
		out = append(out, e)
	}
	return out
}

func (g *ControlFlowGraph) String() string {
	var b strings.Builder
	for _, block := range g.Blocks() {
		fmt.Fprint(&b, block)
	}
	for _, edge := range g.Edges() {
		fmt.Fprintf(&b, "edge %s\n", edge)
	}
	return b.String()
}

// fromHIR copies program's CFG shape (every block, every edge) into a fresh
// annotated graph with empty annotations (cex_builder.rs's
// `create_cex_from`).
func fromHIR(cfg *hir.ControlFlowGraph) *ControlFlowGraph {
	g := newControlFlowGraph()
	for _, b := range cfg.Blocks() {
		g.addBlock(newAnnotatedBlock(b))
	}
	for _, e := range cfg.Edges() {
		g.addEdge(newAnnotatedEdge(e))
	}
	return g
}
