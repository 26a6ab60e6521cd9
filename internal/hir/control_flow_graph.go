package hir

import (
	"fmt"
	"sort"
	"strings"

	perr "specbmc/internal/errors"
	"specbmc/internal/expr"
)

// ControlFlowGraph is a directed graph of Blocks and Edges, arena-indexed by
// block index rather than pointer-linked, so passes can duplicate and rewire
// subgraphs (the transient-execution weave, loop unwinding) without
// invalidating references held elsewhere (§4.C, DESIGN NOTES §9).
type ControlFlowGraph struct {
	blocks    map[int]*Block
	edgesOut  map[int][]*Edge
	edgesIn   map[int][]*Edge
	order     []int // block indices in insertion order, for deterministic iteration
	nextIndex int
	entry     *int
	exit      *int
}

func NewControlFlowGraph() *ControlFlowGraph {
	return &ControlFlowGraph{
		blocks:   map[int]*Block{},
		edgesOut: map[int][]*Edge{},
		edgesIn:  map[int][]*Edge{},
	}
}

func (g *ControlFlowGraph) Entry() (int, error) {
	if g.entry == nil {
		return 0, perr.Graphf("control flow graph entry must be set")
	}
	return *g.entry, nil
}

func (g *ControlFlowGraph) SetEntry(index int) error {
	if !g.HasBlock(index) {
		return perr.Graphf("set_entry: no block %d", index)
	}
	g.entry = &index
	return nil
}

func (g *ControlFlowGraph) Exit() (int, error) {
	if g.exit == nil {
		return 0, perr.Graphf("control flow graph exit must be set")
	}
	return *g.exit, nil
}

func (g *ControlFlowGraph) SetExit(index int) error {
	if !g.HasBlock(index) {
		return perr.Graphf("set_exit: no block %d", index)
	}
	g.exit = &index
	return nil
}

func (g *ControlFlowGraph) EntryBlock() (*Block, error) {
	i, err := g.Entry()
	if err != nil {
		return nil, err
	}
	return g.Block(i)
}

func (g *ControlFlowGraph) ExitBlock() (*Block, error) {
	i, err := g.Exit()
	if err != nil {
		return nil, err
	}
	return g.Block(i)
}

func (g *ControlFlowGraph) Block(index int) (*Block, error) {
	b, ok := g.blocks[index]
	if !ok {
		return nil, perr.Graphf("no block with index %d", index)
	}
	return b, nil
}

func (g *ControlFlowGraph) HasBlock(index int) bool {
	_, ok := g.blocks[index]
	return ok
}

// Blocks returns every block, in insertion order.
func (g *ControlFlowGraph) Blocks() []*Block {
	out := make([]*Block, 0, len(g.order))
	for _, i := range g.order {
		out = append(out, g.blocks[i])
	}
	return out
}

// NewBlock creates a fresh, empty block and adds it to the graph.
func (g *ControlFlowGraph) NewBlock() *Block {
	index := g.nextIndex
	g.nextIndex++
	b := newBlock(index)
	g.blocks[index] = b
	g.order = append(g.order, index)
	return b
}

// AddBlock inserts a pre-built block (used when reconstructing a graph from
// a duplicate or a sub-CFG insertion).
func (g *ControlFlowGraph) AddBlock(b *Block) {
	if b.index+1 > g.nextIndex {
		g.nextIndex = b.index + 1
	}
	g.blocks[b.index] = b
	g.order = append(g.order, b.index)
}

// DuplicateBlock clones an existing block under a fresh index (without
// copying edges) and adds it to the graph.
func (g *ControlFlowGraph) DuplicateBlock(index int) (*Block, error) {
	src, err := g.Block(index)
	if err != nil {
		return nil, err
	}
	newIndex := g.nextIndex
	g.nextIndex++
	clone := src.cloneWithIndex(newIndex)
	g.blocks[newIndex] = clone
	g.order = append(g.order, newIndex)
	return clone, nil
}

// DuplicateBlocks clones every block in the given set, along with the
// outgoing edges between cloned blocks, and returns the old->new index
// mapping. Used by loop unwinding and transient-execution weaving to
// replicate a region of the graph (§4.C.1, §4.C.3).
func (g *ControlFlowGraph) DuplicateBlocks(indices []int) (map[int]int, error) {
	blockMap := map[int]int{}
	for _, index := range indices {
		dup, err := g.DuplicateBlock(index)
		if err != nil {
			return nil, err
		}
		blockMap[index] = dup.Index()
	}

	var newEdges []*Edge
	for _, index := range indices {
		for _, e := range g.EdgesOut(index) {
			newHead := e.Head
			if mapped, ok := blockMap[e.Head]; ok {
				newHead = mapped
			}
			newTail := e.Tail
			if mapped, ok := blockMap[e.Tail]; ok {
				newTail = mapped
			}
			newEdges = append(newEdges, e.cloneWithHeadTail(newHead, newTail))
		}
	}
	for _, e := range newEdges {
		g.insertEdge(e)
	}
	return blockMap, nil
}

func (g *ControlFlowGraph) insertEdge(e *Edge) {
	g.edgesOut[e.Head] = append(g.edgesOut[e.Head], e)
	g.edgesIn[e.Tail] = append(g.edgesIn[e.Tail], e)
}

// Clone deep-copies the graph: every block under its own index (preserving,
// not renumbering), every edge, entry/exit pointers. Exported for passes
// that build a graph variant off an unmodified copy of their input, such as
// transient-execution weaving's default/transient CFG construction (§4.C.3).
func (g *ControlFlowGraph) Clone() *ControlFlowGraph { return g.clone() }

// clone deep-copies the graph: every block under its own index (preserving,
// not renumbering), every edge, entry/exit pointers. Used by passes that
// must produce a new Program rather than mutate their input in place.
func (g *ControlFlowGraph) clone() *ControlFlowGraph {
	out := NewControlFlowGraph()
	out.nextIndex = g.nextIndex
	for _, index := range g.order {
		out.AddBlock(g.blocks[index].cloneWithIndex(index))
	}
	for _, index := range g.order {
		for _, e := range g.edgesOut[index] {
			clone := *e
			out.insertEdge(&clone)
		}
	}
	if g.entry != nil {
		entry := *g.entry
		out.entry = &entry
	}
	if g.exit != nil {
		exit := *g.exit
		out.exit = &exit
	}
	return out
}

// RemoveBlock deletes a block, all its incoming edges (applying guard to
// each) and all its outgoing edges, clearing entry/exit if either pointed
// at it.
func (g *ControlFlowGraph) RemoveBlock(index int, guard RemovedEdgeGuard) (*Block, error) {
	if g.entry != nil && *g.entry == index {
		g.entry = nil
	}
	if g.exit != nil && *g.exit == index {
		g.exit = nil
	}

	for _, pred := range g.PredecessorIndices(index) {
		if _, err := g.RemoveEdge(pred, index, guard); err != nil {
			return nil, err
		}
	}
	for _, succ := range g.SuccessorIndices(index) {
		if _, err := g.RemoveEdge(index, succ, Ignore); err != nil {
			return nil, err
		}
	}

	b, err := g.Block(index)
	if err != nil {
		return nil, err
	}
	delete(g.blocks, index)
	delete(g.edgesOut, index)
	delete(g.edgesIn, index)
	for i, idx := range g.order {
		if idx == index {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
	return b, nil
}

// SplitBlockAt splits the block at the given instruction-local position,
// moving instructions at or after that position into a new tail block.
// Outgoing edges are rewired to the new tail; no edge is added between the
// head and the tail (§4.C, ground truth: DuplicateBlock family semantics).
func (g *ControlFlowGraph) SplitBlockAt(blockIndex, instructionIndex int) (int, error) {
	top, err := g.Block(blockIndex)
	if err != nil {
		return 0, err
	}
	var tailInstructions []*Instruction
	if len(top.instructions) != instructionIndex {
		tailInstructions = top.splitOffInstructionsAt(instructionIndex)
	}

	tail := g.NewBlock()
	tail.setInstructions(tailInstructions)
	tailIndex := tail.Index()

	for _, successor := range g.SuccessorIndices(blockIndex) {
		if err := g.RewireEdge(blockIndex, successor, tailIndex, successor); err != nil {
			return 0, err
		}
	}

	if g.exit != nil && *g.exit == blockIndex {
		if err := g.SetExit(tailIndex); err != nil {
			return 0, err
		}
	}

	return tailIndex, nil
}

func (g *ControlFlowGraph) Edge(head, tail int) (*Edge, error) {
	for _, e := range g.edgesOut[head] {
		if e.Tail == tail {
			return e, nil
		}
	}
	return nil, perr.Graphf("no edge (%d -> %d)", head, tail)
}

func (g *ControlFlowGraph) HasEdge(head, tail int) bool {
	_, err := g.Edge(head, tail)
	return err == nil
}

// Edges returns every edge, ordered by (head, tail) for determinism.
func (g *ControlFlowGraph) Edges() []*Edge {
	var all []*Edge
	for _, index := range g.order {
		all = append(all, g.edgesOut[index]...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Head != all[j].Head {
			return all[i].Head < all[j].Head
		}
		return all[i].Tail < all[j].Tail
	})
	return all
}

func (g *ControlFlowGraph) EdgesOut(index int) []*Edge { return g.edgesOut[index] }
func (g *ControlFlowGraph) EdgesIn(index int) []*Edge  { return g.edgesIn[index] }

func (g *ControlFlowGraph) PredecessorIndices(index int) []int {
	var out []int
	for _, e := range g.edgesIn[index] {
		out = append(out, e.Head)
	}
	return out
}

func (g *ControlFlowGraph) SuccessorIndices(index int) []int {
	var out []int
	for _, e := range g.edgesOut[index] {
		out = append(out, e.Tail)
	}
	return out
}

func (g *ControlFlowGraph) UnconditionalEdge(head, tail int) (*Edge, error) {
	if !g.HasBlock(head) || !g.HasBlock(tail) {
		return nil, perr.Graphf("unconditional_edge: missing endpoint block")
	}
	e := NewEdge(head, tail, nil)
	g.insertEdge(e)
	return e, nil
}

func (g *ControlFlowGraph) ConditionalEdge(head, tail int, condition *expr.Expr) (*Edge, error) {
	if !g.HasBlock(head) || !g.HasBlock(tail) {
		return nil, perr.Graphf("conditional_edge: missing endpoint block")
	}
	e := NewEdge(head, tail, condition)
	g.insertEdge(e)
	return e, nil
}

// RemoveEdge deletes an edge. If it was conditional, the removal guard
// decides whether the predecessor gains an assume/assert that its condition
// no longer holds, preserving soundness of the remaining paths (§4.C.3).
func (g *ControlFlowGraph) RemoveEdge(head, tail int, guard RemovedEdgeGuard) (*Edge, error) {
	e, err := g.Edge(head, tail)
	if err != nil {
		return nil, err
	}
	clone := *e

	if e.Condition != nil && guard != Ignore {
		negated, err := expr.Not(e.Condition)
		if err != nil {
			return nil, err
		}
		pred, err := g.Block(head)
		if err != nil {
			return nil, err
		}
		var inst *Instruction
		switch guard {
		case AssumeEdgeNotTaken:
			inst = pred.Assume(negated)
		case AssertEdgeNotTaken:
			inst = pred.Assert(negated)
		}
		if inst != nil {
			inst.Pseudo = true
		}
	}

	outList := g.edgesOut[head]
	for i, oe := range outList {
		if oe == e {
			g.edgesOut[head] = append(outList[:i], outList[i+1:]...)
			break
		}
	}
	inList := g.edgesIn[tail]
	for i, ie := range inList {
		if ie == e {
			g.edgesIn[tail] = append(inList[:i], inList[i+1:]...)
			break
		}
	}
	return &clone, nil
}

// RewireEdge moves an existing edge to new endpoints, preserving its
// condition and labels.
func (g *ControlFlowGraph) RewireEdge(head, tail, newHead, newTail int) error {
	e, err := g.Edge(head, tail)
	if err != nil {
		return err
	}
	newEdge := e.cloneWithHeadTail(newHead, newTail)
	if _, err := g.RemoveEdge(head, tail, Ignore); err != nil {
		return err
	}
	g.insertEdge(newEdge)
	return nil
}

// Insert merges another CFG's blocks and edges into this one under fresh
// indices, returning the old->new block index mapping. Leaves the result
// disconnected: callers wire an edge from their own exit to the inserted
// entry themselves (inlining does this; see internal/hir/transform).
func (g *ControlFlowGraph) Insert(other *ControlFlowGraph) map[int]int {
	blockMap := map[int]int{}
	for _, b := range other.Blocks() {
		newIndex := g.nextIndex
		g.nextIndex++
		clone := b.cloneWithIndex(newIndex)
		blockMap[b.Index()] = newIndex
		g.blocks[newIndex] = clone
		g.order = append(g.order, newIndex)
	}
	for _, e := range other.Edges() {
		g.insertEdge(e.cloneWithHeadTail(blockMap[e.Head], blockMap[e.Tail]))
	}
	return blockMap
}

// Append concatenates other onto this CFG: an edge is added from this
// graph's exit to other's entry, and this graph's exit becomes other's exit.
// If this graph is empty, it simply adopts other's entry/exit.
func (g *ControlFlowGraph) Append(other *ControlFlowGraph) error {
	isEmpty := len(g.blocks) == 0
	blockMap := g.Insert(other)

	otherEntry, err := other.Entry()
	if err != nil {
		return err
	}
	otherExit, err := other.Exit()
	if err != nil {
		return err
	}

	if isEmpty {
		g.entry = intPtr(blockMap[otherEntry])
	} else {
		exit, err := g.Exit()
		if err != nil {
			return err
		}
		if _, err := g.UnconditionalEdge(exit, blockMap[otherEntry]); err != nil {
			return err
		}
	}
	g.exit = intPtr(blockMap[otherExit])
	return nil
}

func intPtr(i int) *int { return &i }

// RemoveDeadEndBlocks deletes every block other than the exit that has no
// successors, repeatedly, since removing one dead end can create another
// upstream (§4.C.3: a speculative path that can never retire). Blocks on a
// cycle that never reaches the exit still have successors and are kept.
func (g *ControlFlowGraph) RemoveDeadEndBlocks(guard RemovedEdgeGuard) error {
	exit, err := g.Exit()
	if err != nil {
		return err
	}

	var queue []int
	for _, index := range g.order {
		if index != exit && len(g.SuccessorIndices(index)) == 0 {
			queue = append(queue, index)
		}
	}

	for len(queue) > 0 {
		index := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		if index == exit || len(g.SuccessorIndices(index)) != 0 {
			continue
		}

		preds := g.PredecessorIndices(index)
		if _, err := g.RemoveBlock(index, guard); err != nil {
			return err
		}
		for _, pred := range preds {
			if len(g.SuccessorIndices(pred)) == 0 {
				queue = append(queue, pred)
			}
		}
	}
	return nil
}

func (g *ControlFlowGraph) removeUnreachableBlocks() error {
	entry, err := g.Entry()
	if err != nil {
		return err
	}
	reachable := map[int]bool{entry: true}
	queue := []int{entry}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, succ := range g.SuccessorIndices(cur) {
			if !reachable[succ] {
				reachable[succ] = true
				queue = append(queue, succ)
			}
		}
	}
	for _, index := range append([]int(nil), g.order...) {
		if !reachable[index] {
			if _, err := g.RemoveBlock(index, Ignore); err != nil {
				return err
			}
		}
	}
	return nil
}

// mergeConsecutiveBlocksWithSingleSuccessorAndPredecessor fuses straight-line
// chains (A -unconditional-> B, B has no other predecessor) until no more
// merges apply.
func (g *ControlFlowGraph) mergeConsecutiveBlocksWithSingleSuccessorAndPredecessor() error {
	for {
		beingMerged := map[int]bool{}
		type pair struct{ from, to int }
		var merges []pair

		for _, index := range g.order {
			if beingMerged[index] {
				continue
			}
			if g.entry != nil && *g.entry == index {
				continue
			}
			out := g.EdgesOut(index)
			if len(out) != 1 || out[0].IsConditional() {
				continue
			}
			successor := out[0].Tail
			if beingMerged[successor] {
				continue
			}
			if g.exit != nil && *g.exit == successor {
				continue
			}
			if len(g.EdgesIn(successor)) != 1 {
				continue
			}
			beingMerged[index] = true
			beingMerged[successor] = true
			merges = append(merges, pair{index, successor})
		}

		if len(merges) == 0 {
			return nil
		}

		for _, m := range merges {
			successorBlock, err := g.Block(m.to)
			if err != nil {
				return err
			}
			mergeBlock, err := g.Block(m.from)
			if err != nil {
				return err
			}
			mergeBlock.append(successorBlock)

			for _, e := range append([]*Edge(nil), g.EdgesOut(m.to)...) {
				g.insertEdge(e.cloneWithHeadTail(m.from, e.Tail))
			}
			if _, err := g.RemoveBlock(m.to, Ignore); err != nil {
				return err
			}
		}
	}
}

// removeEmptyBlocksWithSingleSuccessor rewires predecessors of an empty,
// single-successor block directly to that successor, merging conditions and
// labels of any colliding edges.
func (g *ControlFlowGraph) removeEmptyBlocksWithSingleSuccessor() error {
	var emptyBlocks []int
	for _, index := range g.order {
		if b := g.blocks[index]; b.IsEmpty() {
			emptyBlocks = append(emptyBlocks, index)
		}
	}

	for _, blockIndex := range emptyBlocks {
		successors := g.SuccessorIndices(blockIndex)
		if len(successors) != 1 {
			continue
		}
		successor := successors[0]

		predecessors := g.PredecessorIndices(blockIndex)
		if len(predecessors) == 0 {
			continue
		}

		outgoing, err := g.Edge(blockIndex, successor)
		if err != nil {
			return err
		}
		outgoingLabels := outgoing.Labels

		for _, predecessor := range predecessors {
			if !g.HasEdge(predecessor, successor) {
				if err := g.RewireEdge(predecessor, blockIndex, predecessor, successor); err != nil {
					return err
				}
			} else {
				removed, err := g.RemoveEdge(predecessor, blockIndex, Ignore)
				if err != nil {
					return err
				}
				existing, err := g.Edge(predecessor, successor)
				if err != nil {
					return err
				}
				var combined *expr.Expr
				if existing.Condition != nil && removed.Condition != nil {
					combined, err = expr.Or(existing.Condition, removed.Condition)
					if err != nil {
						return err
					}
				}
				existing.Condition = combined
				existing.Labels |= removed.Labels
			}

			e, err := g.Edge(predecessor, successor)
			if err != nil {
				return err
			}
			e.Labels |= outgoingLabels
		}

		if _, err := g.RemoveBlock(blockIndex, Ignore); err != nil {
			return err
		}
	}
	return nil
}

// Simplify removes unreachable blocks and fuses/elides trivial blocks to a
// fixed point (§4.C, mirrored from the teacher's optimization-pipeline
// fixed-point pattern).
func (g *ControlFlowGraph) Simplify() error {
	if err := g.removeUnreachableBlocks(); err != nil {
		return err
	}
	for {
		before := len(g.blocks)
		if err := g.mergeConsecutiveBlocksWithSingleSuccessorAndPredecessor(); err != nil {
			return err
		}
		if err := g.removeEmptyBlocksWithSingleSuccessor(); err != nil {
			return err
		}
		if len(g.blocks) == before {
			return nil
		}
	}
}

func (g *ControlFlowGraph) VariablesWritten() []*expr.Variable {
	var vars []*expr.Variable
	for _, b := range g.Blocks() {
		vars = append(vars, b.VariablesWritten()...)
	}
	return vars
}

func (g *ControlFlowGraph) VariablesRead() []*expr.Variable {
	var vars []*expr.Variable
	for _, b := range g.Blocks() {
		vars = append(vars, b.VariablesRead()...)
	}
	for _, e := range g.Edges() {
		vars = append(vars, e.VariablesRead()...)
	}
	return vars
}

func (g *ControlFlowGraph) String() string {
	var sb strings.Builder
	for _, b := range g.Blocks() {
		sb.WriteString(b.String())
	}
	for _, e := range g.Edges() {
		fmt.Fprintf(&sb, "edge %s\n", e)
	}
	return sb.String()
}
