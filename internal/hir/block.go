package hir

import (
	"fmt"
	"strings"

	"specbmc/internal/expr"
)

// Block is a sequence of Instructions with no internal branches (§4.C). It
// is identified by an index that is stable for its lifetime in a given
// ControlFlowGraph, assigned by the graph, never reused.
type Block struct {
	index               int
	nextInstructionIndex int
	instructions        []*Instruction
	phiNodes            []*PhiNode
	transient            bool // true once this block lies on a transient path (§4.C.3)
}

func newBlock(index int) *Block {
	return &Block{index: index}
}

func (b *Block) Index() int { return b.index }

func (b *Block) Instructions() []*Instruction { return b.instructions }

func (b *Block) PhiNodes() []*PhiNode { return b.phiNodes }

func (b *Block) IsEmpty() bool { return len(b.instructions) == 0 }

func (b *Block) IsTransient() bool  { return b.transient }
func (b *Block) SetTransient(t bool) { b.transient = t }

func (b *Block) InstructionCount() int { return len(b.instructions) }

// InstructionCountIgnoringPseudo counts only instructions that model real
// program behavior, excluding ghost instructions added by instrumentation
// passes (effect materialization, save/restore, unwinding guards). Used by
// transient-execution weaving to size the speculation window against real
// work only (§4.C.3).
func (b *Block) InstructionCountIgnoringPseudo() int {
	n := 0
	for _, inst := range b.instructions {
		if !inst.Pseudo {
			n++
		}
	}
	return n
}

func (b *Block) newInstructionIndex() int {
	i := b.nextInstructionIndex
	b.nextInstructionIndex++
	return i
}

func (b *Block) push(op Operation) *Instruction {
	inst := newInstruction(b.newInstructionIndex(), op)
	b.instructions = append(b.instructions, inst)
	return inst
}

func (b *Block) Assign(v *expr.Variable, e *expr.Expr) *Instruction {
	return b.push(Assign(v, e))
}

func (b *Block) Store(newMemory, memory *expr.Variable, addr, value *expr.Expr) *Instruction {
	return b.push(Store(newMemory, memory, addr, value))
}

func (b *Block) Load(v *expr.Variable, memory *expr.Variable, addr *expr.Expr) *Instruction {
	return b.push(Load(v, memory, addr))
}

func (b *Block) Branch(target *expr.Expr) *Instruction {
	return b.push(Branch(target))
}

func (b *Block) ConditionalBranch(condition, target *expr.Expr) *Instruction {
	return b.push(ConditionalBranch(condition, target))
}

func (b *Block) Call(result *expr.Variable, callee string, args []*expr.Expr) *Instruction {
	return b.push(Call(result, callee, args))
}

func (b *Block) Barrier() *Instruction {
	return b.push(Barrier())
}

func (b *Block) Assert(condition *expr.Expr) *Instruction {
	return b.push(Assert(condition))
}

func (b *Block) Assume(condition *expr.Expr) *Instruction {
	return b.push(Assume(condition))
}

func (b *Block) Observable(observed *expr.Expr) *Instruction {
	return b.push(Observable(observed))
}

func (b *Block) Indistinguishable(observed *expr.Expr) *Instruction {
	return b.push(Indistinguishable(observed))
}

// InsertInstructionAt inserts a new instruction for op at the given
// block-local position, shifting later instructions down (§4.C.5: observe
// instructions are threaded in after the fact, at positions computed from
// an earlier pass over the unmodified instruction list).
func (b *Block) InsertInstructionAt(position int, op Operation) *Instruction {
	return b.InsertBefore(position, op)
}

// AddPhiNode appends a phi node to this block.
func (b *Block) AddPhiNode(p *PhiNode) { b.phiNodes = append(b.phiNodes, p) }

// RemovePhiNode deletes and returns the phi node at the given index in
// PhiNodes(), used by phi elimination once a trivial phi is replaced by a
// plain assignment (§9).
func (b *Block) RemovePhiNode(index int) (*PhiNode, bool) {
	if index < 0 || index >= len(b.phiNodes) {
		return nil, false
	}
	p := b.phiNodes[index]
	b.phiNodes = append(b.phiNodes[:index], b.phiNodes[index+1:]...)
	return p, true
}

// Instruction returns the instruction with the given block-local index.
func (b *Block) Instruction(index int) (*Instruction, bool) {
	for _, inst := range b.instructions {
		if inst.Index == index {
			return inst, true
		}
	}
	return nil, false
}

// InsertBefore inserts a new instruction for op immediately before the
// instruction at the given position in program order, used by passes that
// materialize effects as real instructions ahead of the instruction that
// produced them (§4.C.6: a store's cache-fetch effect must read the cache
// before the store itself runs).
func (b *Block) InsertBefore(position int, op Operation) *Instruction {
	inst := newInstruction(b.newInstructionIndex(), op)
	b.instructions = append(b.instructions, nil)
	copy(b.instructions[position+1:], b.instructions[position:])
	b.instructions[position] = inst
	return inst
}

// RemoveInstruction deletes the instruction with the given index.
func (b *Block) RemoveInstruction(index int) bool {
	for i, inst := range b.instructions {
		if inst.Index == index {
			b.instructions = append(b.instructions[:i], b.instructions[i+1:]...)
			return true
		}
	}
	return false
}

// SplitOffInstructionsAt removes and returns every instruction at or after
// the given block-local position, for use by ControlFlowGraph.SplitBlockAt.
func (b *Block) splitOffInstructionsAt(position int) []*Instruction {
	tail := append([]*Instruction(nil), b.instructions[position:]...)
	b.instructions = b.instructions[:position]
	return tail
}

// setInstructions replaces this block's instructions wholesale (used when
// moving a split tail into a freshly created block).
func (b *Block) setInstructions(instructions []*Instruction) {
	b.instructions = instructions
}

// append copies another block's instructions onto the end of this one,
// renumbering them to this block's instruction-index sequence.
func (b *Block) append(other *Block) {
	for _, inst := range other.instructions {
		clone := *inst
		clone.Index = b.newInstructionIndex()
		b.instructions = append(b.instructions, &clone)
	}
}

// cloneWithIndex duplicates this block (including its instructions and phi
// nodes) under a new block index.
func (b *Block) cloneWithIndex(index int) *Block {
	clone := newBlock(index)
	clone.nextInstructionIndex = b.nextInstructionIndex
	clone.transient = b.transient
	clone.instructions = append(clone.instructions, b.instructions...)
	clone.phiNodes = append(clone.phiNodes, b.phiNodes...)
	return clone
}

func (b *Block) VariablesWritten() []*expr.Variable {
	var vars []*expr.Variable
	for _, p := range b.phiNodes {
		vars = append(vars, p.Out)
	}
	for _, inst := range b.instructions {
		vars = append(vars, inst.VariablesWritten()...)
	}
	return vars
}

func (b *Block) VariablesRead() []*expr.Variable {
	var vars []*expr.Variable
	for _, p := range b.phiNodes {
		for _, v := range p.Incoming {
			vars = append(vars, v)
		}
	}
	for _, inst := range b.instructions {
		vars = append(vars, inst.VariablesRead()...)
	}
	return vars
}

func (b *Block) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[ Block: %X ]", b.index)
	if b.transient {
		sb.WriteString(" (transient)")
	}
	sb.WriteString("\n")
	for _, p := range b.phiNodes {
		fmt.Fprintf(&sb, "%s\n", p)
	}
	for _, inst := range b.instructions {
		fmt.Fprintf(&sb, "%s\n", inst)
	}
	return sb.String()
}
