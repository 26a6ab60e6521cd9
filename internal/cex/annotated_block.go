package cex

import (
	"fmt"
	"strings"

	"specbmc/internal/hir"
)

// Block is a trace-ready copy of an hir.Block: its non-pseudo instructions
// wrapped for annotation, plus whether it belongs to transient execution
// (block.rs's Block, built `From<&hir::Block>`).
type Block struct {
	Index        int
	Instructions []*AnnotatedInstruction
	Transient    bool
}

// newCexBlock converts an hir.Block into a trace Block, skipping pseudo
// instructions — instrumentation added by earlier passes, not modeled code
// the counterexample should present (block.rs's `From<&hir::Block>`).
func newCexBlock(b *hir.Block) *Block {
	cb := &Block{Index: b.Index(), Transient: b.IsTransient()}
	for _, inst := range b.Instructions() {
		if inst.Pseudo {
			continue
		}
		cb.Instructions = append(cb.Instructions, NewAnnotatedInstruction(inst))
	}
	return cb
}

// BlockAnnotation records whether a Block executed in a given composition
// (annotated_block.rs's Annotation).
type BlockAnnotation struct {
	Executed bool
}

func (a *BlockAnnotation) MarkAsExecuted() { a.Executed = true }

// AnnotatedBlock is a Block together with its per-composition
// BlockAnnotation.
type AnnotatedBlock struct {
	*AnnotatedElement[*Block, BlockAnnotation]
}

func newAnnotatedBlock(b *hir.Block) *AnnotatedBlock {
	return &AnnotatedBlock{NewAnnotatedElement[*Block, BlockAnnotation](newCexBlock(b))}
}

func (a *AnnotatedBlock) Block() *Block { return a.Element }

// Executed reports whether this block executed in any composition.
func (a *AnnotatedBlock) Executed() bool {
	for _, c := range Compositions {
		if annotation, ok := a.Annotation(c); ok && annotation.Executed {
			return true
		}
	}
	return false
}

func (a *AnnotatedBlock) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[ Block: 0x%X", a.Block().Index)
	if a.Block().Transient {
		b.WriteString(", Transient")
	}
	b.WriteString(" ]\n")
	for _, inst := range a.Block().Instructions {
		fmt.Fprint(&b, inst)
	}
	return b.String()
}
