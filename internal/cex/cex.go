// Package cex reconstructs a human-readable counterexample from a solver
// model: an annotated copy of the program's control-flow graph recording,
// per composition, which blocks and edges executed and what each
// instruction's written variables and effects evaluated to (spec.md §4.G,
// "Counterexample reconstruction"). Grounded on
// original_source/src/cex/{mod,annotated_block,annotated_edge,
// annotated_instruction,block,cex_builder,control_flow_graph,effect}.rs.
package cex

// Composition names one of the two self-composition copies a property
// ranges over (§4.A, §4.E).
type Composition int

const (
	CompositionA Composition = 1
	CompositionB Composition = 2
)

func (c Composition) Number() int { return int(c) }

func (c Composition) String() string {
	switch c {
	case CompositionA:
		return "A"
	case CompositionB:
		return "B"
	default:
		return "?"
	}
}

var Compositions = []Composition{CompositionA, CompositionB}

// AnnotatedElement pairs a CFG element (an hir.Instruction, cex.Block, or
// hir.Edge) with a per-composition annotation, the generic shape every
// annotated CFG element in this package specializes (mod.rs's
// AnnotatedElement<Element, Annotation>). Annotation is held as a pointer
// so AnnotationMut can return a reference callers mutate in place.
type AnnotatedElement[Element any, Annotation any] struct {
	Element     Element
	annotations map[Composition]*Annotation
}

func NewAnnotatedElement[Element any, Annotation any](element Element) *AnnotatedElement[Element, Annotation] {
	return &AnnotatedElement[Element, Annotation]{Element: element, annotations: map[Composition]*Annotation{}}
}

// Annotation returns the recorded annotation for c, if any.
func (a *AnnotatedElement[Element, Annotation]) Annotation(c Composition) (*Annotation, bool) {
	v, ok := a.annotations[c]
	return v, ok
}

// AnnotationMut returns a mutable reference to c's annotation, allocating a
// zero-valued one on first use (mod.rs's `annotation_mut`, which relies on
// Annotation: Default — a Go struct's zero value already is that default).
func (a *AnnotatedElement[Element, Annotation]) AnnotationMut(c Composition) *Annotation {
	if v, ok := a.annotations[c]; ok {
		return v
	}
	v := new(Annotation)
	a.annotations[c] = v
	return v
}

// Annotations returns every recorded (composition, annotation) pair.
func (a *AnnotatedElement[Element, Annotation]) Annotations() map[Composition]*Annotation {
	return a.annotations
}
