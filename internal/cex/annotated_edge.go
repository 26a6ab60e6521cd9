package cex

import "specbmc/internal/hir"

// EdgeAnnotation records whether an Edge executed in a given composition
// (annotated_edge.rs's Annotation).
type EdgeAnnotation struct {
	Executed bool
}

func (a *EdgeAnnotation) MarkAsExecuted() { a.Executed = true }

// AnnotatedEdge is an hir.Edge together with its per-composition
// EdgeAnnotation.
type AnnotatedEdge struct {
	*AnnotatedElement[*hir.Edge, EdgeAnnotation]
}

func newAnnotatedEdge(e *hir.Edge) *AnnotatedEdge {
	return &AnnotatedEdge{NewAnnotatedElement[*hir.Edge, EdgeAnnotation](e)}
}

func (a *AnnotatedEdge) Edge() *hir.Edge { return a.Element }

// Executed reports whether this edge executed in any composition.
func (a *AnnotatedEdge) Executed() bool {
	for _, c := range Compositions {
		if annotation, ok := a.Annotation(c); ok && annotation.Executed {
			return true
		}
	}
	return false
}

func (a *AnnotatedEdge) String() string { return a.Edge().String() }
