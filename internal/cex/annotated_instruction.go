package cex

import (
	"fmt"
	"strings"

	"specbmc/internal/expr"
	"specbmc/internal/hir"
)

// VariableAssignment records one variable's resolved model value along a
// trace (annotated_instruction.rs's Annotation.assignments entries).
type VariableAssignment struct {
	Variable *expr.Variable
	Value    expr.Constant
}

// InstructionAnnotation is the per-composition payload attached to a trace
// instruction: every written variable's model value, plus every effect the
// instruction fired, both recorded only for the compositions in which the
// instruction actually executed (annotated_instruction.rs's Annotation).
type InstructionAnnotation struct {
	Assignments []VariableAssignment
	Effects     []Effect
}

func (a *InstructionAnnotation) AddAssignment(v *expr.Variable, value expr.Constant) {
	a.Assignments = append(a.Assignments, VariableAssignment{Variable: v, Value: value})
}

func (a *InstructionAnnotation) AddEffect(e Effect) {
	a.Effects = append(a.Effects, e)
}

// AnnotatedInstruction is an hir.Instruction together with its per-
// composition InstructionAnnotation.
type AnnotatedInstruction struct {
	*AnnotatedElement[*hir.Instruction, InstructionAnnotation]
}

func NewAnnotatedInstruction(inst *hir.Instruction) *AnnotatedInstruction {
	return &AnnotatedInstruction{NewAnnotatedElement[*hir.Instruction, InstructionAnnotation](inst)}
}

func (a *AnnotatedInstruction) Instruction() *hir.Instruction { return a.Element }

func (a *AnnotatedInstruction) String() string {
	var b strings.Builder
	fmt.Fprintln(&b, a.Instruction())
	for _, c := range Compositions {
		annotation, ok := a.Annotation(c)
		if !ok {
			continue
		}
		for _, assignment := range annotation.Assignments {
			fmt.Fprintf(&b, "$%s %s = %s\n", c, assignment.Variable, assignment.Value)
		}
		for _, effect := range annotation.Effects {
			fmt.Fprintf(&b, "#%s %s\n", c, effect)
		}
	}
	return b.String()
}
