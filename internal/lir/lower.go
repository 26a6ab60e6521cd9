package lir

import (
	"fmt"
	"sort"

	"specbmc/internal/expr"
	"specbmc/internal/mir"
)

// Lower translates a MIR Program into LIR: one self-composed copy per
// required composition, followed by the self-composition equality
// constraints those compositions exist to express (§4.E). Grounded on
// original_source/src/translator/mir_to_lir/mod.rs's translate_into.
func Lower(program *mir.Program) (*Program, error) {
	out := NewProgram()

	for _, composition := range requiredCompositions(program) {
		if err := lowerComposition(out, program, composition); err != nil {
			return nil, err
		}
	}

	if err := lowerSelfCompositionConstraints(out, program); err != nil {
		return nil, err
	}

	return out, nil
}

// requiredCompositions scans every SelfComp* node for the composition
// indices it references. A program with no self-composition operators
// (no observations modeled, degenerate case) still needs exactly one
// plain copy, matching the original's explicit fallback.
func requiredCompositions(program *mir.Program) []int {
	set := map[int]bool{}
	for _, index := range program.Order {
		block := program.Blocks[index]
		for _, node := range block.Nodes {
			if node.Kind == mir.NodeSelfCompAssertEqual || node.Kind == mir.NodeSelfCompAssumeEqual {
				for _, c := range node.Compositions {
					set[c] = true
				}
			}
		}
	}
	if len(set) == 0 {
		return []int{1}
	}
	out := make([]int, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Ints(out)
	return out
}

func lowerComposition(out *Program, program *mir.Program, composition int) error {
	for _, index := range program.Order {
		block := program.Blocks[index]
		if err := lowerBlockComposition(out, block, composition); err != nil {
			return err
		}
	}
	return nil
}

func lowerBlockComposition(out *Program, block *mir.Block, composition int) error {
	out.AppendComment(fmt.Sprintf("Block 0x%X@%d", block.Index, composition))

	execVar := mir.ExecutionConditionVariable(block.Index).WithComposition(composition)
	out.AppendLet(execVar, expr.SelfCompose(block.ExecutionCondition, composition))

	for _, node := range block.Nodes {
		switch node.Kind {
		case mir.NodeLet:
			out.AppendLet(node.Variable.WithComposition(composition), expr.SelfCompose(node.Value, composition))

		case mir.NodeAssert:
			guarded, err := expr.Implies(expr.VariableExpr(execVar), expr.SelfCompose(node.Value, composition))
			if err != nil {
				return err
			}
			out.AppendAssert(guarded)

		case mir.NodeAssume:
			guarded, err := expr.Implies(expr.VariableExpr(execVar), expr.SelfCompose(node.Value, composition))
			if err != nil {
				return err
			}
			out.AppendAssume(guarded)

		case mir.NodeSelfCompAssertEqual, mir.NodeSelfCompAssumeEqual:
			// Emitted once, globally, by lowerSelfCompositionConstraints below —
			// not per-composition-copy, since the constraint spans compositions.
		}
	}
	return nil
}

// lowerSelfCompositionConstraints emits the cross-composition equality
// constraints a SelfCompAssertEqual/SelfCompAssumeEqual node describes,
// guarded by the conjunction of the referenced compositions' execution
// conditions (§4.E's "(=> (and c@1 c@2) (= x@1 x@2))" shape).
func lowerSelfCompositionConstraints(out *Program, program *mir.Program) error {
	out.AppendComment("Self-Composition Constraints")

	for _, index := range program.Order {
		block := program.Blocks[index]
		for _, node := range block.Nodes {
			switch node.Kind {
			case mir.NodeSelfCompAssertEqual:
				constraint, err := selfCompositionEqualityConstraint(block.Index, node.Compositions, node.Value)
				if err != nil {
					return err
				}
				out.AppendAssert(constraint)

			case mir.NodeSelfCompAssumeEqual:
				constraint, err := selfCompositionEqualityConstraint(block.Index, node.Compositions, node.Value)
				if err != nil {
					return err
				}
				out.AppendAssume(constraint)
			}
		}
	}
	return nil
}

func selfCompositionEqualityConstraint(blockIndex int, compositions []int, e *expr.Expr) (*expr.Expr, error) {
	execVar := mir.ExecutionConditionVariable(blockIndex)

	var executedTerms []*expr.Expr
	var valueTerms []*expr.Expr
	for _, c := range compositions {
		executedTerms = append(executedTerms, expr.VariableExpr(execVar.WithComposition(c)))
		valueTerms = append(valueTerms, expr.SelfCompose(e, c))
	}

	executed, err := expr.Conjunction(executedTerms)
	if err != nil {
		return nil, err
	}
	equal, err := allEqual(valueTerms)
	if err != nil {
		return nil, err
	}
	return expr.Implies(executed, equal)
}

// allEqual builds the conjunction of pairwise equalities over consecutive
// terms, equivalent to the original's Expression::all_equal for N >= 2
// terms (the only case self-composition ever produces, since a
// composition list always names at least 2 copies).
func allEqual(terms []*expr.Expr) (*expr.Expr, error) {
	var pairs []*expr.Expr
	for i := 1; i < len(terms); i++ {
		eq, err := expr.Equal(terms[i-1], terms[i])
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, eq)
	}
	return expr.Conjunction(pairs)
}
