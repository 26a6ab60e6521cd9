// Package mir is the mid-level IR spec.md §4.D describes: flat per-block
// node lists plus an explicit execution_condition per block, lowered from
// HIR once the HIR transformation pipeline has run to completion (transient
// weaving, SSA, explicit effects, and the rest of §4.C).
package mir

import "specbmc/internal/expr"

// NodeKind tags the variant a Node holds, mirroring the single-tagged-struct
// convention of hir.Operation and expr.Expr (DESIGN NOTES §9 "variant
// expressions").
type NodeKind int

const (
	NodeLet NodeKind = iota
	NodeAssert
	NodeAssume
	NodeSelfCompAssertEqual
	NodeSelfCompAssumeEqual
)

func (k NodeKind) String() string {
	switch k {
	case NodeLet:
		return "let"
	case NodeAssert:
		return "assert"
	case NodeAssume:
		return "assume"
	case NodeSelfCompAssertEqual:
		return "self_comp_assert_equal"
	case NodeSelfCompAssumeEqual:
		return "self_comp_assume_equal"
	default:
		return "?"
	}
}

// Node is one MIR instruction (§4.D). Variable/Value carry a NodeLet's
// binding; Value alone carries an Assert/Assume's condition;
// Compositions/Value carry a self-composition constraint's composition set
// and compared expression.
type Node struct {
	Kind         NodeKind
	Variable     *expr.Variable
	Value        *expr.Expr
	Compositions []int
	Pseudo       bool
}

func Let(v *expr.Variable, value *expr.Expr) *Node {
	return &Node{Kind: NodeLet, Variable: v, Value: value}
}

func Assert(condition *expr.Expr) *Node { return &Node{Kind: NodeAssert, Value: condition} }

func Assume(condition *expr.Expr) *Node { return &Node{Kind: NodeAssume, Value: condition} }

func SelfCompAssertEqual(compositions []int, e *expr.Expr) *Node {
	return &Node{Kind: NodeSelfCompAssertEqual, Compositions: compositions, Value: e}
}

func SelfCompAssumeEqual(compositions []int, e *expr.Expr) *Node {
	return &Node{Kind: NodeSelfCompAssumeEqual, Compositions: compositions, Value: e}
}

// Block is one MIR block: an execution_condition (§4.D's reachability
// predicate) plus the lowered node sequence.
type Block struct {
	Index              int
	ExecutionCondition *expr.Expr
	Nodes              []*Node
}

// Program is the lowered MIR, one Block per surviving HIR block, addressed
// by the same indices the HIR control flow graph used (so counterexample
// reconstruction, which walks the original HIR CFG, can cross-reference a
// MIR/LIR variable back to its source block).
type Program struct {
	Blocks map[int]*Block
	Order  []int
	Entry  int
}

func (p *Program) Block(index int) (*Block, bool) {
	b, ok := p.Blocks[index]
	return b, ok
}
