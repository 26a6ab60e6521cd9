// Package lir is the low-level IR spec.md §4.E describes: a single flat
// node list, one per required self-composition copy, ready for direct
// SMT-LIB2 emission. Grounded on
// original_source/src/{lir/{node,program,validate}.rs,translator/mir_to_lir/mod.rs}.
package lir

import (
	"fmt"

	"specbmc/internal/expr"
)

type NodeKind int

const (
	NodeComment NodeKind = iota
	NodeLet
	NodeAssert
	NodeAssume
)

// Node is one LIR instruction. Comment carries NodeComment's text;
// Variable/Value carry a NodeLet's binding; Value alone carries an
// Assert/Assume's condition.
type Node struct {
	Kind     NodeKind
	Comment  string
	Variable *expr.Variable
	Value    *expr.Expr
}

func Comment(text string) *Node               { return &Node{Kind: NodeComment, Comment: text} }
func Let(v *expr.Variable, e *expr.Expr) *Node { return &Node{Kind: NodeLet, Variable: v, Value: e} }
func Assert(condition *expr.Expr) *Node        { return &Node{Kind: NodeAssert, Value: condition} }
func Assume(condition *expr.Expr) *Node        { return &Node{Kind: NodeAssume, Value: condition} }

func (n *Node) String() string {
	switch n.Kind {
	case NodeComment:
		return "; " + n.Comment
	case NodeLet:
		return fmt.Sprintf("%s = %s", n.Variable, n.Value)
	case NodeAssert:
		return fmt.Sprintf("assert %s", n.Value)
	case NodeAssume:
		return fmt.Sprintf("assume %s", n.Value)
	default:
		return "?"
	}
}

// Program is the fully-lowered, emission-ready node list: one or more
// self-composition copies of the original MIR, concatenated, followed by
// the self-composition equality constraints tying them together (§4.E).
type Program struct {
	Nodes []*Node
}

func NewProgram() *Program { return &Program{} }

func (p *Program) Append(n *Node) { p.Nodes = append(p.Nodes, n) }

func (p *Program) AppendComment(text string) { p.Append(Comment(text)) }

func (p *Program) AppendLet(v *expr.Variable, e *expr.Expr) { p.Append(Let(v, e)) }

func (p *Program) AppendAssert(condition *expr.Expr) { p.Append(Assert(condition)) }

func (p *Program) AppendAssume(condition *expr.Expr) { p.Append(Assume(condition)) }

func (p *Program) String() string {
	var out string
	for _, n := range p.Nodes {
		out += n.String() + "\n"
	}
	return out
}
