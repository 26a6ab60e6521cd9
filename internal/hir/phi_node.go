package hir

import (
	"fmt"
	"sort"
	"strings"

	"specbmc/internal/expr"
)

// PhiNode represents a phi node placed by SSA construction at a join point
// (§4.C.8). Transient-edge incoming values are omitted for non-rollback-
// persistent variables: a transient execution never survives to the join, so
// there is nothing to merge from that edge.
type PhiNode struct {
	Out      *expr.Variable
	Incoming map[int]*expr.Variable // predecessor block index -> incoming variable
}

func NewPhiNode(out *expr.Variable) *PhiNode {
	return &PhiNode{Out: out, Incoming: map[int]*expr.Variable{}}
}

func (p *PhiNode) AddIncoming(blockIndex int, v *expr.Variable) {
	p.Incoming[blockIndex] = v
}

func (p *PhiNode) IncomingVariable(blockIndex int) (*expr.Variable, bool) {
	v, ok := p.Incoming[blockIndex]
	return v, ok
}

// IsTrivial reports whether every incoming value is the same variable (or
// there is exactly one predecessor): such a phi contributes nothing and is
// removed by the phi-elimination pass.
func (p *PhiNode) IsTrivial() bool {
	var only *expr.Variable
	for _, v := range p.Incoming {
		if only == nil {
			only = v
			continue
		}
		if only.Identifier() != v.Identifier() {
			return false
		}
	}
	return true
}

// AnyIncoming returns one incoming variable (the lowest-indexed
// predecessor's), used once IsTrivial has established they are all the
// same.
func (p *PhiNode) AnyIncoming() *expr.Variable {
	preds := p.predecessorsSorted()
	if len(preds) == 0 {
		return nil
	}
	return p.Incoming[preds[0]]
}

func (p *PhiNode) predecessorsSorted() []int {
	keys := make([]int, 0, len(p.Incoming))
	for k := range p.Incoming {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func (p *PhiNode) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s = phi", p.Out)
	for _, block := range p.predecessorsSorted() {
		fmt.Fprintf(&sb, " [%s, %X]", p.Incoming[block], block)
	}
	return sb.String()
}
