package optimizer

import (
	"specbmc/internal/expr"
	"specbmc/internal/lir"
)

// CopyPropagation propagates every `x := v` binding (v a bare variable)
// into later uses of x, without removing the originating Let. Grounded on
// lir/optimization/copy_propagation.rs; requires SSA input, as the
// original documents.
type CopyPropagation struct{}

func (CopyPropagation) Name() string { return "Copy Propagation" }

func (CopyPropagation) Description() string {
	return "Propagates simple variable-to-variable assignments into their uses"
}

func (CopyPropagation) Apply(program *lir.Program) bool {
	copies := map[string]*expr.Expr{}
	for _, n := range program.Nodes {
		if n.Kind == lir.NodeLet && n.Value.Op == expr.OpVariable {
			copies[n.Variable.Identifier()] = n.Value
		}
	}
	if len(copies) == 0 {
		return false
	}
	resolveCopyChains(copies)

	changed := false
	for _, n := range program.Nodes {
		if n.Kind == lir.NodeComment {
			continue
		}
		replaced, ok := substitute(n.Value, copies)
		if ok {
			n.Value = replaced
			changed = true
		}
	}
	return changed
}

// resolveCopyChains collapses chains of copies (b=a; c=b => c=a) in place
// so a single substitute pass resolves every alias to its ultimate source,
// mirroring resolve_copies_of_copies in copy_propagation.rs. SSA
// definitions are acyclic (a use always post-dates its definition), so
// this always terminates.
func resolveCopyChains(copies map[string]*expr.Expr) {
	for {
		progressed := false
		for name, e := range copies {
			if e.Op != expr.OpVariable {
				continue
			}
			if src, ok := copies[e.Var.Identifier()]; ok && src != e {
				copies[name] = src
				progressed = true
			}
		}
		if !progressed {
			return
		}
	}
}
