package hir

import (
	"fmt"

	"specbmc/internal/expr"
)

// EffectKind distinguishes the instrumentation effects instructions can carry
// (§4.C.2, §4.C.6). CacheFetch is attached by the instruction-effects pass to
// every memory access; BranchTarget/BranchCondition are attached to branches
// before transient-execution weaving consumes them.
type EffectKind int

const (
	CacheFetchEffect EffectKind = iota
	BranchTargetEffect
	BranchConditionEffect
)

func (k EffectKind) String() string {
	switch k {
	case CacheFetchEffect:
		return "cache_fetch"
	case BranchTargetEffect:
		return "branch_target"
	case BranchConditionEffect:
		return "branch_condition"
	default:
		return "?"
	}
}

// Effect records a side effect an instruction has beyond its Operation:
// Cache/BTB/PHT state transitions that a later pass (transient weaving, the
// self-composition lowering) needs to observe explicitly.
type Effect struct {
	Kind      EffectKind
	NewState  *expr.Variable // the updated Cache/BTB/PHT variable
	State     *expr.Variable // the prior Cache/BTB/PHT variable
	Address   *expr.Expr     // CacheFetch: accessed address
	Width     int            // CacheFetch: access width in bits
	Location  *expr.Expr     // BranchTarget/BranchCondition: instruction address
	Target    *expr.Expr     // BranchTarget: branch target expression
	Condition *expr.Expr     // BranchCondition: branch condition expression
	Guard     *expr.Expr     // set when the effect only applies along one path of a conditional branch
}

func CacheFetch(newCache, cache *expr.Variable, address *expr.Expr) Effect {
	return Effect{Kind: CacheFetchEffect, NewState: newCache, State: cache, Address: address}
}

// CacheFetchEffectOf builds a CacheFetch effect from the address and access
// width alone; the Cache state variables are materialized when the effect
// is made explicit (§4.C.6), since before that pass there is nothing for
// them to version against yet.
func CacheFetchEffectOf(address *expr.Expr, width int) Effect {
	return Effect{Kind: CacheFetchEffect, Address: address, Width: width}
}

func BranchTarget(location, target *expr.Expr) Effect {
	return Effect{Kind: BranchTargetEffect, Location: location, Target: target}
}

func BranchCondition(location, condition *expr.Expr) Effect {
	return Effect{Kind: BranchConditionEffect, Location: location, Condition: condition}
}

// Guarded restricts the effect to apply only when cond holds, used when a
// conditional branch's target/condition effect must not fire along the
// not-taken path.
func (e Effect) Guarded(cond *expr.Expr) Effect {
	e.Guard = cond
	return e
}

func (e Effect) VariablesRead() []*expr.Variable {
	var vars []*expr.Variable
	switch e.Kind {
	case CacheFetchEffect:
		if e.State != nil {
			vars = append(vars, e.State)
		}
		vars = append(vars, e.Address.Variables()...)
	case BranchTargetEffect:
		vars = append(vars, e.Target.Variables()...)
	case BranchConditionEffect:
		vars = append(vars, e.Condition.Variables()...)
	}
	if e.Guard != nil {
		vars = append(vars, e.Guard.Variables()...)
	}
	return vars
}

func (e Effect) VariablesWritten() []*expr.Variable {
	if e.Kind == CacheFetchEffect && e.NewState != nil {
		return []*expr.Variable{e.NewState}
	}
	return nil
}

func (e Effect) String() string {
	switch e.Kind {
	case CacheFetchEffect:
		if e.NewState == nil {
			return fmt.Sprintf("cache_fetch(%s, width=%d)", e.Address, e.Width)
		}
		return fmt.Sprintf("%s = cache_fetch(%s, %s)", e.NewState, e.State, e.Address)
	case BranchTargetEffect:
		return fmt.Sprintf("target = %s", e.Target)
	case BranchConditionEffect:
		return fmt.Sprintf("condition = %s", e.Condition)
	default:
		return "?"
	}
}
