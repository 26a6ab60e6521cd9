package cex

import (
	"fmt"

	"specbmc/internal/expr"
)

// Effect is a concrete, model-evaluated side effect attached to a trace
// instruction: a cache fetch at a resolved address, or a resolved branch
// target/condition recorded for the Pattern History Table / Branch Target
// Buffer (effect.rs's Effect, with each operand now a concrete
// expr.Constant rather than a symbolic expr.Expr).
type Effect struct {
	CacheFetch      *CacheFetchEffect
	BranchTarget    *BranchTargetEffect
	BranchCondition *BranchConditionEffect
}

type CacheFetchEffect struct {
	Address expr.Constant
	Width   int
}

type BranchTargetEffect struct {
	Location expr.Constant
	Target   expr.Constant
}

type BranchConditionEffect struct {
	Location  expr.Constant
	Condition expr.Constant
}

func NewCacheFetchEffect(address expr.Constant, width int) Effect {
	return Effect{CacheFetch: &CacheFetchEffect{Address: address, Width: width}}
}

func NewBranchTargetEffect(location, target expr.Constant) Effect {
	return Effect{BranchTarget: &BranchTargetEffect{Location: location, Target: target}}
}

func NewBranchConditionEffect(location, condition expr.Constant) Effect {
	return Effect{BranchCondition: &BranchConditionEffect{Location: location, Condition: condition}}
}

func (e Effect) String() string {
	switch {
	case e.CacheFetch != nil:
		return fmt.Sprintf("cache_fetch(%s, %d)", e.CacheFetch.Address, e.CacheFetch.Width)
	case e.BranchTarget != nil:
		return fmt.Sprintf("branch_target(%s, %s)", e.BranchTarget.Location, e.BranchTarget.Target)
	case e.BranchCondition != nil:
		return fmt.Sprintf("branch_condition(%s, %s)", e.BranchCondition.Location, e.BranchCondition.Condition)
	default:
		return "?"
	}
}
