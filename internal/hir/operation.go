package hir

import (
	"fmt"

	"specbmc/internal/expr"
)

// OperationKind tags the variant held by an Operation (§4.C). A single
// tagged struct mirrors the Expr representation in internal/expr: the
// operand shapes vary per kind and are carried as exported fields, most of
// which are nil/zero for any given kind.
type OperationKind int

const (
	OpAssign OperationKind = iota
	OpStore
	OpLoad
	OpBranch
	OpConditionalBranch
	OpCall
	OpBarrier
	OpAssert
	OpAssume
	OpObservable
	OpIndistinguishable
)

func (k OperationKind) String() string {
	switch k {
	case OpAssign:
		return "assign"
	case OpStore:
		return "store"
	case OpLoad:
		return "load"
	case OpBranch:
		return "branch"
	case OpConditionalBranch:
		return "conditional_branch"
	case OpCall:
		return "call"
	case OpBarrier:
		return "barrier"
	case OpAssert:
		return "assert"
	case OpAssume:
		return "assume"
	case OpObservable:
		return "observable"
	case OpIndistinguishable:
		return "indistinguishable"
	default:
		return "?"
	}
}

// Operation is the payload of an Instruction (§4.C). Exactly one constructor
// below should be used to build a well-formed value for a given Kind.
type Operation struct {
	Kind OperationKind

	Variable *expr.Variable // Assign/Load: destination
	Expr     *expr.Expr     // Assign: value; Store/Load: address expr reused as Addr below

	NewMemory *expr.Variable // Store: memory after the write
	Memory    *expr.Variable // Store/Load: memory before the access
	Addr      *expr.Expr     // Store/Load: address
	Value     *expr.Expr     // Store: value written

	Target    *expr.Expr // Branch/ConditionalBranch: target
	Condition *expr.Expr // ConditionalBranch/Assert/Assume: condition

	Callee *string    // Call: target function name
	Args   []*expr.Expr
	Result *expr.Variable // Call: result variable, if any

	// Observed holds the expression an Observable/Indistinguishable operation
	// exposes to the attacker model (§4.C.5/§4.C.7) — a microarchitectural
	// component variable (Cache/BTB/PHT) or a derived expression over one.
	Observed *expr.Expr
}

func Assign(v *expr.Variable, e *expr.Expr) Operation {
	return Operation{Kind: OpAssign, Variable: v, Expr: e}
}

func Store(newMemory, memory *expr.Variable, addr, value *expr.Expr) Operation {
	return Operation{Kind: OpStore, NewMemory: newMemory, Memory: memory, Addr: addr, Value: value}
}

func Load(v *expr.Variable, memory *expr.Variable, addr *expr.Expr) Operation {
	return Operation{Kind: OpLoad, Variable: v, Memory: memory, Addr: addr}
}

func Branch(target *expr.Expr) Operation {
	return Operation{Kind: OpBranch, Target: target}
}

func ConditionalBranch(condition, target *expr.Expr) Operation {
	return Operation{Kind: OpConditionalBranch, Condition: condition, Target: target}
}

func Call(result *expr.Variable, callee string, args []*expr.Expr) Operation {
	return Operation{Kind: OpCall, Result: result, Callee: &callee, Args: args}
}

func Barrier() Operation { return Operation{Kind: OpBarrier} }

func Assert(condition *expr.Expr) Operation {
	return Operation{Kind: OpAssert, Condition: condition}
}

func Assume(condition *expr.Expr) Operation {
	return Operation{Kind: OpAssume, Condition: condition}
}

func Observable(observed *expr.Expr) Operation {
	return Operation{Kind: OpObservable, Observed: observed}
}

func Indistinguishable(observed *expr.Expr) Operation {
	return Operation{Kind: OpIndistinguishable, Observed: observed}
}

// VariablesRead returns the variables this Operation reads, in the order
// they appear in source syntax: base references first, then expression
// subtrees.
func (o Operation) VariablesRead() []*expr.Variable {
	switch o.Kind {
	case OpAssign:
		return o.Expr.Variables()
	case OpStore:
		vars := []*expr.Variable{o.Memory}
		vars = append(vars, o.Addr.Variables()...)
		vars = append(vars, o.Value.Variables()...)
		return vars
	case OpLoad:
		vars := []*expr.Variable{o.Memory}
		vars = append(vars, o.Addr.Variables()...)
		return vars
	case OpBranch:
		return o.Target.Variables()
	case OpConditionalBranch:
		vars := o.Condition.Variables()
		vars = append(vars, o.Target.Variables()...)
		return vars
	case OpCall:
		var vars []*expr.Variable
		for _, a := range o.Args {
			vars = append(vars, a.Variables()...)
		}
		return vars
	case OpAssert, OpAssume:
		return o.Condition.Variables()
	case OpObservable, OpIndistinguishable:
		return o.Observed.Variables()
	default:
		return nil
	}
}

// VariablesWritten returns the variables this Operation defines.
func (o Operation) VariablesWritten() []*expr.Variable {
	switch o.Kind {
	case OpAssign, OpLoad:
		return []*expr.Variable{o.Variable}
	case OpStore:
		return []*expr.Variable{o.NewMemory}
	case OpCall:
		if o.Result != nil {
			return []*expr.Variable{o.Result}
		}
		return nil
	default:
		return nil
	}
}

func (o Operation) String() string {
	switch o.Kind {
	case OpAssign:
		return fmt.Sprintf("%s = %s", o.Variable, o.Expr)
	case OpStore:
		return fmt.Sprintf("%s = store(%s, %s, %s)", o.NewMemory, o.Memory, o.Addr, o.Value)
	case OpLoad:
		return fmt.Sprintf("%s = load(%s, %s)", o.Variable, o.Memory, o.Addr)
	case OpBranch:
		return fmt.Sprintf("branch %s", o.Target)
	case OpConditionalBranch:
		return fmt.Sprintf("branch %s if %s", o.Target, o.Condition)
	case OpCall:
		if o.Result != nil {
			return fmt.Sprintf("%s = call %s(%v)", o.Result, *o.Callee, o.Args)
		}
		return fmt.Sprintf("call %s(%v)", *o.Callee, o.Args)
	case OpBarrier:
		return "barrier"
	case OpAssert:
		return fmt.Sprintf("assert %s", o.Condition)
	case OpAssume:
		return fmt.Sprintf("assume %s", o.Condition)
	case OpObservable:
		return fmt.Sprintf("observable %s", o.Observed)
	case OpIndistinguishable:
		return fmt.Sprintf("indistinguishable %s", o.Observed)
	default:
		return "?"
	}
}
