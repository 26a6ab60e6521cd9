// Package solver drives an external SMT-LIB2 solver process over stdin/
// stdout, encoding a lir.Program and checking its assertions (§4.F/§4.G).
// Grounded on original_source/src/solver/{mod,rsmt}.rs, which drive Z3/
// CVC4/Yices2 through the rsmt2 crate's interactive session API; no Go
// library in the example pack wraps an SMT solver, so the same interactive
// protocol is reproduced directly over os/exec + stdin/stdout text, the
// natural Go equivalent of rsmt2's own subprocess-plus-pipe design.
package solver

import (
	"specbmc/internal/environment"
	"specbmc/internal/expr"
	"specbmc/internal/lir"
)

// Model answers queries about a satisfying assignment found by the solver
// (§4.G).
type Model interface {
	GetInterpretation(v *expr.Variable) (*expr.Expr, bool)
	Evaluate(e *expr.Expr) (*expr.Expr, bool)
}

// CheckResult is the outcome of CheckAssertions: either every assertion
// held under every assumption, or at least one was violated, in which case
// Model describes a concrete counterexample assignment.
type CheckResult struct {
	Holds bool
	Model Model
}

// AssertionCheck encodes a program and checks whether its assertions can
// be violated (§4.F): the solver is asked whether "some assertion is
// false" is satisfiable, with assumptions asserted directly and
// assertions each bound to a named Boolean first so a single
// `(assert (not (and a0 a1 ...)))` captures "any assertion fails".
type AssertionCheck interface {
	EncodeProgram(program *lir.Program) error
	CheckAssertions() (CheckResult, error)
}

// DumpFormula writes the solver session's encoded formula to path, for
// debugging a run without re-invoking the pipeline (§6 "--dump-formula").
type DumpFormula interface {
	DumpFormulaToFile(path string) error
}

type Solver interface {
	AssertionCheck
	DumpFormula
	Close() error
}

// New spawns the solver binary env.Solver names and returns a driven
// session ready for EncodeProgram.
func New(env environment.Environment) (Solver, error) {
	return newDriver(env.Solver)
}
