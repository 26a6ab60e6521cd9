// Package environment holds the small enums and sizing constants shared
// across the pipeline's configuration surface: the HIR transient-execution
// weaving pass, the solver driver, and (§4.F) the YAML environment loader.
// Grounded on the original implementation's environment module.
package environment

// SpeculationWindowSize is the bit width of the symbolic _spec_win counter
// each transient entry point declares (§4.C.3).
const SpeculationWindowSize = 8

// WordSize is the bit width of addresses and registers throughout the
// model (mirrors expr.WordWidth; kept here too since the original
// implementation's environment module is this constant's canonical home).
const WordSize = 64

// MaxSpeculationWindow is the exclusive upper bound on the speculation
// window: the symbolic _spec_win counter is signed and initialized to a
// strictly positive value, so the largest window it can represent without
// overflow is MaxSpeculationWindow-1.
const MaxSpeculationWindow = 1 << (SpeculationWindowSize - 1)

// PredictorStrategy selects how a mispredicted conditional branch's
// transient successor is chosen (§4.C.3).
type PredictorStrategy int

const (
	// ChoosePath asks an uninterpreted oracle which direction is taken.
	ChoosePath PredictorStrategy = iota
	// InvertCondition assumes the branch predictor always mispredicts by
	// taking the logically negated condition.
	InvertCondition
)

func (s PredictorStrategy) String() string {
	switch s {
	case ChoosePath:
		return "choose_path"
	case InvertCondition:
		return "invert_condition"
	default:
		return "?"
	}
}

// UnwindingGuard controls how a removed loop back edge / unwinding bound is
// enforced once it can no longer be expressed structurally (§4.C.1).
type UnwindingGuard int

const (
	UnwindingAssumption UnwindingGuard = iota
	UnwindingAssertion
)

func (g UnwindingGuard) String() string {
	if g == UnwindingAssertion {
		return "assertion"
	}
	return "assumption"
}

// Check selects which executions' leaks are reported (§4.F).
type Check int

const (
	OnlyTransientExecutionLeaks Check = iota
	OnlyNormalExecutionLeaks
	AllLeaks
)

func (c Check) String() string {
	switch c {
	case OnlyTransientExecutionLeaks:
		return "only_transient_leaks"
	case OnlyNormalExecutionLeaks:
		return "only_normal_leaks"
	case AllLeaks:
		return "all_leaks"
	default:
		return "?"
	}
}

// Solver selects the SMT-LIB2 backend the solver driver invokes (§4.E).
type Solver int

const (
	Z3 Solver = iota
	CVC4
	Yices2
)

func (s Solver) String() string {
	switch s {
	case Z3:
		return "z3"
	case CVC4:
		return "cvc4"
	case Yices2:
		return "yices2"
	default:
		return "?"
	}
}

// BasePointerName and StackPointerName are the register variable names
// initial-stack setup havocs and constrains (§4.C.4).
const (
	BasePointerName  = "rbp"
	StackPointerName = "rsp"
)

// SecurityLevel classifies a variable, register, or memory address as
// attacker-visible (Low) or secret (High) for a security policy (§4.F).
type SecurityLevel int

const (
	SecurityLow SecurityLevel = iota
	SecurityHigh
)

func (l SecurityLevel) String() string {
	if l == SecurityLow {
		return "low"
	}
	return "high"
}

// OptimizationLevel selects how many optimization repetitions the HIR/MIR
// pipeline runs (§4.D).
type OptimizationLevel int

const (
	OptimizationDisabled OptimizationLevel = iota
	OptimizationBasic
	OptimizationFull
)

func (l OptimizationLevel) String() string {
	switch l {
	case OptimizationDisabled:
		return "none"
	case OptimizationBasic:
		return "basic"
	case OptimizationFull:
		return "full"
	default:
		return "?"
	}
}

// Repetitions returns the optimizer's fixed-point repetition bound for l
// (§4.F): none runs the pipeline zero times, basic 3, full 5.
func (l OptimizationLevel) Repetitions() int {
	switch l {
	case OptimizationBasic:
		return 3
	case OptimizationFull:
		return 5
	default:
		return 0
	}
}

// Architecture selects which rollback-persistent microarchitectural
// components the model includes and how wide the speculation window is
// (§6 "architecture.*").
type Architecture struct {
	Cache             bool
	BTB               bool
	PHT               bool
	SpeculationWindow int
}

// DefaultArchitecture matches §6's defaults: all three components modeled,
// a speculation window of 10 (well under MaxSpeculationWindow).
func DefaultArchitecture() Architecture {
	return Architecture{Cache: true, BTB: true, PHT: true, SpeculationWindow: 10}
}

// Analysis selects which leak classes are modeled and how transient
// execution is approximated (§6 "analysis.*").
type Analysis struct {
	SpectrePHT bool
	SpectreSTL bool

	Check             Check
	PredictorStrategy PredictorStrategy
	Unwind            int
	UnwindingGuard    UnwindingGuard

	// TraceObservations additively enables the supplemented program-counter
	// observation mode (§9 "trace_observations"): the address of every
	// load/store and the target of every branch is observed, on top of the
	// default effect/join-driven placement, which still runs. It does not
	// replace Check; both can be set together.
	TraceObservations bool
}

// DefaultAnalysis matches §6's defaults.
func DefaultAnalysis() Analysis {
	return Analysis{
		SpectrePHT:        true,
		SpectreSTL:        false,
		Check:             OnlyTransientExecutionLeaks,
		PredictorStrategy: ChoosePath,
		Unwind:            0,
		UnwindingGuard:    UnwindingAssumption,
	}
}

// SecurityPolicy classifies registers and memory addresses as attacker-
// visible (Low, observable and thus safe to leak) or secret (High,
// protected) (§6 "policy.*").
type SecurityPolicy struct {
	RegistersDefault SecurityLevel
	MemoryDefault    SecurityLevel
	LowRegisters     []string
	HighRegisters    []string
	LowAddresses     []uint64
	HighAddresses    []uint64
}

// DefaultSecurityPolicy leaves everything at the conservative default: all
// registers low (attacker-controlled inputs), all memory high (secret),
// matching InitMemory's own default (§4.C.4).
func DefaultSecurityPolicy() SecurityPolicy {
	return SecurityPolicy{RegistersDefault: SecurityLow, MemoryDefault: SecurityHigh}
}

// Environment is the fully-resolved configuration the pipeline runs with,
// the in-memory form of the YAML environment file (§6). internal/config
// produces one of these from a file; cmd/specbmc applies CLI flag
// overrides on top of it.
type Environment struct {
	Optimization OptimizationLevel
	Solver       Solver
	Analysis     Analysis
	Architecture Architecture
	Policy       SecurityPolicy
	Debug        bool
}

// Default returns the environment every key in §6 defaults to absent an
// environment file or CLI override.
func Default() Environment {
	return Environment{
		Optimization: OptimizationFull,
		Solver:       Z3,
		Analysis:     DefaultAnalysis(),
		Architecture: DefaultArchitecture(),
		Policy:       DefaultSecurityPolicy(),
	}
}
