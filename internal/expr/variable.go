package expr

// Label marks a Variable with instrumentation metadata (§3).
type Label int

const (
	// RollbackPersistent marks a variable that survives speculative
	// rollback. Cache/BTB/PHT-sorted variables are implicitly persistent
	// (see IsRollbackPersistent); this label additionally tags other
	// variables an analysis wants to treat the same way.
	RollbackPersistent Label = iota
	// Pseudo marks a ghost instruction's output: instrumentation, not a
	// modeled instruction. Pseudo variables are not counted toward the
	// speculation window and are elided from counterexample rendering.
	Pseudo
)

// Variable is (name, sort, ssa_version, composition, labels) per §3.
type Variable struct {
	Name        string
	VarSort     Sort
	SSAVersion  *int
	Composition *int
	Labels      map[Label]bool
}

// NewVariable creates an unversioned, uncomposed variable with no labels.
func NewVariable(name string, sort Sort) *Variable {
	return &Variable{Name: name, VarSort: sort, Labels: map[Label]bool{}}
}

func (v *Variable) HasLabel(l Label) bool { return v.Labels != nil && v.Labels[l] }

func (v *Variable) WithLabel(l Label) *Variable {
	c := v.Clone()
	if c.Labels == nil {
		c.Labels = map[Label]bool{}
	}
	c.Labels[l] = true
	return c
}

// IsRollbackPersistent reports whether v survives speculative rollback: its
// sort is Cache/BTB/PHT, or it is explicitly tagged (§3).
func (v *Variable) IsRollbackPersistent() bool {
	switch v.VarSort.Kind() {
	case Cache, BranchTargetBuffer, PatternHistoryTable:
		return true
	default:
		return v.HasLabel(RollbackPersistent)
	}
}

// Composable reports whether self_compose should stamp this variable's sort
// with a composition index. Predictor-sorted variables are shared across
// compositions — the adversary schedules both executions in lockstep
// (§4.A, DESIGN NOTES §9 "oracle sharing across compositions").
func (v *Variable) Composable() bool { return v.VarSort.Kind() != Predictor }

// Identifier is the variable's SMT-LIB/debug-rendering name: name, then an
// optional ".<version>" suffix, then an optional "@<composition>" suffix.
func (v *Variable) Identifier() string {
	id := v.Name
	if v.SSAVersion != nil {
		id += "." + itoa(*v.SSAVersion)
	}
	if v.Composition != nil {
		id += "@" + itoa(*v.Composition)
	}
	return id
}

func (v *Variable) String() string { return v.Identifier() + ":" + v.VarSort.String() }

// Clone returns a deep-enough copy: safe to mutate Labels/SSAVersion/
// Composition on the clone without affecting v.
func (v *Variable) Clone() *Variable {
	c := &Variable{Name: v.Name, VarSort: v.VarSort}
	if v.SSAVersion != nil {
		ver := *v.SSAVersion
		c.SSAVersion = &ver
	}
	if v.Composition != nil {
		comp := *v.Composition
		c.Composition = &comp
	}
	c.Labels = make(map[Label]bool, len(v.Labels))
	for k, val := range v.Labels {
		c.Labels[k] = val
	}
	return c
}

// WithVersion returns a clone stamped with the given SSA version.
func (v *Variable) WithVersion(version int) *Variable {
	c := v.Clone()
	c.SSAVersion = &version
	return c
}

// WithComposition returns a clone stamped with the given composition index
// (1 or 2), unless the variable is non-composable (Predictor-sorted), in
// which case it is returned unchanged.
func (v *Variable) WithComposition(composition int) *Variable {
	if !v.Composable() {
		return v
	}
	c := v.Clone()
	c.Composition = &composition
	return c
}
