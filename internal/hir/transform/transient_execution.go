package transform

import (
	"fmt"
	"sort"

	"specbmc/internal/environment"
	perr "specbmc/internal/errors"
	"specbmc/internal/expr"
	"specbmc/internal/hir"
)

// instructionRef locates a single instruction by (block, instruction)
// index, stable enough to identify the same instruction across the
// default/transient CFG clones built from the same source graph, since
// neither clone has been mutated yet when the reference is taken.
type instructionRef struct {
	block   int
	index   int
	address uint64
}

func (r instructionRef) less(o instructionRef) bool {
	if r.block != o.block {
		return r.block < o.block
	}
	if r.index != o.index {
		return r.index < o.index
	}
	return r.address < o.address
}

func addressOf(inst *hir.Instruction) uint64 {
	if inst.Address == nil {
		return 0
	}
	return *inst.Address
}

type startRollback struct {
	start    int
	rollback int
}

// TransientExecution weaves speculative-execution behavior into the
// control flow graph (§4.C.3). A bounded copy of the program's transient
// behavior — the "transient CFG" — is spliced into the "default CFG" at
// every instruction that can be speculated past: a conditional branch
// that can be mispredicted (Spectre-PHT) or a store that can be
// speculatively bypassed (Spectre-STL), each guarded by the uninterpreted
// Predictor oracle. Grounded on the original implementation's
// TransientExecution transform.
type TransientExecution struct {
	SpectrePHT bool
	SpectreSTL bool

	// STLIgnoredVariables names variables whose presence in a store address
	// alone does not warrant STL speculation for that store (an address
	// built only from these variables skips the bypass encoding).
	STLIgnoredVariables map[string]bool

	PredictorStrategy environment.PredictorStrategy
	SpeculationWindow int

	// IntermediateResolve allows transient execution to stop at any
	// effectful instruction, not only after the full speculation window
	// elapses. Disabling it can miss leaks that only appear when two
	// speculative paths of different lengths both reach an effectful
	// instruction under the same remaining window (see the control-flow
	// leak example in §4.C.3).
	IntermediateResolve bool
}

// NewTransientExecution returns a TransientExecution configured with the
// defaults: ChoosePath prediction, a 100-instruction speculation window,
// and intermediate resolve enabled.
func NewTransientExecution() TransientExecution {
	return TransientExecution{
		PredictorStrategy:   environment.ChoosePath,
		SpeculationWindow:   100,
		IntermediateResolve: true,
	}
}

func (TransientExecution) Name() string { return "TransientExecution" }

func (t TransientExecution) Description() string {
	return fmt.Sprintf("add transient execution behavior (max. speculation window=%d)", t.SpeculationWindow)
}

func (t TransientExecution) Apply(program *hir.Program) error {
	if t.SpeculationWindow >= environment.MaxSpeculationWindow {
		return perr.Preconditionf("expected speculation window < %d, but was %d",
			environment.MaxSpeculationWindow, t.SpeculationWindow)
	}

	cfg := program.ControlFlowGraph()

	defaultCFG, startRollbackPoints, err := t.buildDefaultCFG(cfg)
	if err != nil {
		return err
	}

	transientCFG, entryPoints, err := t.buildTransientCFG(cfg)
	if err != nil {
		return err
	}

	var refs []instructionRef
	for r := range startRollbackPoints {
		refs = append(refs, r)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].less(refs[j]) })

	for _, ref := range refs {
		sr := startRollbackPoints[ref]
		entryPoint, ok := entryPoints[ref]
		if !ok {
			return perr.Graphf("transient execution: no transient entry point for %v", ref)
		}

		reduced := transientCFG.Clone()
		if err := removeUnreachableTransientEdges(reduced, []int{entryPoint}, t.SpeculationWindow); err != nil {
			return err
		}

		savedVars := reorderBufferVars(reduced)

		blockMap := defaultCFG.Insert(reduced)
		transientEntry := blockMap[entryPoint]
		reducedExit, err := reduced.Exit()
		if err != nil {
			return err
		}
		transientResolve := blockMap[reducedExit]

		entryBlock, err := defaultCFG.Block(transientEntry)
		if err != nil {
			return err
		}
		saveVariables(entryBlock, savedVars)

		resolveBlock, err := defaultCFG.Block(transientResolve)
		if err != nil {
			return err
		}
		restoreVariables(resolveBlock, savedVars)

		if _, err := defaultCFG.UnconditionalEdge(sr.start, transientEntry); err != nil {
			return err
		}
		rollbackEdge, err := defaultCFG.UnconditionalEdge(transientResolve, sr.rollback)
		if err != nil {
			return err
		}
		rollbackEdge.Labels |= hir.Rollback
	}

	if err := defaultCFG.RemoveDeadEndBlocks(hir.Ignore); err != nil {
		return err
	}
	if err := defaultCFG.Simplify(); err != nil {
		return err
	}

	*cfg = *defaultCFG
	return nil
}

func (t TransientExecution) buildDefaultCFG(cfg *hir.ControlFlowGraph) (*hir.ControlFlowGraph, map[instructionRef]startRollback, error) {
	defaultCFG := cfg.Clone()
	points := map[instructionRef]startRollback{}

	for _, b := range cfg.Blocks() {
		insts := b.Instructions()
		for i := len(insts) - 1; i >= 0; i-- {
			inst := insts[i]
			ref := instructionRef{block: b.Index(), index: i, address: addressOf(inst)}

			switch inst.Operation.Kind {
			case hir.OpStore:
				if t.SpectreSTL && !t.skipSTL(inst.Operation.Addr) {
					if err := addTransientExecutionStart(defaultCFG, points, ref, t.SpeculationWindow, t.IntermediateResolve); err != nil {
						return nil, nil, err
					}
				}
			case hir.OpConditionalBranch:
				if t.SpectrePHT {
					if err := addTransientExecutionStart(defaultCFG, points, ref, t.SpeculationWindow, t.IntermediateResolve); err != nil {
						return nil, nil, err
					}
				}
			}
		}
	}

	return defaultCFG, points, nil
}

func (t TransientExecution) buildTransientCFG(cfg *hir.ControlFlowGraph) (*hir.ControlFlowGraph, map[instructionRef]int, error) {
	transientCFG := cfg.Clone()
	entryPoints := map[instructionRef]int{}

	resolveIndex := transientCFG.NewBlock().Index()
	exit, err := cfg.Exit()
	if err != nil {
		return nil, nil, err
	}
	if _, err := transientCFG.UnconditionalEdge(exit, resolveIndex); err != nil {
		return nil, nil, err
	}
	if err := transientCFG.SetExit(resolveIndex); err != nil {
		return nil, nil, err
	}

	for _, b := range cfg.Blocks() {
		insts := b.Instructions()
		for i := len(insts) - 1; i >= 0; i-- {
			inst := insts[i]
			ref := instructionRef{block: b.Index(), index: i, address: addressOf(inst)}

			switch inst.Operation.Kind {
			case hir.OpStore:
				if t.SpectreSTL && !t.skipSTL(inst.Operation.Addr) {
					if err := transientStore(transientCFG, entryPoints, ref); err != nil {
						return nil, nil, err
					}
				}
			case hir.OpConditionalBranch:
				if t.SpectrePHT {
					if err := transientConditionalBranch(transientCFG, entryPoints, ref, t.PredictorStrategy); err != nil {
						return nil, nil, err
					}
				}
			case hir.OpBarrier:
				if err := transientBarrier(transientCFG, ref); err != nil {
					return nil, nil, err
				}
			}
		}
	}

	if t.IntermediateResolve {
		if err := addTransientResolveEdges(transientCFG); err != nil {
			return nil, nil, err
		}
		if err := appendSpecWinDecreaseToAllBlocks(transientCFG); err != nil {
			return nil, nil, err
		}
	}

	for _, b := range transientCFG.Blocks() {
		b.SetTransient(true)
	}

	return transientCFG, entryPoints, nil
}

func (t TransientExecution) skipSTL(address *expr.Expr) bool {
	for _, v := range address.Variables() {
		if !t.STLIgnoredVariables[v.Name] {
			return false
		}
	}
	return true
}

func predictorVariable() *expr.Variable {
	return expr.NewVariable("predictor", expr.PredictorSort())
}

func predictorVariableExpr() *expr.Expr {
	return expr.VariableExpr(predictorVariable())
}

func specWinVariable() *expr.Variable {
	return expr.NewVariable("_spec_win", expr.BitVectorSort(environment.SpeculationWindowSize))
}

func addressConstant(address uint64) *expr.Expr {
	return bvConstant(address, expr.WordWidth)
}

func bvConstant(value uint64, bits int) *expr.Expr {
	return expr.ConstantExpr(expr.BVConstant(expr.NewBitVectorValue(value, bits)))
}

// addTransientExecutionStart splits the block at inst_ref into [head] and
// [tail], adds a [transient] block, and wires:
//   - head --(not speculating)--> tail: normal execution
//   - head --(speculating)--> transient: start of transient execution
//
// tail doubles as the rollback point: re-executing the instruction after
// the transient copy resolves (§4.C.3).
func addTransientExecutionStart(cfg *hir.ControlFlowGraph, points map[instructionRef]startRollback, ref instructionRef, maxSpecWindow int, intermediateResolve bool) error {
	headIndex := ref.block
	tailIndex, err := cfg.SplitBlockAt(headIndex, ref.index)
	if err != nil {
		return err
	}

	transientStart := cfg.NewBlock()
	transientStart.SetTransient(true)
	transientStartIndex := transientStart.Index()

	pc := addressConstant(ref.address)

	if intermediateResolve {
		specWindow, err := expr.PredictorWindow(predictorVariableExpr(), pc, environment.SpeculationWindowSize)
		if err != nil {
			return err
		}
		assignWin := transientStart.Assign(specWinVariable(), specWindow)
		assignWin.Pseudo = true

		zero := bvConstant(0, environment.SpeculationWindowSize)
		positiveWindow, err := expr.BVSGt(expr.VariableExpr(specWinVariable()), zero)
		if err != nil {
			return err
		}
		assumePositive := transientStart.Assume(positiveWindow)
		assumePositive.Pseudo = true

		maxWindow := bvConstant(uint64(maxSpecWindow), environment.SpeculationWindowSize)
		boundedWindow, err := expr.BVSLe(expr.VariableExpr(specWinVariable()), maxWindow)
		if err != nil {
			return err
		}
		assumeBounded := transientStart.Assume(boundedWindow)
		assumeBounded.Pseudo = true
	}

	speculating, err := expr.PredictorSpeculate(predictorVariableExpr(), pc)
	if err != nil {
		return err
	}
	notSpeculating, err := expr.Not(speculating)
	if err != nil {
		return err
	}

	if _, err := cfg.ConditionalEdge(headIndex, tailIndex, notSpeculating); err != nil {
		return err
	}
	specEdge, err := cfg.ConditionalEdge(headIndex, transientStartIndex, speculating)
	if err != nil {
		return err
	}
	specEdge.Labels |= hir.Speculate

	points[ref] = startRollback{start: transientStartIndex, rollback: tailIndex}
	return nil
}

// transientStore splits the block at inst_ref into [head], [store], [tail]
// and wires the store's speculative bypass (§4.C.3):
//   - head --(speculating)--> tail: store is bypassed
//   - head --(not speculating)--> store --()--> tail: store executes
func transientStore(cfg *hir.ControlFlowGraph, entryPoints map[instructionRef]int, ref instructionRef) error {
	headIndex := ref.block
	storeIndex, err := cfg.SplitBlockAt(headIndex, ref.index)
	if err != nil {
		return err
	}
	tailIndex, err := cfg.SplitBlockAt(storeIndex, 1)
	if err != nil {
		return err
	}

	pc := addressConstant(ref.address)
	bypass, err := expr.PredictorSpeculate(predictorVariableExpr(), pc)
	if err != nil {
		return err
	}
	execute, err := expr.Not(bypass)
	if err != nil {
		return err
	}

	bypassEdge, err := cfg.ConditionalEdge(headIndex, tailIndex, bypass)
	if err != nil {
		return err
	}
	bypassEdge.Labels |= hir.Speculate

	if _, err := cfg.ConditionalEdge(headIndex, storeIndex, execute); err != nil {
		return err
	}
	if _, err := cfg.UnconditionalEdge(storeIndex, tailIndex); err != nil {
		return err
	}

	entryPoints[ref] = tailIndex
	return nil
}

// transientConditionalBranch splits the block at inst_ref into [head] and
// [branch], adds a [speculate] block, and wires the mispredicted path
// (§4.C.3):
//   - head --(speculating)--> speculate: start of transient execution
//   - head --(not speculating)--> branch: correct prediction
//   - speculate --(per predictor_strategy)--> each successor of branch
func transientConditionalBranch(cfg *hir.ControlFlowGraph, entryPoints map[instructionRef]int, ref instructionRef, strategy environment.PredictorStrategy) error {
	headIndex := ref.block
	branchIndex, err := cfg.SplitBlockAt(headIndex, ref.index)
	if err != nil {
		return err
	}
	speculateIndex := cfg.NewBlock().Index()

	pc := addressConstant(ref.address)
	speculating, err := expr.PredictorSpeculate(predictorVariableExpr(), pc)
	if err != nil {
		return err
	}
	executeCorrectly, err := expr.Not(speculating)
	if err != nil {
		return err
	}

	specEdge, err := cfg.ConditionalEdge(headIndex, speculateIndex, speculating)
	if err != nil {
		return err
	}
	specEdge.Labels |= hir.Speculate
	if _, err := cfg.ConditionalEdge(headIndex, branchIndex, executeCorrectly); err != nil {
		return err
	}

	outgoing := append([]*hir.Edge(nil), cfg.EdgesOut(branchIndex)...)

	switch len(outgoing) {
	case 1:
		// Only one successor, possible after loop unwinding already removed
		// the other. Assume the remaining edge's direction instead of
		// choosing between two paths.
		edge := outgoing[0]
		taken := edge.Labels.Has(hir.Taken)

		cond, err := mispredictedSingleSuccessorCondition(strategy, pc, edge, taken)
		if err != nil {
			return err
		}

		speculateBlock, err := cfg.Block(speculateIndex)
		if err != nil {
			return err
		}
		assumeInst := speculateBlock.Assume(cond)
		assumeInst.Pseudo = true

		newEdge, err := cfg.ConditionalEdge(speculateIndex, edge.Tail, cond)
		if err != nil {
			return err
		}
		if taken {
			newEdge.Labels |= hir.Taken
		}

	case 2:
		takenEdge, notTakenEdge := outgoing[0], outgoing[1]
		if !takenEdge.Labels.Has(hir.Taken) {
			takenEdge, notTakenEdge = notTakenEdge, takenEdge
		}

		taken, notTaken, err := mispredictedTwoSuccessorConditions(strategy, pc, takenEdge, notTakenEdge)
		if err != nil {
			return err
		}

		if _, err := cfg.ConditionalEdge(speculateIndex, notTakenEdge.Tail, notTaken); err != nil {
			return err
		}
		takenNewEdge, err := cfg.ConditionalEdge(speculateIndex, takenEdge.Tail, taken)
		if err != nil {
			return err
		}
		takenNewEdge.Labels |= hir.Taken

	default:
		return perr.Graphf("expected one or two successors for conditional branch, got %d", len(outgoing))
	}

	entryPoints[ref] = speculateIndex
	return nil
}

func mispredictedSingleSuccessorCondition(strategy environment.PredictorStrategy, pc *expr.Expr, edge *hir.Edge, taken bool) (*expr.Expr, error) {
	if strategy == environment.InvertCondition {
		return expr.Not(edge.Condition)
	}
	oracleTaken, err := expr.PredictorTaken(predictorVariableExpr(), pc)
	if err != nil {
		return nil, err
	}
	if taken {
		return oracleTaken, nil
	}
	return expr.Not(oracleTaken)
}

func mispredictedTwoSuccessorConditions(strategy environment.PredictorStrategy, pc *expr.Expr, takenEdge, notTakenEdge *hir.Edge) (taken, notTaken *expr.Expr, err error) {
	if strategy == environment.InvertCondition {
		taken, err = expr.Not(takenEdge.Condition)
		if err != nil {
			return nil, nil, err
		}
		notTaken, err = expr.Not(notTakenEdge.Condition)
		if err != nil {
			return nil, nil, err
		}
		return taken, notTaken, nil
	}

	oracleTaken, err := expr.PredictorTaken(predictorVariableExpr(), pc)
	if err != nil {
		return nil, nil, err
	}
	notOracleTaken, err := expr.Not(oracleTaken)
	if err != nil {
		return nil, nil, err
	}
	return oracleTaken, notOracleTaken, nil
}

// transientBarrier splits the block at inst_ref and routes straight to the
// resolve block: a Barrier instruction immediately stops transient
// execution (§4.C.3).
func transientBarrier(cfg *hir.ControlFlowGraph, ref instructionRef) error {
	headIndex := ref.block
	if _, err := cfg.SplitBlockAt(headIndex, ref.index); err != nil {
		return err
	}
	resolveIndex, err := cfg.Exit()
	if err != nil {
		return err
	}
	_, err = cfg.UnconditionalEdge(headIndex, resolveIndex)
	return err
}

// splitBlocksAtEffectfulInstructions isolates every effectful instruction
// (one a later observation/leak check needs to see individually) into its
// own block, so that addTransientResolveEdges can add a resolve edge right
// after each one.
func splitBlocksAtEffectfulInstructions(cfg *hir.ControlFlowGraph) error {
	type work struct {
		block   int
		indices []int
	}
	var items []work
	for _, b := range cfg.Blocks() {
		var indices []int
		for i, inst := range b.Instructions() {
			if inst.HasEffects() {
				indices = append(indices, i)
			}
		}
		if len(indices) > 0 {
			items = append(items, work{block: b.Index(), indices: indices})
		}
	}

	for _, item := range items {
		for i := len(item.indices) - 1; i >= 0; i-- {
			tailIndex, err := cfg.SplitBlockAt(item.block, item.indices[i])
			if err != nil {
				return err
			}
			if _, err := cfg.UnconditionalEdge(item.block, tailIndex); err != nil {
				return err
			}
		}
	}
	return nil
}

// addTransientResolveEdges lets transient execution stop at any effectful
// instruction rather than only after the full speculation window elapses,
// by adding a conditional resolve edge guarded on _spec_win <= 0 after
// every effectful instruction (§4.C.3).
func addTransientResolveEdges(cfg *hir.ControlFlowGraph) error {
	resolveIndex, err := cfg.Exit()
	if err != nil {
		return err
	}

	if err := splitBlocksAtEffectfulInstructions(cfg); err != nil {
		return err
	}

	var blockIndices []int
	for _, b := range cfg.Blocks() {
		if b.InstructionCountIgnoringPseudo() > 0 && b.Index() != resolveIndex {
			blockIndices = append(blockIndices, b.Index())
		}
	}

	for _, blockIndex := range blockIndices {
		b, err := cfg.Block(blockIndex)
		if err != nil {
			return err
		}
		tailIndex, err := cfg.SplitBlockAt(blockIndex, b.InstructionCount())
		if err != nil {
			return err
		}

		zero := bvConstant(0, environment.SpeculationWindowSize)
		continueExecuting, err := expr.BVSGt(expr.VariableExpr(specWinVariable()), zero)
		if err != nil {
			return err
		}
		if _, err := cfg.ConditionalEdge(blockIndex, tailIndex, continueExecuting); err != nil {
			return err
		}

		resolve, err := expr.BVSLe(expr.VariableExpr(specWinVariable()), zero)
		if err != nil {
			return err
		}
		if _, err := cfg.ConditionalEdge(blockIndex, resolveIndex, resolve); err != nil {
			return err
		}
	}
	return nil
}

// appendSpecWinDecreaseToAllBlocks appends "_spec_win := _spec_win -
// |non-pseudo instructions in block|" to every transient block.
func appendSpecWinDecreaseToAllBlocks(cfg *hir.ControlFlowGraph) error {
	for _, b := range cfg.Blocks() {
		count := b.InstructionCountIgnoringPseudo()
		if count == 0 {
			continue
		}
		decrement := bvConstant(uint64(count), environment.SpeculationWindowSize)
		newValue, err := expr.BVSub(expr.VariableExpr(specWinVariable()), decrement)
		if err != nil {
			return err
		}
		inst := b.Assign(specWinVariable(), newValue)
		inst.Pseudo = true
	}
	return nil
}

// reorderBufferVars is the set of variables (registers and memory) that
// would end up in the reorder buffer: every variable the graph writes,
// except the rollback-persistent ones (Cache/BTB/PHT and anything
// explicitly tagged), which must survive a rollback rather than be undone
// by it.
func reorderBufferVars(cfg *hir.ControlFlowGraph) []*expr.Variable {
	seen := map[string]bool{}
	var vars []*expr.Variable
	for _, v := range cfg.VariablesWritten() {
		if v.IsRollbackPersistent() {
			continue
		}
		if seen[v.Identifier()] {
			continue
		}
		seen[v.Identifier()] = true
		vars = append(vars, v)
	}
	return vars
}

func savedVariableFor(v *expr.Variable) *expr.Variable {
	return expr.NewVariable("_RB_"+v.Name, v.VarSort)
}

func saveVariables(b *hir.Block, vars []*expr.Variable) {
	for _, v := range vars {
		inst := b.Assign(savedVariableFor(v), expr.VariableExpr(v))
		inst.Pseudo = true
	}
}

func restoreVariables(b *hir.Block, vars []*expr.Variable) {
	for _, v := range vars {
		inst := b.Assign(v, expr.VariableExpr(savedVariableFor(v)))
		inst.Pseudo = true
	}
}

// removeUnreachableTransientEdges bounds the transient CFG to what the
// speculation window can actually reach from transientEntries: the
// remaining window is propagated forward to a fixed point, and every block
// whose remaining window hits zero has its outgoing edges replaced by an
// unconditional edge straight to resolve (§4.C.3). A later Simplify call
// drops the now-unreachable blocks this severs.
func removeUnreachableTransientEdges(cfg *hir.ControlFlowGraph, transientEntries []int, initSpecWindow int) error {
	resolveIndex, err := cfg.Exit()
	if err != nil {
		return err
	}

	remainingIn := map[int]int{}
	remainingOut := map[int]int{}

	queue := append([]int(nil), transientEntries...)
	for _, idx := range transientEntries {
		remainingIn[idx] = initSpecWindow
	}

	for len(queue) > 0 {
		index := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		b, err := cfg.Block(index)
		if err != nil {
			return err
		}
		instCount := b.InstructionCountIgnoringPseudo()

		specOut := remainingIn[index] - instCount
		if specOut < 0 {
			specOut = 0
		}
		remainingOut[index] = specOut

		for _, succ := range cfg.SuccessorIndices(index) {
			if specOut > remainingIn[succ] {
				remainingIn[succ] = specOut
				queue = append(queue, succ)
			}
		}
	}

	var rollbackBlocks []int
	for _, b := range cfg.Blocks() {
		if remainingOut[b.Index()] == 0 {
			rollbackBlocks = append(rollbackBlocks, b.Index())
		}
	}

	for _, index := range rollbackBlocks {
		for _, succ := range append([]int(nil), cfg.SuccessorIndices(index)...) {
			if _, err := cfg.RemoveEdge(index, succ, hir.Ignore); err != nil {
				return err
			}
		}
		if _, err := cfg.UnconditionalEdge(index, resolveIndex); err != nil {
			return err
		}
	}
	return nil
}
