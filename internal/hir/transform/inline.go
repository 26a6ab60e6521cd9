package transform

import (
	perr "specbmc/internal/errors"
	"specbmc/internal/expr"
	"specbmc/internal/hir"
	"specbmc/internal/hir/analysis"
)

// defaultMaxInlineDepth bounds the number of call sites Inline will resolve
// before giving up, a backstop against a call graph analysis::CallGraph's
// cycle check failed to catch (it only rejects recursion among named
// functions, not e.g. a pathological number of distinct acyclic call sites).
const defaultMaxInlineDepth = 4096

// Inline resolves every direct call in a Module's entry function
// (transitively, into its callees' own calls) by splicing the callee's
// control flow graph into the caller at the call site, producing the
// single-function hir.Program every later pass operates on (§4.C.9).
// Mutual or self recursion is rejected: spec.md models a finite
// single-threaded program, and an unbounded call depth has no bounded
// model to check.
type Inline struct {
	MaxDepth int
}

func (t Inline) maxDepth() int {
	if t.MaxDepth > 0 {
		return t.MaxDepth
	}
	return defaultMaxInlineDepth
}

// Apply inlines module down to a single Program rooted at its
// EntryFunction. It does not implement the Pass interface: it consumes a
// Module, not a Program, since no Program exists until inlining produces
// one.
func (t Inline) Apply(module *hir.Module) (*hir.Program, error) {
	entryFn, ok := module.FunctionByName(module.EntryFunction)
	if !ok {
		return nil, perr.Preconditionf("inline: no entry function %q in module", module.EntryFunction)
	}

	callGraph := analysis.BuildCallGraph(module)
	if callGraph.HasCycle() {
		return nil, perr.Preconditionf("inline: call graph contains a cycle, recursion is not supported")
	}

	cfg := entryFn.CFG.Clone()

	for depth := 0; ; depth++ {
		callInst, blockIndex, found := findFirstCall(cfg)
		if !found {
			break
		}
		if depth >= t.maxDepth() {
			return nil, perr.Preconditionf("inline: exceeded max inline depth %d", t.maxDepth())
		}

		if callInst.Operation.Callee == nil {
			return nil, perr.Graphf("inline: call instruction has no callee")
		}
		calleeName := *callInst.Operation.Callee
		callee, ok := module.FunctionByName(calleeName)
		if !ok {
			return nil, perr.Graphf("inline: call to unresolved function %q", calleeName)
		}

		if err := inlineCallAt(cfg, blockIndex, callInst, callee); err != nil {
			return nil, err
		}
	}

	program := hir.NewProgram(cfg)
	program.EntryLabel = entryFn.Name
	return program, nil
}

func findFirstCall(cfg *hir.ControlFlowGraph) (*hir.Instruction, int, bool) {
	for _, b := range cfg.Blocks() {
		for _, inst := range b.Instructions() {
			if inst.Operation.Kind == hir.OpCall {
				return inst, b.Index(), true
			}
		}
	}
	return nil, 0, false
}

// inlineCallAt splits the block holding the call at the call site, drops
// the call instruction itself, splices a fresh copy of callee's graph in
// between, and — if the call has a result variable — assigns it from the
// callee's conventional "_ret" variable once the callee's exit block is
// reached.
func inlineCallAt(cfg *hir.ControlFlowGraph, blockIndex int, callInst *hir.Instruction, callee *hir.Function) error {
	block, err := cfg.Block(blockIndex)
	if err != nil {
		return err
	}

	position := -1
	for i, inst := range block.Instructions() {
		if inst.Index == callInst.Index {
			position = i
			break
		}
	}
	if position == -1 {
		return perr.Graphf("inline: call instruction not found in its own block")
	}

	tailIndex, err := cfg.SplitBlockAt(blockIndex, position)
	if err != nil {
		return err
	}
	tailBlock, err := cfg.Block(tailIndex)
	if err != nil {
		return err
	}
	tailBlock.RemoveInstruction(callInst.Index)

	calleeCFG := callee.CFG.Clone()
	blockMap := cfg.Insert(calleeCFG)

	calleeEntry, err := calleeCFG.Entry()
	if err != nil {
		return err
	}
	calleeExit, err := calleeCFG.Exit()
	if err != nil {
		return err
	}
	entryIndex := blockMap[calleeEntry]
	exitIndex := blockMap[calleeExit]

	if _, err := cfg.UnconditionalEdge(blockIndex, entryIndex); err != nil {
		return err
	}

	if callInst.Operation.Result != nil {
		exitBlock, err := cfg.Block(exitIndex)
		if err != nil {
			return err
		}
		returnValue := expr.NewVariable("_ret", callInst.Operation.Result.VarSort)
		inst := exitBlock.Assign(callInst.Operation.Result, expr.VariableExpr(returnValue))
		inst.Pseudo = true
	}

	_, err = cfg.UnconditionalEdge(exitIndex, tailIndex)
	return err
}
