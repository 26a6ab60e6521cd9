package muasm

import (
	"fmt"

	"specbmc/internal/expr"
	"specbmc/internal/hir"
)

// translateToHIR lowers a parsed Program into a ControlFlowGraph: one block
// per instruction (muasm.rs's translate_ir_to_hir, simplified — every one
// of its per-instruction "instruction subgraphs" has exactly one block as
// both its own entry and exit, so the general insert-with-renaming
// machinery it uses collapses here to directly building one block per line
// up front), plus a dedicated entry block feeding line 0 and a dedicated
// exit block absorbing any out-of-range target (falling off the end, or an
// unresolvable forward reference).
func translateToHIR(program *Program) (*hir.ControlFlowGraph, error) {
	cfg := hir.NewControlFlowGraph()

	labelAddress := map[string]uint64{}
	for i, line := range program.Lines {
		if line.Label != nil {
			labelAddress[*line.Label] = uint64(i)
		}
	}

	resolveTarget := func(t *Target) (uint64, error) {
		if t.Label != nil {
			addr, ok := labelAddress[*t.Label]
			if !ok {
				return 0, fmt.Errorf("muasm: unknown label %q", *t.Label)
			}
			return addr, nil
		}
		return parseAddress(*t.Location)
	}

	blockOf := make([]int, len(program.Lines))
	for i, line := range program.Lines {
		block := cfg.NewBlock()
		if err := lowerInstruction(block, line.Instruction, labelAddress); err != nil {
			return nil, fmt.Errorf("muasm: line %d: %w", i, err)
		}
		blockOf[i] = block.Index()
	}

	entry := cfg.NewBlock()
	if err := cfg.SetEntry(entry.Index()); err != nil {
		return nil, err
	}

	exit := cfg.NewBlock()
	if err := cfg.SetExit(exit.Index()); err != nil {
		return nil, err
	}

	if len(program.Lines) == 0 {
		if _, err := cfg.UnconditionalEdge(entry.Index(), exit.Index()); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	if _, err := cfg.UnconditionalEdge(entry.Index(), blockOf[0]); err != nil {
		return nil, err
	}

	resolveBlock := func(address uint64) int {
		if int(address) < len(blockOf) {
			return blockOf[address]
		}
		return exit.Index()
	}

	for i, line := range program.Lines {
		from := blockOf[i]

		switch {
		case line.Instruction.Jump != nil:
			target, err := resolveTarget(line.Instruction.Jump.Target)
			if err != nil {
				return nil, err
			}
			if _, err := cfg.UnconditionalEdge(from, resolveBlock(target)); err != nil {
				return nil, err
			}

		case line.Instruction.Beqz != nil:
			reg := expr.VariableExpr(register(line.Instruction.Beqz.Register))

			notTaken, err := notEqual(reg, wordConstant(0))
			if err != nil {
				return nil, err
			}
			if _, err := cfg.ConditionalEdge(from, resolveBlock(uint64(i+1)), notTaken); err != nil {
				return nil, err
			}

			taken, err := expr.Equal(reg, wordConstant(0))
			if err != nil {
				return nil, err
			}
			target, err := resolveTarget(line.Instruction.Beqz.Target)
			if err != nil {
				return nil, err
			}
			takenEdge, err := cfg.ConditionalEdge(from, resolveBlock(target), taken)
			if err != nil {
				return nil, err
			}
			takenEdge.Labels |= hir.Taken

		default:
			if _, err := cfg.UnconditionalEdge(from, resolveBlock(uint64(i+1))); err != nil {
				return nil, err
			}
		}
	}

	if err := cfg.Simplify(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// lowerInstruction builds the single block for one instruction (muasm.rs's
// semantics module, one function per opcode — each building exactly one
// block).
func lowerInstruction(block *hir.Block, inst *Instruction, labelAddress map[string]uint64) error {
	switch {
	case inst.Skip != nil:
		return nil

	case inst.Barrier != nil:
		block.Barrier()
		return nil

	case inst.Flush != nil:
		return lowerFlush(block)

	case inst.Store != nil:
		return lowerStore(block, inst.Store)

	case inst.Assign != nil:
		return lowerAssign(block, inst.Assign)

	case inst.Jump != nil:
		target, err := toHIRTargetExpr(inst.Jump.Target, labelAddress)
		if err != nil {
			return err
		}
		block.Branch(target)
		return nil

	case inst.Beqz != nil:
		reg := expr.VariableExpr(register(inst.Beqz.Register))
		cond, err := expr.Equal(reg, wordConstant(0))
		if err != nil {
			return err
		}
		target, err := toHIRTargetExpr(inst.Beqz.Target, labelAddress)
		if err != nil {
			return err
		}
		block.ConditionalBranch(cond, target)
		return nil

	default:
		return fmt.Errorf("muasm: empty instruction")
	}
}

// toHIRTargetExpr renders a Target as the word constant its resolved
// address, for the Branch/ConditionalBranch operation's own symbolic
// record — actual control flow is wired by translateToHIR's separate
// edge-building pass.
func toHIRTargetExpr(t *Target, labelAddress map[string]uint64) (*expr.Expr, error) {
	if t.Label != nil {
		addr, ok := labelAddress[*t.Label]
		if !ok {
			return nil, fmt.Errorf("muasm: unknown label %q", *t.Label)
		}
		return wordConstant(addr), nil
	}
	addr, err := parseAddress(*t.Location)
	if err != nil {
		return nil, err
	}
	return wordConstant(addr), nil
}

func lowerFlush(block *hir.Block) error {
	cache := expr.NewVariable("cache", expr.CacheSort())
	arr := expr.NewArrayValue(expr.BitVectorSort(expr.WordWidth), expr.BooleanSort())
	falseValue := expr.BoolConstant(false)
	arr.Default = &falseValue
	block.Assign(cache, expr.ConstantExpr(expr.ArrayConstant(arr)))
	return nil
}

func lowerStore(block *hir.Block, store *StoreInstruction) error {
	address, err := toHIRExpr(store.Address)
	if err != nil {
		return err
	}
	value := expr.VariableExpr(register(store.Register))
	memory := expr.NewVariable("memory", expr.MemorySort())
	block.Store(memory, memory, address, value)
	return nil
}

func lowerAssign(block *hir.Block, assign *AssignInstruction) error {
	dest := register(assign.Register)

	if assign.Source.Load != nil {
		address, err := toHIRExpr(assign.Source.Load.Address)
		if err != nil {
			return err
		}
		memory := expr.NewVariable("memory", expr.MemorySort())
		block.Load(dest, memory, address)
		return nil
	}

	value, err := toHIRExpr(assign.Source.Value)
	if err != nil {
		return err
	}

	if assign.Condition != nil {
		cond, err := toHIRExpr(assign.Condition)
		if err != nil {
			return err
		}
		condBool, err := wordToBoolean(cond)
		if err != nil {
			return err
		}
		merged, err := expr.Ite(condBool, value, expr.VariableExpr(dest))
		if err != nil {
			return err
		}
		block.Assign(dest, merged)
		return nil
	}

	block.Assign(dest, value)
	return nil
}
