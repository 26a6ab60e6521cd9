package elf

import (
	"fmt"

	"specbmc/internal/expr"
	"specbmc/internal/hir"
)

// registerVariable maps a decoded register to the word-width bitvector
// variable it reads/writes, following the same ad hoc NewVariable(name,
// sort) construction idiom used throughout internal/hir/transform and
// internal/loader/muasm rather than a shared table of pre-built variables.
func registerVariable(r register) *expr.Variable {
	return expr.NewVariable(r.name(), expr.BitVectorSort(expr.WordWidth))
}

// zeroFlagVariable is the single x86 condition-code flag this lifter
// tracks. Real x86 has several (ZF, SF, CF, OF, ...); modeling all of them
// faithfully needs a flags-register sort this port does not have reason to
// add for any other loader, so only the zero flag is threaded through —
// enough for cmp/test followed directly by jz/jnz, which is the pattern
// the minimal instruction subset above actually produces.
func zeroFlagVariable() *expr.Variable {
	return expr.NewVariable("zf", expr.BooleanSort())
}

func wordConstant(v int64) *expr.Expr {
	return expr.ConstantExpr(expr.BVConstant(expr.NewBitVectorValue(uint64(v), expr.WordWidth)))
}

// lowerArithmetic builds the value expression for add/sub/cmp/test
// variants: a word-sort expression for add/sub (assigned to dst) or a
// boolean-sort expression for cmp/test (assigned to the zero flag).
func lowerArithmetic(inst decodedInstruction) (*expr.Expr, error) {
	operand := expr.VariableExpr(registerVariable(inst.dst))

	var rhs *expr.Expr
	if inst.hasImm {
		rhs = wordConstant(inst.immediate)
	} else if inst.hasSrc {
		rhs = expr.VariableExpr(registerVariable(inst.src))
	}

	switch inst.op {
	case opAddReg, opAddImm:
		return expr.BVAdd(operand, rhs)
	case opSubReg, opSubImm:
		return expr.BVSub(operand, rhs)
	case opCmpReg, opCmpImm:
		return expr.Equal(operand, rhs)
	case opTestReg:
		anded, err := expr.BVAnd(operand, rhs)
		if err != nil {
			return nil, err
		}
		return expr.Equal(anded, wordConstant(0))
	}
	return nil, fmt.Errorf("elf: lowerArithmetic called with non-arithmetic opcode %d", inst.op)
}

// lowerInstruction builds the single block an instruction lowers to,
// mirroring internal/loader/muasm/cfg.go's lowerInstruction: one switch
// over the decoded opcode, each case building exactly the Operations that
// opcode produces. Control transfer itself (branch/fallthrough edges) is
// wired by translateToHIR's separate edge-building pass; Branch/
// ConditionalBranch here are the operation's own symbolic record of the
// target, not the CFG edge.
func lowerInstruction(block *hir.Block, inst decodedInstruction) error {
	switch inst.op {
	case opNop, opRet:
		return nil

	case opFence, opCall, opUnknown:
		// lfence/mfence/sfence, call (no cross-function support), and any
		// instruction this decoder could not classify all collapse to a
		// Barrier: a safe over-approximation of a speculation-stopping
		// fence, the same fallback falcon_to_hir.rs uses for unrecognized
		// il::Operation::Intrinsic values.
		block.Barrier()
		return nil

	case opMovImm:
		block.Assign(registerVariable(inst.dst), wordConstant(inst.immediate))
		return nil

	case opMovReg:
		block.Assign(registerVariable(inst.dst), expr.VariableExpr(registerVariable(inst.src)))
		return nil

	case opAddReg, opSubReg, opAddImm, opSubImm:
		value, err := lowerArithmetic(inst)
		if err != nil {
			return err
		}
		block.Assign(registerVariable(inst.dst), value)
		return nil

	case opCmpReg, opCmpImm, opTestReg:
		value, err := lowerArithmetic(inst)
		if err != nil {
			return err
		}
		block.Assign(zeroFlagVariable(), value)
		return nil

	case opJmp:
		block.Branch(wordConstant(int64(inst.offset + inst.length + int(inst.displacement))))
		return nil

	case opJz, opJnz:
		zf := expr.VariableExpr(zeroFlagVariable())
		cond := zf
		if inst.op == opJnz {
			notZf, err := expr.Not(zf)
			if err != nil {
				return err
			}
			cond = notZf
		}
		target := wordConstant(int64(inst.offset + inst.length + int(inst.displacement)))
		block.ConditionalBranch(cond, target)
		return nil

	default:
		return fmt.Errorf("elf: unhandled opcode %d", inst.op)
	}
}
