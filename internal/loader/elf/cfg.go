package elf

import (
	"fmt"

	"specbmc/internal/expr"
	"specbmc/internal/hir"
)

// translateToHIR decodes code (the bytes of a function's .text range) into
// a control-flow graph, one block per decoded instruction, in the same
// one-block-per-instruction shape internal/loader/muasm builds: a dedicated
// entry block feeding the first instruction and a dedicated exit block
// absorbing ret, falling off the end of the function, and any branch whose
// target could not be resolved to a decoded instruction in this sweep.
func translateToHIR(code []byte) (*hir.ControlFlowGraph, error) {
	instructions, blockAt, err := decodeAll(code)
	if err != nil {
		return nil, err
	}

	cfg := hir.NewControlFlowGraph()
	entryIndex := cfg.NewBlock().Index()
	if err := cfg.SetEntry(entryIndex); err != nil {
		return nil, err
	}
	exitIndex := cfg.NewBlock().Index()
	if err := cfg.SetExit(exitIndex); err != nil {
		return nil, err
	}

	blocks := make([]*hir.Block, len(instructions))
	for i := range instructions {
		blocks[i] = cfg.NewBlock()
	}

	resolve := func(targetOffset int) int {
		if idx, ok := blockAt[targetOffset]; ok {
			return blocks[idx].Index()
		}
		return exitIndex
	}

	if len(instructions) == 0 {
		if _, err := cfg.UnconditionalEdge(entryIndex, exitIndex); err != nil {
			return nil, err
		}
	} else {
		if _, err := cfg.UnconditionalEdge(entryIndex, blocks[0].Index()); err != nil {
			return nil, err
		}
	}

	for i, inst := range instructions {
		block := blocks[i]
		if err := lowerInstruction(block, inst); err != nil {
			return nil, fmt.Errorf("elf: lowering instruction at offset %#x: %w", inst.offset, err)
		}

		fallthroughTarget := resolve(inst.offset + inst.length)

		switch inst.op {
		case opRet:
			if _, err := cfg.UnconditionalEdge(block.Index(), exitIndex); err != nil {
				return nil, err
			}
		case opJmp:
			target := resolve(inst.offset + inst.length + int(inst.displacement))
			if _, err := cfg.UnconditionalEdge(block.Index(), target); err != nil {
				return nil, err
			}
		case opJz, opJnz:
			target := resolve(inst.offset + inst.length + int(inst.displacement))
			zf := expr.VariableExpr(zeroFlagVariable())
			notZf, err := expr.Not(zf)
			if err != nil {
				return nil, err
			}

			takenCond, notTakenCond := zf, notZf
			if inst.op == opJnz {
				takenCond, notTakenCond = notZf, zf
			}

			taken, err := cfg.ConditionalEdge(block.Index(), target, takenCond)
			if err != nil {
				return nil, err
			}
			taken.Labels |= hir.Taken

			if _, err := cfg.ConditionalEdge(block.Index(), fallthroughTarget, notTakenCond); err != nil {
				return nil, err
			}
		default:
			if _, err := cfg.UnconditionalEdge(block.Index(), fallthroughTarget); err != nil {
				return nil, err
			}
		}
	}

	if err := cfg.Simplify(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decodeAll sweeps code linearly from offset 0, returning every decoded
// instruction plus a map from byte offset to its index in that slice, used
// to resolve jump/branch targets. A linear sweep (vs. Falcon's recursive
// traversal starting from declared entry points) is a known source of
// mis-decoding across embedded data or unreachable code; out of scope for
// a best-effort, explicitly non-sound lifter.
func decodeAll(code []byte) ([]decodedInstruction, map[int]int, error) {
	var instructions []decodedInstruction
	blockAt := map[int]int{}
	offset := 0
	for offset < len(code) {
		inst := decodeInstruction(code, offset)
		if inst.length <= 0 {
			return nil, nil, fmt.Errorf("elf: decoder made no progress at offset %#x", offset)
		}
		blockAt[offset] = len(instructions)
		instructions = append(instructions, inst)
		offset += inst.length
	}
	return instructions, blockAt, nil
}
