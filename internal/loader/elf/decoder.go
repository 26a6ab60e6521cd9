// Package elf lifts a single function out of an ELF binary's .text section
// into an hir.ControlFlowGraph. Falcon, the original's lifter, is an
// external Rust binary with no Go binding anywhere in the retrieval pack
// (falcon_to_hir/mod.rs translates its il::Program, not raw bytes), so this
// port decodes directly from the object file using stdlib debug/elf plus a
// hand-rolled decoder for a minimal x86-64 instruction subset. It is a
// best-effort, explicitly non-sound lifter: a linear sweep (no recursive
// traversal the way Falcon does it), register operands limited to the
// first 8 general-purpose registers (no REX.R/X/B extended-register
// decoding), and exactly one condition-code flag (zero) tracked across
// cmp/test, mirroring spec.md's own "not sound" framing for this loader.
package elf

import "encoding/binary"

// opcode names the decoded operation a raw instruction lowers to. Anything
// this decoder cannot classify becomes opUnknown and is lowered to a
// Barrier, a safe over-approximation of a speculation-stopping fence (the
// same fallback falcon_to_hir.rs uses for any il::Operation::Intrinsic it
// does not recognize).
type opcode int

const (
	opNop opcode = iota
	opRet
	opMovImm  // dst = imm
	opMovReg  // dst = src
	opAddReg  // dst = dst + src
	opSubReg  // dst = dst - src
	opAddImm  // dst = dst + imm
	opSubImm  // dst = dst - imm
	opCmpReg  // zf = (dst == src)
	opCmpImm  // zf = (dst == imm)
	opTestReg // zf = ((dst & src) == 0)
	opJmp     // unconditional branch, rel displacement
	opJz      // branch if zf
	opJnz     // branch if !zf
	opCall    // lowered to Barrier: no cross-function control flow support
	opFence   // lfence/mfence/sfence -> Barrier
	opUnknown // unrecognized opcode -> Barrier, consumes one byte
)

// register identifies one of the first 8 general-purpose x86-64 registers
// by their ModRM/opcode-embedded encoding (0=rax, 1=rcx, ...). No
// REX.R/X/B extension support, so r8-r15 are never addressed.
type register int

const registerCount = 8

var registerNames = [registerCount]string{"rax", "rcx", "rdx", "rbx", "rsp", "rbp", "rsi", "rdi"}

func (r register) name() string {
	if int(r) < 0 || int(r) >= registerCount {
		return "unknown"
	}
	return registerNames[r]
}

// decodedInstruction is the result of decoding one instruction starting at
// a given byte offset into the text section.
type decodedInstruction struct {
	offset       int // byte offset into the decoded section this instruction starts at
	length       int // total bytes consumed, always >= 1
	op           opcode
	wide         bool // REX.W seen: 64-bit operand size
	dst, src     register
	hasSrc       bool
	immediate    int64
	hasImm       bool
	displacement int32 // opJmp/opJz/opJnz: signed, relative to the next instruction
}

// modRM decodes a register-direct ModRM byte (mod == 11) into its reg and
// rm fields. Memory-operand addressing (mod != 11, SIB bytes, displacement
// bytes) is out of scope for this minimal decoder: any instruction using
// one decodes as opUnknown so it safely falls back to a Barrier instead of
// silently mis-decoding.
func modRM(b byte) (mod, reg, rm int) {
	return int(b>>6) & 0x3, int(b>>3) & 0x7, int(b) & 0x7
}

// decodeInstruction decodes exactly one instruction from code starting at
// offset, returning an instruction whose length always advances the cursor
// by at least one byte.
func decodeInstruction(code []byte, offset int) decodedInstruction {
	start := offset
	wide := false

	// REX prefix (0x40-0x4F). Only W is interpreted; R/X/B (extended
	// register bits) are ignored, so r8-r15 never appear as operands.
	if offset < len(code) && code[offset]&0xF0 == 0x40 {
		wide = code[offset]&0x08 != 0
		offset++
	}

	if offset >= len(code) {
		return decodedInstruction{offset: start, length: offset - start, op: opUnknown}
	}

	b := code[offset]

	switch {
	case b == 0x90: // nop
		return decodedInstruction{offset: start, length: offset + 1 - start, op: opNop, wide: wide}

	case b == 0xC3: // ret
		return decodedInstruction{offset: start, length: offset + 1 - start, op: opRet, wide: wide}

	case b >= 0xB8 && b <= 0xBF: // mov r, imm32/imm64
		reg := register(b - 0xB8)
		immSize := 4
		if wide {
			immSize = 8
		}
		end := offset + 1 + immSize
		if end > len(code) {
			return decodedInstruction{offset: start, length: len(code) - start, op: opUnknown}
		}
		imm := readSignedImmediate(code[offset+1 : end])
		return decodedInstruction{offset: start, length: end - start, op: opMovImm, wide: wide, dst: reg, immediate: imm, hasImm: true}

	case b == 0x89: // mov r/m, r (register-direct form only)
		return decodeRegisterForm(code, start, offset, wide, opMovReg, true)

	case b == 0x8B: // mov r, r/m (register-direct form only)
		return decodeRegisterForm(code, start, offset, wide, opMovReg, false)

	case b == 0x01: // add r/m, r
		return decodeRegisterForm(code, start, offset, wide, opAddReg, true)

	case b == 0x03: // add r, r/m
		return decodeRegisterForm(code, start, offset, wide, opAddReg, false)

	case b == 0x29: // sub r/m, r
		return decodeRegisterForm(code, start, offset, wide, opSubReg, true)

	case b == 0x2B: // sub r, r/m
		return decodeRegisterForm(code, start, offset, wide, opSubReg, false)

	case b == 0x39: // cmp r/m, r
		return decodeRegisterForm(code, start, offset, wide, opCmpReg, true)

	case b == 0x3B: // cmp r, r/m
		return decodeRegisterForm(code, start, offset, wide, opCmpReg, false)

	case b == 0x85: // test r/m, r
		return decodeRegisterForm(code, start, offset, wide, opTestReg, true)

	case b == 0x83: // group1 r/m, imm8 (add/sub/cmp only, register-direct only)
		return decodeGroup1Imm8(code, start, offset, wide)

	case b == 0xE8: // call rel32 -- no cross-function support, lowered to Barrier
		end := offset + 5
		if end > len(code) {
			return decodedInstruction{offset: start, length: len(code) - start, op: opUnknown}
		}
		return decodedInstruction{offset: start, length: end - start, op: opCall}

	case b == 0xEB: // jmp rel8
		return decodeRelativeJump(code, start, offset, 1, opJmp)

	case b == 0xE9: // jmp rel32
		return decodeRelativeJump(code, start, offset, 4, opJmp)

	case b == 0x74: // jz rel8
		return decodeRelativeJump(code, start, offset, 1, opJz)

	case b == 0x75: // jnz rel8
		return decodeRelativeJump(code, start, offset, 1, opJnz)

	case b == 0x0F: // two-byte opcode map: jcc rel32, fence instructions
		return decodeTwoByteOpcode(code, start, offset)

	default:
		return decodedInstruction{offset: start, length: offset + 1 - start, op: opUnknown}
	}
}

func decodeRegisterForm(code []byte, start, offset int, wide bool, op opcode, dstIsRM bool) decodedInstruction {
	if offset+1 >= len(code) {
		return decodedInstruction{offset: start, length: len(code) - start, op: opUnknown}
	}
	mod, regField, rmField := modRM(code[offset+1])
	if mod != 0b11 { // memory operand: out of scope, fall back to Barrier
		return decodedInstruction{offset: start, length: offset + 2 - start, op: opUnknown}
	}
	dst, src := register(rmField), register(regField)
	if !dstIsRM {
		dst, src = register(regField), register(rmField)
	}
	return decodedInstruction{offset: start, length: offset + 2 - start, op: op, wide: wide, dst: dst, src: src, hasSrc: true}
}

func decodeGroup1Imm8(code []byte, start, offset int, wide bool) decodedInstruction {
	if offset+2 >= len(code) {
		return decodedInstruction{offset: start, length: len(code) - start, op: opUnknown}
	}
	mod, regField, rmField := modRM(code[offset+1])
	if mod != 0b11 {
		return decodedInstruction{offset: start, length: offset + 3 - start, op: opUnknown}
	}
	var op opcode
	switch regField {
	case 0:
		op = opAddImm
	case 5:
		op = opSubImm
	case 7:
		op = opCmpImm
	default:
		return decodedInstruction{offset: start, length: offset + 3 - start, op: opUnknown}
	}
	imm := int64(int8(code[offset+2]))
	return decodedInstruction{offset: start, length: offset + 3 - start, op: op, wide: wide, dst: register(rmField), immediate: imm, hasImm: true}
}

func decodeRelativeJump(code []byte, start, offset, dispSize int, op opcode) decodedInstruction {
	end := offset + 1 + dispSize
	if end > len(code) {
		return decodedInstruction{offset: start, length: len(code) - start, op: opUnknown}
	}
	disp := readSignedImmediate(code[offset+1 : end])
	return decodedInstruction{offset: start, length: end - start, op: op, displacement: int32(disp)}
}

func decodeTwoByteOpcode(code []byte, start, offset int) decodedInstruction {
	if offset+1 >= len(code) {
		return decodedInstruction{offset: start, length: len(code) - start, op: opUnknown}
	}
	b2 := code[offset+1]
	switch {
	case b2 == 0x84: // jz rel32
		return decodeRelativeJump(code, start, offset+1, 4, opJz)
	case b2 == 0x85: // jnz rel32
		return decodeRelativeJump(code, start, offset+1, 4, opJnz)
	case b2 == 0xAE && offset+2 < len(code) && (code[offset+2] == 0xE8 || code[offset+2] == 0xF0 || code[offset+2] == 0xF8):
		// lfence (0F AE E8), mfence (0F AE F0), sfence (0F AE F8)
		return decodedInstruction{offset: start, length: offset + 3 - start, op: opFence}
	default:
		return decodedInstruction{offset: start, length: offset + 2 - start, op: opUnknown}
	}
}

func readSignedImmediate(b []byte) int64 {
	switch len(b) {
	case 1:
		return int64(int8(b[0]))
	case 4:
		return int64(int32(binary.LittleEndian.Uint32(b)))
	case 8:
		return int64(binary.LittleEndian.Uint64(b))
	default:
		return 0
	}
}
