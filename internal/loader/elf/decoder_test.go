package elf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeInstructionRecognizesFixedFormOpcodes(t *testing.T) {
	cases := []struct {
		name string
		code []byte
		want opcode
	}{
		{"nop", []byte{0x90}, opNop},
		{"ret", []byte{0xC3}, opRet},
		{"mov eax, imm32", []byte{0xB8, 0x2A, 0x00, 0x00, 0x00}, opMovImm},
		{"mov rax, imm64 (REX.W)", []byte{0x48, 0xB8, 1, 0, 0, 0, 0, 0, 0, 0}, opMovImm},
		{"mov rcx, rax (REX.W, register-direct)", []byte{0x48, 0x89, 0xC1}, opMovReg},
		{"add eax, ecx", []byte{0x01, 0xC8}, opAddReg},
		{"sub eax, ecx", []byte{0x29, 0xC8}, opSubReg},
		{"cmp eax, ecx", []byte{0x39, 0xC8}, opCmpReg},
		{"test eax, ecx", []byte{0x85, 0xC8}, opTestReg},
		{"add eax, imm8 (group1 /0)", []byte{0x83, 0xC0, 0x05}, opAddImm},
		{"cmp eax, imm8 (group1 /7)", []byte{0x83, 0xF8, 0x00}, opCmpImm},
		{"jmp rel8", []byte{0xEB, 0x10}, opJmp},
		{"jmp rel32", []byte{0xE9, 0x10, 0x00, 0x00, 0x00}, opJmp},
		{"jz rel8", []byte{0x74, 0x10}, opJz},
		{"jnz rel8", []byte{0x75, 0x10}, opJnz},
		{"jz rel32", []byte{0x0F, 0x84, 0x10, 0x00, 0x00, 0x00}, opJz},
		{"jnz rel32", []byte{0x0F, 0x85, 0x10, 0x00, 0x00, 0x00}, opJnz},
		{"lfence", []byte{0x0F, 0xAE, 0xE8}, opFence},
		{"call rel32", []byte{0xE8, 0x01, 0x00, 0x00, 0x00}, opCall},
		{"unrecognized byte", []byte{0xFF}, opUnknown},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			inst := decodeInstruction(c.code, 0)
			assert.Equal(t, c.want, inst.op)
			assert.Equal(t, len(c.code), inst.length)
			assert.GreaterOrEqual(t, inst.length, 1)
		})
	}
}

func TestDecodeInstructionMemoryOperandFallsBackToUnknown(t *testing.T) {
	// mod != 11 (memory operand): 0x01 /r with mod=00 is out of this
	// decoder's scope and must not be misread as a register form.
	inst := decodeInstruction([]byte{0x01, 0x00}, 0)
	assert.Equal(t, opUnknown, inst.op)
}

func TestDecodeInstructionNeverStalls(t *testing.T) {
	// A truncated multi-byte instruction must still consume at least one
	// byte so decodeAll always makes progress.
	inst := decodeInstruction([]byte{0xB8, 0x01}, 0)
	require.GreaterOrEqual(t, inst.length, 1)
}

func TestDecodeAllTracksOffsetsForJumpResolution(t *testing.T) {
	code := []byte{
		0x90,             // 0: nop
		0xEB, 0x00,       // 1: jmp +0 (target: offset 3, the byte right after)
		0xC3,             // 3: ret
	}
	instructions, blockAt, err := decodeAll(code)
	require.NoError(t, err)
	require.Len(t, instructions, 3)
	assert.Equal(t, 0, blockAt[0])
	assert.Equal(t, 1, blockAt[1])
	assert.Equal(t, 2, blockAt[3])
}
