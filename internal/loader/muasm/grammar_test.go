package muasm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStringAcceptsEveryInstructionForm(t *testing.T) {
	source := `
start:
  skip
  barrier
  flush
  r0 = 1
  r1 = add(r0, 2)
  r2 = load[r0]
  store[r1] = r2
  r3 = r1 if r2
  beqz r0, start
  jmp 9
`
	program, err := ParseString("t.muasm", source)
	require.NoError(t, err)
	require.Len(t, program.Lines, 10)

	assert.NotNil(t, program.Lines[0].Instruction.Skip)
	assert.Equal(t, "start", *program.Lines[0].Label)
	assert.NotNil(t, program.Lines[1].Instruction.Barrier)
	assert.NotNil(t, program.Lines[2].Instruction.Flush)
	assert.NotNil(t, program.Lines[3].Instruction.Assign)
	assert.NotNil(t, program.Lines[4].Instruction.Assign.Source.Value)
	assert.NotNil(t, program.Lines[5].Instruction.Assign.Source.Load)
	assert.NotNil(t, program.Lines[6].Instruction.Store)
	assert.NotNil(t, program.Lines[7].Instruction.Assign.Condition)
	assert.NotNil(t, program.Lines[8].Instruction.Beqz)
	assert.NotNil(t, program.Lines[9].Instruction.Jump)
}

func TestParseStringParsesTernaryWithCallStyleOperators(t *testing.T) {
	source := `r0 = eq(r1, 0) ? neg(r2) : sext(r3)`
	program, err := ParseString("t.muasm", source)
	require.NoError(t, err)
	require.Len(t, program.Lines, 1)

	value := program.Lines[0].Instruction.Assign.Source.Value
	require.NotNil(t, value.Rest)
	require.NotNil(t, value.Cond.Binary)
	assert.Equal(t, "eq", value.Cond.Binary.Op)
	require.NotNil(t, value.Rest.Then.Cond.Unary)
	assert.Equal(t, "neg", value.Rest.Then.Cond.Unary.Op)
	require.NotNil(t, value.Rest.Else.Cond.Unary)
	assert.Equal(t, "sext", value.Rest.Else.Cond.Unary.Op)
}

func TestParseStringRejectsGarbage(t *testing.T) {
	_, err := ParseString("t.muasm", "r0 = ===")
	assert.Error(t, err)
}
