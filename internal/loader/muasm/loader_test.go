package muasm

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoaderLoadProgramEndToEnd(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prog.muasm")
	source := "r0 = 1\nr1 = load[r0]\nbeqz r1, done\ndone:\n  skip\n"
	require.NoError(t, os.WriteFile(path, []byte(source), 0o644))

	l := NewLoader(path)

	info, err := l.AssemblyInfo()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), info.Entry)
	require.Len(t, info.Functions, 1)
	assert.Equal(t, "main", info.Functions[0].Name)

	program, err := l.LoadProgram()
	require.NoError(t, err)
	require.NotNil(t, program)
	assert.Equal(t, "main", program.EntryLabel)

	_, err = program.ControlFlowGraph().Entry()
	assert.NoError(t, err)
}

func TestLoaderLoadProgramPropagatesParseErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.muasm")
	require.NoError(t, os.WriteFile(path, []byte("r0 === garbage"), 0o644))

	_, err := NewLoader(path).LoadProgram()
	assert.Error(t, err)
}
