package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specbmc/internal/environment"
)

func TestLoadMissingPathReturnsDefault(t *testing.T) {
	env, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, environment.Default(), env)
}

func TestLoadOverridesOnlySpecifiedKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "env.yaml")
	content := []byte(`
optimization: basic
solver: yices2
analysis:
  spectre_stl: true
  check: all_leaks
  unwind: 4
architecture:
  speculation_window: 20
policy:
  registers:
    default: high
  memory:
    default: low
debug: true
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	env, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, environment.OptimizationBasic, env.Optimization)
	assert.Equal(t, environment.Yices2, env.Solver)
	assert.True(t, env.Analysis.SpectreSTL)
	assert.True(t, env.Analysis.SpectrePHT, "unspecified key keeps its default")
	assert.Equal(t, environment.AllLeaks, env.Analysis.Check)
	assert.Equal(t, 4, env.Analysis.Unwind)
	assert.Equal(t, 20, env.Architecture.SpeculationWindow)
	assert.True(t, env.Architecture.Cache, "unspecified architecture key keeps its default")
	assert.Equal(t, environment.SecurityHigh, env.Policy.RegistersDefault)
	assert.Equal(t, environment.SecurityLow, env.Policy.MemoryDefault)
	assert.True(t, env.Debug)
}

func TestLoadRejectsUnknownEnumValue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "env.yaml")
	require.NoError(t, os.WriteFile(path, []byte("solver: gurobi\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsOutOfRangeSpeculationWindow(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "env.yaml")
	require.NoError(t, os.WriteFile(path, []byte("architecture:\n  speculation_window: 0\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
