package muasm

import (
	"os"

	"specbmc/internal/hir"
	"specbmc/internal/loader"
)

const (
	mainAddress uint64 = 0
	mainName           = "main"
)

// Loader reads a .muasm source file and lifts it to HIR (muasm.rs's
// MuasmLoader). Every .muasm program is treated as a single function named
// "main" starting at address 0 — the format has no function boundaries of
// its own.
type Loader struct {
	path string
}

// NewLoader returns a Loader reading from path.
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

func (l *Loader) AssemblyInfo() (loader.AssemblyInfo, error) {
	return loader.AssemblyInfo{
		Entry:     mainAddress,
		Functions: []loader.FunctionInfo{{Address: mainAddress, Name: mainName}},
	}, nil
}

func (l *Loader) LoadProgram() (*hir.Program, error) {
	source, err := os.ReadFile(l.path)
	if err != nil {
		return nil, err
	}

	parsed, err := ParseString(l.path, string(source))
	if err != nil {
		return nil, err
	}

	cfg, err := translateToHIR(parsed)
	if err != nil {
		return nil, err
	}

	program := hir.NewProgram(cfg)
	program.EntryLabel = mainName
	return program, nil
}

var _ loader.Loader = (*Loader)(nil)
