package elf

import (
	stdelf "debug/elf"
	"fmt"
	"sort"

	"specbmc/internal/hir"
	"specbmc/internal/loader"
)

// Loader lifts one function's .text bytes out of an ELF object file. It
// implements loader.Loader the same way internal/loader/muasm.Loader does:
// a thin wrapper that opens the file, decodes, and lowers, leaving the
// actual lifting to translateToHIR.
type Loader struct {
	path         string
	functionName string // empty selects the file's entry point
}

// NewLoader builds a Loader for the ELF object at path. functionName, if
// non-empty, selects a specific symbol to lift instead of the file's
// entry point (mirroring falcon.rs's load_program function_name_or_id
// parameter, minus its by-numeric-id form: this port's symbol table walk
// has no stable function-id ordering to match against).
func NewLoader(path, functionName string) *Loader {
	return &Loader{path: path, functionName: functionName}
}

var _ loader.Loader = (*Loader)(nil)

func (l *Loader) open() (*stdelf.File, error) {
	f, err := stdelf.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("elf: opening %s: %w", l.path, err)
	}
	return f, nil
}

func (l *Loader) AssemblyInfo() (loader.AssemblyInfo, error) {
	f, err := l.open()
	if err != nil {
		return loader.AssemblyInfo{}, err
	}
	defer func() { _ = f.Close() }()

	functions, err := definedFunctions(f)
	if err != nil {
		return loader.AssemblyInfo{}, err
	}

	var infos []loader.FunctionInfo
	for _, fn := range functions {
		infos = append(infos, loader.FunctionInfo{Address: fn.Value, Name: fn.Name})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Address < infos[j].Address })

	return loader.AssemblyInfo{Entry: f.Entry, Functions: infos}, nil
}

func (l *Loader) LoadProgram() (*hir.Program, error) {
	f, err := l.open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	functions, err := definedFunctions(f)
	if err != nil {
		return nil, err
	}

	target, err := selectFunction(f, functions, l.functionName)
	if err != nil {
		return nil, err
	}

	code, err := functionBytes(f, target)
	if err != nil {
		return nil, err
	}

	cfg, err := translateToHIR(code)
	if err != nil {
		return nil, err
	}

	program := hir.NewProgram(cfg)
	program.EntryLabel = target.Name
	return program, nil
}

// definedFunctions returns every STT_FUNC symbol with a non-zero size,
// i.e. ones the section/symbol walk can actually bound a byte range for.
func definedFunctions(f *stdelf.File) ([]stdelf.Symbol, error) {
	symbols, err := f.Symbols()
	if err != nil {
		return nil, fmt.Errorf("elf: reading symbol table: %w", err)
	}

	var functions []stdelf.Symbol
	for _, sym := range symbols {
		if stdelf.ST_TYPE(sym.Info) == stdelf.STT_FUNC && sym.Size > 0 {
			functions = append(functions, sym)
		}
	}
	return functions, nil
}

// selectFunction finds the symbol to lift: by name if given, otherwise the
// function symbol whose address matches the file's entry point.
func selectFunction(f *stdelf.File, functions []stdelf.Symbol, name string) (stdelf.Symbol, error) {
	if name != "" {
		for _, fn := range functions {
			if fn.Name == name {
				return fn, nil
			}
		}
		return stdelf.Symbol{}, fmt.Errorf("elf: function %q not found", name)
	}

	for _, fn := range functions {
		if fn.Value == f.Entry {
			return fn, nil
		}
	}
	return stdelf.Symbol{}, fmt.Errorf("elf: no function symbol at entry point %#x", f.Entry)
}

// functionBytes slices a symbol's bytes out of the section that contains
// it, following the original's single-function-at-a-time limitation
// (falcon.rs's load_program also requires naming exactly one function).
func functionBytes(f *stdelf.File, sym stdelf.Symbol) ([]byte, error) {
	for _, sec := range f.Sections {
		if sec.Flags&stdelf.SHF_EXECINSTR == 0 {
			continue
		}
		if sym.Value < sec.Addr || sym.Value+sym.Size > sec.Addr+sec.Size {
			continue
		}
		data, err := sec.Data()
		if err != nil {
			return nil, fmt.Errorf("elf: reading section %s: %w", sec.Name, err)
		}
		start := sym.Value - sec.Addr
		return data[start : start+sym.Size], nil
	}
	return nil, fmt.Errorf("elf: no executable section contains symbol %q at %#x", sym.Name, sym.Value)
}
