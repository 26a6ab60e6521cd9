// Package loader defines the boundary between a program artifact (a
// .muasm source file or an ELF binary) and the HIR core (spec.md §6
// "Loader boundary"). Grounded on
// original_source/src/loader/{mod,muasm,falcon}.rs's shared Loader trait.
package loader

import "specbmc/internal/hir"

// FunctionInfo names one function a loaded binary/source defines.
type FunctionInfo struct {
	Address uint64
	Name    string
}

// AssemblyInfo is the loader's metadata summary: its entry point and the
// functions it found, ahead of actually lifting them to HIR.
type AssemblyInfo struct {
	Entry     uint64
	Functions []FunctionInfo
}

// Loader turns a program artifact into HIR (mod.rs's `Loader` trait).
type Loader interface {
	AssemblyInfo() (AssemblyInfo, error)
	LoadProgram() (*hir.Program, error)
}
