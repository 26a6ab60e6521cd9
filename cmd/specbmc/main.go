// SPDX-License-Identifier: Apache-2.0

// Command specbmc is a bounded model checker for Spectre-PHT and Spectre-STL
// speculative-execution side channels (§1, §6). It wires the loader →
// HIR transformation → MIR → LIR → optimizer → solver pipeline together
// and renders the result, following the teacher's "library packages
// return errors, main prints them" discipline (§7).
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/pflag"

	"specbmc/internal/cex"
	"specbmc/internal/config"
	perr "specbmc/internal/errors"
	"specbmc/internal/environment"
	"specbmc/internal/hir"
	"specbmc/internal/hir/transform"
	"specbmc/internal/lir"
	"specbmc/internal/loader"
	"specbmc/internal/loader/elf"
	"specbmc/internal/loader/muasm"
	"specbmc/internal/mir"
	"specbmc/internal/optimizer"
	"specbmc/internal/solver"
)

// flags mirrors §6's CLI contract.
type flags struct {
	env         string
	opt         string
	check       string
	solverName  string
	function    string
	cfgPath     string
	transCFG    string
	smtPath     string
	skipSolving bool
	debug       bool
}

func main() {
	os.Exit(run())
}

// run returns the process exit code: 0 the query held (no leak found), 1 a
// leak was found or the input was rejected, -1 an internal/pipeline error
// (§6).
func run() int {
	f, inputPath, err := parseFlags(os.Args[1:])
	if err != nil {
		color.Red("%s", err)
		return -1
	}

	env, err := loadEnvironment(f)
	if err != nil {
		reportError(err, "", "")
		return -1
	}
	if f.debug {
		env.Debug = true
	}

	program, err := loadProgram(inputPath, f.function)
	if err != nil {
		reportError(err, inputPath, "")
		return 1
	}

	if err := runHIRPipeline(program, env); err != nil {
		reportError(err, inputPath, "")
		return -1
	}

	if f.cfgPath != "" {
		if err := os.WriteFile(f.cfgPath, []byte(program.String()), 0o644); err != nil {
			color.Red("writing --cfg: %s", err)
			return -1
		}
	}

	mirProgram, err := mir.Lower(program)
	if err != nil {
		reportError(err, inputPath, "")
		return -1
	}

	lirProgram, err := lir.Lower(mirProgram)
	if err != nil {
		reportError(err, inputPath, "")
		return -1
	}

	if f.transCFG != "" {
		if err := os.WriteFile(f.transCFG, []byte(lirProgram.String()), 0o644); err != nil {
			color.Red("writing --trans-cfg: %s", err)
			return -1
		}
	}

	fmt.Printf("Running optimizer (level=%s)...\n", env.Optimization)
	optimizer.NewPipeline(env.Optimization).Run(lirProgram)

	if err := lir.Validate(lirProgram); err != nil {
		reportError(err, inputPath, "")
		return -1
	}

	if f.skipSolving {
		color.Green("skip-solving: pipeline completed, no query issued")
		return 0
	}

	return solve(lirProgram, program, env, f)
}

func parseFlags(args []string) (flags, string, error) {
	fs := pflag.NewFlagSet("specbmc", pflag.ContinueOnError)

	var f flags
	fs.StringVarP(&f.env, "env", "e", "", "path to a YAML environment file")
	fs.StringVarP(&f.opt, "opt", "o", "", "optimization level override: none|basic|full")
	fs.StringVarP(&f.check, "check", "c", "", "leak check override: only_transient_leaks|only_normal_leaks|all_leaks")
	fs.StringVar(&f.solverName, "solver", "", "solver override: z3|cvc4|yices2")
	fs.StringVar(&f.function, "func", "", "function to analyze (ELF input only; defaults to the entry point)")
	fs.StringVar(&f.cfgPath, "cfg", "", "write the fully-transformed control flow graph to this path")
	fs.StringVar(&f.transCFG, "trans-cfg", "", "write the LIR program to this path")
	fs.StringVar(&f.smtPath, "smt", "", "write the encoded SMT-LIB2 formula to this path")
	fs.BoolVar(&f.skipSolving, "skip-solving", false, "run the pipeline but do not invoke the solver")
	fs.BoolVarP(&f.debug, "debug", "d", false, "set the environment's debug flag (no pipeline stage reads it)")

	if err := fs.Parse(args); err != nil {
		return flags{}, "", err
	}

	remaining := fs.Args()
	if len(remaining) != 1 {
		fs.Usage()
		return flags{}, "", fmt.Errorf("expected exactly one input file, got %d", len(remaining))
	}
	return f, remaining[0], nil
}

func loadEnvironment(f flags) (environment.Environment, error) {
	env, err := config.Load(f.env)
	if err != nil {
		return environment.Environment{}, err
	}

	if f.opt != "" {
		switch strings.ToLower(f.opt) {
		case "none":
			env.Optimization = environment.OptimizationDisabled
		case "basic":
			env.Optimization = environment.OptimizationBasic
		case "full":
			env.Optimization = environment.OptimizationFull
		default:
			return env, perr.Preconditionf("unknown --opt value %q", f.opt)
		}
	}
	if f.check != "" {
		switch strings.ToLower(f.check) {
		case "only_transient_leaks":
			env.Analysis.Check = environment.OnlyTransientExecutionLeaks
		case "only_normal_leaks":
			env.Analysis.Check = environment.OnlyNormalExecutionLeaks
		case "all_leaks":
			env.Analysis.Check = environment.AllLeaks
		default:
			return env, perr.Preconditionf("unknown --check value %q", f.check)
		}
	}
	if f.solverName != "" {
		switch strings.ToLower(f.solverName) {
		case "z3":
			env.Solver = environment.Z3
		case "cvc4":
			env.Solver = environment.CVC4
		case "yices2":
			env.Solver = environment.Yices2
		default:
			return env, perr.Preconditionf("unknown --solver value %q", f.solverName)
		}
	}
	return env, nil
}

// loaderKind picks the loader by the input's file extension: .muasm source
// vs. an ELF object (§6 "Loader boundary").
func loaderKind(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".muasm") {
		return "muasm"
	}
	return "elf"
}

func newNamedLoader(kind, path, functionName string) (loader.Loader, error) {
	switch kind {
	case "muasm":
		return muasm.NewLoader(path), nil
	case "elf":
		return elf.NewLoader(path, functionName), nil
	default:
		return nil, perr.Preconditionf("loader: unknown kind %q", kind)
	}
}

// loadProgram builds an hir.Module from every function the input defines,
// then runs Inline to resolve it down to the single hir.Program the rest
// of the pipeline operates on (§4.C.9, §9 "call_graph/function_inlining").
// A .muasm file always has exactly one function, so this degenerates to a
// no-op inline for that loader; an ELF object can name several, letting
// Inline actually splice callee graphs into the selected entry function.
func loadProgram(path, functionName string) (*hir.Program, error) {
	kind := loaderKind(path)

	entryLoader, err := newNamedLoader(kind, path, functionName)
	if err != nil {
		return nil, err
	}
	info, err := entryLoader.AssemblyInfo()
	if err != nil {
		return nil, err
	}

	entryName := functionName
	if entryName == "" {
		for _, fn := range info.Functions {
			if fn.Address == info.Entry {
				entryName = fn.Name
			}
		}
	}
	if entryName == "" && len(info.Functions) > 0 {
		entryName = info.Functions[0].Name
	}
	if entryName == "" {
		return nil, perr.Preconditionf("%s: no functions found", path)
	}

	module := &hir.Module{EntryFunction: entryName}
	for _, fn := range info.Functions {
		fnLoader, err := newNamedLoader(kind, path, fn.Name)
		if err != nil {
			return nil, err
		}
		fnProgram, err := fnLoader.LoadProgram()
		if err != nil {
			return nil, err
		}
		module.Functions = append(module.Functions, hir.NewFunction(fn.Name, fn.Address, fnProgram.ControlFlowGraph()))
	}

	return transform.Inline{}.Apply(module)
}

// runHIRPipeline runs every §4.C transformation over program in place, in
// the order spec.md and SPEC_FULL.md §4.C/§9 describe: inlining has
// already happened in loadProgram, so the pipeline starts at loop
// unwinding (preceded by ExplicitProgramCounter when trace observations
// are enabled) and ends at SSA construction / phi elimination.
func runHIRPipeline(program *hir.Program, env environment.Environment) error {
	pipeline := transform.NewPipeline()

	if env.Analysis.TraceObservations {
		pipeline.AddPass(transform.ExplicitProgramCounter{
			ObserveProgramCounter: true,
			ObserveMemoryLoads:    true,
		})
	}

	pipeline.AddPass(transform.NewLoopUnwinding(env.Analysis.Unwind, env.Analysis.UnwindingGuard))

	pipeline.AddPass(transform.InstructionEffects{
		ModelCacheEffects: env.Architecture.Cache,
		ModelBTBEffects:   env.Architecture.BTB,
		ModelPHTEffects:   env.Architecture.PHT,
	})

	te := transform.NewTransientExecution()
	te.SpectrePHT = env.Analysis.SpectrePHT
	te.SpectreSTL = env.Analysis.SpectreSTL
	te.PredictorStrategy = env.Analysis.PredictorStrategy
	if env.Architecture.SpeculationWindow > 0 {
		te.SpeculationWindow = env.Architecture.SpeculationWindow
	}
	pipeline.AddPass(te)

	pipeline.AddPass(transform.InitGlobalVariables{})

	im := transform.NewInitMemory()
	im.DefaultSecurityLevel = env.Policy.MemoryDefault
	im.LowSecurityAddresses = env.Policy.LowAddresses
	im.HighSecurityAddresses = env.Policy.HighAddresses
	pipeline.AddPass(im)

	pipeline.AddPass(transform.InitStack{})

	pipeline.AddPass(transform.Observations{
		CacheAvailable: env.Architecture.Cache,
		BTBAvailable:   env.Architecture.BTB,
		PHTAvailable:   env.Architecture.PHT,

		ObserveEndOfProgram:          true,
		ObserveEffectfulInstructions: true,
		ObserveControlFlowJoins:      true,
	})

	if env.Analysis.TraceObservations {
		pipeline.AddPass(transform.ProgramCounterModelObservations{
			Check:                 env.Analysis.Check,
			ObserveProgramCounter: true,
			ObserveMemoryLoads:    true,
		})
	}

	pipeline.AddPass(transform.ExplicitEffects{})

	if env.Analysis.Check == environment.OnlyTransientExecutionLeaks {
		pipeline.AddPass(transform.NonSpecObsEquivalence{
			CacheAvailable: env.Architecture.Cache,
			BTBAvailable:   env.Architecture.BTB,
			PHTAvailable:   env.Architecture.PHT,
		})
	}

	pipeline.AddPass(transform.SSATransformation{})
	pipeline.AddPass(transform.PhiElimination{})

	return pipeline.Run(program)
}

func solve(lirProgram *lir.Program, hirProgram *hir.Program, env environment.Environment, f flags) int {
	s, err := solver.New(env)
	if err != nil {
		reportError(err, "", "")
		return -1
	}
	defer func() { _ = s.Close() }()

	if err := s.EncodeProgram(lirProgram); err != nil {
		reportError(err, "", "")
		return -1
	}

	if f.smtPath != "" {
		if err := s.DumpFormulaToFile(f.smtPath); err != nil {
			color.Red("writing --smt: %s", err)
			return -1
		}
	}

	fmt.Printf("Checking assertions with %s...\n", env.Solver)
	result, err := s.CheckAssertions()
	if err != nil {
		reportError(err, "", "")
		return -1
	}

	if result.Holds {
		color.Green("no leak found: every assertion holds")
		return 0
	}

	color.Red("leak found: an assertion was violated")
	example, err := cex.Build(hirProgram, result.Model)
	if err != nil {
		reportError(err, "", "")
		return -1
	}
	fmt.Println(example.String())
	return 1
}

// reportError renders err using the teacher's caret-style reporter when it
// carries a source position the reporter can resolve against, falling back
// to a plain colored message otherwise (§7).
func reportError(err error, sourcePath, source string) {
	pe, ok := err.(*perr.PipelineError)
	if !ok {
		color.Red("%s", err)
		return
	}

	filename := pe.Position.Filename
	if filename == "" {
		filename = sourcePath
	}
	if source == "" && filename != "" {
		if data, readErr := os.ReadFile(filename); readErr == nil {
			source = string(data)
		}
	}

	if source == "" {
		color.Red("%s", pe)
		return
	}

	reporter := perr.NewReporter(filename, source)
	fmt.Print(reporter.Format(pe))
}
