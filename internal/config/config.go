// Package config parses the YAML environment file (§6) into a resolved
// environment.Environment, applying every documented default for a key the
// file omits.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"

	"specbmc/internal/environment"
	perr "specbmc/internal/errors"
)

// document mirrors the YAML environment file's key layout exactly (§6).
// Every leaf field is a pointer or a slice so "present but zero" (e.g.
// `debug: false`) is distinguishable from "absent" once *yaml.Unmarshal*
// runs; resolve then applies environment.Default()'s values for anything
// left nil.
type document struct {
	Optimization *string `yaml:"optimization"`
	Solver       *string `yaml:"solver"`
	Analysis     struct {
		SpectrePHT        *bool   `yaml:"spectre_pht"`
		SpectreSTL        *bool   `yaml:"spectre_stl"`
		Check             *string `yaml:"check"`
		PredictorStrategy *string `yaml:"predictor_strategy"`
		Unwind            *int    `yaml:"unwind"`
		UnwindingGuard    *string `yaml:"unwinding_guard"`
		TraceObservations *bool   `yaml:"trace_observations"`
	} `yaml:"analysis"`
	Architecture struct {
		Cache             *bool `yaml:"cache"`
		BTB               *bool `yaml:"btb"`
		PHT               *bool `yaml:"pht"`
		SpeculationWindow *int  `yaml:"speculation_window"`
	} `yaml:"architecture"`
	Policy struct {
		Registers struct {
			Default *string  `yaml:"default"`
			Low     []string `yaml:"low"`
			High    []string `yaml:"high"`
		} `yaml:"registers"`
		Memory struct {
			Default *string  `yaml:"default"`
			Low     []string `yaml:"low"`
			High    []string `yaml:"high"`
		} `yaml:"memory"`
	} `yaml:"policy"`
	Debug *bool `yaml:"debug"`
}

// Load reads and parses the environment file at path, returning the
// resolved Environment. A missing path is not an error: Load returns
// environment.Default() unchanged, matching the CLI's optional -e/--env
// flag (§6).
func Load(path string) (environment.Environment, error) {
	if path == "" {
		return environment.Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return environment.Environment{}, perr.WrapIO("reading environment file", perr.Position{Filename: path}, err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return environment.Environment{}, perr.WrapIO("parsing environment file", perr.Position{Filename: path}, err)
	}

	return resolve(doc)
}

func resolve(doc document) (environment.Environment, error) {
	env := environment.Default()

	if doc.Optimization != nil {
		level, err := parseOptimizationLevel(*doc.Optimization)
		if err != nil {
			return env, err
		}
		env.Optimization = level
	}
	if doc.Solver != nil {
		solver, err := parseSolver(*doc.Solver)
		if err != nil {
			return env, err
		}
		env.Solver = solver
	}

	if doc.Analysis.SpectrePHT != nil {
		env.Analysis.SpectrePHT = *doc.Analysis.SpectrePHT
	}
	if doc.Analysis.SpectreSTL != nil {
		env.Analysis.SpectreSTL = *doc.Analysis.SpectreSTL
	}
	if doc.Analysis.Check != nil {
		check, err := parseCheck(*doc.Analysis.Check)
		if err != nil {
			return env, err
		}
		env.Analysis.Check = check
	}
	if doc.Analysis.PredictorStrategy != nil {
		strategy, err := parsePredictorStrategy(*doc.Analysis.PredictorStrategy)
		if err != nil {
			return env, err
		}
		env.Analysis.PredictorStrategy = strategy
	}
	if doc.Analysis.Unwind != nil {
		if *doc.Analysis.Unwind < 0 {
			return env, perr.Wrap(perr.ParseError, perr.Position{}, errf("analysis.unwind must be >= 0, got %d", *doc.Analysis.Unwind))
		}
		env.Analysis.Unwind = *doc.Analysis.Unwind
	}
	if doc.Analysis.UnwindingGuard != nil {
		guard, err := parseUnwindingGuard(*doc.Analysis.UnwindingGuard)
		if err != nil {
			return env, err
		}
		env.Analysis.UnwindingGuard = guard
	}
	if doc.Analysis.TraceObservations != nil {
		env.Analysis.TraceObservations = *doc.Analysis.TraceObservations
	}

	if doc.Architecture.Cache != nil {
		env.Architecture.Cache = *doc.Architecture.Cache
	}
	if doc.Architecture.BTB != nil {
		env.Architecture.BTB = *doc.Architecture.BTB
	}
	if doc.Architecture.PHT != nil {
		env.Architecture.PHT = *doc.Architecture.PHT
	}
	if doc.Architecture.SpeculationWindow != nil {
		w := *doc.Architecture.SpeculationWindow
		if w < 1 || w >= environment.MaxSpeculationWindow {
			return env, perr.Wrap(perr.ParseError, perr.Position{}, errf(
				"architecture.speculation_window must be in [1, %d), got %d", environment.MaxSpeculationWindow, w))
		}
		env.Architecture.SpeculationWindow = w
	}

	if doc.Policy.Registers.Default != nil {
		level, err := parseSecurityLevel(*doc.Policy.Registers.Default)
		if err != nil {
			return env, err
		}
		env.Policy.RegistersDefault = level
	}
	env.Policy.LowRegisters = doc.Policy.Registers.Low
	env.Policy.HighRegisters = doc.Policy.Registers.High

	if doc.Policy.Memory.Default != nil {
		level, err := parseSecurityLevel(*doc.Policy.Memory.Default)
		if err != nil {
			return env, err
		}
		env.Policy.MemoryDefault = level
	}
	env.Policy.LowAddresses = parseAddresses(doc.Policy.Memory.Low)
	env.Policy.HighAddresses = parseAddresses(doc.Policy.Memory.High)

	if doc.Debug != nil {
		env.Debug = *doc.Debug
	}

	return env, nil
}

func parseAddresses(names []string) []uint64 {
	var out []uint64
	for _, n := range names {
		n = strings.TrimPrefix(strings.TrimSpace(n), "0x")
		v, err := strconv.ParseUint(n, 16, 64)
		if err != nil {
			continue // a symbolic register name in a memory low/high list, not an address
		}
		out = append(out, v)
	}
	return out
}

func parseOptimizationLevel(s string) (environment.OptimizationLevel, error) {
	switch s {
	case "none":
		return environment.OptimizationDisabled, nil
	case "basic":
		return environment.OptimizationBasic, nil
	case "full":
		return environment.OptimizationFull, nil
	default:
		return 0, perr.Wrap(perr.ParseError, perr.Position{}, errf("unknown optimization level %q", s))
	}
}

func parseSolver(s string) (environment.Solver, error) {
	switch s {
	case "z3":
		return environment.Z3, nil
	case "cvc4":
		return environment.CVC4, nil
	case "yices2":
		return environment.Yices2, nil
	default:
		return 0, perr.Wrap(perr.ParseError, perr.Position{}, errf("unknown solver %q", s))
	}
}

func parseCheck(s string) (environment.Check, error) {
	switch s {
	case "only_transient_leaks":
		return environment.OnlyTransientExecutionLeaks, nil
	case "only_normal_leaks":
		return environment.OnlyNormalExecutionLeaks, nil
	case "all_leaks":
		return environment.AllLeaks, nil
	default:
		return 0, perr.Wrap(perr.ParseError, perr.Position{}, errf("unknown analysis.check %q", s))
	}
}

func parsePredictorStrategy(s string) (environment.PredictorStrategy, error) {
	switch s {
	case "choose_path":
		return environment.ChoosePath, nil
	case "invert_condition":
		return environment.InvertCondition, nil
	default:
		return 0, perr.Wrap(perr.ParseError, perr.Position{}, errf("unknown analysis.predictor_strategy %q", s))
	}
}

func parseUnwindingGuard(s string) (environment.UnwindingGuard, error) {
	switch s {
	case "assumption":
		return environment.UnwindingAssumption, nil
	case "assertion":
		return environment.UnwindingAssertion, nil
	default:
		return 0, perr.Wrap(perr.ParseError, perr.Position{}, errf("unknown analysis.unwinding_guard %q", s))
	}
}

func parseSecurityLevel(s string) (environment.SecurityLevel, error) {
	switch s {
	case "low":
		return environment.SecurityLow, nil
	case "high":
		return environment.SecurityHigh, nil
	default:
		return 0, perr.Wrap(perr.ParseError, perr.Position{}, errf("unknown security level %q", s))
	}
}

func errf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
