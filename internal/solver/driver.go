package solver

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"specbmc/internal/environment"
	perr "specbmc/internal/errors"
	"specbmc/internal/expr"
	"specbmc/internal/lir"
)

// driver is a live solver subprocess session, the Go equivalent of
// original_source/src/solver/rsmt.rs's RSMT wrapper around rsmt2::Solver:
// a child process driven over stdin/stdout with every command also
// buffered so DumpFormulaToFile can replay the session later.
type driver struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	buf    bytes.Buffer

	assertionNames []string
}

// solverBinary names the executable each environment.Solver invokes and the
// flags that put it in SMT-LIB2-over-stdin interactive mode.
func solverBinary(t environment.Solver) (string, []string) {
	switch t {
	case environment.Z3:
		return "z3", []string{"-in"}
	case environment.CVC4:
		return "cvc4", []string{"--lang", "smt2", "--incremental"}
	case environment.Yices2:
		return "yices-smt2", []string{"--incremental"}
	default:
		return "z3", []string{"-in"}
	}
}

func newDriver(solverType environment.Solver) (*driver, error) {
	name, args := solverBinary(solverType)
	cmd := exec.Command(name, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, perr.Solverf("solver: failed to open stdin pipe: %v", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, perr.Solverf("solver: failed to open stdout pipe: %v", err)
	}
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, perr.Solverf("solver: failed to start %s: %v", name, err)
	}

	d := &driver{cmd: cmd, stdin: stdin, stdout: bufio.NewReader(stdout)}
	d.send(buildPreamble(solverType))
	return d, nil
}

func (d *driver) send(command string) {
	d.buf.WriteString(command)
	if !strings.HasSuffix(command, "\n") {
		d.buf.WriteString("\n")
	}
	fmt.Fprintln(d.stdin, command)
}

// readLine reads a single response line, skipping blank lines the solver
// sometimes emits between commands.
func (d *driver) readLine() (string, error) {
	for {
		line, err := d.stdout.ReadString('\n')
		if err != nil {
			return "", perr.Solverf("solver: failed to read response: %v", err)
		}
		line = strings.TrimSpace(line)
		if line != "" {
			return line, nil
		}
	}
}

func (d *driver) getValue(term string) (string, error) {
	d.send(fmt.Sprintf("(get-value (%s))", term))
	return d.readBalanced()
}

// readBalanced reads lines until parentheses balance, since a get-value
// response can span multiple lines for a large array model.
func (d *driver) readBalanced() (string, error) {
	var b strings.Builder
	depth := 0
	started := false
	for {
		line, err := d.readLine()
		if err != nil {
			return "", err
		}
		b.WriteString(line)
		b.WriteString(" ")
		for _, r := range line {
			switch r {
			case '(':
				depth++
				started = true
			case ')':
				depth--
			}
		}
		if started && depth <= 0 {
			return b.String(), nil
		}
	}
}

// EncodeProgram declares every Let-bound variable up front, then emits one
// command per node, grounded on original_source/src/solver/rsmt.rs's
// encode_program: declaring first avoids needing a topological pass before
// emission, a nondet Let becomes a bare declare-const (no defining equation),
// and each Assert is bound to a fresh named Boolean so CheckAssertions can
// ask "did any assertion fail" with a single query.
func (d *driver) EncodeProgram(program *lir.Program) error {
	d.assertionNames = nil

	for _, node := range program.Nodes {
		if node.Kind != lir.NodeLet {
			continue
		}
		sort, err := sortToSMT(node.Variable.VarSort)
		if err != nil {
			return err
		}
		d.send(fmt.Sprintf("(declare-const %s %s)", symbol(node.Variable.Identifier()), sort))
	}

	assertionIndex := 0
	for _, node := range program.Nodes {
		switch node.Kind {
		case lir.NodeComment:
			d.send(fmt.Sprintf("; %s", node.Comment))

		case lir.NodeLet:
			if node.Value.Op == expr.OpNondet {
				continue
			}
			term, err := exprToSMT(node.Value)
			if err != nil {
				return err
			}
			d.send(fmt.Sprintf("(assert (= %s %s))", symbol(node.Variable.Identifier()), term))

		case lir.NodeAssume:
			term, err := exprToSMT(node.Value)
			if err != nil {
				return err
			}
			d.send(fmt.Sprintf("(assert %s)", term))

		case lir.NodeAssert:
			term, err := exprToSMT(node.Value)
			if err != nil {
				return err
			}
			name := fmt.Sprintf("_assertion%d", assertionIndex)
			assertionIndex++
			d.send(fmt.Sprintf("(declare-const %s Bool)", name))
			d.send(fmt.Sprintf("(assert (= %s %s))", name, term))
			d.assertionNames = append(d.assertionNames, name)
		}
	}

	if len(d.assertionNames) > 0 {
		d.send(fmt.Sprintf("(assert (not (and %s)))", strings.Join(d.assertionNames, " ")))
	}

	return nil
}

// CheckAssertions asks whether some assertion can be violated: `sat` means
// the solver found an assignment where at least one _assertion<N> is false,
// i.e. a genuine counterexample; `unsat` means every assertion holds under
// every reachable, non-assumed-away path.
func (d *driver) CheckAssertions() (CheckResult, error) {
	d.send("(check-sat)")
	verdict, err := d.readLine()
	if err != nil {
		return CheckResult{}, err
	}
	switch verdict {
	case "unsat":
		return CheckResult{Holds: true}, nil
	case "sat":
		return CheckResult{Holds: false, Model: &model{d: d}}, nil
	case "unknown":
		return CheckResult{}, perr.Solverf("solver: backend returned unknown")
	default:
		return CheckResult{}, perr.Solverf("solver: unexpected check-sat response %q", verdict)
	}
}

func (d *driver) DumpFormulaToFile(path string) error {
	if err := os.WriteFile(path, d.buf.Bytes(), 0o644); err != nil {
		return perr.Wrap(perr.IOError, perr.Position{Filename: path}, err)
	}
	return nil
}

func (d *driver) Close() error {
	d.send("(exit)")
	_ = d.stdin.Close()
	return d.cmd.Wait()
}
