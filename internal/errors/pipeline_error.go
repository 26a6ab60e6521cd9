package errors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Position locates a PipelineError in a source artifact: a .muasm line, an
// ELF symbol offset, or a YAML environment-file line. Line/Column are
// 1-indexed; Column is 0 when the error is not attributable to a column.
type Position struct {
	Filename string
	Line     int
	Column   int
}

func (p Position) String() string {
	if p.Filename == "" {
		return ""
	}
	if p.Line == 0 {
		return p.Filename
	}
	if p.Column == 0 {
		return fmt.Sprintf("%s:%d", p.Filename, p.Line)
	}
	return fmt.Sprintf("%s:%d:%d", p.Filename, p.Line, p.Column)
}

// PipelineError is the single error type returned by every core package.
// The core never recovers from one (§7): a pipeline stage returns it and
// every caller propagates it up to the CLI, which is the only place that
// renders it.
type PipelineError struct {
	Kind     Kind
	Message  string
	Position Position
	Wrapped  error
}

func (e *PipelineError) Error() string {
	pos := e.Position.String()
	if pos != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Kind, pos, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *PipelineError) Unwrap() error { return e.Wrapped }

func newErr(k Kind, format string, args ...interface{}) *PipelineError {
	return &PipelineError{Kind: k, Message: fmt.Sprintf(format, args...)}
}

// Sortf reports a SortMismatch: an expression constructor was given operands
// whose sorts don't satisfy its contract.
func Sortf(format string, args ...interface{}) *PipelineError {
	return newErr(SortMismatch, format, args...)
}

// Graphf reports a GraphInvariant violation: unknown block/edge index,
// duplicate edge, entry-with-predecessors, exit-with-successors, etc.
func Graphf(format string, args ...interface{}) *PipelineError {
	return newErr(GraphInvariant, format, args...)
}

// Preconditionf reports an AnalysisPrecondition failure, e.g. an irreducible
// CFG handed to loop unwinding, or mutually recursive functions handed to
// inlining.
func Preconditionf(format string, args ...interface{}) *PipelineError {
	return newErr(AnalysisPrecondition, format, args...)
}

// Solverf reports a SolverError: the backend process exited unexpectedly, or
// its output could not be parsed as a model.
func Solverf(format string, args ...interface{}) *PipelineError {
	return newErr(SolverErrorKind, format, args...)
}

// Wrap attaches Position/Wrapped context to an I/O or parse failure from the
// loader or config packages.
func Wrap(k Kind, pos Position, err error) *PipelineError {
	if err == nil {
		return nil
	}
	return &PipelineError{Kind: k, Message: err.Error(), Position: pos, Wrapped: err}
}

// WrapIO attaches a human-readable context string to err via
// github.com/pkg/errors.Wrap (preserving a stack trace on the wrapped
// error, unlike fmt.Errorf("%w", ...)) before turning it into an IOError
// PipelineError. Used by the config package when reading the environment
// file (§7).
func WrapIO(context string, pos Position, err error) *PipelineError {
	if err == nil {
		return nil
	}
	wrapped := errors.Wrap(err, context)
	return &PipelineError{Kind: IOError, Message: wrapped.Error(), Position: pos, Wrapped: wrapped}
}
