package errors

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// Reporter renders a PipelineError with Rust-like caret styling against the
// source text it came from (a .muasm file or a YAML environment file). It is
// used only at the CLI boundary (§7): core packages never format output,
// they only return *PipelineError.
type Reporter struct {
	filename string
	lines    []string
}

// NewReporter creates a reporter for a named source file.
func NewReporter(filename, source string) *Reporter {
	return &Reporter{filename: filename, lines: strings.Split(source, "\n")}
}

// Format renders err. If the reporter has no source line for err's position
// (e.g. a GraphInvariant error, which has no source location at all), it
// falls back to a plain one-line rendering.
func (r *Reporter) Format(err *PipelineError) string {
	bold := color.New(color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()
	levelColor := color.New(color.FgRed, color.Bold).SprintFunc()

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s[%s]: %s\n", levelColor("error"), err.Kind, err.Message))

	line := err.Position.Line
	if line <= 0 || line > len(r.lines) {
		return b.String()
	}

	width := lineNumberWidth(line)
	indent := strings.Repeat(" ", width)
	filename := err.Position.Filename
	if filename == "" {
		filename = r.filename
	}
	b.WriteString(fmt.Sprintf("%s %s %s:%d:%d\n", indent, dim("-->"), filename, line, err.Position.Column))
	b.WriteString(fmt.Sprintf("%s %s\n", indent, dim("│")))

	if line > 1 {
		b.WriteString(fmt.Sprintf("%s %s %s\n", dim(pad(line-1, width)), dim("│"), r.lines[line-2]))
	}
	b.WriteString(fmt.Sprintf("%s %s %s\n", bold(pad(line, width)), dim("│"), r.lines[line-1]))

	col := err.Position.Column
	if col <= 0 {
		col = 1
	}
	marker := strings.Repeat(" ", col-1) + levelColor("^")
	b.WriteString(fmt.Sprintf("%s %s %s\n", indent, dim("│"), marker))

	if line < len(r.lines) {
		b.WriteString(fmt.Sprintf("%s %s %s\n", dim(pad(line+1, width)), dim("│"), r.lines[line]))
	}
	return b.String()
}

func lineNumberWidth(line int) int {
	w := len(fmt.Sprintf("%d", line))
	if w < 3 {
		w = 3
	}
	return w
}

func pad(line, width int) string {
	return fmt.Sprintf("%*d", width, line)
}
