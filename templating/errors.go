package templating

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every error returned by Compile, CompileFile or Render
// matches exactly one compile-time kind or ErrRuntime under errors.Is.
var (
	// ErrConfig reports a malformed delimiter set or an unknown encoding.
	ErrConfig = errors.New("invalid configuration")

	// ErrUnclosedDirective reports a directive whose close marker is
	// missing or belongs to another directive kind.
	ErrUnclosedDirective = errors.New("unclosed directive")

	// ErrUnexpectedDedent reports a block close with no open block.
	ErrUnexpectedDedent = errors.New("no block statement to terminate")

	// ErrUnterminatedBlock reports blocks still open at end of source.
	ErrUnterminatedBlock = errors.New("block statement not terminated")

	// ErrSyntax reports a statement or expression the directive language
	// cannot parse.
	ErrSyntax = errors.New("syntax error")

	// ErrRuntime reports any failure while executing a template.
	ErrRuntime = errors.New("template evaluation failed")

	// ErrCyclicInclude reports a template that includes itself, directly
	// or through other templates. It is always wrapped in ErrRuntime.
	ErrCyclicInclude = errors.New("cyclic include")
)

// CompileError is returned when template text cannot be compiled.
type CompileError struct {
	Kind error
	File string
	Line int
	// Directive is the offending directive text, when there is one.
	Directive string
	// Pending is the number of unterminated blocks for
	// ErrUnterminatedBlock.
	Pending int
	Err     error
	Snippet string
}

func (e *CompileError) Error() string {
	var sb strings.Builder

	sb.WriteString(location(e.File, e.Line))
	sb.WriteString(e.Kind.Error())

	switch {
	case e.Pending > 0:
		fmt.Fprintf(&sb, ": %d block statement(s) still open", e.Pending)
	case e.Directive != "":
		fmt.Fprintf(&sb, ": %s", e.Directive)
	}

	if e.Err != nil {
		fmt.Fprintf(&sb, ": %v", e.Err)
	}

	return sb.String()
}

func (e *CompileError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}

	return []error{e.Kind}
}

// RenderError is returned when executing a compiled template fails. No
// output is produced alongside it.
type RenderError struct {
	File string
	Line int
	Err  error
	// Snippet shows the template lines around Line.
	Snippet string
}

func (e *RenderError) Error() string {
	return location(e.File, e.Line) + ErrRuntime.Error() + ": " + e.Err.Error()
}

func (e *RenderError) Unwrap() []error { return []error{ErrRuntime, e.Err} }

func location(file string, line int) string {
	switch {
	case file != "" && line > 0:
		return fmt.Sprintf("%s:%d: ", file, line)
	case file != "":
		return file + ": "
	case line > 0:
		return fmt.Sprintf("line %d: ", line)
	}

	return ""
}

// Detail returns the diagnostic snippets attached to err and to every
// compile or render error it wraps, outermost first. It returns "" when
// err carries none.
func Detail(err error) string {
	var parts []string

	walkErrors(err, func(e error) {
		switch te := e.(type) {
		case *CompileError:
			if te.Snippet != "" {
				parts = append(parts, location(te.File, te.Line)+"\n"+te.Snippet)
			}
		case *RenderError:
			if te.Snippet != "" {
				parts = append(parts, location(te.File, te.Line)+"\n"+te.Snippet)
			}
		}
	})

	return strings.Join(parts, "\n")
}

func walkErrors(err error, fn func(error)) {
	if err == nil {
		return
	}

	fn(err)

	switch ue := err.(type) {
	case interface{ Unwrap() []error }:
		for _, inner := range ue.Unwrap() {
			walkErrors(inner, fn)
		}
	case interface{ Unwrap() error }:
		walkErrors(ue.Unwrap(), fn)
	}
}

// snippet renders up to two lines of context either side of line, with
// the offending line marked.
func snippet(src string, line int) string {
	if line <= 0 || src == "" {
		return ""
	}

	lines := strings.Split(src, "\n")
	if line > len(lines) {
		return ""
	}

	var sb strings.Builder

	from := max(line-2, 1)
	to := min(line+2, len(lines))
	width := len(fmt.Sprint(to))

	for n := from; n <= to; n++ {
		marker := "  "
		if n == line {
			marker = "> "
		}

		fmt.Fprintf(&sb, "%s%*d | %s\n", marker, width, n, strings.TrimRight(lines[n-1], "\r"))
	}

	return sb.String()
}
