package templating

import (
	"errors"

	"github.com/goccy/go-json"

	"github.com/byte4ever/templite/templating/script"
)

// Program is a compiled template: the instruction sequence, the
// generated directive-language source and its parsed form.
type Program struct {
	Instructions []Instruction
	Source       string

	lines []int
	code  *script.Program
	text  string
}

// Build generates and parses the directive-language source for instrs,
// which were compiled from the template text. The text feeds error
// snippets. A statement or expression that does not parse yields
// ErrSyntax.
func Build(instrs []Instruction, text string) (*Program, error) {
	src, lines := Source(instrs)

	code, err := script.Parse(src)
	if err != nil {
		cerr := &CompileError{Kind: ErrSyntax, Err: err}

		var se *script.SyntaxError
		if errors.As(err, &se) {
			cerr.Line = templateLine(lines, se.Line)
			cerr.Snippet = snippet(text, cerr.Line)
		}

		return nil, cerr
	}

	return &Program{
		Instructions: instrs,
		Source:       src,
		lines:        lines,
		code:         code,
		text:         text,
	}, nil
}

// TemplateLine maps a 1-based line of the generated source back to the
// template line it came from, or 0 when unknown.
func (pg *Program) TemplateLine(line int) int {
	return templateLine(pg.lines, line)
}

func templateLine(lines []int, line int) int {
	if line < 1 {
		return 0
	}

	if line > len(lines) {
		if len(lines) == 0 {
			return 0
		}

		return lines[len(lines)-1]
	}

	return lines[line-1]
}

func (pg *Program) String() string { return pg.Source }

type instructionJSON struct {
	Op    string `json:"op"`
	Text  string `json:"text,omitempty"`
	Depth int    `json:"depth"`
	Line  int    `json:"line"`
}

type programJSON struct {
	Instructions []instructionJSON `json:"instructions"`
	Source       string            `json:"source"`
}

// MarshalJSON encodes the instructions and generated source, for dumps.
func (pg *Program) MarshalJSON() ([]byte, error) {
	out := programJSON{
		Instructions: make([]instructionJSON, len(pg.Instructions)),
		Source:       pg.Source,
	}

	for i, in := range pg.Instructions {
		out.Instructions[i] = instructionJSON{
			Op:    in.Op.String(),
			Text:  in.Text,
			Depth: in.Depth,
			Line:  in.Line,
		}
	}

	return json.Marshal(out)
}
