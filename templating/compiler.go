package templating

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/byte4ever/templite/templating/script"
)

// OpCode identifies an instruction of a compiled program.
type OpCode int

const (
	OpWriteLiteral OpCode = iota
	OpWriteExpr
	OpRawStatement
	OpStripPrev
	OpStripNext
)

func (op OpCode) String() string {
	switch op {
	case OpWriteLiteral:
		return "write_literal"
	case OpWriteExpr:
		return "write_expr"
	case OpRawStatement:
		return "raw_statement"
	case OpStripPrev:
		return "strip_prev"
	case OpStripNext:
		return "strip_next"
	}

	return "unknown"
}

// Instruction is one step of a compiled program. Text holds the literal,
// the expression source or the statement source depending on Op.
type Instruction struct {
	Op    OpCode
	Text  string
	Depth int
	Line  int
}

// lineContinuation matches a backslash ending a literal line together
// with the indentation of the next one.
var lineContinuation = regexp.MustCompile(`\\(?:\r\n|\r|\n)[ \t]*`)

// autoWrite matches statements that are written rather than executed: a
// string literal, or a bare name with optional subscripts.
var autoWrite = regexp.MustCompile(`^(?:['"]|[A-Za-z0-9_\[\]'"]+$)`)

// blockKeywords open a block even without a trailing colon.
var blockKeywords = map[string]bool{
	"if": true, "elif": true, "else": true, "for": true, "while": true,
}

type compiler struct {
	instrs   []Instruction
	depth    int
	joinLine bool
}

// CompileSegments turns scanned segments into the instruction sequence.
// When joinLines is set a backslash at the end of a literal line removes
// the line break and the indentation that follows it.
func CompileSegments(segs []Segment, joinLines bool) ([]Instruction, error) {
	cp := &compiler{joinLine: joinLines}

	for _, seg := range segs {
		var err error

		switch seg.Kind {
		case SegmentLiteral:
			cp.literal(seg)
		case SegmentExpr:
			cp.expression(seg)
		case SegmentStmt:
			err = cp.statement(seg)
		case SegmentComment:
		}

		if err != nil {
			return nil, err
		}
	}

	if cp.depth > 0 {
		line := 0
		if n := len(segs); n > 0 {
			line = segs[n-1].Line
		}

		return nil, &CompileError{Kind: ErrUnterminatedBlock, Line: line, Pending: cp.depth}
	}

	return cp.instrs, nil
}

func (cp *compiler) emit(op OpCode, text string, line int) {
	cp.instrs = append(cp.instrs, Instruction{Op: op, Text: text, Depth: cp.depth, Line: line})
}

func (cp *compiler) literal(seg Segment) {
	text := seg.Text
	if cp.joinLine {
		text = lineContinuation.ReplaceAllString(text, "")
	}

	if text != "" {
		cp.emit(OpWriteLiteral, text, seg.Line)
	}
}

func (cp *compiler) expression(seg Segment) {
	body, prev, next := splitTrim(seg.Text)

	if prev {
		cp.emit(OpStripPrev, "", seg.Line)
	}

	if src := strings.TrimSpace(body); src != "" {
		cp.emit(OpWriteExpr, src, seg.Line)
	}

	if next {
		cp.emit(OpStripNext, "", seg.Line)
	}
}

func (cp *compiler) statement(seg Segment) error {
	body, prev, next := splitTrim(seg.Text)

	if prev {
		cp.emit(OpStripPrev, "", seg.Line)
	}

	if err := cp.statementBody(seg, body); err != nil {
		return err
	}

	if next {
		cp.emit(OpStripNext, "", seg.Line)
	}

	return nil
}

func (cp *compiler) statementBody(seg Segment, body string) error {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	body = strings.TrimRight(body, " \t\r\n")

	stripped := strings.TrimLeft(body, " \t\r\n")
	if stripped == "" {
		return nil
	}

	if strings.HasPrefix(stripped, ":") {
		if cp.depth == 0 {
			return &CompileError{
				Kind:      ErrUnexpectedDedent,
				Line:      seg.Line,
				Directive: strings.TrimSpace(seg.Text),
			}
		}

		cp.depth--

		header, opens := blockHeader(stripped[1:])
		if !opens {
			return nil
		}

		cp.raw(header, seg.Line)
		cp.depth++

		return nil
	}

	if isAutoWrite(stripped) {
		cp.emit(OpWriteExpr, stripped, seg.Line)
		return nil
	}

	// Leading blank lines are dropped so Line stays on the first
	// statement line.
	line := seg.Line + strings.Count(body[:len(body)-len(stripped)], "\n")
	if i := strings.LastIndexByte(body[:len(body)-len(stripped)], '\n'); i >= 0 {
		body = body[i+1:]
	}

	header, opens := blockHeader(body)
	cp.raw(header, line)

	if opens {
		cp.depth++
	}

	return nil
}

// raw strips the common margin of src and emits it at the current depth.
func (cp *compiler) raw(src string, line int) {
	lines := strings.Split(src, "\n")
	margin := -1

	for _, ln := range lines {
		if strings.TrimSpace(ln) == "" {
			continue
		}

		ind := len(ln) - len(strings.TrimLeft(ln, " \t"))
		if margin < 0 || ind < margin {
			margin = ind
		}
	}

	margin = max(margin, 0)
	indent := strings.Repeat("\t", cp.depth)

	for i, ln := range lines {
		if len(ln) < margin || strings.TrimSpace(ln) == "" {
			lines[i] = ""
			continue
		}

		lines[i] = indent + ln[margin:]
	}

	cp.emit(OpRawStatement, strings.Join(lines, "\n"), line)
}

// blockHeader reports whether src opens a block. A single-line statement
// led by a block keyword opens one even when the colon is left out; the
// colon is added to the returned source.
func blockHeader(src string) (string, bool) {
	trimmed := strings.TrimSpace(src)
	if trimmed == "" {
		return src, false
	}

	if strings.HasSuffix(trimmed, ":") {
		return src, true
	}

	if strings.Contains(trimmed, "\n") || !blockKeywords[leadingWord(trimmed)] ||
		hasBodyColon(trimmed) {
		return src, false
	}

	return strings.TrimRight(src, " \t") + ":", true
}

// hasBodyColon reports a colon outside brackets, as in "if x: y".
func hasBodyColon(src string) bool {
	toks, err := script.Tokenize(src)
	if err != nil {
		return false
	}

	depth := 0

	for _, tok := range toks {
		if tok.Kind != script.OP {
			continue
		}

		switch tok.Text {
		case "(", "[", "{":
			depth++
		case ")", "]", "}":
			depth--
		case ":":
			if depth == 0 {
				return true
			}
		}
	}

	return false
}

func leadingWord(s string) string {
	end := 0
	for end < len(s) && (s[end] == '_' || isAlnum(s[end])) {
		end++
	}

	return s[:end]
}

func isAlnum(ch byte) bool {
	return ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch >= '0' && ch <= '9'
}

func isAutoWrite(src string) bool {
	if strings.Contains(src, "\n") || !autoWrite.MatchString(src) {
		return false
	}

	switch src {
	case "True", "False", "None":
		return true
	}

	return !script.IsKeyword(src)
}

// Source renders the instructions as directive-language source, one
// tab of indentation per depth level. The returned slice maps each
// source line (0-based) to its template line.
func Source(instrs []Instruction) (string, []int) {
	var (
		sb    strings.Builder
		lines []int
	)

	put := func(depth int, text string, line int) {
		indent := strings.Repeat("\t", depth)

		for i, ln := range strings.Split(text, "\n") {
			if i == 0 {
				ln = indent + ln
			}

			sb.WriteString(ln)
			sb.WriteByte('\n')
			lines = append(lines, line+i)
		}
	}

	for _, in := range instrs {
		switch in.Op {
		case OpWriteLiteral:
			put(in.Depth, fmt.Sprintf("%s(%s)", primWrite, quoteLiteral(in.Text)), in.Line)
		case OpWriteExpr:
			put(in.Depth, fmt.Sprintf("%s(%s)", primWrite, in.Text), in.Line)
		case OpRawStatement:
			put(0, in.Text, in.Line)
		case OpStripPrev:
			put(in.Depth, primTrimPrev+"()", in.Line)
		case OpStripNext:
			put(in.Depth, primTrimNext+"()", in.Line)
		}
	}

	return sb.String(), lines
}

// quoteLiteral quotes s as a single-line string literal the directive
// lexer reads back unchanged.
func quoteLiteral(s string) string {
	var sb strings.Builder

	sb.WriteByte('"')

	for i := 0; i < len(s); i++ {
		switch ch := s[i]; ch {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			if ch < 0x20 || ch == 0x7f {
				fmt.Fprintf(&sb, `\x%02x`, ch)
				continue
			}

			sb.WriteByte(ch)
		}
	}

	sb.WriteByte('"')

	return sb.String()
}
