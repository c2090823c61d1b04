package script

import (
	"fmt"
	"strconv"
	"strings"
)

// TokenKind classifies a lexical token.
type TokenKind int

const (
	EOF TokenKind = iota
	NEWLINE
	INDENT
	DEDENT
	NAME
	KEYWORD
	INT
	FLOAT
	STRING
	OP
)

var kindNames = [...]string{
	EOF:     "end of input",
	NEWLINE: "newline",
	INDENT:  "indent",
	DEDENT:  "dedent",
	NAME:    "name",
	KEYWORD: "keyword",
	INT:     "integer",
	FLOAT:   "float",
	STRING:  "string",
	OP:      "operator",
}

func (k TokenKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}

	return "unknown"
}

// Pos is a 1-based line and column in program text.
type Pos struct {
	Line int
	Col  int
}

// Token is a lexical token. Value holds the decoded literal for INT,
// FLOAT and STRING tokens.
type Token struct {
	Kind  TokenKind
	Text  string
	Value any
	Pos   Pos
}

func (t Token) String() string {
	switch t.Kind {
	case NAME, KEYWORD, OP, INT, FLOAT:
		return fmt.Sprintf("%q", t.Text)
	case STRING:
		return "string literal"
	default:
		return t.Kind.String()
	}
}

var keywords = map[string]bool{
	"and":      true,
	"or":       true,
	"not":      true,
	"in":       true,
	"is":       true,
	"if":       true,
	"elif":     true,
	"else":     true,
	"for":      true,
	"while":    true,
	"break":    true,
	"continue": true,
	"pass":     true,
	"True":     true,
	"False":    true,
	"None":     true,
}

// IsKeyword reports whether word is reserved by the language.
func IsKeyword(word string) bool { return keywords[word] }

// operators ordered longest first so the scanner can take the first match.
var operators = []string{
	"**=", "//=",
	"**", "//", "==", "!=", "<=", ">=",
	"+=", "-=", "*=", "/=", "%=",
	"+", "-", "*", "/", "%", "<", ">", "=",
	"(", ")", "[", "]", "{", "}",
	",", ":", ".",
}

type lexer struct {
	src    string
	cur    int
	line   int
	col    int
	depth  int // bracket nesting; newlines inside brackets are ignored
	indent []string
	toks   []Token
}

// Tokenize splits program text into tokens, synthesizing INDENT and
// DEDENT tokens from leading whitespace.
func Tokenize(src string) ([]Token, error) {
	lx := &lexer{src: src, line: 1, col: 1, indent: []string{""}}
	if err := lx.run(); err != nil {
		return nil, err
	}

	return lx.toks, nil
}

func (lx *lexer) pos() Pos { return Pos{Line: lx.line, Col: lx.col} }

func (lx *lexer) errf(format string, args ...any) error {
	return &SyntaxError{Line: lx.line, Col: lx.col, Msg: fmt.Sprintf(format, args...)}
}

func (lx *lexer) atEnd() bool { return lx.cur >= len(lx.src) }

func (lx *lexer) peekAt(n int) byte {
	if lx.cur+n >= len(lx.src) {
		return 0
	}

	return lx.src[lx.cur+n]
}

func (lx *lexer) advance(n int) {
	for i := 0; i < n && !lx.atEnd(); i++ {
		if lx.src[lx.cur] == '\n' {
			lx.line++
			lx.col = 1
		} else {
			lx.col++
		}
		lx.cur++
	}
}

func (lx *lexer) emit(kind TokenKind, text string, val any, at Pos) {
	lx.toks = append(lx.toks, Token{Kind: kind, Text: text, Value: val, Pos: at})
}

func (lx *lexer) lastKind() TokenKind {
	if len(lx.toks) == 0 {
		return NEWLINE
	}

	return lx.toks[len(lx.toks)-1].Kind
}

func (lx *lexer) run() error {
	lineStart := true

	for !lx.atEnd() {
		if lineStart && lx.depth == 0 {
			blank, err := lx.scanIndent()
			if err != nil {
				return err
			}

			lineStart = false

			if blank {
				lx.skipLine()
				lineStart = true

				continue
			}
		}

		ch := lx.src[lx.cur]

		switch {
		case ch == ' ' || ch == '\t' || ch == '\r' || ch == '\f':
			lx.advance(1)
		case ch == '#':
			for !lx.atEnd() && lx.src[lx.cur] != '\n' {
				lx.advance(1)
			}
		case ch == '\\' && lx.peekAt(1) == '\n':
			lx.advance(2)
		case ch == '\\' && lx.peekAt(1) == '\r' && lx.peekAt(2) == '\n':
			lx.advance(3)
		case ch == '\n':
			if lx.depth == 0 {
				if lx.lastKind() != NEWLINE {
					lx.emit(NEWLINE, "\n", nil, lx.pos())
				}
				lineStart = true
			}
			lx.advance(1)
		case isDigit(ch) || (ch == '.' && isDigit(lx.peekAt(1))):
			if err := lx.scanNumber(); err != nil {
				return err
			}
		case ch == '"' || ch == '\'':
			if err := lx.scanString(ch); err != nil {
				return err
			}
		case isNameStart(ch):
			lx.scanName()
		default:
			if err := lx.scanOperator(); err != nil {
				return err
			}
		}
	}

	if lx.lastKind() != NEWLINE {
		lx.emit(NEWLINE, "\n", nil, lx.pos())
	}

	for len(lx.indent) > 1 {
		lx.indent = lx.indent[:len(lx.indent)-1]
		lx.emit(DEDENT, "", nil, lx.pos())
	}

	lx.emit(EOF, "", nil, lx.pos())

	return nil
}

// scanIndent consumes leading whitespace and adjusts the indentation
// stack. It reports whether the line holds nothing but whitespace or a
// comment.
func (lx *lexer) scanIndent() (bool, error) {
	start := lx.cur
	for !lx.atEnd() && (lx.src[lx.cur] == ' ' || lx.src[lx.cur] == '\t') {
		lx.advance(1)
	}

	ws := lx.src[start:lx.cur]

	if lx.atEnd() {
		return true, nil
	}

	switch lx.src[lx.cur] {
	case '\n', '#', '\r':
		return true, nil
	}

	at := lx.pos()
	top := lx.indent[len(lx.indent)-1]

	switch {
	case ws == top:
		return false, nil
	case strings.HasPrefix(ws, top):
		lx.indent = append(lx.indent, ws)
		lx.emit(INDENT, ws, nil, at)

		return false, nil
	}

	for len(lx.indent) > 1 && lx.indent[len(lx.indent)-1] != ws {
		if !strings.HasPrefix(lx.indent[len(lx.indent)-1], ws) {
			return false, lx.errf("inconsistent indentation")
		}

		lx.indent = lx.indent[:len(lx.indent)-1]
		lx.emit(DEDENT, "", nil, at)
	}

	if lx.indent[len(lx.indent)-1] != ws {
		return false, lx.errf("unindent does not match any outer indentation level")
	}

	return false, nil
}

func (lx *lexer) skipLine() {
	for !lx.atEnd() && lx.src[lx.cur] != '\n' {
		lx.advance(1)
	}
	lx.advance(1)
}

func (lx *lexer) scanNumber() error {
	at := lx.pos()
	start := lx.cur
	isFloat := false

	for isDigit(lx.peekAt(0)) || lx.peekAt(0) == '_' {
		lx.advance(1)
	}

	if lx.peekAt(0) == '.' && lx.peekAt(1) != '.' {
		isFloat = true
		lx.advance(1)

		for isDigit(lx.peekAt(0)) || lx.peekAt(0) == '_' {
			lx.advance(1)
		}
	}

	if ch := lx.peekAt(0); ch == 'e' || ch == 'E' {
		next := lx.peekAt(1)
		if isDigit(next) || ((next == '+' || next == '-') && isDigit(lx.peekAt(2))) {
			isFloat = true
			lx.advance(2)

			for isDigit(lx.peekAt(0)) {
				lx.advance(1)
			}
		}
	}

	text := lx.src[start:lx.cur]
	clean := strings.ReplaceAll(text, "_", "")

	if isFloat {
		fv, err := strconv.ParseFloat(clean, 64)
		if err != nil {
			return &SyntaxError{Line: at.Line, Col: at.Col, Msg: "invalid number " + text}
		}
		lx.emit(FLOAT, text, fv, at)

		return nil
	}

	iv, err := strconv.ParseInt(clean, 10, 64)
	if err != nil {
		return &SyntaxError{Line: at.Line, Col: at.Col, Msg: "invalid integer " + text}
	}
	lx.emit(INT, text, iv, at)

	return nil
}

func (lx *lexer) scanString(quote byte) error {
	at := lx.pos()
	start := lx.cur
	lx.advance(1)

	var sb strings.Builder

	for {
		if lx.atEnd() || lx.src[lx.cur] == '\n' {
			return &SyntaxError{Line: at.Line, Col: at.Col, Msg: "unterminated string literal"}
		}

		ch := lx.src[lx.cur]
		if ch == quote {
			lx.advance(1)

			break
		}

		if ch != '\\' {
			sb.WriteByte(ch)
			lx.advance(1)

			continue
		}

		if err := lx.scanEscape(&sb); err != nil {
			return err
		}
	}

	lx.emit(STRING, lx.src[start:lx.cur], sb.String(), at)

	return nil
}

func (lx *lexer) scanEscape(sb *strings.Builder) error {
	esc := lx.peekAt(1)
	lx.advance(2)

	switch esc {
	case 'n':
		sb.WriteByte('\n')
	case 't':
		sb.WriteByte('\t')
	case 'r':
		sb.WriteByte('\r')
	case 'a':
		sb.WriteByte('\a')
	case 'b':
		sb.WriteByte('\b')
	case 'f':
		sb.WriteByte('\f')
	case 'v':
		sb.WriteByte('\v')
	case '0':
		sb.WriteByte(0)
	case '\\', '\'', '"':
		sb.WriteByte(esc)
	case '\n':
		// line continuation inside a string literal
	case 'x', 'u', 'U':
		size := map[byte]int{'x': 2, 'u': 4, 'U': 8}[esc]
		if lx.cur+size > len(lx.src) {
			return lx.errf("truncated \\%c escape", esc)
		}

		code, err := strconv.ParseUint(lx.src[lx.cur:lx.cur+size], 16, 32)
		if err != nil {
			return lx.errf("invalid \\%c escape", esc)
		}
		lx.advance(size)

		if esc == 'x' {
			sb.WriteByte(byte(code))
		} else {
			sb.WriteRune(rune(code))
		}
	default:
		sb.WriteByte('\\')
		sb.WriteByte(esc)
	}

	return nil
}

func (lx *lexer) scanName() {
	at := lx.pos()
	start := lx.cur

	for !lx.atEnd() && isNamePart(lx.src[lx.cur]) {
		lx.advance(1)
	}

	word := lx.src[start:lx.cur]
	if keywords[word] {
		lx.emit(KEYWORD, word, nil, at)

		return
	}

	lx.emit(NAME, word, nil, at)
}

func (lx *lexer) scanOperator() error {
	rest := lx.src[lx.cur:]

	for _, op := range operators {
		if !strings.HasPrefix(rest, op) {
			continue
		}

		switch op {
		case "(", "[", "{":
			lx.depth++
		case ")", "]", "}":
			if lx.depth > 0 {
				lx.depth--
			}
		}

		lx.emit(OP, op, nil, lx.pos())
		lx.advance(len(op))

		return nil
	}

	return lx.errf("unexpected character %q", rest[0])
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func isNameStart(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || b == '_' || b >= 0x80
}

func isNamePart(b byte) bool { return isNameStart(b) || isDigit(b) }
