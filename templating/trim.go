package templating

import (
	"strings"
	"unicode"
)

// splitTrim removes the whitespace-control markers from a directive's
// inner text. A leading "-" must be followed by whitespace or end the
// text; a trailing "-" must be preceded by whitespace. Any other dash
// belongs to the directive body.
func splitTrim(inner string) (body string, prev, next bool) {
	body = inner

	if len(body) > 0 && body[0] == '-' && (len(body) == 1 || isBlank(body[1])) {
		prev = true
		body = body[1:]
	}

	if n := len(body); n >= 2 && body[n-1] == '-' && isBlank(body[n-2]) {
		next = true
		body = body[:n-1]
	}

	return body, prev, next
}

func isBlank(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'
}

// chunkKind tags one entry of the render buffer.
type chunkKind int

const (
	chunkText chunkKind = iota
	chunkStripPrev
	chunkStripNext
)

type chunk struct {
	kind chunkKind
	text string
}

// outBuffer collects everything written during one render, trim markers
// included, and resolves the markers in a single forward pass.
type outBuffer struct {
	chunks []chunk
}

func (ob *outBuffer) write(s string) {
	ob.chunks = append(ob.chunks, chunk{kind: chunkText, text: s})
}

func (ob *outBuffer) mark(kind chunkKind) {
	ob.chunks = append(ob.chunks, chunk{kind: kind})
}

// String applies the trim markers: a strip-previous marker removes
// trailing whitespace from the text emitted just before it and drops that
// text when nothing is left; a strip-next marker removes leading
// whitespace from the next text chunk.
func (ob *outBuffer) String() string {
	out := make([]string, 0, len(ob.chunks))
	stripNext := false

	for _, ch := range ob.chunks {
		switch ch.kind {
		case chunkStripPrev:
			if n := len(out); n > 0 {
				last := trimRightBlank(out[n-1])
				if last == "" {
					out = out[:n-1]
				} else {
					out[n-1] = last
				}
			}
		case chunkStripNext:
			stripNext = true
		case chunkText:
			text := ch.text
			if stripNext {
				text = trimLeftBlank(text)
				stripNext = false

				if text == "" {
					continue
				}
			}

			out = append(out, text)
		}
	}

	return strings.Join(out, "")
}

func trimRightBlank(s string) string {
	return strings.TrimRightFunc(s, unicode.IsSpace)
}

func trimLeftBlank(s string) string {
	return strings.TrimLeftFunc(s, unicode.IsSpace)
}
