package templating

import (
	"fmt"
	"sort"
	"strings"
)

// SegmentKind tags a scanned run of template text.
type SegmentKind int

const (
	SegmentLiteral SegmentKind = iota
	SegmentExpr
	SegmentStmt
	SegmentComment
)

func (k SegmentKind) String() string {
	switch k {
	case SegmentLiteral:
		return "literal"
	case SegmentExpr:
		return "expression"
	case SegmentStmt:
		return "statement"
	case SegmentComment:
		return "comment"
	}

	return "unknown"
}

// Segment is a literal run or the inner text of one directive.
type Segment struct {
	Kind SegmentKind
	Text string
	// Line is the 1-based line the segment starts on.
	Line int
}

type marker struct {
	text string
	kind SegmentKind
	open bool
}

// Scan splits text into literal and directive segments. A marker
// preceded by a backslash is literal text, wherever it appears.
func Scan(text string, dl Delimiters) ([]Segment, error) {
	markers := scanMarkers(dl)

	var segs []Segment

	pos, line := 0, 1

	for pos < len(text) {
		start, open := findMarker(text, pos, markers, true)
		if open == nil {
			segs = append(segs, Segment{Kind: SegmentLiteral, Text: unescape(text[pos:], markers), Line: line})
			break
		}

		if start > pos {
			segs = append(segs, Segment{Kind: SegmentLiteral, Text: unescape(text[pos:start], markers), Line: line})
			line += strings.Count(text[pos:start], "\n")
		}

		inner := start + len(open.text)

		end, cls := findMarker(text, inner, markers, false)
		if cls == nil {
			return nil, &CompileError{
				Kind:      ErrUnclosedDirective,
				Line:      line,
				Directive: fmt.Sprintf("%s opened with %q is never closed", open.kind, open.text),
			}
		}

		if cls.kind != open.kind {
			return nil, &CompileError{
				Kind: ErrUnclosedDirective,
				Line: line,
				Directive: fmt.Sprintf(
					"%s opened with %q but closed with %q (expected %q)",
					open.kind, open.text, cls.text, dl.closer(open.kind),
				),
			}
		}

		segs = append(segs, Segment{Kind: open.kind, Text: unescape(text[inner:end], markers), Line: line})
		line += strings.Count(text[start:end+len(cls.text)], "\n")
		pos = end + len(cls.text)
	}

	return segs, nil
}

// scanMarkers lists the markers longest first so a longer marker wins
// over a shorter one starting at the same offset.
func scanMarkers(dl Delimiters) []marker {
	markers := []marker{
		{text: dl.ExprOpen, kind: SegmentExpr, open: true},
		{text: dl.ExprClose, kind: SegmentExpr},
		{text: dl.StmtOpen, kind: SegmentStmt, open: true},
		{text: dl.StmtClose, kind: SegmentStmt},
		{text: dl.CommentOpen, kind: SegmentComment, open: true},
		{text: dl.CommentClose, kind: SegmentComment},
	}

	sort.SliceStable(markers, func(i, j int) bool {
		return len(markers[i].text) > len(markers[j].text)
	})

	return markers
}

// escapedAt returns the length of the escaped marker starting with the
// backslash at text[i], or 0 when there is none.
func escapedAt(text string, i int, markers []marker) int {
	if text[i] != '\\' {
		return 0
	}

	for _, mk := range markers {
		if strings.HasPrefix(text[i+1:], mk.text) {
			return 1 + len(mk.text)
		}
	}

	return 0
}

// findMarker walks text from offset from and returns the first opening
// (or closing) marker that is not escaped.
func findMarker(text string, from int, markers []marker, open bool) (int, *marker) {
	for i := from; i < len(text); {
		if n := escapedAt(text, i, markers); n > 0 {
			i += n
			continue
		}

		for j := range markers {
			mk := &markers[j]
			if mk.open == open && strings.HasPrefix(text[i:], mk.text) {
				return i, mk
			}
		}

		i++
	}

	return -1, nil
}

// unescape drops the backslash in front of every escaped marker. Other
// backslashes are kept.
func unescape(text string, markers []marker) string {
	if !strings.Contains(text, `\`) {
		return text
	}

	var sb strings.Builder

	for i := 0; i < len(text); {
		if n := escapedAt(text, i, markers); n > 0 {
			sb.WriteString(text[i+1 : i+n])
			i += n

			continue
		}

		sb.WriteByte(text[i])
		i++
	}

	return sb.String()
}
