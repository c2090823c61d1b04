package templating

import (
	"fmt"
	"strings"
)

// Delimiters holds the six markers that open and close directives.
// Empty fields fall back to the defaults.
type Delimiters struct {
	ExprOpen     string
	ExprClose    string
	StmtOpen     string
	StmtClose    string
	CommentOpen  string
	CommentClose string
}

// DefaultDelimiters returns "{{ }}", "{% %}" and "{# #}".
func DefaultDelimiters() Delimiters {
	return Delimiters{
		ExprOpen:     "{{",
		ExprClose:    "}}",
		StmtOpen:     "{%",
		StmtClose:    "%}",
		CommentOpen:  "{#",
		CommentClose: "#}",
	}
}

// ParseDelimiters reads six whitespace-separated markers in the order
// expression, statement, comment (open then close for each).
func ParseDelimiters(s string) (Delimiters, error) {
	fields := strings.Fields(s)
	if len(fields) != 6 {
		return Delimiters{}, fmt.Errorf(
			"%w: delimiters need 6 markers, got %d", ErrConfig, len(fields),
		)
	}

	dl := Delimiters{
		ExprOpen:     fields[0],
		ExprClose:    fields[1],
		StmtOpen:     fields[2],
		StmtClose:    fields[3],
		CommentOpen:  fields[4],
		CommentClose: fields[5],
	}

	return dl, dl.Validate()
}

func (dl Delimiters) withDefaults() Delimiters {
	def := DefaultDelimiters()

	fill := func(val *string, fallback string) {
		if *val == "" {
			*val = fallback
		}
	}

	fill(&dl.ExprOpen, def.ExprOpen)
	fill(&dl.ExprClose, def.ExprClose)
	fill(&dl.StmtOpen, def.StmtOpen)
	fill(&dl.StmtClose, def.StmtClose)
	fill(&dl.CommentOpen, def.CommentOpen)
	fill(&dl.CommentClose, def.CommentClose)

	return dl
}

func (dl Delimiters) String() string {
	return strings.Join(dl.markers(), " ")
}

// markers returns the six markers in ParseDelimiters order.
func (dl Delimiters) markers() []string {
	return []string{
		dl.ExprOpen, dl.ExprClose,
		dl.StmtOpen, dl.StmtClose,
		dl.CommentOpen, dl.CommentClose,
	}
}

func (dl Delimiters) opener(kind SegmentKind) string {
	switch kind {
	case SegmentExpr:
		return dl.ExprOpen
	case SegmentStmt:
		return dl.StmtOpen
	case SegmentComment:
		return dl.CommentOpen
	}

	return ""
}

func (dl Delimiters) closer(kind SegmentKind) string {
	switch kind {
	case SegmentExpr:
		return dl.ExprClose
	case SegmentStmt:
		return dl.StmtClose
	case SegmentComment:
		return dl.CommentClose
	}

	return ""
}

// Validate reports ErrConfig when a marker is empty or holds whitespace,
// when two openers or two closers coincide, or when an opener equals the
// closer of another kind.
func (dl Delimiters) Validate() error {
	kinds := []SegmentKind{SegmentExpr, SegmentStmt, SegmentComment}

	for _, mk := range dl.markers() {
		if mk == "" {
			return fmt.Errorf("%w: empty delimiter in %q", ErrConfig, dl.String())
		}

		if strings.ContainsAny(mk, " \t\r\n") {
			return fmt.Errorf("%w: delimiter %q contains whitespace", ErrConfig, mk)
		}
	}

	for i, ka := range kinds {
		for _, kb := range kinds[i+1:] {
			if dl.opener(ka) == dl.opener(kb) {
				return fmt.Errorf("%w: duplicate open delimiter %q", ErrConfig, dl.opener(ka))
			}

			if dl.closer(ka) == dl.closer(kb) {
				return fmt.Errorf("%w: duplicate close delimiter %q", ErrConfig, dl.closer(ka))
			}
		}

		for _, kb := range kinds {
			if ka != kb && dl.opener(ka) == dl.closer(kb) {
				return fmt.Errorf(
					"%w: open delimiter %q is also a close delimiter", ErrConfig, dl.opener(ka),
				)
			}
		}
	}

	return nil
}
