package templating_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byte4ever/templite/templating"
)

func compileText(
	tb testing.TB,
	text string,
	joinLines bool,
) ([]templating.Instruction, error) {
	tb.Helper()

	segs, err := templating.Scan(text, templating.DefaultDelimiters())
	require.NoError(tb, err)

	return templating.CompileSegments(segs, joinLines)
}

func TestCompileSegments(t *testing.T) {
	t.Parallel()

	type in = templating.Instruction

	const (
		lit   = templating.OpWriteLiteral
		expr  = templating.OpWriteExpr
		raw   = templating.OpRawStatement
		strip = templating.OpStripPrev
		next  = templating.OpStripNext
	)

	tests := []struct {
		name string
		text string
		want []templating.Instruction
	}{
		{
			name: "for loop",
			text: "{% for i in range(3) %}{{ i }}{% :%}",
			want: []in{
				{Op: raw, Text: "for i in range(3):", Depth: 0, Line: 1},
				{Op: expr, Text: "i", Depth: 1, Line: 1},
			},
		},
		{
			name: "explicit colon",
			text: "{% if x: %}a{% : %}",
			want: []in{
				{Op: raw, Text: "if x:", Depth: 0, Line: 1},
				{Op: lit, Text: "a", Depth: 1, Line: 1},
			},
		},
		{
			name: "chained blocks",
			text: "{% if a %}1{% :elif b %}2{% :else %}3{% : %}",
			want: []in{
				{Op: raw, Text: "if a:", Depth: 0, Line: 1},
				{Op: lit, Text: "1", Depth: 1, Line: 1},
				{Op: raw, Text: "elif b:", Depth: 0, Line: 1},
				{Op: lit, Text: "2", Depth: 1, Line: 1},
				{Op: raw, Text: "else:", Depth: 0, Line: 1},
				{Op: lit, Text: "3", Depth: 1, Line: 1},
			},
		},
		{
			name: "nested blocks indent",
			text: "{% for a in x %}{% for b in a %}{% y = b %}{% :%}{% :%}",
			want: []in{
				{Op: raw, Text: "for a in x:", Depth: 0, Line: 1},
				{Op: raw, Text: "\tfor b in a:", Depth: 1, Line: 1},
				{Op: raw, Text: "\t\ty = b", Depth: 2, Line: 1},
			},
		},
		{
			name: "inline body does not open a block",
			text: "{% if x: y = 1 %}",
			want: []in{
				{Op: raw, Text: "if x: y = 1", Depth: 0, Line: 1},
			},
		},
		{
			name: "autowrite",
			text: `{% name %}{% items[0] %}{% "s" %}{% True %}{% pass %}`,
			want: []in{
				{Op: expr, Text: "name", Depth: 0, Line: 1},
				{Op: expr, Text: "items[0]", Depth: 0, Line: 1},
				{Op: expr, Text: `"s"`, Depth: 0, Line: 1},
				{Op: expr, Text: "True", Depth: 0, Line: 1},
				{Op: raw, Text: "pass", Depth: 0, Line: 1},
			},
		},
		{
			name: "blank directives emit nothing",
			text: "{{ }}{%  %}{# x #}",
			want: nil,
		},
		{
			name: "trim markers surround the directive",
			text: "a {%- x = 1 -%} b",
			want: []in{
				{Op: lit, Text: "a ", Depth: 0, Line: 1},
				{Op: strip, Depth: 0, Line: 1},
				{Op: raw, Text: "x = 1", Depth: 0, Line: 1},
				{Op: next, Depth: 0, Line: 1},
				{Op: lit, Text: " b", Depth: 0, Line: 1},
			},
		},
		{
			name: "trim only statement",
			text: "{%-%}",
			want: []in{
				{Op: strip, Depth: 0, Line: 1},
			},
		},
		{
			name: "dash inside expression is not a trim marker",
			text: "{{-1}}",
			want: []in{
				{Op: expr, Text: "-1", Depth: 0, Line: 1},
			},
		},
		{
			name: "multi-line statement margin",
			text: "x\n{%\n    a = 1\n    if a:\n        a = 2\n%}",
			want: []in{
				{Op: lit, Text: "x\n", Depth: 0, Line: 1},
				{Op: raw, Text: "a = 1\nif a:\n    a = 2", Depth: 0, Line: 3},
			},
		},
		{
			name: "line continuation",
			text: "a \\\n    b",
			want: []in{
				{Op: lit, Text: "a b", Depth: 0, Line: 1},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := compileText(t, tt.text, true)
			require.NoError(t, err)

			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("CompileSegments() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCompileSegments_keeps_line_continuations(t *testing.T) {
	t.Parallel()

	got, err := compileText(t, "a \\\n    b", false)
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, "a \\\n    b", got[0].Text)
}

func TestCompileSegments_unexpected_dedent(t *testing.T) {
	t.Parallel()

	_, err := compileText(t, "ok\n{% :%}", true)

	require.ErrorIs(t, err, templating.ErrUnexpectedDedent)

	var ce *templating.CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 2, ce.Line)
	assert.Equal(t, ":", ce.Directive)
}

func TestCompileSegments_unterminated_block(t *testing.T) {
	t.Parallel()

	_, err := compileText(t, "{% if True %}{% for i in x %}no close", true)

	require.ErrorIs(t, err, templating.ErrUnterminatedBlock)

	var ce *templating.CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 2, ce.Pending)
	assert.Contains(t, err.Error(), "2 block statement(s) still open")
}

func TestSource(t *testing.T) {
	t.Parallel()

	instrs, err := compileText(t, "Hi \"{{ n }}\"\n{% for i in x -%}\n\t{{- i }}\\x{% :%}", true)
	require.NoError(t, err)

	src, lines := templating.Source(instrs)

	assert.Equal(t,
		"write(\"Hi \\\"\")\n"+
			"write(n)\n"+
			"write(\"\\\"\\n\")\n"+
			"for i in x:\n"+
			"\t_trim_next()\n"+
			"\twrite(\"\\n\\t\")\n"+
			"\t_trim_prev()\n"+
			"\twrite(i)\n"+
			"\twrite(\"\\\\x\")\n",
		src,
	)
	assert.Equal(t, []int{1, 1, 1, 2, 2, 2, 3, 3, 3}, lines)
}

func TestBuild_syntax_error_maps_to_template_line(t *testing.T) {
	t.Parallel()

	instrs, err := compileText(t, "line one\nline two {{ 1 + }}\n", true)
	require.NoError(t, err)

	_, err = templating.Build(instrs, "line one\nline two {{ 1 + }}\n")

	require.ErrorIs(t, err, templating.ErrSyntax)

	var ce *templating.CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 2, ce.Line)
	assert.Contains(t, ce.Snippet, "> 2 | line two {{ 1 + }}")
	assert.Contains(t, ce.Snippet, "  1 | line one")
}

func TestOpCode_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "write_literal", templating.OpWriteLiteral.String())
	assert.Equal(t, "write_expr", templating.OpWriteExpr.String())
	assert.Equal(t, "raw_statement", templating.OpRawStatement.String())
	assert.Equal(t, "strip_prev", templating.OpStripPrev.String())
	assert.Equal(t, "strip_next", templating.OpStripNext.String())
}
