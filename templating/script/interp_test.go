package script_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byte4ever/templite/templating/script"
)

// exec runs src with the built-ins, vars and a write function that
// separates its arguments with spaces.
func exec(
	tb testing.TB,
	src string,
	vars map[string]any,
) (string, error) {
	tb.Helper()

	prog, err := script.Parse(src)
	require.NoError(tb, err)

	var sb strings.Builder

	scope := script.Builtins()
	for k, v := range vars {
		scope[k] = v
	}

	scope["write"] = script.Func(func(args ...any) (any, error) {
		parts := make([]string, len(args))
		for i, arg := range args {
			parts[i] = script.Str(arg)
		}

		sb.WriteString(strings.Join(parts, " "))

		return nil, nil
	})

	err = script.NewInterpreter(scope).Exec(prog)

	return sb.String(), err
}

func mustExec(
	tb testing.TB,
	src string,
	vars map[string]any,
) string {
	tb.Helper()

	out, err := exec(tb, src, vars)
	require.NoError(tb, err)

	return out
}

func TestExec_expressions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
		want string
	}{
		{name: "precedence", src: "write(1 + 2 * 3)", want: "7"},
		{name: "true division", src: "write(7 / 2)", want: "3.5"},
		{name: "floor division", src: "write(7 // 2, -7 // 2)", want: "3 -4"},
		{name: "modulo sign", src: "write(-7 % 3)", want: "2"},
		{name: "power is right associative", src: "write(2 ** 3 ** 2)", want: "512"},
		{name: "unary minus binds looser than power", src: "write(-2 ** 2)", want: "-4"},
		{name: "string concat and repeat", src: `write("ab" + "c", "-" * 3)`, want: "abc ---"},
		{name: "percent format", src: `write("%s=%03d" % ("n", 7))`, want: "n=007"},
		{name: "brace format", src: `write("{}-{}".format(1, "x"))`, want: "1-x"},
		{name: "chained compare", src: "write(1 < 2 < 3, 3 > 2 > 2)", want: "True False"},
		{name: "membership", src: `write("b" in "abc", 4 not in [1, 2])`, want: "True True"},
		{name: "boolean short circuit", src: `write(0 or "x", "" and 1)`, want: "x "},
		{name: "conditional", src: `write("yes" if 0 else "no")`, want: "no"},
		{name: "is none", src: "write(None is None, 1 is not None)", want: "True True"},
		{name: "list repr", src: `write([1, "a", None, True])`, want: "[1, 'a', None, True]"},
		{name: "dict keeps order", src: `write({"b": 1, "a": 2})`, want: "{'b': 1, 'a': 2}"},
		{name: "index and slice", src: `write("hello"[1], "hello"[-1], "hello"[1:3], [1, 2, 3][:2])`, want: "e o el [1, 2]"},
		{name: "float repr", src: "write(1.0, 0.1 + 0.2)", want: "1.0 0.30000000000000004"},
		{name: "adjacent strings join", src: `write("a" "b")`, want: "ab"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, mustExec(t, tt.src, nil))
		})
	}
}

func TestExec_statements(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "for over range",
			src:  "for i in range(3):\n\twrite(i)\n",
			want: "012",
		},
		{
			name: "for with unpacking",
			src:  "for i, c in enumerate(\"ab\"):\n\twrite(i, c)\n",
			want: "0 a1 b",
		},
		{
			name: "dict items",
			src:  "d = {\"x\": 1, \"y\": 2}\nfor k, v in d.items():\n\twrite(k + \"=\" + str(v) + \";\")\n",
			want: "x=1;y=2;",
		},
		{
			name: "while with break and continue",
			src: "i = 0\nwhile True:\n\ti += 1\n\tif i == 2:\n\t\tcontinue\n" +
				"\tif i > 4:\n\t\tbreak\n\twrite(i)\n",
			want: "134",
		},
		{
			name: "if elif else",
			src:  "for n in [1, 2, 3]:\n\tif n == 1:\n\t\twrite(\"a\")\n\telif n == 2:\n\t\twrite(\"b\")\n\telse:\n\t\twrite(\"c\")\n",
			want: "abc",
		},
		{
			name: "inline block",
			src:  "if True: write(\"x\")\n",
			want: "x",
		},
		{
			name: "empty block",
			src:  "if True:\nwrite(\"after\")\n",
			want: "after",
		},
		{
			name: "tuple assignment",
			src:  "a, b = 1, 2\na, b = b, a\nwrite(a, b)\n",
			want: "2 1",
		},
		{
			name: "item assignment",
			src:  "l = [1, 2]\nl[0] = 9\nd = {}\nd[\"k\"] = l\nwrite(d)\n",
			want: "{'k': [9, 2]}",
		},
		{
			name: "augmented assignment on strings",
			src:  "s = \"a\"\ns += \"b\"\ns *= 2\nwrite(s)\n",
			want: "abab",
		},
		{
			name: "pass",
			src:  "for i in []:\n\tpass\nwrite(\"done\")\n",
			want: "done",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, mustExec(t, tt.src, nil))
		})
	}
}

func TestExec_assignments_are_visible_in_scope(t *testing.T) {
	t.Parallel()

	prog, err := script.Parse("total = 0\nfor n in items:\n\ttotal += n\n")
	require.NoError(t, err)

	scope := map[string]any{"items": []int{1, 2, 3}}

	require.NoError(t, script.NewInterpreter(scope).Exec(prog))
	assert.Equal(t, int64(6), scope["total"])
}

func TestExec_go_values(t *testing.T) {
	t.Parallel()

	type user struct {
		Name string
		Tags []string
	}

	out := mustExec(t, `write(u.Name, len(u.Tags), m["k"], m.k, greet("Bob"))`, map[string]any{
		"u":     user{Name: "Ann", Tags: []string{"a", "b"}},
		"m":     map[string]int{"k": 3},
		"greet": func(name string) string { return "hi " + name },
	})

	assert.Equal(t, "Ann 2 3 3 hi Bob", out)
}

func TestExec_go_function_error(t *testing.T) {
	t.Parallel()

	errBoom := errors.New("boom")

	_, err := exec(t, "x = 1\nfail()\n", map[string]any{
		"fail": func() error { return errBoom },
	})

	var re *script.RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 2, re.Line)
	require.ErrorIs(t, err, errBoom)
}

func TestExec_runtime_errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
		want string
		line int
	}{
		{name: "undefined name", src: "write(nmae)", want: `name "nmae" is not defined`, line: 1},
		{name: "division by zero", src: "x = 1\nwrite(x / 0)", want: "division by zero", line: 2},
		{name: "bad operands", src: `write(1 + "a")`, want: "unsupported operand types for +: int and str", line: 1},
		{name: "missing key", src: `d = {}` + "\n" + `write(d["k"])`, want: "key 'k' not found", line: 2},
		{name: "index out of range", src: "write([][0])", want: "index out of range", line: 1},
		{name: "not callable", src: "x = 1\nx()", want: "int is not callable", line: 2},
		{name: "bad unpack", src: "a, b = [1]", want: "cannot unpack", line: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := exec(t, tt.src, nil)

			var re *script.RuntimeError
			require.ErrorAs(t, err, &re)
			assert.Contains(t, err.Error(), tt.want)
			assert.Equal(t, tt.line, re.Line)
		})
	}
}

func TestExec_undefined_name_suggests_close_match(t *testing.T) {
	t.Parallel()

	_, err := exec(t, "write(nme)", map[string]any{"name": "x"})

	require.ErrorIs(t, err, script.ErrUndefined)
	assert.Contains(t, err.Error(), `did you mean "name"?`)
}

func TestExec_break_outside_loop(t *testing.T) {
	t.Parallel()

	_, err := exec(t, "break", nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "'break' outside loop")
}

func TestExec_huge_repeat_is_an_error(t *testing.T) {
	t.Parallel()

	for _, src := range []string{
		`write("ab" * 9223372036854775807)`,
		`write([0] * 9223372036854775807)`,
	} {
		_, err := exec(t, src, nil)

		var re *script.RuntimeError
		require.ErrorAs(t, err, &re)
		assert.Contains(t, err.Error(), "repeated sequence too long")
	}
}

func TestExec_go_function_panic_is_an_error(t *testing.T) {
	t.Parallel()

	_, err := exec(t, "write(1)\nboom()", map[string]any{
		"boom": func() { panic("kaput") },
	})

	var re *script.RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Contains(t, err.Error(), "internal error: kaput")
}

func TestExec_go_map_and_slice_methods(t *testing.T) {
	t.Parallel()

	out := mustExec(t,
		"for k, v in d.items():\n"+
			"    write(k, v, '')\n"+
			"write(d.keys(), d.get('b'), d.get('z', 0), tags.index('b'), tags.count('a'))",
		map[string]any{
			"d":    map[string]any{"b": 2, "a": 1},
			"tags": []string{"a", "b", "a"},
		},
	)

	assert.Equal(t, "a 1 b 2 ['a', 'b'] 2 0 1 2", out)
}

func TestExec_go_map_has_no_mutating_methods(t *testing.T) {
	t.Parallel()

	_, err := exec(t, "d.pop('a')", map[string]any{"d": map[string]int{"a": 1}})
	require.Error(t, err)
}
