package templating_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byte4ever/templite/templating"
)

// helper creates a temporary file with content and
// returns its path.
func writeTemp(
	tb testing.TB,
	dir string,
	name string,
	content string,
) string {
	tb.Helper()

	pa := filepath.Join(dir, name)
	require.NoError(tb, os.WriteFile(pa, []byte(content), 0o600))

	return pa
}

func mkdir(dir, name string) error {
	return os.MkdirAll(filepath.Join(dir, name), 0o750)
}

func TestExpand_file_to_file(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	tplPath := writeTemp(
		t, dir, "tpl.txt",
		"Hello {{ name }}!\n{% for i in range(2) %}{{ i }}{% :%}",
	)
	outPath := filepath.Join(dir, "out.txt")

	en := templating.Engine{}

	err := en.Expand(
		tplPath, outPath,
		templating.NewNamespace().Set("name", "World"),
		false,
	)
	require.NoError(t, err)

	got, err := os.ReadFile(outPath) //nolint:gosec // test file
	require.NoError(t, err)
	assert.Equal(t, "Hello World!\n01", string(got))

	fi, err := os.Stat(outPath)
	require.NoError(t, err)
	assert.Zero(t, fi.Mode().Perm()&0o111)
}

func TestExpand_stdin_to_stdout(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	en := templating.Engine{
		Stdin:  strings.NewReader("{{ 1 + 2 }} {{ x }}"),
		Stdout: &out,
	}

	err := en.Expand("", "", templating.NewNamespace().Set("x", "y"), false)
	require.NoError(t, err)
	assert.Equal(t, "3 y", out.String())
}

func TestExpand_executable_output(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	tplPath := writeTemp(t, dir, "tpl.sh", "#!/bin/sh\necho hi\n")
	outPath := filepath.Join(dir, "out.sh")

	en := templating.Engine{}

	require.NoError(t, en.Expand(tplPath, outPath, nil, true))

	fi, err := os.Stat(outPath)
	require.NoError(t, err)
	assert.NotZero(t, fi.Mode().Perm()&0o111)
}

func TestExpand_missing_template_file(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	en := templating.Engine{}

	err := en.Expand(
		filepath.Join(dir, "nope.txt"),
		filepath.Join(dir, "out.txt"),
		nil,
		false,
	)
	require.Error(t, err)
	require.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), "expanding template")
}

func TestExpand_nothing_written_on_render_failure(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	tplPath := writeTemp(t, dir, "tpl.txt", "partial {{ missing }}")
	outPath := filepath.Join(dir, "out.txt")

	en := templating.Engine{}

	err := en.Expand(tplPath, outPath, nil, false)
	require.ErrorIs(t, err, templating.ErrRuntime)

	_, err = os.Stat(outPath)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestExpand_skip_unchanged(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	tplPath := writeTemp(t, dir, "tpl.txt", "v={{ v }}")
	outPath := writeTemp(t, dir, "out.txt", "v=1")

	past := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, os.Chtimes(outPath, past, past))

	en := templating.Engine{SkipUnchanged: true}

	require.NoError(t, en.Expand(tplPath, outPath, templating.NewNamespace().Set("v", 1), false))

	fi, err := os.Stat(outPath)
	require.NoError(t, err)
	assert.True(t, fi.ModTime().Equal(past), "unchanged output must not be rewritten")

	require.NoError(t, en.Expand(tplPath, outPath, templating.NewNamespace().Set("v", 2), false))

	got, err := os.ReadFile(outPath) //nolint:gosec // test file
	require.NoError(t, err)
	assert.Equal(t, "v=2", string(got))
}

func TestExpand_latin1_encoding(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	tplPath := writeTemp(t, dir, "tpl.txt", "caf\xe9 {{ x }} {{ len('\xe9') }}")
	outPath := filepath.Join(dir, "out.txt")

	en := templating.Engine{Encoding: "ISO-8859-1"}
	require.NoError(t, en.Validate())

	require.NoError(t, en.Expand(tplPath, outPath, templating.NewNamespace().Set("x", "ü"), false))

	got, err := os.ReadFile(outPath) //nolint:gosec // test file
	require.NoError(t, err)
	assert.Equal(t, "caf\xe9 \xfc 1", string(got))
}

func TestEngine_unknown_encoding(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tplPath := writeTemp(t, dir, "tpl.txt", "x")

	en := templating.Engine{Encoding: "no-such-charset"}

	require.ErrorIs(t, en.Validate(), templating.ErrConfig)

	err := en.Expand(tplPath, filepath.Join(dir, "out.txt"), nil, false)
	require.ErrorIs(t, err, templating.ErrConfig)
}

func TestEngine_bad_delimiters(t *testing.T) {
	t.Parallel()

	en := templating.Engine{
		Delimiters: templating.Delimiters{ExprOpen: "{%"},
	}

	require.ErrorIs(t, en.Validate(), templating.ErrConfig)

	_, err := en.Compile("x")
	require.ErrorIs(t, err, templating.ErrConfig)
}

func TestEngine_dump_text(t *testing.T) {
	t.Parallel()

	var dump bytes.Buffer

	en := templating.Engine{Dump: &dump}

	_, err := en.Compile("a{{ b }}")
	require.NoError(t, err)

	assert.Equal(t, "# <text>\nwrite(\"a\")\nwrite(b)\n", dump.String())
}

func TestEngine_dump_json(t *testing.T) {
	t.Parallel()

	var dump bytes.Buffer

	dir := t.TempDir()
	tplPath := writeTemp(t, dir, "tpl.txt", "a{{ b }}")

	en := templating.Engine{Dump: &dump, DumpJSON: true}

	_, err := en.CompileFile(tplPath)
	require.NoError(t, err)

	var got struct {
		File    string `json:"file"`
		Program struct {
			Instructions []struct {
				Op    string `json:"op"`
				Text  string `json:"text"`
				Depth int    `json:"depth"`
				Line  int    `json:"line"`
			} `json:"instructions"`
			Source string `json:"source"`
		} `json:"program"`
	}

	require.NoError(t, json.Unmarshal(dump.Bytes(), &got))

	assert.Equal(t, tplPath, got.File)
	assert.Equal(t, "write(\"a\")\nwrite(b)\n", got.Program.Source)
	require.Len(t, got.Program.Instructions, 2)
	assert.Equal(t, "write_literal", got.Program.Instructions[0].Op)
	assert.Equal(t, "write_expr", got.Program.Instructions[1].Op)
	assert.Equal(t, "b", got.Program.Instructions[1].Text)
	assert.Equal(t, 1, got.Program.Instructions[1].Line)
}

func TestEngine_cache_text(t *testing.T) {
	t.Parallel()

	cache := templating.NewMemoryCache(0)
	en := templating.Engine{Cache: cache}

	first, err := en.Compile("{{ 1 }}")
	require.NoError(t, err)

	second, err := en.Compile("{{ 1 }}")
	require.NoError(t, err)

	assert.Same(t, first.Program(), second.Program())
	assert.Equal(t, templating.CacheStats{Entries: 1, Hits: 1, Misses: 1}, cache.Stats())

	// Delimiters are part of the key.
	other := templating.Engine{
		Cache:      cache,
		Delimiters: templating.Delimiters{ExprOpen: "<<", ExprClose: ">>"},
	}

	third, err := other.Compile("{{ 1 }}")
	require.NoError(t, err)

	assert.NotSame(t, first.Program(), third.Program())
	assert.Equal(t, 2, cache.Stats().Entries)

	out, err := third.Render(nil)
	require.NoError(t, err)
	assert.Equal(t, "{{ 1 }}", out)
}

func TestEngine_cache_file_modification(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tplPath := writeTemp(t, dir, "tpl.txt", "one")

	cache := templating.NewMemoryCache(0)
	en := templating.Engine{Cache: cache}

	_, err := en.CompileFile(tplPath)
	require.NoError(t, err)

	_, err = en.CompileFile(tplPath)
	require.NoError(t, err)

	assert.Equal(t, templating.CacheStats{Entries: 1, Hits: 1, Misses: 1}, cache.Stats())

	writeTemp(t, dir, "tpl.txt", "two!")

	tpl, err := en.CompileFile(tplPath)
	require.NoError(t, err)

	out, err := tpl.Render(nil)
	require.NoError(t, err)
	assert.Equal(t, "two!", out)

	stats := cache.Stats()
	assert.Equal(t, int64(2), stats.Misses)
	assert.Equal(t, 2, stats.Entries)
}

func TestCompileFile_syntax_error(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tplPath := writeTemp(t, dir, "bad.tpl", "ok\n{{ 1 + }}\nafter\n")

	_, err := (&templating.Engine{}).CompileFile(tplPath)

	require.ErrorIs(t, err, templating.ErrSyntax)

	var ce *templating.CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, tplPath, ce.File)
	assert.Equal(t, 2, ce.Line)
	assert.Contains(t, ce.Snippet, "> 2 | {{ 1 + }}")
	assert.Contains(t, ce.Snippet, "  1 | ok")
	assert.Contains(t, err.Error(), tplPath+":2: syntax error")
}

func TestCompileFile_on_load_reports_includes(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	main := writeTemp(t, dir, "main.tpl", "{% include('part.tpl') %}")
	part := writeTemp(t, dir, "part.tpl", "p")

	var loaded []string

	en := templating.Engine{
		OnLoad: func(path string) { loaded = append(loaded, path) },
	}

	tpl, err := en.CompileFile(main)
	require.NoError(t, err)

	out, err := tpl.Render(nil)
	require.NoError(t, err)
	assert.Equal(t, "p", out)

	assert.Equal(t, []string{main, part}, loaded)
}

func FuzzCompile(f *testing.F) {
	f.Add("Hello {{ name }}!")
	f.Add("{% for i in x %}{{ i }}{% :%}")
	f.Add("{% if a %}")
	f.Add("{% : %}")
	f.Add("{{")
	f.Add("}}")
	f.Add("{# {{ #}")
	f.Add(`\{{ x }}`)
	f.Add("{%-%}{{- -}}")
	f.Add("{{ 1 + }}")
	f.Add("")

	kinds := []error{
		templating.ErrUnclosedDirective,
		templating.ErrUnexpectedDedent,
		templating.ErrUnterminatedBlock,
		templating.ErrSyntax,
	}

	f.Fuzz(func(t *testing.T, text string) {
		en := templating.Engine{}

		_, err := en.Compile(text)
		if err == nil {
			return
		}

		for _, kind := range kinds {
			if errors.Is(err, kind) {
				return
			}
		}

		t.Fatalf("unexpected compile error kind: %v", err)
	})
}
