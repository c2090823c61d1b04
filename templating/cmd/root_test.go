package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byte4ever/templite/templating"
)

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

// execute runs the root command and returns what it wrote to stdout and
// stderr.
func execute(
	tb testing.TB,
	stdin string,
	args ...string,
) (string, string, error) {
	tb.Helper()

	var stdout, stderr bytes.Buffer

	cmd := newRootCmd(strings.NewReader(stdin), &stdout, &stderr)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())

	return stdout.String(), stderr.String(), err
}

func TestRoot_renders_file(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	tplPath := writeTemp(t, dir, "page.tpl", "{{ title }}: {% for n in items %}{{ n }},{% :%} {{ variables['title'] }}")
	dataPath := writeTemp(t, dir, "values.yaml", "items: [1, 2]\ntitle: ignored\n")
	outPath := filepath.Join(dir, "page.txt")

	_, _, err := execute(t, "",
		"-i", tplPath,
		"-o", outPath,
		"--data", dataPath,
		"-D", "title=Home",
	)
	require.NoError(t, err)

	got, err := os.ReadFile(outPath) //nolint:gosec // test file
	require.NoError(t, err)
	assert.Equal(t, "Home: 1,2, Home", string(got))
}

func TestRoot_output_path_uses_stamps(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	stampPath := writeTemp(t, dir, "status.txt", "BUILD_USER alice\n")
	tplPath := writeTemp(t, dir, "tpl.txt", "by {{ BUILD_USER }}")

	_, _, err := execute(t, "",
		"-i", tplPath,
		"-o", filepath.Join(dir, "out-{BUILD_USER}.txt"),
		"--stamp-info-file", stampPath,
	)
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(dir, "out-alice.txt")) //nolint:gosec // test file
	require.NoError(t, err)
	assert.Equal(t, "by alice", string(got))
}

func TestRoot_stdin_to_stdout(t *testing.T) {
	t.Parallel()

	stdout, _, err := execute(t, "{{ 6 * 7 }} {{ who }}", "-D", "who=you")
	require.NoError(t, err)
	assert.Equal(t, "42 you", stdout)
}

func TestRoot_custom_delimiters(t *testing.T) {
	t.Parallel()

	stdout, _, err := execute(t, "<< x >> {{ x }} [% y = 1 %][[ y ]]",
		"--delimiters", "<< >> {% %} {# #}",
		"--stmt-open", "[%",
		"--stmt-close", "%]",
		"--expr-open", "[[",
		"--expr-close", "]]",
		"-D", "x=1",
	)
	require.NoError(t, err)
	assert.Equal(t, "<< x >> {{ x }} 1", stdout)
}

func TestRoot_bad_delimiters(t *testing.T) {
	t.Parallel()

	_, _, err := execute(t, "x", "--delimiters", "{{ }}")
	require.ErrorIs(t, err, templating.ErrConfig)

	_, _, err = execute(t, "x", "--expr-open", "{%")
	require.ErrorIs(t, err, templating.ErrConfig)
}

func TestRoot_unknown_encoding(t *testing.T) {
	t.Parallel()

	_, _, err := execute(t, "x", "--encoding", "no-such-charset")
	require.ErrorIs(t, err, templating.ErrConfig)
}

func TestRoot_dump_to_stderr(t *testing.T) {
	t.Parallel()

	stdout, stderr, err := execute(t, "a{{ b }}", "--dump", "-", "-D", "b=c")
	require.NoError(t, err)
	assert.Equal(t, "ac", stdout)
	assert.Contains(t, stderr, "# <text>\nwrite(\"a\")\nwrite(b)\n")
}

func TestRoot_dump_json_to_file(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	dumpPath := filepath.Join(dir, "dump.json")

	_, _, err := execute(t, "a", "--dump", dumpPath, "--dump-format", "json")
	require.NoError(t, err)

	got, err := os.ReadFile(dumpPath) //nolint:gosec // test file
	require.NoError(t, err)
	assert.Contains(t, string(got), `"file":"<text>"`)
	assert.Contains(t, string(got), `"op":"write_literal"`)
}

func TestRoot_unknown_dump_format(t *testing.T) {
	t.Parallel()

	_, _, err := execute(t, "a", "--dump-format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown dump format "xml"`)
}

func TestRoot_config_file(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfgPath := writeTemp(t, dir, "cfg.yaml", "delimiters: \"<< >> <% %> <# #>\"\n")

	stdout, _, err := execute(t, "<< 1 + 1 >>{{ x }}", "--config", cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "2{{ x }}", stdout)
}

func TestRoot_missing_config_file(t *testing.T) {
	t.Parallel()

	_, _, err := execute(t, "a", "--config", filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading config")
}

func TestRoot_render_error(t *testing.T) {
	t.Parallel()

	stdout, _, err := execute(t, "ok\n{{ missing }}")

	require.ErrorIs(t, err, templating.ErrRuntime)
	assert.Empty(t, stdout)
	assert.Contains(t, templating.Detail(err), "> 2 | {{ missing }}")
}

func TestRoot_watch_needs_input(t *testing.T) {
	t.Parallel()

	_, _, err := execute(t, "a", "--watch")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--watch needs --input")
}

func TestRoot_rejects_arguments(t *testing.T) {
	t.Parallel()

	_, _, err := execute(t, "a", "extra")
	require.Error(t, err)
}
