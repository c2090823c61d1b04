package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

func execute(tb testing.TB, args ...string) (string, error) {
	tb.Helper()

	var stdout bytes.Buffer

	cmd := newStampCmd(&stdout)
	cmd.SetArgs(args)

	err := cmd.Execute()

	return stdout.String(), err
}

func TestStamp_format_to_stdout(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	status := writeTemp(t, dir, "status.txt", "BUILD_USER alice\nBUILD_VERSION 1.2\n")

	out, err := execute(t,
		"--stamp-info-file", status,
		"--format", "{BUILD_USER}@{BUILD_VERSION} {UNKNOWN}",
	)
	require.NoError(t, err)
	assert.Equal(t, "alice@1.2 {UNKNOWN}", out)
}

func TestStamp_format_file_to_output(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	first := writeTemp(t, dir, "a.txt", "TAG old\n")
	second := writeTemp(t, dir, "b.txt", "TAG new\n")
	format := writeTemp(t, dir, "fmt.txt", "image:{TAG}\n")
	outPath := filepath.Join(dir, "out.txt")

	out, err := execute(t,
		"--stamp-info-file", first,
		"--stamp-info-file", second,
		"--format-file", format,
		"-o", outPath,
	)
	require.NoError(t, err)
	assert.Empty(t, out)

	got, err := os.ReadFile(outPath) //nolint:gosec // test file
	require.NoError(t, err)
	assert.Equal(t, "image:new\n", string(got))
}

func TestStamp_format_conflict(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	format := writeTemp(t, dir, "fmt.txt", "x")

	_, err := execute(t, "--format", "x", "--format-file", format)
	require.ErrorIs(t, err, errFormatConflict)
}

func TestStamp_missing_stamp_file(t *testing.T) {
	t.Parallel()

	_, err := execute(t,
		"--stamp-info-file", filepath.Join(t.TempDir(), "nope.txt"),
		"--format", "x",
	)
	require.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), "stamping")
}

func TestStamp_missing_format_file(t *testing.T) {
	t.Parallel()

	_, err := execute(t, "--format-file", filepath.Join(t.TempDir(), "nope.txt"))
	require.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), "reading format file")
}
