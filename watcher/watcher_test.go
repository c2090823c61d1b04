package watcher_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byte4ever/templite/watcher"
)

func startWatcher(
	tb testing.TB,
	paths ...string,
) (<-chan []string, context.CancelFunc, <-chan error) {
	tb.Helper()

	wa, err := watcher.New(20*time.Millisecond, nil)
	require.NoError(tb, err)

	tb.Cleanup(func() { _ = wa.Close() })

	for _, pa := range paths {
		require.NoError(tb, wa.Add(pa))
	}

	ctx, cancel := context.WithCancel(context.Background())
	changes := make(chan []string, 10)
	done := make(chan error, 1)

	go func() {
		done <- wa.Run(ctx, func(changed []string) error {
			changes <- changed
			return nil
		})
	}()

	tb.Cleanup(cancel)

	return changes, cancel, done
}

func TestWatcher_reports_write(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	pa := filepath.Join(dir, "page.tpl")
	require.NoError(t, os.WriteFile(pa, []byte("v1"), 0o600))

	changes, _, _ := startWatcher(t, pa)

	require.NoError(t, os.WriteFile(pa, []byte("v2"), 0o600))

	select {
	case got := <-changes:
		assert.Equal(t, []string{pa}, got)
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}
}

func TestWatcher_ignores_unwatched_siblings(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	pa := filepath.Join(dir, "page.tpl")
	other := filepath.Join(dir, "other.txt")
	require.NoError(t, os.WriteFile(pa, []byte("v1"), 0o600))

	changes, _, _ := startWatcher(t, pa)

	require.NoError(t, os.WriteFile(other, []byte("noise"), 0o600))
	require.NoError(t, os.WriteFile(pa, []byte("v2"), 0o600))

	select {
	case got := <-changes:
		assert.Equal(t, []string{pa}, got)
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}
}

func TestWatcher_stops_on_cancel(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	pa := filepath.Join(dir, "page.tpl")
	require.NoError(t, os.WriteFile(pa, []byte("v1"), 0o600))

	_, cancel, done := startWatcher(t, pa)

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcher_add_missing_directory(t *testing.T) {
	t.Parallel()

	wa, err := watcher.New(time.Millisecond, nil)
	require.NoError(t, err)

	defer func() { _ = wa.Close() }()

	err = wa.Add(filepath.Join(t.TempDir(), "missing", "page.tpl"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "watching path")
}

func TestWatcher_files_sorted_and_deduplicated(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	wa, err := watcher.New(time.Millisecond, nil)
	require.NoError(t, err)

	defer func() { _ = wa.Close() }()

	b := filepath.Join(dir, "b.tpl")
	a := filepath.Join(dir, "a.tpl")

	require.NoError(t, wa.Add(b))
	require.NoError(t, wa.Add(a))
	require.NoError(t, wa.Add(b))

	assert.Equal(t, []string{a, b}, wa.Files())
}
