package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeHandler receives the sorted paths that changed during one burst.
type ChangeHandler func(changed []string) error

// Watcher watches individual files through their parent directories, so
// editors that save by renaming a temporary file are still seen.
type Watcher struct {
	fs     *fsnotify.Watcher
	delay  time.Duration
	logger *slog.Logger

	mu    sync.Mutex
	files map[string]bool
	dirs  map[string]bool
}

// New returns a watcher that waits delay after the last event of a
// burst before notifying.
func New(delay time.Duration, logger *slog.Logger) (*Watcher, error) {
	const errCtx = "creating watcher"

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Watcher{
		fs:     fw,
		delay:  delay,
		logger: logger,
		files:  make(map[string]bool),
		dirs:   make(map[string]bool),
	}, nil
}

// Add starts watching path. Adding a path twice is a no-op.
func (wa *Watcher) Add(path string) error {
	const errCtx = "watching path"

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	wa.mu.Lock()
	defer wa.mu.Unlock()

	if wa.files[abs] {
		return nil
	}

	dir := filepath.Dir(abs)
	if !wa.dirs[dir] {
		if err := wa.fs.Add(dir); err != nil {
			return fmt.Errorf("%s: %s: %w", errCtx, dir, err)
		}

		wa.dirs[dir] = true
	}

	wa.files[abs] = true

	return nil
}

// Files returns the watched files, sorted.
func (wa *Watcher) Files() []string {
	wa.mu.Lock()
	defer wa.mu.Unlock()

	out := make([]string, 0, len(wa.files))
	for fi := range wa.files {
		out = append(out, fi)
	}

	slices.Sort(out)

	return out
}

// Run delivers debounced changes to fn until ctx is done or fn fails.
// It returns nil when ctx ends.
func (wa *Watcher) Run(ctx context.Context, fn ChangeHandler) error {
	const errCtx = "watching"

	var (
		timer   *time.Timer
		fire    <-chan time.Time
		pending = make(map[string]bool)
	)

	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-wa.fs.Events:
			if !ok {
				return nil
			}

			if !wa.relevant(ev) {
				continue
			}

			pending[ev.Name] = true

			if timer == nil {
				timer = time.NewTimer(wa.delay)
			} else {
				timer.Reset(wa.delay)
			}

			fire = timer.C
		case err, ok := <-wa.fs.Errors:
			if !ok {
				return nil
			}

			wa.logger.Warn("watch error", "error", err)
		case <-fire:
			fire = nil

			changed := make([]string, 0, len(pending))
			for pa := range pending {
				changed = append(changed, pa)
			}

			slices.Sort(changed)
			clear(pending)

			wa.logger.Debug("files changed", "paths", changed)

			if err := fn(changed); err != nil {
				return fmt.Errorf("%s: %w", errCtx, err)
			}
		}
	}
}

func (wa *Watcher) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) &&
		!ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
		return false
	}

	abs, err := filepath.Abs(ev.Name)
	if err != nil {
		return false
	}

	wa.mu.Lock()
	defer wa.mu.Unlock()

	return wa.files[abs]
}

// Close releases the underlying watcher.
func (wa *Watcher) Close() error {
	const errCtx = "closing watcher"

	if err := wa.fs.Close(); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	return nil
}
