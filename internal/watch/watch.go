// Package watch recompiles documents when their sources change.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	derrors "git.home.luguber.info/inful/mdocpack/internal/foundation/errors"
	"git.home.luguber.info/inful/mdocpack/internal/logfields"
)

// Batch is one debounced set of changes.
type Batch struct {
	// Files are the changed documents matching Config.Match, sorted.
	Files []string
	// Full is set when a context directory changed; every document is stale.
	Full bool
}

// Config configures a Watcher.
type Config struct {
	// Roots are watched recursively for documents.
	Roots []string
	// ContextDirs invalidate every document when anything below them changes.
	ContextDirs []string
	// Match selects documents; nil matches everything.
	Match func(path string) bool

	QuietWindow time.Duration
	MaxDelay    time.Duration
	Logger      *slog.Logger
}

// Watcher coalesces filesystem events into batches.
type Watcher struct {
	cfg     Config
	watcher *fsnotify.Watcher
	pending collector
}

// New creates a watcher for cfg. Close releases it.
func New(cfg Config) (*Watcher, error) {
	if cfg.QuietWindow <= 0 {
		cfg.QuietWindow = 200 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 2 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Match == nil {
		cfg.Match = func(string) bool { return true }
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, derrors.WrapError(err, derrors.CategoryFileSystem, "failed to create file watcher").Fatal().Build()
	}
	w := &Watcher{cfg: cfg, watcher: fw}
	w.pending.contextDirs = cleanAll(cfg.ContextDirs)
	w.pending.match = cfg.Match

	for _, root := range append(slices.Clone(cfg.Roots), cfg.ContextDirs...) {
		if err := w.addTree(root); err != nil {
			_ = fw.Close()
			return nil, err
		}
	}
	return w, nil
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// addTree watches root and every directory below it. A missing root is
// skipped so that an absent app or schema directory is not an error.
func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				w.cfg.Logger.Debug("Not watching missing directory", logfields.File(root))
				return filepath.SkipDir
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return derrors.WrapError(err, derrors.CategoryFileSystem, fmt.Sprintf("failed to watch %s", path)).Fatal().Build()
		}
		return nil
	})
}

// Run delivers batches to handle until ctx is done. Handler errors are
// logged and do not stop the watcher.
func (w *Watcher) Run(ctx context.Context, handle func(context.Context, Batch) error) error {
	quiet := time.NewTimer(time.Hour)
	quiet.Stop()
	maxDelay := time.NewTimer(time.Hour)
	maxDelay.Stop()
	var quietC, maxC <-chan time.Time

	reset := func(t *time.Timer, after time.Duration) {
		if !t.Stop() {
			select {
			case <-t.C:
			default:
			}
		}
		t.Reset(after)
	}

	flush := func() {
		quietC, maxC = nil, nil
		batch, ok := w.pending.flush()
		if !ok {
			return
		}
		if err := handle(ctx, batch); err != nil {
			w.cfg.Logger.Error("Rebuild failed", logfields.Error(err))
		}
	}

	for {
		select {
		case <-ctx.Done():
			quiet.Stop()
			maxDelay.Stop()
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Create != 0 {
				// new directories need their own watch
				_ = w.addTree(event.Name)
			}
			if event.Op == fsnotify.Chmod {
				continue
			}
			if !w.pending.add(event.Name) {
				continue
			}
			w.cfg.Logger.Debug("Change detected", logfields.File(event.Name))
			reset(quiet, w.cfg.QuietWindow)
			quietC = quiet.C
			if maxC == nil {
				reset(maxDelay, w.cfg.MaxDelay)
				maxC = maxDelay.C
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.cfg.Logger.Error("Watcher error", logfields.Error(err))
		case <-quietC:
			flush()
		case <-maxC:
			flush()
		}
	}
}

// collector accumulates changed paths between flushes.
type collector struct {
	contextDirs []string
	match       func(string) bool
	files       map[string]struct{}
	full        bool
}

// add records path and reports whether it is relevant.
func (c *collector) add(path string) bool {
	path = filepath.Clean(path)
	for _, dir := range c.contextDirs {
		if path == dir || strings.HasPrefix(path, dir+string(filepath.Separator)) {
			c.full = true
			return true
		}
	}
	if c.match != nil && !c.match(path) {
		return false
	}
	if c.files == nil {
		c.files = map[string]struct{}{}
	}
	c.files[path] = struct{}{}
	return true
}

func (c *collector) flush() (Batch, bool) {
	if !c.full && len(c.files) == 0 {
		return Batch{}, false
	}
	b := Batch{Full: c.full}
	for f := range c.files {
		b.Files = append(b.Files, f)
	}
	slices.Sort(b.Files)
	c.files, c.full = nil, false
	return b, true
}

func cleanAll(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		out = append(out, filepath.Clean(p))
	}
	return out
}
