package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// TriggerFunc starts a run for the changed path. It must not block.
type TriggerFunc func(ctx context.Context, path string)

// Watcher feeds fsnotify events through a Gate.
type Watcher struct {
	gate    *Gate
	paths   []string
	trigger TriggerFunc
	logger  *slog.Logger
	onEvent func(path string)
}

// NewWatcher creates a watcher for paths. Parent directories are watched so
// that editors replacing a file by rename keep being observed.
func NewWatcher(gate *Gate, paths []string, trigger TriggerFunc, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{gate: gate, paths: paths, trigger: trigger, logger: logger}
}

// OnAccepted registers a callback invoked with each accepted path, before
// the trigger fires.
func (w *Watcher) OnAccepted(fn func(path string)) {
	w.onEvent = fn
}

// Run blocks until ctx is cancelled or the fsnotify watcher fails.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fw.Close()

	for _, dir := range parentDirs(w.paths) {
		if err := fw.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		w.logger.Debug("watching directory", "dir", dir)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event) {
	if !w.gate.Accept(ev) {
		return
	}
	path := normalize(ev.Name)
	w.logger.Info("change detected", "path", path, "op", ev.Op.String())
	if w.onEvent != nil {
		w.onEvent(path)
	}
	w.trigger(ctx, path)
}

func parentDirs(paths []string) []string {
	seen := make(map[string]bool)
	var dirs []string
	for _, p := range paths {
		d := filepath.Dir(p)
		if !seen[d] {
			seen[d] = true
			dirs = append(dirs, d)
		}
	}
	sort.Strings(dirs)
	return dirs
}

// ExpandGlobs resolves patterns relative to root into a sorted, de-duplicated
// list of absolute regular-file paths. "**" matches across directories.
// Files inside skipDir are never returned.
func ExpandGlobs(root string, patterns []string, skipDir string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		if !filepath.IsAbs(pattern) {
			pattern = filepath.Join(root, pattern)
		}
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			abs, err := filepath.Abs(m)
			if err != nil {
				continue
			}
			if skipDir != "" && within(abs, skipDir) {
				continue
			}
			info, err := os.Stat(abs)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
			if !seen[abs] {
				seen[abs] = true
				out = append(out, abs)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
