// Package watch turns file-system events into test-run triggers.
package watch

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/s22625/supcut/internal/store"
)

// DefaultWindow is the cooldown between runs when none is configured.
const DefaultWindow = 5 * time.Second

// triggerOps are the event kinds that may start a run.
const triggerOps = fsnotify.Create | fsnotify.Write | fsnotify.Remove | fsnotify.Rename | fsnotify.Chmod

// Gate decides whether a file-system event should start a run.
type Gate struct {
	store  *store.RunStore
	window time.Duration
	now    func() time.Time

	mu         sync.Mutex
	lastAccept time.Time
}

// NewGate creates a gate over st. A nil now uses time.Now.
func NewGate(st *store.RunStore, window time.Duration, now func() time.Time) *Gate {
	if now == nil {
		now = time.Now
	}
	return &Gate{store: st, window: window, now: now}
}

// Window returns the cooldown window.
func (g *Gate) Window() time.Duration {
	return g.window
}

// Accept reports whether ev should trigger a run. Events are rejected when
// the path is not a selected watched path, when the event kind cannot change
// file content, while a run is in flight, and within the cooldown window after
// the last completed run or the last accepted event.
func (g *Gate) Accept(ev fsnotify.Event) bool {
	path := normalize(ev.Name)
	if !g.store.IsWatchSelected(path) {
		return false
	}
	if ev.Op&triggerOps == 0 {
		return false
	}

	running, lastRunAt := g.store.Timing()
	if running {
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	if !lastRunAt.IsZero() && now.Sub(lastRunAt) < g.window {
		return false
	}
	if !g.lastAccept.IsZero() && now.Sub(g.lastAccept) < g.window {
		return false
	}
	g.lastAccept = now
	return true
}

func normalize(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}
