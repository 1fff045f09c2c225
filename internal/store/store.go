// Package store holds the shared run state read by the dashboard and written
// by the coordinator.
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/s22625/supcut/internal/model"
)

// Snapshot is a consistent, deep-copied view of the run state.
type Snapshot struct {
	Running      bool
	RunStartedAt time.Time
	LastRunAt    time.Time
	RunCount     int

	Current  *model.RunResult
	Previous *model.RunResult

	Watched              []model.WatchedPath
	TestFiles            []string
	SelectedTestFiles    map[string]bool
	SelectedFailingTests map[string]bool

	StatusLine string
	StatusErr  bool
}

// RunStore is the single piece of shared mutable state. Every method is one
// critical section; no lock is held while a run executes.
type RunStore struct {
	mu sync.Mutex

	running      bool
	runStartedAt time.Time
	lastRunAt    time.Time
	runCount     int

	current  *model.RunResult
	previous *model.RunResult

	watched       []model.WatchedPath
	watchIndex    map[string]int
	testFiles     []string
	selectedFiles map[string]bool
	selectedFail  map[string]bool

	statusLine string
	statusErr  bool

	now func() time.Time
}

// New creates a store over a fixed set of watched paths and selectable test
// files. All test files start selected.
func New(watched []model.WatchedPath, testFiles []string) *RunStore {
	s := &RunStore{
		current:       model.EmptyResult(),
		previous:      model.EmptyResult(),
		watched:       append([]model.WatchedPath(nil), watched...),
		watchIndex:    make(map[string]int, len(watched)),
		selectedFiles: make(map[string]bool, len(testFiles)),
		selectedFail:  make(map[string]bool),
		statusLine:    "waiting for changes",
		now:           time.Now,
	}
	for i, w := range s.watched {
		s.watchIndex[w.Path] = i
	}
	files := append([]string(nil), testFiles...)
	sort.Strings(files)
	for _, f := range files {
		if _, dup := s.selectedFiles[f]; dup {
			continue
		}
		s.testFiles = append(s.testFiles, f)
		s.selectedFiles[f] = true
	}
	return s
}

// SetClock overrides the time source. Intended for tests.
func (s *RunStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// TryBeginRun claims the single-flight slot. It returns false if a run is
// already in progress.
func (s *RunStore) TryBeginRun() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	s.runStartedAt = s.now()
	s.statusLine = "running tests..."
	s.statusErr = false
	return true
}

// EndRun installs result as current, moves the old current to previous,
// resets the failing-test selection and releases the run slot.
func (s *RunStore) EndRun(result *model.RunResult) {
	if result == nil {
		result = model.EmptyResult()
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.previous = s.current
	s.current = result
	s.selectedFail = make(map[string]bool, len(result.FailingTests))
	for id := range result.FailingTests {
		s.selectedFail[id] = true
	}
	s.lastRunAt = s.now()
	s.runCount++
	s.running = false
	s.statusLine = result.Summary()
	s.statusErr = result.Err != ""
}

// Snapshot returns a deep copy of the state.
func (s *RunStore) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Running:              s.running,
		RunStartedAt:         s.runStartedAt,
		LastRunAt:            s.lastRunAt,
		RunCount:             s.runCount,
		Current:              s.current.Clone(),
		Previous:             s.previous.Clone(),
		Watched:              append([]model.WatchedPath(nil), s.watched...),
		TestFiles:            append([]string(nil), s.testFiles...),
		SelectedTestFiles:    copyBoolMap(s.selectedFiles),
		SelectedFailingTests: copyBoolMap(s.selectedFail),
		StatusLine:           s.statusLine,
		StatusErr:            s.statusErr,
	}
	return snap
}

// Timing returns the run flag and the last completion time without copying
// results. Used on the file-event hot path.
func (s *RunStore) Timing() (running bool, lastRunAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running, s.lastRunAt
}

// Current returns a copy of the most recent completed result.
func (s *RunStore) Current() *model.RunResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Clone()
}

// IsWatchSelected reports whether path is watched and currently selected.
func (s *RunStore) IsWatchSelected(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.watchIndex[path]
	return ok && s.watched[i].Selected
}

// SetWatchSelected toggles whether changes to path may trigger a run.
// It returns false if path is not watched.
func (s *RunStore) SetWatchSelected(path string, selected bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.watchIndex[path]
	if !ok {
		return false
	}
	s.watched[i].Selected = selected
	return true
}

// SetTestFileSelected toggles whether a test file is passed to the command.
// It returns false if path is not a known test file.
func (s *RunStore) SetTestFileSelected(path string, selected bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.selectedFiles[path]; !ok {
		return false
	}
	s.selectedFiles[path] = selected
	return true
}

// SelectedTestFiles returns the selected test files, sorted.
func (s *RunStore) SelectedTestFiles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, f := range s.testFiles {
		if s.selectedFiles[f] {
			out = append(out, f)
		}
	}
	return out
}

// SetFailingSelected toggles focus on a failing test of the current run.
// The selection is reset by the next EndRun.
func (s *RunStore) SetFailingSelected(id string, selected bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.selectedFail[id]; !ok {
		return false
	}
	s.selectedFail[id] = selected
	return true
}

// SetStatus replaces the status line.
func (s *RunStore) SetStatus(msg string, isErr bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusLine = msg
	s.statusErr = isErr
}

// Seed installs results restored from disk without touching the run counter.
func (s *RunStore) Seed(previous, current *model.RunResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if previous != nil {
		s.previous = previous
	}
	if current != nil {
		s.current = current
		s.selectedFail = make(map[string]bool, len(current.FailingTests))
		for id := range current.FailingTests {
			s.selectedFail[id] = true
		}
	}
}

func copyBoolMap(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
