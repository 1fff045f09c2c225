// Package monitor is the terminal dashboard over the run store.
package monitor

import (
	"context"
	"errors"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/s22625/supcut/internal/store"
)

// Options configures the monitor behavior.
type Options struct {
	// Root is the project directory; paths are shown relative to it.
	Root string
	// StateDir is where the selection file lives. Empty disables saving.
	StateDir string
	// Command is shown in the header.
	Command string
	// RunNow starts a run immediately.
	RunNow func()
	Logger *slog.Logger
}

// Monitor connects the dashboard to the run store. All reads go through
// Snapshot; all writes are store intents.
type Monitor struct {
	store  *store.RunStore
	opts   Options
	logger *slog.Logger
}

// New creates a monitor over st.
func New(st *store.RunStore, opts Options) *Monitor {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{store: st, opts: opts, logger: logger}
}

// Run shows the dashboard until the user quits or ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	program := tea.NewProgram(NewDashboard(m), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := program.Run()
	if err != nil && (ctx.Err() != nil || errors.Is(err, tea.ErrProgramKilled)) {
		return nil
	}
	return err
}

// Refresh returns the current state.
func (m *Monitor) Refresh() store.Snapshot {
	return m.store.Snapshot()
}

// RunNow requests an immediate run.
func (m *Monitor) RunNow() {
	if m.opts.RunNow != nil {
		m.opts.RunNow()
	}
}

// SetWatchSelected toggles a watched path and persists the selection.
func (m *Monitor) SetWatchSelected(path string, selected bool) error {
	if !m.store.SetWatchSelected(path, selected) {
		return nil
	}
	return m.saveSelection()
}

// SetTestFileSelected toggles a test file and persists the selection.
func (m *Monitor) SetTestFileSelected(path string, selected bool) error {
	if !m.store.SetTestFileSelected(path, selected) {
		return nil
	}
	return m.saveSelection()
}

// SetFailingSelected toggles focus on a failing test. Not persisted: the
// next run resets it.
func (m *Monitor) SetFailingSelected(id string, selected bool) {
	m.store.SetFailingSelected(id, selected)
}

// Root returns the project directory.
func (m *Monitor) Root() string {
	return m.opts.Root
}

// Command returns the test command shown in the header.
func (m *Monitor) Command() string {
	return m.opts.Command
}

func (m *Monitor) saveSelection() error {
	sel := SelectionFromSnapshot(m.store.Snapshot(), m.opts.Root)
	if err := SaveSelection(m.opts.StateDir, sel); err != nil {
		m.logger.Warn("failed to save selection", "error", err)
		return err
	}
	return nil
}
