package monitor

import (
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/s22625/supcut/internal/model"
	"github.com/s22625/supcut/internal/store"
)

type dashboardFixture struct {
	root    string
	store   *store.RunStore
	monitor *Monitor
	runs    int
}

func newFixture(t *testing.T) *dashboardFixture {
	t.Helper()
	root := t.TempDir()
	watched := []string{filepath.Join(root, "pkg", "a.py"), filepath.Join(root, "pkg", "b.py")}
	testFiles := []string{filepath.Join(root, "tests", "test_a.py")}
	st := store.New(model.NewWatchedPaths(watched), testFiles)

	previous := model.NewRunResult()
	previous.FailingTests["test_x (t.X)"] = struct{}{}
	current := model.NewRunResult()
	current.FailingTests["test_x (t.X)"] = struct{}{}
	current.FailingTests["test_y (t.Y)"] = struct{}{}
	current.Traces["test_x (t.X)"] = []string{"Traceback (most recent call last):", "AssertionError: 1 != 2"}
	current.Frames["test_x (t.X)"] = "tests/test_a.py:test_x"
	st.Seed(previous, current)

	f := &dashboardFixture{root: root, store: st}
	f.monitor = New(st, Options{
		Root:     root,
		StateDir: filepath.Join(root, ".supcut"),
		Command:  "python -m unittest",
		RunNow:   func() { f.runs++ },
	})
	return f
}

func (f *dashboardFixture) dashboard() *Dashboard {
	d := NewDashboard(f.monitor)
	d.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	d.Update(refreshMsg{snap: f.monitor.Refresh()})
	return d
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// press sends key and feeds the resulting command's message back, the way
// the bubbletea runtime would.
func press(d *Dashboard, key tea.KeyMsg) {
	_, cmd := d.Update(key)
	if cmd == nil {
		return
	}
	if msg := cmd(); msg != nil {
		d.Update(msg)
	}
}

func TestDashboardNavigation(t *testing.T) {
	d := newFixture(t).dashboard()

	if d.pane != paneFailing {
		t.Fatalf("initial pane = %v, want Failing", d.pane)
	}
	press(d, runes("j"))
	press(d, runes("j"))
	if d.cursor[paneFailing] != 1 {
		t.Fatalf("cursor = %d, want clamped to 1", d.cursor[paneFailing])
	}
	press(d, runes("k"))
	if d.cursor[paneFailing] != 0 {
		t.Fatalf("cursor after k = %d, want 0", d.cursor[paneFailing])
	}

	press(d, tea.KeyMsg{Type: tea.KeyTab})
	if d.pane != paneWatched {
		t.Fatalf("pane after tab = %v, want Watched", d.pane)
	}
	press(d, tea.KeyMsg{Type: tea.KeyShiftTab})
	press(d, tea.KeyMsg{Type: tea.KeyShiftTab})
	if d.pane != paneTestFiles {
		t.Fatalf("pane after shift+tab twice = %v, want Test files", d.pane)
	}
	press(d, runes("2"))
	if d.pane != paneWatched {
		t.Fatalf("pane after 2 = %v, want Watched", d.pane)
	}
	press(d, runes("G"))
	if d.cursor[paneWatched] != 1 {
		t.Fatalf("cursor after G = %d, want 1", d.cursor[paneWatched])
	}
}

func TestDashboardToggleWatchedPersists(t *testing.T) {
	f := newFixture(t)
	d := f.dashboard()

	press(d, runes("2"))
	press(d, tea.KeyMsg{Type: tea.KeySpace})

	a := filepath.Join(f.root, "pkg", "a.py")
	if f.store.IsWatchSelected(a) {
		t.Fatal("a.py still selected after toggle")
	}
	if d.snap.Watched[0].Selected {
		t.Fatal("dashboard snapshot not refreshed after toggle")
	}

	sel := LoadSelection(filepath.Join(f.root, ".supcut"))
	if len(sel.Unwatched) != 1 || sel.Unwatched[0] != filepath.Join("pkg", "a.py") {
		t.Fatalf("persisted Unwatched = %v", sel.Unwatched)
	}

	press(d, tea.KeyMsg{Type: tea.KeySpace})
	if !f.store.IsWatchSelected(a) {
		t.Fatal("a.py not reselected")
	}
	if sel := LoadSelection(filepath.Join(f.root, ".supcut")); len(sel.Unwatched) != 0 {
		t.Fatalf("persisted Unwatched after reselect = %v", sel.Unwatched)
	}
}

func TestDashboardToggleTestFile(t *testing.T) {
	f := newFixture(t)
	d := f.dashboard()

	press(d, runes("3"))
	press(d, tea.KeyMsg{Type: tea.KeySpace})
	if got := f.store.SelectedTestFiles(); len(got) != 0 {
		t.Fatalf("SelectedTestFiles = %v, want none", got)
	}
	sel := LoadSelection(filepath.Join(f.root, ".supcut"))
	if len(sel.DeselectedTestFiles) != 1 {
		t.Fatalf("persisted DeselectedTestFiles = %v", sel.DeselectedTestFiles)
	}
}

func TestDashboardToggleFailing(t *testing.T) {
	f := newFixture(t)
	d := f.dashboard()

	press(d, tea.KeyMsg{Type: tea.KeySpace})
	if f.store.Snapshot().SelectedFailingTests["test_x (t.X)"] {
		t.Fatal("test_x still selected after toggle")
	}
	if !f.store.Snapshot().SelectedFailingTests["test_y (t.Y)"] {
		t.Fatal("test_y changed by toggling test_x")
	}
}

func TestDashboardRunNow(t *testing.T) {
	f := newFixture(t)
	d := f.dashboard()

	press(d, runes("r"))
	if f.runs != 1 {
		t.Fatalf("RunNow calls = %d, want 1", f.runs)
	}
	if d.message != "run requested" {
		t.Fatalf("message = %q", d.message)
	}

	if !f.store.TryBeginRun() {
		t.Fatal("TryBeginRun failed")
	}
	d.Update(refreshMsg{snap: f.monitor.Refresh()})
	press(d, runes("r"))
	if f.runs != 1 {
		t.Fatalf("RunNow called while running, calls = %d", f.runs)
	}
	if !strings.Contains(d.message, "already in progress") {
		t.Fatalf("message = %q", d.message)
	}
}

func TestDashboardViewShowsTrace(t *testing.T) {
	d := newFixture(t).dashboard()
	view := d.View()

	for _, want := range []string{
		"SUPCUT",
		"python -m unittest",
		"TRACE test_x (t.X)",
		"AssertionError: 1 != 2",
		"new test_y (t.Y)",
		"Failing (2)",
		"Watched (2/2)",
	} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
	if strings.Contains(view, "new test_x") {
		t.Errorf("test_x failed before and must not be marked new:\n%s", view)
	}

	press(d, runes("j"))
	if view := d.View(); !strings.Contains(view, "(no trace captured)") {
		t.Errorf("test_y has no trace, view:\n%s", view)
	}
}

func TestDashboardEmptyPane(t *testing.T) {
	st := store.New(nil, nil)
	d := NewDashboard(New(st, Options{}))
	d.Update(refreshMsg{snap: st.Snapshot()})

	if view := d.View(); !strings.Contains(view, "press r to run the tests") {
		t.Fatalf("view = %s", view)
	}
	// Moving and toggling on an empty pane is a no-op.
	press(d, runes("j"))
	press(d, tea.KeyMsg{Type: tea.KeySpace})
	if d.cursor[paneFailing] != 0 {
		t.Fatalf("cursor = %d", d.cursor[paneFailing])
	}
}

func TestDashboardHelpAndQuit(t *testing.T) {
	d := newFixture(t).dashboard()

	press(d, runes("?"))
	if !d.help || !strings.Contains(d.View(), "KEYBOARD SHORTCUTS") {
		t.Fatal("help not shown")
	}
	// q closes the help instead of quitting.
	_, cmd := d.Update(runes("q"))
	if cmd != nil || d.help {
		t.Fatal("any key should only close help")
	}

	_, cmd = d.Update(runes("q"))
	if cmd == nil {
		t.Fatal("q returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("q did not quit")
	}
	_, cmd = d.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("ctrl+c did not quit")
	}
}

func TestDashboardScrollKeepsCursorVisible(t *testing.T) {
	root := t.TempDir()
	var paths []string
	for i := 0; i < 50; i++ {
		paths = append(paths, filepath.Join(root, "pkg", string(rune('a'+i%26))+strings.Repeat("x", i/26)+".py"))
	}
	st := store.New(model.NewWatchedPaths(paths), nil)
	d := NewDashboard(New(st, Options{Root: root}))
	d.Update(tea.WindowSizeMsg{Width: 80, Height: 20})
	d.Update(refreshMsg{snap: st.Snapshot()})

	press(d, runes("2"))
	for i := 0; i < 30; i++ {
		press(d, runes("j"))
	}
	visible := d.listRows()
	if d.cursor[paneWatched] < d.offset[paneWatched] || d.cursor[paneWatched] >= d.offset[paneWatched]+visible {
		t.Fatalf("cursor %d outside window [%d,%d)", d.cursor[paneWatched], d.offset[paneWatched], d.offset[paneWatched]+visible)
	}
	if !strings.Contains(d.View(), "more") {
		t.Fatal("view does not report hidden rows")
	}
}
