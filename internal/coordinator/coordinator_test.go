package coordinator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/s22625/supcut/internal/logger"
	"github.com/s22625/supcut/internal/model"
	"github.com/s22625/supcut/internal/notify"
	"github.com/s22625/supcut/internal/runner"
	"github.com/s22625/supcut/internal/store"
)

var canonicalOutput = []string{
	"========================================",
	"FAIL: test_foo",
	"----------------------------------------",
	"AssertionError: boom",
	"----------------------------------------------------------------------",
	"Ran 3 tests in 0.012s",
}

// unittestOutput builds runner output with the given failing tests.
func unittestOutput(total int, failing ...string) []string {
	var lines []string
	for _, id := range failing {
		lines = append(lines,
			"======================================================================",
			"FAIL: "+id,
			"----------------------------------------------------------------------",
			"AssertionError: "+id,
			"",
		)
	}
	lines = append(lines,
		"----------------------------------------------------------------------",
		fmt.Sprintf("Ran %d tests in 0.001s", total),
		"",
	)
	if len(failing) > 0 {
		lines = append(lines, fmt.Sprintf("FAILED (failures=%d)", len(failing)))
	} else {
		lines = append(lines, "OK")
	}
	return lines
}

type fakeRunner struct {
	mu       sync.Mutex
	calls    int
	commands []string
	outputs  [][]string
	err      error
	panicMsg string
	started  chan struct{}
	release  chan struct{}
}

func (f *fakeRunner) Run(ctx context.Context, command string) (runner.Output, error) {
	f.mu.Lock()
	f.calls++
	f.commands = append(f.commands, command)
	var lines []string
	if len(f.outputs) > 0 {
		lines = f.outputs[0]
		if len(f.outputs) > 1 {
			f.outputs = f.outputs[1:]
		}
	}
	started, release := f.started, f.release
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if release != nil {
		<-release
	}
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.err != nil {
		return runner.Output{ExitCode: 127}, f.err
	}
	return runner.Output{Lines: lines, ExitCode: 1}, nil
}

func (f *fakeRunner) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSaver struct {
	saved [][]string
	err   error
}

func (s *fakeSaver) Save(lines []string) error {
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, lines)
	return nil
}

type recorder struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (r *recorder) Notify(_ context.Context, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func (r *recorder) Titles(cat notify.Category) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, n := range r.sent {
		if n.Category == cat {
			out = append(out, n.Title)
		}
	}
	return out
}

func newCoordinator(r runner.Runner, saver OutputSaver, n notify.Notifier, opts Options) (*Coordinator, *store.RunStore) {
	st := store.New(nil, nil)
	if opts.Command == "" {
		opts.Command = "python -m unittest"
	}
	return New(st, r, saver, n, logger.Discard(), opts), st
}

func TestTriggerCanonicalRun(t *testing.T) {
	fr := &fakeRunner{outputs: [][]string{canonicalOutput}}
	saver := &fakeSaver{}
	rec := &recorder{}
	c, st := newCoordinator(fr, saver, rec, Options{})

	if err := c.Trigger(context.Background(), "/repo/foo.py"); err != nil {
		t.Fatalf("Trigger error: %v", err)
	}
	c.Wait()

	snap := st.Snapshot()
	if snap.Running {
		t.Fatal("run slot not released")
	}
	if got := snap.Current.Failing(); len(got) != 1 || got[0] != "test_foo" {
		t.Fatalf("failing = %v", got)
	}
	if snap.Current.TotalOr(-1) != 3 {
		t.Fatalf("total = %d", snap.Current.TotalOr(-1))
	}
	if !snap.SelectedFailingTests["test_foo"] {
		t.Fatal("failing selection not reset to the current failing set")
	}
	if snap.RunCount != 1 || snap.StatusErr {
		t.Fatalf("unexpected status: count=%d err=%v line=%q", snap.RunCount, snap.StatusErr, snap.StatusLine)
	}
	if len(saver.saved) != 1 || len(saver.saved[0]) != len(canonicalOutput) {
		t.Fatalf("output not persisted: %v", saver.saved)
	}

	if got := rec.Titles(notify.CategoryFailure); len(got) != 1 || got[0] != "test_foo" {
		t.Fatalf("failure notifications = %v", got)
	}
	if got := rec.Titles(notify.CategoryInfo); len(got) != 1 || got[0] != "New test" {
		t.Fatalf("info notifications = %v", got)
	}
	for _, n := range rec.sent {
		if n.Category == notify.CategoryFailure && (len(n.Detail) != 1 || n.Detail[0] != "AssertionError: boom") {
			t.Fatalf("failure detail = %v", n.Detail)
		}
	}
}

func TestTriggerDiffAcrossRuns(t *testing.T) {
	fr := &fakeRunner{outputs: [][]string{
		unittestOutput(4, "a", "b"),
		unittestOutput(4, "b", "c"),
	}}
	rec := &recorder{}
	c, st := newCoordinator(fr, nil, rec, Options{})

	var reports []Report
	c.OnComplete(func(r Report) { reports = append(reports, r) })

	if err := c.Trigger(context.Background(), ""); err != nil {
		t.Fatal(err)
	}
	c.Wait()
	rec.sent = nil

	if err := c.Trigger(context.Background(), ""); err != nil {
		t.Fatal(err)
	}
	c.Wait()

	if got := rec.Titles(notify.CategoryFailure); len(got) != 1 || got[0] != "c" {
		t.Fatalf("newly failing notifications = %v", got)
	}
	if got := rec.Titles(notify.CategorySuccess); len(got) != 1 || got[0] != "a" {
		t.Fatalf("newly fixed notifications = %v", got)
	}
	if got := rec.Titles(notify.CategoryInfo); len(got) != 0 {
		t.Fatalf("unexpected count notifications = %v", got)
	}

	snap := st.Snapshot()
	if got := snap.Previous.Failing(); len(got) != 2 || got[0] != "a" {
		t.Fatalf("previous failing = %v", got)
	}
	if len(reports) != 2 || !reports[1].Diff.CountKnown {
		t.Fatalf("reports = %+v", reports)
	}
}

func TestTriggerBusy(t *testing.T) {
	fr := &fakeRunner{}
	c, st := newCoordinator(fr, nil, nil, Options{})
	if !st.TryBeginRun() {
		t.Fatal("TryBeginRun failed")
	}

	err := c.Trigger(context.Background(), "x.py")
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("Trigger error = %v, want ErrBusy", err)
	}
	if fr.Calls() != 0 {
		t.Fatal("runner called while busy")
	}
	if !st.Snapshot().Running {
		t.Fatal("busy trigger must not release another run's slot")
	}
}

func TestSpawnFailureReleasesSlot(t *testing.T) {
	fr := &fakeRunner{err: fmt.Errorf("%w: sh: pytest: not found", runner.ErrNotStarted)}
	rec := &recorder{}
	c, st := newCoordinator(fr, &fakeSaver{}, rec, Options{})

	err := c.Trigger(context.Background(), "")
	if !errors.Is(err, runner.ErrNotStarted) {
		t.Fatalf("Trigger error = %v, want ErrNotStarted", err)
	}
	c.Wait()

	snap := st.Snapshot()
	if snap.Running {
		t.Fatal("slot not released after spawn failure")
	}
	if !snap.StatusErr || !strings.Contains(snap.StatusLine, "could not be started") {
		t.Fatalf("status = %q (err=%v)", snap.StatusLine, snap.StatusErr)
	}
	if snap.Current.HasTotal() || len(snap.Current.FailingTests) != 0 {
		t.Fatalf("failed run should store an empty result, got %+v", snap.Current)
	}
	if len(rec.sent) != 0 {
		t.Fatalf("no notifications expected, got %v", rec.sent)
	}
	if !st.TryBeginRun() {
		t.Fatal("slot still held")
	}
}

func TestPanicReleasesSlot(t *testing.T) {
	fr := &fakeRunner{panicMsg: "parser exploded"}
	c, st := newCoordinator(fr, nil, nil, Options{})

	err := c.Trigger(context.Background(), "")
	if err == nil || !strings.Contains(err.Error(), "parser exploded") {
		t.Fatalf("Trigger error = %v", err)
	}
	snap := st.Snapshot()
	if snap.Running || !snap.StatusErr {
		t.Fatalf("unexpected state after panic: running=%v statusErr=%v", snap.Running, snap.StatusErr)
	}
}

func TestPersistFailureKeepsRun(t *testing.T) {
	fr := &fakeRunner{outputs: [][]string{canonicalOutput}}
	c, st := newCoordinator(fr, &fakeSaver{err: errors.New("disk full")}, nil, Options{})

	if err := c.Trigger(context.Background(), ""); err != nil {
		t.Fatalf("persistence failure must not abort the run: %v", err)
	}
	snap := st.Snapshot()
	if !snap.Current.IsFailing("test_foo") {
		t.Fatal("result not stored")
	}
	if !snap.StatusErr || !strings.Contains(snap.StatusLine, "disk full") {
		t.Fatalf("status = %q", snap.StatusLine)
	}
}

func TestAppendTestFiles(t *testing.T) {
	fr := &fakeRunner{outputs: [][]string{unittestOutput(1)}}
	st := store.New(nil, []string{"/repo/tests/test_a.py", "/repo/tests/test b.py"})
	c := New(st, fr, nil, nil, logger.Discard(), Options{
		Command:         "pytest",
		Root:            "/repo",
		AppendTestFiles: true,
	})

	if err := c.Trigger(context.Background(), ""); err != nil {
		t.Fatal(err)
	}
	st.SetTestFileSelected("/repo/tests/test_a.py", false)
	if err := c.Trigger(context.Background(), ""); err != nil {
		t.Fatal(err)
	}

	want := []string{
		"pytest 'tests/test b.py' tests/test_a.py",
		"pytest 'tests/test b.py'",
	}
	if len(fr.commands) != len(want) {
		t.Fatalf("commands = %v", fr.commands)
	}
	for i := range want {
		if fr.commands[i] != want[i] {
			t.Errorf("command[%d] = %q, want %q", i, fr.commands[i], want[i])
		}
	}
}

func TestRequestRunNowSingleFlight(t *testing.T) {
	fr := &fakeRunner{
		outputs: [][]string{unittestOutput(2)},
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	c, st := newCoordinator(fr, nil, nil, Options{})

	c.RequestRunNow(context.Background())
	select {
	case <-fr.started:
	case <-time.After(5 * time.Second):
		t.Fatal("run did not start")
	}

	for i := 0; i < 4; i++ {
		if err := c.Trigger(context.Background(), ""); !errors.Is(err, ErrBusy) {
			t.Fatalf("concurrent trigger error = %v, want ErrBusy", err)
		}
	}
	close(fr.release)
	if !c.WaitTimeout(5 * time.Second) {
		t.Fatal("run did not finish")
	}
	if fr.Calls() != 1 {
		t.Fatalf("runner called %d times, want 1", fr.Calls())
	}
	if st.Snapshot().RunCount != 1 {
		t.Fatal("run not recorded")
	}
}

func TestNotifyRunStart(t *testing.T) {
	fr := &fakeRunner{outputs: [][]string{unittestOutput(0)}}
	rec := &recorder{}
	c, _ := newCoordinator(fr, nil, rec, Options{NotifyRunStart: true})

	if err := c.Trigger(context.Background(), "/repo/a.py"); err != nil {
		t.Fatal(err)
	}
	c.Wait()
	if got := rec.Titles(notify.CategoryInfo); len(got) != 1 || got[0] != "Running tests" {
		t.Fatalf("info notifications = %v", got)
	}
}

func TestNotifications(t *testing.T) {
	result := model.NewRunResult()
	result.FailingTests["x"] = struct{}{}
	result.Traces["x"] = []string{"boom"}

	tests := []struct {
		name string
		diff model.RunDiff
		want []string
	}{
		{"nothing", model.RunDiff{}, nil},
		{"failing and fixed", model.RunDiff{NewlyFailing: []string{"x"}, NewlyFixed: []string{"y"}}, []string{"failure:x:Failing test", "success:y:Test fixed!"}},
		{"added", model.RunDiff{CountDelta: 2}, []string{"info:New test:2 test(s) added"}},
		{"removed", model.RunDiff{CountDelta: -1}, []string{"info:Test removed:1 test(s) removed"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ns := Notifications(result, tt.diff)
			if len(ns) != len(tt.want) {
				t.Fatalf("got %d notifications, want %d: %v", len(ns), len(tt.want), ns)
			}
			for i, n := range ns {
				got := fmt.Sprintf("%s:%s:%s", n.Category, n.Title, n.Message)
				if got != tt.want[i] {
					t.Errorf("notification[%d] = %q, want %q", i, got, tt.want[i])
				}
			}
		})
	}
}
