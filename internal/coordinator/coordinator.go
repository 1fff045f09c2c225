// Package coordinator runs the test pipeline: execute, persist, parse, diff,
// notify and publish to the store.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/s22625/supcut/internal/model"
	"github.com/s22625/supcut/internal/notify"
	"github.com/s22625/supcut/internal/parser"
	"github.com/s22625/supcut/internal/runner"
	"github.com/s22625/supcut/internal/store"
)

// ErrBusy is returned by Trigger when a run is already in progress.
var ErrBusy = errors.New("a test run is already in progress")

// OutputSaver persists raw run output.
type OutputSaver interface {
	Save(lines []string) error
}

// Options configures a Coordinator.
type Options struct {
	// Command is the shell command that runs the suite.
	Command string
	// Root is the directory test files are made relative to when appended.
	Root string
	// AppendTestFiles passes the selected test files as arguments.
	AppendTestFiles bool
	// IncludeErrors counts "ERROR: " blocks as failing tests.
	IncludeErrors bool
	// NotifyRunStart sends an info notification when a run starts.
	NotifyRunStart bool
	// Now overrides the clock.
	Now func() time.Time
}

// Report describes a completed run.
type Report struct {
	ChangedPath string
	Command     string
	Result      *model.RunResult
	Diff        model.RunDiff
}

// Coordinator is the only writer of run results to the store.
type Coordinator struct {
	store    *store.RunStore
	runner   runner.Runner
	files    OutputSaver
	notifier notify.Notifier
	logger   *slog.Logger
	opts     Options

	wg sync.WaitGroup

	mu         sync.Mutex
	onComplete []func(Report)
}

// New creates a coordinator. files and notifier may be nil.
func New(st *store.RunStore, r runner.Runner, files OutputSaver, notifier notify.Notifier, logger *slog.Logger, opts Options) *Coordinator {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Coordinator{
		store:    st,
		runner:   r,
		files:    files,
		notifier: notifier,
		logger:   logger,
		opts:     opts,
	}
}

// OnComplete registers fn to be called after every run that reached the
// store, including failed executions.
func (c *Coordinator) OnComplete(fn func(Report)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onComplete = append(c.onComplete, fn)
}

// Trigger runs the pipeline once on the calling goroutine. It returns ErrBusy
// without side effects if another run holds the slot. Execution errors are
// recorded in the store and also returned.
func (c *Coordinator) Trigger(ctx context.Context, changedPath string) (err error) {
	if !c.store.TryBeginRun() {
		return ErrBusy
	}

	ended := false
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("run pipeline panicked", "panic", r)
			err = fmt.Errorf("run pipeline panicked: %v", r)
		}
		if !ended {
			res := model.EmptyResult()
			res.Err = "run aborted"
			if err != nil {
				res.Err = err.Error()
			}
			c.store.EndRun(res)
		}
	}()

	previous := c.store.Current()
	command := c.command()
	log := c.logger.With("changed", changedPath)

	if c.opts.NotifyRunStart {
		c.notifyAsync(ctx, []notify.Notification{{
			Category: notify.CategoryInfo,
			Title:    "Running tests",
			Message:  changedPath,
		}})
	}

	startedAt := c.opts.Now()
	log.Info("running tests", "cmd", command)
	out, runErr := c.runner.Run(ctx, command)
	finishedAt := c.opts.Now()

	if runErr == nil && ctx.Err() != nil {
		runErr = fmt.Errorf("run cancelled: %w", ctx.Err())
	}
	if runErr != nil {
		runErr = fmt.Errorf("failed to run %q: %w", command, runErr)
		log.Error("test run failed", "error", runErr)
		res := model.EmptyResult()
		res.StartedAt = startedAt
		res.FinishedAt = finishedAt
		res.ExitCode = out.ExitCode
		res.RawOutput = out.Lines
		res.Err = runErr.Error()
		c.store.EndRun(res)
		ended = true
		c.complete(Report{ChangedPath: changedPath, Command: command, Result: res, Diff: model.Diff(previous, res)})
		return runErr
	}

	var saveErr error
	if c.files != nil {
		if saveErr = c.files.Save(out.Lines); saveErr != nil {
			log.Warn("failed to persist run output", "error", saveErr)
		}
	}

	result := parser.ParseWith(out.Lines, parser.Options{IncludeErrors: c.opts.IncludeErrors})
	result.StartedAt = startedAt
	result.FinishedAt = finishedAt
	result.ExitCode = out.ExitCode

	diff := model.Diff(previous, result)
	log.Info("run finished",
		"run_id", result.ID,
		"exit_code", result.ExitCode,
		"failing", len(result.FailingTests),
		"newly_failing", len(diff.NewlyFailing),
		"newly_fixed", len(diff.NewlyFixed),
		"count_delta", diff.CountDelta)

	c.notifyAsync(ctx, Notifications(result, diff))

	c.store.EndRun(result)
	ended = true
	if saveErr != nil {
		c.store.SetStatus(fmt.Sprintf("%s (output not saved: %v)", result.Summary(), saveErr), true)
	}

	c.complete(Report{ChangedPath: changedPath, Command: command, Result: result, Diff: diff})
	return nil
}

// Dispatch runs Trigger on a tracked goroutine and returns immediately.
func (c *Coordinator) Dispatch(ctx context.Context, changedPath string) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.Trigger(ctx, changedPath); err != nil && !errors.Is(err, ErrBusy) {
			c.logger.Debug("dispatched run ended with error", "error", err)
		}
	}()
}

// RequestRunNow starts a run regardless of the cooldown window. It never
// starts a second concurrent run.
func (c *Coordinator) RequestRunNow(ctx context.Context) {
	c.Dispatch(ctx, "")
}

// Wait blocks until all dispatched runs and notifications finish.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// WaitTimeout waits like Wait but gives up after d. It reports whether
// everything finished.
func (c *Coordinator) WaitTimeout(d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}

func (c *Coordinator) command() string {
	if !c.opts.AppendTestFiles {
		return c.opts.Command
	}
	files := c.store.SelectedTestFiles()
	if c.opts.Root != "" {
		for i, f := range files {
			if rel, err := filepath.Rel(c.opts.Root, f); err == nil {
				files[i] = rel
			}
		}
	}
	return runner.Command(c.opts.Command, files)
}

func (c *Coordinator) notifyAsync(ctx context.Context, ns []notify.Notification) {
	if len(ns) == 0 {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for _, n := range ns {
			if err := c.notifier.Notify(ctx, n); err != nil {
				c.logger.Warn("notification failed", "title", n.Title, "error", err)
			}
		}
	}()
}

func (c *Coordinator) complete(r Report) {
	c.mu.Lock()
	fns := append([]func(Report){}, c.onComplete...)
	c.mu.Unlock()
	for _, fn := range fns {
		fn(r)
	}
}

// Notifications builds the messages for a completed run: one failure per
// newly failing test, one success per newly fixed test and one info when the
// test count changed.
func Notifications(result *model.RunResult, diff model.RunDiff) []notify.Notification {
	var ns []notify.Notification
	for _, id := range diff.NewlyFailing {
		ns = append(ns, notify.Notification{
			Category: notify.CategoryFailure,
			Title:    id,
			Message:  "Failing test",
			Detail:   result.Trace(id),
		})
	}
	for _, id := range diff.NewlyFixed {
		ns = append(ns, notify.Notification{
			Category: notify.CategorySuccess,
			Title:    id,
			Message:  "Test fixed!",
		})
	}
	switch {
	case diff.CountDelta > 0:
		ns = append(ns, notify.Notification{
			Category: notify.CategoryInfo,
			Title:    "New test",
			Message:  fmt.Sprintf("%d test(s) added", diff.CountDelta),
		})
	case diff.CountDelta < 0:
		ns = append(ns, notify.Notification{
			Category: notify.CategoryInfo,
			Title:    "Test removed",
			Message:  fmt.Sprintf("%d test(s) removed", -diff.CountDelta),
		})
	}
	return ns
}
