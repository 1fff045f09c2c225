// Package daemon wires the store, watcher and coordinator for one project and
// owns their lifetime.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/s22625/supcut/internal/config"
	"github.com/s22625/supcut/internal/coordinator"
	"github.com/s22625/supcut/internal/model"
	"github.com/s22625/supcut/internal/notify"
	"github.com/s22625/supcut/internal/parser"
	"github.com/s22625/supcut/internal/runner"
	"github.com/s22625/supcut/internal/store"
	"github.com/s22625/supcut/internal/store/file"
	"github.com/s22625/supcut/internal/watch"
)

// DefaultShutdownTimeout bounds how long a graceful stop waits for the
// in-flight run.
const DefaultShutdownTimeout = 30 * time.Second

// Frontend runs until ctx is cancelled or the user quits.
type Frontend func(ctx context.Context) error

// Daemon manages the watch loop for one project.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger

	Store       *store.RunStore
	Coordinator *coordinator.Coordinator
	Files       *file.OutputFiles
	Watched     []string

	watcher         *watch.Watcher
	gate            *watch.Gate
	shutdownTimeout time.Duration

	// runCtx outlives a graceful shutdown so the in-flight run can finish.
	runCtx    context.Context
	runCancel context.CancelFunc
}

// Deps overrides collaborators. Zero values select the defaults.
type Deps struct {
	Runner   runner.Runner
	Notifier notify.Notifier
	Now      func() time.Time
}

// New expands the configured globs, restores persisted output and builds
// the pipeline. It does not start watching.
func New(cfg *config.Config, logger *slog.Logger, deps Deps) (*Daemon, error) {
	if logger == nil {
		logger = slog.Default()
	}

	files, err := file.New(cfg.StateDir())
	if err != nil {
		return nil, err
	}

	watched, err := watch.ExpandGlobs(cfg.Root, cfg.Files, cfg.StateDir())
	if err != nil {
		return nil, fmt.Errorf("files: %w", err)
	}
	testFiles, err := watch.ExpandGlobs(cfg.Root, cfg.TestFiles, cfg.StateDir())
	if err != nil {
		return nil, fmt.Errorf("test_files: %w", err)
	}

	st := store.New(model.NewWatchedPaths(watched), testFiles)
	if deps.Now != nil {
		st.SetClock(deps.Now)
	}

	r := deps.Runner
	if r == nil {
		r = runner.NewShell(cfg.Root)
	}

	coord := coordinator.New(st, r, files, deps.Notifier, logger, coordinator.Options{
		Command:         cfg.Cmd,
		Root:            cfg.Root,
		AppendTestFiles: cfg.AppendTestFiles,
		IncludeErrors:   cfg.IncludeErrors,
		NotifyRunStart:  cfg.NotifyRunStart,
		Now:             deps.Now,
	})

	d := &Daemon{
		cfg:             cfg,
		logger:          logger,
		Store:           st,
		Coordinator:     coord,
		Files:           files,
		Watched:         watched,
		shutdownTimeout: DefaultShutdownTimeout,
	}
	d.runCtx, d.runCancel = context.WithCancel(context.Background())
	d.Restore()

	d.gate = watch.NewGate(st, cfg.Debounce, deps.Now)
	d.watcher = watch.NewWatcher(d.gate, watched, func(_ context.Context, path string) {
		coord.Dispatch(d.runCtx, path)
	}, logger)
	return d, nil
}

// RequestRunNow starts a run immediately unless one is in flight.
func (d *Daemon) RequestRunNow() {
	d.Coordinator.RequestRunNow(d.runCtx)
}

// Watcher returns the file watcher so callers can hook accepted events.
func (d *Daemon) Watcher() *watch.Watcher {
	return d.watcher
}

// SetShutdownTimeout overrides DefaultShutdownTimeout.
func (d *Daemon) SetShutdownTimeout(t time.Duration) {
	d.shutdownTimeout = t
}

// Restore seeds the store from the persisted output files so the first
// run in this session is diffed against the last one before it.
func (d *Daemon) Restore() {
	opts := parser.Options{IncludeErrors: d.cfg.IncludeErrors}
	var previous, current *model.RunResult
	if lines, err := d.Files.Previous(); err == nil && len(lines) > 0 {
		previous = parser.ParseWith(lines, opts)
	}
	if lines, err := d.Files.Current(); err == nil && len(lines) > 0 {
		current = parser.ParseWith(lines, opts)
	}
	if previous == nil && current == nil {
		return
	}
	d.Store.Seed(previous, current)
	d.logger.Info("restored previous output", "failing", len(current.Failing()))
}

// Run takes the pid file, starts the watcher and the optional front end and
// blocks until ctx is cancelled, a signal arrives or the front end returns.
// A SIGTERM waits for the in-flight run; a front-end quit does not.
func (d *Daemon) Run(ctx context.Context, frontend Frontend) error {
	stateDir := d.cfg.StateDir()
	if err := AcquirePID(stateDir); err != nil {
		return err
	}
	defer func() {
		if err := RemovePID(stateDir); err != nil {
			d.logger.Warn("failed to remove pid file", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	control := NewControlServer(SocketFilePath(stateDir), d.Store, d.RequestRunNow, d.logger)
	if err := control.Start(); err != nil {
		d.logger.Warn("control socket unavailable", "error", err)
	}
	defer control.Stop()

	d.logger.Info("supcut started",
		"pid", os.Getpid(),
		"root", d.cfg.Root,
		"state_dir", d.Files.Dir(),
		"watched", len(d.Watched),
		"debounce", d.gate.Window())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	graceful := false
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return d.watcher.Run(gctx)
	})

	g.Go(func() error {
		select {
		case sig := <-sigCh:
			d.logger.Info("received signal, shutting down", "signal", sig.String())
			graceful = sig == syscall.SIGTERM
			cancel()
		case <-gctx.Done():
		}
		return nil
	})

	if frontend != nil {
		g.Go(func() error {
			defer cancel()
			return frontend(gctx)
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	// No new runs may start once the graceful wait begins.
	control.Stop()
	if graceful {
		if !d.Coordinator.WaitTimeout(d.shutdownTimeout) {
			d.logger.Warn("in-flight run did not finish before shutdown timeout")
		}
	}
	d.runCancel()
	d.logger.Info("supcut stopped")
	return err
}
