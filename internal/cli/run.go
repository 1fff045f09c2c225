package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/s22625/supcut/internal/config"
	"github.com/s22625/supcut/internal/coordinator"
	"github.com/s22625/supcut/internal/daemon"
	"github.com/s22625/supcut/internal/logger"
	"github.com/s22625/supcut/internal/monitor"
)

type runOptions struct {
	Traces bool
}

// runDeps overrides the daemon collaborators in tests.
var runDeps daemon.Deps

func newRunCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the tests once and report the difference to the last run",
		Long: `Run the test command once, save its output and print the failing tests.

Tests that did not fail in the previous saved run are marked NEW. Exits with
status 1 when any test fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runOnce(cmd.Context(), cfg, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&opts.Traces, "traces", false, "Include tracebacks in the table")

	return cmd
}

func runOnce(ctx context.Context, cfg *config.Config, opts *runOptions, out io.Writer) error {
	if pid := daemon.GetRunningPID(cfg.StateDir()); pid != 0 {
		return withExit(ExitAlreadyRunning,
			fmt.Errorf("%w (pid=%d); it runs the tests on every change", daemon.ErrAlreadyRunning, pid))
	}

	log, err := logger.Setup(logger.Options{Path: cfg.LogPath(), Level: cfg.LogLevel})
	if err != nil {
		return withExit(ExitInternalError, err)
	}
	defer log.Close()

	deps := runDeps
	if deps.Notifier == nil {
		n, err := buildNotifier(cfg, log.Logger)
		if err != nil {
			return withExit(ExitConfigError, err)
		}
		deps.Notifier = n
	}

	d, err := daemon.New(cfg, log.Logger, deps)
	if err != nil {
		return withExit(ExitInternalError, err)
	}
	monitor.LoadSelection(cfg.StateDir()).Apply(d.Store, cfg.Root)

	previous := d.Store.Current()
	var report coordinator.Report
	d.Coordinator.OnComplete(func(r coordinator.Report) {
		report = r
	})

	err = d.Coordinator.Trigger(ctx, "")
	d.Coordinator.Wait()
	if err != nil {
		return withExit(ExitInternalError, err)
	}

	writeReport(out, previous, report.Result, reportOptions{
		Title:      cfg.Cmd,
		ShowTraces: opts.Traces,
		ShowFixed:  true,
	})
	if len(report.Result.FailingTests) > 0 {
		return withExit(ExitTestsFailed, nil)
	}
	return nil
}
