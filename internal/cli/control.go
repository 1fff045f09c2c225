package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/s22625/supcut/internal/config"
	"github.com/s22625/supcut/internal/daemon"
)

func newTriggerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trigger",
		Short: "Ask the running watcher to run the tests now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runTrigger(cfg, cmd.OutOrStdout())
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the state of the running watcher",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runStatus(cfg, cmd.OutOrStdout(), time.Now())
		},
	}
}

func runTrigger(cfg *config.Config, out io.Writer) error {
	if _, err := daemon.Send(cfg.StateDir(), daemon.Request{Type: daemon.RequestRun}); err != nil {
		return controlError(err)
	}
	fmt.Fprintln(out, "Run requested.")
	return nil
}

func runStatus(cfg *config.Config, out io.Writer, now time.Time) error {
	resp, err := daemon.Send(cfg.StateDir(), daemon.Request{Type: daemon.RequestStatus})
	if errors.Is(err, daemon.ErrNotRunning) {
		fmt.Fprintln(out, "Not watching.")
		return nil
	}
	if err != nil {
		return controlError(err)
	}

	fmt.Fprintf(out, "Watching %d files (pid %d)\n", resp.Watched, resp.PID)
	lastRun := "never"
	if !resp.LastRunAt.IsZero() {
		lastRun = now.Sub(resp.LastRunAt).Truncate(time.Second).String() + " ago"
	}
	fmt.Fprintf(out, "Runs: %d, last run: %s\n", resp.RunCount, lastRun)
	if resp.Running {
		fmt.Fprintln(out, "A run is in progress.")
	}
	fmt.Fprintf(out, "Status: %s\n", resp.StatusLine)
	for _, id := range resp.Failing {
		fmt.Fprintf(out, "  FAIL: %s\n", id)
	}
	return nil
}

func controlError(err error) error {
	if errors.Is(err, daemon.ErrNotRunning) {
		return withExit(ExitInternalError, fmt.Errorf("%w; start it with `supcut`", err))
	}
	return withExit(ExitInternalError, err)
}
