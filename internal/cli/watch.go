package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/s22625/supcut/internal/config"
	"github.com/s22625/supcut/internal/coordinator"
	"github.com/s22625/supcut/internal/daemon"
	"github.com/s22625/supcut/internal/logger"
	"github.com/s22625/supcut/internal/monitor"
	"github.com/s22625/supcut/internal/notify"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch files and re-run the tests on change (default)",
		Long: `Watch the configured files and re-run the test command when one changes.

With a terminal on stdout the dashboard is shown; otherwise, or with --no-ui,
progress is printed to the console.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd)
		},
	}
}

func runWatch(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ui := !globalOpts.NoUI && isTerminal(os.Stdout)
	var stderr io.Writer
	if !ui {
		stderr = os.Stderr
	}
	log, err := logger.Setup(logger.Options{Path: cfg.LogPath(), Level: cfg.LogLevel, Stderr: stderr})
	if err != nil {
		return withExit(ExitInternalError, err)
	}
	defer log.Close()

	notifier, err := buildNotifier(cfg, log.Logger)
	if err != nil {
		return withExit(ExitConfigError, err)
	}
	log.Debug("notifications configured", "channels", notifier.Len())

	d, err := daemon.New(cfg, log.Logger, daemon.Deps{Notifier: notifier})
	if err != nil {
		return withExit(ExitInternalError, err)
	}
	if n := monitor.LoadSelection(cfg.StateDir()).Apply(d.Store, cfg.Root); n > 0 {
		log.Info("restored selection", "deselected", n)
	}

	var frontend daemon.Frontend
	if ui {
		m := monitor.New(d.Store, monitor.Options{
			Root:     cfg.Root,
			StateDir: cfg.StateDir(),
			Command:  cfg.Cmd,
			RunNow:   d.RequestRunNow,
			Logger:   log.Logger,
		})
		frontend = m.Run
	} else {
		attachConsole(NewConsole(cmd.OutOrStdout(), cfg.Quiet, cfg.Verbose), d, cfg.Root)
	}

	err = d.Run(cmd.Context(), frontend)
	if errors.Is(err, daemon.ErrAlreadyRunning) {
		return withExit(ExitAlreadyRunning,
			fmt.Errorf("%w (pid=%d)", err, daemon.GetRunningPID(cfg.StateDir())))
	}
	if err != nil {
		return withExit(ExitInternalError, err)
	}
	return nil
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// attachConsole prints the headless progress messages for d.
func attachConsole(c *Console, d *daemon.Daemon, root string) {
	c.Say("%d files monitored", len(d.Watched))
	d.Watcher().OnAccepted(func(path string) {
		c.Say("%s modified", displayPath(root, path))
	})
	d.Coordinator.OnComplete(func(r coordinator.Report) {
		if r.Result.Err != "" {
			c.Say("run failed: %s", r.Result.Err)
			return
		}
		c.Say("%d tests ran.", r.Result.TotalOr(0))
		for _, id := range r.Diff.NewlyFailing {
			c.Say("FAIL: %s", id)
		}
		for _, id := range r.Diff.NewlyFixed {
			c.Say("fixed: %s", id)
		}
		c.Whisper("%s", r.Result.Summary())
		if c.IsVerbose() {
			for _, id := range r.Result.Failing() {
				c.Whisper("still failing: %s", id)
			}
		}
	})
}

// buildNotifier fans out to the log and to every enabled channel.
func buildNotifier(cfg *config.Config, logger *slog.Logger) (*notify.Multi, error) {
	sinks := []notify.Notifier{notify.NewLog(logger)}
	if cfg.DesktopNotifications {
		sinks = append(sinks, notify.NewDesktop())
	}

	email := notify.EmailConfig{
		Server:     cfg.Email.Server,
		Port:       cfg.Email.Port,
		Sender:     cfg.Email.Sender,
		Receivers:  cfg.Email.Receivers,
		SubjectTag: cfg.Email.SubjectTag,
		Username:   cfg.Email.Username,
		Password:   cfg.Email.Password,
	}
	if email.Enabled() {
		e, err := notify.NewEmail(email, cfg.Email.Template)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, e)
	}
	return notify.NewMulti(sinks...), nil
}

func displayPath(root, path string) string {
	if root == "" {
		return path
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return rel
}
