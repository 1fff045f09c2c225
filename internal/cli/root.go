package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/s22625/supcut/internal/config"
)

// Exit codes
const (
	ExitOK             = 0
	ExitTestsFailed    = 1
	ExitConfigError    = 2
	ExitAlreadyRunning = 3
	ExitInternalError  = 10
)

// GlobalOptions holds options shared across all commands
type GlobalOptions struct {
	Cmd      string
	Debounce string
	Quiet    bool
	Verbose  bool
	NoUI     bool
	LogLevel string
}

var globalOpts = &GlobalOptions{}

// rootCmd represents the base command. Without a subcommand it watches.
var rootCmd = &cobra.Command{
	Use:   "supcut",
	Short: "Continuous test runner",
	Long: `supcut watches your source files and re-runs the test suite whenever
one of them changes. It keeps the output of the last two runs and shows which
tests started failing and which were fixed.

Configuration is read from ~/.config/supcut/config.yaml, SUPCUT_* environment
variables and the closest .supcut/config.yaml, in increasing precedence.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWatch(cmd)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&globalOpts.Cmd, "cmd", "", "Test command (overrides config)")
	rootCmd.PersistentFlags().StringVar(&globalOpts.Debounce, "debounce", "", "Minimum time between runs, e.g. 5s or 5")
	rootCmd.PersistentFlags().BoolVarP(&globalOpts.Quiet, "quiet", "q", false, "Only print errors in console mode")
	rootCmd.PersistentFlags().BoolVarP(&globalOpts.Verbose, "verbose", "v", false, "Print every accepted change in console mode")
	rootCmd.PersistentFlags().BoolVar(&globalOpts.NoUI, "no-ui", false, "Print to the console instead of showing the dashboard")
	rootCmd.PersistentFlags().StringVar(&globalOpts.LogLevel, "log-level", "", "Log level (error|warn|info|debug)")

	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newShowCmd())
	rootCmd.AddCommand(newTriggerCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	err := rootCmd.Execute()
	if err != nil {
		var ee *exitError
		if !errors.As(err, &ee) || ee.err != nil {
			fmt.Fprintln(os.Stderr, "supcut:", err)
		}
	}
	return exitCode(err)
}

// exitError attaches a process exit code to an error. err may be nil when
// the command already reported the outcome.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func withExit(code int, err error) error {
	return &exitError{code: code, err: err}
}

func exitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return ExitInternalError
}

// loadConfig loads the layered configuration and applies the global flags
// on top of it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, withExit(ExitConfigError, err)
	}
	if err := applyFlags(cfg, globalOpts); err != nil {
		return nil, withExit(ExitConfigError, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, withExit(ExitConfigError, err)
	}
	return cfg, nil
}

func applyFlags(cfg *config.Config, opts *GlobalOptions) error {
	if opts.Cmd != "" {
		cfg.Cmd = opts.Cmd
	}
	if opts.Debounce != "" {
		d, err := config.ParseDebounce(opts.Debounce)
		if err != nil {
			return fmt.Errorf("--debounce: %w", err)
		}
		cfg.Debounce = d
	}
	if opts.Quiet {
		cfg.Quiet = true
		cfg.Verbose = false
	}
	if opts.Verbose {
		cfg.Verbose = true
		cfg.Quiet = false
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}
	return nil
}
