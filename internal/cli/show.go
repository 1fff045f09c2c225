package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/s22625/supcut/internal/config"
	"github.com/s22625/supcut/internal/parser"
	"github.com/s22625/supcut/internal/store/file"
)

type showOptions struct {
	Traces bool
}

func newShowCmd() *cobra.Command {
	opts := &showOptions{}

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the failing tests of the last saved run",
		Long: `Show the failing tests of the last saved run, compared with the run
before it. Tests are marked NEW, FAILING (still failing) or FIXED.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runShow(cfg, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&opts.Traces, "traces", false, "Include tracebacks in the table")

	return cmd
}

func runShow(cfg *config.Config, opts *showOptions, out io.Writer) error {
	files, err := file.New(cfg.StateDir())
	if err != nil {
		return withExit(ExitInternalError, err)
	}

	currentLines, err := files.Current()
	if err != nil && !os.IsNotExist(err) {
		return withExit(ExitInternalError, fmt.Errorf("failed to read saved output: %w", err))
	}
	if len(currentLines) == 0 {
		fmt.Fprintln(out, "No saved run yet. Start `supcut` or use `supcut run`.")
		return nil
	}
	previousLines, err := files.Previous()
	if err != nil && !os.IsNotExist(err) {
		return withExit(ExitInternalError, fmt.Errorf("failed to read saved output: %w", err))
	}

	popts := parser.Options{IncludeErrors: cfg.IncludeErrors}
	current := parser.ParseWith(currentLines, popts)
	previous := parser.ParseWith(previousLines, popts)

	writeReport(out, previous, current, reportOptions{
		Title:      "last run",
		ShowTraces: opts.Traces,
		ShowFixed:  true,
	})
	return nil
}
