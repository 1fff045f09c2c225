package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/s22625/supcut/internal/config"
	"github.com/s22625/supcut/internal/notify"
)

type initOptions struct {
	Yes   bool
	Force bool
}

const defaultConfigYAML = `# supcut configuration. Relative paths are resolved from this project.
cmd: %s
files:
  - "**/*.py"
test_files:
  - "**/test_*.py"
append_test_files: false
debounce: %s
desktop_notifications: true
notify_run_start: false
include_errors: false
# email:
#   server: smtp.example.com
#   port: 587
#   sender: supcut@example.com
#   receivers:
#     - you@example.com
#   subject_tag: "[supcut]"
#   username: ""
#   password: ""
#   template: .supcut/email.tpl
`

func newInitCmd() *cobra.Command {
	opts := &initOptions{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create .supcut/ with a default config and email template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			return runInit(cwd, opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "Do not ask for confirmation")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "Overwrite an existing config")

	return cmd
}

func runInit(dir string, opts *initOptions, in io.Reader, out io.Writer) error {
	stateDir := filepath.Join(dir, config.DirName)
	configPath := filepath.Join(stateDir, "config.yaml")

	if _, err := os.Stat(configPath); err == nil && !opts.Force {
		return withExit(ExitConfigError, fmt.Errorf("%s already exists (use --force to overwrite)", configPath))
	}

	if !opts.Yes {
		fmt.Fprintf(out, "Create %s? [y/N] ", stateDir)
		answer, _ := bufio.NewReader(in).ReadString('\n')
		answer = strings.ToLower(strings.TrimSpace(answer))
		if answer != "y" && answer != "yes" {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return withExit(ExitInternalError, fmt.Errorf("failed to create %s: %w", stateDir, err))
	}
	content := fmt.Sprintf(defaultConfigYAML, config.DefaultCmd, config.DefaultDebounce)
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		return withExit(ExitInternalError, fmt.Errorf("failed to write config: %w", err))
	}

	tplPath := filepath.Join(stateDir, "email.tpl")
	if _, err := os.Stat(tplPath); os.IsNotExist(err) || opts.Force {
		if err := os.WriteFile(tplPath, []byte(notify.DefaultEmailTemplate), 0644); err != nil {
			return withExit(ExitInternalError, fmt.Errorf("failed to write email template: %w", err))
		}
	}

	fmt.Fprintf(out, "Initialized %s\n", stateDir)
	return nil
}
