// Package runner executes the test command and captures its output.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/acarl005/stripansi"
)

var execCommand = exec.CommandContext

// Shell exit codes for "command not found" and "not executable".
const (
	exitNotFound      = 127
	exitNotExecutable = 126
)

// ErrNotStarted is returned when the test command could not be started at
// all, either by exec or by the shell.
var ErrNotStarted = errors.New("test command could not be started")

// Output is the captured result of one invocation.
type Output struct {
	Lines    []string
	ExitCode int
}

// Runner executes a shell command line.
type Runner interface {
	Run(ctx context.Context, command string) (Output, error)
}

// Shell runs commands through "sh -c" in Dir.
type Shell struct {
	Dir   string
	Shell string
	Env   []string
}

// NewShell creates a Shell runner rooted at dir.
func NewShell(dir string) *Shell {
	return &Shell{Dir: dir, Shell: "sh"}
}

// Run executes command and returns combined stdout and stderr split into
// lines with ANSI escapes removed. A non-zero exit is reported through
// ExitCode, not as an error; only a failure to start returns an error.
func (s *Shell) Run(ctx context.Context, command string) (Output, error) {
	if strings.TrimSpace(command) == "" {
		return Output{}, fmt.Errorf("%w: empty command", ErrNotStarted)
	}
	shell := s.Shell
	if shell == "" {
		shell = "sh"
	}

	cmd := execCommand(ctx, shell, "-c", command)
	cmd.Dir = s.Dir
	cmd.Env = append(os.Environ(), s.Env...)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	err := cmd.Run()
	out := Output{Lines: SplitLines(buf.String())}

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return out, fmt.Errorf("%w: %v", ErrNotStarted, err)
		}
		out.ExitCode = exitErr.ExitCode()
	}

	if out.ExitCode == exitNotFound || out.ExitCode == exitNotExecutable {
		return out, fmt.Errorf("%w: %s", ErrNotStarted, lastLine(out.Lines))
	}
	return out, nil
}

// SplitLines splits raw output into lines, dropping a trailing newline and
// stripping ANSI colour codes.
func SplitLines(raw string) []string {
	raw = strings.TrimSuffix(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	if raw == "" {
		return []string{}
	}
	lines := strings.Split(raw, "\n")
	for i, line := range lines {
		lines[i] = stripansi.Strip(line)
	}
	return lines
}

// Command appends shell-quoted test files to base.
func Command(base string, files []string) string {
	if len(files) == 0 {
		return base
	}
	parts := make([]string, 0, len(files)+1)
	parts = append(parts, base)
	for _, f := range files {
		parts = append(parts, Quote(f))
	}
	return strings.Join(parts, " ")
}

// Quote single-quotes s for sh.
func Quote(s string) string {
	if s != "" && strings.IndexFunc(s, needsQuote) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func needsQuote(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	case strings.ContainsRune("-_./:=+,@", r):
		return false
	default:
		return true
	}
}

func lastLine(lines []string) string {
	for i := len(lines) - 1; i >= 0; i-- {
		if s := strings.TrimSpace(lines[i]); s != "" {
			return s
		}
	}
	return "no output"
}
