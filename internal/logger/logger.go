// Package logger configures the process-wide slog logger. Log lines go to a
// file because the terminal belongs to the dashboard.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Options configures Setup.
type Options struct {
	// Path is the log file. Empty disables the file sink.
	Path string
	// Level is one of debug, info, warn or error.
	Level string
	// Stderr also writes log lines to Stderr.
	Stderr io.Writer
}

// Logger wraps the configured slog logger and the file it writes to.
type Logger struct {
	*slog.Logger
	file *os.File
}

// Setup builds a text-handler logger from opts and installs it as the slog
// default. Close the returned Logger to release the file.
func Setup(opts Options) (*Logger, error) {
	var writers []io.Writer
	var file *os.File
	if opts.Path != "" {
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(opts.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		file = f
		writers = append(writers, f)
	}
	if opts.Stderr != nil {
		writers = append(writers, opts.Stderr)
	}

	var w io.Writer
	switch len(writers) {
	case 0:
		w = io.Discard
	case 1:
		w = writers[0]
	default:
		w = io.MultiWriter(writers...)
	}

	l := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: parseLevel(opts.Level)}))
	slog.SetDefault(l)
	return &Logger{Logger: l, file: file}, nil
}

// Close closes the log file, if any.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
