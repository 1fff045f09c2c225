// Package file persists raw runner output on disk in two generations.
package file

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	currentFile  = "output"
	previousFile = "output.old"
	newFile      = "output.new"
)

// OutputFiles keeps the last two runs' raw output under dir:
//
//	output      most recent run
//	output.old  the run before it
//
// Each save writes output.new through a temp file and then rotates with
// rename, so a crash never leaves a half-written generation behind.
type OutputFiles struct {
	dir string
}

// New creates OutputFiles rooted at dir, creating it if needed.
func New(dir string) (*OutputFiles, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid output dir: %w", err)
	}
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	return &OutputFiles{dir: absPath}, nil
}

// Dir returns the directory holding the output files.
func (o *OutputFiles) Dir() string {
	return o.dir
}

// CurrentPath returns the path of the most recent output.
func (o *OutputFiles) CurrentPath() string {
	return filepath.Join(o.dir, currentFile)
}

// PreviousPath returns the path of the output before the most recent one.
func (o *OutputFiles) PreviousPath() string {
	return filepath.Join(o.dir, previousFile)
}

func (o *OutputFiles) newPath() string {
	return filepath.Join(o.dir, newFile)
}

// Save stores lines as the current generation and demotes the old current.
func (o *OutputFiles) Save(lines []string) error {
	if err := o.writeAtomic(o.newPath(), lines); err != nil {
		return err
	}

	if _, err := os.Stat(o.CurrentPath()); err == nil {
		if err := os.Rename(o.CurrentPath(), o.PreviousPath()); err != nil {
			return fmt.Errorf("failed to rotate previous output: %w", err)
		}
	} else if os.IsNotExist(err) {
		// First run: an empty previous generation keeps readers simple.
		if err := o.writeAtomic(o.PreviousPath(), nil); err != nil {
			return err
		}
	} else {
		return fmt.Errorf("failed to stat current output: %w", err)
	}

	if err := os.Rename(o.newPath(), o.CurrentPath()); err != nil {
		return fmt.Errorf("failed to install new output: %w", err)
	}
	return nil
}

// Current reads the most recent output. If a save was interrupted between
// rotations, the completed output.new is returned instead.
func (o *OutputFiles) Current() ([]string, error) {
	lines, err := readLines(o.CurrentPath())
	if err == nil || !os.IsNotExist(err) {
		return lines, err
	}
	return readLines(o.newPath())
}

// Previous reads the output before the most recent one.
func (o *OutputFiles) Previous() ([]string, error) {
	return readLines(o.PreviousPath())
}

func (o *OutputFiles) writeAtomic(path string, lines []string) error {
	tmp, err := os.CreateTemp(o.dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	w := bufio.NewWriter(tmp)
	for _, line := range lines {
		if _, err := w.WriteString(line + "\n"); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close output: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func readLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s := strings.TrimSuffix(string(data), "\n")
	if s == "" {
		return []string{}, nil
	}
	return strings.Split(s, "\n"), nil
}
