package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

const pidFile = "supcut.pid"

// ErrAlreadyRunning is returned when another live supcut process owns the
// project's pid file.
var ErrAlreadyRunning = errors.New("supcut is already running for this project")

// PIDFilePath returns the path to the PID file
func PIDFilePath(stateDir string) string {
	return filepath.Join(stateDir, pidFile)
}

// WritePID writes the current process PID to the PID file
func WritePID(stateDir string) error {
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", stateDir, err)
	}
	return os.WriteFile(PIDFilePath(stateDir), []byte(strconv.Itoa(os.Getpid())), 0644)
}

// ReadPID reads the PID from the PID file
func ReadPID(stateDir string) (int, error) {
	data, err := os.ReadFile(PIDFilePath(stateDir))
	if err != nil {
		return 0, err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID in file: %w", err)
	}

	return pid, nil
}

// RemovePID removes the PID file
func RemovePID(stateDir string) error {
	err := os.Remove(PIDFilePath(stateDir))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// IsProcessRunning checks if a process with the given PID is running
func IsProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// On Unix, FindProcess always succeeds, so we need to send signal 0
	// to check if the process actually exists
	return process.Signal(syscall.Signal(0)) == nil
}

// GetRunningPID returns the PID of the live process owning stateDir, or 0.
func GetRunningPID(stateDir string) int {
	pid, err := ReadPID(stateDir)
	if err != nil {
		return 0
	}
	if !IsProcessRunning(pid) {
		return 0
	}
	return pid
}

// AcquirePID writes our PID unless another live process already holds the
// file. A stale file left by a crashed process is replaced.
func AcquirePID(stateDir string) error {
	if pid := GetRunningPID(stateDir); pid != 0 && pid != os.Getpid() {
		return fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, pid)
	}
	return WritePID(stateDir)
}
