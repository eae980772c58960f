package watch

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

const pidFileName = "watch.pid"

// WritePID writes the current process id to <dir>/watch.pid
func WritePID(dir string) error {
	return os.WriteFile(filepath.Join(dir, pidFileName), []byte(fmt.Sprintf("%d", os.Getpid())), 0644)
}

// ReadPID reads the watcher PID from <dir>/watch.pid
func ReadPID(dir string) (int, error) {
	data, err := os.ReadFile(filepath.Join(dir, pidFileName))
	if err != nil {
		return 0, err
	}
	var pid int
	_, err = fmt.Sscanf(string(data), "%d", &pid)
	return pid, err
}

// RemovePID removes the PID file
func RemovePID(dir string) {
	os.Remove(filepath.Join(dir, pidFileName))
}

// IsRunning checks if a watcher is running for dir
func IsRunning(dir string) bool {
	pid, err := ReadPID(dir)
	if err != nil {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// On Unix, FindProcess always succeeds, so send signal 0 to check
	return proc.Signal(syscall.Signal(0)) == nil
}

// Stop sends SIGTERM to the watcher process
func Stop(dir string) error {
	pid, err := ReadPID(dir)
	if err != nil {
		return fmt.Errorf("no watcher running: %w", err)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return err
	}
	RemovePID(dir)
	return nil
}
