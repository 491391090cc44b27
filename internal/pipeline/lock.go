package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// ErrLockHeld means another run holds the exclusion lock. A run that sees
// this gives way rather than queueing behind the holder.
var ErrLockHeld = errors.New("run exclusion lock already held")

// RunLock is the named advisory lock serializing pipeline runs against one
// working copy. Acquisition is non-blocking; the OS drops the flock if the
// holder dies.
type RunLock struct {
	path string
	file *os.File
}

// AcquireRunLock takes the lock at path, creating the file if needed. The
// holder's pid and run id are written into the file as a hint for whoever
// finds the lock held.
func AcquireRunLock(path, runID string) (*RunLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = file.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) || errors.Is(err, syscall.EAGAIN) {
			return nil, fmt.Errorf("%w: %s", ErrLockHeld, readHolderHint(path))
		}
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}

	hint := fmt.Sprintf("pid=%d run=%s acquired=%s\n", os.Getpid(), runID, time.Now().UTC().Format(time.RFC3339))
	if err := file.Truncate(0); err == nil {
		_, _ = file.WriteAt([]byte(hint), 0)
		_ = file.Sync()
	}

	return &RunLock{path: path, file: file}, nil
}

// Release unlocks and closes the lock file.
func (l *RunLock) Release() error {
	unlockErr := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	closeErr := l.file.Close()
	if unlockErr != nil {
		return fmt.Errorf("unlock run lock: %w", unlockErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close run lock: %w", closeErr)
	}
	return nil
}

// Path returns the lock file location.
func (l *RunLock) Path() string {
	return l.path
}

func readHolderHint(path string) string {
	data, err := os.ReadFile(path)
	if err != nil || len(data) == 0 {
		return "holder unknown"
	}
	if len(data) > 120 {
		data = data[:120]
	}
	return strings.TrimSpace(string(data))
}
