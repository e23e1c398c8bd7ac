package importer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

var (
	// ErrLockTimeout indicates the lock acquisition timed out
	ErrLockTimeout = errors.New("lock acquisition timed out")

	// ErrLockWouldBlock indicates the lock is held by another holder
	ErrLockWouldBlock = errors.New("lock is held by another holder")
)

const (
	minLockPoll = 10 * time.Millisecond
	maxLockPoll = 500 * time.Millisecond
)

// FileLock is an exclusive flock(2) lock on a file.
//
// Every FileLock opens its own file description, so two FileLocks on the
// same path exclude each other both across processes and across goroutines
// of one process. The kernel drops the lock if the holder dies.
type FileLock struct {
	path string
	file *os.File
}

// NewFileLock creates a lock at path. The file and its parent directories
// are created on first use.
func NewFileLock(path string) *FileLock {
	return &FileLock{path: path}
}

// TryLock acquires the lock without waiting. It reports false, with a nil
// error, when another holder has it.
func (l *FileLock) TryLock() (bool, error) {
	if err := l.open(); err != nil {
		return false, err
	}
	err := l.flock()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrLockWouldBlock):
		l.release()
		return false, nil
	default:
		l.release()
		return false, err
	}
}

// Lock waits up to timeout for the lock.
func (l *FileLock) Lock(timeout time.Duration) error {
	return l.LockWithContext(context.Background(), timeout)
}

// LockWithContext waits for the lock until it is acquired, timeout expires
// (ErrLockTimeout) or ctx is done (ctx.Err()). Polling backs off
// exponentially.
func (l *FileLock) LockWithContext(ctx context.Context, timeout time.Duration) error {
	if err := l.open(); err != nil {
		return err
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	poll := minLockPoll
	for {
		err := l.flock()
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrLockWouldBlock) {
			l.release()
			return err
		}

		select {
		case <-ctx.Done():
			l.release()
			return ctx.Err()
		case <-deadline.C:
			l.release()
			return fmt.Errorf("%w: %s after %v", ErrLockTimeout, l.path, timeout)
		case <-time.After(poll):
			poll = min(poll*2, maxLockPoll)
		}
	}
}

// Unlock releases the lock. Unlocking an unheld lock is a no-op.
func (l *FileLock) Unlock() error {
	if l.file == nil {
		return nil
	}
	err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil

	if err != nil {
		return fmt.Errorf("flock unlock failed: %w", err)
	}
	if closeErr != nil {
		return fmt.Errorf("close failed: %w", closeErr)
	}
	return nil
}

// IsLocked reports whether this instance holds the lock.
func (l *FileLock) IsLocked() bool {
	return l.file != nil
}

// Path returns the lock file path.
func (l *FileLock) Path() string {
	return l.path
}

// flock makes one non-blocking attempt. Contention maps to ErrLockWouldBlock.
func (l *FileLock) flock() error {
	err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
	if err == nil {
		return nil
	}
	if errors.Is(err, syscall.EWOULDBLOCK) {
		return ErrLockWouldBlock
	}
	return fmt.Errorf("flock failed: %w", err)
}

func (l *FileLock) open() error {
	if l.file != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}
	l.file = file
	return nil
}

func (l *FileLock) release() {
	if l.file != nil {
		_ = l.file.Close()
		l.file = nil
	}
}
