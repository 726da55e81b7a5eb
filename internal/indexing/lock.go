package indexing

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// LockFilename is the name of the build lock file
const LockFilename = "build.lock"

var (
	// ErrLockTimeout indicates the lock acquisition timed out
	ErrLockTimeout = errors.New("lock acquisition timed out")
)

// lockRetryDelay is the polling interval while waiting for the lock.
const lockRetryDelay = 50 * time.Millisecond

// BuildLock elects a single index builder across processes sharing a base
// directory. The lock is released by the OS if the holder exits.
type BuildLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewBuildLock creates a lock backed by the file at path.
func NewBuildLock(path string) *BuildLock {
	return &BuildLock{
		path:  path,
		flock: flock.New(path),
	}
}

// TryLock attempts to acquire the lock without blocking.
// Returns true if the lock was acquired, false if it's held by another process.
func (l *BuildLock) TryLock() (bool, error) {
	if err := l.ensureDir(); err != nil {
		return false, err
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if acquired {
		l.locked = true
	}
	return acquired, nil
}

// Lock waits for the lock until timeout expires or ctx is canceled.
// Returns ErrLockTimeout when the timeout expires first.
func (l *BuildLock) Lock(ctx context.Context, timeout time.Duration) error {
	if err := l.ensureDir(); err != nil {
		return err
	}

	lockCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	acquired, err := l.flock.TryLockContext(lockCtx, lockRetryDelay)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrLockTimeout
		}
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		return ErrLockTimeout
	}

	l.locked = true
	return nil
}

// Unlock releases the lock.
// It's safe to call Unlock multiple times or on an unlocked BuildLock.
func (l *BuildLock) Unlock() error {
	if !l.locked {
		return nil
	}

	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// IsLocked returns true if the lock is currently held by this instance.
func (l *BuildLock) IsLocked() bool {
	return l.locked
}

// Path returns the path to the lock file.
func (l *BuildLock) Path() string {
	return l.path
}

func (l *BuildLock) ensureDir() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}
	return nil
}
