package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// lockRetryDelay is the poll interval of LockContext.
const lockRetryDelay = 100 * time.Millisecond

// FileLock is an exclusive cross-process lock held by bulk reindex runs,
// so two processes never rebuild the same index at once.
type FileLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewReindexLock returns the lock at <dataDir>/.reindex.lock.
func NewReindexLock(dataDir string) *FileLock {
	lockPath := filepath.Join(dataDir, ".reindex.lock")
	return &FileLock{
		path:  lockPath,
		flock: flock.New(lockPath),
	}
}

func (l *FileLock) ensureDir() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}
	return nil
}

// LockContext blocks until the lock is acquired or ctx is done.
func (l *FileLock) LockContext(ctx context.Context) error {
	if err := l.ensureDir(); err != nil {
		return err
	}

	acquired, err := l.flock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		return fmt.Errorf("failed to acquire lock %s", l.path)
	}

	l.locked = true
	return nil
}

// TryLock attempts to acquire the lock without blocking.
// Returns false if another process holds it.
func (l *FileLock) TryLock() (bool, error) {
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

// Unlock releases the lock. Safe to call on an unlocked FileLock.
func (l *FileLock) Unlock() error {
	if !l.locked {
		return nil
	}

	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Path returns the lock file path.
func (l *FileLock) Path() string {
	return l.path
}

// IsLocked reports whether this handle holds the lock.
func (l *FileLock) IsLocked() bool {
	return l.locked
}
