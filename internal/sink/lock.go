package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const lockName = ".ideaflow.lock"

const lockRetryDelay = 100 * time.Millisecond

// Lock is an advisory lock guarding an output directory across processes
type Lock struct {
	path    string
	timeout time.Duration
	flock   *flock.Flock
}

// NewLock creates a lock for dir
func NewLock(dir string, timeout time.Duration) *Lock {
	path := filepath.Join(dir, lockName)
	return &Lock{path: path, timeout: timeout, flock: flock.New(path)}
}

// Path returns the lock file path
func (l *Lock) Path() string {
	return l.path
}

// Acquire waits up to the lock timeout for exclusive access
func (l *Lock) Acquire(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	locked, err := l.flock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("failed to acquire output lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("timeout waiting for output lock %s", l.path)
	}
	return nil
}

// TryAcquire takes the lock without waiting
func (l *Lock) TryAcquire() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return false, fmt.Errorf("failed to create lock directory: %w", err)
	}
	locked, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to try output lock: %w", err)
	}
	return locked, nil
}

// Release unlocks. The lock file is left in place so a waiting process
// never ends up holding a lock on an unlinked file.
func (l *Lock) Release() error {
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release output lock: %w", err)
	}
	return nil
}
