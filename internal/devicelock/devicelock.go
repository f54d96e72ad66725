// Package devicelock serializes harness runs that target the same device.
//
// Two probes hammering one constrained node at once skew each other's
// latencies, so runs can agree on a lock file (typically one per device) and
// wait their turn.
package devicelock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// RetryDelay is how often Acquire re-tries a held lock.
const RetryDelay = 100 * time.Millisecond

// ErrTimeout is returned when the lock stays held for longer than the timeout.
var ErrTimeout = errors.New("devicelock: timed out waiting for lock")

// Lock is a held device lock.
type Lock struct {
	fl *flock.Flock
}

// Acquire takes an exclusive lock on path, waiting up to timeout for another
// holder to release it. timeout <= 0 waits until ctx is done. Missing parent
// directories are created.
func Acquire(ctx context.Context, path string, timeout time.Duration) (*Lock, error) {
	if path == "" {
		return nil, errors.New("devicelock: empty path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("devicelock: %w", err)
		}
	}

	waitCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	fl := flock.New(path)
	locked, err := fl.TryLockContext(waitCtx, RetryDelay)
	if err != nil {
		// Distinguish our own deadline from the caller's cancellation.
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s after %s", ErrTimeout, path, timeout)
		}
		return nil, fmt.Errorf("devicelock: lock %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrTimeout, path)
	}
	return &Lock{fl: fl}, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.fl.Path()
}

// Release drops the lock. The lock file is left in place for other runs.
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}
