package docs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// SyncLockFilename is the name of the lock file inside the cache directory.
const SyncLockFilename = "sync.lock"

// ErrLockTimeout indicates the sync lock was not released in time.
var ErrLockTimeout = errors.New("sync lock acquisition timed out")

const (
	minLockPoll = 10 * time.Millisecond
	maxLockPoll = 500 * time.Millisecond
)

// SyncLock elects one process per cache directory to run the startup sync.
// It wraps flock(2) on a file in the cache directory, so the kernel releases
// it when the holder exits or crashes. A SyncLock is not safe for concurrent
// use by multiple goroutines.
type SyncLock struct {
	path string
	file *os.File
}

// NewSyncLock creates the lock for cacheDir. Nothing is opened until the
// lock is first acquired.
func NewSyncLock(cacheDir string) *SyncLock {
	return &SyncLock{path: filepath.Join(cacheDir, SyncLockFilename)}
}

// Path returns the lock file path.
func (l *SyncLock) Path() string {
	return l.path
}

// Held returns true if this instance holds the lock.
func (l *SyncLock) Held() bool {
	return l.file != nil
}

// TryAcquire takes the lock without blocking. It returns false, without an
// error, when another process holds it.
func (l *SyncLock) TryAcquire() (bool, error) {
	if err := l.open(); err != nil {
		return false, err
	}

	ok, err := l.flock()
	if err != nil || !ok {
		l.close()
		return false, err
	}
	return true, nil
}

// Acquire blocks until the lock is taken, timeout expires (ErrLockTimeout)
// or ctx is done. Polling backs off exponentially.
func (l *SyncLock) Acquire(ctx context.Context, timeout time.Duration) error {
	if err := l.open(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	poll := minLockPoll
	for {
		ok, err := l.flock()
		if err != nil {
			l.close()
			return err
		}
		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			l.close()
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return ErrLockTimeout
			}
			return ctx.Err()
		case <-time.After(poll):
			poll = min(poll*2, maxLockPoll)
		}
	}
}

// Wait blocks until the current holder releases the lock, then returns
// without holding it. Followers use it to wait for the leader's sync.
func (l *SyncLock) Wait(ctx context.Context, timeout time.Duration) error {
	if err := l.Acquire(ctx, timeout); err != nil {
		return err
	}
	return l.Release()
}

// Release gives up the lock. Releasing an unheld lock is a no-op.
func (l *SyncLock) Release() error {
	if l.file == nil {
		return nil
	}

	err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil

	if err != nil {
		return fmt.Errorf("failed to unlock %s: %w", l.path, err)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close %s: %w", l.path, closeErr)
	}
	return nil
}

// flock attempts a non-blocking exclusive lock on the open file.
func (l *SyncLock) flock() (bool, error) {
	err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, syscall.EWOULDBLOCK) {
		return false, nil
	}
	return false, fmt.Errorf("flock %s: %w", l.path, err)
}

func (l *SyncLock) open() error {
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

func (l *SyncLock) close() {
	if l.file != nil {
		_ = l.file.Close()
		l.file = nil
	}
}
