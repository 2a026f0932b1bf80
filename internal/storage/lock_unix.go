//go:build unix

package storage

import (
	"errors"
	"fmt"
	"os"
	"syscall"
)

// FileLock is an advisory flock(2) lock on a sidecar file. It guards the
// write path against a second process using the same database.
type FileLock struct {
	path string
}

func NewFileLock(path string) *FileLock {
	return &FileLock{path: path}
}

// Lock blocks until the exclusive lock is held. Call the returned func to
// release it.
func (l *FileLock) Lock() (func(), error) {
	return l.acquire(syscall.LOCK_EX)
}

// TryLock fails immediately with ErrLocked if another process holds the lock.
func (l *FileLock) TryLock() (func(), error) {
	unlock, err := l.acquire(syscall.LOCK_EX | syscall.LOCK_NB)
	if errors.Is(err, syscall.EWOULDBLOCK) {
		return nil, fmt.Errorf("%w: %s", ErrLocked, l.path)
	}
	return unlock, err
}

func (l *FileLock) acquire(how int) (func(), error) {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err := syscall.Flock(int(f.Fd()), how); err != nil {
		_ = f.Close()
		return nil, err
	}
	return func() {
		_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		_ = f.Close()
	}, nil
}
