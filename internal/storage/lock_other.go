//go:build !unix

package storage

// FileLock is a no-op where flock(2) is unavailable.
type FileLock struct {
	path string
}

func NewFileLock(path string) *FileLock {
	return &FileLock{path: path}
}

func (l *FileLock) Lock() (func(), error) {
	return func() {}, nil
}

func (l *FileLock) TryLock() (func(), error) {
	return func() {}, nil
}
