package digest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

// ErrRunInProgress is returned when another run holds the output directory.
var ErrRunInProgress = errors.New("another digest run is in progress")

const lockName = ".digest.lock"

// fileLock is an advisory flock on the lock file. The kernel drops it when
// the holding process exits, so a file left behind by a killed run is inert.
type fileLock struct {
	path string
	f    *os.File
}

func acquireLock(dir string, now time.Time) (*fileLock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	path := filepath.Join(dir, lockName)
	for attempt := 0; attempt < 3; attempt++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening lock file: %w", err)
		}
		if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
			f.Close()
			if errors.Is(err, unix.EWOULDBLOCK) {
				return nil, fmt.Errorf("%w: %s is held", ErrRunInProgress, path)
			}
			return nil, fmt.Errorf("locking %s: %w", path, err)
		}
		// a releasing holder may have unlinked the file between open and flock
		if !samePath(f, path) {
			f.Close()
			continue
		}
		f.Truncate(0)
		fmt.Fprintf(f, "pid=%d started=%s\n", os.Getpid(), now.Format(time.RFC3339))
		return &fileLock{path: path, f: f}, nil
	}
	return nil, fmt.Errorf("%w: %s keeps changing", ErrRunInProgress, path)
}

func samePath(f *os.File, path string) bool {
	held, err := f.Stat()
	if err != nil {
		return false
	}
	cur, err := os.Stat(path)
	if err != nil {
		return false
	}
	return os.SameFile(held, cur)
}

// release unlinks the file before dropping the lock so a waiter never locks
// an orphaned inode.
func (l *fileLock) release() error {
	err := os.Remove(l.path)
	if errors.Is(err, os.ErrNotExist) {
		err = nil
	}
	if cerr := l.f.Close(); err == nil {
		err = cerr
	}
	return err
}
