package sandbox

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// flock guards mutating operations on one sandbox. Within a single name,
// create/attach/delete are mutually exclusive; across sandboxes, operations
// are independent.
type flock struct {
	f *os.File
}

// acquireLock takes the sandbox's .lock file without blocking. Contention
// returns ErrBusy.
func acquireLock(sandboxDir string) (*flock, error) {
	if err := os.MkdirAll(sandboxDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating sandbox dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(sandboxDir, ".lock"), os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening lockfile: %w", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if err == unix.EWOULDBLOCK {
			return nil, ErrBusy
		}
		return nil, fmt.Errorf("locking: %w", err)
	}
	return &flock{f: f}, nil
}

func (l *flock) release() {
	unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	l.f.Close()
}
