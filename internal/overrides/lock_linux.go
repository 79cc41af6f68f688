//go:build linux

package overrides

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// fileLock holds an exclusive advisory lock on lqos_overrides.lock for the
// duration of one Load or Save, so a concurrent writer can't be observed
// mid-write.
type fileLock struct {
	f *os.File
}

func acquireLock(lqosDirectory string) (*fileLock, error) {
	if err := os.MkdirAll(lqosDirectory, 0755); err != nil {
		return nil, fmt.Errorf("create %s: %w", lqosDirectory, err)
	}
	path := filepath.Join(lqosDirectory, "lqos_overrides.lock")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		f.Close()
		return nil, fmt.Errorf("flock %s: %w", path, err)
	}
	return &fileLock{f: f}, nil
}

// Release drops the lock and closes the underlying file descriptor. The
// kernel drops the flock on close anyway; this is explicit for clarity.
func (l *fileLock) Release() {
	unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	l.f.Close()
}
