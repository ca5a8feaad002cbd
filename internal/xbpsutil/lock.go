package xbpsutil

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Lock is an advisory flock-style lock file. The teacher used cgo
// directly for POSIX calls it needed (common/build.go, common/
// reproducibility.go); golang.org/x/sys/unix gives the same syscalls
// without cgo, which is the way the rest of the example corpus reaches
// for flock/chown/utimensat (GoogleCloudPlatform-osconfig requires
// golang.org/x/sys directly).
type Lock struct {
	f *os.File
}

// AcquireLock opens (creating if needed) the lock file at path and
// flocks it. If block is false, a lock already held by another process
// surfaces as errs.ErrBusy-shaped (EWOULDBLOCK/EBUSY); the pkgdb lock
// is always non-blocking (spec §4.1), while repository locks block.
func AcquireLock(path string, block bool) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("xbpsutil: opening lock file %s: %w", path, err)
	}

	how := unix.LOCK_EX
	if !block {
		how |= unix.LOCK_NB
	}
	if err := unix.Flock(int(f.Fd()), how); err != nil {
		f.Close()
		if err == unix.EWOULDBLOCK {
			return nil, fmt.Errorf("xbpsutil: lock %s held by another writer: %w", path, unix.EBUSY)
		}
		return nil, fmt.Errorf("xbpsutil: flock %s: %w", path, err)
	}
	return &Lock{f: f}, nil
}

// Release unlocks and closes the lock file. It does not remove the
// lock file from disk; the next AcquireLock reopens the same inode.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	_ = unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	return l.f.Close()
}
