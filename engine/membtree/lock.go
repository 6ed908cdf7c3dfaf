//go:build unix

package membtree

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/Giulio2002/safedbx/engine"
)

// acquireLock takes an advisory flock on the lock file: shared for read-only
// environments, exclusive otherwise. A held conflicting lock means another
// process owns the environment, reported as busy rather than blocking.
func acquireLock(path string, readonly bool, mode os.FileMode) (*os.File, error) {
	openFlags := os.O_RDWR | os.O_CREATE
	if readonly {
		openFlags = os.O_RDONLY | os.O_CREATE
	}
	f, err := os.OpenFile(path, openFlags, mode)
	if err != nil {
		return nil, err
	}
	how := unix.LOCK_EX
	if readonly {
		how = unix.LOCK_SH
	}
	if err := unix.Flock(int(f.Fd()), how|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, engine.ErrBusy
	}
	return f, nil
}

func releaseLock(f *os.File) {
	if f == nil {
		return
	}
	unix.Flock(int(f.Fd()), unix.LOCK_UN)
	f.Close()
}

// writeSnapshotFD dumps to a caller-owned descriptor. The fd is duplicated
// first so the temporary os.File can be closed without touching it.
func writeSnapshotFD(fd uintptr, snap *snapshot) error {
	dup, err := unix.Dup(int(fd))
	if err != nil {
		return err
	}
	f := os.NewFile(uintptr(dup), "snapshot-copy")
	defer f.Close()
	return writeSnapshot(f, snap)
}
