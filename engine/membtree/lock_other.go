//go:build !unix

package membtree

import (
	"os"

	"github.com/Giulio2002/safedbx/engine"
)

// Non-unix platforms fall back to lock-file existence only. os.OpenFile with
// O_CREATE is enough to reserve the path; cross-process exclusion is not
// enforced.
func acquireLock(path string, readonly bool, mode os.FileMode) (*os.File, error) {
	openFlags := os.O_RDWR | os.O_CREATE
	if readonly {
		openFlags = os.O_RDONLY | os.O_CREATE
	}
	return os.OpenFile(path, openFlags, mode)
}

func releaseLock(f *os.File) {
	if f != nil {
		f.Close()
	}
}

func writeSnapshotFD(fd uintptr, snap *snapshot) error {
	return engine.ErrIncompatible
}
