//go:build windows

package litecache

import (
	"math"

	"github.com/spf13/afero"
	"golang.org/x/sys/windows"
)

// lockFile blocks until an exclusive lock on the whole of f is held. Files
// without an OS handle (in-memory filesystems) are not locked.
func lockFile(f afero.File) error {
	fd, ok := f.(fdFile)
	if !ok {
		return nil
	}
	return windows.LockFileEx(windows.Handle(fd.Fd()), windows.LOCKFILE_EXCLUSIVE_LOCK,
		0, math.MaxUint32, math.MaxUint32, new(windows.Overlapped))
}

// unlockFile releases the lock taken by lockFile.
func unlockFile(f afero.File) error {
	fd, ok := f.(fdFile)
	if !ok {
		return nil
	}
	return windows.UnlockFileEx(windows.Handle(fd.Fd()), 0, math.MaxUint32, math.MaxUint32, new(windows.Overlapped))
}
