//go:build unix

package litecache

import (
	"errors"

	"github.com/spf13/afero"
	"golang.org/x/sys/unix"
)

// lockFile blocks until an exclusive advisory lock on f is held. Files
// without an OS descriptor (in-memory filesystems) are not locked.
func lockFile(f afero.File) error {
	fd, ok := f.(fdFile)
	if !ok {
		return nil
	}
	for {
		err := unix.Flock(int(fd.Fd()), unix.LOCK_EX)
		if !errors.Is(err, unix.EINTR) {
			return err
		}
	}
}

// unlockFile releases the lock taken by lockFile.
func unlockFile(f afero.File) error {
	fd, ok := f.(fdFile)
	if !ok {
		return nil
	}
	return unix.Flock(int(fd.Fd()), unix.LOCK_UN)
}
