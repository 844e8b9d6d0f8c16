//go:build !unix && !windows

package litecache

import "github.com/spf13/afero"

// lockFile is a no-op on platforms without advisory locks.
func lockFile(afero.File) error { return nil }

// unlockFile is a no-op on platforms without advisory locks.
func unlockFile(afero.File) error { return nil }
