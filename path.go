package litecache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// DirMode is the permission mask used for the base directory and shard directories.
const DirMode os.FileMode = 0o766

// NormalizeDirectory strips trailing path separators from path.
// A path made only of separators is reduced to a single separator.
func NormalizeDirectory(path string) string {
	trimmed := strings.TrimRight(path, `/`+string(filepath.Separator))
	if trimmed == "" && path != "" {
		return string(filepath.Separator)
	}
	return trimmed
}

// Combine joins path parts with the platform separator.
func Combine(parts ...string) string {
	return filepath.Join(parts...)
}

// EnsurePath creates path and any missing parents with the given permissions.
// It is idempotent: an existing directory is not an error.
func EnsurePath(fs afero.Fs, path string, perm os.FileMode) error {
	err := fs.MkdirAll(path, perm)
	if err == nil {
		return nil
	}

	// Another process may have won the race.
	if ok, _ := afero.DirExists(fs, path); ok {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrDirectoryCreation, path, err)
}
