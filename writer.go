package litecache

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// fdFile is implemented by files backed by an OS descriptor.
type fdFile interface {
	Fd() uintptr
}

// writeArtifact encodes value and writes it to path under an exclusive
// advisory lock. The file is opened without truncation; it is truncated only
// once the lock is held, so readers never see a partial artifact from a
// writer that follows the protocol. It returns the number of bytes written.
func (c *Cache) writeArtifact(path string, h artifactHeader, value any) (int, error) {
	buf := getBuffer()
	defer putBuffer(buf)

	if err := encodeArtifact(buf, h, value, c.serializer); err != nil {
		return 0, fmt.Errorf("%w: encode %q: %w", ErrCacheWrite, h.key, err)
	}

	if err := EnsurePath(c.fs, filepath.Dir(path), DirMode); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrCacheWrite, err)
	}

	f, err := c.fs.OpenFile(path, os.O_RDWR|os.O_CREATE, c.fileMode)
	if err != nil {
		return 0, fmt.Errorf("%w: open %s: %w", ErrCacheWrite, path, err)
	}

	if err := lockFile(f); err != nil {
		_ = f.Close()
		return 0, fmt.Errorf("%w: lock %s: %w", ErrCacheWrite, path, err)
	}

	werr := writeLocked(f, buf.Bytes())
	uerr := unlockFile(f)
	cerr := f.Close()
	if err := errors.Join(werr, uerr, cerr); err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrCacheWrite, path, err)
	}
	return buf.Len(), nil
}

// writeLocked replaces the content of f. The caller holds the lock.
func writeLocked(f afero.File, data []byte) error {
	if err := f.Truncate(0); err != nil {
		return fmt.Errorf("truncate: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seek: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	return nil
}
