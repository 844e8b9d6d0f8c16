package litecache

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

// Stats represents cache statistics for one pool.
type Stats struct {
	Entries     int           // Number of artifacts in the pool
	Expired     int           // Artifacts whose TTL has elapsed
	TotalSize   int64         // Total size of all artifacts in bytes
	OldestEntry time.Duration // Age of the oldest artifact
	NewestEntry time.Duration // Age of the newest artifact
}

// Entry describes a single artifact for listing.
type Entry struct {
	Key       string
	Kind      Complexity
	Path      string
	CreatedAt time.Time
	TTL       TTL
	Size      int64
	Expired   bool
}

// Stats returns statistics about the artifacts of this pool.
// Only artifact headers are read.
func (c *Cache) Stats() (Stats, error) {
	stats := Stats{}
	var oldest, newest time.Time
	now := c.now()

	err := c.walkArtifacts(func(_ string, info os.FileInfo, h *artifactHeader) error {
		stats.Entries++
		stats.TotalSize += info.Size()
		if h.expired(now) {
			stats.Expired++
		}

		// Track oldest and newest
		if oldest.IsZero() || h.createdAt.Before(oldest) {
			oldest = h.createdAt
		}
		if newest.IsZero() || h.createdAt.After(newest) {
			newest = h.createdAt
		}
		return nil
	})
	if err != nil {
		return Stats{}, err
	}

	if !oldest.IsZero() {
		stats.OldestEntry = now.Sub(oldest)
	}
	if !newest.IsZero() {
		stats.NewestEntry = now.Sub(newest)
	}
	return stats, nil
}

// Entries lists the artifacts of this pool, expired ones included.
func (c *Cache) Entries() ([]Entry, error) {
	var entries []Entry
	now := c.now()

	err := c.walkArtifacts(func(path string, info os.FileInfo, h *artifactHeader) error {
		entries = append(entries, Entry{
			Key:       h.key,
			Kind:      h.kind,
			Path:      path,
			CreatedAt: h.createdAt,
			TTL:       h.ttl,
			Size:      info.Size(),
			Expired:   h.expired(now),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Prune removes the expired artifacts of this pool.
// Returns the number of artifacts removed.
func (c *Cache) Prune() (int, error) {
	now := c.now()
	var toRemove []string

	err := c.walkArtifacts(func(path string, _ os.FileInfo, h *artifactHeader) error {
		if h.expired(now) {
			toRemove = append(toRemove, path)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	count := 0
	for _, path := range toRemove {
		c.memo.forget(path)
		if err := c.fs.Remove(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			c.metrics.failure()
			return count, fmt.Errorf("%w: remove %s: %w", ErrCacheWrite, path, err)
		}
		count++
	}

	if count > 0 {
		c.logger.Info("expired artifacts pruned", slog.String("pool", c.pool), slog.Int("count", count))
	}
	return count, nil
}

// walkArtifacts calls fn for every artifact of this pool. Shard directories
// are visited only when subdivision is enabled; other directories and files
// that are not artifacts are ignored. Artifacts whose header cannot be read
// are skipped.
func (c *Cache) walkArtifacts(fn func(path string, info os.FileInfo, h *artifactHeader) error) error {
	return afero.Walk(c.fs, c.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			// Removed by another process since the directory was listed.
			if errors.Is(err, fs.ErrNotExist) && path != c.dir {
				return nil
			}
			return fmt.Errorf("%w: %s: %w", ErrCacheRead, path, err)
		}

		if info.IsDir() {
			if path == c.dir {
				return nil
			}
			if c.subdivide && filepath.Dir(path) == c.dir && shardName.MatchString(info.Name()) {
				return nil
			}
			return filepath.SkipDir
		}

		if !artifactName.MatchString(info.Name()) {
			return nil
		}

		h, err := c.readHeader(path)
		if err != nil {
			// Skip corrupted or vanished artifacts
			return nil
		}
		if h.pool != c.pool {
			return nil
		}
		return fn(path, info, h)
	})
}
