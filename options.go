package litecache

import (
	"log/slog"
	"os"

	"github.com/spf13/afero"
	"go.opentelemetry.io/otel/metric"
)

// Option defines a function that configures a Cache.
type Option func(*Cache)

// WithFs sets a custom filesystem for the cache.
// This is primarily useful for testing with in-memory filesystems.
//
// Example:
//
//	cache, err := litecache.Open(".cache", litecache.WithFs(afero.NewMemMapFs()))
func WithFs(fs afero.Fs) Option {
	return func(c *Cache) {
		c.fs = fs
	}
}

// WithHashFunc sets the digest used to derive artifact names from pool|key.
// The default is MD5.
//
// Note: Changing the hash function orphans existing artifacts.
func WithHashFunc(hashFunc HashFunc) Option {
	return func(c *Cache) {
		c.hashFunc = hashFunc
	}
}

// WithNowFunc sets a custom time function for the cache.
// This is primarily useful for testing expiry with a controlled clock.
func WithNowFunc(nowFunc NowFunc) Option {
	return func(c *Cache) {
		c.nowFunc = nowFunc
	}
}

// WithPool sets the namespace keys are hashed in. The name must be non-empty
// and may not contain "|" or control characters.
func WithPool(pool string) Option {
	return func(c *Cache) {
		c.pool = pool
	}
}

// WithDefaultTTL sets the TTL used when DefaultTTL is passed. The default is Never.
func WithDefaultTTL(ttl TTL) Option {
	return func(c *Cache) {
		c.defaultTTL = ttl
	}
}

// WithSubdivide stores artifacts in sub-directories named after the first
// two characters of their hash.
func WithSubdivide(subdivide bool) Option {
	return func(c *Cache) {
		c.subdivide = subdivide
	}
}

// WithComplexityLimits sets the entry-count and nesting-depth limits above
// which slices and maps are serialized instead of embedded as literals.
// Pass Unlimited to disable a limit.
func WithComplexityLimits(maxEntries, maxDepth int) Option {
	return func(c *Cache) {
		c.maxEntries = maxEntries
		c.maxDepth = maxDepth
	}
}

// WithLogger sets the logger. By default nothing is logged.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// WithMeter sets the meter used for cache counters. By default the global
// OpenTelemetry meter provider is used.
func WithMeter(meter metric.Meter) Option {
	return func(c *Cache) {
		c.meter = meter
	}
}

// WithSerializer sets the serializer used for Complex values. Artifacts
// written by the built-in serializers stay readable regardless.
func WithSerializer(s Serializer) Option {
	return func(c *Cache) {
		c.serializer = s
	}
}

// WithMemoSize sets how many deserialized Complex values are kept in memory.
// Memoized values are shared between callers; do not mutate them. Zero
// disables the memo.
func WithMemoSize(n int64) Option {
	return func(c *Cache) {
		c.memoSize = n
	}
}

// WithStrictKeys rejects keys containing {}()/\@: or non-printable characters.
func WithStrictKeys() Option {
	return func(c *Cache) {
		c.strictKeys = true
	}
}

// WithFileMode sets the permissions of newly created artifact files.
func WithFileMode(mode os.FileMode) Option {
	return func(c *Cache) {
		c.fileMode = mode
	}
}
