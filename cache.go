package litecache

import (
	"errors"
	"fmt"
	"hash"
	"io/fs"
	"log/slog"
	"os"
	"reflect"
	"time"

	"github.com/spf13/afero"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// instrumentationName identifies the package to OpenTelemetry.
const instrumentationName = "github.com/gophersatwork/litecache"

// DefaultPool is the pool used when none is configured.
const DefaultPool = "default"

// DefaultMemoSize is the default number of deserialized blobs kept in memory.
const DefaultMemoSize = 1024

// Cache stores values as artifact files below a base directory.
//
// Every operation reads or writes the filesystem directly; there is no
// in-memory index. Writes take an exclusive advisory lock on the artifact, so
// several processes may share one directory. Reads take no lock.
type Cache struct {
	dir         string
	pool        string
	defaultTTL  TTL
	subdivide   bool
	maxEntries  int
	maxDepth    int
	strictKeys  bool
	fileMode    os.FileMode
	hashFunc    HashFunc
	nowFunc     NowFunc
	fs          afero.Fs
	logger      *slog.Logger
	meter       metric.Meter
	metrics     *cacheMetrics
	serializer  Serializer
	serializers map[string]Serializer
	memoSize    int64
	memo        *blobMemo
}

// HashFunc defines a function that creates a new hash.Hash instance.
type HashFunc func() hash.Hash

// NowFunc defines a function that returns the current time.
type NowFunc func() time.Time

// Producer computes a value on a cache miss.
type Producer = func() (any, error)

// Open creates a cache rooted at dir. The directory is created with DirMode
// if it doesn't exist. Invalid options are reported together as a
// *ConfigError matching ErrCacheArgument.
func Open(dir string, options ...Option) (*Cache, error) {
	cache := &Cache{
		dir:        dir,
		pool:       DefaultPool,
		defaultTTL: Never,
		maxEntries: DefaultMaxEntries,
		maxDepth:   DefaultMaxDepth,
		fileMode:   0o644,
		hashFunc:   defaultHashFunc,
		nowFunc:    time.Now,
		fs:         afero.NewOsFs(),
		logger:     discardLogger(),
		meter:      otel.Meter(instrumentationName),
		serializer: GobSerializer{},
		memoSize:   DefaultMemoSize,
	}

	// Apply options
	for _, option := range options {
		option(cache)
	}

	if err := cache.validate(); err != nil {
		return nil, err
	}

	cache.dir = NormalizeDirectory(cache.dir)
	if err := EnsurePath(cache.fs, cache.dir, DirMode); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCacheArgument, err)
	}

	metrics, err := newCacheMetrics(cache.meter, cache.pool)
	if err != nil {
		return nil, newConfigError([]error{configErrorf("metrics: %v", err)})
	}
	cache.metrics = metrics

	cache.serializers = map[string]Serializer{
		GobSerializer{}.Name():     GobSerializer{},
		MsgpackSerializer{}.Name(): MsgpackSerializer{},
	}
	cache.serializers[cache.serializer.Name()] = cache.serializer

	if cache.memoSize > 0 {
		memo, err := newBlobMemo(cache.memoSize)
		if err != nil {
			return nil, newConfigError([]error{configErrorf("memo: %v", err)})
		}
		cache.memo = memo
	}

	return cache, nil
}

// OpenTemp creates an in-memory cache for testing.
func OpenTemp(options ...Option) *Cache {
	options = append([]Option{WithFs(afero.NewMemMapFs())}, options...)
	cache, err := Open("/litecache", options...)
	if err != nil {
		panic(fmt.Sprintf("failed to create temp cache: %v", err))
	}
	return cache
}

// validate collects every configuration problem.
func (c *Cache) validate() error {
	var errs []error
	if c.dir == "" {
		errs = append(errs, configErrorf("directory is empty"))
	}
	if err := validatePool(c.pool); err != nil {
		errs = append(errs, err)
	}
	if c.defaultTTL < Never {
		errs = append(errs, configErrorf("default ttl %d is invalid", int64(c.defaultTTL)))
	}
	if c.fs == nil {
		errs = append(errs, configErrorf("filesystem is nil"))
	}
	if c.hashFunc == nil {
		errs = append(errs, configErrorf("hash function is nil"))
	} else if h := c.hashFunc(); h == nil || h.Size() < 1 {
		errs = append(errs, configErrorf("hash function returned an unusable hash"))
	}
	if c.nowFunc == nil {
		errs = append(errs, configErrorf("now function is nil"))
	}
	if c.logger == nil {
		errs = append(errs, configErrorf("logger is nil"))
	}
	if c.meter == nil {
		errs = append(errs, configErrorf("meter is nil"))
	}
	if c.serializer == nil {
		errs = append(errs, configErrorf("serializer is nil"))
	}
	if c.memoSize < 0 {
		errs = append(errs, configErrorf("memo size %d is negative", c.memoSize))
	}
	return newConfigError(errs)
}

// Dir returns the normalized base directory.
func (c *Cache) Dir() string { return c.dir }

// Pool returns the pool name.
func (c *Cache) Pool() string { return c.pool }

// Get returns the value stored under key.
// Returns ErrCacheMiss if there is no artifact or it has expired.
// Returns an error wrapping ErrCacheRead if the artifact is corrupt.
func (c *Cache) Get(key string) (any, error) {
	path, err := c.pathFor(key)
	if err != nil {
		return nil, err
	}

	a, err := c.readArtifact(path)
	if err != nil {
		c.recordRead(key, path, err)
		return nil, err
	}
	v, err := c.decodePayload(path, a)
	if err != nil {
		c.recordRead(key, path, err)
		return nil, err
	}
	c.metrics.hit()
	return v, nil
}

// GetDefault is like Get but returns def instead of ErrCacheMiss.
func (c *Cache) GetDefault(key string, def any) (any, error) {
	v, err := c.Get(key)
	if errors.Is(err, ErrCacheMiss) {
		return def, nil
	}
	return v, err
}

// Set stores value under key for ttl seconds. DefaultTTL selects the
// configured default. A nil value, including a typed nil pointer, is the
// absence marker: nothing is written and nil is returned, since a later miss
// looks the same as a stored nil.
func (c *Cache) Set(key string, value any, ttl TTL) error {
	path, err := c.pathFor(key)
	if err != nil {
		return err
	}
	now := c.now()
	ttl, err = c.resolveTTL(ttl, now)
	if err != nil {
		return err
	}
	if isAbsent(value) {
		return nil
	}

	h := artifactHeader{
		kind:      Analyze(value, c.maxEntries, c.maxDepth),
		key:       key,
		pool:      c.pool,
		createdAt: now,
		ttl:       ttl,
	}

	size, err := c.writeArtifact(path, h, value)
	c.memo.forget(path)
	if err != nil {
		c.metrics.failure()
		c.logger.Error("cache write failed",
			slog.String("key", key), slog.String("pool", c.pool), slog.String("path", path), slog.Any("err", err))
		return err
	}

	c.metrics.write()
	c.logger.Debug("artifact written",
		slog.String("key", key), slog.String("kind", h.kind.String()), slog.String("path", path),
		slog.String("size", formatSize(size)), slog.String("ttl", ttl.String()))
	return nil
}

// Cache returns the value stored under key, calling produce on a miss and
// storing its result for ttl. On a hit, produce is not called and ttl is
// ignored.
//
// A failing or panicking producer is reported as a *ProducerError and nothing
// is stored. A produced value that cannot be stored is still returned; the
// storage failure is only logged.
//
// Concurrent calls for the same missing key each run produce and each write
// the artifact; the last writer wins.
func (c *Cache) Cache(key string, produce Producer, ttl TTL) (any, error) {
	if produce == nil {
		return nil, fmt.Errorf("%w: producer is nil", ErrInvalidArgument)
	}
	if _, err := c.resolveTTL(ttl, c.now()); err != nil {
		return nil, err
	}

	v, err := c.Get(key)
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		return nil, err
	}

	v, err = c.produce(key, produce)
	if err != nil {
		c.metrics.failure()
		c.notice("producer failed",
			slog.String("key", key), slog.String("pool", c.pool), slog.Any("err", err))
		return nil, err
	}

	if err := c.Set(key, v, ttl); err != nil {
		c.notice("produced value was not stored",
			slog.String("key", key), slog.String("pool", c.pool), slog.Any("err", err))
	}
	return v, nil
}

// produce runs p, converting errors and panics into a *ProducerError.
func (c *Cache) produce(key string, p Producer) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			v, err = nil, &ProducerError{Key: key, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	c.metrics.produce()
	v, err = p()
	if err != nil {
		return nil, &ProducerError{Key: key, Err: err}
	}
	return v, nil
}

// Delete removes the artifact for key. It returns false if there was none or
// it could not be removed; removal failures are logged.
func (c *Cache) Delete(key string) (bool, error) {
	path, err := c.pathFor(key)
	if err != nil {
		return false, err
	}
	return c.removeArtifact(path), nil
}

// Has reports whether a fresh artifact exists for key. Blobs are not
// deserialized. The answer may be stale by the time it is used.
func (c *Cache) Has(key string) (bool, error) {
	path, err := c.pathFor(key)
	if err != nil {
		return false, err
	}

	_, err = c.readArtifact(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrCacheMiss):
		return false, nil
	}
	return false, err
}

// Clear removes every artifact of this pool, including those in shard
// directories when subdivision is enabled. It stops at the first removal
// failure; artifacts removed before that stay removed.
func (c *Cache) Clear() error {
	err := c.walkArtifacts(func(path string, _ os.FileInfo, h *artifactHeader) error {
		c.memo.forget(path)
		if err := c.fs.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			c.metrics.failure()
			c.logger.Error("cache clear failed", slog.String("pool", c.pool), slog.String("path", path), slog.Any("err", err))
			return fmt.Errorf("%w: remove %s: %w", ErrCacheWrite, path, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	c.notice("cache cleared", slog.String("pool", c.pool))
	return nil
}

// Close releases in-memory resources. The artifacts stay on disk.
func (c *Cache) Close() error {
	c.memo.close()
	return nil
}

// removeArtifact deletes the file at path and reports whether it did.
func (c *Cache) removeArtifact(path string) bool {
	c.memo.forget(path)
	if err := c.fs.Remove(path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.metrics.failure()
			c.logger.Error("cache delete failed", slog.String("pool", c.pool), slog.String("path", path), slog.Any("err", err))
		}
		return false
	}
	return true
}

// recordRead updates metrics and logs for a failed read.
func (c *Cache) recordRead(key, path string, err error) {
	if errors.Is(err, ErrCacheMiss) {
		c.metrics.miss()
		c.logger.Debug("cache miss", slog.String("key", key), slog.String("pool", c.pool))
		return
	}
	c.metrics.failure()
	c.logger.Error("cache read failed",
		slog.String("key", key), slog.String("pool", c.pool), slog.String("path", path), slog.Any("err", err))
}

// validateKey applies the configured key rules.
func (c *Cache) validateKey(key string) error {
	return ValidateKey(key, c.strictKeys)
}

// pathFor validates key and returns its artifact path.
func (c *Cache) pathFor(key string) (string, error) {
	if err := c.validateKey(key); err != nil {
		return "", err
	}
	return ArtifactPath(c.dir, c.hashKey(key), c.subdivide), nil
}

// hashKey returns the pool-scoped digest of key.
func (c *Cache) hashKey(key string) string {
	return HashKey(c.hashFunc(), c.pool, key)
}

// resolveTTL substitutes the configured default and rejects invalid values,
// including TTLs whose deadline counted from now does not fit in an int64.
func (c *Cache) resolveTTL(ttl TTL, now time.Time) (TTL, error) {
	if ttl == DefaultTTL {
		ttl = c.defaultTTL
	}
	if ttl < Never {
		return 0, fmt.Errorf("%w: ttl %d is invalid", ErrInvalidArgument, int64(ttl))
	}
	if _, ok := deadline(now.Unix(), ttl); !ok {
		return 0, fmt.Errorf("%w: ttl %d overflows the expiry deadline", ErrInvalidArgument, int64(ttl))
	}
	return ttl, nil
}

// isAbsent reports whether value is nil or a nil pointer. Neither is stored.
func isAbsent(value any) bool {
	if value == nil {
		return true
	}
	v := reflect.ValueOf(value)
	return v.Kind() == reflect.Pointer && v.IsNil()
}

// now returns the current time.
func (c *Cache) now() time.Time {
	return c.nowFunc()
}
