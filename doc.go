/*
	Package litecache provides a file-backed key/value cache with per-entry expiry.

Each cached value lives in its own artifact file below a base directory. There is
no in-memory index and no background process: every operation goes straight to the
filesystem, so several processes can share one cache directory.

# Overview

An artifact is a small Go source file. Its first line is a human readable header,
the second names the pool the artifact belongs to, and the body is a Load function
whose guard encodes the expiry deadline:

	// SIMPLE 'counter' 2026-10-19T12:00:00Z 00:01:00
	//litecache:pool default
	package artifact

	func Load(now int64) []any {
		if now > 1792411200+60 {
			return nil
		}
		return []any{int(42)}
	}

Reading an artifact evaluates that function with a restricted evaluator: only the
shapes the writer produces are accepted, nothing is compiled or executed.

# Value Classification

Values are classified before they are written:

  - SIMPLE: nil, booleans, numbers, strings, []byte, and slices or maps built only from
    those, within the configured entry and depth limits. They are embedded as typed
    literals and come back with identical types.
  - COMPLEX: structs, pointers, named types, non-finite floats, and containers that
    exceed the limits. They are serialized (gob by default) into a blob appended after
    a //litecache:halt marker and protected by a length and xxHash64 checksum.

Named types stored with the gob serializer, and containers of them such as []T,
must be registered with Register. Slices and maps built only from predeclared types
and any need no registration: the gob blob lists them and the reader registers them
before decoding.

Setting nil or a nil pointer stores nothing.

# Basic Usage

Creating a cache:

	cache, err := litecache.Open(".cache")
	if err != nil {
	    log.Fatalf("Failed to open cache: %v", err)
	}
	defer cache.Close()

Storing and reading values:

	err = cache.Set("greeting", "hello", litecache.Seconds(60))

	v, err := cache.Get("greeting")
	if errors.Is(err, litecache.ErrCacheMiss) {
	    // absent or expired
	}

Read-through caching:

	v, err := cache.Cache("report", func() (any, error) {
	    return buildReport()
	}, litecache.MustParseTTL("1 day"))

# TTL

TTLs are whole seconds. Never keeps a value until it is deleted, Immediate writes a
value that is already expired, and DefaultTTL selects the value configured with
WithDefaultTTL. ParseTTL accepts integers, time.Duration and strings such as
"90s", "10 minutes" or "1 day 3 hours".

# Configuration Options

	cache, err := litecache.Open(
	    ".cache",
	    litecache.WithPool("reports"),
	    litecache.WithDefaultTTL(litecache.Seconds(3600)),
	    litecache.WithSubdivide(true),
	    litecache.WithLogger(slog.Default()),
	)

Invalid options are reported together in a *ConfigError matching ErrCacheArgument.

# File Structure

Artifact names are the hex digest (MD5 by default) of pool|key. With subdivision
enabled, artifacts are spread over sub-directories named after the first two
characters of the digest:

	.cache/
	├── 3f/
	│   └── 3f2a...c1.cache
	└── a0/
	    └── a09b...7e.cache

# Concurrency

Writers open the artifact without truncating it, take an exclusive advisory lock
(flock on Unix, LockFileEx on Windows) and only then replace its content. Readers
take no lock. Concurrent Cache calls for the same missing key may each run their
producer; the last write wins.

# Error Handling

  - ErrCacheMiss: no fresh artifact for the key
  - ErrInvalidKey: the key is empty, or reserved in strict mode
  - ErrInvalidArgument: a bad TTL, producer or batch
  - ErrCacheRead: the artifact is corrupt
  - ErrCacheWrite: the artifact could not be written
  - ErrProducer: matched by *ProducerError when a producer fails or panics
*/
package litecache
