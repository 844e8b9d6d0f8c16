package litecache

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors
var (
	// ErrCacheMiss is returned when no fresh artifact exists for a key.
	ErrCacheMiss = errors.New("litecache: cache miss")

	// ErrInvalidKey is returned when a key is empty or contains reserved characters.
	ErrInvalidKey = errors.New("litecache: invalid key")

	// ErrInvalidArgument is returned for malformed caller input other than keys,
	// such as an unparseable TTL or a batch containing an invalid key.
	ErrInvalidArgument = errors.New("litecache: invalid argument")

	// ErrCacheArgument is wrapped by every construction-time configuration error.
	ErrCacheArgument = errors.New("litecache: invalid configuration")

	// ErrDirectoryCreation is returned when a directory cannot be created.
	ErrDirectoryCreation = errors.New("litecache: directory creation failed")

	// ErrCacheWrite is returned when an artifact cannot be written.
	ErrCacheWrite = errors.New("litecache: write failed")

	// ErrCacheRead is returned for structurally corrupt artifacts.
	ErrCacheRead = errors.New("litecache: corrupt artifact")

	// ErrProducer is matched by every *ProducerError.
	ErrProducer = errors.New("litecache: producer failed")
)

// ConfigError collects every configuration problem found by Open.
type ConfigError struct {
	Errors []error
}

// Error implements the error interface.
func (ce *ConfigError) Error() string {
	if len(ce.Errors) == 0 {
		return ErrCacheArgument.Error()
	}
	if len(ce.Errors) == 1 {
		return ce.Errors[0].Error()
	}

	var buf strings.Builder
	fmt.Fprintf(&buf, "%s: %d errors:\n", ErrCacheArgument, len(ce.Errors))
	for i, err := range ce.Errors {
		fmt.Fprintf(&buf, "  %d. %v\n", i+1, err)
	}
	return buf.String()
}

// Unwrap returns the underlying errors for use with errors.Is and errors.As.
func (ce *ConfigError) Unwrap() []error {
	return ce.Errors
}

// newConfigError creates a ConfigError from a slice of errors.
// Returns nil if the slice is empty.
func newConfigError(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return &ConfigError{Errors: errs}
}

// configErrorf formats a single configuration problem wrapping ErrCacheArgument.
func configErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCacheArgument, fmt.Sprintf(format, args...))
}

// ProducerError wraps a failure raised by a producer during Cache.
type ProducerError struct {
	Key string
	Err error
}

// Error implements the error interface.
func (pe *ProducerError) Error() string {
	return fmt.Sprintf("%s for key %q: %v", ErrProducer, pe.Key, pe.Err)
}

// Unwrap returns the original producer error.
func (pe *ProducerError) Unwrap() error {
	return pe.Err
}

// Is reports whether target is ErrProducer.
func (pe *ProducerError) Is(target error) bool {
	return target == ErrProducer
}
