package litecache

import (
	"fmt"
)

// KeyValue pairs a key with its value in batch operations.
type KeyValue struct {
	Key   string
	Value any
}

// GetMultiple reads every key, in order, substituting def for misses.
// All keys are validated before any artifact is read; an invalid key fails
// the whole batch with an error matching both ErrInvalidArgument and
// ErrInvalidKey. A corrupt artifact stops the batch.
func (c *Cache) GetMultiple(keys []string, def any) ([]KeyValue, error) {
	if err := c.validateKeys(keys); err != nil {
		return nil, err
	}

	out := make([]KeyValue, 0, len(keys))
	for _, key := range keys {
		v, err := c.GetDefault(key, def)
		if err != nil {
			return out, err
		}
		out = append(out, KeyValue{Key: key, Value: v})
	}
	return out, nil
}

// SetMultiple stores every pair with the same ttl. It stops at the first
// failure; pairs stored before it stay stored and later pairs are not
// attempted.
func (c *Cache) SetMultiple(pairs []KeyValue, ttl TTL) error {
	for _, kv := range pairs {
		if err := c.validateKey(kv.Key); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
		}
	}
	if _, err := c.resolveTTL(ttl, c.now()); err != nil {
		return err
	}

	for _, kv := range pairs {
		if err := c.Set(kv.Key, kv.Value, ttl); err != nil {
			return err
		}
	}
	return nil
}

// DeleteMultiple deletes every key and reports whether all of them were
// present and removed. Unlike SetMultiple it never stops early.
func (c *Cache) DeleteMultiple(keys []string) (bool, error) {
	if err := c.validateKeys(keys); err != nil {
		return false, err
	}

	all := true
	for _, key := range keys {
		path, _ := c.pathFor(key)
		if !c.removeArtifact(path) {
			all = false
		}
	}
	return all, nil
}

func (c *Cache) validateKeys(keys []string) error {
	for _, key := range keys {
		if err := c.validateKey(key); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
		}
	}
	return nil
}
