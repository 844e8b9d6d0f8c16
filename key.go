package litecache

import (
	"encoding/hex"
	"fmt"
	"hash"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
)

const (
	// ArtifactExt is the file extension of every artifact.
	ArtifactExt = ".cache"

	// poolSeparator joins pool and key before hashing. Pool names may not
	// contain it, so the first separator always ends the pool.
	poolSeparator = "|"

	// reservedKeyChars are rejected in strict mode.
	reservedKeyChars = `{}()/\@:`
)

// artifactName matches the base name of an artifact file.
var artifactName = regexp.MustCompile(`^[0-9a-f]+\` + ArtifactExt + `$`)

// shardName matches a shard sub-directory.
var shardName = regexp.MustCompile(`^[0-9a-f]{2}$`)

// ValidateKey checks that key is usable. Empty keys are always rejected; with
// strict set, keys containing reserved or non-printable characters are too.
func ValidateKey(key string, strict bool) error {
	if key == "" {
		return fmt.Errorf("%w: key is empty", ErrInvalidKey)
	}
	if !strict {
		return nil
	}
	if strings.ContainsAny(key, reservedKeyChars) {
		return fmt.Errorf("%w: key %q contains one of %q", ErrInvalidKey, key, reservedKeyChars)
	}
	for _, r := range key {
		if !unicode.IsPrint(r) {
			return fmt.Errorf("%w: key %q contains non-printable characters", ErrInvalidKey, key)
		}
	}
	return nil
}

// validatePool checks a pool name. The separator and control characters are
// rejected so pool|key is unambiguous and the pool directive stays on one line.
func validatePool(pool string) error {
	if pool == "" {
		return configErrorf("pool name is empty")
	}
	if strings.Contains(pool, poolSeparator) {
		return configErrorf("pool name %q contains %q", pool, poolSeparator)
	}
	for _, r := range pool {
		if unicode.IsControl(r) {
			return configErrorf("pool name %q contains control characters", pool)
		}
	}
	return nil
}

// HashKey returns the hex digest of pool|key using h. h is reset first.
func HashKey(h hash.Hash, pool, key string) string {
	h.Reset()
	h.Write([]byte(pool))
	h.Write([]byte(poolSeparator))
	h.Write([]byte(key))
	return hex.EncodeToString(h.Sum(nil))
}

// ArtifactPath maps a key hash to its file below base. With subdivide set the
// file lives in a sub-directory named after the first two hash characters.
func ArtifactPath(base, keyHash string, subdivide bool) string {
	if len(keyHash) < 2 {
		panic(fmt.Sprintf("key hash too short: %s", keyHash))
	}
	if subdivide {
		return filepath.Join(base, keyHash[:2], keyHash+ArtifactExt)
	}
	return filepath.Join(base, keyHash+ArtifactExt)
}
