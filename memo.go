package litecache

import (
	"github.com/dgraph-io/ristretto/v2"
)

// blobMemo keeps deserialized Complex values keyed by artifact path. An entry
// is only served while the artifact's blob checksum still matches, so an
// overwrite by another process is never masked. A nil memo is valid and
// stores nothing.
type blobMemo struct {
	rc *ristretto.Cache[string, memoEntry]
}

type memoEntry struct {
	sum   uint64
	value any
}

func newBlobMemo(maxEntries int64) (*blobMemo, error) {
	rc, err := ristretto.NewCache(&ristretto.Config[string, memoEntry]{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &blobMemo{rc: rc}, nil
}

func (m *blobMemo) get(path string, sum uint64) (any, bool) {
	if m == nil {
		return nil, false
	}
	e, ok := m.rc.Get(path)
	if !ok || e.sum != sum {
		return nil, false
	}
	return e.value, true
}

func (m *blobMemo) put(path string, sum uint64, v any) {
	if m == nil {
		return
	}
	m.rc.Set(path, memoEntry{sum: sum, value: v}, 1)
	m.rc.Wait()
}

func (m *blobMemo) forget(path string) {
	if m == nil {
		return
	}
	m.rc.Del(path)
}

func (m *blobMemo) close() {
	if m == nil {
		return
	}
	m.rc.Close()
}
