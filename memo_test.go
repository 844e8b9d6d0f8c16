package litecache

import (
	"testing"
)

func TestBlobMemo(t *testing.T) {
	m, err := newBlobMemo(16)
	if err != nil {
		t.Fatalf("newBlobMemo failed: %v", err)
	}
	defer m.close()

	m.put("/a.cache", 1, "value")

	if v, ok := m.get("/a.cache", 1); !ok || v != "value" {
		t.Errorf("get = %v, %v; want value, true", v, ok)
	}
	if _, ok := m.get("/a.cache", 2); ok {
		t.Error("Expected a checksum mismatch to miss")
	}

	m.forget("/a.cache")
	if _, ok := m.get("/a.cache", 1); ok {
		t.Error("Expected a forgotten entry to miss")
	}
}

func TestNilBlobMemo(t *testing.T) {
	var m *blobMemo
	m.put("/a.cache", 1, "value")
	if _, ok := m.get("/a.cache", 1); ok {
		t.Error("Expected nil memo to miss")
	}
	m.forget("/a.cache")
	m.close()
}

func TestMemoSeesExternalOverwrite(t *testing.T) {
	cache, memFs, clock := setupTestCache(t, "memo-test")

	assertSet(t, cache, "acct", account{ID: 1}, Never)
	assertGet(t, cache, "acct", account{ID: 1})
	assertGet(t, cache, "acct", account{ID: 1})

	// Another process sharing the directory overwrites the artifact.
	other, err := Open(cache.Dir(), WithFs(memFs), WithNowFunc(clock.Now))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer other.Close()
	assertSet(t, other, "acct", account{ID: 2}, Never)

	assertGet(t, cache, "acct", account{ID: 2})
}

func TestMemoDisabled(t *testing.T) {
	cache, _, _ := setupTestCache(t, "no-memo-test", WithMemoSize(0))
	if cache.memo != nil {
		t.Fatal("Expected memo to be disabled")
	}

	assertSet(t, cache, "acct", account{ID: 5}, Never)
	assertGet(t, cache, "acct", account{ID: 5})
}
