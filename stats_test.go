package litecache

import (
	"testing"
	"time"

	"github.com/spf13/afero"
)

func TestStats(t *testing.T) {
	cache, _, clock := setupTestCache(t, "stats-test")

	stats, err := cache.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats != (Stats{}) {
		t.Errorf("Expected empty stats, got %+v", stats)
	}

	assertSet(t, cache, "old", "v", Seconds(60))
	clock.Advance(30 * time.Second)
	assertSet(t, cache, "new", account{ID: 1}, Never)
	clock.Advance(45 * time.Second)

	stats, err = cache.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Entries != 2 {
		t.Errorf("Expected 2 entries, got %d", stats.Entries)
	}
	if stats.Expired != 1 {
		t.Errorf("Expected 1 expired entry, got %d", stats.Expired)
	}
	if stats.TotalSize <= 0 {
		t.Errorf("Expected positive total size, got %d", stats.TotalSize)
	}
	if stats.OldestEntry != 75*time.Second {
		t.Errorf("Expected oldest entry age 75s, got %s", stats.OldestEntry)
	}
	if stats.NewestEntry != 45*time.Second {
		t.Errorf("Expected newest entry age 45s, got %s", stats.NewestEntry)
	}
}

func TestEntries(t *testing.T) {
	cache, _, _ := setupTestCache(t, "entries-test", WithSubdivide(true))

	assertSet(t, cache, "simple", 1, Seconds(10))
	assertSet(t, cache, "complex", account{ID: 1}, Immediate)

	entries, err := cache.Entries()
	if err != nil {
		t.Fatalf("Entries failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}

	byKey := map[string]Entry{}
	for _, e := range entries {
		byKey[e.Key] = e
	}
	if e := byKey["simple"]; e.Kind != Simple || e.TTL != 10 || e.Expired {
		t.Errorf("Unexpected simple entry: %+v", e)
	}
	if e := byKey["complex"]; e.Kind != Complex || !e.Expired || e.Size == 0 {
		t.Errorf("Unexpected complex entry: %+v", e)
	}
	if e := byKey["simple"]; !e.CreatedAt.Equal(fixedNowFunc()) {
		t.Errorf("Unexpected creation time: %s", e.CreatedAt)
	}
}

func TestPrune(t *testing.T) {
	cache, memFs, clock := setupTestCache(t, "prune-test")

	assertSet(t, cache, "short", 1, Seconds(10))
	assertSet(t, cache, "long", 2, Seconds(1000))
	assertSet(t, cache, "forever", 3, Never)

	// Artifacts of other pools are left alone.
	other, err := Open("/prune-test", WithFs(memFs), WithPool("other"), WithNowFunc(clock.Now))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer other.Close()
	assertSet(t, other, "short", 1, Seconds(10))

	// Corrupt files are skipped.
	if err := afero.WriteFile(memFs, "/prune-test/0123abcd.cache", []byte("junk"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	clock.Advance(time.Minute)
	n, err := cache.Prune()
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 pruned artifact, got %d", n)
	}

	assertMiss(t, cache, "short")
	assertGet(t, cache, "long", 2)
	assertGet(t, cache, "forever", 3)

	if stats, _ := other.Stats(); stats.Entries != 1 {
		t.Errorf("Expected other pool untouched, got %+v", stats)
	}
	if ok, _ := afero.Exists(memFs, "/prune-test/0123abcd.cache"); !ok {
		t.Error("Prune removed a corrupt file it could not read")
	}
}

func TestWalkIgnoresUnrelatedDirectories(t *testing.T) {
	cache, memFs, _ := setupTestCache(t, "walk-test")

	assertSet(t, cache, "k", 1, Never)

	// An artifact-looking file in a shard directory is ignored when the
	// cache is not subdivided, as is anything in a foreign directory.
	hash := cache.hashKey("k")
	for _, path := range []string{
		"/walk-test/" + hash[:2] + "/" + hash + ArtifactExt,
		"/walk-test/nested/dir/" + hash + ArtifactExt,
	} {
		if err := afero.WriteFile(memFs, path, []byte(readRaw(t, cache, memFs, "k")), 0o644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
	}

	entries, err := cache.Entries()
	if err != nil {
		t.Fatalf("Entries failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected 1 entry, got %d: %+v", len(entries), entries)
	}
}
