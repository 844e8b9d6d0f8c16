package litecache

import (
	"errors"
	"go/format"
	"go/parser"
	"go/token"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
)

func TestCounterArtifact(t *testing.T) {
	cache, memFs, _ := setupTestCache(t, "artifact-test")

	assertSet(t, cache, "counter", 42, Seconds(60))

	raw := readRaw(t, cache, memFs, "counter")
	want := `// SIMPLE 'counter' 2020-03-01T00:00:00Z 00:01:00
//litecache:pool default
package artifact

func Load(now int64) []any {
	if now > 1583020800+60 {
		return nil
	}
	return []any{int(42)}
}
`
	if raw != want {
		t.Fatalf("Artifact mismatch:\nExpected:\n%s\nActual:\n%s", want, raw)
	}

	formatted, err := format.Source([]byte(raw))
	if err != nil {
		t.Fatalf("Artifact is not valid Go: %v", err)
	}
	if string(formatted) != raw {
		t.Errorf("Artifact is not gofmt-clean:\n%s", formatted)
	}

	assertGet(t, cache, "counter", 42)
}

func TestNeverArtifactGuard(t *testing.T) {
	cache, memFs, clock := setupTestCache(t, "never-test")

	assertSet(t, cache, "forever", "v", Never)

	raw := readRaw(t, cache, memFs, "forever")
	if !strings.Contains(raw, "\tif false {\n") {
		t.Errorf("Expected an unconditionally false guard, got:\n%s", raw)
	}
	if !strings.Contains(raw, " never\n") {
		t.Errorf("Expected never in header, got:\n%s", raw)
	}

	clock.Advance(100 * 365 * 24 * time.Hour)
	assertGet(t, cache, "forever", "v")
}

func TestImmediateArtifactGuard(t *testing.T) {
	cache, memFs, _ := setupTestCache(t, "immediate-test")

	assertSet(t, cache, "stale", "v", Immediate)

	raw := readRaw(t, cache, memFs, "stale")
	if !strings.Contains(raw, "\tif true {\n") {
		t.Errorf("Expected an unconditionally true guard, got:\n%s", raw)
	}
	assertMiss(t, cache, "stale")
}

func TestComplexArtifact(t *testing.T) {
	Register(point{})
	cache, memFs, _ := setupTestCache(t, "complex-test")

	assertSet(t, cache, "p", point{X: 1, Y: 2}, Never)

	raw := readRaw(t, cache, memFs, "p")
	if !strings.HasPrefix(raw, "// COMPLEX 'p' ") {
		t.Errorf("Expected COMPLEX header, got:\n%s", raw)
	}
	if !strings.Contains(raw, `return []any{blob("gob", `) {
		t.Errorf("Expected blob reference, got:\n%s", raw)
	}
	code, _, found := strings.Cut(raw, haltMarker)
	if !found {
		t.Fatalf("Expected halt marker, got:\n%s", raw)
	}
	if _, err := parser.ParseFile(token.NewFileSet(), "", code, 0); err != nil {
		t.Errorf("Code section is not valid Go: %v", err)
	}

	assertGet(t, cache, "p", point{X: 1, Y: 2})
}

func TestArtifactHeaderEscaping(t *testing.T) {
	if got := escapeComment("a*/b\nc\x01d"); got != `a*\/b c?d` {
		t.Errorf("escapeComment = %q", got)
	}

	cache, memFs, _ := setupTestCache(t, "escape-test")
	key := "it's a 'key' */\nwith newline"
	assertSet(t, cache, key, "v", Seconds(10))

	raw := readRaw(t, cache, memFs, key)
	first, _, _ := strings.Cut(raw, "\n")
	if want := `// SIMPLE 'it's a 'key' *\/ with newline' 2020-03-01T00:00:00Z 00:00:10`; first != want {
		t.Errorf("Header = %q, want %q", first, want)
	}
	assertGet(t, cache, key, "v")

	entries, err := cache.Entries()
	if err != nil {
		t.Fatalf("Entries failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Key != `it's a 'key' *\/ with newline` {
		t.Errorf("Unexpected entries: %+v", entries)
	}
}

func TestParseHeader(t *testing.T) {
	h, err := parseHeader("// COMPLEX 'k' 2020-03-01T00:00:00Z 25:00:01\n", "//litecache:pool reports\n")
	if err != nil {
		t.Fatalf("parseHeader failed: %v", err)
	}
	if h.kind != Complex || h.key != "k" || h.pool != "reports" || h.ttl != 90001 {
		t.Errorf("Unexpected header: %+v", h)
	}
	if !h.createdAt.Equal(fixedNowFunc()) {
		t.Errorf("createdAt = %s", h.createdAt)
	}

	for _, line := range []string{
		"package artifact",
		"// SIMPLE",
		"// OTHER 'k' 2020-03-01T00:00:00Z 00:00:01",
		"// SIMPLE 'k' yesterday 00:00:01",
		"// SIMPLE 'k' 2020-03-01T00:00:00Z 1:2",
		"// SIMPLE k 2020-03-01T00:00:00Z 00:00:01",
	} {
		if _, err := parseHeader(line, ""); err == nil {
			t.Errorf("Expected error for header %q", line)
		}
	}
}

func TestExpiryBoundary(t *testing.T) {
	cache, _, clock := setupTestCache(t, "expiry-test")

	assertSet(t, cache, "short", "v", Seconds(60))

	clock.Advance(60 * time.Second)
	assertGet(t, cache, "short", "v")

	clock.Advance(time.Second)
	assertMiss(t, cache, "short")

	if ok, err := cache.Has("short"); err != nil || ok {
		t.Errorf("Has after expiry = %v, %v", ok, err)
	}
}

func TestDeadlineOverflow(t *testing.T) {
	created := time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC)

	if _, ok := deadline(created.Unix(), TTL(math.MaxInt64)); ok {
		t.Error("Expected deadline overflow for the largest TTL")
	}
	if end, ok := deadline(created.Unix(), TTL(1<<62)); !ok || end != created.Unix()+1<<62 {
		t.Errorf("deadline(1<<62) = %d, %v", end, ok)
	}

	h := &artifactHeader{createdAt: created, ttl: TTL(math.MaxInt64)}
	if h.expired(created.Add(1000 * time.Hour)) {
		t.Error("Expected an unrepresentable deadline to never expire")
	}

	for _, s := range []string{"9223372036854775807:00:00", "2562047788015216:00:00"} {
		if _, err := parseHeaderTTL(s); err == nil {
			t.Errorf("parseHeaderTTL(%q): expected overflow error", s)
		}
	}
	if ttl, err := parseHeaderTTL("2562047787:59:59"); err != nil || ttl != TTL(2562047787*3600+59*60+59) {
		t.Errorf("parseHeaderTTL = %d, %v", ttl, err)
	}
}

func TestReadArtifactCorruption(t *testing.T) {
	cache, memFs, _ := setupTestCache(t, "corrupt-test")

	Register(point{})
	assertSet(t, cache, "blob", point{X: 3}, Never)
	validBlob := readRaw(t, cache, memFs, "blob")

	const prefix = "// SIMPLE 'k' 2020-03-01T00:00:00Z never\n//litecache:pool default\npackage artifact\n\n"
	wrap := func(body string) string {
		return prefix + "func Load(now int64) []any {\n\tif false {\n\t\treturn nil\n\t}\n\treturn " + body + "\n}\n"
	}

	tests := []struct {
		name     string
		content  string
		wantMiss bool
	}{
		{"empty file", "", true},
		{"nil container", wrap("nil"), true},
		{"empty container", wrap("[]any{}"), true},
		{"not go", "hello world", false},
		{"missing Load", prefix + "func Other() {}\n", false},
		{"extra statement", prefix + "func Load(now int64) []any {\n\tprintln()\n\tif false {\n\t\treturn nil\n\t}\n\treturn nil\n}\n", false},
		{"bad guard", prefix + "func Load(now int64) []any {\n\tif now < 1 {\n\t\treturn nil\n\t}\n\treturn nil\n}\n", false},
		{"overflowing deadline", prefix + "func Load(now int64) []any {\n\tif now > 9223372036854775807+1 {\n\t\treturn nil\n\t}\n\treturn []any{int(1)}\n}\n", false},
		{"wrong container", wrap("[]int{1}"), false},
		{"two values", wrap("[]any{int(1), int(2)}"), false},
		{"foreign call", wrap("[]any{os.Exit(1)}"), false},
		{"blob without marker", wrap(`[]any{blob("gob", 1, 0x1)}`), false},
		{"unknown serializer", wrap(`[]any{blob("xml", 0, 0xef46db3751d8e999)}`) + "//litecache:halt\n", false},
		{"truncated blob", validBlob[:len(validBlob)-1], false},
		{"extended blob", validBlob + "x", false},
		{"tampered blob", validBlob[:len(validBlob)-1] + "\xff", false},
	}

	path, err := cache.pathFor("k")
	if err != nil {
		t.Fatalf("pathFor failed: %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := afero.WriteFile(memFs, path, []byte(tt.content), 0o644); err != nil {
				t.Fatalf("Failed to write artifact: %v", err)
			}

			_, err := cache.Get("k")
			if tt.wantMiss {
				if !errors.Is(err, ErrCacheMiss) {
					t.Fatalf("Expected miss, got %v", err)
				}
				return
			}
			if !errors.Is(err, ErrCacheRead) {
				t.Fatalf("Expected ErrCacheRead, got %v", err)
			}
		})
	}
}
