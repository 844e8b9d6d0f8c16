package litecache_test

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/afero"

	"github.com/gophersatwork/litecache"
	"github.com/gophersatwork/litecache/producer"
)

func TestConfigFileCache(t *testing.T) {
	isDebug := false // Set to true when you want to troubleshoot issues visually.
	memFs := afero.NewMemMapFs()
	now := fixedNowFunc()

	cacheRoot := ".config-cache"
	cache, err := litecache.Open(cacheRoot,
		litecache.WithFs(memFs),
		litecache.WithNowFunc(func() time.Time { return now }),
	)
	if err != nil {
		log.Fatalf("Failed to create cache: %v", err)
	}
	defer cache.Close()

	configFile := "settings.json"
	err = afero.WriteFile(memFs, configFile, []byte(`{"workers": 4, "regions": ["eu", "us"]}`), 0o644)
	if err != nil {
		log.Fatalf("Failed to write config file: %v", err)
	}

	load := producer.JSON(memFs, configFile)

	settings, err := cache.Cache("settings", load, litecache.MustParseTTL("10 minutes"))
	if err != nil {
		t.Fatalf("Failed to load settings: %v", err)
	}
	if isDebug {
		spew.Dump(settings)
		printDirTree(memFs, cacheRoot)
	}

	// The file changes, but the cached copy is served until it expires.
	err = afero.WriteFile(memFs, configFile, []byte(`{"workers": 8}`), 0o644)
	if err != nil {
		log.Fatalf("Failed to update config file: %v", err)
	}

	cached, err := cache.Cache("settings", load, litecache.MustParseTTL("10 minutes"))
	if err != nil {
		t.Fatalf("Failed to read settings: %v", err)
	}
	if workers := cached.(map[string]any)["workers"]; workers != float64(4) {
		t.Fatalf("Expected cached workers 4, got %v", workers)
	}

	now = now.Add(11 * time.Minute)
	reloaded, err := cache.Cache("settings", load, litecache.MustParseTTL("10 minutes"))
	if err != nil {
		t.Fatalf("Failed to reload settings: %v", err)
	}
	if workers := reloaded.(map[string]any)["workers"]; workers != float64(8) {
		t.Fatalf("Expected reloaded workers 8, got %v", workers)
	}
}

func TestBrokenSourceIsNotCached(t *testing.T) {
	memFs := afero.NewMemMapFs()

	cache, err := litecache.Open(".broken-cache", litecache.WithFs(memFs))
	if err != nil {
		log.Fatalf("Failed to create cache: %v", err)
	}
	defer cache.Close()

	if err := afero.WriteFile(memFs, "app.ini", []byte("[server\n"), 0o644); err != nil {
		log.Fatalf("Failed to write ini file: %v", err)
	}

	_, err = cache.Cache("app", producer.INI(memFs, "app.ini"), litecache.Never)
	if !errors.Is(err, litecache.ErrProducer) || !errors.Is(err, producer.ErrParse) {
		t.Fatalf("Expected a producer parse error, got %v", err)
	}

	_, err = cache.Cache("missing", producer.File(memFs, "missing.txt"), litecache.Never)
	if !errors.Is(err, producer.ErrLoad) {
		t.Fatalf("Expected a producer load error, got %v", err)
	}

	if ok, _ := cache.Has("app"); ok {
		t.Fatal("A failed producer must not leave an artifact behind")
	}
}

func TestShardedReportCache(t *testing.T) {
	isDebug := false // Set to true when you want to troubleshoot issues visually.
	memFs := afero.NewMemMapFs()
	now := fixedNowFunc()

	cacheRoot := ".report-cache"
	cache, err := litecache.Open(cacheRoot,
		litecache.WithFs(memFs),
		litecache.WithPool("reports"),
		litecache.WithSubdivide(true),
		litecache.WithDefaultTTL(litecache.Seconds(3600)),
		litecache.WithNowFunc(func() time.Time { return now }),
	)
	if err != nil {
		log.Fatalf("Failed to create cache: %v", err)
	}
	defer cache.Close()

	for day := 1; day <= 5; day++ {
		report, err := cache.Cache(fmt.Sprintf("report:%d", day), producer.Capture(func(w io.Writer) error {
			_, err := fmt.Fprintf(w, "day %d: ok", day)
			return err
		}), litecache.DefaultTTL)
		if err != nil {
			t.Fatalf("Failed to build report %d: %v", day, err)
		}
		if report != fmt.Sprintf("day %d: ok", day) {
			t.Fatalf("Unexpected report %d: %v", day, report)
		}
	}

	if isDebug {
		printDirTree(memFs, cacheRoot)
	}

	stats, err := cache.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Entries != 5 || stats.Expired != 0 {
		t.Fatalf("Unexpected stats: %+v", stats)
	}

	now = now.Add(2 * time.Hour)
	pruned, err := cache.Prune()
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if pruned != 5 {
		t.Fatalf("Expected 5 pruned reports, got %d", pruned)
	}
}

func Example() {
	cache := litecache.OpenTemp()
	defer cache.Close()

	if err := cache.Set("greeting", "hello", litecache.Seconds(60)); err != nil {
		log.Fatal(err)
	}

	v, err := cache.Get("greeting")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(v)

	_, err = cache.Get("unknown")
	fmt.Println(errors.Is(err, litecache.ErrCacheMiss))
	// Output:
	// hello
	// true
}

func ExampleParseTTL() {
	for _, s := range []string{"90", "1h30m", "1 day 3 hours", "never"} {
		ttl, err := litecache.ParseTTL(s)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(ttl)
	}
	// Output:
	// 00:01:30
	// 01:30:00
	// 27:00:00
	// never
}

func printDirTree(fs afero.Fs, path string) {
	err := afero.Walk(fs, path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if p == path {
			return nil
		}

		depth := strings.Count(strings.TrimPrefix(p, path), string(os.PathSeparator))
		indent := strings.Repeat("│   ", depth-1)

		if info.IsDir() {
			fmt.Printf("%s├── %s/\n", indent, info.Name())
		} else {
			fmt.Printf("%s├── %s (%d bytes)\n", indent, info.Name(), info.Size())
		}

		return nil
	})
	if err != nil {
		log.Fatalf("Failed to inspect the folder: %v", err)
	}
}

func fixedNowFunc() time.Time {
	return time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC)
}
