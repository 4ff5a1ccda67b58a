package cache

import (
	"path/filepath"
	"testing"

	"github.com/use-agent/agentweb/model"
)

func newTestCache(t *testing.T, opts Options) *Cache {
	t.Helper()
	opts.DBPath = filepath.Join(t.TempDir(), "cache.db")
	c, err := Open(opts)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func sampleResult() model.RenderResult {
	return model.RenderResult{
		URL:     "https://example.com/",
		Backend: model.BackendLite,
		MS:      42,
	}
}

func TestSetThenGetRoundTrips(t *testing.T) {
	c := newTestCache(t, Options{})

	if err := c.Set("https://example.com/", "", sampleResult(), 60000); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	got, err := c.Get("https://example.com/", "")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got == nil {
		t.Fatal("Get() returned nil, want a cached result")
	}
	if got.URL != "https://example.com/" || got.Backend != model.BackendLite {
		t.Errorf("got %+v, want url/backend to round-trip", got)
	}
	if !got.Cached {
		t.Error("expected Cached to be true on a hit")
	}
}

func TestGetMissReturnsNil(t *testing.T) {
	c := newTestCache(t, Options{})

	got, err := c.Get("https://example.com/missing", "")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got != nil {
		t.Errorf("got %+v, want nil on miss", got)
	}
}

func TestExpiredEntryIsTreatedAsMiss(t *testing.T) {
	c := newTestCache(t, Options{})

	if err := c.Set("https://example.com/", "", sampleResult(), -1000); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	got, err := c.Get("https://example.com/", "")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got != nil {
		t.Errorf("got %+v, want nil for an expired entry", got)
	}

	stats, err := c.Stats()
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	if stats.Entries != 0 {
		t.Errorf("Entries = %d, want 0 after expired read deletes the row", stats.Entries)
	}
}

func TestSetIsKeyedByURLAndQuery(t *testing.T) {
	c := newTestCache(t, Options{})

	if err := c.Set("https://example.com/", "a", sampleResult(), 60000); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	if err := c.Set("https://example.com/", "b", sampleResult(), 60000); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	stats, err := c.Stats()
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	if stats.Entries != 2 {
		t.Errorf("Entries = %d, want 2 distinct (url, query) rows", stats.Entries)
	}
}

func TestEvictionCapsAtMaxEntries(t *testing.T) {
	c := newTestCache(t, Options{MaxEntries: 2})

	for i := 0; i < 5; i++ {
		url := "https://example.com/" + string(rune('a'+i))
		if err := c.Set(url, "", sampleResult(), 60000); err != nil {
			t.Fatalf("Set() error: %v", err)
		}
	}

	stats, err := c.Stats()
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	if stats.Entries > 2 {
		t.Errorf("Entries = %d, want at most maxEntries=2 after eviction", stats.Entries)
	}
}

func TestInvalidateRemovesAllQueriesForURL(t *testing.T) {
	c := newTestCache(t, Options{})

	if err := c.Set("https://example.com/", "a", sampleResult(), 60000); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	if err := c.Set("https://example.com/", "b", sampleResult(), 60000); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	n, err := c.Invalidate("https://example.com/")
	if err != nil {
		t.Fatalf("Invalidate() error: %v", err)
	}
	if n != 2 {
		t.Errorf("Invalidate() = %d, want 2", n)
	}

	stats, err := c.Stats()
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	if stats.Entries != 0 {
		t.Errorf("Entries = %d, want 0 after invalidate", stats.Entries)
	}
}

func TestPurgeExpiredOnlyRemovesExpiredRows(t *testing.T) {
	c := newTestCache(t, Options{})

	if err := c.Set("https://example.com/fresh", "", sampleResult(), 60000); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	if err := c.Set("https://example.com/stale", "", sampleResult(), -1000); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	n, err := c.PurgeExpired()
	if err != nil {
		t.Fatalf("PurgeExpired() error: %v", err)
	}
	if n != 1 {
		t.Errorf("PurgeExpired() = %d, want 1", n)
	}
}

func TestStatsGroupsByBackend(t *testing.T) {
	c := newTestCache(t, Options{})

	liteResult := sampleResult()
	browserResult := sampleResult()
	browserResult.Backend = model.BackendPlaywright

	if err := c.Set("https://example.com/a", "", liteResult, 60000); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	if err := c.Set("https://example.com/b", "", browserResult, 60000); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	stats, err := c.Stats()
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	if stats.Backends[string(model.BackendLite)] != 1 {
		t.Errorf("Backends[lite] = %d, want 1", stats.Backends[string(model.BackendLite)])
	}
	if stats.Backends[string(model.BackendPlaywright)] != 1 {
		t.Errorf("Backends[playwright] = %d, want 1", stats.Backends[string(model.BackendPlaywright)])
	}
}
