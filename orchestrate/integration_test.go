package orchestrate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/use-agent/agentweb/cache"
	"github.com/use-agent/agentweb/model"
)

const staticPage = `<!DOCTYPE html>
<html><head><title>My Blog</title></head>
<body>
<h1>My Blog</h1>
<p>This is a perfectly ordinary paragraph with enough words in it to read like real prose about something.</p>
<p>Here is a second paragraph, also long enough to count as substantial body content for the page.</p>
</body></html>`

func newTestOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	c, err := cache.Open(cache.Options{DBPath: filepath.Join(t.TempDir(), "cache.db")})
	if err != nil {
		t.Fatalf("cache.Open() error: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return New(c, nil)
}

func newStaticServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(staticPage))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRenderCacheRoundTrip(t *testing.T) {
	o := newTestOrchestrator(t)
	srv := newStaticServer(t)

	first := o.Render(context.Background(), srv.URL, RenderOptions{})
	if first.Cached {
		t.Error("first render should not be cached")
	}
	if first.Backend == model.BackendError {
		t.Fatalf("first render errored: %s", first.Error)
	}

	second := o.Render(context.Background(), srv.URL, RenderOptions{})
	if !second.Cached {
		t.Error("second render should be served from cache")
	}
	if second.MS >= 50 {
		t.Errorf("cached render took %dms, want < 50ms", second.MS)
	}
}

func TestRenderNoCacheBypassesCache(t *testing.T) {
	o := newTestOrchestrator(t)
	srv := newStaticServer(t)

	_ = o.Render(context.Background(), srv.URL, RenderOptions{})
	second := o.Render(context.Background(), srv.URL, RenderOptions{NoCache: true})

	if second.Cached {
		t.Error("noCache render should never report cached=true")
	}
}

func TestInvalidateCacheRemovesAllQueryVariants(t *testing.T) {
	o := newTestOrchestrator(t)
	srv := newStaticServer(t)

	_ = o.Render(context.Background(), srv.URL, RenderOptions{})
	_ = o.Render(context.Background(), srv.URL, RenderOptions{Query: "q1"})

	n, err := o.InvalidateCache(srv.URL)
	if err != nil {
		t.Fatalf("InvalidateCache() error: %v", err)
	}
	if n != 2 {
		t.Errorf("InvalidateCache() = %d, want 2", n)
	}

	after := o.Render(context.Background(), srv.URL, RenderOptions{NoCache: true})
	if after.Cached {
		t.Error("render after invalidate reported cached=true unexpectedly")
	}
}

func TestForcedBrowserWithoutRendererFallsBackToLite(t *testing.T) {
	o := newTestOrchestrator(t)
	srv := newStaticServer(t)

	result := o.Render(context.Background(), srv.URL, RenderOptions{Force: "playwright", NoCache: true})

	if result.Backend != model.BackendLiteFallback {
		t.Errorf("Backend = %q, want lite-fallback when no browser renderer is configured", result.Backend)
	}
	if result.Data == nil {
		t.Fatal("expected fallback render to still produce page data")
	}
	if result.Data.Title != "My Blog" {
		t.Errorf("Data.Title = %q, want %q", result.Data.Title, "My Blog")
	}
}

func TestDetectSPAStaticPageIsNotSPA(t *testing.T) {
	o := newTestOrchestrator(t)
	report := o.DetectSPA(staticPage)
	if report.IsSPA {
		t.Errorf("expected static blog page to not be detected as SPA, got score=%d reasons=%v", report.Score, report.Reasons)
	}
}

func TestCacheStatsReflectsWrites(t *testing.T) {
	o := newTestOrchestrator(t)
	srv := newStaticServer(t)

	_ = o.Render(context.Background(), srv.URL, RenderOptions{})

	stats, err := o.CacheStats()
	if err != nil {
		t.Fatalf("CacheStats() error: %v", err)
	}
	if stats.Entries != 1 {
		t.Errorf("Entries = %d, want 1", stats.Entries)
	}
}

func TestBatchRenderCoversAllURLs(t *testing.T) {
	o := newTestOrchestrator(t)
	srv := newStaticServer(t)

	batch := o.BatchRender(context.Background(), []string{srv.URL, srv.URL + "/?x=1"}, BatchOptions{})

	if batch.JobID == "" {
		t.Error("expected a non-empty job ID")
	}
	if len(batch.Results) != 2 {
		t.Fatalf("len(Results) = %d, want 2", len(batch.Results))
	}
}

func TestTimeoutProducesCancelledOrTimeoutError(t *testing.T) {
	o := newTestOrchestrator(t)

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Nanosecond)
	defer cancel()

	result := o.Render(ctx, "https://example.com", RenderOptions{NoCache: true})
	if result.Backend != model.BackendError {
		t.Errorf("Backend = %q, want error for an already-expired context", result.Backend)
	}
}
