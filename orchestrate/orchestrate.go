// Package orchestrate implements render, the pipeline that ties the
// lite renderer, SPA detector, browser renderer, chunker, and cache
// into the four operations a host process calls.
package orchestrate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/use-agent/agentweb/apperr"
	"github.com/use-agent/agentweb/browser"
	"github.com/use-agent/agentweb/cache"
	"github.com/use-agent/agentweb/chunk"
	"github.com/use-agent/agentweb/detect"
	"github.com/use-agent/agentweb/lite"
	"github.com/use-agent/agentweb/metrics"
	"github.com/use-agent/agentweb/model"
	"github.com/use-agent/agentweb/pagedom"
)

const (
	defaultTimeout    = 15 * time.Second
	defaultChunkLimit = 8
	playwrightTTLMs   = 5 * 60 * 1000
	defaultTTLMs      = 10 * 60 * 1000
	summaryDegradeCap = 2000
)

// RenderOptions configures one render call per spec §4.G's contract.
type RenderOptions struct {
	// Force overrides detection: "lite" or "playwright". Empty means
	// let DetectSPA decide.
	Force string
	// Query re-ranks chunks and partitions the cache key.
	Query string
	// ChunkLimit caps the number of chunks kept in the result.
	ChunkLimit int
	// Timeout bounds the fetch and, when the browser path is chosen,
	// the navigation.
	Timeout time.Duration
	Verbose bool
	NoCache bool
	// CacheTtlMs overrides the backend-dependent default TTL for this
	// call's cache write.
	CacheTtlMs int64
}

func (o RenderOptions) withDefaults() RenderOptions {
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.ChunkLimit <= 0 {
		o.ChunkLimit = defaultChunkLimit
	}
	return o
}

// Orchestrator wires together one cache, one optional browser renderer,
// and the stateless lite/detect/chunk packages. A nil browser renderer
// is valid: renders that would need it fall back to lite with an
// informative error instead of panicking.
type Orchestrator struct {
	cache   *cache.Cache
	browser *browser.Renderer
	metrics *metrics.Metrics
}

// New builds an Orchestrator. browserRenderer may be nil if the host
// process has no headless browser available; render calls that would
// otherwise choose the browser path fall back to lite in that case.
func New(c *cache.Cache, browserRenderer *browser.Renderer) *Orchestrator {
	return &Orchestrator{cache: c, browser: browserRenderer}
}

// WithMetrics attaches a Metrics collector that Render updates after
// every call. Returns the receiver for chaining at construction time.
func (o *Orchestrator) WithMetrics(m *metrics.Metrics) *Orchestrator {
	o.metrics = m
	return o
}

// Render implements render(url, opts) -> RenderResult.
func (o *Orchestrator) Render(ctx context.Context, url string, opts RenderOptions) model.RenderResult {
	start := time.Now()
	opts = opts.withDefaults()

	if !opts.NoCache && opts.Force == "" {
		if cached, err := o.cache.Get(url, opts.Query); err != nil {
			slog.Warn("orchestrate: cache read failed, bypassing cache", "url", url, "error", err)
		} else if cached != nil {
			cached.MS = time.Since(start).Milliseconds()
			o.observeMetrics(cached.Backend, start, true)
			return *cached
		}
	}

	finalURL, body, status, contentType, err := lite.Fetch(ctx, url, opts.Timeout)
	if err != nil {
		return errorResult(url, start, err)
	}
	rawHTML := string(body)

	detection := detect.DetectSPA(rawHTML)

	backend := model.BackendLite
	switch opts.Force {
	case "lite":
		backend = model.BackendLite
	case "playwright":
		backend = model.BackendPlaywright
	default:
		if detection.IsSPA {
			backend = model.BackendPlaywright
		}
	}

	var page *model.PageRecord
	switch backend {
	case model.BackendPlaywright:
		page, err = o.renderBrowser(ctx, finalURL, opts)
		if err != nil {
			slog.Warn("orchestrate: browser render failed, falling back to lite", "url", url, "error", err)
			page, err = o.renderLiteFromFetched(rawHTML, finalURL, status, contentType)
			if err != nil {
				return errorResult(url, start, err)
			}
			page.BackendTag = model.BackendLiteFallback
			backend = model.BackendLiteFallback
		}
	default:
		page, err = o.renderLiteFromFetched(rawHTML, finalURL, status, contentType)
		if err != nil {
			return errorResult(url, start, err)
		}
	}

	chunks, summary := o.chunkAndSummarize(page, opts)

	result := model.RenderResult{
		URL:       finalURL,
		Backend:   backend,
		Detection: detection,
		Data:      page,
		Chunks:    chunks,
		Summary:   summary,
		Cached:    false,
	}

	if !opts.NoCache {
		ttl := opts.CacheTtlMs
		if ttl <= 0 {
			ttl = defaultTTLForBackend(backend)
		}
		if err := o.cache.Set(url, opts.Query, result, ttl); err != nil {
			slog.Warn("orchestrate: cache write failed", "url", url, "error", err)
		}
	}

	result.MS = time.Since(start).Milliseconds()
	o.observeMetrics(backend, start, false)
	return result
}

func (o *Orchestrator) observeMetrics(backend model.Backend, start time.Time, cached bool) {
	if o.metrics == nil {
		return
	}
	o.metrics.ObserveRender(string(backend), time.Since(start).Seconds(), cached)
	if o.browser != nil {
		o.metrics.BrowserPages.Set(float64(o.browser.Stats().ActivePages))
	}
}

func (o *Orchestrator) renderBrowser(ctx context.Context, url string, opts RenderOptions) (*model.PageRecord, error) {
	if o.browser == nil {
		return nil, apperr.New(apperr.BrowserUnavailable, "no browser renderer configured", nil)
	}
	return o.browser.Render(ctx, url, browser.Options{
		Timeout:    opts.Timeout,
		BlockMedia: true,
	})
}

func (o *Orchestrator) renderLiteFromFetched(rawHTML, finalURL string, status int, contentType string) (*model.PageRecord, error) {
	page, err := pagedom.Extract(rawHTML, finalURL, pagedom.ExtractOptions{
		DedupLinks:       true,
		TextCap:          5000,
		MetaOriginalCase: false,
	})
	if err != nil {
		return nil, err
	}
	page.HTTPStatus = status
	page.ContentType = contentType
	page.BackendTag = model.BackendLite
	return page, nil
}

func (o *Orchestrator) chunkAndSummarize(page *model.PageRecord, opts RenderOptions) ([]model.Chunk, string) {
	chunks := safeChunkPage(page, chunk.DefaultOptions())

	if opts.Query != "" {
		chunks = chunk.FindRelevant(chunks, opts.Query, opts.ChunkLimit)
	} else if len(chunks) > opts.ChunkLimit {
		chunks = chunks[:opts.ChunkLimit]
	}

	summary := renderSummary(chunks)
	if summary == "" {
		summary = degradedSummary(page.TextContent)
	}
	return chunks, summary
}

// safeChunkPage recovers from a chunker panic, per spec §4.G(6)'s
// "on chunker failure, degrade summary" clause. The chunker has no
// known panicking path today; this exists because the contract is
// explicit about the failure mode.
func safeChunkPage(page *model.PageRecord, opts chunk.Options) (chunks []model.Chunk) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("orchestrate: chunker panicked, degrading to empty chunk list", "recover", r)
			chunks = nil
		}
	}()
	return chunk.ChunkPage(page, opts)
}

// renderSummary implements the canonical textual form from spec §6.
func renderSummary(chunks []model.Chunk) string {
	if len(chunks) == 0 {
		return ""
	}
	blocks := make([]string, 0, len(chunks))
	for _, c := range chunks {
		var header strings.Builder
		fmt.Fprintf(&header, "[chunk:%d] type=%s", c.ID, c.Type)
		if c.Section != nil {
			fmt.Fprintf(&header, " section=%q", *c.Section)
		}
		fmt.Fprintf(&header, " score=%d", c.Score)
		blocks = append(blocks, header.String()+"\n"+c.Text)
	}
	return strings.Join(blocks, "\n\n---\n\n")
}

func degradedSummary(textContent string) string {
	if len(textContent) <= summaryDegradeCap {
		return textContent
	}
	return textContent[:summaryDegradeCap]
}

func defaultTTLForBackend(backend model.Backend) int64 {
	if backend == model.BackendPlaywright {
		return playwrightTTLMs
	}
	return defaultTTLMs
}

func errorResult(url string, start time.Time, err error) model.RenderResult {
	return model.RenderResult{
		URL:     url,
		Backend: model.BackendError,
		Error:   err.Error(),
		MS:      time.Since(start).Milliseconds(),
	}
}

// CacheStats implements cacheStats() -> CacheStats.
func (o *Orchestrator) CacheStats() (*model.CacheStats, error) {
	return o.cache.Stats()
}

// InvalidateCache implements invalidateCache(url) -> count.
func (o *Orchestrator) InvalidateCache(url string) (int, error) {
	return o.cache.Invalidate(url)
}

// DetectSPA implements detectSPA(html) -> DetectionReport.
func (o *Orchestrator) DetectSPA(html string) *model.DetectionReport {
	return detect.DetectSPA(html)
}
