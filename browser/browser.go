// Package browser implements the headless-browser renderer: it
// drives a real Chrome instance via rod/stealth and produces the
// same PageRecord shape as the lite path, per spec §4.D.
package browser

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/use-agent/agentweb/apperr"
	"github.com/use-agent/agentweb/model"
	"github.com/use-agent/agentweb/pagedom"
)

const (
	userAgent         = "AgentWeb/0.2 (ai-agent-browser)"
	defaultTimeout    = 30 * time.Second
	browserTextCap    = 50000
	visibleTextWait   = 5 * time.Second
	visibleTextTarget = 200
)

// Config launches and bounds the headless browser process.
type Config struct {
	Headless     bool
	NoSandbox    bool
	BrowserBin   string
	DefaultProxy string
	MinPages     int
	MaxPages     int
}

// Renderer owns one launched browser and its page pool, shared
// across concurrent render calls per spec §5's multi-call policy.
type Renderer struct {
	browser *rod.Browser
	pool    *Pool
}

// Launch starts a headless Chrome process and its page pool.
func Launch(cfg Config) (*Renderer, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)
	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}
	if cfg.DefaultProxy != "" {
		l = l.Proxy(cfg.DefaultProxy)
	}
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, apperr.New(apperr.BrowserUnavailable, "launching browser", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, apperr.New(apperr.BrowserUnavailable, "connecting to browser", err)
	}

	maxPages := cfg.MaxPages
	if maxPages < 1 {
		maxPages = 5
	}
	minPages := cfg.MinPages
	if minPages < 1 {
		minPages = 1
	}

	pool := NewPool(browser, PoolConfig{MinPages: minPages, HardMax: maxPages})
	return &Renderer{browser: browser, pool: pool}, nil
}

// Options configures one browser render call.
type Options struct {
	Timeout    time.Duration
	WaitUntil  string
	BlockMedia bool
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.WaitUntil == "" {
		o.WaitUntil = "networkidle"
	}
	return o
}

// Render implements renderBrowser(url, opts) -> PageRecord.
func (r *Renderer) Render(ctx context.Context, rawURL string, opts Options) (*model.PageRecord, error) {
	opts = opts.withDefaults()

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	page, err := r.pool.Get()
	if err != nil {
		return nil, apperr.New(apperr.BrowserUnavailable, "acquiring page from pool", err)
	}

	succeeded := false
	defer func() {
		if navErr := page.Navigate("about:blank"); navErr != nil {
			slog.Warn("browser: cleanup navigate to about:blank failed", "error", navErr)
		}
		r.pool.Put(page, succeeded)
	}()

	if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
		slog.Warn("browser: stealth injection failed, proceeding without it", "error", err)
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{Width: 1280, Height: 900}); err != nil {
		slog.Warn("browser: setting viewport failed", "error", err)
	}
	_ = proto.NetworkSetUserAgentOverride{UserAgent: userAgent}.Call(page)

	router := setupMediaBlock(page, opts.BlockMedia)
	if router != nil {
		defer func() { _ = router.Stop() }()
	}

	p := page.Context(ctx)

	// WaitRequestIdle sets up a CDP listener and must be armed before
	// Navigate; it also uses the Fetch domain, which conflicts with
	// the media-block hijack router on Chromium 145+, so fall back to
	// WaitDOMStable whenever BlockMedia is set.
	var waitIdle func()
	if opts.WaitUntil == "networkidle" && !opts.BlockMedia {
		waitIdle = p.WaitRequestIdle(300*time.Millisecond, nil, nil, nil)
	}

	if err := p.Navigate(rawURL); err != nil {
		return nil, categorizeNavError(err)
	}

	if waitIdle != nil {
		waitIdle()
	} else if err := p.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		slog.Debug("browser: WaitDOMStable did not converge, proceeding with current DOM", "error", err)
	}

	waitForVisibleText(p)

	rawHTML, err := p.HTML()
	if err != nil {
		return nil, apperr.New(apperr.BrowserNavigation, "extracting page HTML", err)
	}
	finalURL := evalStringOrEmpty(p, `() => window.location.href`)
	if finalURL == "" {
		finalURL = rawURL
	}

	rec, err := pagedom.Extract(rawHTML, finalURL, pagedom.ExtractOptions{
		DedupLinks:       false,
		LinkCap:          100,
		TextCap:          browserTextCap,
		MetaOriginalCase: true,
	})
	if err != nil {
		return nil, err
	}
	rec.BackendTag = model.BackendPlaywright
	rec.HTTPStatus = 200
	succeeded = true
	return rec, nil
}

// Close shuts down the page pool and kills the browser process.
func (r *Renderer) Close() {
	r.pool.Close()
	r.browser.MustClose()
}

// Stats reports the page pool's current utilization.
func (r *Renderer) Stats() PoolStats {
	return PoolStats{
		MaxPages:    r.pool.cfg.HardMax,
		ActivePages: r.pool.ActiveCount(),
	}
}

// PoolStats snapshots the browser page pool for health reporting.
type PoolStats struct {
	MaxPages    int `json:"maxPages"`
	ActivePages int `json:"activePages"`
}

func waitForVisibleText(p *rod.Page) {
	deadline := time.Now().Add(visibleTextWait)
	for time.Now().Before(deadline) {
		res, err := p.Eval(`() => document.body ? document.body.innerText.length : 0`)
		if err == nil && res.Value.Int() > visibleTextTarget {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	// Timeout here is benign per spec §4.D.
}

func evalStringOrEmpty(p *rod.Page, js string) string {
	res, err := p.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

func categorizeNavError(err error) *apperr.Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.New(apperr.Timeout, "navigation deadline exceeded", err)
	}
	if errors.Is(err, context.Canceled) {
		return apperr.New(apperr.Cancelled, "navigation canceled", err)
	}
	return apperr.New(apperr.BrowserNavigation, "navigation failed", err)
}
