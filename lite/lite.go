// Package lite implements the scriptless fetch-and-parse renderer:
// a single HTTP GET with a Chrome TLS fingerprint, followed by
// pagedom extraction.
package lite

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	tls2 "github.com/refraction-networking/utls"

	"github.com/use-agent/agentweb/apperr"
	"github.com/use-agent/agentweb/model"
	"github.com/use-agent/agentweb/pagedom"
)

const (
	userAgent         = "AgentWeb/0.2 (AI Agent Renderer)"
	defaultTimeout    = 15 * time.Second
	maxBodyBytes      = 10 * 1024 * 1024
	liteTextCap       = 5000
)

// Options configures one lite render call.
type Options struct {
	// Timeout bounds the fetch. Zero means the 15s default.
	Timeout time.Duration
	// PreFetchedHTML, if non-empty, skips the network request
	// entirely so the orchestrator can share one fetch between
	// detection and rendering.
	PreFetchedHTML string
}

// Fetch performs the raw HTTP GET described in spec §4.B/§6, honoring
// ctx for cancellation/timeout, and returns the final URL (after
// redirects), the response body, the status code, and content type.
// It is also used standalone by the orchestrator for the single
// shared fetch that feeds both detection and lite rendering.
func Fetch(ctx context.Context, rawURL string, timeout time.Duration) (finalURL string, body []byte, status int, contentType string, err error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	transport := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialTLSChrome(ctx, network, addr)
		},
	}
	client := &http.Client{Transport: transport}
	defer client.CloseIdleConnections()

	req, buildErr := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if buildErr != nil {
		return "", nil, 0, "", apperr.New(apperr.FetchFailure, "building request", buildErr)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, doErr := client.Do(req)
	if doErr != nil {
		if ctx.Err() != nil {
			return "", nil, 0, "", apperr.New(apperr.Timeout, "fetch deadline exceeded", doErr)
		}
		return "", nil, 0, "", apperr.New(apperr.FetchFailure, "request failed", doErr)
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if readErr != nil {
		return "", nil, 0, "", apperr.New(apperr.FetchFailure, "reading response body", readErr)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", nil, resp.StatusCode, "", apperr.New(apperr.FetchStatus, "non-2xx response", nil)
	}

	final := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL.String()
	}
	return final, raw, resp.StatusCode, resp.Header.Get("Content-Type"), nil
}

// Render implements renderLite(url, opts) -> PageRecord.
func Render(ctx context.Context, rawURL string, opts Options) (*model.PageRecord, error) {
	var (
		finalURL    = rawURL
		body        []byte
		status      = 200
		contentType string
		err         error
	)

	if opts.PreFetchedHTML != "" {
		body = []byte(opts.PreFetchedHTML)
	} else {
		finalURL, body, status, contentType, err = Fetch(ctx, rawURL, opts.Timeout)
		if err != nil {
			return nil, err
		}
	}

	rec, err := pagedom.Extract(string(body), finalURL, pagedom.ExtractOptions{
		DedupLinks:       true,
		TextCap:          liteTextCap,
		MetaOriginalCase: false,
	})
	if err != nil {
		return nil, err
	}
	rec.HTTPStatus = status
	rec.ContentType = contentType
	rec.BackendTag = model.BackendLite
	return rec, nil
}

func dialTLSChrome(ctx context.Context, network, addr string) (net.Conn, error) {
	dialer := &net.Dialer{}
	rawConn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	host, _, _ := net.SplitHostPort(addr)
	tlsConn := tls2.UClient(rawConn, &tls2.Config{
		ServerName: host,
	}, tls2.HelloChrome_Auto)

	if err := tlsConn.HandshakeContext(ctx); err != nil {
		rawConn.Close()
		return nil, err
	}
	return tlsConn, nil
}
