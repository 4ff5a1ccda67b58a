// Command agentweb-mcp exposes the render pipeline as MCP tools for
// LLM-agent callers, proxying over an already-running agentweb-server.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type renderResponse struct {
	URL     string `json:"url"`
	Backend string `json:"backend"`
	Summary string `json:"summary"`
	MS      int64  `json:"ms"`
	Cached  bool   `json:"cached"`
	Error   string `json:"error,omitempty"`
}

type detectionResponse struct {
	IsSPA      bool     `json:"isSPA"`
	Score      int      `json:"score"`
	Confidence string   `json:"confidence"`
	Reasons    []string `json:"reasons"`
}

type cacheStatsResponse struct {
	Entries int            `json:"entries"`
	Active  int            `json:"active"`
	Expired int            `json:"expired"`
	Backends map[string]int `json:"backends"`
}

type invalidateResponse struct {
	Success bool `json:"success"`
	Count   int  `json:"count"`
}

func main() {
	apiURL := os.Getenv("AGENTWEB_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("AGENTWEB_API_KEY")

	s := server.NewMCPServer(
		"agentweb",
		"0.2.0",
		server.WithToolCapabilities(false),
	)

	renderTool := mcp.NewTool("render_page",
		mcp.WithDescription("Render a web page into normalized data and ranked text chunks. Automatically chooses between a fast scriptless fetch and a headless-browser render based on SPA detection."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The URL of the page to render"),
		),
		mcp.WithString("query",
			mcp.Description("Optional free-text query used to rank the returned chunks by relevance"),
		),
		mcp.WithString("force",
			mcp.Description("Force a specific backend instead of auto-detecting: 'lite' or 'playwright'"),
			mcp.Enum("lite", "playwright"),
		),
	)
	s.AddTool(renderTool, handleRenderPage(apiURL, apiKey))

	detectTool := mcp.NewTool("detect_spa",
		mcp.WithDescription("Score raw HTML to decide whether client-side script execution is likely needed to see the page's real content."),
		mcp.WithString("html",
			mcp.Required(),
			mcp.Description("The raw HTML to score"),
		),
	)
	s.AddTool(detectTool, handleDetectSPA(apiURL, apiKey))

	cacheStatsTool := mcp.NewTool("cache_stats",
		mcp.WithDescription("Report the render cache's entry counts (total, active, expired) and its entries per backend. Per-entry hit counts are not included."),
	)
	s.AddTool(cacheStatsTool, handleCacheStats(apiURL, apiKey))

	invalidateTool := mcp.NewTool("invalidate_cache",
		mcp.WithDescription("Remove all cached renders (across all queries) for a given URL."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The URL whose cache entries should be removed"),
		),
	)
	s.AddTool(invalidateTool, handleInvalidateCache(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func apiPost(ctx context.Context, client *http.Client, apiURL, apiKey, path string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

func apiGet(ctx context.Context, client *http.Client, apiURL, apiKey, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

func handleRenderPage(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 60 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		payload := map[string]interface{}{
			"url":   url,
			"query": request.GetString("query", ""),
			"force": request.GetString("force", ""),
		}

		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/render", payload)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("render request failed: %v", err)), nil
		}

		var rr renderResponse
		if err := json.Unmarshal(respBody, &rr); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse render response: %v", err)), nil
		}
		if rr.Backend == "error" {
			return mcp.NewToolResultError(fmt.Sprintf("render failed: %s", rr.Error)), nil
		}

		result := fmt.Sprintf("URL: %s\nBackend: %s\nCached: %v\nDuration: %dms\n\n%s",
			rr.URL, rr.Backend, rr.Cached, rr.MS, rr.Summary)
		return mcp.NewToolResultText(result), nil
	}
}

func handleDetectSPA(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 10 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		html, err := request.RequireString("html")
		if err != nil {
			return mcp.NewToolResultError("html is required"), nil
		}

		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/detect", map[string]string{"html": html})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("detect request failed: %v", err)), nil
		}

		var dr detectionResponse
		if err := json.Unmarshal(respBody, &dr); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse detect response: %v", err)), nil
		}

		result := fmt.Sprintf("isSPA: %v\nScore: %d\nConfidence: %s\nReasons: %v",
			dr.IsSPA, dr.Score, dr.Confidence, dr.Reasons)
		return mcp.NewToolResultText(result), nil
	}
}

func handleCacheStats(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 10 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		respBody, err := apiGet(ctx, client, apiURL, apiKey, "/cache/stats")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("cache stats request failed: %v", err)), nil
		}

		var cs cacheStatsResponse
		if err := json.Unmarshal(respBody, &cs); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse cache stats response: %v", err)), nil
		}

		result := fmt.Sprintf("Entries: %d (active: %d, expired: %d)\nBackends: %v",
			cs.Entries, cs.Active, cs.Expired, cs.Backends)
		return mcp.NewToolResultText(result), nil
	}
}

func handleInvalidateCache(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 10 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/cache/invalidate", map[string]string{"url": url})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalidate request failed: %v", err)), nil
		}

		var ir invalidateResponse
		if err := json.Unmarshal(respBody, &ir); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse invalidate response: %v", err)), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf("Invalidated %d cache entries for %s", ir.Count, url)), nil
	}
}
