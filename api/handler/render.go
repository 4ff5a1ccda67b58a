package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/agentweb/orchestrate"
)

// renderRequest is the JSON body for POST /render.
type renderRequest struct {
	URL        string `json:"url" binding:"required"`
	Force      string `json:"force"`
	Query      string `json:"query"`
	ChunkLimit int    `json:"chunkLimit"`
	TimeoutMs  int64  `json:"timeoutMs"`
	Verbose    bool   `json:"verbose"`
	NoCache    bool   `json:"noCache"`
	CacheTTLMs int64  `json:"cacheTtlMs"`
}

func (r renderRequest) toOptions() orchestrate.RenderOptions {
	return orchestrate.RenderOptions{
		Force:      r.Force,
		Query:      r.Query,
		ChunkLimit: r.ChunkLimit,
		Timeout:    time.Duration(r.TimeoutMs) * time.Millisecond,
		Verbose:    r.Verbose,
		NoCache:    r.NoCache,
		CacheTtlMs: r.CacheTTLMs,
	}
}

// Render returns a handler for POST /render.
func Render(o *orchestrate.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req renderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}

		result := o.Render(c.Request.Context(), req.URL, req.toOptions())
		status := http.StatusOK
		if result.Backend == "error" {
			status = http.StatusBadGateway
		}
		c.JSON(status, result)
	}
}

// batchRenderRequest is the JSON body for POST /batch/render.
type batchRenderRequest struct {
	URLs          []string `json:"urls" binding:"required"`
	TimeoutMs     int64    `json:"timeoutMs"`
	Verbose       bool     `json:"verbose"`
	NoCache       bool     `json:"noCache"`
	CacheTTLMs    int64    `json:"cacheTtlMs"`
	WebhookURL    string   `json:"webhookUrl"`
	WebhookSecret string   `json:"webhookSecret"`
}

// BatchRender returns a handler for POST /batch/render.
func BatchRender(o *orchestrate.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req batchRenderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}

		batch := o.BatchRender(c.Request.Context(), req.URLs, orchestrate.BatchOptions{
			Render: orchestrate.BatchRenderOptions{
				Timeout:    time.Duration(req.TimeoutMs) * time.Millisecond,
				Verbose:    req.Verbose,
				NoCache:    req.NoCache,
				CacheTtlMs: req.CacheTTLMs,
			},
			WebhookURL:    req.WebhookURL,
			WebhookSecret: req.WebhookSecret,
		})
		c.JSON(http.StatusOK, batch)
	}
}

// detectRequest is the JSON body for POST /detect.
type detectRequest struct {
	HTML string `json:"html" binding:"required"`
}

// Detect returns a handler for POST /detect.
func Detect(o *orchestrate.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req detectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, o.DetectSPA(req.HTML))
	}
}
