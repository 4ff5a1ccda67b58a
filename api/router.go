// Package api wires the HTTP transport: route table, middleware chain,
// and the gin engine construction for cmd/agentweb-server.
package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/use-agent/agentweb/api/handler"
	"github.com/use-agent/agentweb/api/middleware"
	"github.com/use-agent/agentweb/browser"
	"github.com/use-agent/agentweb/config"
	"github.com/use-agent/agentweb/orchestrate"
)

// NewRouter creates a configured Gin engine with all routes and
// middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health and metrics endpoints are intentionally outside auth so
// monitoring probes always work.
func NewRouter(o *orchestrate.Orchestrator, renderer *browser.Renderer, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	r.GET("/health", handler.Health(renderer, startTime))
	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	protected := r.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	protected.POST("/render", handler.Render(o))
	protected.POST("/batch/render", handler.BatchRender(o))
	protected.POST("/detect", handler.Detect(o))
	protected.GET("/cache/stats", handler.CacheStats(o))
	protected.POST("/cache/invalidate", handler.InvalidateCache(o))

	return r
}
