package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/agentweb/browser"
)

// healthResponse is the JSON body for GET /health.
type healthResponse struct {
	Status    string              `json:"status"`
	Uptime    string              `json:"uptime"`
	PoolStats *browser.PoolStats  `json:"poolStats,omitempty"`
	Version   string              `json:"version"`
}

// Health returns a handler for GET /health. renderer may be nil when
// the host process runs lite-only; poolStats is omitted in that case.
//
// Reports pool utilisation and degrades status when > 80% of pages are
// active.
func Health(renderer *browser.Renderer, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "healthy"
		var stats *browser.PoolStats

		if renderer != nil {
			s := renderer.Stats()
			stats = &s
			if s.MaxPages > 0 && s.ActivePages > int(float64(s.MaxPages)*0.8) {
				status = "degraded"
			}
		}

		c.JSON(http.StatusOK, healthResponse{
			Status:    status,
			Uptime:    time.Since(startTime).Round(time.Second).String(),
			PoolStats: stats,
			Version:   "0.2.0",
		})
	}
}
