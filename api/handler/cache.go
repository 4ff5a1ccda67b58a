package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/agentweb/orchestrate"
)

// CacheStats returns a handler for GET /cache/stats.
func CacheStats(o *orchestrate.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := o.CacheStats()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

type invalidateRequest struct {
	URL string `json:"url" binding:"required"`
}

// InvalidateCache returns a handler for POST /cache/invalidate.
func InvalidateCache(o *orchestrate.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req invalidateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}

		count, err := o.InvalidateCache(req.URL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "count": count})
	}
}
