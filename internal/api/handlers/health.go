package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/swingpong/backend/internal/game"
)

var startTime = time.Now()

const version = "1.0.0"

// HealthCheck returns server health status
func HealthCheck(c *gin.Context) {
	sessions := 0
	if game.Manager != nil {
		sessions = game.Manager.ActiveSessionCount()
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"service":  "swingpong-api",
		"version":  version,
		"uptime":   time.Since(startTime).String(),
		"sessions": sessions,
	})
}
