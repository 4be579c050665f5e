package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/swingpong/backend/internal/config"
)

// GetConfig returns the default game tunables so clients can size the court
func GetConfig(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"tunables":            cfg.Game,
			"session_idle_secs":   cfg.SessionIdleSeconds,
			"controller_ttl_mins": cfg.ControllerTokenTTLMins,
		})
	}
}
