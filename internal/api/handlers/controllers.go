package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/swingpong/backend/internal/auth"
	"github.com/swingpong/backend/internal/config"
	"github.com/swingpong/backend/internal/device"
	"github.com/swingpong/backend/internal/game"
)

type controllerTokenRequest struct {
	Side string `json:"side"`
	Kind string `json:"kind"`
}

// IssueControllerToken hands out a signed token a controller presents when
// it opens its WebSocket.
func IssueControllerToken(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := game.Manager.GetSession(c.Param("token"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
			return
		}

		var req controllerTokenRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
				return
			}
		}
		if req.Side != "" {
			side, err := game.ParseSide(req.Side)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			req.Side = side.String()
		}
		kind := device.ParseKind(req.Kind)

		ttl := time.Duration(cfg.ControllerTokenTTLMins) * time.Minute
		signed, exp, err := auth.IssueControllerToken(cfg.ControllerTokenSecret, s.Token, req.Side, string(kind), ttl)
		if err != nil {
			log.Printf("Failed to sign controller token: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"token":      signed,
			"expires_at": exp.Format(time.RFC3339),
			"kind":       kind,
			"side":       req.Side,
			"ws_url":     "/api/v1/sessions/" + s.Token + "/controller?ct=" + signed,
		})
	}
}
