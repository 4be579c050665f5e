package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/swingpong/backend/internal/config"
	"github.com/swingpong/backend/internal/game"
)

const commandTimeout = 3 * time.Second

type createSessionRequest struct {
	Mode     string          `json:"mode"`
	Players  []game.Player   `json:"players"`
	Tunables json.RawMessage `json:"tunables,omitempty"`
	Seed     int64           `json:"seed,omitempty"`
}

// CreateSession starts a new session runner. Tunables in the request
// override the server defaults field by field.
func CreateSession(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createSessionRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
				return
			}
		}
		if len(req.Players) > 2 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "At most two players"})
			return
		}

		tun := cfg.Game
		if len(req.Tunables) > 0 {
			if err := json.Unmarshal(req.Tunables, &tun); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid tunables"})
				return
			}
		}

		opts := game.SessionOptions{Mode: req.Mode, Tunables: &tun, Seed: req.Seed}
		copy(opts.Players[:], req.Players)

		s, err := game.Manager.CreateSession(opts)
		if errors.Is(err, game.ErrTooManySessions) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"session_id":    s.ID,
			"session_token": s.Token,
			"mode":          s.Mode,
			"state":         s.Latest(),
			"view_ws":       "/api/v1/sessions/" + s.Token + "/view",
		})
	}
}

// GetSession returns the live snapshot, or the cached one once the session
// has ended.
func GetSession(c *gin.Context) {
	token := c.Param("token")
	ctx, cancel := context.WithTimeout(c.Request.Context(), commandTimeout)
	defer cancel()

	if s, err := game.Manager.GetSession(token); err == nil {
		c.JSON(http.StatusOK, gin.H{
			"session_id":    s.ID,
			"session_token": s.Token,
			"mode":          s.Mode,
			"players":       s.Players,
			"state":         s.Snapshot(ctx),
		})
		return
	}

	st, err := game.Manager.LoadSnapshot(ctx, token)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_token": token, "state": st, "live": false})
}

// SessionCommand applies a lifecycle command to a session.
func SessionCommand(command string) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := game.Manager.GetSession(c.Param("token"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), commandTimeout)
		defer cancel()

		switch command {
		case "start":
			err = s.Start(ctx)
		case "pause":
			err = s.Pause(ctx)
		case "resume":
			err = s.Resume(ctx)
		case "restart":
			err = s.Restart(ctx)
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown command"})
			return
		}
		if err != nil {
			c.JSON(commandStatus(err), gin.H{"error": err.Error()})
			return
		}
		log.Printf("[SESSION] %s applied to %s", command, s.Token)
		c.JSON(http.StatusOK, gin.H{"state": s.Snapshot(ctx)})
	}
}

// EndSession quits a session and tears its world down.
func EndSession(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), commandTimeout)
	defer cancel()

	if err := game.Manager.EndSession(ctx, c.Param("token")); err != nil {
		c.JSON(commandStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func commandStatus(err error) int {
	switch {
	case errors.Is(err, game.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, game.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, game.ErrSessionOver):
		return http.StatusGone
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
