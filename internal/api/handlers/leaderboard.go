package handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/swingpong/backend/internal/leaderboard"
)

// SubmitScore records a player's best score for a game mode.
func SubmitScore(store *leaderboard.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if store == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Leaderboard unavailable"})
			return
		}
		var e leaderboard.Entry
		if err := c.ShouldBindJSON(&e); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		if err := e.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := store.Submit(c.Request.Context(), e); err != nil {
			log.Printf("[LEADERBOARD] store %s failed: %v", e.UserID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store score"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"status": "ok"})
	}
}

// GetLeaderboard lists the top scores for a mode.
func GetLeaderboard(store *leaderboard.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if store == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Leaderboard unavailable"})
			return
		}
		mode := c.DefaultQuery("mode", "classic")
		limit, _ := strconv.Atoi(c.Query("limit"))

		entries, err := store.Top(c.Request.Context(), mode, limit)
		if err != nil {
			log.Printf("[LEADERBOARD] top %s failed: %v", mode, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load leaderboard"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"mode": mode, "entries": entries})
	}
}

// GetSessionMatches lists the recorded results of a session.
func GetSessionMatches(store *leaderboard.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if store == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Leaderboard unavailable"})
			return
		}
		matches, err := store.Matches(c.Request.Context(), c.Param("token"))
		if err != nil {
			log.Printf("[DB] matches for %s failed: %v", c.Param("token"), err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load matches"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"matches": matches})
	}
}
