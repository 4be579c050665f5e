package api

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/swingpong/backend/internal/api/handlers"
	"github.com/swingpong/backend/internal/config"
	"github.com/swingpong/backend/internal/leaderboard"
	"github.com/swingpong/backend/internal/middleware"
	"github.com/swingpong/backend/internal/ws"
)

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.Engine, store *leaderboard.Store, cfg *config.Config) {
	router.Use(middleware.CORSMiddleware(cfg))

	if cfg.Environment != "production" {
		router.Use(func(c *gin.Context) {
			c.Header("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
			c.Header("Pragma", "no-cache")
			c.Header("Expires", "0")
			c.Next()
		})
		log.Println("[DEV MODE] no-cache headers enabled for all routes")
	}

	router.GET("/health", handlers.HealthCheck)

	// API v1 group
	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", handlers.HealthCheck)
		v1.GET("/config", handlers.GetConfig(cfg))

		sessions := v1.Group("/sessions")
		{
			sessions.POST("", handlers.CreateSession(cfg))
			sessions.GET("/:token", handlers.GetSession)
			sessions.DELETE("/:token", handlers.EndSession)
			sessions.POST("/:token/start", handlers.SessionCommand("start"))
			sessions.POST("/:token/pause", handlers.SessionCommand("pause"))
			sessions.POST("/:token/resume", handlers.SessionCommand("resume"))
			sessions.POST("/:token/restart", handlers.SessionCommand("restart"))
			sessions.POST("/:token/quit", handlers.EndSession)
			sessions.POST("/:token/controllers", handlers.IssueControllerToken(cfg))
			sessions.GET("/:token/matches", handlers.GetSessionMatches(store))
			sessions.GET("/:token/view", middleware.WebSocketCORSCheck(cfg), ws.HandleView)
			// Controllers authenticate with a signed token and may not be browsers.
			sessions.GET("/:token/controller", ws.HandleController)
		}

		lb := v1.Group("/leaderboard")
		{
			lb.POST("", handlers.SubmitScore(store))
			lb.GET("", handlers.GetLeaderboard(store))
		}
	}
}
