package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	goredis "github.com/redis/go-redis/v9"
	"github.com/swingpong/backend/internal/api"
	"github.com/swingpong/backend/internal/config"
	"github.com/swingpong/backend/internal/database"
	"github.com/swingpong/backend/internal/game"
	"github.com/swingpong/backend/internal/leaderboard"
	"github.com/swingpong/backend/internal/migrations"
	"github.com/swingpong/backend/internal/redis"
	"github.com/swingpong/backend/internal/ws"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Initialize configuration (also loads .env when present)
	cfg := config.Load()
	if err := cfg.Game.Validate(); err != nil {
		log.Fatalf("Invalid game tunables: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	var db *sqlx.DB
	if conn, err := database.Connect(ctx, cfg.DatabaseURL); err != nil {
		log.Printf("[DB] Postgres unavailable, leaderboard disabled: %v", err)
	} else {
		db = conn
		defer db.Close()

		// Run migrations on start if requested
		if cfg.MigrateOnStart {
			log.Println("[MIGRATE] Running DB migrations on startup...")
			if err := migrations.RunMigrations(cfg.DatabaseURL, "migrations"); err != nil {
				log.Fatalf("Failed to run migrations: %v", err)
			}
		}
	}

	// Initialize Redis
	var rdb *goredis.Client
	if client, err := redis.Connect(ctx, cfg.RedisURL); err != nil {
		log.Printf("[REDIS] Redis unavailable, snapshots and idle tracking disabled: %v", err)
	} else {
		rdb = client
		defer rdb.Close()
	}

	store := leaderboard.NewStore(db)
	var submitter game.ScoreSubmitter
	if client := leaderboard.NewClient(cfg.LeaderboardURL, time.Duration(cfg.LeaderboardTimeoutSecs)*time.Second); client != nil {
		submitter = client
		log.Printf("[LEADERBOARD] posting results to %s", cfg.LeaderboardURL)
	} else if store != nil {
		submitter = store
	}
	var recorder game.MatchRecorder
	if store != nil {
		recorder = store
	}

	// Initialize session manager
	game.InitializeManager(ctx, rdb, submitter, recorder, cfg)

	// Wire Redis into the WS layer
	ws.SetRedisClient(rdb, cfg)

	// Start idle worker for sessions whose controllers went quiet
	game.StartIdleWorker(ctx, rdb, cfg)

	// Set up Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	api.SetupRoutes(router, store, cfg)

	port := cfg.Port
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("Starting SwingPong server on port %s", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return ws.StartSessionEventSubscriber(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		game.Manager.Shutdown(shutdownCtx)
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	log.Println("Server stopped")
}
