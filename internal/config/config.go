package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	// Environment
	Environment string

	// Database
	DatabaseURL    string
	MigrateOnStart bool

	// Redis
	RedisURL string

	// Server
	Port        string
	FrontendURL string

	// Controllers
	ControllerTokenSecret  string
	ControllerTokenTTLMins int

	// Leaderboard
	LeaderboardURL         string
	LeaderboardTimeoutSecs int

	// Sessions
	SessionIdleSeconds     int
	IdleWorkerPollInterval int
	MaxSessions            int

	// Game tunables injected into every new session
	Game Tunables
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	return &Config{
		// Environment
		Environment: getEnv("APP_ENV", "development"),

		// Database
		DatabaseURL:    getEnv("DATABASE_URL", "postgres://localhost:5432/swingpong?sslmode=disable"),
		MigrateOnStart: getEnvBool("MIGRATE_ON_START", false),

		// Redis
		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),

		// Server
		Port:        getEnv("APP_PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),

		// Controllers
		ControllerTokenSecret:  getEnv("CONTROLLER_TOKEN_SECRET", "change-me-in-production"),
		ControllerTokenTTLMins: getEnvInt("CONTROLLER_TOKEN_TTL_MINUTES", 120),

		// Leaderboard
		LeaderboardURL:         getEnv("LEADERBOARD_URL", "http://localhost:8080/api/v1/leaderboard"),
		LeaderboardTimeoutSecs: getEnvInt("LEADERBOARD_TIMEOUT_SECONDS", 10),

		// Sessions
		SessionIdleSeconds:     getEnvInt("SESSION_IDLE_SECONDS", 600),
		IdleWorkerPollInterval: getEnvInt("IDLE_WORKER_POLL_SECONDS", 15),
		MaxSessions:            getEnvInt("MAX_SESSIONS", 64),

		Game: LoadTunables(),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(value) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return defaultValue
}
