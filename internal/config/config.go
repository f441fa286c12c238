package config

import (
	"os"
	"strconv"

	"syncboard/internal/logger"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort     string
	DatabaseURL string
	JWTSecret   string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	LogLevel string
	LogJSON  bool

	// presence windows
	GraceWindowSec       int
	ForceLeaveTimeoutSec int

	// mutation retry ceiling
	TxMaxAttempts int

	// rate limiting
	APIRateLimit      int
	APIRateWindowSec  int
	AuthRateLimit     int
	AuthRateWindowSec int
}

// Load reads configuration from the environment (.env honored in dev).
// Missing required values are fatal; everything else has a safe default.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		AppPort:              envOr("APP_PORT", "8080"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		JWTSecret:            os.Getenv("JWT_SECRET"),
		RedisAddr:            os.Getenv("REDIS_ADDR"),
		RedisPassword:        os.Getenv("REDIS_PASSWORD"),
		RedisDB:              envInt("REDIS_DB", 0),
		LogLevel:             envOr("LOG_LEVEL", "info"),
		LogJSON:              os.Getenv("LOG_JSON") == "true",
		GraceWindowSec:       envInt("PRESENCE_GRACE_SECONDS", 60),
		ForceLeaveTimeoutSec: envInt("FORCE_LEAVE_TIMEOUT_SECONDS", 600),
		TxMaxAttempts:        envInt("TX_MAX_ATTEMPTS", 3),
		APIRateLimit:         envInt("API_RATE_LIMIT", 60),
		APIRateWindowSec:     envInt("API_RATE_WINDOW_SECONDS", 60),
		AuthRateLimit:        envInt("AUTH_RATE_LIMIT", 5),
		AuthRateWindowSec:    envInt("AUTH_RATE_WINDOW_SECONDS", 60),
	}

	if cfg.DatabaseURL == "" {
		logger.Fatal("DATABASE_URL is not set")
	}
	if cfg.JWTSecret == "" {
		logger.Fatal("JWT_SECRET is not set")
	}

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
