package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config captures runtime configuration for the EGYstock service.
//
// GeminiAPIKey is required: without it the screening path cannot work
// at all. FirestoreProject is optional: without it the watchlist runs
// in degraded mode but the rest of the service stays up.
type Config struct {
	Port             string
	Environment      string
	LogLevel         string
	GeminiAPIKey     string
	GeminiModel      string
	FirestoreProject string
	DefaultIndex     string
	FetchTimeout     time.Duration
}

// Load creates a configuration instance sourced from environment
// variables, with .env support for local development.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		Environment:      getEnv("ENVIRONMENT", "production"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		GeminiModel:      getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		FirestoreProject: getEnv("FIRESTORE_PROJECT_ID", ""),
		DefaultIndex:     getEnv("DEFAULT_INDEX", "EGX30"),
		FetchTimeout:     90 * time.Second,
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("config: GEMINI_API_KEY is required")
	}

	if raw := os.Getenv("FETCH_TIMEOUT_SECONDS"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("config: parse FETCH_TIMEOUT_SECONDS: %w", err)
		}
		cfg.FetchTimeout = time.Duration(seconds) * time.Second
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
