// Package config reads runtime settings from the environment.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config captures runtime configuration values for vo2sync.
type Config struct {
	DataDir     string
	DBPath      string
	UploadDir   string
	HTTPAddress string
	LogLevel    string

	StravaClientID     string
	StravaClientSecret string
	StravaRedirectURI  string
	StravaBaseURL      string
	StateToken         string
	HTTPTimeout        time.Duration

	TokenStore string // "file" or "redis"
	TokenFile  string
	RedisURL   string

	SyncSchedule string
	SyncPerPage  int
}

// Load reads environment variables into Config, applying defaults for local use.
// Call godotenv.Load before Load if a .env file should be honoured.
func Load() Config {
	dataDir := getEnv("DATA_DIR", "./data")
	cfg := Config{
		DataDir:     dataDir,
		DBPath:      getEnv("DB_PATH", filepath.Join(dataDir, "vo2sync.db")),
		UploadDir:   getEnv("UPLOAD_DIR", filepath.Join(dataDir, "uploads")),
		HTTPAddress: getEnv("HTTP_ADDRESS", ":8888"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		StravaClientID:     getEnv("STRAVA_CLIENT_ID", ""),
		StravaClientSecret: getEnv("STRAVA_CLIENT_SECRET", ""),
		StravaRedirectURI:  getEnv("STRAVA_REDIRECT_URI", "http://localhost:8888/api/strava/callback"),
		StravaBaseURL:      getEnv("STRAVA_BASE_URL", "https://www.strava.com/api/v3"),
		StateToken:         getEnv("STATE_TOKEN", ""),
		HTTPTimeout:        getDurationEnv("HTTP_TIMEOUT", 30*time.Second),

		TokenStore: getEnv("TOKEN_STORE", "file"),
		TokenFile:  getEnv("TOKEN_FILE", filepath.Join(dataDir, "strava_token.json")),
		RedisURL:   getEnv("REDIS_URL", ""),

		SyncSchedule: getEnv("SYNC_SCHEDULE", "@hourly"),
		SyncPerPage:  getIntEnv("SYNC_PER_PAGE", 30),
	}
	return cfg
}

// StravaConfigured reports whether OAuth client credentials are present.
func (c Config) StravaConfigured() bool {
	return c.StravaClientID != "" && c.StravaClientSecret != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}
