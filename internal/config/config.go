package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the client configuration.
type Config struct {
	APIBaseURL       string
	RequestTimeout   time.Duration
	DatabasePath     string
	LogLevel         string
	AutoLogoutExempt []string // request paths whose 401s keep the session
	RefreshInterval  time.Duration

	// serve-dev only
	DevPort      int
	DevDBPath    string
	DevJWTSecret string
}

// Load loads configuration from a .env file (if present) and environment
// variables, falling back to defaults.
func Load() (*Config, error) {
	// .env is optional; plain environment variables still apply.
	_ = godotenv.Load()

	timeoutMs, err := strconv.Atoi(getEnv("MEDCHAT_TIMEOUT_MS", "20000"))
	if err != nil || timeoutMs <= 0 {
		timeoutMs = 20000
	}

	refresh, err := time.ParseDuration(getEnv("MEDCHAT_REFRESH_INTERVAL", "10m"))
	if err != nil || refresh <= 0 {
		refresh = 10 * time.Minute
	}

	devPort, err := strconv.Atoi(getEnv("MEDCHAT_DEV_PORT", "8080"))
	if err != nil {
		return nil, err
	}

	return &Config{
		APIBaseURL:       getEnv("MEDCHAT_API_URL", "http://localhost:8080"),
		RequestTimeout:   time.Duration(timeoutMs) * time.Millisecond,
		DatabasePath:     getEnv("MEDCHAT_DB_PATH", "./medchat.db"),
		LogLevel:         getEnv("MEDCHAT_LOG_LEVEL", "info"),
		AutoLogoutExempt: splitList(getEnv("MEDCHAT_AUTOLOGOUT_EXEMPT", "/agent/chat")),
		RefreshInterval:  refresh,
		DevPort:          devPort,
		DevDBPath:        getEnv("MEDCHAT_DEV_DB_PATH", "./medchat-dev.db"),
		DevJWTSecret:     getEnv("MEDCHAT_DEV_JWT_SECRET", "dev-only-secret"),
	}, nil
}

// Helper to get an environment variable with a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
