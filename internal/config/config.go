package config

import (
	"os"
	"strconv"
)

// Config holds all runtime configuration, loaded from environment variables.
type Config struct {
	// Server
	Port int

	// Gemini connection
	GeminiAPIKey string
	GeminiModel  string

	// Persistence
	DBPath string

	// Recorder behavior
	MaxRecordSeconds int // auto-stop cap for a recording session

	// Result hygiene
	MinIDLength int // shorter remote IDs get replaced with a UUID
}

// Load reads configuration from environment variables with sane defaults.
func Load() Config {
	return Config{
		Port: envInt("TARAREO_PORT", 8080),

		GeminiAPIKey: envStr("GEMINI_API_KEY", ""),
		GeminiModel:  envStr("GEMINI_MODEL", "gemini-2.5-flash"),

		DBPath: envStr("TARAREO_DB_PATH", "tarareo.sqlite3"),

		MaxRecordSeconds: envInt("TARAREO_MAX_RECORD_SECONDS", 30),
		MinIDLength:      envInt("TARAREO_MIN_ID_LENGTH", 8),
	}
}

func envStr(key, fallback string) string {
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
