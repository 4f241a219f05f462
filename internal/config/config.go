package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Default values applied when the corresponding environment variable is unset.
const (
	DefaultPort              = "8080"
	DefaultPlaidEnv          = "sandbox"
	DefaultGeminiModel       = "gemini-2.5-flash"
	DefaultEnrichConcurrency = 1
)

// DefaultAllowedOrigins are the local development origins permitted by CORS
// when ALLOWED_ORIGINS is not configured.
var DefaultAllowedOrigins = []string{
	"http://localhost:3000",
	"http://127.0.0.1:3000",
}

// Config holds all runtime configuration for the API server.
type Config struct {
	Port string

	// Plaid aggregation service.
	PlaidClientID string
	PlaidSecret   string
	PlaidEnv      string // sandbox | development | production
	PlaidWebhook  string // optional webhook callback URL

	// Google Cloud.
	GCPProjectID    string
	CredentialsFile string // optional service account key file
	GeminiModel     string

	AllowedOrigins    []string
	EnrichConcurrency int
}

// Load reads configuration from a .env file (if present) and the process
// environment. A missing .env file is not an error.
func Load() Config {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from the given lookup function.
func FromEnv(getenv func(string) string) Config {
	cfg := Config{
		Port:              getOr(getenv, "PORT", DefaultPort),
		PlaidClientID:     getenv("PLAID_CLIENT_ID"),
		PlaidSecret:       getenv("PLAID_SECRET"),
		PlaidEnv:          getOr(getenv, "PLAID_ENV", DefaultPlaidEnv),
		PlaidWebhook:      getenv("PLAID_WEBHOOK"),
		GCPProjectID:      getenv("GCP_PROJECT_ID"),
		CredentialsFile:   getenv("GOOGLE_APPLICATION_CREDENTIALS"),
		GeminiModel:       getOr(getenv, "GEMINI_MODEL", DefaultGeminiModel),
		AllowedOrigins:    splitOrigins(getenv("ALLOWED_ORIGINS")),
		EnrichConcurrency: DefaultEnrichConcurrency,
	}

	if raw := getenv("ENRICH_CONCURRENCY"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			cfg.EnrichConcurrency = n
		}
	}

	return cfg
}

func getOr(getenv func(string) string, key, fallback string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitOrigins(raw string) []string {
	if raw == "" {
		return DefaultAllowedOrigins
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	if len(origins) == 0 {
		return DefaultAllowedOrigins
	}
	return origins
}
