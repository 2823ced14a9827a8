package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	APIPort            string
	BackendAPIKey      string // API key for authenticating requests (empty = no auth, dev mode)
	CorsAllowedOrigins string // Comma-separated allowed origins (empty = *, dev mode)

	// Filesystem
	TempDir         string // Working directory for uploads and render products
	CredentialsFile string // JSON file holding {access_token, refresh_token, expiry_date}

	// Google OAuth / YouTube
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	YouTubeCategoryID  string // Destination category, default "10" (Music)

	// Database (optional publish-history ledger; empty = disabled)
	DatabaseURL string

	// Scraper
	ScrapeAttempts       int  // Whole-scrape retries against the reference page
	ScrapeTimeoutSeconds int  // Per-attempt navigation budget
	ChromeHeadless       bool // Set false to watch the scrape locally

	// Disk sweeper — safety net for artifacts that escape per-job cleanup
	SweepEveryMinutes  int
	SweepMaxAgeMinutes int
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		APIPort:            getEnv("API_PORT", "8080"),
		BackendAPIKey:      getEnv("BACKEND_API_KEY", ""),
		CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", ""),
		TempDir:            getEnv("TEMP_DIR", "/tmp/beatpress"),
		CredentialsFile:    getEnv("CREDENTIALS_FILE", "credentials.json"),
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", "http://localhost:8080/oauth2callback"),
		YouTubeCategoryID:  getEnv("YOUTUBE_CATEGORY_ID", "10"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),

		ScrapeAttempts:       getEnvInt("SCRAPE_ATTEMPTS", 3),
		ScrapeTimeoutSeconds: getEnvInt("SCRAPE_TIMEOUT_SECONDS", 45),
		ChromeHeadless:       getEnvBool("CHROME_HEADLESS", true),

		SweepEveryMinutes:  getEnvInt("SWEEP_EVERY_MINUTES", 30),
		SweepMaxAgeMinutes: getEnvInt("SWEEP_MAX_AGE_MINUTES", 60),
	}

	// Validate required fields
	if cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "" {
		return nil, fmt.Errorf("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET are required")
	}

	if cfg.ScrapeAttempts < 1 {
		return nil, fmt.Errorf("SCRAPE_ATTEMPTS must be at least 1")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return defaultValue
}
