package config

import (
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Port string
	Env  string

	// Telegram
	BotToken      string
	PublicURL     string // externally reachable base URL, e.g. https://flextea.example.com
	WebhookSecret string // path segment guarding the webhook endpoint

	// Storage
	DatabaseURL string // PostgreSQL; takes precedence when set
	SQLitePath  string
	RedisURL    string

	// Rate limiting
	RateLimitWhitelist []string // IPs or CIDRs exempt from rate limiting
	AutoBlockEnabled   bool     // Enable auto-blocking after repeated violations

	// GeneratedSecret is true when WebhookSecret was generated this run and
	// should be surfaced to the operator.
	GeneratedSecret bool
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
// In production, it panics on missing required variables.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		Env:              getEnv("ENV", "development"),
		BotToken:         os.Getenv("BOT_TOKEN"),
		PublicURL:        strings.TrimRight(os.Getenv("PUBLIC_URL"), "/"),
		WebhookSecret:    os.Getenv("WEBHOOK_SECRET"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		SQLitePath:       getEnv("SQLITE_PATH", "./data/flextea.db"),
		RedisURL:         os.Getenv("REDIS_URL"),
		AutoBlockEnabled: getEnv("AUTO_BLOCK_ENABLED", "false") == "true",
	}

	if cfg.WebhookSecret == "" {
		cfg.WebhookSecret = uuid.NewString()
		cfg.GeneratedSecret = true
	}

	// Parse whitelist (comma-separated IPs or CIDRs)
	if whitelist := os.Getenv("RATE_LIMIT_WHITELIST"); whitelist != "" {
		for _, entry := range strings.Split(whitelist, ",") {
			entry = strings.TrimSpace(entry)
			if entry != "" {
				cfg.RateLimitWhitelist = append(cfg.RateLimitWhitelist, entry)
			}
		}
	}

	// In production, the bot cannot run without its token and a reachable URL
	if cfg.Env == "production" {
		if cfg.BotToken == "" {
			panic("BOT_TOKEN is required in production")
		}
		if cfg.PublicURL == "" {
			panic("PUBLIC_URL is required in production")
		}
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
