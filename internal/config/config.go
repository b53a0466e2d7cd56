package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port     string
	Env      string
	LogLevel string

	// Database (empty keeps practitioners in memory)
	DatabaseURL   string
	MigrationsDir string

	// Redis (empty applies ledger writes inline)
	RedisURL          string
	SpiritBankWorkers int

	// Spirit bank economics
	CircleContributionPercent int64
	CircleCreationMinimum     int64
	VirtualSessionCost        int64

	// Presence
	PresenceIdleTimeout time.Duration

	// HTTP
	WriteRateLimitPerMin int
	FrontendURL          string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                      getEnvOrDefault("PORT", "8080"),
		Env:                       getEnvOrDefault("ENV", "development"),
		LogLevel:                  getEnvOrDefault("LOG_LEVEL", "info"),
		DatabaseURL:               getEnvOrDefault("DATABASE_URL", ""),
		MigrationsDir:             getEnvOrDefault("MIGRATIONS_DIR", "migrations"),
		RedisURL:                  getEnvOrDefault("REDIS_URL", ""),
		SpiritBankWorkers:         getEnvAsPositiveIntOrDefault("SPIRIT_BANK_WORKERS", 2),
		CircleContributionPercent: int64(getEnvAsIntOrDefault("CIRCLE_CONTRIBUTION_PERCENT", 100)),
		CircleCreationMinimum:     int64(getEnvAsIntOrDefault("CIRCLE_CREATION_MINIMUM_POINTS", 50)),
		VirtualSessionCost:        int64(getEnvAsIntOrDefault("VIRTUAL_SESSION_COST", 10)),
		PresenceIdleTimeout:       getEnvAsDurationOrDefault("PRESENCE_IDLE_TIMEOUT", 3*time.Hour),
		WriteRateLimitPerMin:      getEnvAsPositiveIntOrDefault("WRITE_RATE_LIMIT_PER_MIN", 30),
		FrontendURL:               getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	if cfg.IsProduction() {
		cfg.DatabaseURL = mustGetEnv("DATABASE_URL")
	}

	return cfg
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil || n < 0 {
		return defaultVal
	}
	return n
}

// getEnvAsPositiveIntOrDefault is for counts where zero would disable the component.
func getEnvAsPositiveIntOrDefault(key string, defaultVal int) int {
	n := getEnvAsIntOrDefault(key, defaultVal)
	if n == 0 {
		return defaultVal
	}
	return n
}

func getEnvAsDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
