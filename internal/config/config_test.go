package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetEnvOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		envValue   string
		defaultVal string
		expected   string
	}{
		{"uses env value", "TEST_VAR_1", "hello", "default", "hello"},
		{"uses default when empty", "TEST_VAR_2", "", "default", "default"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.envValue)

			assert.Equal(t, tc.expected, getEnvOrDefault(tc.key, tc.defaultVal))
		})
	}
}

func TestGetEnvAsIntOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		envValue   string
		defaultVal int
		expected   int
	}{
		{"parses integer", "TEST_INT_1", "42", 10, 42},
		{"uses default for empty", "TEST_INT_2", "", 10, 10},
		{"uses default for non-numeric", "TEST_INT_3", "abc", 10, 10},
		{"uses default for negative", "TEST_INT_4", "-5", 10, 10},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.envValue)

			assert.Equal(t, tc.expected, getEnvAsIntOrDefault(tc.key, tc.defaultVal))
		})
	}
}

func TestGetEnvAsPositiveIntOrDefault(t *testing.T) {
	t.Setenv("TEST_POS_1", "0")
	t.Setenv("TEST_POS_2", "7")
	t.Setenv("TEST_POS_3", "-1")

	assert.Equal(t, 30, getEnvAsPositiveIntOrDefault("TEST_POS_1", 30))
	assert.Equal(t, 7, getEnvAsPositiveIntOrDefault("TEST_POS_2", 30))
	assert.Equal(t, 30, getEnvAsPositiveIntOrDefault("TEST_POS_3", 30))
	assert.Equal(t, 0, getEnvAsIntOrDefault("TEST_POS_1", 30), "zero stays valid for costs")
}

func TestLoad_ZeroLimitsFallBack(t *testing.T) {
	t.Setenv("ENV", "")
	t.Setenv("WRITE_RATE_LIMIT_PER_MIN", "0")
	t.Setenv("SPIRIT_BANK_WORKERS", "0")

	cfg := Load()

	assert.Equal(t, 30, cfg.WriteRateLimitPerMin)
	assert.Equal(t, 2, cfg.SpiritBankWorkers)
}

func TestGetEnvAsDurationOrDefault(t *testing.T) {
	t.Setenv("TEST_DURATION_1", "90m")
	t.Setenv("TEST_DURATION_2", "soon")
	t.Setenv("TEST_DURATION_3", "0s")

	assert.Equal(t, 90*time.Minute, getEnvAsDurationOrDefault("TEST_DURATION_1", time.Hour))
	assert.Equal(t, time.Hour, getEnvAsDurationOrDefault("TEST_DURATION_2", time.Hour))
	assert.Equal(t, time.Hour, getEnvAsDurationOrDefault("TEST_DURATION_3", time.Hour))
	assert.Equal(t, time.Hour, getEnvAsDurationOrDefault("TEST_DURATION_UNSET", time.Hour))
}

func TestMustGetEnv_Panics(t *testing.T) {
	t.Setenv("NONEXISTENT_REQUIRED_VAR", "")

	assert.Panics(t, func() { mustGetEnv("NONEXISTENT_REQUIRED_VAR") })
}

func TestMustGetEnv_ReturnsValue(t *testing.T) {
	t.Setenv("TEST_REQUIRED", "value123")

	assert.Equal(t, "value123", mustGetEnv("TEST_REQUIRED"))
}

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"ENV", "DATABASE_URL", "REDIS_URL", "VIRTUAL_SESSION_COST", "CIRCLE_CONTRIBUTION_PERCENT", "PRESENCE_IDLE_TIMEOUT"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "development", cfg.Env)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Equal(t, int64(10), cfg.VirtualSessionCost)
	assert.Equal(t, int64(100), cfg.CircleContributionPercent)
	assert.Equal(t, int64(50), cfg.CircleCreationMinimum)
	assert.Equal(t, 3*time.Hour, cfg.PresenceIdleTimeout)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_ProductionRequiresDatabase(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("DATABASE_URL", "")

	assert.Panics(t, func() { Load() })
}
