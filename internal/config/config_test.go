package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(env(nil))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Len(t, cfg.SessionSecret, 64)

	assert.Equal(t, "gemini-2.5-flash", cfg.Gemini.Model)
	assert.Equal(t, 30*time.Second, cfg.Gemini.Timeout)
	assert.Equal(t, 1, cfg.Gemini.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Gemini.InitialBackoff)
	assert.False(t, cfg.CircuitBreaker)
	assert.Equal(t, 256, cfg.CacheSize)
	assert.Equal(t, 0, cfg.RateLimitPerMin)
	assert.False(t, cfg.SeedDemoHistory)

	assert.Equal(t, 2*time.Second, cfg.Device.ScanDelay)
	assert.Equal(t, 1500*time.Millisecond, cfg.Device.PairDelay)
	assert.Equal(t, 3*time.Second, cfg.Device.AnalysisDelay)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := load(env(map[string]string{
		"PORT":                   "9090",
		"APP_ENV":                "production",
		"SESSION_SECRET":         "s3cret",
		"DATABASE_URL":           "postgres://localhost/dropcheck",
		"GEMINI_API_KEY":         "key",
		"GEMINI_MAX_ATTEMPTS":    "3",
		"GEMINI_TIMEOUT":         "5s",
		"GEMINI_CIRCUIT_BREAKER": "true",
		"RATE_LIMIT_PER_MINUTE":  "30",
		"SEED_DEMO_HISTORY":      "1",
		"DEVICE_ANALYSIS_DELAY":  "0s",
	}))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "s3cret", cfg.SessionSecret)
	assert.Equal(t, "key", cfg.Gemini.APIKey)
	assert.Equal(t, 3, cfg.Gemini.MaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.Gemini.Timeout)
	assert.True(t, cfg.CircuitBreaker)
	assert.Equal(t, 30, cfg.RateLimitPerMin)
	assert.True(t, cfg.SeedDemoHistory)
	assert.Zero(t, cfg.Device.AnalysisDelay)
}

func TestLoadReportsEveryBadValue(t *testing.T) {
	_, err := load(env(map[string]string{
		"PORT":                "eighty",
		"GEMINI_TIMEOUT":      "soon",
		"GEMINI_MAX_ATTEMPTS": "0",
		"SEED_DEMO_HISTORY":   "maybe",
	}))
	require.Error(t, err)
	for _, key := range []string{"PORT", "GEMINI_TIMEOUT", "GEMINI_MAX_ATTEMPTS", "SEED_DEMO_HISTORY"} {
		assert.Contains(t, err.Error(), key)
	}
}

func TestLoadRequiresSecretInProduction(t *testing.T) {
	_, err := load(env(map[string]string{"APP_ENV": "production"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SESSION_SECRET")
}
