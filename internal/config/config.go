/*
Package config reads the service settings from the environment. A .env file
in the working directory is loaded first when present.
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"dropcheck/internal/device"
	"dropcheck/internal/geminiservice"
	"dropcheck/internal/utility"
	_ "github.com/joho/godotenv/autoload"
	"github.com/rs/zerolog/log"
)

// Config holds every setting the API binary needs.
type Config struct {
	Port     int
	Env      string
	LogLevel string

	// DatabaseURL selects Postgres-backed state. Empty means in-memory.
	DatabaseURL string

	SessionSecret string

	Gemini          geminiservice.Config
	CircuitBreaker  bool
	CacheSize       int
	RateLimitPerMin int
	SeedDemoHistory bool

	Device device.Config
}

// IsProduction reports whether APP_ENV is "production".
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

// Load reads the environment. Unset variables take their defaults; malformed
// values are reported together.
func Load() (Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (Config, error) {
	p := parser{getenv: getenv}

	cfg := Config{
		Port:        p.int("PORT", 8080),
		Env:         p.str("APP_ENV", "development"),
		LogLevel:    p.str("LOG_LEVEL", "info"),
		DatabaseURL: getenv("DATABASE_URL"),

		SessionSecret: getenv("SESSION_SECRET"),

		Gemini: geminiservice.Config{
			APIKey:         getenv("GEMINI_API_KEY"),
			Model:          p.str("GEMINI_MODEL", geminiservice.DefaultModel),
			BaseURL:        p.str("GEMINI_BASE_URL", geminiservice.DefaultBaseURL),
			Timeout:        p.duration("GEMINI_TIMEOUT", geminiservice.DefaultTimeout),
			MaxAttempts:    p.int("GEMINI_MAX_ATTEMPTS", 1),
			InitialBackoff: p.duration("GEMINI_INITIAL_BACKOFF", geminiservice.DefaultInitialBackoff),
		},
		CircuitBreaker:  p.bool("GEMINI_CIRCUIT_BREAKER", false),
		CacheSize:       p.int("RECOMMENDATION_CACHE_SIZE", 256),
		RateLimitPerMin: p.int("RATE_LIMIT_PER_MINUTE", 0),
		SeedDemoHistory: p.bool("SEED_DEMO_HISTORY", false),

		Device: device.Config{
			ScanDelay:     p.duration("DEVICE_SCAN_DELAY", device.DefaultScanDelay),
			PairDelay:     p.duration("DEVICE_PAIR_DELAY", device.DefaultPairDelay),
			AnalysisDelay: p.duration("DEVICE_ANALYSIS_DELAY", device.DefaultAnalysisDelay),
		},
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		p.fail("PORT", strconv.Itoa(cfg.Port), "must be between 1 and 65535")
	}
	if cfg.Gemini.MaxAttempts < 1 {
		p.fail("GEMINI_MAX_ATTEMPTS", strconv.Itoa(cfg.Gemini.MaxAttempts), "must be at least 1")
	}
	if cfg.CacheSize < 1 {
		p.fail("RECOMMENDATION_CACHE_SIZE", strconv.Itoa(cfg.CacheSize), "must be at least 1")
	}
	if cfg.RateLimitPerMin < 0 {
		p.fail("RATE_LIMIT_PER_MINUTE", strconv.Itoa(cfg.RateLimitPerMin), "must not be negative")
	}

	if cfg.SessionSecret == "" {
		if cfg.IsProduction() {
			p.fail("SESSION_SECRET", "", "is required in production")
		} else {
			secret, err := utility.GenerateSecureToken(32)
			if err != nil {
				return Config{}, fmt.Errorf("failed to generate session secret: %w", err)
			}
			cfg.SessionSecret = secret
			log.Warn().Msg("SESSION_SECRET not set, using a random secret; sessions will not survive a restart")
		}
	}

	if len(p.errs) > 0 {
		return Config{}, fmt.Errorf("invalid configuration: %w", errors.Join(p.errs...))
	}
	return cfg, nil
}

type parser struct {
	getenv func(string) string
	errs   []error
}

func (p *parser) fail(key, value, msg string) {
	p.errs = append(p.errs, fmt.Errorf("%s=%q %s", key, value, msg))
}

func (p *parser) str(key, def string) string {
	if v := strings.TrimSpace(p.getenv(key)); v != "" {
		return v
	}
	return def
}

func (p *parser) int(key string, def int) int {
	v := strings.TrimSpace(p.getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, v, "is not an integer")
		return def
	}
	return n
}

func (p *parser) bool(key string, def bool) bool {
	v := strings.TrimSpace(p.getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, v, "is not a boolean")
		return def
	}
	return b
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(p.getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, v, "is not a duration")
		return def
	}
	if d < 0 {
		p.fail(key, v, "must not be negative")
		return def
	}
	return d
}
