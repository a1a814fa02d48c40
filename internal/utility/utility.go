package utility

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// InitLogger configures the global zerolog logger. Development gets a
// human-readable console writer, everything else gets JSON.
func InitLogger(env, level string) {
	zerolog.TimeFieldFormat = time.RFC3339

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if env == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	zerolog.DefaultContextLogger = &log.Logger

	if err != nil {
		log.Warn().Str("level", level).Msg("Unknown LOG_LEVEL, using info")
	}
}

// GetLogger returns the request-scoped logger set by LoggerMiddleware,
// falling back to the global logger.
func GetLogger(c echo.Context) *zerolog.Logger {
	if l, ok := c.Get("logger").(*zerolog.Logger); ok && l != nil {
		return l
	}
	return &log.Logger
}

// GetRealIP is a helper function to get the user's real IP address
// It checks proxy headers first.
func GetRealIP(c echo.Context) string {
	// X-Forwarded-For can be a list: "client, proxy1, proxy2"
	xForwardedFor := c.Request().Header.Get("X-Forwarded-For")
	if xForwardedFor != "" {
		ips := strings.Split(xForwardedFor, ",")
		return strings.TrimSpace(ips[0])
	}

	xRealIP := c.Request().Header.Get("X-Real-IP")
	if xRealIP != "" {
		return xRealIP
	}

	return c.RealIP()
}

// GetSessionIDFromContext safely retrieves the session ID from Echo context
func GetSessionIDFromContext(c echo.Context) (string, error) {
	sessionID, ok := c.Get("session_id").(string)
	if !ok || sessionID == "" {
		return "", fmt.Errorf("session ID not found in context")
	}
	return sessionID, nil
}

func GenerateSecureToken(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// maxLimiterKeys bounds how many per-key buckets a RateLimiter keeps. The
// least recently seen key is dropped first.
const maxLimiterKeys = 10000

// RateLimiter keeps one token bucket per key. A limiter built with a
// non-positive rate allows everything.
type RateLimiter struct {
	limit    rate.Limit
	burst    int
	limiters *lru.Cache[string, *rate.Limiter]
}

// NewRateLimiter allows perMinute events per key with a burst of the same
// size.
func NewRateLimiter(perMinute int) *RateLimiter {
	return newRateLimiter(perMinute, maxLimiterKeys)
}

func newRateLimiter(perMinute, maxKeys int) *RateLimiter {
	if perMinute <= 0 {
		return &RateLimiter{limit: rate.Inf}
	}
	limiters, err := lru.New[string, *rate.Limiter](maxKeys)
	if err != nil {
		log.Error().Err(err).Int("max_keys", maxKeys).Msg("Invalid rate limiter size, limiting disabled")
		return &RateLimiter{limit: rate.Inf}
	}
	return &RateLimiter{
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
		limiters: limiters,
	}
}

func (r *RateLimiter) Enabled() bool {
	return r.limit != rate.Inf
}

// Allow reports whether key may proceed now.
func (r *RateLimiter) Allow(key string) bool {
	if !r.Enabled() {
		return true
	}
	l, ok := r.limiters.Get(key)
	if !ok {
		l = rate.NewLimiter(r.limit, r.burst)
		if prev, found, _ := r.limiters.PeekOrAdd(key, l); found {
			l = prev
		}
	}
	return l.Allow()
}

// Forget drops the bucket for key.
func (r *RateLimiter) Forget(key string) {
	if r.limiters != nil {
		r.limiters.Remove(key)
	}
}

// Len returns the number of keys currently tracked.
func (r *RateLimiter) Len() int {
	if r.limiters == nil {
		return 0
	}
	return r.limiters.Len()
}
