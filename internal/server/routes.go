package server

import (
	"net/http"

	"dropcheck/internal/utility"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"
)

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"https://*", "http://*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	e.Use(LoggerMiddleware)

	// Public routes
	e.GET("/health", s.healthHandler)
	e.GET("/reference-ranges", s.referenceRangesHandler)
	e.POST("/evaluate", s.evaluateHandler)
	e.POST("/session", s.createSessionHandler)

	// Session routes
	protected := e.Group("")
	protected.Use(s.auth.SessionMiddleware)
	protected.Use(s.RateLimitMiddleware)

	protected.DELETE("/session", s.deleteSessionHandler)
	protected.GET("/health/system", s.systemHealthHandler)

	// Profile
	protected.GET("/profile", s.getProfileHandler)
	protected.PUT("/profile", s.putProfileHandler)

	// Test history
	protected.GET("/tests", s.listTestsHandler)
	protected.POST("/tests", s.createTestHandler)
	protected.GET("/tests/latest", s.latestTestHandler)
	protected.GET("/tests/export.csv", s.exportHistoryHandler)
	protected.GET("/tests/:test_id", s.getTestHandler)
	protected.DELETE("/tests/:test_id", s.deleteTestHandler)

	// Recommendations
	protected.POST("/recommendations", s.recommendationsHandler)
	protected.GET("/recommendations/:test_id", s.getRecommendationsHandler)
	protected.GET("/recommendations/:test_id/export.csv", s.exportRecommendationsCSVHandler)
	protected.GET("/recommendations/:test_id/export.json", s.exportRecommendationsJSONHandler)

	// Device simulator
	protected.GET("/device/scan", s.scanDevicesHandler)
	protected.POST("/device/pair", s.pairDeviceHandler)
	protected.POST("/device/test", s.runDeviceTestHandler)
	protected.GET("/device/ws", s.deviceSocketHandler)

	// Dashboard refresh notifications
	protected.GET("/ws/dashboard", s.dashboardSocketHandler)

	return e
}

// LoggerMiddleware attaches a request-scoped logger carrying the request id.
// Handlers read it with utility.GetLogger; library code with zerolog.Ctx.
func LoggerMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := c.Request().Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Response().Header().Set("X-Request-ID", requestID)

		logger := log.With().Str("request_id", requestID).Logger()

		c.Set("logger", &logger)
		c.SetRequest(c.Request().WithContext(logger.WithContext(c.Request().Context())))

		return next(c)
	}
}

// RateLimitMiddleware rejects sessions that exceed the configured request
// rate with 429.
func (s *Server) RateLimitMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !s.limiter.Enabled() {
			return next(c)
		}
		key, err := utility.GetSessionIDFromContext(c)
		if err != nil {
			key = utility.GetRealIP(c)
		}
		if !s.limiter.Allow(key) {
			utility.GetLogger(c).Warn().Str("key", key).Msg("Rate limit exceeded")
			return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "Too many requests, please try again later"})
		}
		return next(c)
	}
}
