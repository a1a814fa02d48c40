package server

import (
	"errors"
	"net/http"

	"dropcheck/internal/health"
	"dropcheck/internal/session"
	"dropcheck/internal/utility"
	"github.com/labstack/echo/v4"
)

/* ====================================================================
                              Session
==================================================================== */

// createSessionHandler starts a fresh session and returns its bearer token.
func (s *Server) createSessionHandler(c echo.Context) error {
	resp, err := s.auth.StartSession(c)
	if err != nil {
		utility.GetLogger(c).Error().Err(err).Msg("Failed to start session")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Could not start session"})
	}
	utility.GetLogger(c).Info().Str("session_id", resp.SessionID).Msg("Session started")
	return c.JSON(http.StatusCreated, resp)
}

// deleteSessionHandler clears the profile, history and cached
// recommendations of the session.
func (s *Server) deleteSessionHandler(c echo.Context) error {
	ctx := c.Request().Context()
	logger := utility.GetLogger(c)

	sessionID, err := utility.GetSessionIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	if err := s.state.ClearSession(ctx, sessionID); err != nil {
		logger.Error().Err(err).Msg("Failed to clear session")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Could not clear session"})
	}
	if err := s.auth.EndSession(c); err != nil {
		logger.Warn().Err(err).Msg("Failed to expire session cookie")
	}
	s.limiter.Forget(sessionID)
	s.hub.TriggerDashboardUpdate(sessionID)

	logger.Info().Msg("Session cleared")
	return c.JSON(http.StatusOK, map[string]string{"message": "Session cleared"})
}

/* ====================================================================
                              Profile
==================================================================== */

func (s *Server) getProfileHandler(c echo.Context) error {
	sessionID, err := utility.GetSessionIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	profile, err := s.state.Profile(c.Request().Context(), sessionID)
	if errors.Is(err, session.ErrNoProfile) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "No profile found"})
	}
	if err != nil {
		utility.GetLogger(c).Error().Err(err).Msg("Failed to load profile")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Could not load profile"})
	}
	return c.JSON(http.StatusOK, profile)
}

// putProfileHandler replaces the whole profile. Units are converted to
// centimeters and kilograms before storing.
func (s *Server) putProfileHandler(c echo.Context) error {
	sessionID, err := utility.GetSessionIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	var profile health.UserProfile
	if err := c.Bind(&profile); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request format"})
	}

	saved, err := s.state.ReplaceProfile(c.Request().Context(), sessionID, profile)
	if errors.Is(err, health.ErrInvalidProfile) {
		return validationFailed(c, "Invalid profile", err)
	}
	if err != nil {
		utility.GetLogger(c).Error().Err(err).Msg("Failed to save profile")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Could not save profile"})
	}
	s.hub.TriggerDashboardUpdate(sessionID)
	return c.JSON(http.StatusOK, saved)
}
