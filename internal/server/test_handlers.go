package server

import (
	"errors"
	"net/http"
	"time"

	"dropcheck/internal/export"
	"dropcheck/internal/health"
	"dropcheck/internal/session"
	"dropcheck/internal/utility"
	"github.com/labstack/echo/v4"
)

// newTestRequest is the body of POST /tests.
type newTestRequest struct {
	health.LabInput
	TakenAt *time.Time `json:"taken_at,omitempty"`
}

func evaluatedHistory(history []health.TestResult) []health.EvaluatedResult {
	out := make([]health.EvaluatedResult, len(history))
	for i, r := range history {
		out[i] = r.Evaluated()
	}
	return out
}

func (s *Server) listTestsHandler(c echo.Context) error {
	sessionID, err := utility.GetSessionIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	history, err := s.state.History(c.Request().Context(), sessionID)
	if err != nil {
		utility.GetLogger(c).Error().Err(err).Msg("Failed to load test history")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Could not load test history"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"tests": evaluatedHistory(history),
		"count": len(history),
	})
}

func (s *Server) createTestHandler(c echo.Context) error {
	sessionID, err := utility.GetSessionIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	var req newTestRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request format"})
	}
	labs, err := req.LabInput.LabValues()
	if err != nil {
		return validationFailed(c, "Invalid lab values", err)
	}
	var takenAt time.Time
	if req.TakenAt != nil {
		takenAt = *req.TakenAt
	}

	result, err := s.state.AddTestResult(c.Request().Context(), sessionID, labs, takenAt)
	if errors.Is(err, health.ErrInvalidLabValues) {
		return validationFailed(c, "Invalid lab values", err)
	}
	if err != nil {
		utility.GetLogger(c).Error().Err(err).Msg("Failed to store test result")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Could not store test result"})
	}

	s.hub.TriggerDashboardUpdate(sessionID)
	return c.JSON(http.StatusCreated, result.Evaluated())
}

func (s *Server) latestTestHandler(c echo.Context) error {
	sessionID, err := utility.GetSessionIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	result, err := s.state.Latest(c.Request().Context(), sessionID)
	if errors.Is(err, session.ErrNoHistory) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "No test results found"})
	}
	if err != nil {
		utility.GetLogger(c).Error().Err(err).Msg("Failed to load latest test")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Could not load test result"})
	}
	return c.JSON(http.StatusOK, result.Evaluated())
}

func (s *Server) getTestHandler(c echo.Context) error {
	sessionID, err := utility.GetSessionIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	result, err := s.state.TestResult(c.Request().Context(), sessionID, c.Param("test_id"))
	if errors.Is(err, session.ErrTestResultNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Test result not found"})
	}
	if err != nil {
		utility.GetLogger(c).Error().Err(err).Msg("Failed to load test result")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Could not load test result"})
	}
	return c.JSON(http.StatusOK, result.Evaluated())
}

func (s *Server) deleteTestHandler(c echo.Context) error {
	sessionID, err := utility.GetSessionIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	err = s.state.RemoveTestResult(c.Request().Context(), sessionID, c.Param("test_id"))
	if errors.Is(err, session.ErrTestResultNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Test result not found"})
	}
	if err != nil {
		utility.GetLogger(c).Error().Err(err).Msg("Failed to delete test result")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Could not delete test result"})
	}

	s.hub.TriggerDashboardUpdate(sessionID)
	return c.NoContent(http.StatusNoContent)
}

// exportHistoryHandler downloads the whole history as CSV, newest first.
func (s *Server) exportHistoryHandler(c echo.Context) error {
	sessionID, err := utility.GetSessionIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	history, err := s.state.History(c.Request().Context(), sessionID)
	if err != nil {
		utility.GetLogger(c).Error().Err(err).Msg("Failed to load test history")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Could not load test history"})
	}

	attachment(c, "text/csv; charset=utf-8", export.HistoryFilename)
	return export.WriteHistoryCSV(c.Response(), history)
}

func attachment(c echo.Context, contentType, filename string) {
	h := c.Response().Header()
	h.Set(echo.HeaderContentType, contentType)
	h.Set(echo.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	c.Response().WriteHeader(http.StatusOK)
}
