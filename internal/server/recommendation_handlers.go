package server

import (
	"context"
	"errors"
	"net/http"

	"dropcheck/internal/biomarker"
	"dropcheck/internal/export"
	"dropcheck/internal/health"
	"dropcheck/internal/recommendation"
	"dropcheck/internal/session"
	"dropcheck/internal/utility"
	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"
)

// RecommendationRequest is the body of POST /recommendations. An empty
// TestID means the latest result.
type RecommendationRequest struct {
	TestID  string `json:"test_id"`
	Refresh bool   `json:"refresh"`
}

type RecommendationResponse struct {
	TestID          string                `json:"test_id"`
	Cached          bool                  `json:"cached"`
	Evaluation      biomarker.Evaluation  `json:"evaluation"`
	Recommendations recommendation.Bundle `json:"recommendations"`
}

// recommendationsHandler returns the bundle for one test result, asking the
// model only when nothing is cached or a refresh is requested.
func (s *Server) recommendationsHandler(c echo.Context) error {
	ctx := c.Request().Context()
	logger := utility.GetLogger(c)

	sessionID, err := utility.GetSessionIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	var req RecommendationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request format"})
	}

	// Profile and test result load concurrently. Missing data is reported
	// after both finish so the response does not depend on which was first.
	var (
		profile             health.UserProfile
		test                health.TestResult
		profileErr, testErr error
	)
	g, grpCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		profile, profileErr = s.state.Profile(grpCtx, sessionID)
		if errors.Is(profileErr, session.ErrNoProfile) {
			return nil
		}
		return profileErr
	})
	g.Go(func() error {
		if req.TestID == "" {
			test, testErr = s.state.Latest(grpCtx, sessionID)
		} else {
			test, testErr = s.state.TestResult(grpCtx, sessionID, req.TestID)
		}
		if errors.Is(testErr, session.ErrNoHistory) || errors.Is(testErr, session.ErrTestResultNotFound) {
			return nil
		}
		return testErr
	})
	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("Failed to load recommendation inputs")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Could not load session data"})
	}

	switch {
	case profileErr != nil:
		return c.JSON(http.StatusConflict, map[string]string{"error": "profile required"})
	case errors.Is(testErr, session.ErrNoHistory):
		return c.JSON(http.StatusConflict, map[string]string{"error": "test result required"})
	case errors.Is(testErr, session.ErrTestResultNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Test result not found"})
	}

	resp := RecommendationResponse{TestID: test.ID, Evaluation: test.Evaluate()}

	if !req.Refresh {
		cached, ok, err := s.state.Recommendations(ctx, sessionID, test.ID)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to read cached recommendations")
		} else if ok {
			resp.Cached = true
			resp.Recommendations = cached
			return c.JSON(http.StatusOK, resp)
		}
	}

	logger.Info().Str("test_id", test.ID).Bool("refresh", req.Refresh).Msg("Processing recommendation request")

	bundle, err := s.recommender.Request(ctx, recommendation.FromProfile(profile, test.LabValues))
	switch {
	case errors.Is(err, recommendation.ErrInvalidRequest):
		return validationFailed(c, "Profile is incomplete for recommendations", err)
	case errors.Is(err, context.Canceled):
		logger.Info().Msg("Client went away before recommendations were ready")
		return nil
	case err != nil:
		logger.Error().Err(err).Msg("Recommendation service failed")
		return c.JSON(http.StatusBadGateway, map[string]string{"error": "could not load recommendations"})
	}

	err = s.state.StoreRecommendations(ctx, sessionID, test.ID, bundle)
	switch {
	case errors.Is(err, session.ErrTestResultNotFound):
		logger.Info().Str("test_id", test.ID).Msg("Test result removed during generation, recommendations not cached")
	case err != nil:
		logger.Warn().Err(err).Msg("Failed to cache recommendations")
	}

	resp.Recommendations = bundle
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) cachedBundle(c echo.Context) (recommendation.Bundle, bool, error) {
	sessionID, err := utility.GetSessionIDFromContext(c)
	if err != nil {
		return recommendation.Bundle{}, false, c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	bundle, ok, err := s.state.Recommendations(c.Request().Context(), sessionID, c.Param("test_id"))
	if err != nil {
		utility.GetLogger(c).Error().Err(err).Msg("Failed to load recommendations")
		return recommendation.Bundle{}, false, c.JSON(http.StatusInternalServerError, map[string]string{"error": "Could not load recommendations"})
	}
	if !ok {
		return recommendation.Bundle{}, false, c.JSON(http.StatusNotFound, map[string]string{"error": "No recommendations for this test"})
	}
	return bundle, true, nil
}

func (s *Server) getRecommendationsHandler(c echo.Context) error {
	bundle, ok, err := s.cachedBundle(c)
	if !ok {
		return err
	}
	return c.JSON(http.StatusOK, bundle)
}

func (s *Server) exportRecommendationsCSVHandler(c echo.Context) error {
	bundle, ok, err := s.cachedBundle(c)
	if !ok {
		return err
	}
	attachment(c, "text/csv; charset=utf-8", export.BundleFilename(c.Param("test_id"), "csv"))
	return export.WriteBundleCSV(c.Response(), bundle)
}

func (s *Server) exportRecommendationsJSONHandler(c echo.Context) error {
	bundle, ok, err := s.cachedBundle(c)
	if !ok {
		return err
	}
	attachment(c, echo.MIMEApplicationJSON, export.BundleFilename(c.Param("test_id"), "json"))
	return export.WriteBundleJSON(c.Response(), bundle)
}
