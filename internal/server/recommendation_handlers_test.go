package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"dropcheck/internal/export"
	"dropcheck/internal/health"
	"dropcheck/internal/recommendation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recommenderFunc func(ctx context.Context, req recommendation.Request) (recommendation.Bundle, error)

func (f recommenderFunc) Request(ctx context.Context, req recommendation.Request) (recommendation.Bundle, error) {
	return f(ctx, req)
}

func addTest(t *testing.T, env *testEnv, labs health.LabValues) health.EvaluatedResult {
	t.Helper()
	rec := env.call(http.MethodPost, "/tests", labs)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var r health.EvaluatedResult
	decode(t, rec, &r)
	return r
}

func TestRecommendationsRequireProfileAndTest(t *testing.T) {
	env := newTestEnv(t)

	rec := env.call(http.MethodPost, "/recommendations", map[string]interface{}{})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"error":"profile required"}`, rec.Body.String())

	// With a profile but no tests the test is what is missing.
	require.Equal(t, http.StatusOK, env.call(http.MethodPut, "/profile", femaleProfile()).Code)
	rec = env.call(http.MethodPost, "/recommendations", map[string]interface{}{})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"error":"test result required"}`, rec.Body.String())

	rec = env.call(http.MethodPost, "/recommendations", map[string]interface{}{"test_id": "missing"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.Zero(t, env.gen.Calls())
}

func TestRecommendationsGenerateThenCache(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusOK, env.call(http.MethodPut, "/profile", femaleProfile()).Code)
	test := addTest(t, env, health.LabValues{Hemoglobin: 11.2, Glucose: 95, CRP: 5.1})

	rec := env.call(http.MethodPost, "/recommendations", map[string]interface{}{})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp RecommendationResponse
	decode(t, rec, &resp)
	assert.Equal(t, test.ID, resp.TestID)
	assert.False(t, resp.Cached)
	assert.Equal(t, "At Risk", resp.Evaluation.Overall.String())
	assert.Equal(t, "Lentils", resp.Recommendations.Diet.Recommendations[0].Title)
	require.Equal(t, 1, env.gen.Calls())

	prompt := env.gen.prompts[0]
	assert.Contains(t, prompt, "Hemoglobin: 11.2 g/dL (At Risk")
	assert.Contains(t, prompt, "Severity of Periods: Heavy")

	rec = env.call(http.MethodPost, "/recommendations", map[string]interface{}{"test_id": test.ID})
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &resp)
	assert.True(t, resp.Cached)
	assert.Equal(t, 1, env.gen.Calls(), "cached bundle is reused")

	rec = env.call(http.MethodPost, "/recommendations", map[string]interface{}{"refresh": true})
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &resp)
	assert.False(t, resp.Cached)
	assert.Equal(t, 2, env.gen.Calls())

	rec = env.call(http.MethodGet, "/recommendations/"+test.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"diet_advice"`)

	rec = env.call(http.MethodGet, "/recommendations/"+test.ID+"/export.csv", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), export.BundleFilename(test.ID, "csv"))
	bundle, err := export.ReadBundleCSV(strings.NewReader(rec.Body.String()))
	require.NoError(t, err)
	assert.Equal(t, resp.Recommendations, bundle)

	rec = env.call(http.MethodGet, "/recommendations/"+test.ID+"/export.json", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	bundle, err = export.ReadBundleJSON(strings.NewReader(rec.Body.String()))
	require.NoError(t, err)
	assert.Equal(t, resp.Recommendations, bundle)
}

func TestRecommendationsNotCachedFor404(t *testing.T) {
	env := newTestEnv(t)
	test := addTest(t, env, health.LabValues{Hemoglobin: 13, Glucose: 90, CRP: 1})

	assert.Equal(t, http.StatusNotFound, env.call(http.MethodGet, "/recommendations/"+test.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.call(http.MethodGet, "/recommendations/"+test.ID+"/export.csv", nil).Code)
}

func TestRecommendationsDroppedWithTest(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusOK, env.call(http.MethodPut, "/profile", femaleProfile()).Code)
	test := addTest(t, env, health.LabValues{Hemoglobin: 13, Glucose: 90, CRP: 1})
	require.Equal(t, http.StatusOK, env.call(http.MethodPost, "/recommendations", map[string]interface{}{}).Code)

	require.Equal(t, http.StatusNoContent, env.call(http.MethodDelete, "/tests/"+test.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.call(http.MethodGet, "/recommendations/"+test.ID, nil).Code)
}

func TestRecommendationsUpstreamFailures(t *testing.T) {
	for name, setup := range map[string]func(*fakeGenerator){
		"generation failed": func(g *fakeGenerator) { g.err = errors.New("503 Service Unavailable") },
		"malformed output":  func(g *fakeGenerator) { g.response = `{"diet_advice": {}}` },
		"not json":          func(g *fakeGenerator) { g.response = "Sure! Here are some tips." },
	} {
		t.Run(name, func(t *testing.T) {
			env := newTestEnv(t)
			setup(env.gen)
			require.Equal(t, http.StatusOK, env.call(http.MethodPut, "/profile", femaleProfile()).Code)
			test := addTest(t, env, health.LabValues{Hemoglobin: 11.2, Glucose: 95, CRP: 5.1})

			rec := env.call(http.MethodPost, "/recommendations", map[string]interface{}{})
			assert.Equal(t, http.StatusBadGateway, rec.Code)
			assert.JSONEq(t, `{"error":"could not load recommendations"}`, rec.Body.String())

			assert.Equal(t, http.StatusNotFound, env.call(http.MethodGet, "/recommendations/"+test.ID, nil).Code,
				"failures are not cached")
		})
	}
}

func TestRecommendationsInvalidRequest(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) {
		d.Recommender = recommenderFunc(func(ctx context.Context, req recommendation.Request) (recommendation.Bundle, error) {
			var errs health.FieldErrors
			errs.Add("age", "must be between 1 and 120", 0)
			return recommendation.Bundle{}, errs.As(recommendation.ErrInvalidRequest)
		})
	})
	require.Equal(t, http.StatusOK, env.call(http.MethodPut, "/profile", femaleProfile()).Code)
	addTest(t, env, health.LabValues{Hemoglobin: 13, Glucose: 90, CRP: 1})

	rec := env.call(http.MethodPost, "/recommendations", map[string]interface{}{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"age"`)
}

func TestRecommendationsBadBody(t *testing.T) {
	env := newTestEnv(t)
	rec := env.call(http.MethodPost, "/recommendations", `{"refresh": "yes please"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
