package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/salesense/ai/cache"
	"github.com/hrygo/salesense/ai/engine"
	"github.com/hrygo/salesense/ai/retry"
	"github.com/hrygo/salesense/ai/router"
	"github.com/hrygo/salesense/internal/profile"
)

// scriptedLLM answers each pipeline stage with canned output, keyed off
// the prompt shape.
type scriptedLLM struct{}

func (s *scriptedLLM) Call(_ context.Context, prompt string, _ int, _ map[string]string, _ router.Complexity) (string, string, error) {
	switch {
	case strings.HasPrefix(prompt, "Extract slots"):
		return `{"slots": {"pain": "laptop too slow"}, "new_quotes": ["it takes forever to boot"]}`, "anthropic", nil
	case strings.HasPrefix(prompt, "Detect situation"):
		return `{"situation": "quality_doubt", "confidence": 0.85, "stage": "discovery"}`, "anthropic", nil
	default:
		return "That slow boot sounds painful. What do you mainly use the laptop for?", "anthropic", nil
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	rules, err := engine.LoadRuleSet("../config")
	require.NoError(t, err)

	llm := &scriptedLLM{}
	retryCfg := retry.Config{MaxAttempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
	defaults := engine.DetectorDefaults{Situation: "just_browsing", Confidence: 0.3, Stage: "discovery"}

	orchestrator := engine.NewOrchestrator(engine.OrchestratorConfig{
		Capture:       engine.NewCaptureEngine(llm, rules, 500, retryCfg),
		Detector:      engine.NewSituationDetector(llm, rules, defaults, 200, retryCfg),
		Selector:      engine.NewPrincipleSelector(rules),
		Generator:     engine.NewResponseGenerator(llm, 150, 2, 3, retryCfg),
		ExactCache:    cache.NewExactCache[engine.Result](100, time.Hour),
		SemanticCache: cache.NewSemanticCache[engine.Result](nil, 0.92, 100, time.Hour),
	})

	p := &profile.Profile{
		Mode:        "demo",
		LLMProvider: "anthropic",
		LLMAPIKey:   "test-key",
	}

	return New(Config{
		Profile:      p,
		Orchestrator: orchestrator,
		LLMStats:     router.NewStats(),
	})
}

func postChat(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(body))
	req.Header.Set(echoContentType, echoJSONType)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

const (
	echoContentType = "Content-Type"
	echoJSONType    = "application/json"
)

func TestChat_NewSessionAssignedAnID(t *testing.T) {
	s := newTestServer(t)

	rec := postChat(t, s, `{"message": "my laptop is too slow"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.NotEmpty(t, resp.SessionID)
	assert.NotEmpty(t, resp.CustomerFacing.Response)
	assert.Equal(t, "quality_doubt", resp.AgentDashboard.Detection.DetectedSituation)
	assert.Equal(t, "laptop too slow", resp.AgentDashboard.CapturedContext["pain"])
	assert.Equal(t, 1, resp.AgentDashboard.Session.TurnCount)
}

func TestChat_ExistingSessionAccumulatesTurns(t *testing.T) {
	s := newTestServer(t)

	rec := postChat(t, s, `{"session_id": "s-1", "message": "my laptop is too slow"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postChat(t, s, `{"session_id": "s-1", "message": "what would you suggest instead then"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "s-1", resp.SessionID)
	assert.Equal(t, 2, resp.AgentDashboard.Session.TurnCount)
}

func TestChat_EmptyMessageRejected(t *testing.T) {
	s := newTestServer(t)

	rec := postChat(t, s, `{"session_id": "s-1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postChat(t, s, `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec := postChat(t, s, `{"session_id": "s-9", "message": "my laptop is too slow"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/s-9", nil)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var view engine.SessionView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, 1, view.TurnCount)
	assert.Equal(t, "laptop too slow", view.CapturedContext["pain"])

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/sessions/s-9", nil)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/sessions/s-9", nil)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatsEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec := postChat(t, s, `{"session_id": "s-1", "message": "my laptop is too slow"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	for _, path := range []string{
		"/api/v1/stats/cache",
		"/api/v1/stats/llm",
		"/api/v1/stats/reconcile",
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats/reconcile", nil)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var stats engine.ReconcileStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(1), stats.TotalRequests)
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var health map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, "anthropic", health["llm_provider"])
}
