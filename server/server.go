// Package server exposes the conversation pipeline over HTTP.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/lithammer/shortuuid/v4"
	"golang.org/x/time/rate"

	"github.com/hrygo/salesense/ai/engine"
	"github.com/hrygo/salesense/ai/metrics"
	"github.com/hrygo/salesense/ai/router"
	"github.com/hrygo/salesense/internal/profile"
	"github.com/hrygo/salesense/internal/version"
)

// Server is the HTTP front of the sales agent.
type Server struct {
	echo         *echo.Echo
	profile      *profile.Profile
	orchestrator *engine.Orchestrator
	llmStats     *router.Stats
	exporter     *metrics.PrometheusExporter
}

// Config wires the server dependencies.
type Config struct {
	Profile      *profile.Profile
	Orchestrator *engine.Orchestrator
	LLMStats     *router.Stats
	Exporter     *metrics.PrometheusExporter

	// ChatRateLimit is requests per second per client IP on the chat
	// endpoint. Zero disables rate limiting.
	ChatRateLimit float64
}

// New creates the server and registers all routes.
func New(cfg Config) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:         e,
		profile:      cfg.Profile,
		orchestrator: cfg.Orchestrator,
		llmStats:     cfg.LLMStats,
		exporter:     cfg.Exporter,
	}

	e.Use(middleware.Recover())
	e.Use(requestLatencyLogger())

	apiV1 := e.Group("/api/v1")

	chat := apiV1.Group("/chat")
	if cfg.ChatRateLimit > 0 {
		chat.Use(middleware.RateLimiter(
			middleware.NewRateLimiterMemoryStore(rate.Limit(cfg.ChatRateLimit)),
		))
	}
	chat.POST("", s.handleChat)

	apiV1.GET("/sessions/:id", s.handleGetSession)
	apiV1.DELETE("/sessions/:id", s.handleDeleteSession)

	apiV1.GET("/stats/cache", s.handleCacheStats)
	apiV1.GET("/stats/llm", s.handleLLMStats)
	apiV1.GET("/stats/reconcile", s.handleReconcileStats)

	e.GET("/healthz", s.handleHealth)
	e.GET("/", s.handleRoot)

	if s.exporter != nil {
		e.GET("/metrics", echo.WrapHandler(s.exporter.Handler()))
	}

	return s
}

// Start begins serving on addr and blocks until the listener fails.
func (s *Server) Start(addr string) error {
	slog.Info("http server listening", "addr", addr, "version", version.GetCurrentVersion(s.profile.Mode))
	return s.echo.Start(addr)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler returns the underlying HTTP handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// requestLatencyLogger logs one line per request with method, path,
// status and latency.
func requestLatencyLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			slog.Info("http request",
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"status", c.Response().Status,
				"latency_ms", time.Since(start).Milliseconds(),
			)
			return err
		}
	}
}

// ChatRequest is the POST /api/v1/chat payload. A missing session id
// starts a new session.
type ChatRequest struct {
	SessionID      string            `json:"session_id"`
	Message        string            `json:"message"`
	ProductContext map[string]string `json:"product_context"`
}

// ChatResponse wraps the pipeline result with the session id, so callers
// that started a new session learn its id.
type ChatResponse struct {
	SessionID      string                `json:"session_id"`
	CustomerFacing engine.CustomerFacing `json:"customer_facing"`
	AgentDashboard engine.AgentDashboard `json:"agent_dashboard"`
}

func (s *Server) handleChat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = shortuuid.New()
	}

	result, err := s.orchestrator.Process(c.Request().Context(), sessionID, req.Message, req.ProductContext)
	if err != nil {
		slog.Error("chat processing failed", "session_id", sessionID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to process message")
	}

	if s.exporter != nil {
		s.exporter.SetActiveSessions(s.orchestrator.Sessions().Len())
	}

	return c.JSON(http.StatusOK, ChatResponse{
		SessionID:      sessionID,
		CustomerFacing: result.CustomerFacing,
		AgentDashboard: result.AgentDashboard,
	})
}

func (s *Server) handleGetSession(c echo.Context) error {
	view, ok := s.orchestrator.Sessions().View(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	return c.JSON(http.StatusOK, view)
}

func (s *Server) handleDeleteSession(c echo.Context) error {
	s.orchestrator.Sessions().Delete(c.Param("id"))
	return c.JSON(http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleCacheStats(c echo.Context) error {
	exact := s.orchestrator.ExactCacheStats()
	semantic := s.orchestrator.SemanticCacheStats()

	return c.JSON(http.StatusOK, map[string]any{
		"exact_cache":    exact,
		"semantic_cache": semantic,
		"combined": map[string]any{
			"exact_hits":      exact.Hits,
			"semantic_hits":   semantic.Hits,
			"exact_misses":    exact.Misses,
			"semantic_misses": semantic.Misses,
			"total_hits":      exact.Hits + semantic.Hits,
			"total_requests":  exact.Hits + exact.Misses,
		},
	})
}

func (s *Server) handleLLMStats(c echo.Context) error {
	return c.JSON(http.StatusOK, s.llmStats.Snapshot())
}

func (s *Server) handleReconcileStats(c echo.Context) error {
	return c.JSON(http.StatusOK, s.orchestrator.ReconcileStats())
}

func (s *Server) handleHealth(c echo.Context) error {
	status := "ok"
	if !s.profile.IsAIEnabled() {
		status = "degraded"
	}

	return c.JSON(http.StatusOK, map[string]any{
		"status":          status,
		"version":         version.GetCurrentVersion(s.profile.Mode),
		"llm_provider":    s.profile.LLMProvider,
		"race_enabled":    s.profile.IsRaceEnabled(),
		"semantic_cache":  s.profile.IsEmbeddingEnabled(),
		"active_sessions": s.orchestrator.Sessions().Len(),
	})
}

func (s *Server) handleRoot(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"message": "salesense API",
		"endpoints": map[string]string{
			"chat":            "POST /api/v1/chat",
			"get_session":     "GET /api/v1/sessions/:id",
			"clear_session":   "DELETE /api/v1/sessions/:id",
			"cache_stats":     "GET /api/v1/stats/cache",
			"llm_stats":       "GET /api/v1/stats/llm",
			"reconcile_stats": "GET /api/v1/stats/reconcile",
			"health":          "GET /healthz",
			"metrics":         "GET /metrics",
		},
	})
}
