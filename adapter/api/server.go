// Package api provides the HTTP surface of coachpay: the processor webhook
// endpoint and the trainer compliance API.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/felixgeelhaar/coachpay/pkg/observability"
)

// Server is the HTTP API server.
type Server struct {
	mux        *http.ServeMux
	server     *http.Server
	logger     *slog.Logger
	webhooks   *WebhookHandler
	compliance *ComplianceHandler
	metrics    *observability.InMemoryMetrics
	health     *observability.HealthRegistry
}

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultServerConfig returns the default server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:         "0.0.0.0:8080",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// Handlers groups the route handlers served by the API.
type Handlers struct {
	Webhooks   *WebhookHandler
	Compliance *ComplianceHandler
	// Metrics is exposed at /metrics when set.
	Metrics *observability.InMemoryMetrics
	// Health adds dependency checks to /health when set.
	Health *observability.HealthRegistry
}

// NewServer creates a new API server.
func NewServer(cfg ServerConfig, handlers Handlers, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()

	s := &Server{
		mux:        mux,
		logger:     logger,
		webhooks:   handlers.Webhooks,
		compliance: handlers.Compliance,
		metrics:    handlers.Metrics,
		health:     handlers.Health,
	}

	// Register routes
	s.registerRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// registerRoutes sets up the API routes.
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /metrics", s.handleMetrics)

	// Processor webhooks
	s.mux.HandleFunc("POST /webhooks/stripe", s.webhooks.HandleStripe)

	// Compliance API v1
	s.mux.HandleFunc("POST /api/v1/trainers/{trainerID}/account-status", s.compliance.SyncAccountStatus)
	s.mux.HandleFunc("POST /api/v1/trainers/{trainerID}/terms", s.compliance.AcceptTerms)
	s.mux.HandleFunc("GET /api/v1/trainers/{trainerID}/compliance", s.compliance.GetComplianceSummary)
	s.mux.HandleFunc("GET /api/v1/trainers/{trainerID}/revenue", s.compliance.GetRevenue)
	s.mux.HandleFunc("GET /api/v1/admin/risk-accounts", s.compliance.ListRiskAccounts)
}

// Handler returns the routed handler wrapped in the request context
// middleware.
func (s *Server) Handler() http.Handler {
	return withRequestContext(s.mux)
}

// withRequestContext gives every request a request id and correlation id.
// An inbound X-Correlation-ID header is kept.
func withRequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := observability.NewRequestContext(r.Context(), r.Header.Get("X-Correlation-ID"))
		w.Header().Set("X-Request-ID", observability.RequestIDFromContext(ctx))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	health := s.health.GetOverallHealth(r.Context())
	status := http.StatusOK
	if health.Status == observability.HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

// handleMetrics serves a snapshot of the in-memory counters and gauges.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.metrics == nil {
		writeJSON(w, http.StatusOK, map[string]int64{})
		return
	}
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

// Start starts the API server.
func (s *Server) Start() error {
	s.logger.Info("starting API server",
		"addr", s.server.Addr,
	)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	return s.server.Shutdown(ctx)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Log error but can't do much at this point
			slog.Error("failed to encode JSON response", "error", err)
		}
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error":   http.StatusText(status),
		"message": message,
	})
}
