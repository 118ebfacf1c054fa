package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cadencehq/cadence/internal/auth"
	"github.com/cadencehq/cadence/internal/model"
	"github.com/cadencehq/cadence/internal/ratelimit"
	"github.com/cadencehq/cadence/internal/service/attribution"
	"github.com/cadencehq/cadence/internal/service/engagement"
	"github.com/cadencehq/cadence/internal/service/experiment"
	"github.com/cadencehq/cadence/internal/service/recommend"
	"github.com/cadencehq/cadence/internal/service/templatestats"
	"github.com/cadencehq/cadence/internal/storage"
)

// Server is the Cadence HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	handlers   *Handlers
	logger     *slog.Logger
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ServerConfig holds all dependencies and configuration for creating a Server.
type ServerConfig struct {
	// Required dependencies.
	DB             *storage.DB
	JWTMgr         *auth.JWTManager
	ExperimentSvc  *experiment.Service
	AttributionSvc *attribution.Service
	EngagementSvc  *engagement.Service
	TemplateSvc    *templatestats.Service
	RecommendSvc   *recommend.Service
	Logger         *slog.Logger

	// Optional dependencies (nil = disabled).
	Limiter ratelimit.Limiter

	// HTTP server settings.
	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	Version             string
	MaxRequestBodyBytes int64
	MaxIngestBatchSize  int
}

// New creates a new HTTP server with all routes configured.
func New(cfg ServerConfig) *Server {
	h := NewHandlers(HandlersDeps{
		DB:                  cfg.DB,
		JWTMgr:              cfg.JWTMgr,
		ExperimentSvc:       cfg.ExperimentSvc,
		AttributionSvc:      cfg.AttributionSvc,
		EngagementSvc:       cfg.EngagementSvc,
		TemplateSvc:         cfg.TemplateSvc,
		RecommendSvc:        cfg.RecommendSvc,
		Limiter:             cfg.Limiter,
		Logger:              cfg.Logger,
		Version:             cfg.Version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		MaxIngestBatchSize:  cfg.MaxIngestBatchSize,
	})

	// Request ID extractor for rate limit error responses.
	reqIDFunc := func(r *http.Request) string {
		return RequestIDFromContext(r.Context())
	}

	// Authenticated routes are limited per client; the token endpoint is
	// limited per source IP since there are no claims yet.
	clientRL := ratelimit.Middleware(cfg.Limiter, clientKeyFunc, reqIDFunc)
	authRL := ratelimit.Middleware(cfg.Limiter, ratelimit.IPKeyFunc, reqIDFunc)

	mux := http.NewServeMux()

	// Auth endpoint (no auth required, rate limited by IP).
	mux.Handle("POST /auth/token", authRL(http.HandlerFunc(h.HandleAuthToken)))

	// Event ingestion (ingest+).
	ingestRole := requireRole(model.RoleIngest)
	mux.Handle("POST /v1/events", clientRL(ingestRole(http.HandlerFunc(h.HandleIngestEvents))))

	// Experiment lifecycle (analyst+ manages, ingest+ records traffic).
	analystRole := requireRole(model.RoleAnalyst)
	mux.Handle("POST /v1/experiments", clientRL(analystRole(http.HandlerFunc(h.HandleCreateExperiment))))
	mux.Handle("GET /v1/experiments", clientRL(analystRole(http.HandlerFunc(h.HandleListExperiments))))
	mux.Handle("GET /v1/experiments/suggestions", clientRL(analystRole(http.HandlerFunc(h.HandleTestSuggestions))))
	mux.Handle("GET /v1/experiments/{id}", clientRL(analystRole(http.HandlerFunc(h.HandleGetExperiment))))
	mux.Handle("POST /v1/experiments/{id}/start", clientRL(analystRole(http.HandlerFunc(h.HandleStartExperiment))))
	mux.Handle("POST /v1/experiments/{id}/pause", clientRL(analystRole(http.HandlerFunc(h.HandlePauseExperiment))))
	mux.Handle("POST /v1/experiments/{id}/resume", clientRL(analystRole(http.HandlerFunc(h.HandleResumeExperiment))))
	mux.Handle("POST /v1/experiments/{id}/complete", clientRL(analystRole(http.HandlerFunc(h.HandleCompleteExperiment))))
	mux.Handle("GET /v1/experiments/{id}/results", clientRL(analystRole(http.HandlerFunc(h.HandleExperimentResults))))
	mux.Handle("POST /v1/experiments/{id}/assignments", clientRL(ingestRole(http.HandlerFunc(h.HandleAssignVariant))))
	mux.Handle("POST /v1/experiments/{id}/interactions", clientRL(ingestRole(http.HandlerFunc(h.HandleRecordInteraction))))

	// Attribution (analyst+).
	mux.Handle("GET /v1/attribution/automations/{id}", clientRL(analystRole(http.HandlerFunc(h.HandleAutomationROI))))
	mux.Handle("GET /v1/attribution/automations/{id}/opportunities", clientRL(analystRole(http.HandlerFunc(h.HandleAttributedOpportunities))))
	mux.Handle("GET /v1/attribution/opportunities/{id}", clientRL(analystRole(http.HandlerFunc(h.HandleOpportunityAttribution))))
	mux.Handle("GET /v1/attribution/by-type", clientRL(analystRole(http.HandlerFunc(h.HandleROIByType))))
	mux.Handle("GET /v1/attribution/dashboard", clientRL(analystRole(http.HandlerFunc(h.HandleAttributionDashboard))))

	// Engagement analytics (analyst+).
	mux.Handle("GET /v1/engagement/stakeholders", clientRL(analystRole(http.HandlerFunc(h.HandleStakeholderEngagement))))
	mux.Handle("GET /v1/engagement/heatmap", clientRL(analystRole(http.HandlerFunc(h.HandleEngagementHeatmap))))
	mux.Handle("GET /v1/engagement/channels", clientRL(analystRole(http.HandlerFunc(h.HandleChannelPerformance))))
	mux.Handle("GET /v1/engagement/content", clientRL(analystRole(http.HandlerFunc(h.HandleContentPerformance))))
	mux.Handle("GET /v1/engagement/trends", clientRL(analystRole(http.HandlerFunc(h.HandleEngagementTrends))))

	// Template performance (analyst+).
	mux.Handle("GET /v1/templates/metrics", clientRL(analystRole(http.HandlerFunc(h.HandleAllTemplateMetrics))))
	mux.Handle("GET /v1/templates/compare", clientRL(analystRole(http.HandlerFunc(h.HandleCompareTemplates))))
	mux.Handle("GET /v1/templates/{id}/metrics", clientRL(analystRole(http.HandlerFunc(h.HandleTemplateMetrics))))
	mux.Handle("GET /v1/templates/{id}/report", clientRL(analystRole(http.HandlerFunc(h.HandleTemplateReport))))
	mux.Handle("GET /v1/templates/{id}/timeline", clientRL(analystRole(http.HandlerFunc(h.HandleTemplateTimeline))))

	// Recommendations (analyst+).
	mux.Handle("GET /v1/recommendations", clientRL(analystRole(http.HandlerFunc(h.HandleRecommendations))))
	mux.Handle("GET /v1/recommendations/insights", clientRL(analystRole(http.HandlerFunc(h.HandleInsights))))
	mux.Handle("GET /v1/recommendations/predictive", clientRL(analystRole(http.HandlerFunc(h.HandlePredictiveInsights))))
	mux.Handle("GET /v1/recommendations/export", clientRL(analystRole(http.HandlerFunc(h.HandleExportRecommendations))))

	// Health (no auth, no rate limit).
	mux.HandleFunc("GET /health", h.HandleHealth)

	// Middleware chain (outermost executes first):
	// request ID → security headers → tracing → logging → auth → recovery → handler.
	var handler http.Handler = mux
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = authMiddleware(cfg.JWTMgr, handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = tracingMiddleware(handler)
	handler = securityHeadersMiddleware(handler)
	handler = requestIDMiddleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		handler:  handler,
		handlers: h,
		logger:   cfg.Logger,
	}
}

// clientKeyFunc extracts the client ID from the request context for rate
// limiting. Returns empty string for admin roles (exempt from rate limits).
func clientKeyFunc(r *http.Request) string {
	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		return ""
	}
	if model.RoleAtLeast(claims.Role, model.RoleAdmin) {
		return ""
	}
	return claims.ClientID
}

// Handlers returns the underlying Handlers for access to SeedAdmin etc.
func (s *Server) Handlers() *Handlers {
	return s.handlers
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
