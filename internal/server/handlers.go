package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

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

// Handlers holds HTTP handler dependencies.
type Handlers struct {
	db                  *storage.DB
	jwtMgr              *auth.JWTManager
	experiments         *experiment.Service
	attribution         *attribution.Service
	engagement          *engagement.Service
	templates           *templatestats.Service
	recommendations     *recommend.Service
	limiter             ratelimit.Limiter
	logger              *slog.Logger
	startedAt           time.Time
	version             string
	maxRequestBodyBytes int64
	maxIngestBatchSize  int
}

// HandlersDeps holds all dependencies for constructing Handlers.
type HandlersDeps struct {
	DB                  *storage.DB
	JWTMgr              *auth.JWTManager
	ExperimentSvc       *experiment.Service
	AttributionSvc      *attribution.Service
	EngagementSvc       *engagement.Service
	TemplateSvc         *templatestats.Service
	RecommendSvc        *recommend.Service
	Limiter             ratelimit.Limiter
	Logger              *slog.Logger
	Version             string
	MaxRequestBodyBytes int64
	MaxIngestBatchSize  int
}

// NewHandlers creates a new Handlers with all dependencies.
func NewHandlers(d HandlersDeps) *Handlers {
	return &Handlers{
		db:                  d.DB,
		jwtMgr:              d.JWTMgr,
		experiments:         d.ExperimentSvc,
		attribution:         d.AttributionSvc,
		engagement:          d.EngagementSvc,
		templates:           d.TemplateSvc,
		recommendations:     d.RecommendSvc,
		limiter:             d.Limiter,
		logger:              d.Logger,
		startedAt:           time.Now(),
		version:             d.Version,
		maxRequestBodyBytes: d.MaxRequestBodyBytes,
		maxIngestBatchSize:  d.MaxIngestBatchSize,
	}
}

// writeInternalError logs the underlying error with the request ID and
// returns an opaque 500 to the client.
func (h *Handlers) writeInternalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.logger.Error(msg, "error", err, "request_id", RequestIDFromContext(r.Context()))
	writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, msg)
}

// pathUUID parses the named path value as a UUID.
func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s: must be a UUID", name)
	}
	return id, nil
}

// windowFromQuery builds a TimeRange from from/to RFC3339 query params.
// Malformed values produce an error rather than being silently dropped.
func windowFromQuery(r *http.Request) (model.TimeRange, error) {
	var window model.TimeRange
	q := r.URL.Query()
	if fromStr := q.Get("from"); fromStr != "" {
		t, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			return window, fmt.Errorf("invalid from: must be RFC3339")
		}
		window.From = &t
	}
	if toStr := q.Get("to"); toStr != "" {
		t, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			return window, fmt.Errorf("invalid to: must be RFC3339")
		}
		window.To = &t
	}
	return window, nil
}

// HandleAuthToken handles POST /auth/token. Exchanges a client_id and
// API key for a short-lived JWT.
func (h *Handlers) HandleAuthToken(w http.ResponseWriter, r *http.Request) {
	var req model.AuthTokenRequest
	if err := decodeJSON(r, &req, h.maxRequestBodyBytes); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body")
		return
	}
	if req.ClientID == "" || req.APIKey == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "client_id and api_key are required")
		return
	}

	client, err := h.db.GetClientByClientID(r.Context(), req.ClientID)
	if err != nil {
		// Burn a hash so response timing does not reveal whether the
		// client_id exists.
		auth.DummyVerify()
		writeError(w, r, http.StatusUnauthorized, model.ErrCodeUnauthorized, "invalid credentials")
		return
	}
	if client.APIKeyHash == nil {
		auth.DummyVerify()
		writeError(w, r, http.StatusUnauthorized, model.ErrCodeUnauthorized, "invalid credentials")
		return
	}

	valid, err := auth.VerifyAPIKey(req.APIKey, *client.APIKeyHash)
	if err != nil || !valid {
		writeError(w, r, http.StatusUnauthorized, model.ErrCodeUnauthorized, "invalid credentials")
		return
	}

	token, expiresAt, err := h.jwtMgr.IssueToken(client)
	if err != nil {
		h.writeInternalError(w, r, "failed to issue token", err)
		return
	}

	writeJSON(w, r, http.StatusOK, model.AuthTokenResponse{
		Token:     token,
		ExpiresAt: expiresAt,
	})
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	pgStatus := "connected"
	status := "healthy"
	httpStatus := http.StatusOK

	if err := h.db.Ping(r.Context()); err != nil {
		pgStatus = "disconnected"
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, r, httpStatus, model.HealthResponse{
		Status:   status,
		Version:  h.version,
		Postgres: pgStatus,
		Uptime:   int64(time.Since(h.startedAt).Seconds()),
	})
}

// SeedAdmin creates the initial admin client if none exists.
func (h *Handlers) SeedAdmin(ctx context.Context, adminAPIKey string) error {
	if adminAPIKey == "" {
		h.logger.Info("no admin API key configured, skipping admin seed")
		return nil
	}

	const adminClientID = "admin"
	if _, err := h.db.GetClientByClientID(ctx, adminClientID); err == nil {
		h.logger.Info("admin client already exists, skipping seed")
		return nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("seed admin: look up admin client: %w", err)
	}

	hash, err := auth.HashAPIKey(adminAPIKey)
	if err != nil {
		return fmt.Errorf("seed admin: hash API key: %w", err)
	}

	now := time.Now().UTC()
	client := model.APIClient{
		ID:         uuid.New(),
		ClientID:   adminClientID,
		Name:       "bootstrap admin",
		Role:       model.RoleAdmin,
		APIKeyHash: &hash,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := h.db.CreateClient(ctx, client); err != nil {
		return fmt.Errorf("seed admin: create admin client: %w", err)
	}
	h.logger.Info("seeded bootstrap admin client", "client_id", adminClientID)
	return nil
}
