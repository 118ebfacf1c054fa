package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Field length limits for ingested events. These keep single oversized
// fields out of Postgres TEXT columns and the aggregation paths that
// group on them.
const (
	MaxContactIDLen   = 200
	MaxSubjectLineLen = 1024
	MaxContentTypeLen = 200
	MaxPayloadKeys    = 64
)

// APIResponse is the standard response envelope for all HTTP API responses.
type APIResponse struct {
	Data any          `json:"data,omitempty"`
	Meta ResponseMeta `json:"meta"`
}

// ListResponse is the standard envelope for paginated list endpoints.
type ListResponse struct {
	Data    any          `json:"data"`
	Total   *int         `json:"total,omitempty"`
	HasMore bool         `json:"has_more"`
	Limit   int          `json:"limit"`
	Offset  int          `json:"offset"`
	Meta    ResponseMeta `json:"meta"`
}

// APIError is the standard error response envelope.
type APIError struct {
	Error ErrorDetail  `json:"error"`
	Meta  ResponseMeta `json:"meta"`
}

// ResponseMeta contains request metadata included in every response.
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorDetail describes an API error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorCode constants for standard API error codes.
const (
	ErrCodeInvalidInput   = "INVALID_INPUT"
	ErrCodeUnauthorized   = "UNAUTHORIZED"
	ErrCodeForbidden      = "FORBIDDEN"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeConflict       = "CONFLICT"
	ErrCodeInternalError  = "INTERNAL_ERROR"
	ErrCodeRateLimited    = "RATE_LIMITED"
	ErrCodeNotImplemented = "NOT_IMPLEMENTED"
)

// TimeRange defines a time window for queries. Nil bounds are open.
type TimeRange struct {
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`
}

// Contains reports whether t falls inside the range.
func (r TimeRange) Contains(t time.Time) bool {
	if r.From != nil && t.Before(*r.From) {
		return false
	}
	if r.To != nil && t.After(*r.To) {
		return false
	}
	return true
}

// EventFilters defines the filter parameters for event scans.
type EventFilters struct {
	TemplateIDs  []uuid.UUID      `json:"template_ids,omitempty"`
	ExperimentID *uuid.UUID       `json:"experiment_id,omitempty"`
	ContactID    *string          `json:"contact_id,omitempty"`
	AccountID    *string          `json:"account_id,omitempty"`
	Types        []InteractionType `json:"types,omitempty"`
	Channel      *Channel         `json:"channel,omitempty"`
	TimeRange    *TimeRange       `json:"time_range,omitempty"`
}

// PagedResult wraps paginated query results.
type PagedResult[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// ClientRole represents the RBAC role assigned to an API client.
type ClientRole string

const (
	RoleAdmin   ClientRole = "admin"
	RoleAnalyst ClientRole = "analyst"
	RoleIngest  ClientRole = "ingest"
)

// APIClient is an authenticated caller identity.
type APIClient struct {
	ID         uuid.UUID  `json:"id"`
	ClientID   string     `json:"client_id"`
	Name       string     `json:"name"`
	Role       ClientRole `json:"role"`
	APIKeyHash *string    `json:"-"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// RoleRank returns the numeric rank of a role (higher = more privileges).
// Only relative ordering matters; RoleAtLeast uses >= comparison.
func RoleRank(r ClientRole) int {
	switch r {
	case RoleAdmin:
		return 3
	case RoleAnalyst:
		return 2
	case RoleIngest:
		return 1
	default:
		return 0
	}
}

// RoleAtLeast returns true if role r has at least the privileges of minRole.
func RoleAtLeast(r, minRole ClientRole) bool {
	return RoleRank(r) >= RoleRank(minRole)
}

// IngestEventsRequest is the request body for POST /v1/events.
type IngestEventsRequest struct {
	Events []EventInput `json:"events"`
}

// EventInput is a single event in an ingest request.
type EventInput struct {
	TemplateID        uuid.UUID       `json:"template_id"`
	ExperimentID      *uuid.UUID      `json:"experiment_id,omitempty"`
	VariantID         *uuid.UUID      `json:"variant_id,omitempty"`
	ContactID         string          `json:"contact_id"`
	AccountID         *string         `json:"account_id,omitempty"`
	InteractionType   InteractionType `json:"interaction_type"`
	Channel           Channel         `json:"channel,omitempty"`
	Revenue           *float64        `json:"revenue,omitempty"`
	Cost              *float64        `json:"cost,omitempty"`
	ResponseTimeHours *float64        `json:"response_time_hours,omitempty"`
	SequenceStep      *int            `json:"sequence_step,omitempty"`
	SequenceCompleted bool            `json:"sequence_completed,omitempty"`
	ContentType       string          `json:"content_type,omitempty"`
	SubjectLine       string          `json:"subject_line,omitempty"`
	PreviewText       string          `json:"preview_text,omitempty"`
	SentimentScore    *float64        `json:"sentiment_score,omitempty"`
	Status            string          `json:"status,omitempty"`
	Payload           map[string]any  `json:"payload,omitempty"`
	OccurredAt        *time.Time      `json:"occurred_at,omitempty"`
}

// ValidateEventInput checks the fields of a single ingested event.
func ValidateEventInput(in EventInput) error {
	if in.TemplateID == uuid.Nil {
		return fmt.Errorf("template_id is required")
	}
	if in.ContactID == "" {
		return fmt.Errorf("contact_id is required")
	}
	if len(in.ContactID) > MaxContactIDLen {
		return fmt.Errorf("contact_id exceeds maximum length of %d characters", MaxContactIDLen)
	}
	if !ValidInteractionType(in.InteractionType) {
		return fmt.Errorf("unknown interaction_type %q", in.InteractionType)
	}
	if len(in.SubjectLine) > MaxSubjectLineLen {
		return fmt.Errorf("subject_line exceeds maximum length of %d characters", MaxSubjectLineLen)
	}
	if len(in.ContentType) > MaxContentTypeLen {
		return fmt.Errorf("content_type exceeds maximum length of %d characters", MaxContentTypeLen)
	}
	if len(in.Payload) > MaxPayloadKeys {
		return fmt.Errorf("payload exceeds maximum of %d keys", MaxPayloadKeys)
	}
	if in.SentimentScore != nil && (*in.SentimentScore < 0 || *in.SentimentScore > 1) {
		return fmt.Errorf("sentiment_score must be between 0 and 1")
	}
	if in.Revenue != nil && *in.Revenue < 0 {
		return fmt.Errorf("revenue must be non-negative")
	}
	if in.Cost != nil && *in.Cost < 0 {
		return fmt.Errorf("cost must be non-negative")
	}
	return nil
}

// CreateExperimentRequest is the request body for POST /v1/experiments.
type CreateExperimentRequest struct {
	Name                string               `json:"name"`
	TemplateID          uuid.UUID            `json:"template_id"`
	Variants            []CreateVariantInput `json:"variants"`
	ControlVariantName  string               `json:"control_variant_name"`
	MinimumSampleSize   *int                 `json:"minimum_sample_size,omitempty"`
	ConfidenceThreshold *float64             `json:"confidence_threshold,omitempty"`
	PrimaryMetric       PrimaryMetric        `json:"primary_metric"`
}

// CreateVariantInput is one variant definition in a create request.
type CreateVariantInput struct {
	Name       string        `json:"name"`
	Allocation float64       `json:"allocation"`
	Config     VariantConfig `json:"config"`
}

// AssignVariantRequest is the request body for POST /v1/experiments/{id}/assignments.
type AssignVariantRequest struct {
	ContactID string `json:"contact_id"`
}

// AssignVariantResponse is the response for a variant assignment.
type AssignVariantResponse struct {
	ExperimentID uuid.UUID `json:"experiment_id"`
	ContactID    string    `json:"contact_id"`
	VariantID    uuid.UUID `json:"variant_id"`
	VariantName  string    `json:"variant_name"`
}

// RecordInteractionRequest is the request body for POST /v1/experiments/{id}/interactions.
type RecordInteractionRequest struct {
	ContactID       string          `json:"contact_id"`
	InteractionType InteractionType `json:"interaction_type"`
	Revenue         *float64        `json:"revenue,omitempty"`
	OccurredAt      *time.Time      `json:"occurred_at,omitempty"`
}

// AuthTokenRequest is the request body for POST /auth/token.
type AuthTokenRequest struct {
	ClientID string `json:"client_id"`
	APIKey   string `json:"api_key"`
}

// AuthTokenResponse is the response for POST /auth/token.
type AuthTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Postgres string `json:"postgres"`
	Uptime   int64  `json:"uptime_seconds"`
}
