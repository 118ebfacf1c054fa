package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/cadencehq/cadence/internal/model"
	"github.com/cadencehq/cadence/internal/ratelimit"
)

// IngestEventsResponse reports how many events an ingest request persisted.
type IngestEventsResponse struct {
	Ingested int `json:"ingested"`
}

// HandleIngestEvents handles POST /v1/events. The whole batch is validated
// before anything is written; one bad event rejects the request.
func (h *Handlers) HandleIngestEvents(w http.ResponseWriter, r *http.Request) {
	var req model.IngestEventsRequest
	if err := decodeJSON(r, &req, h.maxRequestBodyBytes); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body")
		return
	}

	if len(req.Events) == 0 {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "events must not be empty")
		return
	}
	if len(req.Events) > h.maxIngestBatchSize {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput,
			fmt.Sprintf("batch exceeds maximum of %d events", h.maxIngestBatchSize))
		return
	}

	now := time.Now().UTC()
	events := make([]model.InteractionEvent, 0, len(req.Events))
	for i, in := range req.Events {
		if err := model.ValidateEventInput(in); err != nil {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput,
				fmt.Sprintf("events[%d]: %v", i, err))
			return
		}
		events = append(events, eventFromInput(in, now))
	}

	// The rate limit middleware charges one unit per request; a batch
	// carries proportional cost, so charge the remainder here. Limiter
	// errors fail open, matching the middleware.
	if h.limiter != nil && len(events) > 1 {
		if key := ratelimit.KeyFromContext(r.Context()); key != "" {
			ok, err := h.limiter.AllowN(r.Context(), key, len(events)-1)
			if err == nil && !ok {
				w.Header().Set("Retry-After", "1")
				writeError(w, r, http.StatusTooManyRequests, model.ErrCodeRateLimited,
					"batch exceeds available rate capacity")
				return
			}
		}
	}

	inserted, err := h.db.InsertEvents(r.Context(), events)
	if err != nil {
		h.writeInternalError(w, r, "failed to insert events", err)
		return
	}

	h.logger.Info("ingested events",
		"count", inserted,
		"request_id", RequestIDFromContext(r.Context()))
	writeJSON(w, r, http.StatusCreated, IngestEventsResponse{Ingested: int(inserted)})
}

// eventFromInput fills server-side fields and defaults for an ingested event.
func eventFromInput(in model.EventInput, now time.Time) model.InteractionEvent {
	occurredAt := now
	if in.OccurredAt != nil {
		occurredAt = in.OccurredAt.UTC()
	}
	channel := in.Channel
	if channel == "" {
		channel = model.ChannelEmail
	}
	status := in.Status
	if status == "" {
		status = "completed"
	}
	return model.InteractionEvent{
		ID:                uuid.New(),
		TemplateID:        in.TemplateID,
		ExperimentID:      in.ExperimentID,
		VariantID:         in.VariantID,
		ContactID:         in.ContactID,
		AccountID:         in.AccountID,
		InteractionType:   in.InteractionType,
		Channel:           channel,
		Revenue:           in.Revenue,
		Cost:              in.Cost,
		ResponseTimeHours: in.ResponseTimeHours,
		Engaged:           model.EngagedType(in.InteractionType),
		SequenceStep:      in.SequenceStep,
		SequenceCompleted: in.SequenceCompleted,
		ContentType:       in.ContentType,
		SubjectLine:       in.SubjectLine,
		PreviewText:       in.PreviewText,
		SentimentScore:    in.SentimentScore,
		Status:            status,
		Payload:           in.Payload,
		OccurredAt:        occurredAt,
		CreatedAt:         now,
	}
}
