package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/cadencehq/cadence/internal/model"
	"github.com/cadencehq/cadence/internal/service/experiment"
	"github.com/cadencehq/cadence/internal/storage"
)

// writeExperimentError maps experiment service errors to HTTP statuses.
func writeExperimentError(w http.ResponseWriter, r *http.Request, h *Handlers, err error, context string) {
	switch {
	case errors.Is(err, experiment.ErrInvalid):
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "experiment not found")
	case errors.Is(err, storage.ErrConflict):
		writeError(w, r, http.StatusConflict, model.ErrCodeConflict, err.Error())
	default:
		h.writeInternalError(w, r, context, err)
	}
}

// HandleCreateExperiment handles POST /v1/experiments.
func (h *Handlers) HandleCreateExperiment(w http.ResponseWriter, r *http.Request) {
	var req model.CreateExperimentRequest
	if err := decodeJSON(r, &req, h.maxRequestBodyBytes); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body")
		return
	}

	e, err := h.experiments.Create(r.Context(), req)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "template not found")
			return
		}
		writeExperimentError(w, r, h, err, "failed to create experiment")
		return
	}
	writeJSON(w, r, http.StatusCreated, e)
}

// HandleListExperiments handles GET /v1/experiments.
func (h *Handlers) HandleListExperiments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var status *model.ExperimentStatus
	if s := q.Get("status"); s != "" {
		st := model.ExperimentStatus(s)
		switch st {
		case model.ExperimentDraft, model.ExperimentRunning, model.ExperimentPaused, model.ExperimentCompleted:
			status = &st
		default:
			writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "unknown status "+s)
			return
		}
	}

	limit := 50
	if l := q.Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	offset := 0
	if o := q.Get("offset"); o != "" {
		if n, err := strconv.Atoi(o); err == nil && n >= 0 {
			offset = n
		}
	}

	items, total, err := h.experiments.List(r.Context(), status, limit, offset)
	if err != nil {
		h.writeInternalError(w, r, "failed to list experiments", err)
		return
	}
	writeList(w, r, items, total, limit, offset, len(items))
}

// HandleGetExperiment handles GET /v1/experiments/{id}.
func (h *Handlers) HandleGetExperiment(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	e, err := h.experiments.Get(r.Context(), id)
	if err != nil {
		writeStorageError(w, r, err, "experiment not found")
		return
	}
	writeJSON(w, r, http.StatusOK, e)
}

// handleTransition drives a lifecycle endpoint through the given transition
// and responds with the updated experiment.
func (h *Handlers) handleTransition(w http.ResponseWriter, r *http.Request, transition func(ctx context.Context, id uuid.UUID) error) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	if err := transition(r.Context(), id); err != nil {
		writeExperimentError(w, r, h, err, "failed to transition experiment")
		return
	}

	e, err := h.experiments.Get(r.Context(), id)
	if err != nil {
		writeStorageError(w, r, err, "experiment not found")
		return
	}
	writeJSON(w, r, http.StatusOK, e)
}

// HandleStartExperiment handles POST /v1/experiments/{id}/start.
func (h *Handlers) HandleStartExperiment(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, h.experiments.Start)
}

// HandlePauseExperiment handles POST /v1/experiments/{id}/pause.
func (h *Handlers) HandlePauseExperiment(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, h.experiments.Pause)
}

// HandleResumeExperiment handles POST /v1/experiments/{id}/resume.
func (h *Handlers) HandleResumeExperiment(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, h.experiments.Resume)
}

// HandleCompleteExperiment handles POST /v1/experiments/{id}/complete.
func (h *Handlers) HandleCompleteExperiment(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	results, err := h.experiments.Complete(r.Context(), id)
	if err != nil {
		writeExperimentError(w, r, h, err, "failed to complete experiment")
		return
	}
	writeJSON(w, r, http.StatusOK, results)
}

// HandleExperimentResults handles GET /v1/experiments/{id}/results.
func (h *Handlers) HandleExperimentResults(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	results, err := h.experiments.Results(r.Context(), id)
	if err != nil {
		writeExperimentError(w, r, h, err, "failed to compute experiment results")
		return
	}
	writeJSON(w, r, http.StatusOK, results)
}

// HandleAssignVariant handles POST /v1/experiments/{id}/assignments.
func (h *Handlers) HandleAssignVariant(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	var req model.AssignVariantRequest
	if err := decodeJSON(r, &req, h.maxRequestBodyBytes); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body")
		return
	}

	resp, err := h.experiments.AssignVariant(r.Context(), id, req.ContactID)
	if err != nil {
		writeExperimentError(w, r, h, err, "failed to assign variant")
		return
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// HandleRecordInteraction handles POST /v1/experiments/{id}/interactions.
func (h *Handlers) HandleRecordInteraction(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	var req model.RecordInteractionRequest
	if err := decodeJSON(r, &req, h.maxRequestBodyBytes); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body")
		return
	}

	if err := h.experiments.RecordInteraction(r.Context(), id, req); err != nil {
		writeExperimentError(w, r, h, err, "failed to record interaction")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// HandleTestSuggestions handles GET /v1/experiments/suggestions.
// Proposes A/B tests for templates whose current metrics leave room for
// improvement.
func (h *Handlers) HandleTestSuggestions(w http.ResponseWriter, r *http.Request) {
	window, err := windowFromQuery(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	metrics, err := h.templates.AllMetrics(r.Context(), window)
	if err != nil {
		h.writeInternalError(w, r, "failed to compute template metrics", err)
		return
	}

	suggestions, err := h.experiments.SuggestTests(r.Context(), metrics)
	if err != nil {
		h.writeInternalError(w, r, "failed to compute test suggestions", err)
		return
	}
	writeJSON(w, r, http.StatusOK, suggestions)
}
