package server

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/cadencehq/cadence/internal/model"
)

// HandleAllTemplateMetrics handles GET /v1/templates/metrics.
func (h *Handlers) HandleAllTemplateMetrics(w http.ResponseWriter, r *http.Request) {
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
	writeJSON(w, r, http.StatusOK, metrics)
}

// HandleTemplateMetrics handles GET /v1/templates/{id}/metrics.
func (h *Handlers) HandleTemplateMetrics(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}
	window, err := windowFromQuery(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	metrics, err := h.templates.Metrics(r.Context(), id, window)
	if err != nil {
		writeStorageError(w, r, err, "template not found")
		return
	}
	writeJSON(w, r, http.StatusOK, metrics)
}

// HandleTemplateReport handles GET /v1/templates/{id}/report.
func (h *Handlers) HandleTemplateReport(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	report, err := h.templates.Report(r.Context(), id)
	if err != nil {
		writeStorageError(w, r, err, "template not found")
		return
	}
	writeJSON(w, r, http.StatusOK, report)
}

// HandleTemplateTimeline handles GET /v1/templates/{id}/timeline.
func (h *Handlers) HandleTemplateTimeline(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}
	window, err := windowFromQuery(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	timeline, err := h.templates.Timeline(r.Context(), id, window)
	if err != nil {
		writeStorageError(w, r, err, "template not found")
		return
	}
	writeJSON(w, r, http.StatusOK, timeline)
}

// HandleCompareTemplates handles GET /v1/templates/compare. With no ids
// parameter every template is ranked; otherwise ids is a comma-separated
// list of template UUIDs.
func (h *Handlers) HandleCompareTemplates(w http.ResponseWriter, r *http.Request) {
	var ids []uuid.UUID
	if raw := r.URL.Query().Get("ids"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			id, err := uuid.Parse(strings.TrimSpace(part))
			if err != nil {
				writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid template id "+part)
				return
			}
			ids = append(ids, id)
		}
	}

	reports, err := h.templates.CompareTemplates(r.Context(), ids)
	if err != nil {
		writeStorageError(w, r, err, "template not found")
		return
	}
	writeJSON(w, r, http.StatusOK, reports)
}
