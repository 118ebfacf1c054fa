package server

import (
	"net/http"

	"github.com/cadencehq/cadence/internal/model"
)

// HandleAutomationROI handles GET /v1/attribution/automations/{id}.
func (h *Handlers) HandleAutomationROI(w http.ResponseWriter, r *http.Request) {
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

	roi, err := h.attribution.AutomationROI(r.Context(), id, window)
	if err != nil {
		writeStorageError(w, r, err, "template not found")
		return
	}
	writeJSON(w, r, http.StatusOK, roi)
}

// HandleAttributedOpportunities handles GET /v1/attribution/automations/{id}/opportunities.
func (h *Handlers) HandleAttributedOpportunities(w http.ResponseWriter, r *http.Request) {
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

	opps, err := h.attribution.AttributedOpportunities(r.Context(), id, window)
	if err != nil {
		writeStorageError(w, r, err, "template not found")
		return
	}
	writeJSON(w, r, http.StatusOK, opps)
}

// HandleOpportunityAttribution handles GET /v1/attribution/opportunities/{id}.
func (h *Handlers) HandleOpportunityAttribution(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	attr, err := h.attribution.OpportunityAttribution(r.Context(), id)
	if err != nil {
		writeStorageError(w, r, err, "opportunity not found")
		return
	}
	writeJSON(w, r, http.StatusOK, attr)
}

// HandleROIByType handles GET /v1/attribution/by-type.
func (h *Handlers) HandleROIByType(w http.ResponseWriter, r *http.Request) {
	window, err := windowFromQuery(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	byType, err := h.attribution.ROIByType(r.Context(), window)
	if err != nil {
		h.writeInternalError(w, r, "failed to compute attribution by type", err)
		return
	}
	writeJSON(w, r, http.StatusOK, byType)
}

// HandleAttributionDashboard handles GET /v1/attribution/dashboard.
func (h *Handlers) HandleAttributionDashboard(w http.ResponseWriter, r *http.Request) {
	window, err := windowFromQuery(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	dash, err := h.attribution.Dashboard(r.Context(), window)
	if err != nil {
		h.writeInternalError(w, r, "failed to compute attribution dashboard", err)
		return
	}
	writeJSON(w, r, http.StatusOK, dash)
}
