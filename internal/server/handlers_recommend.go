package server

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cadencehq/cadence/internal/model"
	"github.com/cadencehq/cadence/internal/service/recommend"
)

// HandleRecommendations handles GET /v1/recommendations.
func (h *Handlers) HandleRecommendations(w http.ResponseWriter, r *http.Request) {
	window, err := windowFromQuery(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	recs, err := h.recommendations.Generate(r.Context(), window)
	if err != nil {
		h.writeInternalError(w, r, "failed to generate recommendations", err)
		return
	}
	writeJSON(w, r, http.StatusOK, recs)
}

// HandleInsights handles GET /v1/recommendations/insights.
func (h *Handlers) HandleInsights(w http.ResponseWriter, r *http.Request) {
	window, err := windowFromQuery(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	insights, err := h.recommendations.Insights(r.Context(), window)
	if err != nil {
		h.writeInternalError(w, r, "failed to generate insights", err)
		return
	}
	writeJSON(w, r, http.StatusOK, insights)
}

// HandlePredictiveInsights handles GET /v1/recommendations/predictive.
func (h *Handlers) HandlePredictiveInsights(w http.ResponseWriter, r *http.Request) {
	insights, err := h.recommendations.Predictive(r.Context())
	if err != nil {
		h.writeInternalError(w, r, "failed to compute predictive insights", err)
		return
	}
	writeJSON(w, r, http.StatusOK, insights)
}

// HandleExportRecommendations handles GET /v1/recommendations/export.
// The export is buffered before writing so a late serialization failure
// cannot corrupt a partially sent response.
func (h *Handlers) HandleExportRecommendations(w http.ResponseWriter, r *http.Request) {
	format := model.ExportFormat(r.URL.Query().Get("format"))
	if format == "" {
		format = model.ExportJSON
	}
	window, err := windowFromQuery(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	recs, err := h.recommendations.Generate(r.Context(), window)
	if err != nil {
		h.writeInternalError(w, r, "failed to generate recommendations", err)
		return
	}

	var buf bytes.Buffer
	if err := recommend.Export(&buf, recs, format); err != nil {
		if errors.Is(err, recommend.ErrUnsupportedFormat) {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeNotImplemented, err.Error())
			return
		}
		h.writeInternalError(w, r, "failed to export recommendations", err)
		return
	}

	filename := fmt.Sprintf("recommendations-%s.%s", time.Now().UTC().Format("2006-01-02"), format)
	switch format {
	case model.ExportCSV:
		w.Header().Set("Content-Type", "text/csv")
	default:
		w.Header().Set("Content-Type", "application/json")
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Warn("failed to write export response", "error", err)
	}
}
