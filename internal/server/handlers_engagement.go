package server

import (
	"net/http"

	"github.com/cadencehq/cadence/internal/model"
	"github.com/cadencehq/cadence/internal/service/engagement"
)

// stakeholderFilterFromQuery parses the optional ?type= filter.
func stakeholderFilterFromQuery(r *http.Request) (*model.StakeholderType, bool) {
	s := r.URL.Query().Get("type")
	if s == "" {
		return nil, true
	}
	for _, t := range model.StakeholderTypes {
		if model.StakeholderType(s) == t {
			st := t
			return &st, true
		}
	}
	return nil, false
}

// HandleStakeholderEngagement handles GET /v1/engagement/stakeholders.
func (h *Handlers) HandleStakeholderEngagement(w http.ResponseWriter, r *http.Request) {
	typeFilter, ok := stakeholderFilterFromQuery(r)
	if !ok {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "unknown stakeholder type")
		return
	}
	window, err := windowFromQuery(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	writeJSON(w, r, http.StatusOK, h.engagement.StakeholderEngagement(r.Context(), typeFilter, window))
}

// HandleEngagementHeatmap handles GET /v1/engagement/heatmap.
func (h *Handlers) HandleEngagementHeatmap(w http.ResponseWriter, r *http.Request) {
	typeFilter, ok := stakeholderFilterFromQuery(r)
	if !ok {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "unknown stakeholder type")
		return
	}
	window, err := windowFromQuery(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	writeJSON(w, r, http.StatusOK, h.engagement.Heatmap(r.Context(), typeFilter, window))
}

// HandleChannelPerformance handles GET /v1/engagement/channels.
func (h *Handlers) HandleChannelPerformance(w http.ResponseWriter, r *http.Request) {
	window, err := windowFromQuery(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	writeJSON(w, r, http.StatusOK, h.engagement.ChannelPerformance(r.Context(), window))
}

// HandleContentPerformance handles GET /v1/engagement/content.
func (h *Handlers) HandleContentPerformance(w http.ResponseWriter, r *http.Request) {
	window, err := windowFromQuery(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	writeJSON(w, r, http.StatusOK, h.engagement.ContentPerformance(r.Context(), window))
}

// HandleEngagementTrends handles GET /v1/engagement/trends.
func (h *Handlers) HandleEngagementTrends(w http.ResponseWriter, r *http.Request) {
	granularity := engagement.GranularityDay
	switch g := r.URL.Query().Get("granularity"); g {
	case "", "day":
	case "week":
		granularity = engagement.GranularityWeek
	case "month":
		granularity = engagement.GranularityMonth
	default:
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "granularity must be day, week, or month")
		return
	}
	window, err := windowFromQuery(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	writeJSON(w, r, http.StatusOK, h.engagement.Trends(r.Context(), granularity, window))
}
