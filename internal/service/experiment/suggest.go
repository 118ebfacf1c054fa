package experiment

import (
	"context"
	"fmt"

	"github.com/cadencehq/cadence/internal/model"
)

// Suggestion thresholds. A template below a floor (or above a volume
// bar with a weak rate) earns a proposed test; only the highest
// priority suggestion per template is kept.
const (
	suggestOpenRateFloor     = 20.0
	suggestSendTimeOpenRate  = 30.0
	suggestSendTimeMinVolume = 500
	suggestResponseRateFloor = 5.0
)

// SuggestTests proposes A/B tests for underperforming templates.
// Metrics are supplied by the caller (recomputed template snapshots);
// templates that already have a running experiment are skipped so a
// live test is never shadowed by a suggestion for the same lever.
func (s *Service) SuggestTests(ctx context.Context, metrics []model.TemplateMetrics) ([]model.TestSuggestion, error) {
	var suggestions []model.TestSuggestion

	for _, m := range metrics {
		running, err := s.db.ListRunningExperimentsByTemplate(ctx, m.TemplateID)
		if err != nil {
			return nil, fmt.Errorf("experiment: check running experiments: %w", err)
		}
		if len(running) > 0 {
			continue
		}

		if sug := suggestFor(m); sug != nil {
			suggestions = append(suggestions, *sug)
		}
	}
	return suggestions, nil
}

// suggestFor evaluates one template's metrics against the suggestion
// rules and returns the highest-priority match, or nil.
func suggestFor(m model.TemplateMetrics) *model.TestSuggestion {
	var best *model.TestSuggestion

	consider := func(s model.TestSuggestion) {
		if best == nil || model.PriorityRank[s.Priority] > model.PriorityRank[best.Priority] {
			best = &s
		}
	}

	if m.OpenRate < suggestOpenRateFloor {
		consider(model.TestSuggestion{
			TemplateID:     m.TemplateID,
			TemplateName:   m.TemplateName,
			SuggestionType: "subject_line",
			CurrentMetric:  "open_rate",
			CurrentValue:   m.OpenRate,
			SuggestedVariants: []model.SuggestedVariant{
				{Name: "control", Allocation: 50, Config: model.VariantConfig{}},
				{Name: "personalized subject", Allocation: 50, Config: model.VariantConfig{
					SubjectLine: "{{first_name}}, a quick question about {{account_name}}",
				}},
			},
			ExpectedImprovement: 25,
			Rationale: fmt.Sprintf("open rate %.1f%% is below the %.0f%% floor; subject line testing is the highest-leverage fix",
				m.OpenRate, suggestOpenRateFloor),
			Priority: model.PriorityHigh,
		})
	}

	if m.Executions > suggestSendTimeMinVolume && m.OpenRate < suggestSendTimeOpenRate {
		consider(model.TestSuggestion{
			TemplateID:     m.TemplateID,
			TemplateName:   m.TemplateName,
			SuggestionType: "send_time",
			CurrentMetric:  "open_rate",
			CurrentValue:   m.OpenRate,
			SuggestedVariants: []model.SuggestedVariant{
				{Name: "current schedule", Allocation: 50, Config: model.VariantConfig{}},
				{Name: "morning send", Allocation: 50, Config: model.VariantConfig{SendTime: "09:00"}},
			},
			ExpectedImprovement: 15,
			Rationale: fmt.Sprintf("%d executions with a %.1f%% open rate; enough volume to test send timing",
				m.Executions, m.OpenRate),
			Priority: model.PriorityMedium,
		})
	}

	if m.ResponseRate < suggestResponseRateFloor {
		consider(model.TestSuggestion{
			TemplateID:     m.TemplateID,
			TemplateName:   m.TemplateName,
			SuggestionType: "channel",
			CurrentMetric:  "response_rate",
			CurrentValue:   m.ResponseRate,
			SuggestedVariants: []model.SuggestedVariant{
				{Name: "email only", Allocation: 50, Config: model.VariantConfig{Channel: model.ChannelEmail}},
				{Name: "email plus sms", Allocation: 50, Config: model.VariantConfig{Channel: model.ChannelSMS}},
			},
			ExpectedImprovement: 40,
			Rationale: fmt.Sprintf("response rate %.1f%% is below the %.0f%% floor; a channel mix test may reach contacts email misses",
				m.ResponseRate, suggestResponseRateFloor),
			Priority: model.PriorityHigh,
		})
	}

	return best
}
