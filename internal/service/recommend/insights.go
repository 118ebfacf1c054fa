package recommend

import (
	"fmt"
	"sort"

	"github.com/cadencehq/cadence/internal/model"
)

// buildInsights converts the gathered aggregates into narrative
// observations: strengths worth protecting, weaknesses worth watching,
// and opportunities the recommendation families quantify elsewhere.
func buildInsights(in inputs) []model.OptimizationInsight {
	var out []model.OptimizationInsight

	if len(in.reports) > 0 {
		best, worst := in.reports[0], in.reports[0]
		var improving, declining int
		for _, r := range in.reports {
			if r.PerformanceScore > best.PerformanceScore {
				best = r
			}
			if r.PerformanceScore < worst.PerformanceScore {
				worst = r
			}
			switch r.Trend {
			case model.TrendImproving:
				improving++
			case model.TrendDeclining:
				declining++
			}
		}
		out = append(out, model.OptimizationInsight{
			Type:        "strength",
			Title:       fmt.Sprintf("%q is the strongest template", best.Metrics.TemplateName),
			Description: fmt.Sprintf("It scores %.1f on the weighted performance composite.", best.PerformanceScore),
			Metric:      "performance_score",
			Value:       best.PerformanceScore,
		})
		if worst.Metrics.TemplateID != best.Metrics.TemplateID {
			out = append(out, model.OptimizationInsight{
				Type:        "weakness",
				Title:       fmt.Sprintf("%q drags the portfolio", worst.Metrics.TemplateName),
				Description: fmt.Sprintf("It scores %.1f, the lowest composite in the catalog.", worst.PerformanceScore),
				Metric:      "performance_score",
				Value:       worst.PerformanceScore,
			})
		}
		if declining > improving {
			out = append(out, model.OptimizationInsight{
				Type:        "threat",
				Title:       "More templates declining than improving",
				Description: fmt.Sprintf("%d templates are trending down against %d trending up.", declining, improving),
				Metric:      "declining_templates",
				Value:       float64(declining),
			})
		}
	}

	if len(in.stakeholder) > 0 {
		sorted := make([]model.StakeholderEngagement, len(in.stakeholder))
		copy(sorted, in.stakeholder)
		sort.Slice(sorted, func(i, j int) bool {
			return sorted[i].EngagementRate > sorted[j].EngagementRate
		})
		top := sorted[0]
		out = append(out, model.OptimizationInsight{
			Type:        "strength",
			Title:       fmt.Sprintf("%s contacts are the most engaged audience", top.StakeholderType),
			Description: fmt.Sprintf("They engage at %.1f%% across %d contacts.", top.EngagementRate, top.TotalContacts),
			Metric:      "engagement_rate",
			Value:       top.EngagementRate,
		})
	}

	for _, cp := range in.channels {
		if cp.Delivered > 0 && cp.ResponseRate > channelStrongResponse {
			out = append(out, model.OptimizationInsight{
				Type:        "opportunity",
				Title:       fmt.Sprintf("%s is an underused response driver", cp.Channel),
				Description: fmt.Sprintf("Response rate is %.1f%% on %d deliveries.", cp.ResponseRate, cp.Delivered),
				Metric:      "response_rate",
				Value:       cp.ResponseRate,
			})
		}
	}

	return out
}
