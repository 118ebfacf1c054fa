package recommend

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/cadencehq/cadence/internal/model"
)

// Heuristic thresholds. Each family reads a different aggregate; the
// constants are tuning knobs, not statistical claims.
const (
	templateLaggardFraction = 0.70
	templateVolumeBar       = 100

	timingTopBucketFactor = 1.5

	audienceLowEngagement     = 15.0
	audienceLowMinContacts    = 50
	audienceSegmentEngagement = 30.0
	audienceSegmentContacts   = 100

	channelDeliveryFloor  = 95.0
	channelOpenFloor      = 20.0
	channelDeliveryHealth = 90.0
	channelStrongResponse = 10.0
	channelVolumeBar      = 1000

	contentOutlierFactor   = 2.0
	contentSentimentFloor  = 0.5
	contentSentimentNFloor = 10

	sequenceCompletionFloor = 20.0
	sequenceStartsBar       = 50
)

func newRecommendation(cat model.Category, prio model.Priority, title, desc string) model.Recommendation {
	return model.Recommendation{
		ID:          uuid.New(),
		Category:    cat,
		Priority:    prio,
		Title:       title,
		Description: desc,
		GeneratedAt: time.Now().UTC(),
	}
}

// templateRecommendations flags templates lagging the cross-template
// average success rate and templates on a declining trend.
func templateRecommendations(reports []model.PerformanceReport) []model.Recommendation {
	if len(reports) == 0 {
		return nil
	}

	var avgSuccess float64
	for _, r := range reports {
		avgSuccess += r.Metrics.SuccessRate
	}
	avgSuccess /= float64(len(reports))

	var out []model.Recommendation
	for _, r := range reports {
		m := r.Metrics
		if avgSuccess > 0 && m.SuccessRate < avgSuccess*templateLaggardFraction {
			prio := model.PriorityMedium
			if m.Executions > templateVolumeBar {
				prio = model.PriorityHigh
			}
			rec := newRecommendation(model.CategoryTemplate, prio,
				fmt.Sprintf("Rework underperforming template %q", m.TemplateName),
				fmt.Sprintf("Success rate %.1f%% is well below the %.1f%% average across templates.",
					m.SuccessRate, avgSuccess))
			rec.TemplateID = &m.TemplateID
			rec.Impact = model.Impact{
				Metric:                "success_rate",
				CurrentValue:          m.SuccessRate,
				ProjectedValue:        avgSuccess,
				ImprovementPercentage: improvement(m.SuccessRate, avgSuccess),
			}
			rec.Implementation = model.Implementation{
				Effort: model.EffortMedium,
				Steps: []string{
					"Audit recent failed executions for delivery and content errors",
					"Compare structure against the top performing template of the same type",
					"Relaunch with corrected content and monitor for two weeks",
				},
				Timeframe: "2 weeks",
			}
			out = append(out, rec)
		}

		if r.Trend == model.TrendDeclining {
			rec := newRecommendation(model.CategoryTemplate, model.PriorityMedium,
				fmt.Sprintf("Arrest decline in template %q", m.TemplateName),
				fmt.Sprintf("Performance score dropped %.1f%% versus the prior period.", -r.TrendDelta))
			rec.TemplateID = &m.TemplateID
			rec.Impact = model.Impact{
				Metric:                "performance_score",
				CurrentValue:          r.PerformanceScore,
				ProjectedValue:        r.PerformanceScore * (1 - r.TrendDelta/100),
				ImprovementPercentage: -r.TrendDelta,
			}
			rec.Implementation = model.Implementation{
				Effort: model.EffortLow,
				Steps: []string{
					"Check for audience fatigue on the highest-volume segments",
					"Refresh subject lines and preview text",
				},
				Timeframe: "1 week",
			}
			out = append(out, rec)
		}
	}
	return out
}

// timingRecommendations flags stakeholder types whose best three
// heatmap buckets clearly beat their overall engagement, suggesting
// sends concentrate there.
func timingRecommendations(cells []model.HeatmapCell) []model.Recommendation {
	byType := make(map[model.StakeholderType][]model.HeatmapCell)
	for _, c := range cells {
		byType[c.StakeholderType] = append(byType[c.StakeholderType], c)
	}

	var out []model.Recommendation
	for _, st := range model.StakeholderTypes {
		group := byType[st]
		if len(group) < 4 {
			continue
		}

		var overall float64
		for _, c := range group {
			overall += c.EngagementScore
		}
		overall /= float64(len(group))
		if overall == 0 {
			continue
		}

		sorted := make([]model.HeatmapCell, len(group))
		copy(sorted, group)
		sort.Slice(sorted, func(i, j int) bool {
			return sorted[i].EngagementScore > sorted[j].EngagementScore
		})
		top := sorted[:3]
		var topMean float64
		for _, c := range top {
			topMean += c.EngagementScore
		}
		topMean /= 3

		if topMean > overall*timingTopBucketFactor {
			best := top[0]
			rec := newRecommendation(model.CategoryTiming, model.PriorityMedium,
				fmt.Sprintf("Shift %s sends toward peak windows", st),
				fmt.Sprintf("Top engagement windows average %.1f%% versus %.1f%% overall; best bucket is %s %02d:00.",
					topMean, overall, time.Weekday(best.Day), best.Hour))
			rec.Impact = model.Impact{
				Metric:                "engagement_score",
				CurrentValue:          overall,
				ProjectedValue:        topMean,
				ImprovementPercentage: improvement(overall, topMean),
			}
			rec.Implementation = model.Implementation{
				Effort:    model.EffortLow,
				Steps:     []string{"Reschedule sends for this stakeholder type into the top three windows"},
				Timeframe: "1 week",
			}
			out = append(out, rec)
		}
	}
	return out
}

// audienceRecommendations flags disengaged stakeholder groups and
// suggests microsegmentation for large engaged ones.
func audienceRecommendations(groups []model.StakeholderEngagement) []model.Recommendation {
	var out []model.Recommendation
	for _, g := range groups {
		if g.EngagementRate < audienceLowEngagement && g.TotalContacts > audienceLowMinContacts {
			rec := newRecommendation(model.CategoryAudience, model.PriorityHigh,
				fmt.Sprintf("Re-engage %s contacts", g.StakeholderType),
				fmt.Sprintf("%d contacts engage at only %.1f%%; content likely misses this role's priorities.",
					g.TotalContacts, g.EngagementRate))
			rec.Impact = model.Impact{
				Metric:                "engagement_rate",
				CurrentValue:          g.EngagementRate,
				ProjectedValue:        audienceLowEngagement,
				ImprovementPercentage: improvement(g.EngagementRate, audienceLowEngagement),
			}
			rec.Implementation = model.Implementation{
				Effort: model.EffortMedium,
				Steps: []string{
					"Interview a sample of contacts in this role about content relevance",
					"Draft role-specific messaging and validate with an A/B test",
				},
				Timeframe: "3 weeks",
			}
			out = append(out, rec)
		}

		if g.EngagementRate > audienceSegmentEngagement && g.TotalContacts > audienceSegmentContacts {
			rec := newRecommendation(model.CategoryAudience, model.PriorityLow,
				fmt.Sprintf("Microsegment the %s audience", g.StakeholderType),
				fmt.Sprintf("%d contacts engaging at %.1f%% can support finer targeting.",
					g.TotalContacts, g.EngagementRate))
			rec.Impact = model.Impact{
				Metric:                "engagement_rate",
				CurrentValue:          g.EngagementRate,
				ProjectedValue:        g.EngagementRate * 1.2,
				ImprovementPercentage: 20,
			}
			rec.Implementation = model.Implementation{
				Effort:    model.EffortHigh,
				Steps:     []string{"Split by specialty or facility size", "Tailor sequences per segment"},
				Timeframe: "1 month",
			}
			out = append(out, rec)
		}
	}
	return out
}

// channelRecommendations covers email deliverability, email open
// health, and cross-channel rebalancing.
func channelRecommendations(channels []model.ChannelPerformance) []model.Recommendation {
	var out []model.Recommendation
	var email *model.ChannelPerformance
	for i := range channels {
		if channels[i].Channel == model.ChannelEmail {
			email = &channels[i]
		}
	}

	if email != nil && email.Sent > 0 {
		if email.DeliveryRate < channelDeliveryFloor {
			rec := newRecommendation(model.CategoryChannel, model.PriorityCritical,
				"Fix email deliverability",
				fmt.Sprintf("Email delivery rate %.1f%% is below the %.0f%% floor; sender reputation is at risk.",
					email.DeliveryRate, channelDeliveryFloor))
			rec.Impact = model.Impact{
				Metric:                "delivery_rate",
				CurrentValue:          email.DeliveryRate,
				ProjectedValue:        channelDeliveryFloor,
				ImprovementPercentage: improvement(email.DeliveryRate, channelDeliveryFloor),
			}
			rec.Implementation = model.Implementation{
				Effort: model.EffortMedium,
				Steps: []string{
					"Verify SPF, DKIM, and DMARC records",
					"Prune hard-bounced addresses from all lists",
					"Warm up any recently added sending domains",
				},
				Timeframe: "1 week",
			}
			out = append(out, rec)
		} else if email.OpenRate < channelOpenFloor && email.DeliveryRate > channelDeliveryHealth {
			rec := newRecommendation(model.CategoryChannel, model.PriorityHigh,
				"Lift email open rates",
				fmt.Sprintf("Delivery is healthy at %.1f%% but only %.1f%% of delivered email is opened.",
					email.DeliveryRate, email.OpenRate))
			rec.Impact = model.Impact{
				Metric:                "open_rate",
				CurrentValue:          email.OpenRate,
				ProjectedValue:        channelOpenFloor,
				ImprovementPercentage: improvement(email.OpenRate, channelOpenFloor),
			}
			rec.Implementation = model.Implementation{
				Effort:    model.EffortLow,
				Steps:     []string{"Run subject line experiments on the three highest-volume templates"},
				Timeframe: "2 weeks",
			}
			out = append(out, rec)
		}
	}

	// Rebalance when one high-volume channel clearly outperforms
	// another on response rate.
	for _, strong := range channels {
		if strong.ResponseRate <= channelStrongResponse || strong.Delivered <= channelVolumeBar {
			continue
		}
		for _, weak := range channels {
			if weak.Channel == strong.Channel || weak.Delivered == 0 {
				continue
			}
			if weak.ResponseRate < strong.ResponseRate/2 {
				rec := newRecommendation(model.CategoryChannel, model.PriorityMedium,
					fmt.Sprintf("Shift volume from %s to %s", weak.Channel, strong.Channel),
					fmt.Sprintf("%s responds at %.1f%% on %d deliveries while %s manages only %.1f%%.",
						strong.Channel, strong.ResponseRate, strong.Delivered, weak.Channel, weak.ResponseRate))
				rec.Impact = model.Impact{
					Metric:                "response_rate",
					CurrentValue:          weak.ResponseRate,
					ProjectedValue:        strong.ResponseRate,
					ImprovementPercentage: improvement(weak.ResponseRate, strong.ResponseRate),
				}
				rec.Implementation = model.Implementation{
					Effort:    model.EffortMedium,
					Steps:     []string{"Move the lowest-performing sequences to the stronger channel"},
					Timeframe: "2 weeks",
				}
				out = append(out, rec)
			}
		}
	}
	return out
}

// contentRecommendations flags outlier winners worth generalizing and
// content types with poor sentiment.
func contentRecommendations(content []model.ContentPerformance) []model.Recommendation {
	type typeAgg struct {
		best       model.ContentPerformance
		sum        float64
		n          int
		sentSum    float64
		sentN      int
		totalSentN int
	}
	byType := make(map[string]*typeAgg)
	for _, cp := range content {
		a := byType[cp.ContentType]
		if a == nil {
			a = &typeAgg{best: cp}
			byType[cp.ContentType] = a
		}
		if cp.ConversionRate > a.best.ConversionRate {
			a.best = cp
		}
		a.sum += cp.ConversionRate
		a.n++
		if cp.SentimentCount > 0 {
			a.sentSum += cp.AvgSentiment * float64(cp.SentimentCount)
			a.totalSentN += cp.SentimentCount
		}
	}

	types := make([]string, 0, len(byType))
	for t := range byType {
		types = append(types, t)
	}
	sort.Strings(types)

	var out []model.Recommendation
	for _, t := range types {
		a := byType[t]
		avg := a.sum / float64(a.n)
		if avg > 0 && a.best.ConversionRate > avg*contentOutlierFactor {
			rec := newRecommendation(model.CategoryContent, model.PriorityMedium,
				fmt.Sprintf("Generalize the winning %s formula", t),
				fmt.Sprintf("Best performer converts at %.1f%% against a %.1f%% type average; its structure should propagate.",
					a.best.ConversionRate, avg))
			rec.Impact = model.Impact{
				Metric:                "conversion_rate",
				CurrentValue:          avg,
				ProjectedValue:        a.best.ConversionRate,
				ImprovementPercentage: improvement(avg, a.best.ConversionRate),
			}
			rec.Implementation = model.Implementation{
				Effort:    model.EffortLow,
				Steps:     []string{"Extract the winning subject and body patterns", "Apply to sibling content"},
				Timeframe: "1 week",
			}
			out = append(out, rec)
		}

		if a.totalSentN > contentSentimentNFloor {
			avgSent := a.sentSum / float64(a.totalSentN)
			if avgSent < contentSentimentFloor {
				rec := newRecommendation(model.CategoryContent, model.PriorityHigh,
					fmt.Sprintf("Review negative sentiment on %s content", t),
					fmt.Sprintf("Average response sentiment is %.2f across %d scored responses.",
						avgSent, a.totalSentN))
				rec.Impact = model.Impact{
					Metric:                "avg_sentiment",
					CurrentValue:          avgSent * 100,
					ProjectedValue:        contentSentimentFloor * 100,
					ImprovementPercentage: improvement(avgSent*100, contentSentimentFloor*100),
				}
				rec.Implementation = model.Implementation{
					Effort:    model.EffortMedium,
					Steps:     []string{"Read the lowest-sentiment responses", "Rewrite tone and cadence of this content type"},
					Timeframe: "2 weeks",
				}
				out = append(out, rec)
			}
		}
	}
	return out
}

// sequenceFunnel is a per-template step funnel reconstructed from
// sequence_step fields.
type sequenceFunnel struct {
	TemplateID   uuid.UUID
	TemplateName string
	StepCounts   map[int]int
	Completions  int
}

// sequenceRecommendations flags sequences that lose most contacts
// before completion, naming the step with the worst drop-off.
func sequenceRecommendations(funnels []sequenceFunnel) []model.Recommendation {
	var out []model.Recommendation
	for _, f := range funnels {
		starts := f.StepCounts[1]
		if starts <= sequenceStartsBar {
			continue
		}
		completionRate := float64(f.Completions) / float64(starts) * 100
		if completionRate >= sequenceCompletionFloor {
			continue
		}

		steps := make([]int, 0, len(f.StepCounts))
		for s := range f.StepCounts {
			steps = append(steps, s)
		}
		sort.Ints(steps)

		worstStep, worstDrop := 0, 0.0
		for i := 1; i < len(steps); i++ {
			prev := f.StepCounts[steps[i-1]]
			cur := f.StepCounts[steps[i]]
			if prev == 0 {
				continue
			}
			drop := float64(prev-cur) / float64(prev)
			if drop > worstDrop {
				worstDrop, worstStep = drop, steps[i]
			}
		}

		rec := newRecommendation(model.CategorySequence, model.PriorityHigh,
			fmt.Sprintf("Repair sequence drop-off in %q", f.TemplateName),
			fmt.Sprintf("Only %.1f%% of %d starters complete; the largest loss (%.0f%%) occurs entering step %d.",
				completionRate, starts, worstDrop*100, worstStep))
		tid := f.TemplateID
		rec.TemplateID = &tid
		rec.Impact = model.Impact{
			Metric:                "completion_rate",
			CurrentValue:          completionRate,
			ProjectedValue:        sequenceCompletionFloor,
			ImprovementPercentage: improvement(completionRate, sequenceCompletionFloor),
		}
		rec.Implementation = model.Implementation{
			Effort:    model.EffortMedium,
			Steps:     []string{fmt.Sprintf("Rework the message at step %d", worstStep), "Shorten the sequence if later steps add no conversions"},
			Timeframe: "2 weeks",
		}
		out = append(out, rec)
	}
	return out
}

// improvement returns the relative lift from current to projected as a
// percentage, 0 when current is 0.
func improvement(current, projected float64) float64 {
	if current == 0 {
		return 0
	}
	return (projected - current) / current * 100
}

// sortRecommendations orders by priority rank descending, then by
// improvement percentage descending.
func sortRecommendations(recs []model.Recommendation) {
	sort.SliceStable(recs, func(i, j int) bool {
		pi, pj := model.PriorityRank[recs[i].Priority], model.PriorityRank[recs[j].Priority]
		if pi != pj {
			return pi > pj
		}
		return recs[i].Impact.ImprovementPercentage > recs[j].Impact.ImprovementPercentage
	})
}
