package recommend

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadencehq/cadence/internal/model"
)

func report(name string, success float64, executions int, trend model.Trend) model.PerformanceReport {
	return model.PerformanceReport{
		Metrics: model.TemplateMetrics{
			TemplateID:   uuid.New(),
			TemplateName: name,
			SuccessRate:  success,
			Executions:   executions,
		},
		Trend: trend,
	}
}

func TestTemplateRecommendationsLaggard(t *testing.T) {
	reports := []model.PerformanceReport{
		report("strong", 90, 500, model.TrendStable),
		report("weak", 40, 500, model.TrendStable), // below 70% of the 65 average
	}
	recs := templateRecommendations(reports)
	require.Len(t, recs, 1)
	assert.Equal(t, model.CategoryTemplate, recs[0].Category)
	assert.Equal(t, model.PriorityHigh, recs[0].Priority, "high volume laggard escalates")
}

func TestTemplateRecommendationsLowVolumeLaggardIsMedium(t *testing.T) {
	reports := []model.PerformanceReport{
		report("strong", 90, 500, model.TrendStable),
		report("weak", 40, 50, model.TrendStable),
	}
	recs := templateRecommendations(reports)
	require.Len(t, recs, 1)
	assert.Equal(t, model.PriorityMedium, recs[0].Priority)
}

func TestTemplateRecommendationsDecliningTrend(t *testing.T) {
	reports := []model.PerformanceReport{
		report("fading", 80, 500, model.TrendDeclining),
		report("steady", 82, 500, model.TrendStable),
	}
	recs := templateRecommendations(reports)
	require.Len(t, recs, 1)
	assert.Contains(t, recs[0].Title, "fading")
}

func heatCell(st model.StakeholderType, day, hour int, score float64) model.HeatmapCell {
	return model.HeatmapCell{StakeholderType: st, Day: day, Hour: hour, EngagementScore: score}
}

func TestTimingRecommendations(t *testing.T) {
	cells := []model.HeatmapCell{
		heatCell(model.StakeholderDoctor, 2, 9, 60),
		heatCell(model.StakeholderDoctor, 2, 10, 55),
		heatCell(model.StakeholderDoctor, 3, 9, 50),
		heatCell(model.StakeholderDoctor, 4, 15, 5),
		heatCell(model.StakeholderDoctor, 5, 15, 5),
		heatCell(model.StakeholderDoctor, 5, 20, 5),
	}
	recs := timingRecommendations(cells)
	require.Len(t, recs, 1)
	assert.Equal(t, model.CategoryTiming, recs[0].Category)
	assert.Contains(t, recs[0].Title, "Doctor")
}

func TestTimingRecommendationsFlatHeatmap(t *testing.T) {
	cells := []model.HeatmapCell{
		heatCell(model.StakeholderNurse, 1, 9, 20),
		heatCell(model.StakeholderNurse, 2, 9, 20),
		heatCell(model.StakeholderNurse, 3, 9, 20),
		heatCell(model.StakeholderNurse, 4, 9, 20),
	}
	assert.Empty(t, timingRecommendations(cells))
}

func TestAudienceRecommendations(t *testing.T) {
	groups := []model.StakeholderEngagement{
		{StakeholderType: model.StakeholderTechnician, EngagementRate: 8, TotalContacts: 80},
		{StakeholderType: model.StakeholderDoctor, EngagementRate: 45, TotalContacts: 200},
		{StakeholderType: model.StakeholderNurse, EngagementRate: 8, TotalContacts: 20}, // too small to flag
	}
	recs := audienceRecommendations(groups)
	require.Len(t, recs, 2)

	var titles []string
	for _, r := range recs {
		titles = append(titles, r.Title)
	}
	assert.Contains(t, titles[0], "Technician")
	assert.Contains(t, titles[1], "Microsegment")
}

func channels(emailDelivery, emailOpen float64) []model.ChannelPerformance {
	return []model.ChannelPerformance{
		{Channel: model.ChannelEmail, Sent: 2000, Delivered: 1900,
			DeliveryRate: emailDelivery, OpenRate: emailOpen},
		{Channel: model.ChannelSMS},
		{Channel: model.ChannelCall},
		{Channel: model.ChannelInApp},
	}
}

func TestChannelRecommendationsDeliverabilityCritical(t *testing.T) {
	recs := channelRecommendations(channels(88, 30))
	require.NotEmpty(t, recs)
	assert.Equal(t, model.PriorityCritical, recs[0].Priority)
	assert.Contains(t, recs[0].Title, "deliverability")
}

func TestChannelRecommendationsOpenRateHigh(t *testing.T) {
	recs := channelRecommendations(channels(97, 12))
	require.NotEmpty(t, recs)
	assert.Equal(t, model.PriorityHigh, recs[0].Priority)
}

func TestChannelRecommendationsRebalance(t *testing.T) {
	chs := []model.ChannelPerformance{
		{Channel: model.ChannelEmail, Sent: 3000, Delivered: 2900, DeliveryRate: 96.7, OpenRate: 40, ResponseRate: 2},
		{Channel: model.ChannelCall, Sent: 1500, Delivered: 1500, ResponseRate: 15},
	}
	recs := channelRecommendations(chs)
	require.NotEmpty(t, recs)

	var rebalance *model.Recommendation
	for i := range recs {
		if recs[i].Priority == model.PriorityMedium {
			rebalance = &recs[i]
		}
	}
	require.NotNil(t, rebalance)
	assert.Contains(t, rebalance.Title, "call")
}

func TestContentRecommendationsOutlier(t *testing.T) {
	content := []model.ContentPerformance{
		{ContentType: "case_study", ConversionRate: 30},
		{ContentType: "case_study", ConversionRate: 5},
		{ContentType: "case_study", ConversionRate: 4},
	}
	recs := contentRecommendations(content)
	require.Len(t, recs, 1)
	assert.Contains(t, recs[0].Title, "case_study")
}

func TestContentRecommendationsSentiment(t *testing.T) {
	content := []model.ContentPerformance{
		{ContentType: "promo", ConversionRate: 5, AvgSentiment: 0.3, SentimentCount: 20},
	}
	recs := contentRecommendations(content)
	require.Len(t, recs, 1)
	assert.Equal(t, model.PriorityHigh, recs[0].Priority)

	// Too few samples: no flag.
	content[0].SentimentCount = 5
	assert.Empty(t, contentRecommendations(content))
}

func TestSequenceRecommendations(t *testing.T) {
	f := sequenceFunnel{
		TemplateID:   uuid.New(),
		TemplateName: "five step nurture",
		StepCounts:   map[int]int{1: 100, 2: 80, 3: 20, 4: 15},
		Completions:  10,
	}
	recs := sequenceRecommendations([]sequenceFunnel{f})
	require.Len(t, recs, 1)
	assert.Contains(t, recs[0].Description, "step 3", "worst drop-off is entering step 3")

	// Healthy completion rate: no flag.
	f.Completions = 60
	assert.Empty(t, sequenceRecommendations([]sequenceFunnel{f}))

	// Too few starts: no flag.
	f.Completions = 5
	f.StepCounts[1] = 40
	assert.Empty(t, sequenceRecommendations([]sequenceFunnel{f}))
}

func TestSortRecommendationsOrdering(t *testing.T) {
	mk := func(p model.Priority, imp float64) model.Recommendation {
		r := newRecommendation(model.CategoryTemplate, p, "t", "d")
		r.Impact.ImprovementPercentage = imp
		return r
	}
	recs := []model.Recommendation{
		mk(model.PriorityLow, 90),
		mk(model.PriorityCritical, 5),
		mk(model.PriorityHigh, 10),
		mk(model.PriorityHigh, 50),
		mk(model.PriorityMedium, 99),
	}
	sortRecommendations(recs)

	// Priority never decreases moving forward; ties are non-increasing
	// in improvement percentage.
	for i := 1; i < len(recs); i++ {
		pi, pj := model.PriorityRank[recs[i-1].Priority], model.PriorityRank[recs[i].Priority]
		require.GreaterOrEqual(t, pi, pj)
		if pi == pj {
			assert.GreaterOrEqual(t, recs[i-1].Impact.ImprovementPercentage, recs[i].Impact.ImprovementPercentage)
		}
	}
	assert.Equal(t, model.PriorityCritical, recs[0].Priority)
	assert.Equal(t, 50.0, recs[1].Impact.ImprovementPercentage)
}

func TestImprovement(t *testing.T) {
	assert.Equal(t, 0.0, improvement(0, 50))
	assert.InDelta(t, 100.0, improvement(10, 20), 0.0001)
	assert.InDelta(t, -50.0, improvement(20, 10), 0.0001)
}
