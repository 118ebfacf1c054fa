package templatestats

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/cadencehq/cadence/internal/model"
)

func tmpl() model.Template {
	return model.Template{ID: uuid.New(), Name: "renewal outreach", AutomationType: "email_sequence"}
}

func ev(typ model.InteractionType, contact, status string) model.InteractionEvent {
	return model.InteractionEvent{
		ID:              uuid.New(),
		ContactID:       contact,
		InteractionType: typ,
		Status:          status,
	}
}

func TestFoldEmpty(t *testing.T) {
	m := Fold(tmpl(), nil)
	assert.Zero(t, m.Executions)
	assert.Zero(t, m.SuccessRate)
	assert.Zero(t, m.OpenRate)
	assert.Zero(t, m.ROI, "zero cost never divides")
}

func TestFoldRates(t *testing.T) {
	cost, revenue := 10.0, 30.0
	events := []model.InteractionEvent{
		ev(model.InteractionSent, "c1", "completed"),
		ev(model.InteractionSent, "c2", "failed"),
		ev(model.InteractionDelivered, "c1", "completed"),
		ev(model.InteractionDelivered, "c2", "completed"),
		ev(model.InteractionOpened, "c1", "completed"),
		ev(model.InteractionConverted, "c1", "completed"),
	}
	events[0].Cost = &cost
	events[5].Revenue = &revenue

	m := Fold(tmpl(), events)
	assert.Equal(t, 2, m.Executions)
	assert.Equal(t, 1, m.Completed)
	assert.Equal(t, 1, m.Failed)
	assert.Equal(t, 50.0, m.SuccessRate)
	assert.Equal(t, 50.0, m.OpenRate)
	assert.Equal(t, 50.0, m.ConversionRate)
	assert.Equal(t, 2, m.UniqueContacts)
	assert.InDelta(t, 2.0, m.ROI, 0.0001, "(30-10)/10")
}

func TestScoreWeights(t *testing.T) {
	m := model.TemplateMetrics{
		SuccessRate:    100,
		EngagementRate: 100,
		ConversionRate: 100,
		ROI:            100,
	}
	assert.InDelta(t, 100.0, Score(m), 0.0001)

	m = model.TemplateMetrics{SuccessRate: 100}
	assert.InDelta(t, 30.0, Score(m), 0.0001)
}

func TestScoreROISaturates(t *testing.T) {
	low := Score(model.TemplateMetrics{ROI: 100})
	high := Score(model.TemplateMetrics{ROI: 10000})
	assert.Equal(t, low, high, "ROI beyond 100x contributes no further")

	negative := Score(model.TemplateMetrics{ROI: -50})
	assert.Equal(t, 0.0, negative)
}

func TestClassifyTrend(t *testing.T) {
	trend, delta := classifyTrend(110, 100)
	assert.Equal(t, model.TrendImproving, trend)
	assert.InDelta(t, 10.0, delta, 0.0001)

	trend, _ = classifyTrend(90, 100)
	assert.Equal(t, model.TrendDeclining, trend)

	trend, _ = classifyTrend(103, 100)
	assert.Equal(t, model.TrendStable, trend, "within the 5%% band")

	trend, delta = classifyTrend(50, 0)
	assert.Equal(t, model.TrendStable, trend, "no prior data is stable, not improving")
	assert.Zero(t, delta)
}
