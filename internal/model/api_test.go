package model_test

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadencehq/cadence/internal/model"
)

// ptr is a convenience helper for pointer literals in test cases.
func ptr[T any](v T) *T { return &v }

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts
}

func validEvent() model.EventInput {
	return model.EventInput{
		TemplateID:      uuid.New(),
		ContactID:       "contact-1",
		InteractionType: model.InteractionOpened,
		Channel:         model.ChannelEmail,
	}
}

// ---- ValidateEventInput --------------------------------------------------

func TestValidateEventInput_HappyPath(t *testing.T) {
	assert.NoError(t, model.ValidateEventInput(validEvent()))
}

func TestValidateEventInput_MissingTemplateID(t *testing.T) {
	in := validEvent()
	in.TemplateID = uuid.Nil
	err := model.ValidateEventInput(in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "template_id")
}

func TestValidateEventInput_MissingContactID(t *testing.T) {
	in := validEvent()
	in.ContactID = ""
	err := model.ValidateEventInput(in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "contact_id")
}

func TestValidateEventInput_ContactIDAtExactMax(t *testing.T) {
	in := validEvent()
	in.ContactID = strings.Repeat("c", model.MaxContactIDLen)
	assert.NoError(t, model.ValidateEventInput(in), "at the limit should pass")
}

func TestValidateEventInput_ContactIDOverMax(t *testing.T) {
	in := validEvent()
	in.ContactID = strings.Repeat("c", model.MaxContactIDLen+1)
	err := model.ValidateEventInput(in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "contact_id")
}

func TestValidateEventInput_UnknownInteractionType(t *testing.T) {
	in := validEvent()
	in.InteractionType = "forwarded"
	err := model.ValidateEventInput(in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "interaction_type")
}

func TestValidateEventInput_SentimentOutOfRange(t *testing.T) {
	in := validEvent()
	in.SentimentScore = ptr(1.2)
	err := model.ValidateEventInput(in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sentiment_score")

	in.SentimentScore = ptr(-0.1)
	assert.Error(t, model.ValidateEventInput(in))
}

func TestValidateEventInput_NegativeRevenueAndCost(t *testing.T) {
	in := validEvent()
	in.Revenue = ptr(-10.0)
	require.Error(t, model.ValidateEventInput(in))

	in = validEvent()
	in.Cost = ptr(-0.5)
	require.Error(t, model.ValidateEventInput(in))
}

// ---- Roles ---------------------------------------------------------------

func TestRoleAtLeast(t *testing.T) {
	assert.True(t, model.RoleAtLeast(model.RoleAdmin, model.RoleAnalyst))
	assert.True(t, model.RoleAtLeast(model.RoleAnalyst, model.RoleAnalyst))
	assert.False(t, model.RoleAtLeast(model.RoleIngest, model.RoleAnalyst))
	assert.False(t, model.RoleAtLeast(model.ClientRole("unknown"), model.RoleIngest))
}

// ---- TimeRange -----------------------------------------------------------

func TestTimeRangeContains(t *testing.T) {
	from := mustTime(t, "2026-01-01T00:00:00Z")
	to := mustTime(t, "2026-02-01T00:00:00Z")

	r := model.TimeRange{From: &from, To: &to}
	assert.True(t, r.Contains(mustTime(t, "2026-01-15T12:00:00Z")))
	assert.True(t, r.Contains(from), "inclusive lower bound")
	assert.True(t, r.Contains(to), "inclusive upper bound")
	assert.False(t, r.Contains(mustTime(t, "2025-12-31T23:59:59Z")))
	assert.False(t, r.Contains(mustTime(t, "2026-02-01T00:00:01Z")))

	open := model.TimeRange{}
	assert.True(t, open.Contains(mustTime(t, "1999-01-01T00:00:00Z")))
}

// ---- Experiment helpers --------------------------------------------------

func TestExperimentControlVariant(t *testing.T) {
	control := model.Variant{ID: uuid.New(), Name: "control", Allocation: 50}
	challenger := model.Variant{ID: uuid.New(), Name: "challenger", Allocation: 50}

	e := model.Experiment{
		Variants:         []model.Variant{control, challenger},
		ControlVariantID: control.ID,
	}
	got := e.ControlVariant()
	require.NotNil(t, got)
	assert.Equal(t, "control", got.Name)

	e.ControlVariantID = uuid.New()
	assert.Nil(t, e.ControlVariant())
}

func TestVariantMetricsPrimaryValue(t *testing.T) {
	m := model.VariantMetrics{
		OpenRate:       40,
		ClickRate:      30,
		ResponseRate:   20,
		ConversionRate: 10,
		Revenue:        500,
	}
	assert.Equal(t, 40.0, m.PrimaryValue(model.MetricOpenRate))
	assert.Equal(t, 30.0, m.PrimaryValue(model.MetricClickRate))
	assert.Equal(t, 20.0, m.PrimaryValue(model.MetricResponseRate))
	assert.Equal(t, 10.0, m.PrimaryValue(model.MetricConversionRate))
	assert.Equal(t, 500.0, m.PrimaryValue(model.MetricRevenue))
	assert.Equal(t, 10.0, m.PrimaryValue(model.PrimaryMetric("bogus")), "unknown metric falls back to conversion rate")
}
