package experiment

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadencehq/cadence/internal/model"
)

func twoArmExperiment(t *testing.T, allocA, allocB float64) model.Experiment {
	t.Helper()
	a := model.Variant{ID: uuid.New(), Name: "A", Allocation: allocA}
	b := model.Variant{ID: uuid.New(), Name: "B", Allocation: allocB}
	return model.Experiment{
		ID:                  uuid.New(),
		Status:              model.ExperimentRunning,
		Variants:            []model.Variant{a, b},
		ControlVariantID:    a.ID,
		PrimaryMetric:       model.MetricConversionRate,
		ConfidenceThreshold: 95,
		StartDate:           time.Now().UTC().Add(-10 * 24 * time.Hour),
	}
}

func TestAssignDeterministic(t *testing.T) {
	e := twoArmExperiment(t, 50, 50)
	first := Assign(e, "contact-42")
	for i := 0; i < 50; i++ {
		assert.Equal(t, first.ID, Assign(e, "contact-42").ID,
			"same contact must always receive the same variant")
	}
}

func TestAssignRespectsBucketBoundaries(t *testing.T) {
	e := twoArmExperiment(t, 50, 50)

	// Find concrete contacts landing on each side of the split so the
	// boundary walk is exercised with real hashes, not synthetic buckets.
	var lowContact, highContact string
	for i := 0; lowContact == "" || highContact == ""; i++ {
		c := "contact-" + string(rune('a'+i%26)) + uuid.New().String()
		b := hashBucket(e.ID.String() + "-" + c)
		if b < 50 && lowContact == "" {
			lowContact = c
		}
		if b >= 50 && highContact == "" {
			highContact = c
		}
	}

	assert.Equal(t, "A", Assign(e, lowContact).Name)
	assert.Equal(t, "B", Assign(e, highContact).Name)
}

func TestAssignFallsBackToControl(t *testing.T) {
	// Allocations fractionally short of 100 leave the top buckets
	// unassigned; those contacts must land on the control variant.
	e := twoArmExperiment(t, 40, 40)
	var c string
	for i := 0; ; i++ {
		c = "fallback-" + uuid.New().String()
		if hashBucket(e.ID.String()+"-"+c) >= 80 {
			break
		}
	}
	assert.Equal(t, e.ControlVariantID, Assign(e, c).ID)
}

func TestAssignCoversAllVariants(t *testing.T) {
	e := twoArmExperiment(t, 10, 90)
	counts := map[string]int{}
	for i := 0; i < 2000; i++ {
		counts[Assign(e, "c-"+uuid.New().String()).Name]++
	}
	assert.Greater(t, counts["A"], 0)
	assert.Greater(t, counts["B"], counts["A"], "90%% arm should dominate a 10%% arm")
}

func TestVariantMetricsFunnel(t *testing.T) {
	vid := uuid.New()
	rev := 250.0

	mk := func(contact string, typ model.InteractionType, revenue *float64) model.InteractionEvent {
		return model.InteractionEvent{
			VariantID:       &vid,
			ContactID:       contact,
			InteractionType: typ,
			Revenue:         revenue,
		}
	}

	events := []model.InteractionEvent{
		mk("c1", model.InteractionDelivered, nil),
		mk("c2", model.InteractionDelivered, nil),
		mk("c1", model.InteractionOpened, nil),
		mk("c1", model.InteractionClicked, nil),
		mk("c1", model.InteractionResponded, nil),
		mk("c1", model.InteractionConverted, &rev),
	}

	m := variantMetrics(vid, events)
	assert.Equal(t, 2, m.SampleSize, "sample size counts distinct contacts")
	assert.Equal(t, 50.0, m.OpenRate)
	assert.Equal(t, 100.0, m.ClickRate, "click rate is relative to opens")
	assert.Equal(t, 50.0, m.ResponseRate)
	assert.Equal(t, 50.0, m.ConversionRate)
	assert.Equal(t, 250.0, m.Revenue)
	assert.Equal(t, 0.0, m.ConfidenceLevel, "confidence is zero below the sample floor")
}

func TestVariantMetricsIgnoresOtherVariants(t *testing.T) {
	vid, other := uuid.New(), uuid.New()
	events := []model.InteractionEvent{
		{VariantID: &other, ContactID: "c1", InteractionType: model.InteractionDelivered},
		{VariantID: nil, ContactID: "c2", InteractionType: model.InteractionDelivered},
	}
	m := variantMetrics(vid, events)
	assert.Equal(t, 0, m.SampleSize)
	assert.Equal(t, 0.0, m.OpenRate, "zero denominators yield zero, never NaN")
}

func metricVariant(name string, sample int, conversion, confidence float64) model.Variant {
	return model.Variant{
		ID:   uuid.New(),
		Name: name,
		Metrics: &model.VariantMetrics{
			SampleSize:      sample,
			ConversionRate:  conversion,
			ConfidenceLevel: confidence,
		},
	}
}

func TestDetermineWinnerRequiresTwoQualified(t *testing.T) {
	variants := []model.Variant{
		metricVariant("A", 500, 12, 99),
		metricVariant("B", 40, 20, 99), // below the qualifying floor
	}
	assert.Nil(t, determineWinner(variants, model.MetricConversionRate, 95),
		"one qualified variant is undetermined, not a winner")
}

func TestDetermineWinnerRequiresConfidence(t *testing.T) {
	variants := []model.Variant{
		metricVariant("A", 500, 12, 80),
		metricVariant("B", 500, 10, 85),
	}
	assert.Nil(t, determineWinner(variants, model.MetricConversionRate, 95))
}

func TestDetermineWinnerPicksTopMetric(t *testing.T) {
	a := metricVariant("A", 500, 12, 96)
	b := metricVariant("B", 500, 18, 97)
	got := determineWinner([]model.Variant{a, b}, model.MetricConversionRate, 95)
	require.NotNil(t, got)
	assert.Equal(t, b.ID, *got)
}

func TestImprovementOverControl(t *testing.T) {
	e := twoArmExperiment(t, 50, 50)
	e.Variants[0].Metrics = &model.VariantMetrics{ConversionRate: 10}
	e.Variants[1].Metrics = &model.VariantMetrics{ConversionRate: 13}

	got := improvementOverControl(e.Variants, e, e.Variants[1].ID)
	assert.InDelta(t, 30.0, got, 0.001)

	// Zero control value must not divide by zero.
	e.Variants[0].Metrics.ConversionRate = 0
	assert.Equal(t, 0.0, improvementOverControl(e.Variants, e, e.Variants[1].ID))
}

func TestAnnualImpactCompletedSpan(t *testing.T) {
	s := New(nil, 1000, discardLogger())

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(60 * 24 * time.Hour)
	e := model.Experiment{StartDate: start, EndDate: &end}
	// 300 participants over 60 days at a 10% improvement and $1000 deals:
	// 300/60*365 * 0.10 * 1000 = 182,500.
	got := s.annualImpact(e, 300, 10)
	assert.InDelta(t, 182500, got, 0.001)
}

func TestAnnualImpactOpenEndedUsesThirtyDays(t *testing.T) {
	s := New(nil, 1000, discardLogger())

	// An experiment still running is normalized to a 30 day span no
	// matter how long ago it started; elapsed wall clock must not leak
	// into the projection. 600/30*365 * 0.10 * 1000 = 730,000.
	e := model.Experiment{StartDate: time.Now().UTC().Add(-90 * 24 * time.Hour)}
	got := s.annualImpact(e, 600, 10)
	assert.InDelta(t, 730000, got, 0.001)
}

func TestDeriveResultsProjectsTotalVolume(t *testing.T) {
	s := New(nil, 1000, discardLogger())
	e := twoArmExperiment(t, 50, 50)

	// Control converts half its contacts, the challenger all of them,
	// both well past the qualifying floor.
	var events []model.InteractionEvent
	addArm := func(vid uuid.UUID, contacts, conversions int, prefix string) {
		for i := 0; i < contacts; i++ {
			id := vid
			c := fmt.Sprintf("%s-%d", prefix, i)
			events = append(events, model.InteractionEvent{
				VariantID: &id, ContactID: c, InteractionType: model.InteractionDelivered,
			})
			if i < conversions {
				events = append(events, model.InteractionEvent{
					VariantID: &id, ContactID: c, InteractionType: model.InteractionConverted,
				})
			}
		}
	}
	addArm(e.Variants[0].ID, 150, 75, "ctl")
	addArm(e.Variants[1].ID, 150, 150, "chl")

	results := s.deriveResults(e, events)
	require.NotNil(t, results.WinnerID)
	assert.Equal(t, e.Variants[1].ID, *results.WinnerID)
	assert.Equal(t, 300, results.Summary.TotalParticipants)
	assert.InDelta(t, 100, results.Summary.ImprovementOverControl, 0.001)

	// The projection extrapolates the whole experiment's volume, not
	// just the winning arm: 300/30*365 * 1.0 * 1000.
	assert.InDelta(t, 3650000, results.Summary.EstimatedAnnualImpact, 0.001)
}
