package experiment

import (
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadencehq/cadence/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSuggestForHealthyTemplate(t *testing.T) {
	m := model.TemplateMetrics{
		TemplateID:   uuid.New(),
		TemplateName: "onboarding drip",
		Executions:   200,
		OpenRate:     45,
		ResponseRate: 12,
	}
	assert.Nil(t, suggestFor(m))
}

func TestSuggestForLowOpenRate(t *testing.T) {
	m := model.TemplateMetrics{
		TemplateID:   uuid.New(),
		TemplateName: "cold outreach",
		Executions:   200,
		OpenRate:     12,
		ResponseRate: 8,
	}
	sug := suggestFor(m)
	require.NotNil(t, sug)
	assert.Equal(t, "subject_line", sug.SuggestionType)
	assert.Equal(t, model.PriorityHigh, sug.Priority)
	assert.Len(t, sug.SuggestedVariants, 2)
}

func TestSuggestForSendTimeNeedsVolume(t *testing.T) {
	m := model.TemplateMetrics{
		TemplateID:   uuid.New(),
		TemplateName: "newsletter",
		Executions:   400, // below the volume bar
		OpenRate:     25,
		ResponseRate: 8,
	}
	assert.Nil(t, suggestFor(m))

	m.Executions = 600
	sug := suggestFor(m)
	require.NotNil(t, sug)
	assert.Equal(t, "send_time", sug.SuggestionType)
	assert.Equal(t, model.PriorityMedium, sug.Priority)
}

func TestSuggestForHighestPriorityWins(t *testing.T) {
	// Qualifies for both send_time (medium) and channel (high); only
	// the high-priority suggestion survives.
	m := model.TemplateMetrics{
		TemplateID:   uuid.New(),
		TemplateName: "renewal reminder",
		Executions:   800,
		OpenRate:     25,
		ResponseRate: 2,
	}
	sug := suggestFor(m)
	require.NotNil(t, sug)
	assert.Equal(t, "channel", sug.SuggestionType)
	assert.Equal(t, model.PriorityHigh, sug.Priority)
}
