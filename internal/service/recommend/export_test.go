package recommend

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadencehq/cadence/internal/model"
)

func sampleRecs() []model.Recommendation {
	r := newRecommendation(model.CategoryChannel, model.PriorityCritical,
		"Fix email deliverability", "Delivery rate 88.0% is below the floor.")
	r.Impact = model.Impact{Metric: "delivery_rate", CurrentValue: 88, ProjectedValue: 95, ImprovementPercentage: 7.95}
	r.Implementation = model.Implementation{
		Effort:    model.EffortMedium,
		Steps:     []string{"Verify SPF", "Prune bounces"},
		Timeframe: "1 week",
	}
	return []model.Recommendation{r}
}

func TestExportJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Export(&buf, sampleRecs(), model.ExportJSON))

	var decoded []model.Recommendation
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, model.PriorityCritical, decoded[0].Priority)
	assert.Equal(t, "Fix email deliverability", decoded[0].Title)
}

func TestExportCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Export(&buf, sampleRecs(), model.ExportCSV))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2, "header plus one record")
	assert.Equal(t, "id", rows[0][0])
	assert.Equal(t, "channel_strategy", rows[1][1])
	assert.Equal(t, "critical", rows[1][2])
	assert.Equal(t, "Verify SPF; Prune bounces", rows[1][11])
}

func TestExportCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Export(&buf, nil, model.ExportCSV))
	assert.Equal(t, 1, strings.Count(strings.TrimSpace(buf.String()), "\n")+1, "header only")
}

func TestExportPDFFails(t *testing.T) {
	var buf bytes.Buffer
	err := Export(&buf, sampleRecs(), model.ExportPDF)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.Contains(t, err.Error(), "not implemented")
	assert.Zero(t, buf.Len(), "no partial output on unsupported format")
}

func TestExportUnknownFormatFails(t *testing.T) {
	var buf bytes.Buffer
	err := Export(&buf, nil, model.ExportFormat("xlsx"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
