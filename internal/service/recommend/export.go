package recommend

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cadencehq/cadence/internal/model"
)

// ErrUnsupportedFormat is returned for export formats the engine does
// not produce.
var ErrUnsupportedFormat = errors.New("recommend: unsupported export format")

// Export serializes a recommendation list to w. JSON and CSV are
// supported; PDF is explicitly not implemented and fails with a
// descriptive error rather than writing malformed bytes.
func Export(w io.Writer, recs []model.Recommendation, format model.ExportFormat) error {
	switch format {
	case model.ExportJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(recs); err != nil {
			return fmt.Errorf("recommend: encode JSON export: %w", err)
		}
		return nil
	case model.ExportCSV:
		return exportCSV(w, recs)
	case model.ExportPDF:
		return fmt.Errorf("%w: PDF export is not implemented; request json or csv", ErrUnsupportedFormat)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

func exportCSV(w io.Writer, recs []model.Recommendation) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{
		"id", "category", "priority", "title", "description",
		"metric", "current_value", "projected_value", "improvement_percentage",
		"effort", "timeframe", "steps", "template_id", "generated_at",
	}); err != nil {
		return fmt.Errorf("recommend: write CSV header: %w", err)
	}

	for _, r := range recs {
		templateID := ""
		if r.TemplateID != nil {
			templateID = r.TemplateID.String()
		}
		row := []string{
			r.ID.String(),
			string(r.Category),
			string(r.Priority),
			r.Title,
			r.Description,
			r.Impact.Metric,
			strconv.FormatFloat(r.Impact.CurrentValue, 'f', 2, 64),
			strconv.FormatFloat(r.Impact.ProjectedValue, 'f', 2, 64),
			strconv.FormatFloat(r.Impact.ImprovementPercentage, 'f', 2, 64),
			string(r.Implementation.Effort),
			r.Implementation.Timeframe,
			strings.Join(r.Implementation.Steps, "; "),
			templateID,
			r.GeneratedAt.UTC().Format("2006-01-02T15:04:05Z"),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("recommend: write CSV row: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("recommend: flush CSV export: %w", err)
	}
	return nil
}
