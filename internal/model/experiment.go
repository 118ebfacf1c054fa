package model

import (
	"time"

	"github.com/google/uuid"
)

// ExperimentStatus is the lifecycle state of an experiment.
type ExperimentStatus string

const (
	ExperimentDraft     ExperimentStatus = "draft"
	ExperimentRunning   ExperimentStatus = "running"
	ExperimentPaused    ExperimentStatus = "paused"
	ExperimentCompleted ExperimentStatus = "completed"
)

// PrimaryMetric selects which rate metric decides an experiment's winner.
type PrimaryMetric string

const (
	MetricOpenRate       PrimaryMetric = "openRate"
	MetricClickRate      PrimaryMetric = "clickRate"
	MetricResponseRate   PrimaryMetric = "responseRate"
	MetricConversionRate PrimaryMetric = "conversionRate"
	MetricRevenue        PrimaryMetric = "revenue"
)

// ValidPrimaryMetric reports whether m is a supported primary metric.
func ValidPrimaryMetric(m PrimaryMetric) bool {
	switch m {
	case MetricOpenRate, MetricClickRate, MetricResponseRate, MetricConversionRate, MetricRevenue:
		return true
	}
	return false
}

// VariantConfig is the free-form configuration for one experiment arm.
type VariantConfig struct {
	SubjectLine     string            `json:"subject_line,omitempty"`
	PreviewText     string            `json:"preview_text,omitempty"`
	ContentTemplate string            `json:"content_template,omitempty"`
	SendTime        string            `json:"send_time,omitempty"` // HH:MM
	SendDay         *int              `json:"send_day,omitempty"`  // 0-6 (Sunday-Saturday)
	DelayHours      *int              `json:"delay_hours,omitempty"`
	Channel         Channel           `json:"channel,omitempty"`
	Personalization map[string]string `json:"personalization,omitempty"`
}

// VariantMetrics is a derived metrics snapshot for one variant.
// Never mutated directly; recomputed from the event log on each query.
type VariantMetrics struct {
	SampleSize      int     `json:"sample_size"`
	OpenRate        float64 `json:"open_rate"`
	ClickRate       float64 `json:"click_rate"`
	ResponseRate    float64 `json:"response_rate"`
	ConversionRate  float64 `json:"conversion_rate"`
	Revenue         float64 `json:"revenue"`
	ConfidenceLevel float64 `json:"confidence_level"`
	IsWinner        bool    `json:"is_winner"`
}

// PrimaryValue returns the metric selected by m.
func (v VariantMetrics) PrimaryValue(m PrimaryMetric) float64 {
	switch m {
	case MetricOpenRate:
		return v.OpenRate
	case MetricClickRate:
		return v.ClickRate
	case MetricResponseRate:
		return v.ResponseRate
	case MetricRevenue:
		return v.Revenue
	default:
		return v.ConversionRate
	}
}

// Variant is one configuration arm of an experiment.
type Variant struct {
	ID         uuid.UUID       `json:"id"`
	Name       string          `json:"name"`
	Allocation float64         `json:"allocation"` // Percentage of traffic (0-100).
	Config     VariantConfig   `json:"config"`
	Metrics    *VariantMetrics `json:"metrics,omitempty"`
}

// Experiment is an A/B test definition over one automation template.
// Persisted in the experiments table; status transitions use
// compare-and-swap so concurrent callers cannot skip states.
type Experiment struct {
	ID                  uuid.UUID        `json:"id"`
	Name                string           `json:"name"`
	TemplateID          uuid.UUID        `json:"template_id"`
	Status              ExperimentStatus `json:"status"`
	StartDate           time.Time        `json:"start_date"`
	EndDate             *time.Time       `json:"end_date,omitempty"`
	Variants            []Variant        `json:"variants"`
	ControlVariantID    uuid.UUID        `json:"control_variant_id"`
	MinimumSampleSize   int              `json:"minimum_sample_size"`
	ConfidenceThreshold float64          `json:"confidence_threshold"` // 0-100.
	PrimaryMetric       PrimaryMetric    `json:"primary_metric"`
	WinnerVariantID     *uuid.UUID       `json:"winner_variant_id,omitempty"`
	Results             *ExperimentSummary `json:"results,omitempty"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

// ControlVariant returns the designated control arm, or nil if the
// definition is malformed.
func (e *Experiment) ControlVariant() *Variant {
	for i := range e.Variants {
		if e.Variants[i].ID == e.ControlVariantID {
			return &e.Variants[i]
		}
	}
	return nil
}

// ExperimentSummary holds the final aggregate results of an experiment.
type ExperimentSummary struct {
	TotalParticipants       int     `json:"total_participants"`
	StatisticalSignificance bool    `json:"statistical_significance"`
	ImprovementOverControl  float64 `json:"improvement_over_control"`
	EstimatedAnnualImpact   float64 `json:"estimated_annual_impact"`
}

// ExperimentResults bundles an experiment with recomputed per-variant
// metrics, the summary, and the winner (nil when undetermined).
type ExperimentResults struct {
	Experiment     Experiment        `json:"experiment"`
	VariantMetrics []Variant         `json:"variant_metrics"`
	Summary        ExperimentSummary `json:"summary"`
	WinnerID       *uuid.UUID        `json:"winner_id,omitempty"`
}

// TestSuggestion proposes an A/B test for a template based on its
// current performance.
type TestSuggestion struct {
	TemplateID          uuid.UUID          `json:"template_id"`
	TemplateName        string             `json:"template_name"`
	SuggestionType      string             `json:"suggestion_type"` // subject_line | send_time | channel
	CurrentMetric       string             `json:"current_metric"`
	CurrentValue        float64            `json:"current_value"`
	SuggestedVariants   []SuggestedVariant `json:"suggested_variants"`
	ExpectedImprovement float64            `json:"expected_improvement"`
	Rationale           string             `json:"rationale"`
	Priority            Priority           `json:"priority"`
}

// SuggestedVariant is one proposed arm within a TestSuggestion.
type SuggestedVariant struct {
	Name       string        `json:"name"`
	Allocation float64       `json:"allocation"`
	Config     VariantConfig `json:"config"`
}
