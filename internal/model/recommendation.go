package model

import (
	"time"

	"github.com/google/uuid"
)

// Priority ranks a recommendation's urgency.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// PriorityRank maps priorities to sortable rank, highest first.
var PriorityRank = map[Priority]int{
	PriorityCritical: 4,
	PriorityHigh:     3,
	PriorityMedium:   2,
	PriorityLow:      1,
}

// Category groups recommendations by the lever they pull.
type Category string

const (
	CategoryTemplate  Category = "template_optimization"
	CategoryTiming    Category = "timing_optimization"
	CategoryAudience  Category = "audience_targeting"
	CategoryChannel   Category = "channel_strategy"
	CategoryContent   Category = "content_optimization"
	CategorySequence  Category = "sequence_optimization"
)

// Effort estimates how much work a recommendation takes to implement.
type Effort string

const (
	EffortLow    Effort = "low"
	EffortMedium Effort = "medium"
	EffortHigh   Effort = "high"
)

// Impact quantifies the expected lift from acting on a recommendation.
type Impact struct {
	Metric                string  `json:"metric"`
	CurrentValue          float64 `json:"current_value"`
	ProjectedValue        float64 `json:"projected_value"`
	ImprovementPercentage float64 `json:"improvement_percentage"`
}

// Implementation describes the concrete steps behind a recommendation.
type Implementation struct {
	Effort    Effort   `json:"effort"`
	Steps     []string `json:"steps"`
	Timeframe string   `json:"timeframe"`
}

// Recommendation is one actionable optimization suggestion derived
// from the event log.
type Recommendation struct {
	ID             uuid.UUID      `json:"id"`
	Category       Category       `json:"category"`
	Priority       Priority       `json:"priority"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	Impact         Impact         `json:"impact"`
	Implementation Implementation `json:"implementation"`
	TemplateID     *uuid.UUID     `json:"template_id,omitempty"`
	GeneratedAt    time.Time      `json:"generated_at"`
}

// OptimizationInsight is a non-actionable observation surfaced
// alongside recommendations.
type OptimizationInsight struct {
	Type        string  `json:"type"` // strength | weakness | opportunity | threat
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Metric      string  `json:"metric,omitempty"`
	Value       float64 `json:"value,omitempty"`
}

// ChurnRisk is the predictive churn assessment for one account.
type ChurnRisk struct {
	AccountID      string   `json:"account_id"`
	RiskScore      float64  `json:"risk_score"` // 0-1, capped.
	Confidence     float64  `json:"confidence"` // Percentage.
	AtRisk         bool     `json:"at_risk"`
	Factors        []string `json:"factors"`
	NextBestAction *string  `json:"next_best_action,omitempty"`
}

// PredictiveInsights bundles per-account churn assessments.
type PredictiveInsights struct {
	Accounts    []ChurnRisk `json:"accounts"`
	AtRiskCount int         `json:"at_risk_count"`
	GeneratedAt time.Time   `json:"generated_at"`
}

// ExportFormat selects the serialization for a recommendations export.
type ExportFormat string

const (
	ExportJSON ExportFormat = "json"
	ExportCSV  ExportFormat = "csv"
	ExportPDF  ExportFormat = "pdf"
)
