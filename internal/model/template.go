package model

import (
	"time"

	"github.com/google/uuid"
)

// Trend is the direction of a template's recent performance relative
// to the prior period.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendStable    Trend = "stable"
	TrendDeclining Trend = "declining"
)

// Template is an automation template (an email sequence, call cadence,
// or similar) whose executions emit interaction events.
type Template struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	AutomationType string    `json:"automation_type"`
	Channel        Channel   `json:"channel"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
}

// TemplateMetrics is the recomputed performance snapshot for one
// template over a window.
type TemplateMetrics struct {
	TemplateID     uuid.UUID `json:"template_id"`
	TemplateName   string    `json:"template_name"`
	AutomationType string    `json:"automation_type"`
	Executions     int       `json:"executions"`
	Completed      int       `json:"completed"`
	Failed         int       `json:"failed"`
	SuccessRate    float64   `json:"success_rate"`
	OpenRate       float64   `json:"open_rate"`
	ClickRate      float64   `json:"click_rate"`
	ResponseRate   float64   `json:"response_rate"`
	ConversionRate float64   `json:"conversion_rate"`
	EngagementRate float64   `json:"engagement_rate"`
	UniqueContacts int       `json:"unique_contacts"`
	Revenue        float64   `json:"revenue"`
	Cost           float64   `json:"cost"`
	ROI            float64   `json:"roi"`
}

// PerformanceReport is the scored and trended report for one template.
type PerformanceReport struct {
	Metrics          TemplateMetrics `json:"metrics"`
	PerformanceScore float64         `json:"performance_score"` // 0-100 weighted composite.
	Trend            Trend           `json:"trend"`
	TrendDelta       float64         `json:"trend_delta"` // Percent change, recent vs prior period.
}

// TimelinePoint is one bucket in a template's execution timeline.
type TimelinePoint struct {
	Period      time.Time `json:"period"`
	Executions  int       `json:"executions"`
	Completed   int       `json:"completed"`
	Failed      int       `json:"failed"`
	SuccessRate float64   `json:"success_rate"`
}
