package model

import (
	"time"

	"github.com/google/uuid"
)

// Opportunity is a sales opportunity tied to an account. Only
// closed-won opportunities earn attribution credit.
type Opportunity struct {
	ID        uuid.UUID  `json:"id"`
	AccountID string     `json:"account_id"`
	Name      string     `json:"name"`
	Amount    float64    `json:"amount"`
	Stage     string     `json:"stage"`
	ClosedWon bool       `json:"closed_won"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// TouchType classifies a touchpoint's position on the path to close.
type TouchType string

// Touch type values. A path's earliest touch is first, its latest is
// last, and everything between is multi.
const (
	TouchFirst TouchType = "first"
	TouchLast  TouchType = "last"
	TouchMulti TouchType = "multi"
)

// Touchpoint is one automation interaction on the path to a closed
// opportunity.
type Touchpoint struct {
	EventID         uuid.UUID       `json:"event_id"`
	TemplateID      uuid.UUID       `json:"template_id"`
	TemplateName    string          `json:"template_name"`
	InteractionType InteractionType `json:"interaction_type"`
	Channel         Channel         `json:"channel"`
	OccurredAt      time.Time       `json:"occurred_at"`
	TouchType       TouchType       `json:"touch_type"`
	Credit          float64         `json:"credit"` // Equal share of the opportunity amount.
}

// OpportunityAttribution is the touch path and credit split for one
// closed-won opportunity.
type OpportunityAttribution struct {
	OpportunityID uuid.UUID    `json:"opportunity_id"`
	AccountID     string       `json:"account_id"`
	Amount        float64      `json:"amount"`
	ClosedAt      time.Time    `json:"closed_at"`
	Touchpoints   []Touchpoint `json:"touchpoints"`
}

// ROIMetrics is the revenue and efficiency summary for one automation
// template under a given attribution window.
type ROIMetrics struct {
	TemplateID            uuid.UUID `json:"template_id"`
	TemplateName          string    `json:"template_name"`
	AutomationType        string    `json:"automation_type"`
	TotalRevenue          float64   `json:"total_revenue"`
	FirstTouchRevenue     float64   `json:"first_touch_revenue"`
	LastTouchRevenue      float64   `json:"last_touch_revenue"`
	MultiTouchRevenue     float64   `json:"multi_touch_revenue"`
	TotalCost             float64   `json:"total_cost"`
	ROI                   float64   `json:"roi"`
	Touchpoints           int       `json:"touchpoints"`
	Opportunities         int       `json:"opportunities"`
	ClosedWon             int       `json:"closed_won"`
	ConversionRate        float64   `json:"conversion_rate"`
	AvgDealSize           float64   `json:"avg_deal_size"`
	TimeToConversionDays  float64   `json:"time_to_conversion_days"`
	CustomerLifetimeValue float64   `json:"customer_lifetime_value"`
}

// AttributionByType breaks multi-touch revenue down by automation
// category.
type AttributionByType struct {
	AutomationType string  `json:"automation_type"`
	Revenue        float64 `json:"revenue"`
	Opportunities  int     `json:"opportunities"`
	Share          float64 `json:"share"` // Percentage of total attributed revenue.
}

// AttributionDashboard is the aggregate attribution view across all
// automations.
type AttributionDashboard struct {
	TotalAttributedRevenue float64             `json:"total_attributed_revenue"`
	TotalCost              float64             `json:"total_cost"`
	OverallROI             float64             `json:"overall_roi"`
	TopPerformers          []ROIMetrics        `json:"top_performers"`
	ByType                 []AttributionByType `json:"by_type"`
	Window                 TimeRange           `json:"window"`
}
