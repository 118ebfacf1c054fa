package model

import "time"

// StakeholderType buckets contacts by their role at the account.
type StakeholderType string

const (
	StakeholderDoctor        StakeholderType = "Doctor"
	StakeholderNurse         StakeholderType = "Nurse"
	StakeholderAdministrator StakeholderType = "Administrator"
	StakeholderTechnician    StakeholderType = "Technician"
	StakeholderOther         StakeholderType = "Other"
)

// StakeholderTypes lists the classifier outputs in priority order.
var StakeholderTypes = []StakeholderType{
	StakeholderDoctor,
	StakeholderNurse,
	StakeholderAdministrator,
	StakeholderTechnician,
	StakeholderOther,
}

// TimeSlot buckets hours of the day for send-time analysis.
type TimeSlot string

const (
	SlotMorning   TimeSlot = "Morning"   // 06:00-11:59
	SlotAfternoon TimeSlot = "Afternoon" // 12:00-16:59
	SlotEvening   TimeSlot = "Evening"   // 17:00-20:59
	SlotNight     TimeSlot = "Night"
)

// TemplateEngagement is a per-template engagement line inside a
// stakeholder aggregate.
type TemplateEngagement struct {
	TemplateID   string  `json:"template_id"`
	TemplateName string  `json:"template_name"`
	EngagedCount int     `json:"engaged_count"`
	ResponseRate float64 `json:"response_rate"`
}

// StakeholderEngagement aggregates interaction behavior for one
// stakeholder type.
type StakeholderEngagement struct {
	StakeholderType  StakeholderType      `json:"stakeholder_type"`
	TotalContacts    int                  `json:"total_contacts"`
	EngagedContacts  int                  `json:"engaged_contacts"`
	TotalEvents      int                  `json:"total_events"`
	EngagedEvents    int                  `json:"engaged_events"`
	EngagementRate   float64              `json:"engagement_rate"`
	AvgResponseHours float64              `json:"avg_response_hours"`
	PreferredChannel Channel              `json:"preferred_channel"`
	BestTimeSlot     string               `json:"best_time_slot"` // dayName_slot, e.g. Tuesday_Morning.
	TopTemplates     []TemplateEngagement `json:"top_templates"`
}

// HeatmapCell is one (stakeholder type, day-of-week, hour-of-day)
// bucket of engagement. Day follows time.Weekday numbering
// (0 = Sunday).
type HeatmapCell struct {
	StakeholderType  StakeholderType `json:"stakeholder_type"`
	Day              int             `json:"day"`
	Hour             int             `json:"hour"`
	Interactions     int             `json:"interactions"`
	EngagedCount     int             `json:"engaged_count"`
	ResponseCount    int             `json:"response_count"`
	EngagementScore  float64         `json:"engagement_score"` // engaged/interactions*100
	ResponseRate     float64         `json:"response_rate"`
	AvgResponseHours float64         `json:"avg_response_hours"`
}

// ChannelPerformance is the delivery funnel for one channel.
// Each rate is relative to the preceding funnel stage, except response
// rate which is relative to delivered.
type ChannelPerformance struct {
	Channel      Channel `json:"channel"`
	Sent         int     `json:"sent"`
	Delivered    int     `json:"delivered"`
	Opened       int     `json:"opened"`
	Clicked      int     `json:"clicked"`
	Responded    int     `json:"responded"`
	DeliveryRate float64 `json:"delivery_rate"`
	OpenRate     float64 `json:"open_rate"`
	ClickRate    float64 `json:"click_rate"`
	ResponseRate float64 `json:"response_rate"`
}

// ContentPerformance aggregates engagement by content signature.
type ContentPerformance struct {
	ContentType    string  `json:"content_type"`
	SubjectLine    string  `json:"subject_line,omitempty"`
	TemplateName   string  `json:"template_name,omitempty"`
	TotalEvents    int     `json:"total_events"`
	EngagedEvents  int     `json:"engaged_events"`
	EngagementRate float64 `json:"engagement_rate"`
	ConversionRate float64 `json:"conversion_rate"`
	AvgSentiment   float64 `json:"avg_sentiment"`
	SentimentCount int     `json:"sentiment_count"`
}

// TrendPoint is one time bucket in an engagement trend series.
type TrendPoint struct {
	Period         string  `json:"period"` // 2026-01-02 | 2026-W14 | 2026-01 depending on granularity.
	TotalEvents    int     `json:"total_events"`
	EngagedEvents  int     `json:"engaged_events"`
	EngagementRate float64 `json:"engagement_rate"`
	UniqueContacts int     `json:"unique_contacts"`
}

// Contact is a person at an account targeted by automations.
type Contact struct {
	ID        string          `json:"id"`
	AccountID string          `json:"account_id"`
	Name      string          `json:"name"`
	Title     string          `json:"title"`
	Type      StakeholderType `json:"type"`
	CreatedAt time.Time       `json:"created_at"`
}
