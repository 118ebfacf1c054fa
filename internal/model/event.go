package model

import (
	"time"

	"github.com/google/uuid"
)

// InteractionType represents the funnel stage of an interaction event.
type InteractionType string

const (
	InteractionSent      InteractionType = "sent"
	InteractionDelivered InteractionType = "delivered"
	InteractionOpened    InteractionType = "opened"
	InteractionClicked   InteractionType = "clicked"
	InteractionResponded InteractionType = "responded"
	InteractionConverted InteractionType = "converted"
)

// InteractionTypes lists all valid interaction types in funnel order.
var InteractionTypes = []InteractionType{
	InteractionSent,
	InteractionDelivered,
	InteractionOpened,
	InteractionClicked,
	InteractionResponded,
	InteractionConverted,
}

// ValidInteractionType reports whether t is a known interaction type.
func ValidInteractionType(t InteractionType) bool {
	switch t {
	case InteractionSent, InteractionDelivered, InteractionOpened,
		InteractionClicked, InteractionResponded, InteractionConverted:
		return true
	}
	return false
}

// Channel represents a delivery channel for an automation touch.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelCall  Channel = "call"
	ChannelInApp Channel = "in_app"
)

// Channels lists the four fixed channels tracked by channel performance.
var Channels = []Channel{ChannelEmail, ChannelSMS, ChannelCall, ChannelInApp}

// InteractionEvent is an append-only record of an automation touching a
// contact, or of the contact acting on that touch.
// Source of truth for all analytics. Never mutated or deleted.
//
// The analytic fields (Channel, Revenue, Cost, ResponseTimeHours, Engaged,
// SequenceStep, content attributes, SentimentScore) are first-class columns
// rather than loose metadata keys, so every aggregation reads the same
// schema. Payload carries anything type-specific beyond these.
type InteractionEvent struct {
	ID              uuid.UUID       `json:"id"`
	TemplateID      uuid.UUID       `json:"template_id"`
	ExperimentID    *uuid.UUID      `json:"experiment_id,omitempty"`
	VariantID       *uuid.UUID      `json:"variant_id,omitempty"`
	ContactID       string          `json:"contact_id"`
	AccountID       *string         `json:"account_id,omitempty"`
	InteractionType InteractionType `json:"interaction_type"`
	Channel         Channel         `json:"channel,omitempty"`

	Revenue           *float64 `json:"revenue,omitempty"`
	Cost              *float64 `json:"cost,omitempty"`
	ResponseTimeHours *float64 `json:"response_time_hours,omitempty"`
	Engaged           bool     `json:"engaged"`

	SequenceStep      *int     `json:"sequence_step,omitempty"`
	SequenceCompleted bool     `json:"sequence_completed,omitempty"`
	ContentType       string   `json:"content_type,omitempty"`
	SubjectLine       string   `json:"subject_line,omitempty"`
	PreviewText       string   `json:"preview_text,omitempty"`
	SentimentScore    *float64 `json:"sentiment_score,omitempty"`

	Status     string         `json:"status"` // completed | failed
	Payload    map[string]any `json:"payload,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
	CreatedAt  time.Time      `json:"created_at"`
}

// SentPayload is the typed payload for sent events.
type SentPayload struct {
	Channel      Channel `json:"channel"`
	SubjectLine  string  `json:"subject_line,omitempty"`
	PreviewText  string  `json:"preview_text,omitempty"`
	ContentType  string  `json:"content_type,omitempty"`
	SequenceStep *int    `json:"sequence_step,omitempty"`
	Cost         float64 `json:"cost,omitempty"`
}

// DeliveredPayload is the typed payload for delivered events.
type DeliveredPayload struct {
	Channel Channel `json:"channel"`
}

// OpenedPayload is the typed payload for opened events.
type OpenedPayload struct {
	Channel Channel `json:"channel"`
}

// ClickedPayload is the typed payload for clicked events.
type ClickedPayload struct {
	Channel   Channel `json:"channel"`
	TargetURL string  `json:"target_url,omitempty"`
}

// RespondedPayload is the typed payload for responded events.
type RespondedPayload struct {
	Channel           Channel  `json:"channel"`
	ResponseTimeHours float64  `json:"response_time_hours"`
	SentimentScore    *float64 `json:"sentiment_score,omitempty"`
}

// ConvertedPayload is the typed payload for converted events.
type ConvertedPayload struct {
	Revenue           float64 `json:"revenue"`
	OpportunityID     *string `json:"opportunity_id,omitempty"`
	SequenceCompleted bool    `json:"sequence_completed,omitempty"`
}

// EngagedType reports whether an interaction type counts as engagement.
// Opened, clicked, responded, and converted are engagement signals;
// sent and delivered are delivery mechanics.
func EngagedType(t InteractionType) bool {
	switch t {
	case InteractionOpened, InteractionClicked, InteractionResponded, InteractionConverted:
		return true
	}
	return false
}
