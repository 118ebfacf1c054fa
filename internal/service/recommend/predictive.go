package recommend

import (
	"fmt"
	"sort"
	"time"

	"github.com/cadencehq/cadence/internal/model"
)

// Churn-risk factor weights. The score is a plain additive flag model
// capped at 1.0, not a calibrated probability.
const (
	churnNoRecentEngagement = 0.3
	churnEngagementDecline  = 0.2
	churnLowResponseRate    = 0.2
	churnFewEngagedContacts = 0.3

	churnRiskFlag       = 0.7
	churnHighConfidence = 85.0
	churnLowConfidence  = 65.0
	churnConfidenceBar  = 50 // events needed for the higher confidence tier

	recentWindow     = 30 * 24 * time.Hour
	reEngageAfter    = 14 * 24 * time.Hour
	lowResponseRate  = 5.0
	fewEngagedFloor  = 3
	declineFraction  = 0.10 // recent events below 10% of lifetime volume
)

// predictive folds the full event log into per-account churn
// assessments. Events without an account are ignored.
func predictive(events []model.InteractionEvent, now time.Time) model.PredictiveInsights {
	type acct struct {
		total           int
		recent          int
		responded       int
		delivered       int
		engagedContacts map[string]bool
		lastTouch       time.Time
		lastEngaged     time.Time
	}
	accounts := make(map[string]*acct)

	for _, ev := range events {
		if ev.AccountID == nil {
			continue
		}
		a := accounts[*ev.AccountID]
		if a == nil {
			a = &acct{engagedContacts: make(map[string]bool)}
			accounts[*ev.AccountID] = a
		}
		a.total++
		if now.Sub(ev.OccurredAt) <= recentWindow {
			a.recent++
		}
		if ev.OccurredAt.After(a.lastTouch) {
			a.lastTouch = ev.OccurredAt
		}
		switch ev.InteractionType {
		case model.InteractionDelivered:
			a.delivered++
		case model.InteractionResponded:
			a.responded++
		}
		if ev.Engaged || model.EngagedType(ev.InteractionType) {
			a.engagedContacts[ev.ContactID] = true
			if ev.OccurredAt.After(a.lastEngaged) {
				a.lastEngaged = ev.OccurredAt
			}
		}
	}

	out := model.PredictiveInsights{GeneratedAt: now}
	ids := make([]string, 0, len(accounts))
	for id := range accounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		a := accounts[id]
		risk := model.ChurnRisk{AccountID: id}

		if a.lastEngaged.IsZero() || now.Sub(a.lastEngaged) > recentWindow {
			risk.RiskScore += churnNoRecentEngagement
			risk.Factors = append(risk.Factors, "no engagement in the last 30 days")
		}
		if a.total > 0 && float64(a.recent) < float64(a.total)*declineFraction {
			risk.RiskScore += churnEngagementDecline
			risk.Factors = append(risk.Factors, "activity well below historical volume")
		}
		if a.delivered > 0 {
			responseRate := float64(a.responded) / float64(a.delivered) * 100
			if responseRate < lowResponseRate {
				risk.RiskScore += churnLowResponseRate
				risk.Factors = append(risk.Factors, fmt.Sprintf("response rate %.1f%% below %.0f%%", responseRate, lowResponseRate))
			}
		}
		if len(a.engagedContacts) < fewEngagedFloor {
			risk.RiskScore += churnFewEngagedContacts
			risk.Factors = append(risk.Factors, fmt.Sprintf("only %d engaged contacts", len(a.engagedContacts)))
		}
		if risk.RiskScore > 1.0 {
			risk.RiskScore = 1.0
		}

		risk.Confidence = churnLowConfidence
		if a.total > churnConfidenceBar {
			risk.Confidence = churnHighConfidence
		}
		risk.AtRisk = risk.RiskScore > churnRiskFlag
		if risk.AtRisk {
			out.AtRiskCount++
		}
		risk.NextBestAction = nextBestAction(a.total, a.lastTouch, now)

		out.Accounts = append(out.Accounts, risk)
	}
	return out
}

// nextBestAction is a recency heuristic: untouched accounts get an
// initial outreach, stale ones a re-engagement sequence, active ones
// nothing.
func nextBestAction(totalEvents int, lastTouch time.Time, now time.Time) *string {
	var action string
	switch {
	case totalEvents == 0 || lastTouch.IsZero():
		action = "start initial outreach sequence"
	case now.Sub(lastTouch) > reEngageAfter:
		action = "start re-engagement sequence"
	default:
		return nil
	}
	return &action
}
