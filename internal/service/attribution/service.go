// Package attribution computes first-touch, last-touch, and multi-touch
// revenue attribution over the interaction event log, plus the ROI
// metrics derived from them.
//
// One attribution policy applies everywhere: an opportunity's amount is
// split equally across its touchpoints, so an automation's multi-touch
// credit equals amount * (its touchpoints / total touchpoints). The
// aggregate ROI view and the single-opportunity view therefore always
// agree.
package attribution

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/cadencehq/cadence/internal/model"
	"github.com/cadencehq/cadence/internal/storage"
)

// Service encapsulates attribution business logic.
type Service struct {
	db     *storage.DB
	logger *slog.Logger
}

// New creates a new attribution Service.
func New(db *storage.DB, logger *slog.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// AutomationROI computes the full ROI picture for one automation
// template. The template lookup fails loudly; downstream scan failures
// degrade to zero-filled metrics so a dashboard never 500s on one bad
// aggregate.
func (s *Service) AutomationROI(ctx context.Context, templateID uuid.UUID, window model.TimeRange) (model.ROIMetrics, error) {
	tmpl, err := s.db.GetTemplate(ctx, templateID)
	if err != nil {
		return model.ROIMetrics{}, fmt.Errorf("attribution: resolve automation: %w", err)
	}

	metrics := model.ROIMetrics{
		TemplateID:     tmpl.ID,
		TemplateName:   tmpl.Name,
		AutomationType: tmpl.AutomationType,
	}

	events, err := s.db.GetEvents(ctx, model.EventFilters{
		TemplateIDs: []uuid.UUID{templateID},
		TimeRange:   &window,
	}, 0)
	if err != nil {
		s.logger.Error("attribution: event scan failed, degrading to empty metrics",
			"template_id", templateID, "error", err)
		return metrics, nil
	}
	if len(events) == 0 {
		return metrics, nil
	}

	metrics.Touchpoints = len(events)
	firstTouchByAccount := make(map[string]time.Time)
	accountSet := make(map[string]bool)
	for _, ev := range events {
		if ev.Cost != nil {
			metrics.TotalCost += *ev.Cost
		}
		if ev.AccountID == nil {
			continue
		}
		acc := *ev.AccountID
		accountSet[acc] = true
		if first, ok := firstTouchByAccount[acc]; !ok || ev.OccurredAt.Before(first) {
			firstTouchByAccount[acc] = ev.OccurredAt
		}
	}

	accounts := make([]string, 0, len(accountSet))
	for acc := range accountSet {
		accounts = append(accounts, acc)
	}
	sort.Strings(accounts)

	opps, err := s.db.ListOpportunitiesByAccounts(ctx, accounts)
	if err != nil {
		s.logger.Error("attribution: opportunity scan failed, degrading to empty metrics",
			"template_id", templateID, "error", err)
		return metrics, nil
	}

	var (
		dealTotal       float64
		conversionDays  float64
		conversionCount int
		clvByAccount    = make(map[string]float64)
	)

	for _, opp := range opps {
		metrics.Opportunities++
		if !opp.ClosedWon || opp.ClosedAt == nil {
			continue
		}
		metrics.ClosedWon++
		dealTotal += opp.Amount
		clvByAccount[opp.AccountID] += opp.Amount

		split, err := s.creditSplit(ctx, opp, templateID)
		if err != nil {
			s.logger.Error("attribution: touch path reconstruction failed, skipping opportunity",
				"opportunity_id", opp.ID, "error", err)
			continue
		}
		metrics.FirstTouchRevenue += split.firstTouch
		metrics.LastTouchRevenue += split.lastTouch
		metrics.MultiTouchRevenue += split.multiTouch

		if first, ok := firstTouchByAccount[opp.AccountID]; ok && opp.ClosedAt.After(first) {
			conversionDays += opp.ClosedAt.Sub(first).Hours() / 24
			conversionCount++
		}
	}

	// The three attribution views are alternative lenses on the same
	// revenue; the combined figure is a reporting convention, not a
	// ground truth.
	metrics.TotalRevenue = metrics.FirstTouchRevenue + metrics.LastTouchRevenue + metrics.MultiTouchRevenue

	if metrics.TotalCost > 0 {
		metrics.ROI = (metrics.TotalRevenue - metrics.TotalCost) / metrics.TotalCost
	}
	if metrics.Touchpoints > 0 {
		metrics.ConversionRate = float64(metrics.ClosedWon) / float64(metrics.Touchpoints) * 100
	}
	if metrics.ClosedWon > 0 {
		metrics.AvgDealSize = dealTotal / float64(metrics.ClosedWon)
	}
	if conversionCount > 0 {
		metrics.TimeToConversionDays = conversionDays / float64(conversionCount)
	}
	if len(clvByAccount) > 0 {
		var total float64
		for _, v := range clvByAccount {
			total += v
		}
		metrics.CustomerLifetimeValue = total / float64(len(clvByAccount))
	}

	return metrics, nil
}

// split holds one opportunity's attribution credit to one automation.
type split struct {
	firstTouch float64
	lastTouch  float64
	multiTouch float64
}

// creditSplit reconstructs the opportunity's full touch path across
// all automations and computes the automation's credit under each
// policy. First and last touch award the full amount when the earliest
// or latest touch belongs to the automation; multi-touch awards the
// participation share.
func (s *Service) creditSplit(ctx context.Context, opp model.Opportunity, templateID uuid.UUID) (split, error) {
	touches, err := s.touchPath(ctx, opp)
	if err != nil {
		return split{}, err
	}
	return computeSplit(touches, opp.Amount, templateID), nil
}

// computeSplit is the pure attribution kernel over an ordered touch
// path.
func computeSplit(touches []model.InteractionEvent, amount float64, templateID uuid.UUID) split {
	if len(touches) == 0 {
		return split{}
	}

	var out split
	if touches[0].TemplateID == templateID {
		out.firstTouch = amount
	}
	if touches[len(touches)-1].TemplateID == templateID {
		out.lastTouch = amount
	}

	mine := 0
	for _, t := range touches {
		if t.TemplateID == templateID {
			mine++
		}
	}
	out.multiTouch = amount * float64(mine) / float64(len(touches))
	return out
}

// touchPath returns all of the opportunity account's interaction
// events at or before the close time, across all automations, in
// occurrence order.
func (s *Service) touchPath(ctx context.Context, opp model.Opportunity) ([]model.InteractionEvent, error) {
	if opp.ClosedAt == nil {
		return nil, nil
	}
	return s.db.GetEventsByAccount(ctx, []string{opp.AccountID}, *opp.ClosedAt)
}

// OpportunityAttribution reconstructs one opportunity's touchpoint
// sequence and splits its revenue equally across all touchpoints. The
// per-touchpoint credits always sum to the opportunity amount.
func (s *Service) OpportunityAttribution(ctx context.Context, opportunityID uuid.UUID) (model.OpportunityAttribution, error) {
	opp, err := s.db.GetOpportunity(ctx, opportunityID)
	if err != nil {
		return model.OpportunityAttribution{}, fmt.Errorf("attribution: resolve opportunity: %w", err)
	}
	if !opp.ClosedWon || opp.ClosedAt == nil {
		return model.OpportunityAttribution{}, fmt.Errorf("attribution: opportunity %s is not closed-won", opportunityID)
	}

	touches, err := s.touchPath(ctx, opp)
	if err != nil {
		return model.OpportunityAttribution{}, fmt.Errorf("attribution: reconstruct touch path: %w", err)
	}

	templates, err := s.db.ListTemplates(ctx)
	if err != nil {
		s.logger.Error("attribution: template list failed, names omitted", "error", err)
	}
	names := make(map[uuid.UUID]string, len(templates))
	for _, t := range templates {
		names[t.ID] = t.Name
	}

	out := model.OpportunityAttribution{
		OpportunityID: opp.ID,
		AccountID:     opp.AccountID,
		Amount:        opp.Amount,
		ClosedAt:      *opp.ClosedAt,
	}
	if len(touches) == 0 {
		return out, nil
	}

	credit := opp.Amount / float64(len(touches))
	for i, ev := range touches {
		out.Touchpoints = append(out.Touchpoints, model.Touchpoint{
			EventID:         ev.ID,
			TemplateID:      ev.TemplateID,
			TemplateName:    names[ev.TemplateID],
			InteractionType: ev.InteractionType,
			Channel:         ev.Channel,
			OccurredAt:      ev.OccurredAt,
			TouchType:       touchTypeFor(i, len(touches)),
			Credit:          credit,
		})
	}
	return out, nil
}

// touchTypeFor classifies position i in a path of n touches. A path of
// one touch counts as first.
func touchTypeFor(i, n int) model.TouchType {
	switch {
	case i == 0:
		return model.TouchFirst
	case i == n-1:
		return model.TouchLast
	default:
		return model.TouchMulti
	}
}

// AttributedOpportunities returns the per-opportunity attribution view
// for every closed-won opportunity whose touch path includes the given
// automation.
func (s *Service) AttributedOpportunities(ctx context.Context, templateID uuid.UUID, window model.TimeRange) ([]model.OpportunityAttribution, error) {
	if _, err := s.db.GetTemplate(ctx, templateID); err != nil {
		return nil, fmt.Errorf("attribution: resolve automation: %w", err)
	}

	opps, err := s.db.ListClosedWonOpportunities(ctx, window)
	if err != nil {
		s.logger.Error("attribution: opportunity scan failed, degrading to empty list", "error", err)
		return nil, nil
	}

	var out []model.OpportunityAttribution
	for _, opp := range opps {
		attr, err := s.OpportunityAttribution(ctx, opp.ID)
		if err != nil {
			s.logger.Error("attribution: per-opportunity attribution failed, skipping",
				"opportunity_id", opp.ID, "error", err)
			continue
		}
		for _, t := range attr.Touchpoints {
			if t.TemplateID == templateID {
				out = append(out, attr)
				break
			}
		}
	}
	return out, nil
}

// ROIByType fans AutomationROI out across all templates and groups
// multi-touch revenue by automation category.
func (s *Service) ROIByType(ctx context.Context, window model.TimeRange) ([]model.AttributionByType, error) {
	all, err := s.allROI(ctx, window)
	if err != nil {
		return nil, err
	}

	byType := make(map[string]*model.AttributionByType)
	var total float64
	for _, m := range all {
		typ := m.AutomationType
		if typ == "" {
			typ = "uncategorized"
		}
		entry := byType[typ]
		if entry == nil {
			entry = &model.AttributionByType{AutomationType: typ}
			byType[typ] = entry
		}
		entry.Revenue += m.MultiTouchRevenue
		entry.Opportunities += m.ClosedWon
		total += m.MultiTouchRevenue
	}

	out := make([]model.AttributionByType, 0, len(byType))
	for _, entry := range byType {
		if total > 0 {
			entry.Share = entry.Revenue / total * 100
		}
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Revenue > out[j].Revenue })
	return out, nil
}

// Dashboard assembles the aggregate attribution view: totals, overall
// ROI, the top 5 automations by ROI, and the by-type breakdown.
func (s *Service) Dashboard(ctx context.Context, window model.TimeRange) (model.AttributionDashboard, error) {
	all, err := s.allROI(ctx, window)
	if err != nil {
		return model.AttributionDashboard{}, err
	}

	dash := model.AttributionDashboard{Window: window}
	for _, m := range all {
		dash.TotalAttributedRevenue += m.MultiTouchRevenue
		dash.TotalCost += m.TotalCost
	}
	if dash.TotalCost > 0 {
		dash.OverallROI = (dash.TotalAttributedRevenue - dash.TotalCost) / dash.TotalCost
	}

	sort.Slice(all, func(i, j int) bool { return all[i].ROI > all[j].ROI })
	if len(all) > 5 {
		all = all[:5]
	}
	dash.TopPerformers = all

	byType, err := s.ROIByType(ctx, window)
	if err != nil {
		return model.AttributionDashboard{}, err
	}
	dash.ByType = byType
	return dash, nil
}

// allROI computes ROI metrics for every registered template. Individual
// failures degrade to zero-filled entries inside AutomationROI, so the
// fan-out only fails when the template catalog itself is unreadable.
func (s *Service) allROI(ctx context.Context, window model.TimeRange) ([]model.ROIMetrics, error) {
	templates, err := s.db.ListTemplates(ctx)
	if err != nil {
		return nil, fmt.Errorf("attribution: list automations: %w", err)
	}

	out := make([]model.ROIMetrics, 0, len(templates))
	for _, tmpl := range templates {
		m, err := s.AutomationROI(ctx, tmpl.ID, window)
		if err != nil {
			s.logger.Error("attribution: automation ROI failed, skipping",
				"template_id", tmpl.ID, "error", err)
			continue
		}
		out = append(out, m)
	}
	return out, nil
}
