// Package templatestats recomputes per-template performance metrics,
// weighted performance scores, trend classification, and execution
// timelines from the interaction event log.
package templatestats

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

// Trend classification thresholds: the recent period's performance
// score must move more than this fraction against the prior period to
// leave "stable".
const trendThreshold = 0.05

// trendWindow is the comparison period for trend classification.
const trendWindow = 30 * 24 * time.Hour

// Service encapsulates template analytics.
type Service struct {
	db     *storage.DB
	logger *slog.Logger
}

// New creates a new templatestats Service.
func New(db *storage.DB, logger *slog.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// Metrics recomputes the performance snapshot for one template. The
// template lookup fails loudly; event scan failures degrade to a
// zero-filled snapshot.
func (s *Service) Metrics(ctx context.Context, templateID uuid.UUID, window model.TimeRange) (model.TemplateMetrics, error) {
	tmpl, err := s.db.GetTemplate(ctx, templateID)
	if err != nil {
		return model.TemplateMetrics{}, fmt.Errorf("templatestats: resolve template: %w", err)
	}

	events, err := s.db.GetEvents(ctx, model.EventFilters{
		TemplateIDs: []uuid.UUID{templateID},
		TimeRange:   &window,
	}, 0)
	if err != nil {
		s.logger.Error("templatestats: event scan failed, degrading to empty metrics",
			"template_id", templateID, "error", err)
		events = nil
	}
	return Fold(tmpl, events), nil
}

// AllMetrics recomputes snapshots for every registered template.
func (s *Service) AllMetrics(ctx context.Context, window model.TimeRange) ([]model.TemplateMetrics, error) {
	templates, err := s.db.ListTemplates(ctx)
	if err != nil {
		return nil, fmt.Errorf("templatestats: list templates: %w", err)
	}

	out := make([]model.TemplateMetrics, 0, len(templates))
	for _, tmpl := range templates {
		events, err := s.db.GetEvents(ctx, model.EventFilters{
			TemplateIDs: []uuid.UUID{tmpl.ID},
			TimeRange:   &window,
		}, 0)
		if err != nil {
			s.logger.Error("templatestats: event scan failed, degrading to empty metrics",
				"template_id", tmpl.ID, "error", err)
			events = nil
		}
		out = append(out, Fold(tmpl, events))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TemplateName < out[j].TemplateName })
	return out, nil
}

// Report computes the scored and trended performance report for one
// template: current metrics, the weighted performance score, and the
// trend classification from comparing the recent period against the
// one before it.
func (s *Service) Report(ctx context.Context, templateID uuid.UUID) (model.PerformanceReport, error) {
	tmpl, err := s.db.GetTemplate(ctx, templateID)
	if err != nil {
		return model.PerformanceReport{}, fmt.Errorf("templatestats: resolve template: %w", err)
	}

	now := time.Now().UTC()
	recentFrom := now.Add(-trendWindow)
	priorFrom := now.Add(-2 * trendWindow)

	all, err := s.db.GetEvents(ctx, model.EventFilters{
		TemplateIDs: []uuid.UUID{templateID},
	}, 0)
	if err != nil {
		s.logger.Error("templatestats: event scan failed, degrading to empty report",
			"template_id", templateID, "error", err)
		all = nil
	}

	var recent, prior []model.InteractionEvent
	for _, ev := range all {
		switch {
		case !ev.OccurredAt.Before(recentFrom):
			recent = append(recent, ev)
		case !ev.OccurredAt.Before(priorFrom):
			prior = append(prior, ev)
		}
	}

	metrics := Fold(tmpl, all)
	recentScore := Score(Fold(tmpl, recent))
	priorScore := Score(Fold(tmpl, prior))

	report := model.PerformanceReport{
		Metrics:          metrics,
		PerformanceScore: Score(metrics),
	}
	report.Trend, report.TrendDelta = classifyTrend(recentScore, priorScore)
	return report, nil
}

// CompareTemplates builds scored reports for the given templates and
// ranks them by weighted performance score, best first. With no IDs it
// compares every registered template. A template that cannot be
// resolved fails the whole comparison; a ranking with silently missing
// entrants is worse than an error.
func (s *Service) CompareTemplates(ctx context.Context, templateIDs []uuid.UUID) ([]model.PerformanceReport, error) {
	if len(templateIDs) == 0 {
		templates, err := s.db.ListTemplates(ctx)
		if err != nil {
			return nil, fmt.Errorf("templatestats: list templates: %w", err)
		}
		for _, tmpl := range templates {
			templateIDs = append(templateIDs, tmpl.ID)
		}
	}

	reports := make([]model.PerformanceReport, 0, len(templateIDs))
	for _, id := range templateIDs {
		report, err := s.Report(ctx, id)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}

	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].PerformanceScore > reports[j].PerformanceScore
	})
	return reports, nil
}

// Timeline buckets a template's executions by day.
func (s *Service) Timeline(ctx context.Context, templateID uuid.UUID, window model.TimeRange) ([]model.TimelinePoint, error) {
	if _, err := s.db.GetTemplate(ctx, templateID); err != nil {
		return nil, fmt.Errorf("templatestats: resolve template: %w", err)
	}

	events, err := s.db.GetEvents(ctx, model.EventFilters{
		TemplateIDs: []uuid.UUID{templateID},
		TimeRange:   &window,
	}, 0)
	if err != nil {
		s.logger.Error("templatestats: event scan failed, degrading to empty timeline",
			"template_id", templateID, "error", err)
		return nil, nil
	}

	type agg struct {
		executions int
		completed  int
		failed     int
	}
	days := make(map[string]*agg)
	for _, ev := range events {
		if ev.InteractionType != model.InteractionSent {
			continue
		}
		day := ev.OccurredAt.Format("2006-01-02")
		a := days[day]
		if a == nil {
			a = &agg{}
			days[day] = a
		}
		a.executions++
		if ev.Status == "failed" {
			a.failed++
		} else {
			a.completed++
		}
	}

	keys := make([]string, 0, len(days))
	for k := range days {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]model.TimelinePoint, 0, len(keys))
	for _, k := range keys {
		a := days[k]
		day, _ := time.Parse("2006-01-02", k)
		tp := model.TimelinePoint{
			Period:     day,
			Executions: a.executions,
			Completed:  a.completed,
			Failed:     a.failed,
		}
		if a.executions > 0 {
			tp.SuccessRate = float64(a.completed) / float64(a.executions) * 100
		}
		out = append(out, tp)
	}
	return out, nil
}

// Fold computes a template metrics snapshot from its events.
func Fold(tmpl model.Template, events []model.InteractionEvent) model.TemplateMetrics {
	m := model.TemplateMetrics{
		TemplateID:     tmpl.ID,
		TemplateName:   tmpl.Name,
		AutomationType: tmpl.AutomationType,
	}

	var (
		delivered, opened, clicked, responded, converted, engaged int
	)
	contacts := make(map[string]bool)

	for _, ev := range events {
		contacts[ev.ContactID] = true
		if ev.Cost != nil {
			m.Cost += *ev.Cost
		}
		if ev.Revenue != nil {
			m.Revenue += *ev.Revenue
		}
		if ev.Engaged || model.EngagedType(ev.InteractionType) {
			engaged++
		}
		switch ev.InteractionType {
		case model.InteractionSent:
			m.Executions++
			if ev.Status == "failed" {
				m.Failed++
			} else {
				m.Completed++
			}
		case model.InteractionDelivered:
			delivered++
		case model.InteractionOpened:
			opened++
		case model.InteractionClicked:
			clicked++
		case model.InteractionResponded:
			responded++
		case model.InteractionConverted:
			converted++
		}
	}

	m.UniqueContacts = len(contacts)
	if m.Executions > 0 {
		m.SuccessRate = float64(m.Completed) / float64(m.Executions) * 100
	}
	if delivered > 0 {
		m.OpenRate = float64(opened) / float64(delivered) * 100
		m.ResponseRate = float64(responded) / float64(delivered) * 100
		m.ConversionRate = float64(converted) / float64(delivered) * 100
	}
	if opened > 0 {
		m.ClickRate = float64(clicked) / float64(opened) * 100
	}
	if len(events) > 0 {
		m.EngagementRate = float64(engaged) / float64(len(events)) * 100
	}
	if m.Cost > 0 {
		m.ROI = (m.Revenue - m.Cost) / m.Cost
	}
	return m
}

// Score computes the weighted composite performance score (0-100).
// Rate inputs are percentages; ROI saturates at 100% so a single
// outlier cannot dominate.
func Score(m model.TemplateMetrics) float64 {
	roiComponent := m.ROI / 100
	if roiComponent > 1 {
		roiComponent = 1
	}
	if roiComponent < 0 {
		roiComponent = 0
	}
	return 0.3*m.SuccessRate + 0.2*m.EngagementRate + 0.3*m.ConversionRate + 0.2*roiComponent*100
}

// classifyTrend compares the recent score against the prior period.
func classifyTrend(recent, prior float64) (model.Trend, float64) {
	if prior == 0 {
		return model.TrendStable, 0
	}
	delta := (recent - prior) / prior
	switch {
	case delta > trendThreshold:
		return model.TrendImproving, delta * 100
	case delta < -trendThreshold:
		return model.TrendDeclining, delta * 100
	default:
		return model.TrendStable, delta * 100
	}
}
