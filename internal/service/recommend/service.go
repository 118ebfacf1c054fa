// Package recommend synthesizes prioritized optimization
// recommendations, narrative insights, and predictive churn signals by
// fanning out into the analytic services and folding their aggregates
// through a fixed set of heuristic families.
package recommend

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cadencehq/cadence/internal/model"
	"github.com/cadencehq/cadence/internal/service/attribution"
	"github.com/cadencehq/cadence/internal/service/engagement"
	"github.com/cadencehq/cadence/internal/service/templatestats"
	"github.com/cadencehq/cadence/internal/storage"
)

// Service orchestrates the analytic services into recommendations.
type Service struct {
	db          *storage.DB
	templates   *templatestats.Service
	attribution *attribution.Service
	engagement  *engagement.Service
	logger      *slog.Logger
}

// New creates a new recommendation Service.
func New(db *storage.DB, templates *templatestats.Service, attr *attribution.Service, eng *engagement.Service, logger *slog.Logger) *Service {
	return &Service{
		db:          db,
		templates:   templates,
		attribution: attr,
		engagement:  eng,
		logger:      logger,
	}
}

// inputs holds the aggregates the heuristic families consume.
type inputs struct {
	reports     []model.PerformanceReport
	stakeholder []model.StakeholderEngagement
	heatmap     []model.HeatmapCell
	channels    []model.ChannelPerformance
	content     []model.ContentPerformance
	funnels     []sequenceFunnel
}

// gather fans out into the analytic services concurrently. Individual
// aggregate failures already degrade to empty inside their services;
// only a template catalog failure aborts the whole synthesis.
func (s *Service) gather(ctx context.Context, window model.TimeRange) (inputs, error) {
	var in inputs
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		templates, err := s.db.ListTemplates(gctx)
		if err != nil {
			return err
		}
		for _, tmpl := range templates {
			report, err := s.templates.Report(gctx, tmpl.ID)
			if err != nil {
				s.logger.Error("recommend: template report failed, skipping",
					"template_id", tmpl.ID, "error", err)
				continue
			}
			in.reports = append(in.reports, report)
		}
		return nil
	})
	g.Go(func() error {
		in.stakeholder = s.engagement.StakeholderEngagement(gctx, nil, window)
		return nil
	})
	g.Go(func() error {
		in.heatmap = s.engagement.Heatmap(gctx, nil, window)
		return nil
	})
	g.Go(func() error {
		in.channels = s.engagement.ChannelPerformance(gctx, window)
		return nil
	})
	g.Go(func() error {
		in.content = s.engagement.ContentPerformance(gctx, window)
		return nil
	})
	g.Go(func() error {
		funnels, err := s.sequenceFunnels(gctx, window)
		if err != nil {
			s.logger.Error("recommend: sequence funnel scan failed, skipping family", "error", err)
			return nil
		}
		in.funnels = funnels
		return nil
	})

	if err := g.Wait(); err != nil {
		return inputs{}, err
	}
	return in, nil
}

// Generate produces the merged, priority-sorted recommendation list.
func (s *Service) Generate(ctx context.Context, window model.TimeRange) ([]model.Recommendation, error) {
	in, err := s.gather(ctx, window)
	if err != nil {
		return nil, err
	}

	var recs []model.Recommendation
	recs = append(recs, templateRecommendations(in.reports)...)
	recs = append(recs, timingRecommendations(in.heatmap)...)
	recs = append(recs, audienceRecommendations(in.stakeholder)...)
	recs = append(recs, channelRecommendations(in.channels)...)
	recs = append(recs, contentRecommendations(in.content)...)
	recs = append(recs, sequenceRecommendations(in.funnels)...)

	sortRecommendations(recs)
	s.logger.Info("recommendations generated", "count", len(recs))
	return recs, nil
}

// sequenceFunnels reconstructs per-template step funnels from
// sequence_step fields on the event log.
func (s *Service) sequenceFunnels(ctx context.Context, window model.TimeRange) ([]sequenceFunnel, error) {
	events, err := s.db.GetEvents(ctx, model.EventFilters{TimeRange: &window}, 0)
	if err != nil {
		return nil, err
	}
	templates, err := s.db.ListTemplates(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(templates))
	for _, t := range templates {
		names[t.ID.String()] = t.Name
	}

	byTemplate := make(map[string]*sequenceFunnel)
	for _, ev := range events {
		if ev.SequenceStep == nil {
			continue
		}
		key := ev.TemplateID.String()
		f := byTemplate[key]
		if f == nil {
			f = &sequenceFunnel{
				TemplateID:   ev.TemplateID,
				TemplateName: names[key],
				StepCounts:   make(map[int]int),
			}
			byTemplate[key] = f
		}
		f.StepCounts[*ev.SequenceStep]++
		if ev.SequenceCompleted {
			f.Completions++
		}
	}

	out := make([]sequenceFunnel, 0, len(byTemplate))
	for _, f := range byTemplate {
		out = append(out, *f)
	}
	return out, nil
}

// Insights produces narrative observations from the same aggregates
// the recommendation families read, without actionable payloads.
func (s *Service) Insights(ctx context.Context, window model.TimeRange) ([]model.OptimizationInsight, error) {
	in, err := s.gather(ctx, window)
	if err != nil {
		return nil, err
	}
	return buildInsights(in), nil
}

// Predictive computes per-account churn risk and next best actions.
func (s *Service) Predictive(ctx context.Context) (model.PredictiveInsights, error) {
	events, err := s.db.GetEvents(ctx, model.EventFilters{}, 0)
	if err != nil {
		s.logger.Error("recommend: event scan failed, degrading to empty predictions", "error", err)
		return model.PredictiveInsights{GeneratedAt: time.Now().UTC()}, nil
	}
	return predictive(events, time.Now().UTC()), nil
}
