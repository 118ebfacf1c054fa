// Package experiment provides A/B experiment lifecycle management,
// deterministic variant assignment, and approximate statistical
// result analysis over the interaction event log.
package experiment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/cadencehq/cadence/internal/model"
	"github.com/cadencehq/cadence/internal/storage"
)

// Defaults applied when a create request leaves thresholds unset.
const (
	DefaultMinimumSampleSize   = 1000
	DefaultConfidenceThreshold = 95.0
)

// qualifyingSampleSize is the per-variant floor for winner determination.
// Variants below it are excluded from the comparison entirely.
const qualifyingSampleSize = 100

// ErrInvalid marks a request that failed validation. Callers can map it
// to a 400 without parsing error strings.
var ErrInvalid = errors.New("invalid request")

func invalidf(format string, args ...any) error {
	return fmt.Errorf("experiment: %w: "+format, append([]any{ErrInvalid}, args...)...)
}

// Service encapsulates experiment business logic.
type Service struct {
	db     *storage.DB
	logger *slog.Logger

	avgDealValue float64
}

// New creates a new experiment Service. avgDealValue scales the
// estimated annual impact projection; zero falls back to 1000.
func New(db *storage.DB, avgDealValue float64, logger *slog.Logger) *Service {
	if avgDealValue <= 0 {
		avgDealValue = 1000
	}
	return &Service{db: db, avgDealValue: avgDealValue, logger: logger}
}

// Create validates and persists a new experiment in draft status.
func (s *Service) Create(ctx context.Context, req model.CreateExperimentRequest) (model.Experiment, error) {
	if req.Name == "" {
		return model.Experiment{}, invalidf("name is required")
	}
	if req.TemplateID == uuid.Nil {
		return model.Experiment{}, invalidf("template_id is required")
	}
	if len(req.Variants) < 2 {
		return model.Experiment{}, invalidf("at least two variants are required")
	}
	if !model.ValidPrimaryMetric(req.PrimaryMetric) {
		return model.Experiment{}, invalidf("unknown primary metric %q", req.PrimaryMetric)
	}

	var total float64
	names := make(map[string]bool, len(req.Variants))
	for _, v := range req.Variants {
		if v.Name == "" {
			return model.Experiment{}, invalidf("variant name is required")
		}
		if names[v.Name] {
			return model.Experiment{}, invalidf("duplicate variant name %q", v.Name)
		}
		names[v.Name] = true
		if v.Allocation <= 0 {
			return model.Experiment{}, invalidf("variant %q allocation must be positive", v.Name)
		}
		total += v.Allocation
	}
	if total < 99.999 || total > 100.001 {
		return model.Experiment{}, invalidf("variant allocations must sum to 100, got %.2f", total)
	}
	if !names[req.ControlVariantName] {
		return model.Experiment{}, invalidf("control variant %q not among variants", req.ControlVariantName)
	}

	// Template must exist before we hang an experiment off it.
	if _, err := s.db.GetTemplate(ctx, req.TemplateID); err != nil {
		return model.Experiment{}, fmt.Errorf("experiment: resolve template: %w", err)
	}

	now := time.Now().UTC()
	e := model.Experiment{
		ID:                  uuid.New(),
		Name:                req.Name,
		TemplateID:          req.TemplateID,
		Status:              model.ExperimentDraft,
		StartDate:           now,
		MinimumSampleSize:   DefaultMinimumSampleSize,
		ConfidenceThreshold: DefaultConfidenceThreshold,
		PrimaryMetric:       req.PrimaryMetric,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if req.MinimumSampleSize != nil && *req.MinimumSampleSize > 0 {
		e.MinimumSampleSize = *req.MinimumSampleSize
	}
	if req.ConfidenceThreshold != nil && *req.ConfidenceThreshold > 0 {
		e.ConfidenceThreshold = *req.ConfidenceThreshold
	}

	for _, v := range req.Variants {
		variant := model.Variant{
			ID:         uuid.New(),
			Name:       v.Name,
			Allocation: v.Allocation,
			Config:     v.Config,
		}
		if v.Name == req.ControlVariantName {
			e.ControlVariantID = variant.ID
		}
		e.Variants = append(e.Variants, variant)
	}

	if err := s.db.CreateExperiment(ctx, e); err != nil {
		return model.Experiment{}, err
	}
	s.logger.Info("experiment created",
		"experiment_id", e.ID, "template_id", e.TemplateID, "variants", len(e.Variants))
	return e, nil
}

// Get returns an experiment by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (model.Experiment, error) {
	return s.db.GetExperiment(ctx, id)
}

// List returns experiments, optionally filtered by status.
func (s *Service) List(ctx context.Context, status *model.ExperimentStatus, limit, offset int) ([]model.Experiment, int, error) {
	return s.db.ListExperiments(ctx, status, limit, offset)
}

// Start transitions a draft experiment to running.
func (s *Service) Start(ctx context.Context, id uuid.UUID) error {
	if err := s.db.TransitionExperimentStatus(ctx, id, model.ExperimentDraft, model.ExperimentRunning); err != nil {
		return err
	}
	s.logger.Info("experiment started", "experiment_id", id)
	return nil
}

// Pause transitions a running experiment to paused.
func (s *Service) Pause(ctx context.Context, id uuid.UUID) error {
	if err := s.db.TransitionExperimentStatus(ctx, id, model.ExperimentRunning, model.ExperimentPaused); err != nil {
		return err
	}
	s.logger.Info("experiment paused", "experiment_id", id)
	return nil
}

// Resume transitions a paused experiment back to running.
func (s *Service) Resume(ctx context.Context, id uuid.UUID) error {
	if err := s.db.TransitionExperimentStatus(ctx, id, model.ExperimentPaused, model.ExperimentRunning); err != nil {
		return err
	}
	s.logger.Info("experiment resumed", "experiment_id", id)
	return nil
}

// Complete finalizes an experiment: recomputes results, stores the
// winner (which may be nil when undetermined), and marks it completed.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (model.ExperimentResults, error) {
	e, err := s.db.GetExperiment(ctx, id)
	if err != nil {
		return model.ExperimentResults{}, err
	}
	if e.Status != model.ExperimentRunning && e.Status != model.ExperimentPaused {
		return model.ExperimentResults{}, fmt.Errorf("experiment: cannot complete experiment in status %q: %w",
			e.Status, storage.ErrConflict)
	}

	results, err := s.computeResults(ctx, e)
	if err != nil {
		return model.ExperimentResults{}, err
	}

	if err := s.db.CompleteExperiment(ctx, id, results.WinnerID, results.Summary); err != nil {
		return model.ExperimentResults{}, err
	}
	s.logger.Info("experiment completed",
		"experiment_id", id, "winner", results.WinnerID,
		"participants", results.Summary.TotalParticipants)

	results.Experiment.Status = model.ExperimentCompleted
	results.Experiment.WinnerVariantID = results.WinnerID
	return results, nil
}

// Results recomputes and returns current experiment results without
// changing status. Safe to call at any point in the lifecycle.
func (s *Service) Results(ctx context.Context, id uuid.UUID) (model.ExperimentResults, error) {
	e, err := s.db.GetExperiment(ctx, id)
	if err != nil {
		return model.ExperimentResults{}, err
	}
	return s.computeResults(ctx, e)
}

// AssignVariant deterministically maps a contact to a variant. The
// same contact always receives the same variant for the lifetime of
// the experiment, with no assignment state stored anywhere.
func (s *Service) AssignVariant(ctx context.Context, experimentID uuid.UUID, contactID string) (model.AssignVariantResponse, error) {
	if contactID == "" {
		return model.AssignVariantResponse{}, invalidf("contact_id is required")
	}
	e, err := s.db.GetExperiment(ctx, experimentID)
	if err != nil {
		return model.AssignVariantResponse{}, err
	}
	if e.Status != model.ExperimentRunning {
		return model.AssignVariantResponse{}, fmt.Errorf("experiment: cannot assign variant in status %q: %w",
			e.Status, storage.ErrConflict)
	}

	v := Assign(e, contactID)
	return model.AssignVariantResponse{
		ExperimentID: e.ID,
		ContactID:    contactID,
		VariantID:    v.ID,
		VariantName:  v.Name,
	}, nil
}

// Assign is the pure assignment function: hash the contact and
// experiment IDs into a bucket in [0, 100), then walk the variants in
// definition order accumulating allocations until the bucket falls
// inside one. Rounding drift in allocations falls through to the
// control variant.
func Assign(e model.Experiment, contactID string) model.Variant {
	bucket := hashBucket(e.ID.String() + "-" + contactID)

	var cumulative float64
	for _, v := range e.Variants {
		cumulative += v.Allocation
		if float64(bucket) < cumulative {
			return v
		}
	}
	if c := e.ControlVariant(); c != nil {
		return *c
	}
	return e.Variants[0]
}

// RecordInteraction appends an interaction event attributed to the
// contact's assigned variant.
func (s *Service) RecordInteraction(ctx context.Context, experimentID uuid.UUID, req model.RecordInteractionRequest) error {
	if req.ContactID == "" {
		return invalidf("contact_id is required")
	}
	if !model.ValidInteractionType(req.InteractionType) {
		return invalidf("unknown interaction_type %q", req.InteractionType)
	}
	e, err := s.db.GetExperiment(ctx, experimentID)
	if err != nil {
		return err
	}
	if e.Status != model.ExperimentRunning {
		return fmt.Errorf("experiment: cannot record interaction in status %q: %w",
			e.Status, storage.ErrConflict)
	}

	v := Assign(e, req.ContactID)
	now := time.Now().UTC()
	occurred := now
	if req.OccurredAt != nil {
		occurred = req.OccurredAt.UTC()
	}

	event := model.InteractionEvent{
		ID:              uuid.New(),
		TemplateID:      e.TemplateID,
		ExperimentID:    &e.ID,
		VariantID:       &v.ID,
		ContactID:       req.ContactID,
		InteractionType: req.InteractionType,
		Channel:         v.Config.Channel,
		Revenue:         req.Revenue,
		Engaged:         model.EngagedType(req.InteractionType),
		Status:          "completed",
		OccurredAt:      occurred,
		CreatedAt:       now,
	}
	if err := s.db.InsertEvent(ctx, event); err != nil {
		return err
	}

	// Completion is a side effect of logging, not a scheduled job: once
	// every variant reaches the minimum sample size the experiment
	// finalizes itself. A CAS conflict here means a concurrent recorder
	// already completed it, which is fine.
	done, err := s.shouldComplete(ctx, e)
	if err != nil {
		s.logger.Warn("experiment auto-completion check failed",
			"experiment_id", e.ID, "error", err)
		return nil
	}
	if done {
		if _, err := s.Complete(ctx, e.ID); err != nil && !errors.Is(err, storage.ErrConflict) {
			s.logger.Warn("experiment auto-completion failed",
				"experiment_id", e.ID, "error", err)
		}
	}
	return nil
}

// shouldComplete reports whether every variant has reached the
// experiment's minimum sample size. A count query screens out
// experiments that cannot possibly qualify before the full event scan.
func (s *Service) shouldComplete(ctx context.Context, e model.Experiment) (bool, error) {
	total, err := s.db.CountEvents(ctx, model.EventFilters{ExperimentID: &e.ID})
	if err != nil {
		return false, err
	}
	if total < e.MinimumSampleSize*len(e.Variants) {
		return false, nil
	}

	events, err := s.db.GetEventsByExperiment(ctx, e.ID)
	if err != nil {
		return false, err
	}
	contacts := make(map[uuid.UUID]map[string]bool, len(e.Variants))
	for _, ev := range events {
		if ev.VariantID == nil {
			continue
		}
		if contacts[*ev.VariantID] == nil {
			contacts[*ev.VariantID] = make(map[string]bool)
		}
		contacts[*ev.VariantID][ev.ContactID] = true
	}
	for _, v := range e.Variants {
		if len(contacts[v.ID]) < e.MinimumSampleSize {
			return false, nil
		}
	}
	return true, nil
}

// computeResults derives per-variant metrics, determines the winner,
// and assembles the summary. The event log is the only input; nothing
// here mutates state.
func (s *Service) computeResults(ctx context.Context, e model.Experiment) (model.ExperimentResults, error) {
	events, err := s.db.GetEventsByExperiment(ctx, e.ID)
	if err != nil {
		return model.ExperimentResults{}, err
	}
	return s.deriveResults(e, events), nil
}

// deriveResults is the pure analysis half of computeResults, split out
// so it can be exercised without a store.
func (s *Service) deriveResults(e model.Experiment, events []model.InteractionEvent) model.ExperimentResults {
	variants := make([]model.Variant, len(e.Variants))
	copy(variants, e.Variants)

	totalParticipants := 0
	for i := range variants {
		m := variantMetrics(variants[i].ID, events)
		variants[i].Metrics = &m
		totalParticipants += m.SampleSize
	}

	winnerID := determineWinner(variants, e.PrimaryMetric, e.ConfidenceThreshold)

	significant := false
	for i := range variants {
		if variants[i].Metrics.ConfidenceLevel >= e.ConfidenceThreshold {
			significant = true
			break
		}
	}

	summary := model.ExperimentSummary{
		TotalParticipants:       totalParticipants,
		StatisticalSignificance: significant,
	}
	if winnerID != nil {
		for i := range variants {
			if variants[i].ID == *winnerID {
				variants[i].Metrics.IsWinner = true
				summary.ImprovementOverControl = improvementOverControl(variants, e, *winnerID)
				summary.EstimatedAnnualImpact = s.annualImpact(e, totalParticipants, summary.ImprovementOverControl)
			}
		}
	}

	return model.ExperimentResults{
		Experiment:     e,
		VariantMetrics: variants,
		Summary:        summary,
		WinnerID:       winnerID,
	}
}

// variantMetrics folds the event log into one variant's funnel rates.
// Sample size is distinct contacts, not event count.
func variantMetrics(variantID uuid.UUID, events []model.InteractionEvent) model.VariantMetrics {
	var (
		delivered, opened, clicked, responded, converted int
		revenue                                          float64
	)
	contacts := make(map[string]bool)

	for _, ev := range events {
		if ev.VariantID == nil || *ev.VariantID != variantID {
			continue
		}
		contacts[ev.ContactID] = true
		switch ev.InteractionType {
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
			if ev.Revenue != nil {
				revenue += *ev.Revenue
			}
		}
	}

	m := model.VariantMetrics{
		SampleSize:     len(contacts),
		OpenRate:       safeRate(opened, delivered),
		ClickRate:      safeRate(clicked, opened),
		ResponseRate:   safeRate(responded, delivered),
		ConversionRate: safeRate(converted, delivered),
		Revenue:        revenue,
	}
	m.ConfidenceLevel = confidenceLevel(m.ConversionRate/100, m.SampleSize)
	return m
}

// determineWinner picks the winning variant, or nil when undetermined.
// Variants must individually reach the qualifying sample size; the best
// performer on the primary metric wins only if its confidence clears
// the experiment's threshold.
func determineWinner(variants []model.Variant, metric model.PrimaryMetric, threshold float64) *uuid.UUID {
	qualified := make([]model.Variant, 0, len(variants))
	for _, v := range variants {
		if v.Metrics != nil && v.Metrics.SampleSize >= qualifyingSampleSize {
			qualified = append(qualified, v)
		}
	}
	if len(qualified) < 2 {
		return nil
	}

	sort.SliceStable(qualified, func(i, j int) bool {
		return qualified[i].Metrics.PrimaryValue(metric) > qualified[j].Metrics.PrimaryValue(metric)
	})

	top := qualified[0]
	if top.Metrics.ConfidenceLevel >= threshold {
		id := top.ID
		return &id
	}
	return nil
}

// improvementOverControl returns the winner's relative lift on the
// primary metric versus the control variant, as a percentage.
func improvementOverControl(variants []model.Variant, e model.Experiment, winnerID uuid.UUID) float64 {
	var winner, control *model.VariantMetrics
	for i := range variants {
		if variants[i].ID == winnerID {
			winner = variants[i].Metrics
		}
		if variants[i].ID == e.ControlVariantID {
			control = variants[i].Metrics
		}
	}
	if winner == nil || control == nil {
		return 0
	}
	base := control.PrimaryValue(e.PrimaryMetric)
	if base == 0 {
		return 0
	}
	return (winner.PrimaryValue(e.PrimaryMetric) - base) / base * 100
}

// annualImpact projects the experiment's total participant volume onto
// a year of traffic and applies the winner's improvement. Open-ended
// experiments are normalized to a 30 day duration; completed ones use
// their actual span.
func (s *Service) annualImpact(e model.Experiment, totalParticipants int, improvementPct float64) float64 {
	durationDays := 30.0
	if e.EndDate != nil {
		durationDays = e.EndDate.Sub(e.StartDate).Hours() / 24
		if durationDays < 1 {
			durationDays = 1
		}
	}
	annualVolume := float64(totalParticipants) / durationDays * 365
	return annualVolume * (improvementPct / 100) * s.avgDealValue
}
