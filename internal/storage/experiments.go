package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/cadencehq/cadence/internal/model"
)

// CreateExperiment inserts a new experiment. Variants are stored as a
// JSONB document; they are immutable once the experiment starts, so a
// normalized table buys nothing over the document.
func (db *DB) CreateExperiment(ctx context.Context, e model.Experiment) error {
	variants, err := json.Marshal(e.Variants)
	if err != nil {
		return fmt.Errorf("storage: marshal variants: %w", err)
	}
	_, err = db.pool.Exec(ctx,
		`INSERT INTO experiments
		 (id, name, template_id, status, start_date, end_date, variants, control_variant_id,
		  minimum_sample_size, confidence_threshold, primary_metric, winner_variant_id, results,
		  created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		e.ID, e.Name, e.TemplateID, string(e.Status), e.StartDate, e.EndDate, variants,
		e.ControlVariantID, e.MinimumSampleSize, e.ConfidenceThreshold, string(e.PrimaryMetric),
		e.WinnerVariantID, e.Results, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("storage: create experiment: %w", err)
	}
	return nil
}

const experimentColumns = `id, name, template_id, status, start_date, end_date, variants,
	control_variant_id, minimum_sample_size, confidence_threshold, primary_metric,
	winner_variant_id, results, created_at, updated_at`

// GetExperiment retrieves an experiment by ID.
func (db *DB) GetExperiment(ctx context.Context, id uuid.UUID) (model.Experiment, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+experimentColumns+` FROM experiments WHERE id = $1`, id)
	e, err := scanExperiment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Experiment{}, ErrNotFound
		}
		return model.Experiment{}, fmt.Errorf("storage: get experiment: %w", err)
	}
	return e, nil
}

// ListExperiments returns experiments, newest first, optionally filtered
// by status.
func (db *DB) ListExperiments(ctx context.Context, status *model.ExperimentStatus, limit, offset int) ([]model.Experiment, int, error) {
	if limit <= 0 {
		limit = 50
	}

	where := ""
	args := []any{}
	if status != nil {
		where = "WHERE status = $1"
		args = append(args, string(*status))
	}

	var total int
	if err := db.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM experiments `+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("storage: count experiments: %w", err)
	}

	args = append(args, limit, offset)
	rows, err := db.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM experiments %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
			experimentColumns, where, len(args)-1, len(args)),
		args...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("storage: list experiments: %w", err)
	}
	defer rows.Close()

	var experiments []model.Experiment
	for rows.Next() {
		e, err := scanExperiment(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("storage: scan experiment: %w", err)
		}
		experiments = append(experiments, e)
	}
	return experiments, total, rows.Err()
}

// ListRunningExperimentsByTemplate returns running experiments attached
// to a template. Used to suppress test suggestions for templates that
// already have a live test.
func (db *DB) ListRunningExperimentsByTemplate(ctx context.Context, templateID uuid.UUID) ([]model.Experiment, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+experimentColumns+` FROM experiments
		 WHERE template_id = $1 AND status = 'running'`, templateID)
	if err != nil {
		return nil, fmt.Errorf("storage: list running experiments: %w", err)
	}
	defer rows.Close()

	var experiments []model.Experiment
	for rows.Next() {
		e, err := scanExperiment(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan experiment: %w", err)
		}
		experiments = append(experiments, e)
	}
	return experiments, rows.Err()
}

// TransitionExperimentStatus performs a compare-and-swap status update.
// The transition applies only if the stored status equals from; a stale
// caller gets ErrConflict instead of silently clobbering a concurrent
// transition. ErrNotFound is returned when the experiment does not exist
// at all.
func (db *DB) TransitionExperimentStatus(ctx context.Context, id uuid.UUID, from, to model.ExperimentStatus) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE experiments SET status = $1, updated_at = $2
		 WHERE id = $3 AND status = $4`,
		string(to), time.Now().UTC(), id, string(from),
	)
	if err != nil {
		return fmt.Errorf("storage: transition experiment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := db.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM experiments WHERE id = $1)`, id,
		).Scan(&exists); err != nil {
			return fmt.Errorf("storage: check experiment exists: %w", err)
		}
		if !exists {
			return ErrNotFound
		}
		return ErrConflict
	}
	return nil
}

// CompleteExperiment atomically marks an experiment completed and stores
// the winner and final summary. Same CAS discipline as status
// transitions: only a running or paused experiment can complete.
func (db *DB) CompleteExperiment(ctx context.Context, id uuid.UUID, winnerID *uuid.UUID, results model.ExperimentSummary) error {
	now := time.Now().UTC()
	tag, err := db.pool.Exec(ctx,
		`UPDATE experiments
		 SET status = 'completed', end_date = $1, winner_variant_id = $2, results = $3, updated_at = $1
		 WHERE id = $4 AND status IN ('running', 'paused')`,
		now, winnerID, results, id,
	)
	if err != nil {
		return fmt.Errorf("storage: complete experiment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := db.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM experiments WHERE id = $1)`, id,
		).Scan(&exists); err != nil {
			return fmt.Errorf("storage: check experiment exists: %w", err)
		}
		if !exists {
			return ErrNotFound
		}
		return ErrConflict
	}
	return nil
}

// scanExperiment scans one experiment row from either a Row or Rows.
func scanExperiment(row pgx.Row) (model.Experiment, error) {
	var (
		e        model.Experiment
		variants []byte
		status   string
		metric   string
	)
	if err := row.Scan(
		&e.ID, &e.Name, &e.TemplateID, &status, &e.StartDate, &e.EndDate, &variants,
		&e.ControlVariantID, &e.MinimumSampleSize, &e.ConfidenceThreshold, &metric,
		&e.WinnerVariantID, &e.Results, &e.CreatedAt, &e.UpdatedAt,
	); err != nil {
		return model.Experiment{}, err
	}
	e.Status = model.ExperimentStatus(status)
	e.PrimaryMetric = model.PrimaryMetric(metric)
	if err := json.Unmarshal(variants, &e.Variants); err != nil {
		return model.Experiment{}, fmt.Errorf("unmarshal variants: %w", err)
	}
	return e, nil
}
