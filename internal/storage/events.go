package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/cadencehq/cadence/internal/model"
)

// eventColumns is the column list shared by COPY, INSERT, and SELECT so
// scans never drift from writes.
var eventColumns = []string{
	"id", "template_id", "experiment_id", "variant_id", "contact_id", "account_id",
	"interaction_type", "channel", "revenue", "cost", "response_time_hours", "engaged",
	"sequence_step", "sequence_completed", "content_type", "subject_line", "preview_text",
	"sentiment_score", "status", "payload", "occurred_at", "created_at",
}

func eventRow(e model.InteractionEvent) []any {
	return []any{
		e.ID, e.TemplateID, e.ExperimentID, e.VariantID, e.ContactID, e.AccountID,
		string(e.InteractionType), string(e.Channel), e.Revenue, e.Cost, e.ResponseTimeHours, e.Engaged,
		e.SequenceStep, e.SequenceCompleted, e.ContentType, e.SubjectLine, e.PreviewText,
		e.SentimentScore, e.Status, e.Payload, e.OccurredAt, e.CreatedAt,
	}
}

// InsertEvents inserts interaction events using the COPY protocol for
// high throughput.
func (db *DB) InsertEvents(ctx context.Context, events []model.InteractionEvent) (int64, error) {
	if len(events) == 0 {
		return 0, nil
	}

	rows := make([][]any, len(events))
	for i, e := range events {
		rows[i] = eventRow(e)
	}

	// Dedicated 30s COPY timeout prevents a hung Postgres from blocking
	// an ingest request indefinitely.
	copyCtx, copyCancel := context.WithTimeout(ctx, 30*time.Second)
	copyCount, err := db.pool.CopyFrom(
		copyCtx,
		pgx.Identifier{"interaction_events"},
		eventColumns,
		pgx.CopyFromRows(rows),
	)
	copyCancel()
	if err != nil {
		return 0, fmt.Errorf("storage: copy events: %w", err)
	}
	return copyCount, nil
}

// InsertEvent inserts a single event (for low-volume operations such as
// experiment interaction recording).
func (db *DB) InsertEvent(ctx context.Context, event model.InteractionEvent) error {
	placeholders := make([]string, len(eventColumns))
	for i := range eventColumns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	_, err := db.pool.Exec(ctx,
		fmt.Sprintf(`INSERT INTO interaction_events (%s) VALUES (%s)`,
			strings.Join(eventColumns, ", "), strings.Join(placeholders, ", ")),
		eventRow(event)...,
	)
	if err != nil {
		return fmt.Errorf("storage: insert event: %w", err)
	}
	return nil
}

// GetEvents retrieves events matching the filters, ordered by occurrence
// time ascending. The limit parameter caps the number of rows returned;
// if limit <= 0, it defaults to 100000. Callers should check if the
// returned slice length equals the limit to detect truncation.
func (db *DB) GetEvents(ctx context.Context, f model.EventFilters, limit int) ([]model.InteractionEvent, error) {
	if limit <= 0 {
		limit = 100000
	}

	where, args := buildEventWhere(f)
	query := fmt.Sprintf(
		`SELECT %s FROM interaction_events %s ORDER BY occurred_at ASC LIMIT $%d`,
		strings.Join(eventColumns, ", "), where, len(args)+1,
	)
	args = append(args, limit)

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: get events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// GetEventsByAccount retrieves events for any of the given accounts
// occurring at or before cutoff, across all templates, ordered ascending.
// Used by the attribution path walker.
func (db *DB) GetEventsByAccount(ctx context.Context, accountIDs []string, cutoff time.Time) ([]model.InteractionEvent, error) {
	if len(accountIDs) == 0 {
		return nil, nil
	}
	rows, err := db.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM interaction_events
		 WHERE account_id = ANY($1) AND occurred_at <= $2
		 ORDER BY occurred_at ASC`, strings.Join(eventColumns, ", ")),
		accountIDs, cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: get events by account: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// GetEventsByExperiment retrieves all events recorded against an
// experiment, ordered ascending.
func (db *DB) GetEventsByExperiment(ctx context.Context, experimentID uuid.UUID) ([]model.InteractionEvent, error) {
	rows, err := db.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM interaction_events
		 WHERE experiment_id = $1
		 ORDER BY occurred_at ASC`, strings.Join(eventColumns, ", ")),
		experimentID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: get events by experiment: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// CountEvents returns the number of events matching the filters.
func (db *DB) CountEvents(ctx context.Context, f model.EventFilters) (int, error) {
	where, args := buildEventWhere(f)
	var count int
	err := db.pool.QueryRow(ctx,
		`SELECT count(*) FROM interaction_events `+where, args...,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("storage: count events: %w", err)
	}
	return count, nil
}

// buildEventWhere assembles the WHERE clause for event filter queries.
func buildEventWhere(f model.EventFilters) (string, []any) {
	var conds []string
	var args []any

	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, strings.ReplaceAll(cond, "?", fmt.Sprintf("$%d", len(args))))
	}

	if len(f.TemplateIDs) > 0 {
		add("template_id = ANY(?)", f.TemplateIDs)
	}
	if f.ExperimentID != nil {
		add("experiment_id = ?", *f.ExperimentID)
	}
	if f.ContactID != nil {
		add("contact_id = ?", *f.ContactID)
	}
	if f.AccountID != nil {
		add("account_id = ?", *f.AccountID)
	}
	if len(f.Types) > 0 {
		types := make([]string, len(f.Types))
		for i, t := range f.Types {
			types[i] = string(t)
		}
		add("interaction_type = ANY(?)", types)
	}
	if f.Channel != nil {
		add("channel = ?", string(*f.Channel))
	}
	if f.TimeRange != nil {
		if f.TimeRange.From != nil {
			add("occurred_at >= ?", *f.TimeRange.From)
		}
		if f.TimeRange.To != nil {
			add("occurred_at <= ?", *f.TimeRange.To)
		}
	}

	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

func scanEvents(rows pgx.Rows) ([]model.InteractionEvent, error) {
	var events []model.InteractionEvent
	for rows.Next() {
		var e model.InteractionEvent
		if err := rows.Scan(
			&e.ID, &e.TemplateID, &e.ExperimentID, &e.VariantID, &e.ContactID, &e.AccountID,
			&e.InteractionType, &e.Channel, &e.Revenue, &e.Cost, &e.ResponseTimeHours, &e.Engaged,
			&e.SequenceStep, &e.SequenceCompleted, &e.ContentType, &e.SubjectLine, &e.PreviewText,
			&e.SentimentScore, &e.Status, &e.Payload, &e.OccurredAt, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("storage: scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
