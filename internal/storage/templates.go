package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/cadencehq/cadence/internal/model"
)

// CreateTemplate inserts an automation template.
func (db *DB) CreateTemplate(ctx context.Context, t model.Template) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO templates (id, name, automation_type, channel, active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		t.ID, t.Name, t.AutomationType, string(t.Channel), t.Active, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("storage: create template: %w", err)
	}
	return nil
}

// GetTemplate retrieves a template by ID.
func (db *DB) GetTemplate(ctx context.Context, id uuid.UUID) (model.Template, error) {
	var t model.Template
	var channel string
	err := db.pool.QueryRow(ctx,
		`SELECT id, name, automation_type, channel, active, created_at
		 FROM templates WHERE id = $1`, id,
	).Scan(&t.ID, &t.Name, &t.AutomationType, &channel, &t.Active, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Template{}, ErrNotFound
		}
		return model.Template{}, fmt.Errorf("storage: get template: %w", err)
	}
	t.Channel = model.Channel(channel)
	return t, nil
}

// ListTemplates returns all templates, name order. The template catalog
// is small (hundreds at most) so no pagination.
func (db *DB) ListTemplates(ctx context.Context) ([]model.Template, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, name, automation_type, channel, active, created_at
		 FROM templates ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("storage: list templates: %w", err)
	}
	defer rows.Close()

	var templates []model.Template
	for rows.Next() {
		var t model.Template
		var channel string
		if err := rows.Scan(&t.ID, &t.Name, &t.AutomationType, &channel, &t.Active, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan template: %w", err)
		}
		t.Channel = model.Channel(channel)
		templates = append(templates, t)
	}
	return templates, rows.Err()
}
