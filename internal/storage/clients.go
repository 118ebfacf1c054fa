package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/cadencehq/cadence/internal/model"
)

// CreateClient inserts a new API client identity.
func (db *DB) CreateClient(ctx context.Context, c model.APIClient) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO api_clients (id, client_id, name, role, api_key_hash, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.ClientID, c.Name, string(c.Role), c.APIKeyHash, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("storage: create client: %w", err)
	}
	return nil
}

// GetClientByClientID retrieves a client by its external client_id.
func (db *DB) GetClientByClientID(ctx context.Context, clientID string) (model.APIClient, error) {
	var c model.APIClient
	var role string
	err := db.pool.QueryRow(ctx,
		`SELECT id, client_id, name, role, api_key_hash, created_at, updated_at
		 FROM api_clients WHERE client_id = $1`, clientID,
	).Scan(&c.ID, &c.ClientID, &c.Name, &role, &c.APIKeyHash, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.APIClient{}, ErrNotFound
		}
		return model.APIClient{}, fmt.Errorf("storage: get client: %w", err)
	}
	c.Role = model.ClientRole(role)
	return c, nil
}

// UpdateClientRole changes a client's role.
func (db *DB) UpdateClientRole(ctx context.Context, id uuid.UUID, role model.ClientRole) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE api_clients SET role = $1, updated_at = $2 WHERE id = $3`,
		string(role), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("storage: update client role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
