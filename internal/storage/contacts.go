package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/cadencehq/cadence/internal/model"
)

// UpsertContact inserts or updates a contact keyed by its external ID.
// Title changes re-bucket the contact's stakeholder type.
func (db *DB) UpsertContact(ctx context.Context, c model.Contact) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO contacts (id, account_id, name, title, type, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE
		 SET account_id = EXCLUDED.account_id, name = EXCLUDED.name,
		     title = EXCLUDED.title, type = EXCLUDED.type`,
		c.ID, c.AccountID, c.Name, c.Title, string(c.Type), c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("storage: upsert contact: %w", err)
	}
	return nil
}

// GetContact retrieves a contact by external ID.
func (db *DB) GetContact(ctx context.Context, id string) (model.Contact, error) {
	var c model.Contact
	var typ string
	err := db.pool.QueryRow(ctx,
		`SELECT id, account_id, name, title, type, created_at FROM contacts WHERE id = $1`, id,
	).Scan(&c.ID, &c.AccountID, &c.Name, &c.Title, &typ, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Contact{}, ErrNotFound
		}
		return model.Contact{}, fmt.Errorf("storage: get contact: %w", err)
	}
	c.Type = model.StakeholderType(typ)
	return c, nil
}

// GetContactsByIDs retrieves contacts for the given external IDs,
// returned as a map keyed by ID. Missing IDs are simply absent.
func (db *DB) GetContactsByIDs(ctx context.Context, ids []string) (map[string]model.Contact, error) {
	if len(ids) == 0 {
		return map[string]model.Contact{}, nil
	}
	rows, err := db.pool.Query(ctx,
		`SELECT id, account_id, name, title, type, created_at FROM contacts WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("storage: get contacts by ids: %w", err)
	}
	defer rows.Close()

	contacts := make(map[string]model.Contact, len(ids))
	for rows.Next() {
		var c model.Contact
		var typ string
		if err := rows.Scan(&c.ID, &c.AccountID, &c.Name, &c.Title, &typ, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan contact: %w", err)
		}
		c.Type = model.StakeholderType(typ)
		contacts[c.ID] = c
	}
	return contacts, rows.Err()
}
