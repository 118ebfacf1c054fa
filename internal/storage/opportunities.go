package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/cadencehq/cadence/internal/model"
)

// UpsertOpportunity inserts or updates an opportunity. Stage changes
// flow in from the CRM sync, so the whole row is replaced on conflict.
func (db *DB) UpsertOpportunity(ctx context.Context, o model.Opportunity) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO opportunities (id, account_id, name, amount, stage, closed_won, closed_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE
		 SET account_id = EXCLUDED.account_id, name = EXCLUDED.name, amount = EXCLUDED.amount,
		     stage = EXCLUDED.stage, closed_won = EXCLUDED.closed_won, closed_at = EXCLUDED.closed_at`,
		o.ID, o.AccountID, o.Name, o.Amount, o.Stage, o.ClosedWon, o.ClosedAt, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("storage: upsert opportunity: %w", err)
	}
	return nil
}

// GetOpportunity retrieves an opportunity by ID.
func (db *DB) GetOpportunity(ctx context.Context, id uuid.UUID) (model.Opportunity, error) {
	var o model.Opportunity
	err := db.pool.QueryRow(ctx,
		`SELECT id, account_id, name, amount, stage, closed_won, closed_at, created_at
		 FROM opportunities WHERE id = $1`, id,
	).Scan(&o.ID, &o.AccountID, &o.Name, &o.Amount, &o.Stage, &o.ClosedWon, &o.ClosedAt, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Opportunity{}, ErrNotFound
		}
		return model.Opportunity{}, fmt.Errorf("storage: get opportunity: %w", err)
	}
	return o, nil
}

// ListClosedWonOpportunities returns closed-won opportunities whose
// close time falls inside the window, ordered by close time ascending.
// Open window bounds are unconstrained.
func (db *DB) ListClosedWonOpportunities(ctx context.Context, window model.TimeRange) ([]model.Opportunity, error) {
	query := `SELECT id, account_id, name, amount, stage, closed_won, closed_at, created_at
	 FROM opportunities WHERE closed_won AND closed_at IS NOT NULL`
	var args []any
	if window.From != nil {
		args = append(args, *window.From)
		query += fmt.Sprintf(" AND closed_at >= $%d", len(args))
	}
	if window.To != nil {
		args = append(args, *window.To)
		query += fmt.Sprintf(" AND closed_at <= $%d", len(args))
	}
	query += " ORDER BY closed_at ASC"

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: list closed-won opportunities: %w", err)
	}
	defer rows.Close()

	var opps []model.Opportunity
	for rows.Next() {
		var o model.Opportunity
		if err := rows.Scan(&o.ID, &o.AccountID, &o.Name, &o.Amount, &o.Stage, &o.ClosedWon, &o.ClosedAt, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan opportunity: %w", err)
		}
		opps = append(opps, o)
	}
	return opps, rows.Err()
}

// ListOpportunitiesByAccounts returns every opportunity owned by any
// of the given accounts, close time ascending with open deals last.
func (db *DB) ListOpportunitiesByAccounts(ctx context.Context, accountIDs []string) ([]model.Opportunity, error) {
	if len(accountIDs) == 0 {
		return nil, nil
	}
	rows, err := db.pool.Query(ctx,
		`SELECT id, account_id, name, amount, stage, closed_won, closed_at, created_at
		 FROM opportunities WHERE account_id = ANY($1)
		 ORDER BY closed_at ASC NULLS LAST`, accountIDs)
	if err != nil {
		return nil, fmt.Errorf("storage: list opportunities by account: %w", err)
	}
	defer rows.Close()

	var opps []model.Opportunity
	for rows.Next() {
		var o model.Opportunity
		if err := rows.Scan(&o.ID, &o.AccountID, &o.Name, &o.Amount, &o.Stage, &o.ClosedWon, &o.ClosedAt, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan opportunity: %w", err)
		}
		opps = append(opps, o)
	}
	return opps, rows.Err()
}
