package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tutorslot/internal/models"
)

// UpsertParty creates a party or refreshes its profile fields. The kind of an existing
// party never changes.
func (db *DB) UpsertParty(ctx context.Context, p *models.Party) error {
	ts := utcNow()
	_, err := db.ExecContext(ctx, `
        INSERT INTO parties (id, kind, name, details, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            name = excluded.name,
            details = excluded.details,
            updated_at = excluded.updated_at
        WHERE parties.kind = excluded.kind`,
		p.ID, p.Kind, p.Name, p.Details, ts, ts)
	if err != nil {
		return fmt.Errorf("failed to upsert party: %w", mapConstraintError(err, models.ErrValidation))
	}

	stored, err := db.GetParty(ctx, p.ID)
	if err != nil {
		return err
	}
	if stored.Kind != p.Kind {
		return fmt.Errorf("%w: party %s is a %s", models.ErrValidation, p.ID, stored.Kind)
	}
	*p = *stored
	return nil
}

func (db *DB) GetParty(ctx context.Context, id string) (*models.Party, error) {
	var p models.Party
	err := db.QueryRowContext(ctx,
		`SELECT id, kind, name, details, created_at, updated_at FROM parties WHERE id = ?`, id).
		Scan(&p.ID, &p.Kind, &p.Name, &p.Details, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("party %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get party: %w", err)
	}
	return &p, nil
}
