package storage

import (
	"context"

	"github.com/google/uuid"
)

// UpsertUser records a user seen on an authenticated request.
// Updates last_seen and keeps the previous name when name is empty.
func (db *DB) UpsertUser(ctx context.Context, id uuid.UUID, name string) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO users (id, name)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE
			SET last_seen = NOW(), name = COALESCE(NULLIF($2, ''), users.name)
	`, id, name)
	return err
}
