// Package records implements the generic, schema-agnostic store the sync
// subsystem writes through. Tables are addressed by name (always resolved via
// the entry registry, never hardcoded) and rows travel as opaque field maps.
package records

import (
	"context"
	"time"
)

type Repository interface {
	// Upsert inserts row and returns the server-assigned id. If a row with the
	// same (user_id, client_ref) already exists, it is updated instead, which
	// makes retried creates idempotent.
	Upsert(ctx context.Context, table string, row map[string]any) (string, error)

	// Update rewrites the given columns of the row scoped to (id, user_id).
	// A missing row yields common.ErrorNotFound.
	Update(ctx context.Context, table, id, userID string, row map[string]any) error

	// Delete removes the row scoped to (id, user_id). Deleting an absent row
	// is a no-op, not an error.
	Delete(ctx context.Context, table, id, userID string) error

	// GetByID returns the full row as a field map, or common.ErrorNotFound.
	GetByID(ctx context.Context, table, id, userID string) (map[string]any, error)

	// SelectSince returns up to limit rows of the user whose updated_at is at
	// or after since, ordered by updated_at with orderField as tiebreak.
	SelectSince(ctx context.Context, table, userID string, since time.Time, orderField string, limit int) ([]map[string]any, error)
}
