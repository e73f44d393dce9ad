package tombstones

import (
	"context"
	"fmt"
	"time"

	"github.com/verdalabs/wellspring/internal/dbx"
	"github.com/verdalabs/wellspring/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Record(ctx context.Context, userID, entryType, serverID string, deletedAt time.Time) error {
	query := `
		INSERT INTO sync_tombstones (user_id, entry_type, server_id, deleted_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, entry_type, server_id)
		DO UPDATE SET deleted_at = EXCLUDED.deleted_at
	`

	if _, err := r.db.ExecContext(ctx, query, userID, entryType, serverID, deletedAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Since(ctx context.Context, userID string, since time.Time, limit int) ([]*models.Tombstone, error) {
	query := `
		SELECT entry_type, server_id, deleted_at FROM sync_tombstones
		WHERE user_id = $1 AND deleted_at >= $2
		ORDER BY deleted_at
		LIMIT $3
	`

	rows, err := r.db.QueryContext(ctx, query, userID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Tombstone
	for rows.Next() {
		ts := &models.Tombstone{UserID: userID}
		if err := rows.Scan(&ts.EntryType, &ts.ServerID, &ts.DeletedAt); err != nil {
			return nil, err
		}
		result = append(result, ts)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
