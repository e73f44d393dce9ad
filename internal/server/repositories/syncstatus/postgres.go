package syncstatus

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/verdalabs/wellspring/internal/common"
	"github.com/verdalabs/wellspring/internal/dbx"
	"github.com/verdalabs/wellspring/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, userID, deviceID string) (*models.SyncStatus, error) {
	query := `
		SELECT last_sync_at, pending_changes, sync_errors FROM sync_status
		WHERE user_id = $1 AND device_id = $2
	`

	var (
		lastSyncAt time.Time
		pending    int
		errsRaw    []byte
	)
	err := r.db.QueryRowContext(ctx, query, userID, deviceID).Scan(&lastSyncAt, &pending, &errsRaw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	syncErrors := []models.FailedEntry{}
	if len(errsRaw) > 0 {
		if err := json.Unmarshal(errsRaw, &syncErrors); err != nil {
			return nil, fmt.Errorf("sync_errors decode error: %w", err)
		}
	}

	return &models.SyncStatus{
		DeviceID:       deviceID,
		LastSyncAt:     &lastSyncAt,
		PendingChanges: pending,
		SyncErrors:     syncErrors,
	}, nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, userID, deviceID string, lastSyncAt time.Time, pendingChanges int, syncErrors []models.FailedEntry) error {
	if syncErrors == nil {
		syncErrors = []models.FailedEntry{}
	}
	errsRaw, err := json.Marshal(syncErrors)
	if err != nil {
		return fmt.Errorf("sync_errors encode error: %w", err)
	}

	query := `
		INSERT INTO sync_status (user_id, device_id, last_sync_at, pending_changes, sync_errors)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, device_id)
		DO UPDATE SET
			last_sync_at = EXCLUDED.last_sync_at,
			pending_changes = EXCLUDED.pending_changes,
			sync_errors = EXCLUDED.sync_errors
	`

	if _, err := r.db.ExecContext(ctx, query, userID, deviceID, lastSyncAt, pendingChanges, errsRaw); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, userID, deviceID string) error {
	query := `DELETE FROM sync_status WHERE user_id = $1 AND device_id = $2`

	if _, err := r.db.ExecContext(ctx, query, userID, deviceID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
