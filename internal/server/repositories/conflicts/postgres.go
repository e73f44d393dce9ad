package conflicts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

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

func (r *PostgresRepository) Create(ctx context.Context, c *models.SyncConflict) (string, error) {
	localRaw, err := json.Marshal(c.LocalData)
	if err != nil {
		return "", fmt.Errorf("local_data encode error: %w", err)
	}
	serverRaw, err := json.Marshal(c.ServerData)
	if err != nil {
		return "", fmt.Errorf("server_data encode error: %w", err)
	}

	query := `
		INSERT INTO sync_conflicts
			(user_id, device_id, entry_type, local_id, server_id,
			 local_data, server_data, local_modified_at, server_modified_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	var id string
	err = r.db.QueryRowContext(ctx, query,
		c.UserID, c.DeviceID, c.EntryType, c.LocalID, c.ServerID,
		localRaw, serverRaw, c.LocalModifiedAt, c.ServerModifiedAt,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("db error: %w", err)
	}
	return id, nil
}

func (r *PostgresRepository) ListByDevice(ctx context.Context, userID, deviceID string) ([]*models.SyncConflict, error) {
	query := `
		SELECT id, entry_type, local_id, server_id, local_data, server_data,
		       local_modified_at, server_modified_at
		FROM sync_conflicts
		WHERE user_id = $1 AND device_id = $2
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query, userID, deviceID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.SyncConflict
	for rows.Next() {
		c := &models.SyncConflict{UserID: userID, DeviceID: deviceID}
		var localRaw, serverRaw []byte
		if err := rows.Scan(
			&c.ID, &c.EntryType, &c.LocalID, &c.ServerID, &localRaw, &serverRaw,
			&c.LocalModifiedAt, &c.ServerModifiedAt,
		); err != nil {
			return nil, err
		}
		if err := decodePayloads(c, localRaw, serverRaw); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id, userID string) (*models.SyncConflict, error) {
	query := `
		SELECT id, device_id, entry_type, local_id, server_id, local_data, server_data,
		       local_modified_at, server_modified_at
		FROM sync_conflicts
		WHERE id = $1 AND user_id = $2
	`

	c := &models.SyncConflict{UserID: userID}
	var localRaw, serverRaw []byte
	err := r.db.QueryRowContext(ctx, query, id, userID).Scan(
		&c.ID, &c.DeviceID, &c.EntryType, &c.LocalID, &c.ServerID, &localRaw, &serverRaw,
		&c.LocalModifiedAt, &c.ServerModifiedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if err := decodePayloads(c, localRaw, serverRaw); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id, userID string) error {
	query := `DELETE FROM sync_conflicts WHERE id = $1 AND user_id = $2`

	if _, err := r.db.ExecContext(ctx, query, id, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func decodePayloads(c *models.SyncConflict, localRaw, serverRaw []byte) error {
	if err := json.Unmarshal(localRaw, &c.LocalData); err != nil {
		return fmt.Errorf("local_data decode error: %w", err)
	}
	if err := json.Unmarshal(serverRaw, &c.ServerData); err != nil {
		return fmt.Errorf("server_data decode error: %w", err)
	}
	return nil
}
