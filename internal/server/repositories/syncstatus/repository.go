// Package syncstatus persists the per-(user, device) sync checkpoint.
package syncstatus

import (
	"context"
	"time"

	"github.com/verdalabs/wellspring/internal/server/models"
)

type Repository interface {
	// Get returns the device's status, or common.ErrorNotFound if the device
	// has never completed a push.
	Get(ctx context.Context, userID, deviceID string) (*models.SyncStatus, error)

	// Upsert overwrites the checkpoint row; repeated pushes never append.
	Upsert(ctx context.Context, userID, deviceID string, lastSyncAt time.Time, pendingChanges int, syncErrors []models.FailedEntry) error

	// Delete removes the row, making the next pull a full resync.
	Delete(ctx context.Context, userID, deviceID string) error
}
