// Package conflicts persists divergent concurrent edits until a client
// explicitly resolves them. Conflicts are queryable state, not push errors.
package conflicts

import (
	"context"

	"github.com/verdalabs/wellspring/internal/server/models"
)

type Repository interface {
	// Create stores a detected conflict and returns its server id.
	Create(ctx context.Context, conflict *models.SyncConflict) (string, error)

	// ListByDevice returns the device's unresolved conflicts, oldest first.
	ListByDevice(ctx context.Context, userID, deviceID string) ([]*models.SyncConflict, error)

	// Get fetches one conflict scoped to its owner, or common.ErrorNotFound.
	Get(ctx context.Context, id, userID string) (*models.SyncConflict, error)

	// Delete removes a resolved conflict.
	Delete(ctx context.Context, id, userID string) error
}
