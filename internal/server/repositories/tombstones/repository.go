// Package tombstones records server-side deletes so that other devices can
// observe a deletion on pull instead of merely noticing the row's absence.
package tombstones

import (
	"context"
	"time"

	"github.com/verdalabs/wellspring/internal/server/models"
)

type Repository interface {
	// Record marks (entryType, serverID) as deleted. Recording the same
	// deletion twice refreshes the timestamp rather than failing.
	Record(ctx context.Context, userID, entryType, serverID string, deletedAt time.Time) error

	// Since returns up to limit tombstones at or after the checkpoint,
	// oldest first.
	Since(ctx context.Context, userID string, since time.Time, limit int) ([]*models.Tombstone, error)
}
