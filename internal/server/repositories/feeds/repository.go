// Package feeds reads the derived content other pipelines produce: daily
// analyses and generated podcasts. This subsystem never writes these tables.
package feeds

import (
	"context"

	"github.com/verdalabs/wellspring/internal/server/models"
)

type Repository interface {
	// RecentAnalyses returns the user's newest daily analyses, newest first.
	RecentAnalyses(ctx context.Context, userID string, limit int) ([]models.DailyAnalysis, error)

	// RecentPodcasts returns the user's newest podcasts, newest first.
	// AudioURL is left empty; presigning happens in the service layer.
	RecentPodcasts(ctx context.Context, userID string, limit int) ([]models.Podcast, error)
}
