package feeds

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/verdalabs/wellspring/internal/dbx"
	"github.com/verdalabs/wellspring/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) RecentAnalyses(ctx context.Context, userID string, limit int) ([]models.DailyAnalysis, error) {
	query := `
		SELECT id, analysis_date, summary, insights, created_at FROM daily_analyses
		WHERE user_id = $1
		ORDER BY analysis_date DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.DailyAnalysis
	for rows.Next() {
		var a models.DailyAnalysis
		var insightsRaw []byte
		if err := rows.Scan(&a.ID, &a.AnalysisDate, &a.Summary, &insightsRaw, &a.CreatedAt); err != nil {
			return nil, err
		}
		if len(insightsRaw) > 0 {
			if err := json.Unmarshal(insightsRaw, &a.Insights); err != nil {
				return nil, fmt.Errorf("insights decode error: %w", err)
			}
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) RecentPodcasts(ctx context.Context, userID string, limit int) ([]models.Podcast, error) {
	query := `
		SELECT id, title, storage_key, duration_seconds, status, created_at FROM podcasts
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.Podcast
	for rows.Next() {
		var p models.Podcast
		if err := rows.Scan(&p.ID, &p.Title, &p.StorageKey, &p.DurationSeconds, &p.Status, &p.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
