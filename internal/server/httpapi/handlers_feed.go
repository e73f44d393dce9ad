package httpapi

import (
	"net/http"

	"github.com/verdalabs/wellspring/internal/server/models"
)

func (rt *Router) handleAnalyses(w http.ResponseWriter, r *http.Request) {
	analyses, err := rt.feeds.RecentAnalyses(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if analyses == nil {
		analyses = []models.DailyAnalysis{}
	}
	respondJSON(w, http.StatusOK, analyses)
}

func (rt *Router) handlePodcasts(w http.ResponseWriter, r *http.Request) {
	podcasts, err := rt.feeds.RecentPodcasts(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if podcasts == nil {
		podcasts = []models.Podcast{}
	}
	respondJSON(w, http.StatusOK, podcasts)
}
