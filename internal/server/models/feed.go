package models

import "time"

// DailyAnalysis is one generated wellness summary. Insights is the structured
// output of the analysis pipeline, stored as-is and never interpreted here.
type DailyAnalysis struct {
	ID           string         `json:"id"`
	AnalysisDate string         `json:"analysis_date"`
	Summary      string         `json:"summary"`
	Insights     map[string]any `json:"insights"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Podcast is one synthesized audio summary. AudioURL is a short-lived
// presigned link minted at read time; StorageKey never leaves the server.
type Podcast struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	DurationSeconds int       `json:"duration_seconds"`
	Status          string    `json:"status"`
	AudioURL        string    `json:"audio_url,omitempty"`
	CreatedAt       time.Time `json:"created_at"`

	StorageKey string `json:"-"`
}
