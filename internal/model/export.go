package model

import "time"

// LearnerExport is the top-level JSON structure written by the export command.
type LearnerExport struct {
	LearnerID   string              `json:"learner_id"`
	ExportedAt  time.Time           `json:"exported_at"`
	Cards       []Card              `json:"cards"`
	Answers     []GradedAnswer      `json:"answers"`
	Completions []SessionCompletion `json:"completions"`
	DailyStats  []DailyStat         `json:"daily_stats"`
}
