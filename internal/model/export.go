package model

import "time"

// HistoryExport is the top-level JSON structure for `cotgame history --json`.
type HistoryExport struct {
	APIURL      string    `json:"api_url"`
	ExportedAt  time.Time `json:"exported_at"`
	NumAttempts int       `json:"num_attempts"`
	Attempts    []Attempt `json:"attempts"`
}
