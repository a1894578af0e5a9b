package store

import (
	"fmt"
	"time"

	"github.com/pavelanni/cotgame/internal/model"
)

// ExportHistory builds the JSON export of local attempts, newest first.
func (s *Store) ExportHistory(apiURL string, questionID int64) (model.HistoryExport, error) {
	attempts, err := s.ListAttempts(questionID, 0)
	if err != nil {
		return model.HistoryExport{}, fmt.Errorf("list attempts: %w", err)
	}
	if attempts == nil {
		attempts = []model.Attempt{}
	}
	return model.HistoryExport{
		APIURL:      apiURL,
		ExportedAt:  time.Now().UTC(),
		NumAttempts: len(attempts),
		Attempts:    attempts,
	}, nil
}
