package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/careprep/careprep/internal/model"
)

// ResultsKey derives the storage key for an attempt's results payload.
func ResultsKey(attemptID string) string {
	return "results:" + attemptID
}

// PersistResultsWriteOnce stores a results payload at most once per
// attempt. If a payload already exists under the attempt's key it is left
// untouched and the call reports {ok:false, already_exists}. The store
// never overwrites, never merges.
func (s *Store) PersistResultsWriteOnce(payload model.ResultsPayload) (model.PersistResult, error) {
	if payload.AttemptID == "" {
		return model.PersistResult{}, fmt.Errorf("persist results payload: missing attempt_id")
	}
	key := ResultsKey(payload.AttemptID)

	data, err := json.Marshal(payload)
	if err != nil {
		return model.PersistResult{}, fmt.Errorf("marshal results payload: %w", err)
	}

	res, err := s.db.Exec(
		`INSERT INTO results_payloads (storage_key, attempt_id, payload, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(storage_key) DO NOTHING`,
		key, payload.AttemptID, string(data), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return model.PersistResult{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.PersistResult{}, err
	}
	if n == 0 {
		return model.PersistResult{OK: false, Reason: "already_exists", Key: key}, nil
	}
	return model.PersistResult{OK: true, Reason: "saved", Key: key}, nil
}

// GetResultsPayload returns the stored payload for an attempt, or nil
// when none has been persisted yet.
func (s *Store) GetResultsPayload(attemptID string) (*model.ResultsPayload, error) {
	var data string
	err := s.db.QueryRow(
		`SELECT payload FROM results_payloads WHERE storage_key = ?`, ResultsKey(attemptID),
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var payload model.ResultsPayload
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		return nil, fmt.Errorf("decode results payload: %w", err)
	}
	return &payload, nil
}
