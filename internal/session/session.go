// Package session holds the explicit session state the exam driver passes
// into the core on each transition. The countdown is an absolute end
// timestamp: remaining time is always recomputed from EndsAt and the
// caller's clock, never from an elapsed-tick counter, so a session
// survives being suspended and resumed later.
package session

import (
	"encoding/json"
	"time"
)

// State is one in-progress exam session. It carries no behavior tied to
// wall-clock side effects; the caller supplies "now" everywhere.
type State struct {
	AttemptID   string            `json:"attempt_id"`
	ExamFormID  string            `json:"exam_form_id"`
	Language    string            `json:"language"`
	QuestionIDs []string          `json:"question_ids"`
	Answers     map[string]string `json:"answers"`
	StartedAt   time.Time         `json:"started_at"`
	EndsAt      time.Time         `json:"ends_at"`
}

// Start creates session state for a delivered question sequence. A zero
// limit means no time limit (EndsAt stays zero).
func Start(attemptID, formID, lang string, questionIDs []string, now time.Time, limit time.Duration) *State {
	s := &State{
		AttemptID:   attemptID,
		ExamFormID:  formID,
		Language:    lang,
		QuestionIDs: questionIDs,
		Answers:     make(map[string]string),
		StartedAt:   now.UTC(),
	}
	if limit > 0 {
		s.EndsAt = now.UTC().Add(limit)
	}
	return s
}

// Answer records a selection, replacing any earlier one.
func (s *State) Answer(questionID, selected string) {
	if s.Answers == nil {
		s.Answers = make(map[string]string)
	}
	s.Answers[questionID] = selected
}

// Remaining returns the time left at now, clamped at zero. Untimed
// sessions report zero and never expire.
func (s *State) Remaining(now time.Time) time.Duration {
	if s.EndsAt.IsZero() {
		return 0
	}
	if d := s.EndsAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Expired reports whether a timed session's deadline has passed.
func (s *State) Expired(now time.Time) bool {
	return !s.EndsAt.IsZero() && !now.Before(s.EndsAt)
}

// Snapshot serializes the state for persistence across process restarts.
func (s *State) Snapshot() ([]byte, error) {
	return json.Marshal(s)
}

// Restore rebuilds session state from a snapshot.
func Restore(data []byte) (*State, error) {
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	if s.Answers == nil {
		s.Answers = make(map[string]string)
	}
	return &s, nil
}
