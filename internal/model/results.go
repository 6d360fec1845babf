package model

import "encoding/json"

// ReviewEntry is one row of the post-attempt review. An entry is either a
// lookup failure (Error set) or a scored question; the JSON shape differs
// between the two, so marshalling is explicit.
type ReviewEntry struct {
	Index         int
	QuestionID    string
	Error         string
	Selected      string
	CorrectAnswer string
	IsCorrect     bool
	ReviewBlocks  []DisplayBlock
}

type reviewError struct {
	Index      int    `json:"index"`
	QuestionID string `json:"question_id"`
	Error      string `json:"error"`
}

type reviewScored struct {
	Index         int            `json:"index"`
	QuestionID    string         `json:"question_id"`
	Selected      string         `json:"selected"`
	CorrectAnswer string         `json:"correct_answer"`
	IsCorrect     bool           `json:"is_correct"`
	ReviewBlocks  []DisplayBlock `json:"review_blocks"`
}

// MarshalJSON emits the error shape when Error is set, the scored shape
// otherwise.
func (e ReviewEntry) MarshalJSON() ([]byte, error) {
	if e.Error != "" {
		return json.Marshal(reviewError{Index: e.Index, QuestionID: e.QuestionID, Error: e.Error})
	}
	return json.Marshal(reviewScored{
		Index:         e.Index,
		QuestionID:    e.QuestionID,
		Selected:      e.Selected,
		CorrectAnswer: e.CorrectAnswer,
		IsCorrect:     e.IsCorrect,
		ReviewBlocks:  e.ReviewBlocks,
	})
}

// UnmarshalJSON accepts either review entry shape.
func (e *ReviewEntry) UnmarshalJSON(data []byte) error {
	var s reviewScored
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	var errRow reviewError
	if err := json.Unmarshal(data, &errRow); err != nil {
		return err
	}
	*e = ReviewEntry{
		Index:         s.Index,
		QuestionID:    s.QuestionID,
		Error:         errRow.Error,
		Selected:      s.Selected,
		CorrectAnswer: s.CorrectAnswer,
		IsCorrect:     s.IsCorrect,
		ReviewBlocks:  s.ReviewBlocks,
	}
	return nil
}

// ScoreResult is the results artifact for one scored attempt.
type ScoreResult struct {
	AttemptID      string        `json:"attempt_id"`
	ExamFormID     string        `json:"exam_form_id"`
	BlueprintID    string        `json:"blueprint_id"`
	Language       string        `json:"language"`
	StartedAt      string        `json:"started_at"`
	FinishedAt     string        `json:"finished_at"`
	TotalQuestions int           `json:"total_questions"`
	Correct        int           `json:"correct"`
	Percent        int           `json:"percent"`
	Review         []ReviewEntry `json:"review"`
}
