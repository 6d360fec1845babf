package model

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestValidOption(t *testing.T) {
	for _, s := range []string{"A", "B", "C", "D"} {
		if !ValidOption(s) {
			t.Errorf("ValidOption(%q) = false", s)
		}
	}
	for _, s := range []string{"", "E", "a", "AB"} {
		if ValidOption(s) {
			t.Errorf("ValidOption(%q) = true", s)
		}
	}
}

func TestChapterNumber(t *testing.T) {
	q := QuestionRecord{Chapter: 3}
	if q.ChapterNumber() != 3 {
		t.Errorf("chapter-only record = %d, want 3", q.ChapterNumber())
	}
	q.ChapterTag = 5
	if q.ChapterNumber() != 5 {
		t.Errorf("chapter_tag wins: got %d, want 5", q.ChapterNumber())
	}
}

func TestQuestionRecordValidate(t *testing.T) {
	good := QuestionRecord{
		QuestionID:    "q1",
		CorrectAnswer: "A",
		Variants:      map[string]Variant{"en": {QuestionText: "text"}},
	}
	if err := good.Validate(); err != nil {
		t.Errorf("valid record: %v", err)
	}

	bad := good
	bad.CorrectAnswer = "X"
	if err := bad.Validate(); err == nil {
		t.Error("bad answer key passed validation")
	}

	bad = good
	bad.Variants = map[string]Variant{"es": {QuestionText: "texto"}}
	if err := bad.Validate(); err == nil {
		t.Error("record without English variant passed validation")
	}
}

func TestAttemptStatusTerminal(t *testing.T) {
	if StatusInProgress.Terminal() {
		t.Error("in_progress is terminal")
	}
	if !StatusSubmitted.Terminal() || !StatusTimeExpired.Terminal() {
		t.Error("submitted/time_expired not terminal")
	}
}

func TestAnswersByQIDLaterWins(t *testing.T) {
	a := Attempt{Answers: []Answer{
		{QuestionID: "q1", Selected: "A"},
		{QuestionID: "q2", Selected: "B"},
		{QuestionID: "q1", Selected: "C"},
	}}
	m := a.AnswersByQID()
	if m["q1"] != "C" || m["q2"] != "B" {
		t.Errorf("AnswersByQID() = %v", m)
	}
}

func TestReviewEntryJSONShapes(t *testing.T) {
	scored := ReviewEntry{
		Index:         1,
		QuestionID:    "q1",
		Selected:      "",
		CorrectAnswer: "B",
		IsCorrect:     false,
		ReviewBlocks:  []DisplayBlock{{Label: "EN", QuestionText: "text", Options: map[string]string{}}},
	}
	data, err := json.Marshal(scored)
	if err != nil {
		t.Fatalf("marshal scored: %v", err)
	}
	s := string(data)
	if !strings.Contains(s, `"selected":""`) || !strings.Contains(s, `"review_blocks"`) {
		t.Errorf("scored shape = %s", s)
	}
	if strings.Contains(s, `"error"`) {
		t.Errorf("scored row carries error field: %s", s)
	}

	errRow := ReviewEntry{Index: 2, QuestionID: "ghost", Error: "Question not found in bank"}
	data, err = json.Marshal(errRow)
	if err != nil {
		t.Fatalf("marshal error row: %v", err)
	}
	s = string(data)
	if s != `{"index":2,"question_id":"ghost","error":"Question not found in bank"}` {
		t.Errorf("error shape = %s", s)
	}

	// Both shapes decode back.
	var back ReviewEntry
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal error row: %v", err)
	}
	if back.Error != "Question not found in bank" || back.Index != 2 {
		t.Errorf("decoded error row = %+v", back)
	}

	data, _ = json.Marshal(scored)
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal scored row: %v", err)
	}
	if back.Error != "" || back.CorrectAnswer != "B" || len(back.ReviewBlocks) != 1 {
		t.Errorf("decoded scored row = %+v", back)
	}
}
