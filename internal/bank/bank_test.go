package bank

import (
	"strings"
	"testing"

	"github.com/careprep/careprep/internal/model"
)

func record(id string, chapter int, category, correct string) model.QuestionRecord {
	return model.QuestionRecord{
		QuestionID:    id,
		ChapterTag:    chapter,
		CategoryTag:   category,
		CorrectAnswer: correct,
		Variants: map[string]model.Variant{
			model.LangEnglish: {
				QuestionText: "Question " + id,
				Options:      map[string]string{"A": "a", "B": "b", "C": "c", "D": "d"},
			},
		},
	}
}

func testBank(t *testing.T, records ...model.QuestionRecord) *Bank {
	t.Helper()
	b, err := FromRecords(records)
	if err != nil {
		t.Fatalf("FromRecords() error = %v", err)
	}
	return b
}

func TestLoad(t *testing.T) {
	const src = `[
		{"question_id": "q1", "chapter_tag": 1, "category_tag": "Infection Control",
		 "correct_answer": "B",
		 "variants": {"en": {"question_text": "Hand hygiene?", "options": {"A": "no", "B": "yes"}}}},
		{"question_id": "q2", "chapter": 2, "category_tag": "Communication & Culture",
		 "correct_answer": "A",
		 "variants": {"en": {"question_text": "Eye contact?", "options": {"A": "yes", "B": "no"}}}}
	]`

	b, err := Load(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if b.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", b.Len())
	}

	q, ok := b.Get("q1")
	if !ok {
		t.Fatal("Get(q1) not found")
	}
	if q.CorrectAnswer != "B" {
		t.Errorf("q1 correct_answer = %q, want B", q.CorrectAnswer)
	}
	if q.ChapterNumber() != 1 {
		t.Errorf("q1 chapter = %d, want 1", q.ChapterNumber())
	}

	// q2 sets only the legacy chapter field.
	q2, _ := b.Get("q2")
	if q2.ChapterNumber() != 2 {
		t.Errorf("q2 chapter = %d, want 2", q2.ChapterNumber())
	}

	if len(b.Warnings) != 0 {
		t.Errorf("Warnings = %v, want none", b.Warnings)
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	if _, err := Load(strings.NewReader(`{"not": "an array"`)); err == nil {
		t.Fatal("Load() with invalid JSON succeeded, want error")
	}
}

func TestFromRecordsMissingID(t *testing.T) {
	_, err := FromRecords([]model.QuestionRecord{record("", 1, "Infection Control", "A")})
	if err == nil {
		t.Fatal("FromRecords() with missing question_id succeeded, want error")
	}
}

func TestFromRecordsDuplicateID(t *testing.T) {
	_, err := FromRecords([]model.QuestionRecord{
		record("q1", 1, "Infection Control", "A"),
		record("q1", 2, "Communication & Culture", "B"),
	})
	if err == nil {
		t.Fatal("FromRecords() with duplicate question_id succeeded, want error")
	}
	if !strings.Contains(err.Error(), "q1") {
		t.Errorf("error = %v, want mention of q1", err)
	}
}

func TestFromRecordsWarnings(t *testing.T) {
	bad := record("q-bad", 1, "Infection Control", "E") // invalid answer key
	b := testBank(t, record("q1", 1, "Infection Control", "A"), bad)

	if len(b.Warnings) != 1 {
		t.Fatalf("Warnings = %v, want exactly one", b.Warnings)
	}
	// The record stays loadable: scoring decides what to do with it.
	if _, ok := b.Get("q-bad"); !ok {
		t.Error("record with warning was dropped from the bank")
	}
}

func TestPartitionByChapter(t *testing.T) {
	b := testBank(t,
		record("q1", 1, "Infection Control", "A"),
		record("q2", 2, "Communication & Culture", "A"),
		record("q3", 1, "Infection Control", "A"),
		record("q4", 3, "Safety & Emergencies", "A"),
	)

	parts := b.PartitionByChapter([]int{1, 2})
	if len(parts) != 2 {
		t.Fatalf("partitions = %d, want 2", len(parts))
	}
	if got := parts[1]; len(got) != 2 || got[0] != "q1" || got[1] != "q3" {
		t.Errorf("chapter 1 = %v, want [q1 q3]", got)
	}
	if got := parts[2]; len(got) != 1 || got[0] != "q2" {
		t.Errorf("chapter 2 = %v, want [q2]", got)
	}
	if _, ok := parts[3]; ok {
		t.Error("chapter 3 present, want excluded")
	}
}

func TestQuestionIDsOrder(t *testing.T) {
	b := testBank(t,
		record("q3", 1, "Infection Control", "A"),
		record("q1", 2, "Communication & Culture", "A"),
		record("q2", 1, "Infection Control", "A"),
	)
	ids := b.QuestionIDs()
	want := []string{"q3", "q1", "q2"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("QuestionIDs() = %v, want %v", ids, want)
		}
	}
}

func TestCorrectByIDSkipsMissing(t *testing.T) {
	b := testBank(t, record("q1", 1, "Infection Control", "C"))

	m := b.CorrectByID([]string{"q1", "ghost"})
	if len(m) != 1 {
		t.Fatalf("CorrectByID = %v, want only q1", m)
	}
	if m["q1"] != "C" {
		t.Errorf("q1 key = %q, want C", m["q1"])
	}
}

func TestTagsByID(t *testing.T) {
	b := testBank(t, record("q1", 4, "Resident Rights, Dignity & Elder Care Skills", "A"))

	m := b.TagsByID([]string{"q1", "ghost"})
	tags, ok := m["q1"]
	if !ok {
		t.Fatal("TagsByID missing q1")
	}
	if tags.CategoryID != "Resident Rights, Dignity & Elder Care Skills" {
		t.Errorf("category = %q", tags.CategoryID)
	}
	if tags.ChapterID != 4 {
		t.Errorf("chapter = %d, want 4", tags.ChapterID)
	}
	if _, ok := m["ghost"]; ok {
		t.Error("ghost id present, want skipped")
	}
}
