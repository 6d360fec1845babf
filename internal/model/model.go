package model

import (
	"fmt"
	"time"
)

// Language codes the core understands. Anything else falls back to English
// at display time; the constants exist so callers don't scatter literals.
const (
	LangEnglish = "en"
	LangSpanish = "es"
	LangFrench  = "fr"
	LangHaitian = "ht"
)

// ValidOption reports whether s is one of the four answer letters.
// The match is case-sensitive: scoring compares letters exactly.
func ValidOption(s string) bool {
	switch s {
	case "A", "B", "C", "D":
		return true
	}
	return false
}

// Rationale explains why the correct answer is correct, in one language.
type Rationale struct {
	WhyCorrect      string `json:"why_correct"`
	PrometricSignal string `json:"prometric_signal"`
}

// Variant is a single language's rendering of a question.
type Variant struct {
	QuestionText string            `json:"question_text"`
	Options      map[string]string `json:"options"`
	Rationale    Rationale         `json:"rationale"`
}

// QuestionRecord is one entry in the question bank. Chapter and ChapterTag
// carry the same value in well-formed data; some records set only one of
// them, so readers should go through ChapterNumber.
type QuestionRecord struct {
	QuestionID    string             `json:"question_id"`
	Chapter       int                `json:"chapter"`
	ChapterTag    int                `json:"chapter_tag"`
	CategoryTag   string             `json:"category_tag"`
	CorrectAnswer string             `json:"correct_answer"`
	Variants      map[string]Variant `json:"variants"`
}

// ChapterNumber returns the record's chapter, preferring chapter_tag.
func (q QuestionRecord) ChapterNumber() int {
	if q.ChapterTag != 0 {
		return q.ChapterTag
	}
	return q.Chapter
}

// Validate checks the fields every delivered question must have.
func (q QuestionRecord) Validate() error {
	if q.QuestionID == "" {
		return fmt.Errorf("question record missing question_id")
	}
	if !ValidOption(q.CorrectAnswer) {
		return fmt.Errorf("question %s: invalid correct_answer %q", q.QuestionID, q.CorrectAnswer)
	}
	en, ok := q.Variants[LangEnglish]
	if !ok || en.QuestionText == "" {
		return fmt.Errorf("question %s: missing English variant", q.QuestionID)
	}
	return nil
}

// Blueprint is the authoring-time recipe for a frozen exam form.
// Immutable once authored.
type Blueprint struct {
	BlueprintID    string `json:"blueprint_id"`
	ChapterTags    []int  `json:"chapter_tags"`
	TotalQuestions int    `json:"total_questions"`
	Seed           uint32 `json:"seed"`
}

// Validate checks structural fields; pool-dependent constraints
// (count vs. eligible questions) are enforced at assembly time.
func (bp Blueprint) Validate() error {
	if bp.BlueprintID == "" {
		return fmt.Errorf("blueprint missing blueprint_id")
	}
	if len(bp.ChapterTags) == 0 {
		return fmt.Errorf("blueprint %s: empty chapter_tags", bp.BlueprintID)
	}
	return nil
}

// Form is the frozen, ordered list of question identifiers for one exam
// edition. Regenerating with the same blueprint and seed reproduces the
// same sequence.
type Form struct {
	ExamFormID  string    `json:"exam_form_id"`
	BlueprintID string    `json:"blueprint_id"`
	CreatedAt   time.Time `json:"created_at"`
	QuestionIDs []string  `json:"question_ids"`
}

// AttemptStatus is the lifecycle state of an attempt.
type AttemptStatus string

const (
	StatusInProgress  AttemptStatus = "in_progress"
	StatusSubmitted   AttemptStatus = "submitted"
	StatusTimeExpired AttemptStatus = "time_expired"
)

// Terminal reports whether the status permits analytics computation.
func (s AttemptStatus) Terminal() bool {
	return s == StatusSubmitted || s == StatusTimeExpired
}

// Answer is one recorded selection.
type Answer struct {
	QuestionID string `json:"question_id"`
	Selected   string `json:"selected"`
}

// Attempt is one learner's set of answers against a form. Timestamps are
// carried as strings: scoring copies them into the results artifact
// verbatim and never interprets them.
type Attempt struct {
	AttemptID  string        `json:"attempt_id"`
	ExamFormID string        `json:"exam_form_id"`
	Language   string        `json:"language"`
	Status     AttemptStatus `json:"status,omitempty"`
	StartedAt  string        `json:"started_at"`
	FinishedAt string        `json:"finished_at"`
	Answers    []Answer      `json:"answers"`
}

// AnswersByQID builds the question_id -> selected lookup scoring keys on.
// Later entries for the same question win.
func (a Attempt) AnswersByQID() map[string]string {
	m := make(map[string]string, len(a.Answers))
	for _, ans := range a.Answers {
		m[ans.QuestionID] = ans.Selected
	}
	return m
}

// DisplayBlock is one language-labeled rendering unit shown during
// delivery or review.
type DisplayBlock struct {
	Label           string            `json:"label"`
	QuestionText    string            `json:"question_text"`
	Options         map[string]string `json:"options"`
	WhyCorrect      string            `json:"why_correct,omitempty"`
	PrometricSignal string            `json:"prometric_signal,omitempty"`
}

// ContentTags is the category/chapter snapshot analytics aggregates over.
type ContentTags struct {
	CategoryID string `json:"category_id"`
	ChapterID  int    `json:"chapter_id"`
}

// ReadinessStatus is the overall classification for a finished attempt.
type ReadinessStatus string

const (
	ReadinessOnTrack    ReadinessStatus = "On Track"
	ReadinessBorderline ReadinessStatus = "Borderline"
	ReadinessHighRisk   ReadinessStatus = "High Risk"
)

// CategoryLabel is the public per-category diagnosis label.
type CategoryLabel string

const (
	LabelStrength     CategoryLabel = "Strength"
	LabelWeakness     CategoryLabel = "Weakness"
	LabelHighRiskFlag CategoryLabel = "High-Risk Flag"
)

// GuidancePriority ranks a chapter-guidance entry.
type GuidancePriority string

const (
	PriorityPrimary   GuidancePriority = "Primary"
	PrioritySecondary GuidancePriority = "Secondary"
)

// CategoryDiagnosis is one category's label in the results payload.
type CategoryDiagnosis struct {
	CategoryID string        `json:"category_id"`
	Label      CategoryLabel `json:"label"`
}

// ChapterGuidance is one prioritized study pointer.
type ChapterGuidance struct {
	ChapterID    int              `json:"chapter_id"`
	Priority     GuidancePriority `json:"priority"`
	GuidanceText string           `json:"guidance_text"`
}

// ResultsPayload is the write-once analytics artifact for one attempt.
type ResultsPayload struct {
	AttemptID         string              `json:"attempt_id"`
	OverallStatus     ReadinessStatus     `json:"overall_status"`
	CategoryDiagnosis []CategoryDiagnosis `json:"category_diagnosis"`
	ChapterGuidance   []ChapterGuidance   `json:"chapter_guidance"`
}

// PersistResult is the outcome of a write-once store call. A refused
// write is a normal result, not an error.
type PersistResult struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason"`
	Key    string `json:"key"`
}

// DeliveryConfig holds runtime delivery parameters set via CLI flags.
type DeliveryConfig struct {
	PerChapter  int           // questions drawn per chapter for live attempts
	ChapterTags []int         // chapters covered by live attempts
	TimeLimit   time.Duration // 0 means untimed
	DefaultLang string
}
