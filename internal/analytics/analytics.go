// Package analytics turns a finished attempt into the diagnostic results
// payload: per-category labels, an overall readiness status, and a
// prioritized chapter-study-guidance list. The computation is terminal-
// state only and all-or-nothing: a precondition violation yields an error
// and no partial output.
package analytics

import (
	"fmt"
	"slices"

	"github.com/careprep/careprep/internal/model"
)

// StateError reports analytics invoked on a non-terminal attempt or with
// incomplete tag/answer-key mappings. Callers must not retry with the
// same inputs.
type StateError struct {
	Reason string
}

func (e *StateError) Error() string {
	return "analytics state: " + e.Reason
}

// QuestionAttempt is one delivered question with the learner's selection.
// An empty Selected means unanswered.
type QuestionAttempt struct {
	QuestionID string `json:"question_id"`
	Selected   string `json:"selected_answer_id"`
}

// Readiness thresholds, as fractions of 1.
const (
	strongFloor     = 0.80
	developingFloor = 0.70
	highRiskFloor   = 0.65
)

// categoryMeta is the internal per-category aggregate. accuracy is nil
// for categories the attempt never touched; those are treated as strong
// so unseen content is never flagged.
type categoryMeta struct {
	categoryID string
	label      model.CategoryLabel
	level      level
	accuracy   *float64
}

type level int

const (
	levelStrong level = iota
	levelDeveloping
	levelWeak
)

// ComputeResultsPayload computes the diagnostic payload for a terminal
// attempt. Every delivered question_id must have entries in contentTags
// and correctByQID; a missing mapping is a data-integrity error, never a
// skip.
func ComputeResultsPayload(
	attempt model.Attempt,
	questionAttempts []QuestionAttempt,
	contentTags map[string]model.ContentTags,
	correctByQID map[string]string,
) (model.ResultsPayload, error) {
	if attempt.AttemptID == "" {
		return model.ResultsPayload{}, &StateError{Reason: "missing attempt_id"}
	}
	if !attempt.Status.Terminal() {
		return model.ResultsPayload{}, &StateError{
			Reason: fmt.Sprintf("illegal status %q (must be submitted or time_expired)", attempt.Status),
		}
	}

	// Score each delivered question.
	correctCount := 0
	catTotals := make(map[string]int, len(CanonicalCategories))
	catCorrect := make(map[string]int, len(CanonicalCategories))
	for _, c := range CanonicalCategories {
		catTotals[c] = 0
		catCorrect[c] = 0
	}

	for _, qa := range questionAttempts {
		if qa.QuestionID == "" {
			return model.ResultsPayload{}, &StateError{Reason: "missing question_id in question attempt"}
		}
		correct, ok := correctByQID[qa.QuestionID]
		if !ok || correct == "" {
			return model.ResultsPayload{}, &StateError{
				Reason: fmt.Sprintf("missing correct answer for question_id %s", qa.QuestionID),
			}
		}
		tags, ok := contentTags[qa.QuestionID]
		if !ok {
			return model.ResultsPayload{}, &StateError{
				Reason: fmt.Sprintf("missing content tags for question_id %s", qa.QuestionID),
			}
		}
		if tags.CategoryID == "" {
			return model.ResultsPayload{}, &StateError{
				Reason: fmt.Sprintf("missing category_id for question_id %s", qa.QuestionID),
			}
		}
		if _, known := catTotals[tags.CategoryID]; !known {
			return model.ResultsPayload{}, &StateError{
				Reason: fmt.Sprintf("unknown category_id %q for question_id %s", tags.CategoryID, qa.QuestionID),
			}
		}

		isCorrect := qa.Selected != "" && qa.Selected == correct
		if isCorrect {
			correctCount++
		}
		catTotals[tags.CategoryID]++
		if isCorrect {
			catCorrect[tags.CategoryID]++
		}
	}

	overallAccuracy := 0.0
	if len(questionAttempts) > 0 {
		overallAccuracy = float64(correctCount) / float64(len(questionAttempts))
	}

	meta := classifyCategories(catTotals, catCorrect)

	diagnosis := make([]model.CategoryDiagnosis, 0, len(meta))
	for _, m := range meta {
		diagnosis = append(diagnosis, model.CategoryDiagnosis{CategoryID: m.categoryID, Label: m.label})
	}

	return model.ResultsPayload{
		AttemptID:         attempt.AttemptID,
		OverallStatus:     overallStatus(overallAccuracy, meta),
		CategoryDiagnosis: diagnosis,
		ChapterGuidance:   chapterGuidance(meta),
	}, nil
}

func classifyCategories(totals, correct map[string]int) []categoryMeta {
	meta := make([]categoryMeta, 0, len(CanonicalCategories))
	for _, categoryID := range CanonicalCategories {
		var accuracy *float64
		if n := totals[categoryID]; n > 0 {
			a := float64(correct[categoryID]) / float64(n)
			accuracy = &a
		}

		lvl := levelWeak
		switch {
		case accuracy == nil:
			lvl = levelStrong
		case *accuracy >= strongFloor:
			lvl = levelStrong
		case *accuracy >= developingFloor:
			lvl = levelDeveloping
		}

		highRiskFlag := highRiskCategories[categoryID] && accuracy != nil && *accuracy < developingFloor

		label := model.LabelWeakness
		if highRiskFlag {
			label = model.LabelHighRiskFlag
		} else if accuracy != nil && *accuracy >= strongFloor {
			label = model.LabelStrength
		}

		meta = append(meta, categoryMeta{
			categoryID: categoryID,
			label:      label,
			level:      lvl,
			accuracy:   accuracy,
		})
	}
	return meta
}

// overallStatus evaluates in a fixed order: On Track first, then High
// Risk, else Borderline. The order is part of the contract; reordering
// changes classification in the 65-69.9% high-risk band.
func overallStatus(overallAccuracy float64, meta []categoryMeta) model.ReadinessStatus {
	overallPct := overallAccuracy * 100

	anyBelow70 := false
	anyBelow65 := false
	for _, m := range meta {
		if !highRiskCategories[m.categoryID] || m.accuracy == nil {
			continue
		}
		if *m.accuracy < developingFloor {
			anyBelow70 = true
		}
		if *m.accuracy < highRiskFloor {
			anyBelow65 = true
		}
	}

	switch {
	case overallPct >= 80 && !anyBelow70:
		return model.ReadinessOnTrack
	case overallPct < 70 || anyBelow65:
		return model.ReadinessHighRisk
	default:
		return model.ReadinessBorderline
	}
}

// chapterGuidance selects up to two failing categories (high-risk fail
// below 80%, others below 70%), lowest accuracy first, and maps each to
// its study chapters: Weak emits one Primary and one Secondary entry,
// Developing one Secondary entry.
func chapterGuidance(meta []categoryMeta) []model.ChapterGuidance {
	var failing []categoryMeta
	for _, m := range meta {
		if m.accuracy == nil {
			continue
		}
		threshold := developingFloor
		if highRiskCategories[m.categoryID] {
			threshold = strongFloor
		}
		if *m.accuracy < threshold {
			failing = append(failing, m)
		}
	}

	slices.SortStableFunc(failing, func(a, b categoryMeta) int {
		switch {
		case *a.accuracy < *b.accuracy:
			return -1
		case *a.accuracy > *b.accuracy:
			return 1
		default:
			return 0
		}
	})
	if len(failing) > 2 {
		failing = failing[:2]
	}

	guidance := []model.ChapterGuidance{}
	for _, cat := range failing {
		mapping := categoryChapters[cat.categoryID]

		if cat.level == levelWeak && len(mapping.primary) > 0 {
			ch := mapping.primary[0]
			guidance = append(guidance, model.ChapterGuidance{
				ChapterID:    ch,
				Priority:     model.PriorityPrimary,
				GuidanceText: fmt.Sprintf("Review Chapter %d (primary) — %s", ch, mapping.lens),
			})
		}
		if (cat.level == levelWeak || cat.level == levelDeveloping) && len(mapping.secondary) > 0 {
			ch := mapping.secondary[0]
			guidance = append(guidance, model.ChapterGuidance{
				ChapterID:    ch,
				Priority:     model.PrioritySecondary,
				GuidanceText: fmt.Sprintf("Review Chapter %d (secondary) — %s", ch, mapping.lens),
			})
		}
	}

	return guidance
}
