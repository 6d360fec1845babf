// Package score computes attempt results against a frozen form. Scoring
// iterates the form's question order and looks selections up by
// question_id; the attempt's answer list may be a subset or reordering of
// the form without affecting the outcome.
package score

import (
	"math"

	"github.com/careprep/careprep/internal/bank"
	"github.com/careprep/careprep/internal/language"
	"github.com/careprep/careprep/internal/model"
)

// lookupErrorText is the review-row message for a form id with no bank
// record. One bad id yields one error row; it never aborts the report.
const lookupErrorText = "Question not found in bank"

// Score builds the full results artifact for an attempt: aggregate counts
// plus a per-question review with bilingual blocks at the attempt's
// language. Ids missing from the bank become error rows and are excluded
// from the correct tally; the percent denominator stays the full form
// length.
func Score(form model.Form, b *bank.Bank, attempt model.Attempt) model.ScoreResult {
	lang := attempt.Language
	if lang == "" {
		lang = model.LangEnglish
	}

	answered := attempt.AnswersByQID()

	correctCount := 0
	review := make([]model.ReviewEntry, 0, len(form.QuestionIDs))

	for idx, qid := range form.QuestionIDs {
		q, ok := b.Get(qid)
		if !ok {
			review = append(review, model.ReviewEntry{
				Index:      idx + 1,
				QuestionID: qid,
				Error:      lookupErrorText,
			})
			continue
		}

		// An empty selection never matches, even against a record whose
		// answer key is blank.
		selected := answered[qid]
		isCorrect := selected != "" && selected == q.CorrectAnswer
		if isCorrect {
			correctCount++
		}

		review = append(review, model.ReviewEntry{
			Index:         idx + 1,
			QuestionID:    q.QuestionID,
			Selected:      selected,
			CorrectAnswer: q.CorrectAnswer,
			IsCorrect:     isCorrect,
			ReviewBlocks:  language.ResolveBlocks(q, lang),
		})
	}

	total := len(form.QuestionIDs)

	return model.ScoreResult{
		AttemptID:      attempt.AttemptID,
		ExamFormID:     form.ExamFormID,
		BlueprintID:    form.BlueprintID,
		Language:       lang,
		StartedAt:      attempt.StartedAt,
		FinishedAt:     attempt.FinishedAt,
		TotalQuestions: total,
		Correct:        correctCount,
		Percent:        Percent(correctCount, total),
		Review:         review,
	}
}

// Tally is the lightweight tri-state count used for inline score display
// during an in-progress session.
type Tally struct {
	Total      int `json:"total"`
	Correct    int `json:"correct"`
	Incorrect  int `json:"incorrect"`
	Unanswered int `json:"unanswered"`
}

// ScoreExam computes the tri-state tally for a delivered question
// sequence without building review blocks. An unanswered question counts
// under Unanswered, never Incorrect. Ids with no bank record count toward
// Total only, matching Score's tally treatment exactly.
func ScoreExam(questionIDs []string, b *bank.Bank, answersByQID map[string]string) Tally {
	t := Tally{Total: len(questionIDs)}

	for _, qid := range questionIDs {
		q, ok := b.Get(qid)
		if !ok {
			continue
		}

		selected, hasAnswer := answersByQID[qid]
		isAnswered := hasAnswer && selected != ""

		switch {
		case !isAnswered:
			t.Unanswered++
		case selected == q.CorrectAnswer:
			t.Correct++
		default:
			t.Incorrect++
		}
	}

	return t
}

// Percent rounds half-up; a zero total yields 0 rather than dividing.
func Percent(correct, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(correct) / float64(total) * 100))
}
