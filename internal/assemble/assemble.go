// Package assemble builds question sets from the bank: frozen forms from a
// blueprint (seeded, byte-reproducible) and live per-chapter picks for a
// fresh attempt (unseeded, varied per session). The two modes use
// independent generators so a live delivery can never reproduce a seeded
// form's permutation.
package assemble

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/careprep/careprep/internal/bank"
	"github.com/careprep/careprep/internal/model"
	"github.com/careprep/careprep/internal/rng"
)

// ConfigError reports a malformed or unsatisfiable blueprint. Assembly
// aborts; no partial form is produced.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "blueprint config: " + e.Reason
}

// BuildForm filters the bank to the blueprint's chapters, applies the
// seeded deterministic shuffle, and freezes the first TotalQuestions ids
// as a Form. Re-running with the same blueprint and seed reproduces the
// identical question_ids ordering.
func BuildForm(bp model.Blueprint, b *bank.Bank, formID string, now time.Time) (model.Form, error) {
	allowed := make(map[int]bool, len(bp.ChapterTags))
	for _, ch := range bp.ChapterTags {
		allowed[ch] = true
	}

	var eligible []string
	for _, q := range b.Records {
		if allowed[q.ChapterNumber()] {
			eligible = append(eligible, q.QuestionID)
		}
	}

	if len(eligible) == 0 {
		return model.Form{}, &ConfigError{Reason: "no eligible questions for blueprint chapter_tags"}
	}
	if bp.TotalQuestions <= 0 {
		return model.Form{}, &ConfigError{Reason: "total_questions must be a positive number"}
	}
	if bp.TotalQuestions > len(eligible) {
		return model.Form{}, &ConfigError{
			Reason: fmt.Sprintf("blueprint requests %d questions but only %d eligible exist", bp.TotalQuestions, len(eligible)),
		}
	}

	shuffled := rng.Shuffle(eligible, bp.Seed)

	return model.Form{
		ExamFormID:  formID,
		BlueprintID: bp.BlueprintID,
		CreatedAt:   now.UTC(),
		QuestionIDs: shuffled[:bp.TotalQuestions],
	}, nil
}

// PickPerChapter assembles a fresh delivery set: for each listed chapter,
// shuffle that chapter's questions and take perChapter of them. If a
// chapter ran low the shortfall is backfilled from the remaining un-picked
// pool. The result is shuffled once more across chapter boundaries so
// chapters are interleaved, not blocked. All shuffles are true-random,
// intentionally not seeded.
func PickPerChapter(b *bank.Bank, perChapter int, chapterTags []int) []string {
	if perChapter <= 0 || len(chapterTags) == 0 {
		return nil
	}

	byChapter := b.PartitionByChapter(chapterTags)

	var picked []string
	for _, ch := range chapterTags {
		ids := shuffleLive(byChapter[ch])
		if len(ids) > perChapter {
			ids = ids[:perChapter]
		}
		picked = append(picked, ids...)
	}

	targetTotal := perChapter * len(chapterTags)
	if len(picked) < targetTotal {
		pickedSet := make(map[string]bool, len(picked))
		for _, id := range picked {
			pickedSet[id] = true
		}
		var remaining []string
		for _, id := range b.QuestionIDs() {
			if !pickedSet[id] {
				remaining = append(remaining, id)
			}
		}
		remaining = shuffleLive(remaining)
		need := targetTotal - len(picked)
		if need > len(remaining) {
			need = len(remaining)
		}
		picked = append(picked, remaining[:need]...)
	}

	return shuffleLive(picked)
}

func shuffleLive(ids []string) []string {
	out := make([]string, len(ids))
	copy(out, ids)
	rand.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}
