package analytics

import (
	"fmt"

	"github.com/careprep/careprep/internal/bank"
	"github.com/careprep/careprep/internal/model"
)

// ResultsStore is the write-once persistence contract for results
// payloads. A refused write (key already present) is a normal result,
// not an error.
type ResultsStore interface {
	PersistResultsWriteOnce(payload model.ResultsPayload) (model.PersistResult, error)
}

// FinalizeAttempt computes the results payload for an attempt that just
// reached a terminal status and persists it write-once. Being invoked
// twice for the same attempt is safe: the second persist is refused by
// the store and the already-stored payload is left untouched.
//
// Bank records missing for a delivered id surface as a StateError from
// the computation, not a silent skip.
func FinalizeAttempt(
	attemptID string,
	endStatus model.AttemptStatus,
	deliveredQuestionIDs []string,
	answersByQID map[string]string,
	b *bank.Bank,
	store ResultsStore,
) (model.ResultsPayload, error) {
	if attemptID == "" {
		return model.ResultsPayload{}, &StateError{Reason: "missing attempt_id"}
	}
	if !endStatus.Terminal() {
		return model.ResultsPayload{}, &StateError{
			Reason: fmt.Sprintf("illegal end status %q", endStatus),
		}
	}

	questionAttempts := make([]QuestionAttempt, 0, len(deliveredQuestionIDs))
	for _, qid := range deliveredQuestionIDs {
		questionAttempts = append(questionAttempts, QuestionAttempt{
			QuestionID: qid,
			Selected:   answersByQID[qid],
		})
	}

	payload, err := ComputeResultsPayload(
		model.Attempt{AttemptID: attemptID, Status: endStatus},
		questionAttempts,
		b.TagsByID(deliveredQuestionIDs),
		b.CorrectByID(deliveredQuestionIDs),
	)
	if err != nil {
		return model.ResultsPayload{}, err
	}

	if _, err := store.PersistResultsWriteOnce(payload); err != nil {
		return model.ResultsPayload{}, fmt.Errorf("persist results payload: %w", err)
	}
	return payload, nil
}
