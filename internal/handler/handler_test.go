package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/careprep/careprep/internal/bank"
	appI18n "github.com/careprep/careprep/internal/i18n"
	"github.com/careprep/careprep/internal/model"
	"github.com/careprep/careprep/internal/score"
	"github.com/careprep/careprep/internal/store"
)

func testServer(t *testing.T, cfg model.DeliveryConfig) *httptest.Server {
	t.Helper()

	if err := appI18n.Init("en"); err != nil {
		t.Fatalf("i18n init: %v", err)
	}

	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	var records []model.QuestionRecord
	for ch := 1; ch <= 2; ch++ {
		for n := 1; n <= 6; n++ {
			records = append(records, model.QuestionRecord{
				QuestionID:    fmt.Sprintf("q%d-%d", ch, n),
				ChapterTag:    ch,
				CategoryTag:   "Infection Control",
				CorrectAnswer: "A",
				Variants: map[string]model.Variant{
					"en": {
						QuestionText: fmt.Sprintf("Question %d-%d", ch, n),
						Options:      map[string]string{"A": "a", "B": "b", "C": "c", "D": "d"},
						Rationale:    model.Rationale{WhyCorrect: "because"},
					},
					"es": {
						QuestionText: fmt.Sprintf("Pregunta %d-%d", ch, n),
						Options:      map[string]string{"A": "a", "B": "b", "C": "c", "D": "d"},
					},
				},
			})
		}
	}
	b, err := bank.FromRecords(records)
	if err != nil {
		t.Fatalf("bank: %v", err)
	}

	r := chi.NewRouter()
	r.Use(appI18n.Middleware("en"))
	New(s, b, cfg).Routes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any, out any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp
}

func TestExamFlow(t *testing.T) {
	srv := testServer(t, model.DeliveryConfig{PerChapter: 3, ChapterTags: []int{1, 2}, DefaultLang: "en"})

	// Start a live attempt (no frozen form).
	var attempt struct {
		AttemptID   string   `json:"attempt_id"`
		QuestionIDs []string `json:"question_ids"`
	}
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/attempts", map[string]string{"language": "en"}, &attempt)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("start attempt status = %d", resp.StatusCode)
	}
	if len(attempt.QuestionIDs) != 6 {
		t.Fatalf("delivered %d questions, want 6", len(attempt.QuestionIDs))
	}

	base := srv.URL + "/api/attempts/" + attempt.AttemptID

	// Answer the first two questions, one right, one wrong.
	resp = doJSON(t, http.MethodPut, base+"/answers",
		map[string]string{"question_id": attempt.QuestionIDs[0], "selected": "A"}, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("answer status = %d", resp.StatusCode)
	}
	resp = doJSON(t, http.MethodPut, base+"/answers",
		map[string]string{"question_id": attempt.QuestionIDs[1], "selected": "B"}, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("answer status = %d", resp.StatusCode)
	}

	// Mid-exam state carries the tri-state tally and a localized summary.
	var state struct {
		Tally   score.Tally `json:"tally"`
		Summary string      `json:"summary"`
	}
	doJSON(t, http.MethodGet, base, nil, &state)
	want := score.Tally{Total: 6, Correct: 1, Incorrect: 1, Unanswered: 4}
	if state.Tally != want {
		t.Errorf("tally = %+v, want %+v", state.Tally, want)
	}
	if state.Summary != "Score: 1/6 (17%)" {
		t.Errorf("summary = %q, want 'Score: 1/6 (17%%)'", state.Summary)
	}

	doJSON(t, http.MethodGet, base+"?lang=es", nil, &state)
	if state.Summary != "Puntuación: 1/6 (17%)" {
		t.Errorf("es summary = %q, want 'Puntuación: 1/6 (17%%)'", state.Summary)
	}

	// Submit and check the results artifact.
	var result model.ScoreResult
	resp = doJSON(t, http.MethodPost, base+"/submit", nil, &result)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("submit status = %d", resp.StatusCode)
	}
	if result.TotalQuestions != 6 || result.Correct != 1 || result.Percent != 17 {
		t.Errorf("result = %d/%d (%d%%), want 1/6 (17%%)", result.Correct, result.TotalQuestions, result.Percent)
	}
	if len(result.Review) != 6 {
		t.Errorf("review rows = %d, want 6", len(result.Review))
	}

	// Answering after submit is refused.
	resp = doJSON(t, http.MethodPut, base+"/answers",
		map[string]string{"question_id": attempt.QuestionIDs[2], "selected": "A"}, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("answer after submit status = %d, want 409", resp.StatusCode)
	}

	// Double submit is refused.
	resp = doJSON(t, http.MethodPost, base+"/submit", nil, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("double submit status = %d, want 409", resp.StatusCode)
	}

	// Results stay retrievable, and analytics were persisted on submit.
	resp = doJSON(t, http.MethodGet, base+"/results", nil, &result)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("results status = %d", resp.StatusCode)
	}

	var payload model.ResultsPayload
	resp = doJSON(t, http.MethodGet, base+"/analytics", nil, &payload)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("analytics status = %d", resp.StatusCode)
	}
	if payload.AttemptID != attempt.AttemptID {
		t.Errorf("analytics attempt_id = %q", payload.AttemptID)
	}
	if payload.OverallStatus != model.ReadinessHighRisk {
		t.Errorf("overall_status = %q, want High Risk at 1/6", payload.OverallStatus)
	}
	if len(payload.CategoryDiagnosis) != 9 {
		t.Errorf("diagnosis categories = %d, want 9", len(payload.CategoryDiagnosis))
	}
}

func TestFormBackedAttempt(t *testing.T) {
	srv := testServer(t, model.DeliveryConfig{PerChapter: 3, ChapterTags: []int{1, 2}, DefaultLang: "en"})

	bp := model.Blueprint{
		BlueprintID:    "bp-1",
		ChapterTags:    []int{1, 2},
		TotalQuestions: 5,
		Seed:           42,
	}
	var form model.Form
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/forms", bp, &form)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create form status = %d", resp.StatusCode)
	}
	if len(form.QuestionIDs) != 5 {
		t.Fatalf("form has %d questions, want 5", len(form.QuestionIDs))
	}

	// The frozen form round-trips.
	var fetched model.Form
	doJSON(t, http.MethodGet, srv.URL+"/api/forms/"+form.ExamFormID, nil, &fetched)
	if fetched.ExamFormID != form.ExamFormID || len(fetched.QuestionIDs) != 5 {
		t.Errorf("fetched form = %+v", fetched)
	}

	// Two attempts on the same form get the identical sequence.
	var a1, a2 struct {
		QuestionIDs []string `json:"question_ids"`
	}
	doJSON(t, http.MethodPost, srv.URL+"/api/attempts", map[string]string{"exam_form_id": form.ExamFormID}, &a1)
	doJSON(t, http.MethodPost, srv.URL+"/api/attempts", map[string]string{"exam_form_id": form.ExamFormID}, &a2)
	for i := range a1.QuestionIDs {
		if a1.QuestionIDs[i] != a2.QuestionIDs[i] {
			t.Fatalf("form-backed attempts diverged: %v vs %v", a1.QuestionIDs, a2.QuestionIDs)
		}
	}
}

func TestCreateFormBadBlueprint(t *testing.T) {
	srv := testServer(t, model.DeliveryConfig{DefaultLang: "en"})

	// The pool holds 12 questions; asking for 50 is a config error.
	bp := model.Blueprint{BlueprintID: "bp-big", ChapterTags: []int{1, 2}, TotalQuestions: 50, Seed: 1}
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/forms", bp, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("oversized blueprint status = %d, want 400", resp.StatusCode)
	}

	bp = model.Blueprint{ChapterTags: []int{1}, TotalQuestions: 3}
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/forms", bp, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("blueprint without id status = %d, want 400", resp.StatusCode)
	}
}

func TestAnswerValidation(t *testing.T) {
	srv := testServer(t, model.DeliveryConfig{PerChapter: 2, ChapterTags: []int{1}, DefaultLang: "en"})

	var attempt struct {
		AttemptID   string   `json:"attempt_id"`
		QuestionIDs []string `json:"question_ids"`
	}
	doJSON(t, http.MethodPost, srv.URL+"/api/attempts", map[string]string{}, &attempt)
	base := srv.URL + "/api/attempts/" + attempt.AttemptID

	resp := doJSON(t, http.MethodPut, base+"/answers",
		map[string]string{"question_id": attempt.QuestionIDs[0], "selected": "E"}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid option status = %d, want 400", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPut, base+"/answers",
		map[string]string{"question_id": "ghost", "selected": "A"}, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown question status = %d, want 404", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPut, srv.URL+"/api/attempts/ghost/answers",
		map[string]string{"question_id": attempt.QuestionIDs[0], "selected": "A"}, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown attempt status = %d, want 404", resp.StatusCode)
	}
}

func TestTimedAttemptRemaining(t *testing.T) {
	srv := testServer(t, model.DeliveryConfig{
		PerChapter:  2,
		ChapterTags: []int{1},
		TimeLimit:   30 * time.Minute,
		DefaultLang: "en",
	})

	var attempt struct {
		AttemptID string `json:"attempt_id"`
		EndsAt    string `json:"ends_at"`
	}
	doJSON(t, http.MethodPost, srv.URL+"/api/attempts", map[string]string{}, &attempt)
	if attempt.EndsAt == "" {
		t.Fatal("timed attempt has no ends_at")
	}

	var state struct {
		RemainingSeconds int `json:"remaining_seconds"`
	}
	doJSON(t, http.MethodGet, srv.URL+"/api/attempts/"+attempt.AttemptID, nil, &state)
	if state.RemainingSeconds <= 0 || state.RemainingSeconds > 30*60 {
		t.Errorf("remaining_seconds = %d, want within (0, 1800]", state.RemainingSeconds)
	}
}

func TestUntimedAttemptNoDeadline(t *testing.T) {
	srv := testServer(t, model.DeliveryConfig{PerChapter: 2, ChapterTags: []int{1}, DefaultLang: "en"})

	var attempt struct {
		AttemptID string `json:"attempt_id"`
		EndsAt    string `json:"ends_at"`
	}
	doJSON(t, http.MethodPost, srv.URL+"/api/attempts", map[string]string{}, &attempt)
	if attempt.EndsAt != "" {
		t.Errorf("untimed attempt has ends_at = %q", attempt.EndsAt)
	}

	var state struct {
		RemainingSeconds int `json:"remaining_seconds"`
	}
	doJSON(t, http.MethodGet, srv.URL+"/api/attempts/"+attempt.AttemptID, nil, &state)
	if state.RemainingSeconds != 0 {
		t.Errorf("remaining_seconds = %d, want 0 for untimed", state.RemainingSeconds)
	}
}

func TestAnalyticsUnavailableBeforeSubmit(t *testing.T) {
	srv := testServer(t, model.DeliveryConfig{PerChapter: 2, ChapterTags: []int{1}, DefaultLang: "en"})

	var attempt struct {
		AttemptID string `json:"attempt_id"`
	}
	doJSON(t, http.MethodPost, srv.URL+"/api/attempts", map[string]string{}, &attempt)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/attempts/"+attempt.AttemptID+"/analytics", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("analytics before submit status = %d, want 404", resp.StatusCode)
	}
}

func TestQuestionBlocksEndpoint(t *testing.T) {
	srv := testServer(t, model.DeliveryConfig{DefaultLang: "en"})

	var blocks []model.DisplayBlock
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/questions/q1-1/blocks?lang=es", nil, &blocks)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("blocks status = %d", resp.StatusCode)
	}
	if len(blocks) != 1 || blocks[0].Label != "ES" {
		t.Fatalf("blocks = %+v, want single ES block", blocks)
	}
	if blocks[0].QuestionText != "Pregunta 1-1" {
		t.Errorf("question_text = %q", blocks[0].QuestionText)
	}
	// Rationale never leaks during delivery.
	if blocks[0].WhyCorrect != "" {
		t.Errorf("delivery block carries rationale: %q", blocks[0].WhyCorrect)
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/questions/ghost/blocks", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown question status = %d, want 404", resp.StatusCode)
	}
}
