// Package handler exposes the exam core over HTTP as a thin JSON driver.
// All domain logic stays in the core packages; handlers decode, call,
// encode, and map the core's error taxonomy onto status codes.
package handler

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/careprep/careprep/internal/analytics"
	"github.com/careprep/careprep/internal/assemble"
	"github.com/careprep/careprep/internal/bank"
	"github.com/careprep/careprep/internal/i18n"
	"github.com/careprep/careprep/internal/language"
	"github.com/careprep/careprep/internal/model"
	"github.com/careprep/careprep/internal/score"
	"github.com/careprep/careprep/internal/session"
	"github.com/careprep/careprep/internal/store"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store  *store.Store
	bank   *bank.Bank
	config model.DeliveryConfig
}

// New creates a new Handler.
func New(s *store.Store, b *bank.Bank, cfg model.DeliveryConfig) *Handler {
	return &Handler{store: s, bank: b, config: cfg}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/api/forms", h.handleCreateForm)
	r.Get("/api/forms/{formID}", h.handleGetForm)
	r.Post("/api/attempts", h.handleStartAttempt)
	r.Get("/api/attempts/{attemptID}", h.handleGetAttempt)
	r.Put("/api/attempts/{attemptID}/answers", h.handleAnswer)
	r.Post("/api/attempts/{attemptID}/submit", h.handleSubmit)
	r.Get("/api/attempts/{attemptID}/results", h.handleResults)
	r.Get("/api/attempts/{attemptID}/analytics", h.handleAnalytics)
	r.Get("/api/questions/{questionID}/blocks", h.handleQuestionBlocks)
}

func (h *Handler) handleCreateForm(w http.ResponseWriter, r *http.Request) {
	var bp model.Blueprint
	if err := json.NewDecoder(r.Body).Decode(&bp); err != nil {
		http.Error(w, "invalid blueprint JSON", http.StatusBadRequest)
		return
	}
	if err := bp.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	form, err := assemble.BuildForm(bp, h.bank, uuid.NewString(), time.Now())
	if err != nil {
		var cfgErr *assemble.ConfigError
		if errors.As(err, &cfgErr) {
			http.Error(w, cfgErr.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if err := h.store.SaveForm(form); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusCreated, form)
}

func (h *Handler) handleGetForm(w http.ResponseWriter, r *http.Request) {
	form, err := h.store.GetForm(chi.URLParam(r, "formID"))
	if err == sql.ErrNoRows {
		http.Error(w, i18n.T(r.Context(), "FormNotFound"), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, form)
}

type startAttemptRequest struct {
	ExamFormID string `json:"exam_form_id"`
	Language   string `json:"language"`
}

type attemptResponse struct {
	AttemptID   string   `json:"attempt_id"`
	ExamFormID  string   `json:"exam_form_id"`
	Language    string   `json:"language"`
	StartedAt   string   `json:"started_at"`
	EndsAt      string   `json:"ends_at,omitempty"`
	QuestionIDs []string `json:"question_ids"`
}

// handleStartAttempt delivers a new attempt: either the frozen sequence
// of an existing form, or a fresh per-chapter random pick when no form id
// is given.
func (h *Handler) handleStartAttempt(w http.ResponseWriter, r *http.Request) {
	var req startAttemptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid attempt JSON", http.StatusBadRequest)
		return
	}
	lang := req.Language
	if lang == "" {
		lang = h.config.DefaultLang
	}

	var questionIDs []string
	formID := req.ExamFormID
	if formID != "" {
		form, err := h.store.GetForm(formID)
		if err == sql.ErrNoRows {
			http.Error(w, i18n.T(r.Context(), "FormNotFound"), http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		questionIDs = form.QuestionIDs
	} else {
		questionIDs = assemble.PickPerChapter(h.bank, h.config.PerChapter, h.config.ChapterTags)
		if len(questionIDs) == 0 {
			http.Error(w, "question bank has no questions for the configured chapters", http.StatusConflict)
			return
		}
	}

	attemptID := uuid.NewString()
	sess := session.Start(attemptID, formID, lang, questionIDs, time.Now(), h.config.TimeLimit)
	startedAt := sess.StartedAt.Format(time.RFC3339)
	endsAt := ""
	if !sess.EndsAt.IsZero() {
		endsAt = sess.EndsAt.Format(time.RFC3339)
	}

	if err := h.store.CreateAttempt(attemptID, formID, lang, startedAt, endsAt, questionIDs); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusCreated, attemptResponse{
		AttemptID:   attemptID,
		ExamFormID:  formID,
		Language:    lang,
		StartedAt:   startedAt,
		EndsAt:      endsAt,
		QuestionIDs: questionIDs,
	})
}

type attemptStateResponse struct {
	Attempt          model.Attempt `json:"attempt"`
	Tally            score.Tally   `json:"tally"`
	Summary          string        `json:"summary"`
	RemainingSeconds int           `json:"remaining_seconds"`
}

func (h *Handler) handleGetAttempt(w http.ResponseWriter, r *http.Request) {
	attemptID := chi.URLParam(r, "attemptID")

	attempt, err := h.store.GetAttempt(attemptID)
	if err == sql.ErrNoRows {
		http.Error(w, i18n.T(r.Context(), "AttemptNotFound"), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	delivered, err := h.store.DeliveredQuestionIDs(attemptID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	answers, err := h.store.AnswersByQID(attemptID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	sess := &session.State{
		AttemptID:   attempt.AttemptID,
		ExamFormID:  attempt.ExamFormID,
		Language:    attempt.Language,
		QuestionIDs: delivered,
		Answers:     answers,
	}
	if endsAt, timed, err := h.store.AttemptEndsAt(attemptID); err == nil && timed {
		sess.EndsAt = endsAt
	}

	tally := score.ScoreExam(delivered, h.bank, answers)
	respondJSON(w, http.StatusOK, attemptStateResponse{
		Attempt: attempt,
		Tally:   tally,
		Summary: i18n.Td(r.Context(), "ScoreSummary", map[string]any{
			"Correct": tally.Correct,
			"Total":   tally.Total,
			"Percent": score.Percent(tally.Correct, tally.Total),
		}),
		RemainingSeconds: int(sess.Remaining(time.Now()).Seconds()),
	})
}

type answerRequest struct {
	QuestionID string `json:"question_id"`
	Selected   string `json:"selected"`
}

func (h *Handler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	attemptID := chi.URLParam(r, "attemptID")

	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid answer JSON", http.StatusBadRequest)
		return
	}
	if req.QuestionID == "" || !model.ValidOption(req.Selected) {
		http.Error(w, "answer requires question_id and selected A-D", http.StatusBadRequest)
		return
	}
	if _, ok := h.bank.Get(req.QuestionID); !ok {
		http.Error(w, i18n.T(r.Context(), "QuestionNotFound"), http.StatusNotFound)
		return
	}

	attempt, err := h.store.GetAttempt(attemptID)
	if err == sql.ErrNoRows {
		http.Error(w, i18n.T(r.Context(), "AttemptNotFound"), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if attempt.Status != model.StatusInProgress {
		http.Error(w, i18n.T(r.Context(), "AttemptClosed"), http.StatusConflict)
		return
	}

	// A timed attempt whose deadline passed expires on first contact.
	if h.attemptExpired(attemptID, time.Now()) {
		h.finishAttempt(attemptID, model.StatusTimeExpired)
		http.Error(w, i18n.T(r.Context(), "AttemptClosed"), http.StatusConflict)
		return
	}

	if err := h.store.UpsertAnswer(attemptID, req.QuestionID, req.Selected); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	attemptID := chi.URLParam(r, "attemptID")

	attempt, err := h.store.GetAttempt(attemptID)
	if err == sql.ErrNoRows {
		http.Error(w, i18n.T(r.Context(), "AttemptNotFound"), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if attempt.Status != model.StatusInProgress {
		http.Error(w, i18n.T(r.Context(), "AttemptClosed"), http.StatusConflict)
		return
	}

	endStatus := model.StatusSubmitted
	if h.attemptExpired(attemptID, time.Now()) {
		endStatus = model.StatusTimeExpired
	}

	h.finishAttempt(attemptID, endStatus)

	result, ok := h.scoreAttempt(w, r, attemptID)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *Handler) handleResults(w http.ResponseWriter, r *http.Request) {
	result, ok := h.scoreAttempt(w, r, chi.URLParam(r, "attemptID"))
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *Handler) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	payload, err := h.store.GetResultsPayload(chi.URLParam(r, "attemptID"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if payload == nil {
		http.Error(w, i18n.T(r.Context(), "AnalyticsUnavailable"), http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, payload)
}

func (h *Handler) handleQuestionBlocks(w http.ResponseWriter, r *http.Request) {
	q, ok := h.bank.Get(chi.URLParam(r, "questionID"))
	if !ok {
		http.Error(w, i18n.T(r.Context(), "QuestionNotFound"), http.StatusNotFound)
		return
	}
	lang := r.URL.Query().Get("lang")
	if lang == "" {
		lang = h.config.DefaultLang
	}
	respondJSON(w, http.StatusOK, language.DeliveryBlocks(q, lang))
}

// attemptExpired reports whether a timed attempt's deadline has passed.
// Untimed attempts never expire.
func (h *Handler) attemptExpired(attemptID string, now time.Time) bool {
	endsAt, timed, err := h.store.AttemptEndsAt(attemptID)
	if err != nil || !timed {
		return false
	}
	sess := session.State{EndsAt: endsAt}
	return sess.Expired(now)
}

// finishAttempt moves an attempt to a terminal status and runs the
// write-once analytics finalization. A storage conflict is silently
// idempotent; an analytics failure is logged and surfaces later as an
// unavailable analytics affordance, never as a failed submit.
func (h *Handler) finishAttempt(attemptID string, endStatus model.AttemptStatus) {
	finishedAt := time.Now().UTC().Format(time.RFC3339)
	if err := h.store.UpdateAttemptStatus(attemptID, endStatus, finishedAt); err != nil {
		slog.Error("update attempt status", "attempt_id", attemptID, "error", err)
		return
	}

	delivered, err := h.store.DeliveredQuestionIDs(attemptID)
	if err != nil {
		slog.Error("load delivered questions", "attempt_id", attemptID, "error", err)
		return
	}
	answers, err := h.store.AnswersByQID(attemptID)
	if err != nil {
		slog.Error("load answers", "attempt_id", attemptID, "error", err)
		return
	}

	if _, err := analytics.FinalizeAttempt(attemptID, endStatus, delivered, answers, h.bank, h.store); err != nil {
		slog.Error("finalize analytics", "attempt_id", attemptID, "error", err)
	}
}

// scoreAttempt builds the results artifact for an attempt. The form is
// the delivered question sequence; for form-based attempts that is the
// frozen form order.
func (h *Handler) scoreAttempt(w http.ResponseWriter, r *http.Request, attemptID string) (model.ScoreResult, bool) {
	attempt, err := h.store.GetAttempt(attemptID)
	if err == sql.ErrNoRows {
		http.Error(w, i18n.T(r.Context(), "AttemptNotFound"), http.StatusNotFound)
		return model.ScoreResult{}, false
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return model.ScoreResult{}, false
	}

	delivered, err := h.store.DeliveredQuestionIDs(attemptID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return model.ScoreResult{}, false
	}

	form := model.Form{ExamFormID: attempt.ExamFormID, QuestionIDs: delivered}
	if attempt.ExamFormID != "" {
		if stored, err := h.store.GetForm(attempt.ExamFormID); err == nil {
			form = stored
		}
	}

	return score.Score(form, h.bank, attempt), true
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}
