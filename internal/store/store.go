// Package store persists exam artifacts in sqlite: frozen forms, attempts
// with their delivered question sequences and answers, and the write-once
// results payloads. The question bank itself is never stored here; it is
// read-only reference data loaded from JSON.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/careprep/careprep/internal/model"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS forms (
		exam_form_id TEXT PRIMARY KEY,
		blueprint_id TEXT NOT NULL,
		created_at TEXT NOT NULL,
		question_ids TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS attempts (
		attempt_id TEXT PRIMARY KEY,
		exam_form_id TEXT NOT NULL,
		language TEXT NOT NULL DEFAULT 'en',
		status TEXT NOT NULL DEFAULT 'in_progress',
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL DEFAULT '',
		ends_at TEXT NOT NULL DEFAULT '',
		FOREIGN KEY (exam_form_id) REFERENCES forms(exam_form_id)
	);

	CREATE TABLE IF NOT EXISTS delivered_questions (
		attempt_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		question_id TEXT NOT NULL,
		PRIMARY KEY (attempt_id, position),
		FOREIGN KEY (attempt_id) REFERENCES attempts(attempt_id)
	);

	CREATE TABLE IF NOT EXISTS answers (
		attempt_id TEXT NOT NULL,
		question_id TEXT NOT NULL,
		selected TEXT NOT NULL,
		PRIMARY KEY (attempt_id, question_id),
		FOREIGN KEY (attempt_id) REFERENCES attempts(attempt_id)
	);

	CREATE TABLE IF NOT EXISTS results_payloads (
		storage_key TEXT PRIMARY KEY,
		attempt_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveForm stores a frozen form artifact. Forms are immutable: inserting
// an id that already exists is an error, not an update.
func (s *Store) SaveForm(form model.Form) error {
	ids, err := json.Marshal(form.QuestionIDs)
	if err != nil {
		return fmt.Errorf("marshal question_ids: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO forms (exam_form_id, blueprint_id, created_at, question_ids) VALUES (?, ?, ?, ?)`,
		form.ExamFormID, form.BlueprintID, form.CreatedAt.Format(time.RFC3339), string(ids),
	)
	return err
}

// GetForm returns a form by id.
func (s *Store) GetForm(formID string) (model.Form, error) {
	var form model.Form
	var createdAt, ids string
	err := s.db.QueryRow(
		`SELECT exam_form_id, blueprint_id, created_at, question_ids FROM forms WHERE exam_form_id = ?`, formID,
	).Scan(&form.ExamFormID, &form.BlueprintID, &createdAt, &ids)
	if err != nil {
		return model.Form{}, err
	}
	if form.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return model.Form{}, fmt.Errorf("parse form created_at: %w", err)
	}
	if err := json.Unmarshal([]byte(ids), &form.QuestionIDs); err != nil {
		return model.Form{}, fmt.Errorf("decode question_ids: %w", err)
	}
	return form, nil
}

// CreateAttempt stores a new in-progress attempt and its delivered
// question sequence. endsAt is the absolute deadline; zero means no
// time limit.
func (s *Store) CreateAttempt(attemptID, formID, lang, startedAt string, endsAt string, questionIDs []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO attempts (attempt_id, exam_form_id, language, status, started_at, ends_at)
		 VALUES (?, ?, ?, 'in_progress', ?, ?)`,
		attemptID, formID, lang, startedAt, endsAt,
	)
	if err != nil {
		return err
	}

	for i, qid := range questionIDs {
		_, err := tx.Exec(
			`INSERT INTO delivered_questions (attempt_id, position, question_id) VALUES (?, ?, ?)`,
			attemptID, i, qid,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetAttempt returns an attempt with its recorded answers, in delivered
// order for the answered questions.
func (s *Store) GetAttempt(attemptID string) (model.Attempt, error) {
	var a model.Attempt
	err := s.db.QueryRow(
		`SELECT attempt_id, exam_form_id, language, status, started_at, finished_at FROM attempts WHERE attempt_id = ?`,
		attemptID,
	).Scan(&a.AttemptID, &a.ExamFormID, &a.Language, &a.Status, &a.StartedAt, &a.FinishedAt)
	if err != nil {
		return model.Attempt{}, err
	}

	rows, err := s.db.Query(
		`SELECT a.question_id, a.selected
		 FROM answers a
		 JOIN delivered_questions d ON d.attempt_id = a.attempt_id AND d.question_id = a.question_id
		 WHERE a.attempt_id = ?
		 ORDER BY d.position`,
		attemptID,
	)
	if err != nil {
		return model.Attempt{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var ans model.Answer
		if err := rows.Scan(&ans.QuestionID, &ans.Selected); err != nil {
			return model.Attempt{}, err
		}
		a.Answers = append(a.Answers, ans)
	}
	return a, rows.Err()
}

// AttemptEndsAt returns the attempt's absolute deadline, or false when the
// attempt has no time limit.
func (s *Store) AttemptEndsAt(attemptID string) (time.Time, bool, error) {
	var endsAt string
	err := s.db.QueryRow(`SELECT ends_at FROM attempts WHERE attempt_id = ?`, attemptID).Scan(&endsAt)
	if err != nil {
		return time.Time{}, false, err
	}
	if endsAt == "" {
		return time.Time{}, false, nil
	}
	t, err := time.Parse(time.RFC3339, endsAt)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse ends_at: %w", err)
	}
	return t, true, nil
}

// DeliveredQuestionIDs returns the attempt's question sequence in
// delivered order.
func (s *Store) DeliveredQuestionIDs(attemptID string) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT question_id FROM delivered_questions WHERE attempt_id = ? ORDER BY position`, attemptID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpsertAnswer records a selection; re-answering the same question while
// the attempt is in progress replaces the earlier selection.
func (s *Store) UpsertAnswer(attemptID, questionID, selected string) error {
	_, err := s.db.Exec(
		`INSERT INTO answers (attempt_id, question_id, selected) VALUES (?, ?, ?)
		 ON CONFLICT(attempt_id, question_id) DO UPDATE SET selected = ?`,
		attemptID, questionID, selected, selected,
	)
	return err
}

// AnswersByQID returns the attempt's answers keyed by question_id.
func (s *Store) AnswersByQID(attemptID string) (map[string]string, error) {
	rows, err := s.db.Query(`SELECT question_id, selected FROM answers WHERE attempt_id = ?`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	m := make(map[string]string)
	for rows.Next() {
		var qid, selected string
		if err := rows.Scan(&qid, &selected); err != nil {
			return nil, err
		}
		m[qid] = selected
	}
	return m, rows.Err()
}

// UpdateAttemptStatus moves an attempt to a new status, stamping
// finished_at when the status is terminal.
func (s *Store) UpdateAttemptStatus(attemptID string, status model.AttemptStatus, finishedAt string) error {
	query := `UPDATE attempts SET status = ? WHERE attempt_id = ?`
	args := []any{status, attemptID}
	if status.Terminal() {
		query = `UPDATE attempts SET status = ?, finished_at = ? WHERE attempt_id = ?`
		args = []any{status, finishedAt, attemptID}
	}
	_, err := s.db.Exec(query, args...)
	return err
}
