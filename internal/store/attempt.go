package store

import (
	"database/sql"
	"time"

	"github.com/pavelanni/quizzer/internal/model"
)

const attemptColumns = `id, user_id, quiz_set_id, started_at, completed_at, total_questions, correct`

// CreateAttempt inserts an attempt and returns its ID.
func (s *Store) CreateAttempt(a model.Attempt) (int64, error) {
	return s.insert(s.db,
		`INSERT INTO quiz_attempts (user_id, quiz_set_id, started_at, completed_at, total_questions, correct)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		a.UserID, a.QuizSetID, a.StartedAt.UTC(), utcPtr(a.CompletedAt), a.TotalQuestions, a.Correct,
	)
}

// SaveAttempt persists the mutable fields of an existing attempt.
func (s *Store) SaveAttempt(a model.Attempt) error {
	_, err := s.db.Exec(
		`UPDATE quiz_attempts SET completed_at = $1, total_questions = $2, correct = $3 WHERE id = $4`,
		utcPtr(a.CompletedAt), a.TotalQuestions, a.Correct, a.ID,
	)
	return err
}

// GetAttempt returns an attempt by ID, or nil if missing.
func (s *Store) GetAttempt(id int64) (*model.Attempt, error) {
	var a model.Attempt
	err := s.db.QueryRow(
		`SELECT `+attemptColumns+` FROM quiz_attempts WHERE id = $1`, id,
	).Scan(&a.ID, &a.UserID, &a.QuizSetID, &a.StartedAt, &a.CompletedAt, &a.TotalQuestions, &a.Correct)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAttempts returns a user's attempts on a quiz set, newest first.
// limit <= 0 returns all of them.
func (s *Store) ListAttempts(userID, quizSetID int64, limit int) ([]model.Attempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM quiz_attempts
		WHERE user_id = $1 AND quiz_set_id = $2
		ORDER BY started_at DESC, id DESC`
	args := []any{userID, quizSetID}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}
	return s.queryAttempts(query, args...)
}

// ListAllAttempts returns every attempt ordered by ID.
func (s *Store) ListAllAttempts() ([]model.Attempt, error) {
	return s.queryAttempts(`SELECT ` + attemptColumns + ` FROM quiz_attempts ORDER BY id`)
}

func (s *Store) queryAttempts(query string, args ...any) ([]model.Attempt, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var attempts []model.Attempt
	for rows.Next() {
		var a model.Attempt
		if err := rows.Scan(&a.ID, &a.UserID, &a.QuizSetID, &a.StartedAt, &a.CompletedAt, &a.TotalQuestions, &a.Correct); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// CreateAttemptAnswer inserts an answer record and returns its ID.
func (s *Store) CreateAttemptAnswer(aa model.AttemptAnswer) (int64, error) {
	return s.insert(s.db,
		`INSERT INTO attempt_answers (attempt_id, question_id, selected_option_id, was_correct)
		 VALUES ($1, $2, $3, $4)`,
		aa.AttemptID, aa.QuestionID, aa.SelectedOptionID, aa.WasCorrect,
	)
}

// ListAttemptAnswers returns the answers of an attempt in recording order.
func (s *Store) ListAttemptAnswers(attemptID int64) ([]model.AttemptAnswer, error) {
	rows, err := s.db.Query(
		`SELECT id, attempt_id, question_id, selected_option_id, was_correct
		 FROM attempt_answers WHERE attempt_id = $1 ORDER BY id`, attemptID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var answers []model.AttemptAnswer
	for rows.Next() {
		var aa model.AttemptAnswer
		if err := rows.Scan(&aa.ID, &aa.AttemptID, &aa.QuestionID, &aa.SelectedOptionID, &aa.WasCorrect); err != nil {
			return nil, err
		}
		answers = append(answers, aa)
	}
	return answers, rows.Err()
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
