package store

import (
	"database/sql"

	"github.com/pavelanni/quizzer/internal/model"
)

// CreateQuizSet inserts a quiz set with its questions and options in one
// transaction and returns the set ID.
func (s *Store) CreateQuizSet(set model.QuizSet) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	setID, err := s.insert(tx,
		`INSERT INTO quiz_sets (slug, title, description) VALUES ($1, $2, $3)`,
		set.Slug, set.Title, set.Description,
	)
	if err != nil {
		return 0, err
	}

	for _, q := range set.Questions {
		qID, err := s.insert(tx,
			`INSERT INTO questions (quiz_set_id, text) VALUES ($1, $2)`,
			setID, q.Text,
		)
		if err != nil {
			return 0, err
		}
		for _, o := range q.Options {
			if _, err := s.insert(tx,
				`INSERT INTO answer_options (question_id, text, is_correct) VALUES ($1, $2, $3)`,
				qID, o.Text, o.IsCorrect,
			); err != nil {
				return 0, err
			}
		}
	}

	return setID, tx.Commit()
}

// DeleteQuizSet removes a set; questions, options and attempts cascade.
func (s *Store) DeleteQuizSet(id int64) error {
	_, err := s.db.Exec(`DELETE FROM quiz_sets WHERE id = $1`, id)
	return err
}

// ListQuizSets returns all quiz sets without questions, ordered by ID.
func (s *Store) ListQuizSets() ([]model.QuizSet, error) {
	rows, err := s.db.Query(`SELECT id, slug, title, description FROM quiz_sets ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sets []model.QuizSet
	for rows.Next() {
		var qs model.QuizSet
		if err := rows.Scan(&qs.ID, &qs.Slug, &qs.Title, &qs.Description); err != nil {
			return nil, err
		}
		sets = append(sets, qs)
	}
	return sets, rows.Err()
}

// GetQuizSetBySlug returns quiz set metadata by slug, or nil if missing.
func (s *Store) GetQuizSetBySlug(slug string) (*model.QuizSet, error) {
	var qs model.QuizSet
	err := s.db.QueryRow(
		`SELECT id, slug, title, description FROM quiz_sets WHERE slug = $1`, slug,
	).Scan(&qs.ID, &qs.Slug, &qs.Title, &qs.Description)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &qs, nil
}

// GetQuizSet returns quiz set metadata by ID, or nil if missing.
func (s *Store) GetQuizSet(id int64) (*model.QuizSet, error) {
	var qs model.QuizSet
	err := s.db.QueryRow(
		`SELECT id, slug, title, description FROM quiz_sets WHERE id = $1`, id,
	).Scan(&qs.ID, &qs.Slug, &qs.Title, &qs.Description)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &qs, nil
}

// QuizSetCount returns the number of quiz sets.
func (s *Store) QuizSetCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM quiz_sets`).Scan(&count)
	return count, err
}

// CountQuestions returns the number of questions in a set.
func (s *Store) CountQuestions(quizSetID int64) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM questions WHERE quiz_set_id = $1`, quizSetID).Scan(&count)
	return count, err
}

// ListQuestions returns the questions of a set with their options, both
// ordered by ID.
func (s *Store) ListQuestions(quizSetID int64) ([]model.Question, error) {
	rows, err := s.db.Query(
		`SELECT id, quiz_set_id, text FROM questions WHERE quiz_set_id = $1 ORDER BY id`, quizSetID,
	)
	if err != nil {
		return nil, err
	}
	var questions []model.Question
	index := make(map[int64]int)
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.QuizSetID, &q.Text); err != nil {
			rows.Close()
			return nil, err
		}
		index[q.ID] = len(questions)
		questions = append(questions, q)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	orows, err := s.db.Query(
		`SELECT o.id, o.question_id, o.text, o.is_correct
		 FROM answer_options o JOIN questions q ON q.id = o.question_id
		 WHERE q.quiz_set_id = $1 ORDER BY o.id`, quizSetID,
	)
	if err != nil {
		return nil, err
	}
	defer orows.Close()
	for orows.Next() {
		var o model.AnswerOption
		if err := orows.Scan(&o.ID, &o.QuestionID, &o.Text, &o.IsCorrect); err != nil {
			return nil, err
		}
		if i, ok := index[o.QuestionID]; ok {
			questions[i].Options = append(questions[i].Options, o)
		}
	}
	return questions, orows.Err()
}

// GetQuestion returns a question with its options, or nil if missing.
func (s *Store) GetQuestion(id int64) (*model.Question, error) {
	var q model.Question
	err := s.db.QueryRow(
		`SELECT id, quiz_set_id, text FROM questions WHERE id = $1`, id,
	).Scan(&q.ID, &q.QuizSetID, &q.Text)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(
		`SELECT id, question_id, text, is_correct FROM answer_options WHERE question_id = $1 ORDER BY id`, id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var o model.AnswerOption
		if err := rows.Scan(&o.ID, &o.QuestionID, &o.Text, &o.IsCorrect); err != nil {
			return nil, err
		}
		q.Options = append(q.Options, o)
	}
	return &q, rows.Err()
}
