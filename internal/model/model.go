package model

import (
	"errors"
	"time"
)

// Authoring errors reported by Question.Validate.
var (
	ErrNoOptions              = errors.New("question has no options")
	ErrNoCorrectOption        = errors.New("question has no correct option")
	ErrMultipleCorrectOptions = errors.New("question has more than one correct option")
)

// User is a quiz taker, identified by a unique case-sensitive username.
type User struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// QuizSet is a named collection of questions. Questions is only populated
// when the set is fully hydrated.
type QuizSet struct {
	ID          int64      `json:"id"`
	Slug        string     `json:"slug"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Questions   []Question `json:"questions,omitempty"`
}

// Question belongs to a quiz set by id only.
type Question struct {
	ID        int64          `json:"id"`
	QuizSetID int64          `json:"quiz_set_id"`
	Text      string         `json:"text"`
	Options   []AnswerOption `json:"options"`
}

// AnswerOption is one selectable answer of a question.
type AnswerOption struct {
	ID         int64  `json:"id"`
	QuestionID int64  `json:"question_id"`
	Text       string `json:"text"`
	IsCorrect  bool   `json:"is_correct"`
}

// Validate checks the single-correct-option rule. Grading does not call it;
// it is meant for the authoring and import paths.
func (q Question) Validate() error {
	if len(q.Options) == 0 {
		return ErrNoOptions
	}
	correct := 0
	for _, o := range q.Options {
		if o.IsCorrect {
			correct++
		}
	}
	switch {
	case correct == 0:
		return ErrNoCorrectOption
	case correct > 1:
		return ErrMultipleCorrectOptions
	}
	return nil
}

// Attempt is one user's run through a quiz set.
type Attempt struct {
	ID             int64      `json:"id"`
	UserID         int64      `json:"user_id"`
	QuizSetID      int64      `json:"quiz_set_id"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	TotalQuestions int        `json:"total_questions"`
	Correct        int        `json:"correct"`
}

// Completed reports whether CompleteAttempt has been recorded.
func (a Attempt) Completed() bool {
	return a.CompletedAt != nil
}

// AttemptAnswer records the option chosen for one question of an attempt.
// WasCorrect is a snapshot taken at grading time.
type AttemptAnswer struct {
	ID               int64 `json:"id"`
	AttemptID        int64 `json:"attempt_id"`
	QuestionID       int64 `json:"question_id"`
	SelectedOptionID int64 `json:"selected_option_id"`
	WasCorrect       bool  `json:"was_correct"`
}

// QuizSetImport is used for loading quiz sets from JSON.
type QuizSetImport struct {
	Slug        string           `json:"slug"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Questions   []QuestionImport `json:"questions"`
}

// QuestionImport is a question as written in an import file.
type QuestionImport struct {
	Text    string         `json:"text"`
	Options []OptionImport `json:"options"`
}

// OptionImport is an answer option as written in an import file.
type OptionImport struct {
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// Question converts the import form into a Question for validation and insert.
func (qi QuestionImport) Question() Question {
	q := Question{Text: qi.Text}
	for _, o := range qi.Options {
		q.Options = append(q.Options, AnswerOption{Text: o.Text, IsCorrect: o.Correct})
	}
	return q
}

// Percent is the share of correct answers, 0 when TotalQuestions is 0.
func (a Attempt) Percent() float64 {
	if a.TotalQuestions <= 0 {
		return 0
	}
	return 100 * float64(a.Correct) / float64(a.TotalQuestions)
}
