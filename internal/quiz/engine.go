// Package quiz implements the quiz-session engine: user lookup, attempt
// lifecycle, question and option randomization, and grading.
package quiz

import (
	"errors"
	"fmt"
	"time"

	"github.com/pavelanni/quizzer/internal/model"
)

// Store is the persistence the engine needs. Optional lookups return a nil
// pointer and a nil error when nothing matches.
type Store interface {
	GetUserByUsername(username string) (*model.User, error)
	CreateUser(u model.User) (int64, error)

	ListQuizSets() ([]model.QuizSet, error)
	GetQuizSetBySlug(slug string) (*model.QuizSet, error)
	// ListQuestions returns the questions of a set with their options, in stored order.
	ListQuestions(quizSetID int64) ([]model.Question, error)
	CountQuestions(quizSetID int64) (int, error)

	CreateAttempt(a model.Attempt) (int64, error)
	SaveAttempt(a model.Attempt) error
	CreateAttemptAnswer(aa model.AttemptAnswer) (int64, error)
	// ListAttempts returns attempts newest first. limit <= 0 means no limit.
	ListAttempts(userID, quizSetID int64, limit int) ([]model.Attempt, error)
}

// Engine drives quiz attempts against a Store. It holds no per-attempt state
// apart from the optional AnswerGuard.
type Engine struct {
	store Store
	rng   Source
	guard AnswerGuard
	now   func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithSource sets the random source used for shuffling.
func WithSource(src Source) Option { return func(e *Engine) { e.rng = src } }

// WithSeed makes shuffling deterministic.
func WithSeed(seed uint64) Option { return func(e *Engine) { e.rng = NewSeededSource(seed) } }

// WithAnswerGuard rejects a second grading of the same question in an attempt.
func WithAnswerGuard(g AnswerGuard) Option { return func(e *Engine) { e.guard = g } }

// WithClock overrides the time source for CreatedAt, StartedAt and CompletedAt.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// NewEngine creates an Engine. Without WithSource or WithSeed it shuffles
// from process entropy.
func NewEngine(s Store, opts ...Option) *Engine {
	e := &Engine{store: s, now: time.Now}
	for _, o := range opts {
		o(e)
	}
	if e.rng == nil {
		e.rng = NewDefaultSource()
	}
	return e
}

// GetOrCreateUser returns the user with the exact username, creating it when
// missing. The display name of an existing user is left untouched.
func (e *Engine) GetOrCreateUser(username, displayName string) (*model.User, error) {
	u, err := e.store.GetUserByUsername(username)
	if err != nil || u != nil {
		return u, err
	}
	nu := model.User{
		Username:    username,
		DisplayName: displayName,
		CreatedAt:   e.now().UTC(),
	}
	id, err := e.store.CreateUser(nu)
	if err != nil {
		return nil, err
	}
	nu.ID = id
	return &nu, nil
}

// ListQuizSets returns quiz set metadata ordered by id.
func (e *Engine) ListQuizSets() ([]model.QuizSet, error) {
	return e.store.ListQuizSets()
}

// GetQuizSetBySlug returns the set with its questions and options, or nil.
func (e *Engine) GetQuizSetBySlug(slug string) (*model.QuizSet, error) {
	set, err := e.store.GetQuizSetBySlug(slug)
	if err != nil || set == nil {
		return set, err
	}
	set.Questions, err = e.store.ListQuestions(set.ID)
	if err != nil {
		return nil, err
	}
	return set, nil
}

// StartAttempt creates an attempt for the user on the set. maxQuestions <= 0
// means all questions of the set.
func (e *Engine) StartAttempt(userID, quizSetID int64, maxQuestions int) (*model.Attempt, error) {
	available, err := e.store.CountQuestions(quizSetID)
	if err != nil {
		return nil, err
	}
	if available == 0 {
		return nil, ErrNoQuestionsAvailable
	}
	total := available
	if maxQuestions > 0 && maxQuestions < available {
		total = maxQuestions
	}

	a := model.Attempt{
		UserID:         userID,
		QuizSetID:      quizSetID,
		StartedAt:      e.now().UTC(),
		TotalQuestions: total,
	}
	id, err := e.store.CreateAttempt(a)
	if err != nil {
		return nil, err
	}
	a.ID = id

	// Marks under a reused attempt id are stale.
	if e.guard != nil {
		if err := e.guard.Forget(a.ID); err != nil {
			return nil, fmt.Errorf("reset answer guard for attempt %d: %w", a.ID, err)
		}
	}
	return &a, nil
}

// GetRandomizedQuestions shuffles the questions of a set, keeps the first
// limit of them when limit > 0, then shuffles the options of each kept
// question.
func (e *Engine) GetRandomizedQuestions(quizSetID int64, limit int) ([]model.Question, error) {
	questions, err := e.store.ListQuestions(quizSetID)
	if err != nil {
		return nil, err
	}

	Shuffle(e.rng, questions)
	if limit > 0 && limit < len(questions) {
		questions = questions[:limit]
	}
	for i := range questions {
		Shuffle(e.rng, questions[i].Options)
	}
	return questions, nil
}

// GradeAndRecord stores the selected option for the question and bumps the
// attempt's correct tally when the option is correct. With an AnswerGuard, a
// question whose answer fails to store stays open for another try.
func (e *Engine) GradeAndRecord(attempt *model.Attempt, q model.Question, selected model.AnswerOption) (*model.AttemptAnswer, error) {
	if e.guard != nil {
		fresh, err := e.guard.MarkAnswered(attempt.ID, q.ID)
		if err != nil {
			return nil, err
		}
		if !fresh {
			return nil, ErrAlreadyAnswered
		}
	}

	aa := model.AttemptAnswer{
		AttemptID:        attempt.ID,
		QuestionID:       q.ID,
		SelectedOptionID: selected.ID,
		WasCorrect:       selected.IsCorrect,
	}
	id, err := e.store.CreateAttemptAnswer(aa)
	if err != nil {
		if e.guard != nil {
			if uerr := e.guard.Unmark(attempt.ID, q.ID); uerr != nil {
				err = errors.Join(err, uerr)
			}
		}
		return nil, err
	}
	aa.ID = id

	if aa.WasCorrect {
		graded := *attempt
		graded.Correct++
		if err := e.store.SaveAttempt(graded); err != nil {
			return nil, err
		}
		attempt.Correct = graded.Correct
	}
	return &aa, nil
}

// CompleteAttempt stamps CompletedAt. Once set, the timestamp is kept and
// later calls are no-ops.
func (e *Engine) CompleteAttempt(attempt *model.Attempt) error {
	if attempt.Completed() {
		return nil
	}
	now := e.now().UTC()
	done := *attempt
	done.CompletedAt = &now
	if err := e.store.SaveAttempt(done); err != nil {
		return err
	}
	*attempt = done
	return nil
}

// RecentAttempts returns the user's attempts on a set, newest first.
func (e *Engine) RecentAttempts(userID, quizSetID int64, limit int) ([]model.Attempt, error) {
	return e.store.ListAttempts(userID, quizSetID, limit)
}
