package store

import (
	"fmt"

	"github.com/pavelanni/quizzer/internal/model"
)

// ExportAllAttempts builds export-ready results from all attempts.
func (s *Store) ExportAllAttempts() ([]model.AttemptResult, error) {
	attempts, err := s.ListAllAttempts()
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}

	users := make(map[int64]*model.User)
	sets := make(map[int64]*model.QuizSet)
	questions := make(map[int64]*model.Question)

	var results []model.AttemptResult
	for _, a := range attempts {
		user, ok := users[a.UserID]
		if !ok {
			if user, err = s.GetUserByID(a.UserID); err != nil {
				return nil, fmt.Errorf("get user %d: %w", a.UserID, err)
			}
			users[a.UserID] = user
		}
		set, ok := sets[a.QuizSetID]
		if !ok {
			if set, err = s.GetQuizSet(a.QuizSetID); err != nil {
				return nil, fmt.Errorf("get quiz set %d: %w", a.QuizSetID, err)
			}
			sets[a.QuizSetID] = set
		}

		answers, err := s.ListAttemptAnswers(a.ID)
		if err != nil {
			return nil, fmt.Errorf("list answers of attempt %d: %w", a.ID, err)
		}
		var ars []model.AnswerResult
		for _, aa := range answers {
			q, ok := questions[aa.QuestionID]
			if !ok {
				if q, err = s.GetQuestion(aa.QuestionID); err != nil {
					return nil, fmt.Errorf("get question %d: %w", aa.QuestionID, err)
				}
				questions[aa.QuestionID] = q
			}
			ar := model.AnswerResult{WasCorrect: aa.WasCorrect}
			if q != nil {
				ar.Question = q.Text
				for _, o := range q.Options {
					if o.ID == aa.SelectedOptionID {
						ar.Selected = o.Text
						break
					}
				}
			}
			ars = append(ars, ar)
		}

		r := model.AttemptResult{
			AttemptID:      a.ID,
			StartedAt:      a.StartedAt,
			CompletedAt:    a.CompletedAt,
			TotalQuestions: a.TotalQuestions,
			Correct:        a.Correct,
			Percent:        a.Percent(),
			Answers:        ars,
		}
		if user != nil {
			r.Username = user.Username
			r.DisplayName = user.DisplayName
		}
		if set != nil {
			r.QuizSlug = set.Slug
			r.QuizTitle = set.Title
		}
		results = append(results, r)
	}

	return results, nil
}
