package quiz

import "errors"

var (
	// ErrNoQuestionsAvailable is returned by StartAttempt for an empty quiz set.
	ErrNoQuestionsAvailable = errors.New("quiz has no questions")

	// ErrAlreadyAnswered is returned by GradeAndRecord when an answer guard
	// has already seen the question for the attempt.
	ErrAlreadyAnswered = errors.New("question already answered in this attempt")
)
