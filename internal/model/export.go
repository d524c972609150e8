package model

import "time"

// AttemptExport is the top-level JSON structure for attempt history export.
type AttemptExport struct {
	GeneratedAt time.Time       `json:"generated_at"`
	Attempts    []AttemptResult `json:"attempts"`
}

// AttemptResult holds one attempt with its user, quiz set and answers.
type AttemptResult struct {
	AttemptID      int64          `json:"attempt_id"`
	Username       string         `json:"username"`
	DisplayName    string         `json:"display_name,omitempty"`
	QuizSlug       string         `json:"quiz_slug"`
	QuizTitle      string         `json:"quiz_title"`
	StartedAt      time.Time      `json:"started_at"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
	TotalQuestions int            `json:"total_questions"`
	Correct        int            `json:"correct"`
	Percent        float64        `json:"percent"`
	Answers        []AnswerResult `json:"answers"`
}

// AnswerResult is a single graded answer in an exported attempt.
type AnswerResult struct {
	Question   string `json:"question"`
	Selected   string `json:"selected"`
	WasCorrect bool   `json:"was_correct"`
}
