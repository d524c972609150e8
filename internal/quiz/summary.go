package quiz

import "github.com/pavelanni/quizzer/internal/model"

// Summary aggregates a list of attempts.
type Summary struct {
	Count          int     `json:"count"`
	Correct        int     `json:"correct"`
	TotalQuestions int     `json:"total_questions"`
	AveragePercent float64 `json:"average_percent"`
}

// Summarize averages the per-attempt percentages, so every attempt weighs the
// same regardless of its question count.
func Summarize(attempts []model.Attempt) Summary {
	var s Summary
	var sum float64
	for _, a := range attempts {
		s.Count++
		s.Correct += a.Correct
		s.TotalQuestions += a.TotalQuestions
		sum += a.Percent()
	}
	if s.Count > 0 {
		s.AveragePercent = sum / float64(s.Count)
	}
	return s
}
