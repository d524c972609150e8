package quiz

import "sync"

// AnswerGuard remembers which questions have been graded per attempt.
// MarkAnswered returns false when the pair was already marked. Unmark undoes
// a mark whose answer could not be stored, and Forget drops every mark of an
// attempt.
type AnswerGuard interface {
	MarkAnswered(attemptID, questionID int64) (bool, error)
	Unmark(attemptID, questionID int64) error
	Forget(attemptID int64) error
}

type answerKey struct {
	attemptID  int64
	questionID int64
}

// MemoryGuard is an in-process AnswerGuard.
type MemoryGuard struct {
	mu   sync.Mutex
	seen map[answerKey]struct{}
}

// NewMemoryGuard creates an empty MemoryGuard.
func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{seen: make(map[answerKey]struct{})}
}

// MarkAnswered implements AnswerGuard.
func (g *MemoryGuard) MarkAnswered(attemptID, questionID int64) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	k := answerKey{attemptID, questionID}
	if _, ok := g.seen[k]; ok {
		return false, nil
	}
	g.seen[k] = struct{}{}
	return true, nil
}

// Unmark implements AnswerGuard.
func (g *MemoryGuard) Unmark(attemptID, questionID int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.seen, answerKey{attemptID, questionID})
	return nil
}

// Forget implements AnswerGuard.
func (g *MemoryGuard) Forget(attemptID int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for k := range g.seen {
		if k.attemptID == attemptID {
			delete(g.seen, k)
		}
	}
	return nil
}
