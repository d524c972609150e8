package quiz_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/quizzer/internal/model"
	"github.com/pavelanni/quizzer/internal/quiz"
	"github.com/pavelanni/quizzer/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(store.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// csharpBasics mirrors the bundled sample set: three questions, four options
// each, the first option correct.
func csharpBasics() model.QuizSet {
	set := model.QuizSet{Slug: "csharp-basics", Title: "C# Basics"}
	for i := 1; i <= 3; i++ {
		q := model.Question{Text: fmt.Sprintf("Question %d", i)}
		for j := 1; j <= 4; j++ {
			q.Options = append(q.Options, model.AnswerOption{
				Text:      fmt.Sprintf("Q%d option %d", i, j),
				IsCorrect: j == 1,
			})
		}
		set.Questions = append(set.Questions, q)
	}
	return set
}

func seedSet(t *testing.T, s *store.Store, set model.QuizSet) int64 {
	t.Helper()
	id, err := s.CreateQuizSet(set)
	require.NoError(t, err)
	return id
}

func correctOption(t *testing.T, q model.Question) model.AnswerOption {
	t.Helper()
	for _, o := range q.Options {
		if o.IsCorrect {
			return o
		}
	}
	t.Fatalf("question %d has no correct option", q.ID)
	return model.AnswerOption{}
}

func wrongOption(t *testing.T, q model.Question) model.AnswerOption {
	t.Helper()
	for _, o := range q.Options {
		if !o.IsCorrect {
			return o
		}
	}
	t.Fatalf("question %d has no wrong option", q.ID)
	return model.AnswerOption{}
}

func TestGetOrCreateUser(t *testing.T) {
	s := newTestStore(t)
	fixed := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	e := quiz.NewEngine(s, quiz.WithClock(func() time.Time { return fixed }))

	u1, err := e.GetOrCreateUser("alice", "Alice")
	require.NoError(t, err)
	require.NotNil(t, u1)
	assert.NotZero(t, u1.ID)
	assert.Equal(t, "Alice", u1.DisplayName)
	assert.True(t, u1.CreatedAt.Equal(fixed))

	u2, err := e.GetOrCreateUser("alice", "Someone Else")
	require.NoError(t, err)
	assert.Equal(t, u1.ID, u2.ID)
	assert.Equal(t, "Alice", u2.DisplayName, "existing display name is kept")

	other, err := e.GetOrCreateUser("ALICE", "")
	require.NoError(t, err)
	assert.NotEqual(t, u1.ID, other.ID, "usernames are case-sensitive")

	n, err := s.UserCount()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestGetQuizSetBySlug(t *testing.T) {
	s := newTestStore(t)
	e := quiz.NewEngine(s)
	seedSet(t, s, csharpBasics())

	set, err := e.GetQuizSetBySlug("csharp-basics")
	require.NoError(t, err)
	require.NotNil(t, set)
	assert.Equal(t, "C# Basics", set.Title)
	require.Len(t, set.Questions, 3)
	for _, q := range set.Questions {
		assert.Len(t, q.Options, 4)
	}

	missing, err := e.GetQuizSetBySlug("CSHARP-BASICS")
	require.NoError(t, err)
	assert.Nil(t, missing)

	sets, err := e.ListQuizSets()
	require.NoError(t, err)
	require.Len(t, sets, 1)
	assert.Empty(t, sets[0].Questions)
}

func TestStartAttempt(t *testing.T) {
	s := newTestStore(t)
	setID := seedSet(t, s, csharpBasics())
	emptyID := seedSet(t, s, model.QuizSet{Slug: "empty", Title: "Empty"})
	e := quiz.NewEngine(s)
	u, err := e.GetOrCreateUser("bob", "")
	require.NoError(t, err)

	tests := []struct {
		name         string
		maxQuestions int
		wantTotal    int
	}{
		{"no limit", 0, 3},
		{"negative means no limit", -1, 3},
		{"limit below count", 2, 2},
		{"limit equal to count", 3, 3},
		{"limit above count", 10, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := e.StartAttempt(u.ID, setID, tt.maxQuestions)
			require.NoError(t, err)
			assert.NotZero(t, a.ID)
			assert.Equal(t, tt.wantTotal, a.TotalQuestions)
			assert.Zero(t, a.Correct)
			assert.False(t, a.Completed())

			stored, err := s.GetAttempt(a.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTotal, stored.TotalQuestions)
		})
	}

	t.Run("empty set", func(t *testing.T) {
		a, err := e.StartAttempt(u.ID, emptyID, 5)
		assert.ErrorIs(t, err, quiz.ErrNoQuestionsAvailable)
		assert.Nil(t, a)
		attempts, err := s.ListAttempts(u.ID, emptyID, 0)
		require.NoError(t, err)
		assert.Empty(t, attempts, "no attempt is stored for an empty set")
	})
}

func TestGetRandomizedQuestions(t *testing.T) {
	s := newTestStore(t)
	setID := seedSet(t, s, csharpBasics())
	original, err := s.ListQuestions(setID)
	require.NoError(t, err)

	byID := make(map[int64]model.Question)
	for _, q := range original {
		byID[q.ID] = q
	}

	e := quiz.NewEngine(s, quiz.WithSeed(7))
	for _, limit := range []int{0, 1, 2, 3, 10} {
		t.Run(fmt.Sprintf("limit=%d", limit), func(t *testing.T) {
			qs, err := e.GetRandomizedQuestions(setID, limit)
			require.NoError(t, err)

			want := 3
			if limit > 0 && limit < 3 {
				want = limit
			}
			require.Len(t, qs, want)

			seen := make(map[int64]bool)
			for _, q := range qs {
				assert.False(t, seen[q.ID], "question %d repeated", q.ID)
				seen[q.ID] = true

				orig, ok := byID[q.ID]
				require.True(t, ok)
				assert.ElementsMatch(t, orig.Options, q.Options, "options are a permutation")
			}
		})
	}
}

func TestGetRandomizedQuestionsDeterministic(t *testing.T) {
	s := newTestStore(t)
	set := model.QuizSet{Slug: "big", Title: "Big"}
	for i := 0; i < 20; i++ {
		set.Questions = append(set.Questions, model.Question{
			Text: fmt.Sprintf("q%d", i),
			Options: []model.AnswerOption{
				{Text: "a", IsCorrect: true}, {Text: "b"}, {Text: "c"}, {Text: "d"},
			},
		})
	}
	setID := seedSet(t, s, set)

	order := func(seed uint64) []string {
		e := quiz.NewEngine(s, quiz.WithSeed(seed))
		qs, err := e.GetRandomizedQuestions(setID, 5)
		require.NoError(t, err)
		var out []string
		for _, q := range qs {
			out = append(out, q.Text)
			for _, o := range q.Options {
				out = append(out, o.Text)
			}
		}
		return out
	}

	assert.Equal(t, order(42), order(42))
	assert.NotEqual(t, order(42), order(43))
}

// drawSource replays fixed draws and records the bounds it was asked for.
type drawSource struct {
	draws  []int
	bounds []int
}

func (d *drawSource) IntN(n int) int {
	d.bounds = append(d.bounds, n)
	v := d.draws[0]
	d.draws = d.draws[1:]
	return v
}

func TestGetRandomizedQuestionsDrawOrder(t *testing.T) {
	s := newTestStore(t)
	setID := seedSet(t, s, csharpBasics())
	stored, err := s.ListQuestions(setID)
	require.NoError(t, err)

	// Questions [1 2 3]: draw 0 of 3 swaps 3 to the front, draw 1 of 2 keeps
	// the rest. Then the kept question's options: three zero draws rotate
	// [1 2 3 4] into [2 3 4 1].
	src := &drawSource{draws: []int{0, 1, 0, 0, 0}}
	e := quiz.NewEngine(s, quiz.WithSource(src))

	qs, err := e.GetRandomizedQuestions(setID, 1)
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.Equal(t, stored[2].ID, qs[0].ID, "the limit applies after the question shuffle")

	var texts []string
	for _, o := range qs[0].Options {
		texts = append(texts, o.Text)
	}
	assert.Equal(t, []string{"Q3 option 2", "Q3 option 3", "Q3 option 4", "Q3 option 1"}, texts)
	assert.Equal(t, []int{3, 2, 4, 3, 2}, src.bounds,
		"questions are drawn first, then only the kept question's options")
	assert.Empty(t, src.draws)
}

func TestGetRandomizedQuestionsDrawOrderAll(t *testing.T) {
	s := newTestStore(t)
	setID := seedSet(t, s, csharpBasics())
	stored, err := s.ListQuestions(setID)
	require.NoError(t, err)

	// Identity draws keep stored order everywhere; every question gets its
	// options drawn in turn.
	src := &drawSource{draws: []int{2, 1, 3, 2, 1, 3, 2, 1, 3, 2, 1}}
	e := quiz.NewEngine(s, quiz.WithSource(src))

	qs, err := e.GetRandomizedQuestions(setID, 0)
	require.NoError(t, err)
	require.Len(t, qs, 3)
	for i := range qs {
		assert.Equal(t, stored[i], qs[i])
	}
	assert.Equal(t, []int{3, 2, 4, 3, 2, 4, 3, 2, 4, 3, 2}, src.bounds)
}

func TestGradeAndRecord(t *testing.T) {
	s := newTestStore(t)
	setID := seedSet(t, s, csharpBasics())
	e := quiz.NewEngine(s, quiz.WithSeed(1))
	u, err := e.GetOrCreateUser("carol", "")
	require.NoError(t, err)

	a, err := e.StartAttempt(u.ID, setID, 0)
	require.NoError(t, err)
	qs, err := e.GetRandomizedQuestions(setID, a.TotalQuestions)
	require.NoError(t, err)

	aa, err := e.GradeAndRecord(a, qs[0], correctOption(t, qs[0]))
	require.NoError(t, err)
	assert.True(t, aa.WasCorrect)
	assert.Equal(t, 1, a.Correct)

	aa, err = e.GradeAndRecord(a, qs[1], wrongOption(t, qs[1]))
	require.NoError(t, err)
	assert.False(t, aa.WasCorrect)
	assert.Equal(t, 1, a.Correct, "a wrong answer leaves the tally alone")

	stored, err := s.GetAttempt(a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Correct)

	answers, err := s.ListAttemptAnswers(a.ID)
	require.NoError(t, err)
	require.Len(t, answers, 2)
	assert.Equal(t, qs[0].ID, answers[0].QuestionID)
	assert.Equal(t, qs[1].ID, answers[1].QuestionID)
}

func TestGradeAndRecordWithGuard(t *testing.T) {
	s := newTestStore(t)
	setID := seedSet(t, s, csharpBasics())
	e := quiz.NewEngine(s, quiz.WithAnswerGuard(quiz.NewMemoryGuard()))
	u, _ := e.GetOrCreateUser("dave", "")
	a, err := e.StartAttempt(u.ID, setID, 0)
	require.NoError(t, err)
	qs, err := e.GetRandomizedQuestions(setID, 0)
	require.NoError(t, err)

	_, err = e.GradeAndRecord(a, qs[0], correctOption(t, qs[0]))
	require.NoError(t, err)
	_, err = e.GradeAndRecord(a, qs[0], correctOption(t, qs[0]))
	assert.ErrorIs(t, err, quiz.ErrAlreadyAnswered)
	assert.Equal(t, 1, a.Correct)

	answers, err := s.ListAttemptAnswers(a.ID)
	require.NoError(t, err)
	assert.Len(t, answers, 1)

	// The same question in a new attempt is fresh.
	b, err := e.StartAttempt(u.ID, setID, 0)
	require.NoError(t, err)
	_, err = e.GradeAndRecord(b, qs[0], correctOption(t, qs[0]))
	assert.NoError(t, err)
}

func TestStartAttemptClearsStaleMarks(t *testing.T) {
	s := newTestStore(t)
	setID := seedSet(t, s, csharpBasics())
	qs, err := s.ListQuestions(setID)
	require.NoError(t, err)

	// Marks left by an earlier database whose attempt ids overlap this one.
	guard := quiz.NewMemoryGuard()
	for _, q := range qs {
		_, err := guard.MarkAnswered(1, q.ID)
		require.NoError(t, err)
	}

	e := quiz.NewEngine(s, quiz.WithAnswerGuard(guard))
	u, err := e.GetOrCreateUser("ivy", "")
	require.NoError(t, err)
	a, err := e.StartAttempt(u.ID, setID, 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), a.ID)

	for _, q := range qs {
		_, err := e.GradeAndRecord(a, q, correctOption(t, q))
		require.NoError(t, err)
	}
	assert.Equal(t, 3, a.Correct)
}

// forgetFailGuard fails Forget and otherwise behaves like a MemoryGuard.
type forgetFailGuard struct{ *quiz.MemoryGuard }

func (forgetFailGuard) Forget(int64) error { return errBoom }

func TestStartAttemptGuardError(t *testing.T) {
	s := newTestStore(t)
	setID := seedSet(t, s, csharpBasics())
	e := quiz.NewEngine(s, quiz.WithAnswerGuard(forgetFailGuard{quiz.NewMemoryGuard()}))
	u, err := e.GetOrCreateUser("jack", "")
	require.NoError(t, err)

	a, err := e.StartAttempt(u.ID, setID, 0)
	assert.ErrorIs(t, err, errBoom)
	assert.Nil(t, a)
}

func TestGradeAndRecordRetryAfterStoreError(t *testing.T) {
	s := newTestStore(t)
	setID := seedSet(t, s, csharpBasics())
	fs := &failingStore{Store: s, failOn: "CreateAttemptAnswer"}
	e := quiz.NewEngine(fs, quiz.WithAnswerGuard(quiz.NewMemoryGuard()))
	u, err := e.GetOrCreateUser("kim", "")
	require.NoError(t, err)
	a, err := e.StartAttempt(u.ID, setID, 0)
	require.NoError(t, err)
	qs, err := e.GetRandomizedQuestions(setID, 0)
	require.NoError(t, err)

	_, err = e.GradeAndRecord(a, qs[0], correctOption(t, qs[0]))
	require.ErrorIs(t, err, errBoom)

	fs.failOn = ""
	aa, err := e.GradeAndRecord(a, qs[0], correctOption(t, qs[0]))
	require.NoError(t, err, "a failed insert leaves the question open")
	assert.True(t, aa.WasCorrect)
	assert.Equal(t, 1, a.Correct)

	answers, err := s.ListAttemptAnswers(a.ID)
	require.NoError(t, err)
	assert.Len(t, answers, 1)

	_, err = e.GradeAndRecord(a, qs[0], correctOption(t, qs[0]))
	assert.ErrorIs(t, err, quiz.ErrAlreadyAnswered)
}

func TestCompleteAttempt(t *testing.T) {
	s := newTestStore(t)
	setID := seedSet(t, s, csharpBasics())
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	e := quiz.NewEngine(s, quiz.WithClock(func() time.Time { return now }))
	u, _ := e.GetOrCreateUser("erin", "")
	a, err := e.StartAttempt(u.ID, setID, 0)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	require.NoError(t, e.CompleteAttempt(a))
	require.NotNil(t, a.CompletedAt)
	first := *a.CompletedAt
	assert.True(t, first.Equal(now))

	now = now.Add(time.Hour)
	require.NoError(t, e.CompleteAttempt(a))
	assert.True(t, a.CompletedAt.Equal(first), "completion time is kept")

	stored, err := s.GetAttempt(a.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.CompletedAt)
	assert.True(t, stored.CompletedAt.Equal(first))
	assert.False(t, stored.CompletedAt.Before(stored.StartedAt))
}

func TestFullRunAllCorrect(t *testing.T) {
	s := newTestStore(t)
	setID := seedSet(t, s, csharpBasics())
	e := quiz.NewEngine(s, quiz.WithSeed(99))
	u, err := e.GetOrCreateUser("frank", "Frank")
	require.NoError(t, err)

	a, err := e.StartAttempt(u.ID, setID, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, a.TotalQuestions)

	qs, err := e.GetRandomizedQuestions(setID, 10)
	require.NoError(t, err)
	require.Len(t, qs, 3)
	for _, q := range qs {
		_, err := e.GradeAndRecord(a, q, correctOption(t, q))
		require.NoError(t, err)
	}
	require.NoError(t, e.CompleteAttempt(a))

	assert.Equal(t, 3, a.Correct)
	assert.Equal(t, "100.0", fmt.Sprintf("%.1f", a.Percent()))

	recent, err := e.RecentAttempts(u.ID, setID, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, a.ID, recent[0].ID)
	assert.Equal(t, 3, recent[0].Correct)
	assert.True(t, recent[0].Completed())
}

func TestRecentAttemptsOrderAndLimit(t *testing.T) {
	s := newTestStore(t)
	setID := seedSet(t, s, csharpBasics())
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e := quiz.NewEngine(s, quiz.WithClock(func() time.Time { return now }))
	u, _ := e.GetOrCreateUser("gina", "")

	var ids []int64
	for i := 0; i < 12; i++ {
		now = now.Add(time.Minute)
		a, err := e.StartAttempt(u.ID, setID, 0)
		require.NoError(t, err)
		ids = append(ids, a.ID)
	}

	recent, err := e.RecentAttempts(u.ID, setID, 10)
	require.NoError(t, err)
	require.Len(t, recent, 10)
	assert.Equal(t, ids[11], recent[0].ID)
	assert.Equal(t, ids[2], recent[9].ID)
}

// failingStore wraps a real store and fails the selected operation.
type failingStore struct {
	quiz.Store
	failOn string
}

var errBoom = errors.New("boom")

func (f *failingStore) CreateUser(u model.User) (int64, error) {
	if f.failOn == "CreateUser" {
		return 0, errBoom
	}
	return f.Store.CreateUser(u)
}

func (f *failingStore) CountQuestions(id int64) (int, error) {
	if f.failOn == "CountQuestions" {
		return 0, errBoom
	}
	return f.Store.CountQuestions(id)
}

func (f *failingStore) ListQuestions(id int64) ([]model.Question, error) {
	if f.failOn == "ListQuestions" {
		return nil, errBoom
	}
	return f.Store.ListQuestions(id)
}

func (f *failingStore) CreateAttemptAnswer(aa model.AttemptAnswer) (int64, error) {
	if f.failOn == "CreateAttemptAnswer" {
		return 0, errBoom
	}
	return f.Store.CreateAttemptAnswer(aa)
}

func (f *failingStore) SaveAttempt(a model.Attempt) error {
	if f.failOn == "SaveAttempt" {
		return errBoom
	}
	return f.Store.SaveAttempt(a)
}

func TestEngineStoreErrors(t *testing.T) {
	s := newTestStore(t)
	setID := seedSet(t, s, csharpBasics())
	base := quiz.NewEngine(s)
	u, err := base.GetOrCreateUser("henry", "")
	require.NoError(t, err)
	qs, err := s.ListQuestions(setID)
	require.NoError(t, err)

	t.Run("create user", func(t *testing.T) {
		e := quiz.NewEngine(&failingStore{Store: s, failOn: "CreateUser"})
		_, err := e.GetOrCreateUser("new-user", "")
		assert.ErrorIs(t, err, errBoom)
	})
	t.Run("count questions", func(t *testing.T) {
		e := quiz.NewEngine(&failingStore{Store: s, failOn: "CountQuestions"})
		_, err := e.StartAttempt(u.ID, setID, 0)
		assert.ErrorIs(t, err, errBoom)
	})
	t.Run("list questions", func(t *testing.T) {
		e := quiz.NewEngine(&failingStore{Store: s, failOn: "ListQuestions"})
		_, err := e.GetRandomizedQuestions(setID, 0)
		assert.ErrorIs(t, err, errBoom)
		_, err = e.GetQuizSetBySlug("csharp-basics")
		assert.ErrorIs(t, err, errBoom)
	})
	t.Run("create answer", func(t *testing.T) {
		e := quiz.NewEngine(&failingStore{Store: s, failOn: "CreateAttemptAnswer"})
		a, err := e.StartAttempt(u.ID, setID, 0)
		require.NoError(t, err)
		_, err = e.GradeAndRecord(a, qs[0], correctOption(t, qs[0]))
		assert.ErrorIs(t, err, errBoom)
		assert.Zero(t, a.Correct)
	})
	t.Run("save attempt", func(t *testing.T) {
		e := quiz.NewEngine(&failingStore{Store: s, failOn: "SaveAttempt"})
		a, err := e.StartAttempt(u.ID, setID, 0)
		require.NoError(t, err)
		_, err = e.GradeAndRecord(a, qs[0], correctOption(t, qs[0]))
		assert.ErrorIs(t, err, errBoom)
		assert.Zero(t, a.Correct)
		assert.ErrorIs(t, e.CompleteAttempt(a), errBoom)
		assert.False(t, a.Completed())
	})
}
