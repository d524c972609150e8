// Package console drives interactive quiz sessions over a line-based reader
// and writer.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/pavelanni/quizzer/internal/i18n"
	"github.com/pavelanni/quizzer/internal/model"
	"github.com/pavelanni/quizzer/internal/quiz"
)

const (
	firstOptionLetter = 'A'
	quitCommand       = "q"
	skipCommand       = "s"

	// DefaultRecentAttempts is how many past attempts are listed after a quiz.
	DefaultRecentAttempts = 10

	attemptTimeLayout = "2006-01-02 15:04:05Z"
)

// errInputClosed ends the session when the reader is exhausted.
var errInputClosed = errors.New("input closed")

// Session is one interactive run for a single user.
type Session struct {
	engine *quiz.Engine
	in     *bufio.Scanner
	out    io.Writer
	log    *slog.Logger

	username       string
	displayName    string
	limit          int
	recentAttempts int
}

// Option configures a Session.
type Option func(*Session)

// WithUsername skips the username prompt.
func WithUsername(username string) Option {
	return func(s *Session) { s.username = strings.TrimSpace(username) }
}

// WithDisplayName sets the display name used when a new user is created.
func WithDisplayName(name string) Option { return func(s *Session) { s.displayName = name } }

// WithLimit fixes the question limit and skips the limit prompt. limit <= 0
// keeps the prompt.
func WithLimit(limit int) Option { return func(s *Session) { s.limit = limit } }

// WithRecentAttempts sets how many past attempts are listed after a quiz.
func WithRecentAttempts(n int) Option { return func(s *Session) { s.recentAttempts = n } }

// WithLogger sets the logger for session events.
func WithLogger(l *slog.Logger) Option { return func(s *Session) { s.log = l } }

// New creates a session reading answers from in and writing prompts to out.
func New(engine *quiz.Engine, in io.Reader, out io.Writer, opts ...Option) *Session {
	s := &Session{
		engine:         engine,
		in:             bufio.NewScanner(in),
		out:            out,
		log:            slog.Default(),
		recentAttempts: DefaultRecentAttempts,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Run executes the session until the user quits, the input ends or ctx is
// canceled. Messages are localized with the localizer stored in ctx.
func (s *Session) Run(ctx context.Context) error {
	s.println()
	s.println(i18n.T(ctx, "Banner"))
	s.println()

	if err := s.run(ctx); err != nil && !errors.Is(err, errInputClosed) {
		return err
	}
	s.println()
	s.println(i18n.T(ctx, "Goodbye"))
	return nil
}

func (s *Session) run(ctx context.Context) error {
	username := s.username
	if username == "" {
		s.print(i18n.T(ctx, "EnterUsername"))
		var err error
		if username, err = s.readNonEmpty(ctx); err != nil {
			return err
		}
	}
	user, err := s.engine.GetOrCreateUser(username, s.displayName)
	if err != nil {
		return fmt.Errorf("get user %q: %w", username, err)
	}
	s.log.Debug("session user", "user_id", user.ID, "username", user.Username)
	s.println(i18n.Td(ctx, "Welcome", map[string]any{"Name": displayName(user)}))

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		set, err := s.chooseQuizSet(ctx)
		if err != nil || set == nil {
			return err
		}

		limit := s.limit
		if limit <= 0 {
			s.print(i18n.T(ctx, "LimitPrompt"))
			line, err := s.readLine()
			if err != nil {
				return err
			}
			if n, err := strconv.Atoi(line); err == nil && n > 0 {
				limit = n
			}
		}

		if err := s.takeQuiz(ctx, user, *set, limit); err != nil {
			return err
		}
	}
}

// chooseQuizSet lists the sets until a valid number is entered. It returns
// nil when the user quits.
func (s *Session) chooseQuizSet(ctx context.Context) (*model.QuizSet, error) {
	for {
		sets, err := s.engine.ListQuizSets()
		if err != nil {
			return nil, fmt.Errorf("list quiz sets: %w", err)
		}
		s.println()
		if len(sets) == 0 {
			s.println(i18n.T(ctx, "NoQuizSets"))
			return nil, nil
		}
		s.println(i18n.T(ctx, "AvailableQuizSets"))
		for i, qs := range sets {
			s.println(i18n.Td(ctx, "QuizSetLine", map[string]any{"N": i + 1, "Title": qs.Title, "Slug": qs.Slug}))
		}

		s.println()
		s.print(i18n.T(ctx, "ChooseQuiz"))
		choice, err := s.readLine()
		if err != nil {
			return nil, err
		}
		if strings.EqualFold(choice, quitCommand) {
			return nil, nil
		}
		idx, err := strconv.Atoi(choice)
		if err != nil || idx < 1 || idx > len(sets) {
			s.println(i18n.T(ctx, "InvalidSelection"))
			continue
		}
		return &sets[idx-1], nil
	}
}

func (s *Session) takeQuiz(ctx context.Context, user *model.User, set model.QuizSet, limit int) error {
	attempt, err := s.engine.StartAttempt(user.ID, set.ID, limit)
	if errors.Is(err, quiz.ErrNoQuestionsAvailable) {
		s.println(i18n.T(ctx, "NoQuestions"))
		return nil
	}
	if err != nil {
		return fmt.Errorf("start attempt: %w", err)
	}
	questions, err := s.engine.GetRandomizedQuestions(set.ID, attempt.TotalQuestions)
	if err != nil {
		return fmt.Errorf("load questions: %w", err)
	}
	s.log.Info("attempt started", "attempt_id", attempt.ID, "quiz", set.Slug, "questions", len(questions))

	s.println()
	s.println(i18n.Td(ctx, "StartingQuiz", map[string]any{"Title": set.Title, "Count": len(questions)}))
	s.println()

	var inputErr error
	for i, q := range questions {
		inputErr = s.askQuestion(ctx, attempt, i+1, q)
		if inputErr != nil {
			break
		}
	}
	if inputErr != nil && !errors.Is(inputErr, errInputClosed) {
		return inputErr
	}

	if err := s.engine.CompleteAttempt(attempt); err != nil {
		return fmt.Errorf("complete attempt: %w", err)
	}
	s.log.Info("attempt completed", "attempt_id", attempt.ID, "correct", attempt.Correct, "total", attempt.TotalQuestions)

	s.println(i18n.Td(ctx, "Finished", map[string]any{
		"Correct": attempt.Correct,
		"Total":   attempt.TotalQuestions,
		"Percent": formatPercent(attempt.Percent()),
	}))
	s.println()

	if err := s.printHistory(ctx, user.ID, set.ID); err != nil {
		return err
	}
	return inputErr
}

func (s *Session) askQuestion(ctx context.Context, attempt *model.Attempt, n int, q model.Question) error {
	s.println(i18n.Td(ctx, "QuestionLine", map[string]any{"N": n, "Text": q.Text}))
	byLetter := make(map[rune]model.AnswerOption, len(q.Options))
	for i, opt := range q.Options {
		letter := firstOptionLetter + rune(i)
		byLetter[letter] = opt
		s.printf("   %c) %s\n", letter, opt.Text)
	}

	var selected *model.AnswerOption
	for selected == nil {
		s.print(i18n.Td(ctx, "AnswerPrompt", map[string]any{"Letters": promptLetters(len(q.Options))}))
		ans, err := s.readLine()
		if err != nil {
			return err
		}
		if ans == "" {
			continue
		}
		if strings.EqualFold(ans, skipCommand) {
			break
		}
		letter := []rune(strings.ToUpper(ans))[0]
		if opt, ok := byLetter[letter]; ok {
			selected = &opt
		}
	}

	if selected == nil {
		s.println(i18n.T(ctx, "Skipped"))
		s.println()
		return nil
	}

	aa, err := s.engine.GradeAndRecord(attempt, q, *selected)
	switch {
	case errors.Is(err, quiz.ErrAlreadyAnswered):
		s.println(i18n.T(ctx, "AlreadyAnswered"))
		s.println(i18n.T(ctx, "Skipped"))
	case err != nil:
		return fmt.Errorf("grade answer: %w", err)
	case aa.WasCorrect:
		s.println(i18n.T(ctx, "Correct"))
	default:
		s.println(i18n.T(ctx, "Incorrect"))
	}
	s.println()
	return nil
}

func (s *Session) printHistory(ctx context.Context, userID, quizSetID int64) error {
	recent, err := s.engine.RecentAttempts(userID, quizSetID, s.recentAttempts)
	if err != nil {
		return fmt.Errorf("recent attempts: %w", err)
	}
	if len(recent) == 0 {
		return nil
	}
	s.println(i18n.Tp(ctx, "LastAttempts", len(recent)))
	for _, a := range recent {
		s.println(i18n.Td(ctx, "AttemptLine", map[string]any{
			"StartedAt": a.StartedAt.UTC().Format(attemptTimeLayout),
			"Correct":   a.Correct,
			"Total":     a.TotalQuestions,
			"Percent":   formatPercent(a.Percent()),
		}))
	}
	sum := quiz.Summarize(recent)
	s.println(i18n.Td(ctx, "AverageOverLast", map[string]any{
		"Count":   sum.Count,
		"Percent": formatPercent(sum.AveragePercent),
	}))
	s.println()
	return nil
}

func (s *Session) readLine() (string, error) {
	if !s.in.Scan() {
		if err := s.in.Err(); err != nil {
			return "", fmt.Errorf("read input: %w", err)
		}
		return "", errInputClosed
	}
	return strings.TrimSpace(s.in.Text()), nil
}

func (s *Session) readNonEmpty(ctx context.Context) (string, error) {
	for {
		line, err := s.readLine()
		if err != nil || line != "" {
			return line, err
		}
		s.print(i18n.T(ctx, "EnterValue"))
	}
}

func (s *Session) print(msg string)                  { fmt.Fprint(s.out, msg) }
func (s *Session) println(msg ...any)                { fmt.Fprintln(s.out, msg...) }
func (s *Session) printf(format string, args ...any) { fmt.Fprintf(s.out, format, args...) }

// promptLetters lists up to three option letters, e.g. "A,B,C".
func promptLetters(n int) string {
	n = min(max(n, 1), 3)
	letters := make([]string, n)
	for i := range letters {
		letters[i] = string(firstOptionLetter + rune(i))
	}
	return strings.Join(letters, ",")
}

func formatPercent(p float64) string {
	return strconv.FormatFloat(p, 'f', 1, 64)
}

func displayName(u *model.User) string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}
