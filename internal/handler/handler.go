// Package handler serves the read-only JSON API over quiz sets and attempt
// history.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/quizzer/internal/i18n"
	"github.com/pavelanni/quizzer/internal/model"
	"github.com/pavelanni/quizzer/internal/quiz"
	"github.com/pavelanni/quizzer/internal/store"
)

// defaultAttemptLimit matches the history shown after a console quiz.
const defaultAttemptLimit = 10

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store  *store.Store
	engine *quiz.Engine
}

// New creates a new Handler.
func New(s *store.Store, e *quiz.Engine) *Handler {
	return &Handler{store: s, engine: e}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/quizsets", h.handleListQuizSets)
		r.Get("/quizsets/{slug}", h.handleGetQuizSet)
		r.Get("/users/{username}/attempts", h.handleUserAttempts)
	})
}

type quizSetSummary struct {
	ID            int64  `json:"id"`
	Slug          string `json:"slug"`
	Title         string `json:"title"`
	Description   string `json:"description,omitempty"`
	QuestionCount int    `json:"question_count"`
}

// publicQuestion omits answer keys.
type publicQuestion struct {
	ID      int64          `json:"id"`
	Text    string         `json:"text"`
	Options []publicOption `json:"options"`
}

type publicOption struct {
	ID   int64  `json:"id"`
	Text string `json:"text"`
}

type quizSetDetail struct {
	ID          int64            `json:"id"`
	Slug        string           `json:"slug"`
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	Questions   []publicQuestion `json:"questions"`
}

type attemptsResponse struct {
	Username string          `json:"username"`
	QuizSlug string          `json:"quiz_slug"`
	Attempts []model.Attempt `json:"attempts"`
	Summary  quiz.Summary    `json:"summary"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleListQuizSets(w http.ResponseWriter, r *http.Request) {
	sets, err := h.engine.ListQuizSets()
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	out := make([]quizSetSummary, 0, len(sets))
	for _, qs := range sets {
		n, err := h.store.CountQuestions(qs.ID)
		if err != nil {
			h.internalError(w, r, err)
			return
		}
		out = append(out, quizSetSummary{
			ID:            qs.ID,
			Slug:          qs.Slug,
			Title:         qs.Title,
			Description:   qs.Description,
			QuestionCount: n,
		})
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGetQuizSet(w http.ResponseWriter, r *http.Request) {
	set, err := h.engine.GetQuizSetBySlug(chi.URLParam(r, "slug"))
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	if set == nil {
		respondError(w, r, http.StatusNotFound, "QuizSetNotFound")
		return
	}

	out := quizSetDetail{
		ID:          set.ID,
		Slug:        set.Slug,
		Title:       set.Title,
		Description: set.Description,
		Questions:   make([]publicQuestion, 0, len(set.Questions)),
	}
	for _, q := range set.Questions {
		pq := publicQuestion{ID: q.ID, Text: q.Text, Options: make([]publicOption, 0, len(q.Options))}
		for _, o := range q.Options {
			pq.Options = append(pq.Options, publicOption{ID: o.ID, Text: o.Text})
		}
		out.Questions = append(out.Questions, pq)
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handler) handleUserAttempts(w http.ResponseWriter, r *http.Request) {
	slug := r.URL.Query().Get("quiz")
	if slug == "" {
		respondError(w, r, http.StatusBadRequest, "MissingQuizParam")
		return
	}
	limit := defaultAttemptLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			respondError(w, r, http.StatusBadRequest, "InvalidLimit")
			return
		}
		limit = n
	}

	username := chi.URLParam(r, "username")
	user, err := h.store.GetUserByUsername(username)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	if user == nil {
		respondError(w, r, http.StatusNotFound, "UserNotFound")
		return
	}
	set, err := h.store.GetQuizSetBySlug(slug)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	if set == nil {
		respondError(w, r, http.StatusNotFound, "QuizSetNotFound")
		return
	}

	attempts, err := h.engine.RecentAttempts(user.ID, set.ID, limit)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	if attempts == nil {
		attempts = []model.Attempt{}
	}
	respondJSON(w, http.StatusOK, attemptsResponse{
		Username: user.Username,
		QuizSlug: set.Slug,
		Attempts: attempts,
		Summary:  quiz.Summarize(attempts),
	})
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, err error) {
	slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	respondError(w, r, http.StatusInternalServerError, "InternalError")
}

func respondError(w http.ResponseWriter, r *http.Request, status int, msgID string) {
	respondJSON(w, status, map[string]string{"error": i18n.T(r.Context(), msgID)})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}
