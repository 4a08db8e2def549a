package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/fairyhunter13/ai-interview-pipeline/internal/config"
	"github.com/fairyhunter13/ai-interview-pipeline/internal/domain"
	"github.com/fairyhunter13/ai-interview-pipeline/internal/usecase"
)

// BundleFinder loads a finalized bundle from durable storage.
type BundleFinder interface {
	GetBySessionID(ctx domain.Context, sessionID string) (domain.InterviewBundle, error)
}

// BundleCache is a read-through cache in front of the bundle store.
type BundleCache interface {
	Get(ctx domain.Context, sessionID string) (domain.InterviewBundle, error)
	Set(ctx domain.Context, b domain.InterviewBundle) error
}

// Server aggregates handler dependencies.
type Server struct {
	Cfg        config.Config
	Interviews *usecase.Orchestrator
	Results    BundleFinder
	Cache      BundleCache
	DBCheck    func(ctx context.Context) error
	RedisCheck func(ctx context.Context) error
}

// NewServer constructs an HTTP server with all handlers and checks wired.
// Results and Cache may be nil; result lookups then only see live sessions.
func NewServer(cfg config.Config, interviews *usecase.Orchestrator, results BundleFinder, cache BundleCache, dbCheck, redisCheck func(context.Context) error) *Server {
	return &Server{Cfg: cfg, Interviews: interviews, Results: results, Cache: cache, DBCheck: dbCheck, RedisCheck: redisCheck}
}

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() { vld = validator.New() })
	return vld
}

// acceptsJSON rejects requests that explicitly refuse JSON responses.
func acceptsJSON(w http.ResponseWriter, r *http.Request) bool {
	a := r.Header.Get("Accept")
	if a == "" || a == "*/*" || strings.Contains(a, "application/json") {
		return true
	}
	writeJSON(w, http.StatusNotAcceptable, errorEnvelope{Error: apiError{
		Code: "INVALID_ARGUMENT", Message: "not acceptable", Details: map[string]any{"accept": a},
	}})
	return false
}

func decodeValidated(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, r, fmt.Errorf("%w: invalid json", domain.ErrInvalidArgument), nil)
		return false
	}
	if err := getValidator().Struct(dst); err != nil {
		verrs := map[string]string{}
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			for _, fe := range ve {
				verrs[strings.ToLower(fe.Field())] = fe.Tag()
			}
		}
		writeError(w, r, fmt.Errorf("%w: validation failed", domain.ErrInvalidArgument), verrs)
		return false
	}
	return true
}

// CreateInterviewHandler starts a new interview session.
func (s *Server) CreateInterviewHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !acceptsJSON(w, r) {
			return
		}
		var req struct {
			Role string `json:"role" validate:"required,min=2,max=100"`
		}
		if !decodeValidated(w, r, &req) {
			return
		}
		view, err := s.Interviews.Start(r.Context(), req.Role)
		if err != nil {
			writeError(w, r, fmt.Errorf("start interview: %w", err), nil)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"id":              view.ID,
			"role":            view.Role,
			"stage":           view.Stage,
			"phase":           view.Phase,
			"difficulty":      view.Difficulty,
			"question_budget": view.QuestionBudget,
		})
	}
}

// QuestionHandler returns the next question for a session. Re-requesting an
// unanswered question returns the same question.
func (s *Server) QuestionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !acceptsJSON(w, r) {
			return
		}
		id := chi.URLParam(r, "id")
		if id == "" {
			writeError(w, r, fmt.Errorf("%w: id missing", domain.ErrInvalidArgument), nil)
			return
		}
		q, err := s.Interviews.NextQuestion(r.Context(), id)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"question":   q.Text,
			"topic":      q.Topic,
			"stage":      q.Stage,
			"phase":      q.Phase,
			"difficulty": q.Difficulty,
			"number":     q.Number,
			"total":      q.Total,
			"source":     q.Source,
		})
	}
}

// AnswerHandler scores the answer to the pending question.
func (s *Server) AnswerHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !acceptsJSON(w, r) {
			return
		}
		id := chi.URLParam(r, "id")
		if id == "" {
			writeError(w, r, fmt.Errorf("%w: id missing", domain.ErrInvalidArgument), nil)
			return
		}
		var req struct {
			Answer            string `json:"answer" validate:"required,max=20000"`
			ResponseLatencyMS int64  `json:"response_latency_ms" validate:"min=0"`
			AnswerDurationMS  int64  `json:"answer_duration_ms" validate:"min=0"`
		}
		if !decodeValidated(w, r, &req) {
			return
		}
		turn, err := s.Interviews.SubmitAnswer(r.Context(), id, req.Answer,
			time.Duration(req.ResponseLatencyMS)*time.Millisecond,
			time.Duration(req.AnswerDurationMS)*time.Millisecond)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"index":           turn.Index,
			"topic":           turn.Topic,
			"score":           turn.Score,
			"quality":         turn.Quality,
			"strengths":       turn.Strengths,
			"weaknesses":      turn.Weaknesses,
			"suspicious_tags": turn.SuspiciousTags,
			"provenance":      turn.Provenance,
		})
	}
}

// FinalizeHandler ends the interview and returns the full bundle.
func (s *Server) FinalizeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !acceptsJSON(w, r) {
			return
		}
		id := chi.URLParam(r, "id")
		if id == "" {
			writeError(w, r, fmt.Errorf("%w: id missing", domain.ErrInvalidArgument), nil)
			return
		}
		bundle, err := s.Interviews.Finalize(r.Context(), id)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, bundle)
	}
}

// SessionHandler returns a live snapshot of the session.
func (s *Server) SessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !acceptsJSON(w, r) {
			return
		}
		id := chi.URLParam(r, "id")
		if id == "" {
			writeError(w, r, fmt.Errorf("%w: id missing", domain.ErrInvalidArgument), nil)
			return
		}
		view, err := s.Interviews.View(id)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"id":              view.ID,
			"role":            view.Role,
			"stage":           view.Stage,
			"phase":           view.Phase,
			"difficulty":      view.Difficulty,
			"questions_asked": view.QuestionsAsked,
			"question_budget": view.QuestionBudget,
			"terminal":        view.Terminal,
			"finalized":       view.Finalized,
			"calls_used":      view.Budget.CallsUsed,
			"degraded":        view.Budget.Degraded,
		})
	}
}

// ResultHandler returns the finalized bundle for a session: live sessions
// answer from memory, older ones from the cache, the store last.
func (s *Server) ResultHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !acceptsJSON(w, r) {
			return
		}
		id := chi.URLParam(r, "id")
		if id == "" {
			writeError(w, r, fmt.Errorf("%w: id missing", domain.ErrInvalidArgument), nil)
			return
		}
		ctx := r.Context()

		bundle, err := s.Interviews.Bundle(id)
		if err == nil {
			writeJSON(w, http.StatusOK, bundle)
			return
		}
		if errors.Is(err, domain.ErrConflict) {
			writeError(w, r, err, nil)
			return
		}

		if s.Cache != nil {
			if cached, err := s.Cache.Get(ctx, id); err == nil {
				writeJSON(w, http.StatusOK, cached)
				return
			}
		}
		if s.Results == nil {
			writeError(w, r, fmt.Errorf("%w: session %s", domain.ErrNotFound, id), nil)
			return
		}
		stored, err := s.Results.GetBySessionID(ctx, id)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		if s.Cache != nil {
			if err := s.Cache.Set(ctx, stored); err != nil {
				LoggerFrom(r).Warn("bundle cache fill failed", "session_id", id, "error", err)
			}
		}
		writeJSON(w, http.StatusOK, stored)
	}
}

// ReadyzHandler probes the DB and Redis dependencies.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	type check struct {
		Name    string `json:"name"`
		OK      bool   `json:"ok"`
		Details string `json:"details,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		checks := make([]check, 0, 2)
		if s.DBCheck != nil {
			if err := s.DBCheck(ctx); err != nil {
				checks = append(checks, check{Name: "db", OK: false, Details: err.Error()})
			} else {
				checks = append(checks, check{Name: "db", OK: true})
			}
		}
		if s.RedisCheck != nil {
			if err := s.RedisCheck(ctx); err != nil {
				checks = append(checks, check{Name: "redis", OK: false, Details: err.Error()})
			} else {
				checks = append(checks, check{Name: "redis", OK: true})
			}
		}
		ok := true
		for _, c := range checks {
			if !c.OK {
				ok = false
				break
			}
		}
		st := http.StatusOK
		if !ok {
			st = http.StatusServiceUnavailable
		}
		writeJSON(w, st, map[string]any{"checks": checks})
	}
}
