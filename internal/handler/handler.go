// Package handler serves the quiz and progress JSON API.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/recall/internal/composer"
	"github.com/pavelanni/recall/internal/grading"
	appI18n "github.com/pavelanni/recall/internal/i18n"
	"github.com/pavelanni/recall/internal/model"
	"github.com/pavelanni/recall/internal/progress"
	"github.com/pavelanni/recall/internal/store"
)

const (
	maxBodyBytes    = 1 << 20
	maxCatalogBytes = 16 << 20
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store    *store.Store
	grader   *grading.Service
	progress *progress.Aggregator
	config   model.QuizConfig
	limits   composer.Limits
	limiter  *rateLimiter
	now      func() time.Time
}

// Option configures a Handler.
type Option func(*Handler)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

// New creates a new Handler.
func New(s *store.Store, g *grading.Service, agg *progress.Aggregator, cfg model.QuizConfig, opts ...Option) (*Handler, error) {
	backfill, err := composer.ParseBackfill(cfg.Backfill)
	if err != nil {
		return nil, err
	}
	limits := composer.Limits{MaxReview: cfg.MaxReview, MaxNew: cfg.MaxNew, Backfill: backfill}
	if err := limits.Validate(); err != nil {
		return nil, err
	}
	if cfg.DefaultLearner == "" {
		cfg.DefaultLearner = "default-learner"
	}
	h := &Handler{
		store:    s,
		grader:   g,
		progress: agg,
		config:   cfg,
		limits:   limits,
		limiter:  newRateLimiter(cfg.RateLimit, cfg.RateBurst),
		now:      time.Now,
	}
	for _, o := range opts {
		o(h)
	}
	return h, nil
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/api/health", h.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(h.learnerMiddleware)

		r.Get("/api/quiz/session", h.handleSession)
		r.Get("/api/progress/overview", h.handleOverview)
		r.Get("/api/progress/streak", h.handleStreak)
		r.Get("/api/progress/daily", h.handleDaily)
		r.Get("/api/progress/videos/{videoID}", h.handleVideoMastery)

		r.Group(func(r chi.Router) {
			r.Use(h.rateLimitMiddleware)
			r.Post("/api/quiz/answer", h.handleAnswer)
			r.Post("/api/quiz/session/complete", h.handleComplete)
			r.Post("/api/catalog", h.handleCatalog)
		})
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		slog.Error("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// errBadRequest marks a body that could not be decoded.
var errBadRequest = errors.New("malformed request body")

func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%v: %w", err, errBadRequest)
	}
	return nil
}

// writeError maps err onto a status code and a localized message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	var (
		status int
		code   string
		msg    string
	)
	switch {
	case errors.Is(err, model.ErrNotFound):
		status, code, msg = http.StatusNotFound, "not_found", appI18n.T(ctx, "ErrNotFound")
	case errors.Is(err, model.ErrInvalidChoice):
		status, code, msg = http.StatusUnprocessableEntity, "invalid_choice", appI18n.T(ctx, "ErrInvalidChoice")
	case errors.Is(err, model.ErrValidation):
		status, code = http.StatusBadRequest, "validation"
		msg = appI18n.Td(ctx, "ErrValidation", map[string]any{"Detail": err.Error()})
	case errors.Is(err, errBadRequest):
		status, code, msg = http.StatusBadRequest, "bad_request", appI18n.T(ctx, "ErrBadRequest")
	case errors.Is(err, model.ErrConcurrentTransition), errors.Is(err, model.ErrConflict):
		status, code, msg = http.StatusConflict, "concurrent_transition", appI18n.T(ctx, "ErrConcurrentTransition")
	default:
		status, code, msg = http.StatusInternalServerError, "internal", appI18n.T(ctx, "ErrInternal")
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, model.ErrorResponse{Error: code, Message: msg})
}
