package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/pavelanni/recall/internal/composer"
	"github.com/pavelanni/recall/internal/grading"
	"github.com/pavelanni/recall/internal/model"
)

// IdempotencyHeader carries the retry key of an answer submission.
const IdempotencyHeader = "Idempotency-Key"

const maxIdempotencyKeyLen = 200

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	learner := learnerID(r)

	cards, err := h.store.ListCards(ctx, learner)
	if err != nil {
		writeError(w, r, fmt.Errorf("list cards: %w", err))
		return
	}
	catalog, err := h.store.ListQuestions(ctx)
	if err != nil {
		writeError(w, r, fmt.Errorf("list questions: %w", err))
		return
	}

	comp, err := composer.Compose(cards, catalog, h.now(), h.limits)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := model.QuizSession{
		SessionID:   uuid.NewString(),
		Questions:   make([]model.QuestionView, 0, len(comp.Questions)),
		Total:       len(comp.Questions),
		ReviewCount: comp.ReviewCount,
		NewCount:    comp.NewCount,
	}
	for _, q := range comp.Questions {
		resp.Questions = append(resp.Questions, q.View())
	}

	slog.Info("session composed",
		"learner", learner,
		"session_id", resp.SessionID,
		"review", resp.ReviewCount,
		"new", resp.NewCount,
	)
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req model.AnswerSubmit
	if err := decodeJSON(w, r, maxBodyBytes, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := model.Validate(req); err != nil {
		writeError(w, r, err)
		return
	}
	key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	if len(key) > maxIdempotencyKeyLen {
		writeError(w, r, fmt.Errorf("idempotency key too long: %w", model.ErrValidation))
		return
	}

	res, err := h.grader.Grade(r.Context(), grading.Request{
		LearnerID:      learnerID(r),
		QuestionID:     req.QuestionID,
		ChoiceID:       req.ChosenChoiceID,
		SessionID:      req.SessionID,
		Position:       req.Position,
		IdempotencyKey: key,
	}, h.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res.Answer())
}

func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request) {
	var req model.SessionComplete
	if err := decodeJSON(w, r, maxBodyBytes, &req); err != nil {
		writeError(w, r, err)
		return
	}
	summary, err := h.progress.CompleteSession(r.Context(), learnerID(r), req, h.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
