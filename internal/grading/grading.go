// Package grading turns one submitted answer into an updated card, a
// graded-answer event and updated daily statistics, atomically.
package grading

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/recall/internal/model"
	"github.com/pavelanni/recall/internal/progress"
	"github.com/pavelanni/recall/internal/scheduler"
	"github.com/pavelanni/recall/internal/store"
)

const maxAttempts = 3

// Request is one answer submission.
type Request struct {
	LearnerID      string
	QuestionID     string
	ChoiceID       string
	SessionID      string
	Position       int
	IdempotencyKey string
}

// Result is the outcome of grading. Replayed is set when the idempotency key
// matched an earlier submission and nothing was written.
type Result struct {
	Correct         bool
	CorrectChoiceID string
	Explanation     string
	Card            model.Card
	Replayed        bool
}

// Answer converts the result to its wire shape.
func (r Result) Answer() model.AnswerResult {
	return model.AnswerResult{
		IsCorrect:       r.Correct,
		CorrectChoiceID: r.CorrectChoiceID,
		Explanation:     r.Explanation,
		Streak:          r.Card.Streak,
		EaseFactor:      r.Card.EaseFactor,
		NextReviewAt:    r.Card.NextReviewAt,
	}
}

// Service grades answers. It keeps no per-call state.
type Service struct {
	store    *store.Store
	sched    *scheduler.Scheduler
	progress *progress.Aggregator
}

// New creates a grading Service.
func New(s *store.Store, sched *scheduler.Scheduler, agg *progress.Aggregator) *Service {
	return &Service{store: s, sched: sched, progress: agg}
}

// Grade validates and scores an answer, reschedules the card and records the
// event. Either everything is written or nothing is. A concurrent update of
// the same card is retried against the fresh card.
func (s *Service) Grade(ctx context.Context, req Request, now time.Time) (Result, error) {
	if req.LearnerID == "" || req.QuestionID == "" {
		return Result{}, fmt.Errorf("learner and question are required: %w", model.ErrValidation)
	}

	var res Result
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		res, err = s.gradeOnce(ctx, req, now)
		if !errors.Is(err, model.ErrConflict) {
			break
		}
		slog.Warn("card changed during grading, retrying",
			"learner", req.LearnerID, "question_id", req.QuestionID, "attempt", attempt)
	}
	if err != nil {
		return Result{}, err
	}

	slog.Debug("answer graded",
		"learner", req.LearnerID,
		"question_id", req.QuestionID,
		"correct", res.Correct,
		"streak", res.Card.Streak,
		"interval_days", res.Card.IntervalDays,
		"replayed", res.Replayed,
	)
	return res, nil
}

func (s *Service) gradeOnce(ctx context.Context, req Request, now time.Time) (Result, error) {
	var res Result
	err := s.store.InTx(ctx, func(tx *store.Tx) error {
		q, err := tx.Question(ctx, req.QuestionID)
		if err != nil {
			return fmt.Errorf("get question: %w", err)
		}
		if q == nil {
			return fmt.Errorf("question %q: %w", req.QuestionID, model.ErrNotFound)
		}
		res.CorrectChoiceID = q.CorrectChoiceID
		res.Explanation = q.Explanation

		if req.IdempotencyKey != "" {
			prior, err := tx.AnswerByKey(ctx, req.LearnerID, req.IdempotencyKey)
			if err != nil {
				return fmt.Errorf("look up idempotency key: %w", err)
			}
			// A replay returns the stored result whatever choice the retry carries.
			if prior != nil {
				if prior.QuestionID != q.ID {
					return fmt.Errorf("idempotency key %q belongs to question %q, not %q: %w",
						req.IdempotencyKey, prior.QuestionID, q.ID, model.ErrValidation)
				}
				res.Correct = prior.Correct
				res.Card = prior.Card
				res.Replayed = true
				return nil
			}
		}

		if !q.HasChoice(req.ChoiceID) {
			return fmt.Errorf("choice %q of question %q: %w", req.ChoiceID, q.ID, model.ErrInvalidChoice)
		}
		res.Correct = req.ChoiceID == q.CorrectChoiceID

		prev, err := tx.Card(ctx, req.LearnerID, q.ID)
		if err != nil {
			return fmt.Errorf("get card: %w", err)
		}
		next, err := s.sched.Schedule(prev, res.Correct, now)
		if err != nil {
			return err
		}
		next.LearnerID = req.LearnerID
		next.QuestionID = q.ID
		if res.Card, err = tx.PutCard(ctx, next); err != nil {
			return err
		}

		ev := model.GradedAnswer{
			ID:             uuid.NewString(),
			LearnerID:      req.LearnerID,
			QuestionID:     q.ID,
			ChoiceID:       req.ChoiceID,
			Correct:        res.Correct,
			Card:           res.Card,
			AnsweredAt:     now,
			Day:            s.progress.Day(now),
			SessionID:      req.SessionID,
			Position:       req.Position,
			IdempotencyKey: req.IdempotencyKey,
		}
		if err := tx.InsertAnswer(ctx, ev); err != nil {
			return err
		}
		return s.progress.Fold(ctx, tx, ev)
	})
	return res, err
}
