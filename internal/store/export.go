package store

import (
	"context"
	"fmt"
	"time"

	"github.com/pavelanni/recall/internal/model"
)

// ExportLearner gathers a learner's cards, event logs and daily statistics.
func (s *Store) ExportLearner(ctx context.Context, learnerID string, now time.Time) (model.LearnerExport, error) {
	exp := model.LearnerExport{LearnerID: learnerID, ExportedAt: now}

	var err error
	if exp.Cards, err = s.ListCards(ctx, learnerID); err != nil {
		return exp, fmt.Errorf("list cards: %w", err)
	}
	if exp.Answers, err = s.ListAnswers(ctx, learnerID); err != nil {
		return exp, fmt.Errorf("list answers: %w", err)
	}
	if exp.Completions, err = s.ListCompletions(ctx, learnerID); err != nil {
		return exp, fmt.Errorf("list completions: %w", err)
	}
	if exp.DailyStats, err = s.ListDailyStats(ctx, learnerID); err != nil {
		return exp, fmt.Errorf("list daily stats: %w", err)
	}
	return exp, nil
}
