// Package progress folds graded answers and session completions into daily
// statistics and derives streaks and mastery from them.
package progress

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pavelanni/recall/internal/model"
	"github.com/pavelanni/recall/internal/store"
)

// Config tunes the aggregator. Zero values produce the noted defaults.
type Config struct {
	MasteryStreak int            // zero → 3
	MasteryEase   float64        // zero → 2.5
	Location      *time.Location // nil → UTC; defines the learner-local day
	CalendarDays  int            // zero → 30
	DailyLimit    int            // zero → 30
}

func (c Config) withDefaults() Config {
	if c.MasteryStreak == 0 {
		c.MasteryStreak = 3
	}
	if c.MasteryEase == 0 {
		c.MasteryEase = 2.5
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
	if c.CalendarDays == 0 {
		c.CalendarDays = 30
	}
	if c.DailyLimit == 0 {
		c.DailyLimit = 30
	}
	return c
}

// Aggregator owns the daily statistics of every learner.
type Aggregator struct {
	store *store.Store
	cfg   Config
}

// New creates an Aggregator over s.
func New(s *store.Store, cfg Config) *Aggregator {
	return &Aggregator{store: s, cfg: cfg.withDefaults()}
}

// Day returns the learner-local calendar day of t.
func (a *Aggregator) Day(t time.Time) string {
	return t.In(a.cfg.Location).Format(model.DayLayout)
}

// Mastered reports whether a card counts as durably recalled.
func (a *Aggregator) Mastered(c model.Card) bool {
	return !c.IsNew() && c.Streak >= a.cfg.MasteryStreak && c.EaseFactor >= a.cfg.MasteryEase
}

// Fold applies one graded answer to its day's counters. It runs inside the
// grading transaction so statistics reflect the answer immediately.
func (a *Aggregator) Fold(ctx context.Context, tx *store.Tx, ev model.GradedAnswer) error {
	correct := 0
	if ev.Correct {
		correct = 1
	}
	return tx.AddDailyStat(ctx, ev.LearnerID, ev.Day, 1, correct, 0)
}

// CompleteSession records a finished session. Graded answers were already
// folded one by one, so only the part of the reported counts that the log of
// this session does not cover is added. Without a session id nothing can be
// matched against the log and only the session count advances.
func (a *Aggregator) CompleteSession(ctx context.Context, learnerID string, req model.SessionComplete, now time.Time) (model.SessionSummary, error) {
	if err := model.Validate(req); err != nil {
		return model.SessionSummary{}, err
	}

	c := model.SessionCompletion{
		LearnerID:       learnerID,
		SessionID:       req.SessionID,
		Day:             a.Day(now),
		ReportedAnswers: req.QuestionsAnswered,
		ReportedCorrect: req.QuestionsCorrect,
		Counted:         true,
		CompletedAt:     now,
	}
	err := a.store.InTx(ctx, func(tx *store.Tx) error {
		if req.SessionID != "" {
			graded, gradedCorrect, err := tx.SessionTotals(ctx, learnerID, req.SessionID)
			if err != nil {
				return fmt.Errorf("session totals: %w", err)
			}
			prevAnswered, prevCorrect, prevCount, err := tx.CompletionTotals(ctx, learnerID, req.SessionID)
			if err != nil {
				return fmt.Errorf("completion totals: %w", err)
			}
			c.Counted = prevCount == 0
			c.TopUpAnswers = max(0, req.QuestionsAnswered-graded-prevAnswered)
			c.TopUpCorrect = min(c.TopUpAnswers, max(0, req.QuestionsCorrect-gradedCorrect-prevCorrect))
		}
		if err := tx.InsertCompletion(ctx, c); err != nil {
			return err
		}
		sessions := 0
		if c.Counted {
			sessions = 1
		}
		return tx.AddDailyStat(ctx, learnerID, c.Day, c.TopUpAnswers, c.TopUpCorrect, sessions)
	})
	if err != nil {
		return model.SessionSummary{}, err
	}
	slog.Info("session completed",
		"learner", learnerID,
		"session_id", req.SessionID,
		"answered", req.QuestionsAnswered,
		"correct", req.QuestionsCorrect,
		"top_up", c.TopUpAnswers,
	)

	streak, err := a.currentStreak(ctx, learnerID, now)
	if err != nil {
		return model.SessionSummary{}, err
	}
	return model.SessionSummary{
		QuestionsAnswered: req.QuestionsAnswered,
		QuestionsCorrect:  req.QuestionsCorrect,
		Accuracy:          model.Percent(req.QuestionsCorrect, req.QuestionsAnswered),
		Streak:            streak,
	}, nil
}

// Overview summarizes the learner's standing against the whole catalog.
func (a *Aggregator) Overview(ctx context.Context, learnerID string, now time.Time) (model.Overview, error) {
	var ov model.Overview
	var err error
	if ov.TotalVideos, err = a.store.VideoCount(ctx); err != nil {
		return ov, fmt.Errorf("count videos: %w", err)
	}
	if ov.TotalQuestions, err = a.store.QuestionCount(ctx); err != nil {
		return ov, fmt.Errorf("count questions: %w", err)
	}
	cards, err := a.store.ListCards(ctx, learnerID)
	if err != nil {
		return ov, fmt.Errorf("list cards: %w", err)
	}

	mastered := 0
	for _, c := range cards {
		if !c.IsNew() {
			ov.QuestionsSeen++
		}
		if a.Mastered(c) {
			mastered++
		}
		ov.TotalCorrect += c.TimesCorrect
		ov.TotalIncorrect += c.TimesIncorrect
	}
	ov.MasteryPercentage = model.Percent(mastered, ov.TotalQuestions)

	if ov.CurrentStreak, err = a.currentStreak(ctx, learnerID, now); err != nil {
		return ov, err
	}
	return ov, nil
}

// VideoMastery reports mastery restricted to the questions of one video.
func (a *Aggregator) VideoMastery(ctx context.Context, learnerID, videoID string) (model.VideoMastery, error) {
	v, err := a.store.GetVideo(ctx, videoID)
	if err != nil {
		return model.VideoMastery{}, fmt.Errorf("get video: %w", err)
	}
	if v == nil {
		return model.VideoMastery{}, fmt.Errorf("video %q: %w", videoID, model.ErrNotFound)
	}
	questions, err := a.store.ListVideoQuestions(ctx, videoID)
	if err != nil {
		return model.VideoMastery{}, fmt.Errorf("list video questions: %w", err)
	}
	cards, err := a.store.ListCards(ctx, learnerID)
	if err != nil {
		return model.VideoMastery{}, fmt.Errorf("list cards: %w", err)
	}
	byQuestion := make(map[string]model.Card, len(cards))
	for _, c := range cards {
		byQuestion[c.QuestionID] = c
	}

	vm := model.VideoMastery{VideoID: v.ID, Title: v.Title, TotalQuestions: len(questions)}
	for _, q := range questions {
		c, ok := byQuestion[q.ID]
		if !ok {
			continue
		}
		if !c.IsNew() {
			vm.QuestionsSeen++
		}
		if a.Mastered(c) {
			vm.QuestionsMastered++
		}
	}
	vm.MasteryPercentage = model.Percent(vm.QuestionsMastered, vm.TotalQuestions)
	return vm, nil
}

// Daily returns the most recent stored days, newest first.
func (a *Aggregator) Daily(ctx context.Context, learnerID string) ([]model.DailyStat, error) {
	stats, err := a.store.RecentDailyStats(ctx, learnerID, a.cfg.DailyLimit)
	if err != nil {
		return nil, fmt.Errorf("recent daily stats: %w", err)
	}
	if stats == nil {
		stats = []model.DailyStat{}
	}
	return stats, nil
}

// Streak returns current and longest streaks with a dense calendar of the
// last CalendarDays days, oldest first, ending today.
func (a *Aggregator) Streak(ctx context.Context, learnerID string, now time.Time) (model.StreakInfo, error) {
	history, err := a.store.ListDailyStats(ctx, learnerID)
	if err != nil {
		return model.StreakInfo{}, fmt.Errorf("list daily stats: %w", err)
	}
	today := a.Day(now)
	return model.StreakInfo{
		CurrentStreak: CurrentStreak(history, today),
		LongestStreak: LongestStreak(history),
		Calendar:      Calendar(history, today, a.cfg.CalendarDays),
	}, nil
}

// Rebuild recomputes the learner's daily statistics from the event logs.
func (a *Aggregator) Rebuild(ctx context.Context, learnerID string) error {
	if err := a.store.RebuildDailyStats(ctx, learnerID); err != nil {
		return fmt.Errorf("rebuild daily stats for %s: %w", learnerID, err)
	}
	return nil
}

func (a *Aggregator) currentStreak(ctx context.Context, learnerID string, now time.Time) (int, error) {
	history, err := a.store.ListDailyStats(ctx, learnerID)
	if err != nil {
		return 0, fmt.Errorf("list daily stats: %w", err)
	}
	return CurrentStreak(history, a.Day(now)), nil
}
