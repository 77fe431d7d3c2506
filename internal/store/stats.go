package store

import (
	"context"
	"fmt"

	"github.com/pavelanni/recall/internal/model"
)

// AddDailyStat adds the given deltas to a learner's counters for one day,
// creating the row when needed.
func (t *Tx) AddDailyStat(ctx context.Context, learnerID, day string, answered, correct, sessions int) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO daily_stats (learner_id, day, questions_answered, questions_correct, session_count)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(learner_id, day) DO UPDATE SET
			questions_answered = questions_answered + excluded.questions_answered,
			questions_correct = questions_correct + excluded.questions_correct,
			session_count = session_count + excluded.session_count`,
		learnerID, day, answered, correct, sessions,
	)
	if err != nil {
		return fmt.Errorf("update daily stat %s/%s: %w", learnerID, day, err)
	}
	return nil
}

// InsertCompletion appends a session-completion event.
func (t *Tx) InsertCompletion(ctx context.Context, c model.SessionCompletion) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO session_completions
			(learner_id, session_id, day, reported_answered, reported_correct, top_up_answered, top_up_correct, counted, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.LearnerID, c.SessionID, c.Day, c.ReportedAnswers, c.ReportedCorrect, c.TopUpAnswers, c.TopUpCorrect,
		c.Counted, c.CompletedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert session completion: %w", err)
	}
	return nil
}

// ListDailyStats returns every stored day of a learner, oldest first.
func (s *Store) ListDailyStats(ctx context.Context, learnerID string) ([]model.DailyStat, error) {
	return s.queryDailyStats(ctx,
		`SELECT day, questions_answered, questions_correct, session_count FROM daily_stats
		 WHERE learner_id = ? ORDER BY day`, learnerID)
}

// RecentDailyStats returns at most limit stored days, newest first.
func (s *Store) RecentDailyStats(ctx context.Context, learnerID string, limit int) ([]model.DailyStat, error) {
	return s.queryDailyStats(ctx,
		`SELECT day, questions_answered, questions_correct, session_count FROM daily_stats
		 WHERE learner_id = ? ORDER BY day DESC LIMIT ?`, learnerID, limit)
}

func (s *Store) queryDailyStats(ctx context.Context, query string, args ...any) ([]model.DailyStat, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var stats []model.DailyStat
	for rows.Next() {
		var d model.DailyStat
		if err := rows.Scan(&d.Date, &d.QuestionsAnswered, &d.QuestionsCorrect, &d.SessionCount); err != nil {
			return nil, err
		}
		stats = append(stats, d.WithAccuracy())
	}
	return stats, rows.Err()
}

// ListCompletions returns a learner's session completions, oldest first.
func (s *Store) ListCompletions(ctx context.Context, learnerID string) ([]model.SessionCompletion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT learner_id, session_id, day, reported_answered, reported_correct, top_up_answered, top_up_correct, counted, completed_at
		 FROM session_completions WHERE learner_id = ? ORDER BY id`, learnerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.SessionCompletion
	for rows.Next() {
		var c model.SessionCompletion
		if err := rows.Scan(&c.LearnerID, &c.SessionID, &c.Day, &c.ReportedAnswers, &c.ReportedCorrect,
			&c.TopUpAnswers, &c.TopUpCorrect, &c.Counted, &c.CompletedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// RebuildDailyStats discards a learner's daily counters and recomputes them
// from the graded-answer log and the session completions.
func (s *Store) RebuildDailyStats(ctx context.Context, learnerID string) error {
	return s.InTx(ctx, func(tx *Tx) error {
		if _, err := tx.tx.ExecContext(ctx, `DELETE FROM daily_stats WHERE learner_id = ?`, learnerID); err != nil {
			return fmt.Errorf("clear daily stats: %w", err)
		}
		if _, err := tx.tx.ExecContext(ctx,
			`INSERT INTO daily_stats (learner_id, day, questions_answered, questions_correct, session_count)
			 SELECT learner_id, day, COUNT(*), SUM(correct), 0 FROM graded_answers
			 WHERE learner_id = ? GROUP BY day`, learnerID,
		); err != nil {
			return fmt.Errorf("fold graded answers: %w", err)
		}
		if _, err := tx.tx.ExecContext(ctx,
			`INSERT INTO daily_stats (learner_id, day, questions_answered, questions_correct, session_count)
			 SELECT learner_id, day, SUM(top_up_answered), SUM(top_up_correct), SUM(counted) FROM session_completions
			 WHERE learner_id = ? GROUP BY day
			 ON CONFLICT(learner_id, day) DO UPDATE SET
				questions_answered = questions_answered + excluded.questions_answered,
				questions_correct = questions_correct + excluded.questions_correct,
				session_count = session_count + excluded.session_count`, learnerID,
		); err != nil {
			return fmt.Errorf("fold session completions: %w", err)
		}
		return nil
	})
}

// ListLearners returns every learner that has graded answers or completions.
func (s *Store) ListLearners(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT learner_id FROM graded_answers UNION SELECT learner_id FROM session_completions ORDER BY 1`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var learners []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		learners = append(learners, id)
	}
	return learners, rows.Err()
}

// CompletionTotals sums what earlier completions of a session already added
// to the daily counters and how many such completions exist.
func (t *Tx) CompletionTotals(ctx context.Context, learnerID, sessionID string) (answered, correct, count int, err error) {
	err = t.tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(top_up_answered), 0), COALESCE(SUM(top_up_correct), 0), COUNT(*)
		 FROM session_completions WHERE learner_id = ? AND session_id = ?`,
		learnerID, sessionID,
	).Scan(&answered, &correct, &count)
	return answered, correct, count, err
}
