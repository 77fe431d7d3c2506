package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pavelanni/recall/internal/model"
)

const cardColumns = `learner_id, question_id, ease_factor, interval_days, streak, review_count,
	times_correct, times_incorrect, next_review_at, last_reviewed_at, version`

func scanCard(sc scanner) (model.Card, error) {
	var c model.Card
	err := sc.Scan(&c.LearnerID, &c.QuestionID, &c.EaseFactor, &c.IntervalDays, &c.Streak, &c.ReviewCount,
		&c.TimesCorrect, &c.TimesIncorrect, &c.NextReviewAt, &c.LastReviewedAt, &c.Version)
	return c, err
}

// GetCard returns the learner's card for a question, or nil if none exists.
func (s *Store) GetCard(ctx context.Context, learnerID, questionID string) (*model.Card, error) {
	return getCard(ctx, s.db, learnerID, questionID)
}

// Card reads a card inside the transaction.
func (t *Tx) Card(ctx context.Context, learnerID, questionID string) (*model.Card, error) {
	return getCard(ctx, t.tx, learnerID, questionID)
}

func getCard(ctx context.Context, q querier, learnerID, questionID string) (*model.Card, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+cardColumns+` FROM cards WHERE learner_id = ? AND question_id = ?`,
		learnerID, questionID,
	)
	c, err := scanCard(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCards returns every card of a learner.
func (s *Store) ListCards(ctx context.Context, learnerID string) ([]model.Card, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+cardColumns+` FROM cards WHERE learner_id = ? ORDER BY question_id`, learnerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var cards []model.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

// PutCard writes c if the stored version still equals c.Version (zero means
// the card must not exist yet). It returns the card with its new version, or
// an error wrapping model.ErrConflict when another writer got there first.
func (t *Tx) PutCard(ctx context.Context, c model.Card) (model.Card, error) {
	var lastReviewed any
	if c.LastReviewedAt != nil {
		lastReviewed = c.LastReviewedAt.UTC()
	}

	var res sql.Result
	var err error
	if c.Version == 0 {
		res, err = t.tx.ExecContext(ctx,
			`INSERT INTO cards (`+cardColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
			 ON CONFLICT(learner_id, question_id) DO NOTHING`,
			c.LearnerID, c.QuestionID, c.EaseFactor, c.IntervalDays, c.Streak, c.ReviewCount,
			c.TimesCorrect, c.TimesIncorrect, c.NextReviewAt.UTC(), lastReviewed,
		)
	} else {
		res, err = t.tx.ExecContext(ctx,
			`UPDATE cards SET ease_factor = ?, interval_days = ?, streak = ?, review_count = ?,
				times_correct = ?, times_incorrect = ?, next_review_at = ?, last_reviewed_at = ?,
				version = version + 1
			 WHERE learner_id = ? AND question_id = ? AND version = ?`,
			c.EaseFactor, c.IntervalDays, c.Streak, c.ReviewCount,
			c.TimesCorrect, c.TimesIncorrect, c.NextReviewAt.UTC(), lastReviewed,
			c.LearnerID, c.QuestionID, c.Version,
		)
	}
	if err != nil {
		return c, fmt.Errorf("write card %s/%s: %w", c.LearnerID, c.QuestionID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return c, err
	}
	if n == 0 {
		return c, fmt.Errorf("card %s/%s at version %d: %w", c.LearnerID, c.QuestionID, c.Version, model.ErrConflict)
	}
	c.Version++
	return c, nil
}
