package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/pavelanni/recall/internal/model"
)

const answerColumns = `id, learner_id, question_id, choice_id, correct, card, answered_at, day,
	session_id, position, idempotency_key`

// InsertAnswer appends a graded-answer event.
func (t *Tx) InsertAnswer(ctx context.Context, a model.GradedAnswer) error {
	snapshot, err := json.Marshal(a.Card)
	if err != nil {
		return fmt.Errorf("marshal card snapshot: %w", err)
	}
	var key any
	if a.IdempotencyKey != "" {
		key = a.IdempotencyKey
	}
	_, err = t.tx.ExecContext(ctx,
		`INSERT INTO graded_answers (`+answerColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.LearnerID, a.QuestionID, a.ChoiceID, a.Correct, string(snapshot), a.AnsweredAt.UTC(), a.Day,
		a.SessionID, a.Position, key,
	)
	if err != nil {
		return fmt.Errorf("insert graded answer: %w", err)
	}
	return nil
}

// AnswerByKey returns the learner's event recorded under an idempotency
// key, or nil if there is none.
func (t *Tx) AnswerByKey(ctx context.Context, learnerID, key string) (*model.GradedAnswer, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT `+answerColumns+` FROM graded_answers WHERE learner_id = ? AND idempotency_key = ?`,
		learnerID, key,
	)
	a, err := scanAnswer(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// SessionTotals returns how many answers of a session were graded and how
// many of them were correct.
func (t *Tx) SessionTotals(ctx context.Context, learnerID, sessionID string) (answered, correct int, err error) {
	err = t.tx.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(correct), 0) FROM graded_answers
		 WHERE learner_id = ? AND session_id = ?`,
		learnerID, sessionID,
	).Scan(&answered, &correct)
	return answered, correct, err
}

// ListAnswers returns a learner's graded-answer log in the order it was written.
func (s *Store) ListAnswers(ctx context.Context, learnerID string) ([]model.GradedAnswer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+answerColumns+` FROM graded_answers WHERE learner_id = ? ORDER BY rowid`, learnerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var answers []model.GradedAnswer
	for rows.Next() {
		a, err := scanAnswer(rows)
		if err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

func scanAnswer(sc scanner) (model.GradedAnswer, error) {
	var a model.GradedAnswer
	var snapshot string
	var key sql.NullString
	err := sc.Scan(&a.ID, &a.LearnerID, &a.QuestionID, &a.ChoiceID, &a.Correct, &snapshot, &a.AnsweredAt, &a.Day,
		&a.SessionID, &a.Position, &key)
	if err != nil {
		return a, err
	}
	a.IdempotencyKey = key.String
	if err := json.Unmarshal([]byte(snapshot), &a.Card); err != nil {
		return a, fmt.Errorf("decode card snapshot of %s: %w", a.ID, err)
	}
	return a, nil
}
