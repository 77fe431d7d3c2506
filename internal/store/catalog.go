package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/pavelanni/recall/internal/model"
)

const questionColumns = `id, video_id, text, choices, correct_choice_id, explanation, difficulty, created_at`

// ImportCatalog stores videos and their questions in one transaction.
// Questions are immutable: ids already present are skipped and counted.
// Entries must be validated by the caller.
func (s *Store) ImportCatalog(ctx context.Context, entries []model.CatalogEntry) (model.ImportResult, error) {
	var res model.ImportResult
	err := s.InTx(ctx, func(tx *Tx) error {
		for _, e := range entries {
			r, err := tx.tx.ExecContext(ctx,
				`INSERT INTO videos (id, title, created_at) VALUES (?, ?, ?)
				 ON CONFLICT(id) DO NOTHING`,
				e.Video.ID, e.Video.Title, e.Video.CreatedAt.UTC(),
			)
			if err != nil {
				return fmt.Errorf("insert video %q: %w", e.Video.ID, err)
			}
			if n, _ := r.RowsAffected(); n > 0 {
				res.Videos++
			}

			for _, q := range e.Questions {
				choices, err := json.Marshal(q.Choices)
				if err != nil {
					return fmt.Errorf("marshal choices of %q: %w", q.ID, err)
				}
				r, err := tx.tx.ExecContext(ctx,
					`INSERT INTO questions (`+questionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
					 ON CONFLICT(id) DO NOTHING`,
					q.ID, q.VideoID, q.Text, string(choices), q.CorrectChoiceID, q.Explanation, q.Difficulty, q.CreatedAt.UTC(),
				)
				if err != nil {
					return fmt.Errorf("insert question %q: %w", q.ID, err)
				}
				if n, _ := r.RowsAffected(); n > 0 {
					res.Questions++
				} else {
					res.Skipped++
				}
			}
		}
		return nil
	})
	if err != nil {
		return model.ImportResult{}, err
	}
	slog.Debug("catalog imported", "videos", res.Videos, "questions", res.Questions, "skipped", res.Skipped)
	return res, nil
}

// ListQuestions returns the whole catalog ordered by creation time.
func (s *Store) ListQuestions(ctx context.Context) ([]model.Question, error) {
	return s.queryQuestions(ctx, `SELECT `+questionColumns+` FROM questions ORDER BY created_at, id`)
}

// ListVideoQuestions returns the questions of one video.
func (s *Store) ListVideoQuestions(ctx context.Context, videoID string) ([]model.Question, error) {
	return s.queryQuestions(ctx, `SELECT `+questionColumns+` FROM questions WHERE video_id = ? ORDER BY created_at, id`, videoID)
}

func (s *Store) queryQuestions(ctx context.Context, query string, args ...any) ([]model.Question, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var questions []model.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// GetQuestion returns a question by id, or nil if it does not exist.
func (s *Store) GetQuestion(ctx context.Context, id string) (*model.Question, error) {
	return getQuestion(ctx, s.db, id)
}

// Question reads a question inside the transaction.
func (t *Tx) Question(ctx context.Context, id string) (*model.Question, error) {
	return getQuestion(ctx, t.tx, id)
}

func getQuestion(ctx context.Context, q querier, id string) (*model.Question, error) {
	row := q.QueryRowContext(ctx, `SELECT `+questionColumns+` FROM questions WHERE id = ?`, id)
	question, err := scanQuestion(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &question, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanQuestion(sc scanner) (model.Question, error) {
	var q model.Question
	var choices string
	if err := sc.Scan(&q.ID, &q.VideoID, &q.Text, &choices, &q.CorrectChoiceID, &q.Explanation, &q.Difficulty, &q.CreatedAt); err != nil {
		return q, err
	}
	if err := json.Unmarshal([]byte(choices), &q.Choices); err != nil {
		return q, fmt.Errorf("decode choices of %q: %w", q.ID, err)
	}
	return q, nil
}

// GetVideo returns a video by id, or nil if it does not exist.
func (s *Store) GetVideo(ctx context.Context, id string) (*model.Video, error) {
	var v model.Video
	err := s.db.QueryRowContext(ctx, `SELECT id, title, created_at FROM videos WHERE id = ?`, id).
		Scan(&v.ID, &v.Title, &v.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// VideoCount returns the number of videos in the catalog.
func (s *Store) VideoCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM videos`).Scan(&count)
	return count, err
}

// QuestionCount returns the number of questions in the catalog.
func (s *Store) QuestionCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions`).Scan(&count)
	return count, err
}
