package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Store is the SQLite-backed persistence for the catalog, cards, the
// graded-answer log and the derived daily statistics.
type Store struct {
	db *sql.DB
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection serializes writers and keeps ":memory:" a single database.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS videos (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS questions (
		id TEXT PRIMARY KEY,
		video_id TEXT NOT NULL,
		text TEXT NOT NULL,
		choices TEXT NOT NULL,
		correct_choice_id TEXT NOT NULL,
		explanation TEXT NOT NULL DEFAULT '',
		difficulty TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (video_id) REFERENCES videos(id)
	);

	CREATE TABLE IF NOT EXISTS cards (
		learner_id TEXT NOT NULL,
		question_id TEXT NOT NULL,
		ease_factor REAL NOT NULL,
		interval_days INTEGER NOT NULL,
		streak INTEGER NOT NULL DEFAULT 0,
		review_count INTEGER NOT NULL DEFAULT 0,
		times_correct INTEGER NOT NULL DEFAULT 0,
		times_incorrect INTEGER NOT NULL DEFAULT 0,
		next_review_at DATETIME NOT NULL,
		last_reviewed_at DATETIME,
		version INTEGER NOT NULL DEFAULT 1,
		PRIMARY KEY (learner_id, question_id),
		FOREIGN KEY (question_id) REFERENCES questions(id)
	);

	CREATE TABLE IF NOT EXISTS graded_answers (
		id TEXT PRIMARY KEY,
		learner_id TEXT NOT NULL,
		question_id TEXT NOT NULL,
		choice_id TEXT NOT NULL,
		correct INTEGER NOT NULL,
		card TEXT NOT NULL,
		answered_at DATETIME NOT NULL,
		day TEXT NOT NULL,
		session_id TEXT NOT NULL DEFAULT '',
		position INTEGER NOT NULL DEFAULT 0,
		idempotency_key TEXT,
		FOREIGN KEY (question_id) REFERENCES questions(id)
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_graded_answers_key ON graded_answers(learner_id, idempotency_key);
	CREATE INDEX IF NOT EXISTS idx_graded_answers_learner_day ON graded_answers(learner_id, day);
	CREATE INDEX IF NOT EXISTS idx_graded_answers_session ON graded_answers(learner_id, session_id);

	CREATE TABLE IF NOT EXISTS session_completions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		learner_id TEXT NOT NULL,
		session_id TEXT NOT NULL DEFAULT '',
		day TEXT NOT NULL,
		reported_answered INTEGER NOT NULL,
		reported_correct INTEGER NOT NULL,
		top_up_answered INTEGER NOT NULL DEFAULT 0,
		top_up_correct INTEGER NOT NULL DEFAULT 0,
		counted INTEGER NOT NULL DEFAULT 1,
		completed_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS daily_stats (
		learner_id TEXT NOT NULL,
		day TEXT NOT NULL,
		questions_answered INTEGER NOT NULL DEFAULT 0,
		questions_correct INTEGER NOT NULL DEFAULT 0,
		session_count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (learner_id, day)
	);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Tx is a unit of work. Reads and writes made through it commit together.
type Tx struct {
	tx *sql.Tx
}

// InTx runs fn inside a transaction, committing when fn returns nil.
func (s *Store) InTx(ctx context.Context, fn func(tx *Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&Tx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
