package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pavelanni/recall/internal/model"
)

var t0 = time.Date(2025, 4, 1, 9, 30, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testQuestion(id, videoID string, created time.Time) model.Question {
	return model.Question{
		ID:              id,
		VideoID:         videoID,
		Text:            "What about " + id + "?",
		Choices:         []model.Choice{{ID: "a", Text: "yes"}, {ID: "b", Text: "no"}, {ID: "c", Text: "maybe"}},
		CorrectChoiceID: "b",
		Explanation:     "because " + id,
		Difficulty:      model.DifficultyMedium,
		CreatedAt:       created,
	}
}

func seedCatalog(t *testing.T, s *Store) {
	t.Helper()
	_, err := s.ImportCatalog(context.Background(), []model.CatalogEntry{
		{
			Video:     model.Video{ID: "v1", Title: "Intro", CreatedAt: t0},
			Questions: []model.Question{testQuestion("q1", "v1", t0), testQuestion("q2", "v1", t0.Add(time.Minute))},
		},
		{
			Video:     model.Video{ID: "v2", Title: "Advanced", CreatedAt: t0.Add(time.Hour)},
			Questions: []model.Question{testQuestion("q3", "v2", t0.Add(time.Hour))},
		},
	})
	if err != nil {
		t.Fatalf("seedCatalog: %v", err)
	}
}

func TestImportCatalog(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entries := []model.CatalogEntry{{
		Video:     model.Video{ID: "v1", Title: "Intro", CreatedAt: t0},
		Questions: []model.Question{testQuestion("q1", "v1", t0), testQuestion("q2", "v1", t0)},
	}}
	res, err := s.ImportCatalog(ctx, entries)
	if err != nil {
		t.Fatalf("ImportCatalog: %v", err)
	}
	if res.Videos != 1 || res.Questions != 2 || res.Skipped != 0 {
		t.Errorf("first import = %+v, want 1 video, 2 questions", res)
	}

	// Questions are immutable: a second import with changed text is ignored.
	entries[0].Questions[0].Text = "changed"
	res, err = s.ImportCatalog(ctx, entries)
	if err != nil {
		t.Fatalf("ImportCatalog again: %v", err)
	}
	if res.Videos != 0 || res.Questions != 0 || res.Skipped != 2 {
		t.Errorf("second import = %+v, want everything skipped", res)
	}

	q, err := s.GetQuestion(ctx, "q1")
	if err != nil {
		t.Fatalf("GetQuestion: %v", err)
	}
	if q == nil {
		t.Fatal("expected question q1")
	}
	if q.Text != "What about q1?" {
		t.Errorf("expected original text, got %q", q.Text)
	}
	if len(q.Choices) != 3 || q.Choices[1].ID != "b" || q.Choices[1].Text != "no" {
		t.Errorf("choices not round-tripped: %+v", q.Choices)
	}
	if q.Difficulty != model.DifficultyMedium {
		t.Errorf("expected difficulty medium, got %q", q.Difficulty)
	}
	if !q.CreatedAt.Equal(t0) {
		t.Errorf("expected created_at %v, got %v", t0, q.CreatedAt)
	}
}

func TestQuestionQueries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	count, err := s.QuestionCount(ctx)
	if err != nil {
		t.Fatalf("QuestionCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 questions, got %d", count)
	}

	seedCatalog(t, s)

	tests := []struct {
		name    string
		fetch   func() ([]model.Question, error)
		wantIDs []string
	}{
		{"all", func() ([]model.Question, error) { return s.ListQuestions(ctx) }, []string{"q1", "q2", "q3"}},
		{"video v1", func() ([]model.Question, error) { return s.ListVideoQuestions(ctx, "v1") }, []string{"q1", "q2"}},
		{"video v2", func() ([]model.Question, error) { return s.ListVideoQuestions(ctx, "v2") }, []string{"q3"}},
		{"unknown video", func() ([]model.Question, error) { return s.ListVideoQuestions(ctx, "nope") }, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qs, err := tt.fetch()
			if err != nil {
				t.Fatalf("fetch: %v", err)
			}
			if len(qs) != len(tt.wantIDs) {
				t.Fatalf("expected %d questions, got %d", len(tt.wantIDs), len(qs))
			}
			for i, q := range qs {
				if q.ID != tt.wantIDs[i] {
					t.Errorf("position %d: expected %s, got %s", i, tt.wantIDs[i], q.ID)
				}
			}
		})
	}

	missing, err := s.GetQuestion(ctx, "nope")
	if err != nil {
		t.Fatalf("GetQuestion: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for unknown question, got %+v", missing)
	}

	videos, err := s.VideoCount(ctx)
	if err != nil {
		t.Fatalf("VideoCount: %v", err)
	}
	if videos != 2 {
		t.Errorf("expected 2 videos, got %d", videos)
	}

	v, err := s.GetVideo(ctx, "v2")
	if err != nil {
		t.Fatalf("GetVideo: %v", err)
	}
	if v == nil || v.Title != "Advanced" {
		t.Errorf("unexpected video %+v", v)
	}
}

func TestPutCardVersioning(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedCatalog(t, s)

	last := t0
	card := model.Card{
		LearnerID:      "alice",
		QuestionID:     "q1",
		EaseFactor:     2.5,
		IntervalDays:   1,
		Streak:         1,
		ReviewCount:    1,
		TimesCorrect:   1,
		NextReviewAt:   t0.Add(24 * time.Hour),
		LastReviewedAt: &last,
	}

	var stored model.Card
	err := s.InTx(ctx, func(tx *Tx) error {
		var err error
		stored, err = tx.PutCard(ctx, card)
		return err
	})
	if err != nil {
		t.Fatalf("insert card: %v", err)
	}
	if stored.Version != 1 {
		t.Errorf("expected version 1, got %d", stored.Version)
	}

	// A second insert of a brand-new card conflicts.
	err = s.InTx(ctx, func(tx *Tx) error {
		_, err := tx.PutCard(ctx, card)
		return err
	})
	if !errors.Is(err, model.ErrConflict) {
		t.Errorf("expected ErrConflict on duplicate insert, got %v", err)
	}

	// Update at the current version succeeds, a stale version conflicts.
	stored.Streak = 2
	stored.IntervalDays = 3
	err = s.InTx(ctx, func(tx *Tx) error {
		_, err := tx.PutCard(ctx, stored)
		return err
	})
	if err != nil {
		t.Fatalf("update card: %v", err)
	}
	err = s.InTx(ctx, func(tx *Tx) error {
		_, err := tx.PutCard(ctx, stored)
		return err
	})
	if !errors.Is(err, model.ErrConflict) {
		t.Errorf("expected ErrConflict on stale update, got %v", err)
	}

	got, err := s.GetCard(ctx, "alice", "q1")
	if err != nil {
		t.Fatalf("GetCard: %v", err)
	}
	if got == nil {
		t.Fatal("expected card")
	}
	if got.Version != 2 || got.Streak != 2 || got.IntervalDays != 3 {
		t.Errorf("unexpected card %+v", got)
	}
	if got.LastReviewedAt == nil || !got.LastReviewedAt.Equal(t0) {
		t.Errorf("expected last_reviewed_at %v, got %v", t0, got.LastReviewedAt)
	}

	none, err := s.GetCard(ctx, "bob", "q1")
	if err != nil {
		t.Fatalf("GetCard: %v", err)
	}
	if none != nil {
		t.Errorf("expected no card for bob, got %+v", none)
	}
}

func TestRolledBackTransactionLeavesNoTrace(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedCatalog(t, s)

	boom := errors.New("boom")
	err := s.InTx(ctx, func(tx *Tx) error {
		if _, err := tx.PutCard(ctx, model.Card{LearnerID: "alice", QuestionID: "q1", EaseFactor: 2.5, NextReviewAt: t0}); err != nil {
			return err
		}
		if err := tx.AddDailyStat(ctx, "alice", "2025-04-01", 1, 1, 0); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	cards, err := s.ListCards(ctx, "alice")
	if err != nil {
		t.Fatalf("ListCards: %v", err)
	}
	if len(cards) != 0 {
		t.Errorf("expected no cards after rollback, got %d", len(cards))
	}
	stats, err := s.ListDailyStats(ctx, "alice")
	if err != nil {
		t.Fatalf("ListDailyStats: %v", err)
	}
	if len(stats) != 0 {
		t.Errorf("expected no stats after rollback, got %d", len(stats))
	}
}

func insertAnswer(t *testing.T, s *Store, a model.GradedAnswer) {
	t.Helper()
	err := s.InTx(context.Background(), func(tx *Tx) error {
		if err := tx.InsertAnswer(context.Background(), a); err != nil {
			return err
		}
		correct := 0
		if a.Correct {
			correct = 1
		}
		return tx.AddDailyStat(context.Background(), a.LearnerID, a.Day, 1, correct, 0)
	})
	if err != nil {
		t.Fatalf("insertAnswer: %v", err)
	}
}

func TestAnswerLog(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedCatalog(t, s)

	insertAnswer(t, s, model.GradedAnswer{
		ID: "e1", LearnerID: "alice", QuestionID: "q1", ChoiceID: "b", Correct: true,
		Card: model.Card{QuestionID: "q1", Streak: 1, EaseFactor: 2.5}, AnsweredAt: t0, Day: "2025-04-01",
		SessionID: "s1", Position: 0, IdempotencyKey: "s1:0",
	})
	insertAnswer(t, s, model.GradedAnswer{
		ID: "e2", LearnerID: "alice", QuestionID: "q2", ChoiceID: "a", Correct: false,
		AnsweredAt: t0.Add(time.Minute), Day: "2025-04-01", SessionID: "s1", Position: 1,
	})
	insertAnswer(t, s, model.GradedAnswer{
		ID: "e3", LearnerID: "alice", QuestionID: "q3", ChoiceID: "b", Correct: true,
		AnsweredAt: t0.Add(time.Hour), Day: "2025-04-01",
	})

	answers, err := s.ListAnswers(ctx, "alice")
	if err != nil {
		t.Fatalf("ListAnswers: %v", err)
	}
	if len(answers) != 3 {
		t.Fatalf("expected 3 answers, got %d", len(answers))
	}
	if answers[0].ID != "e1" || !answers[0].Correct || answers[0].Card.Streak != 1 {
		t.Errorf("unexpected first answer %+v", answers[0])
	}
	if answers[1].IdempotencyKey != "" {
		t.Errorf("expected empty idempotency key, got %q", answers[1].IdempotencyKey)
	}

	err = s.InTx(ctx, func(tx *Tx) error {
		a, err := tx.AnswerByKey(ctx, "alice", "s1:0")
		if err != nil {
			return err
		}
		if a == nil || a.ID != "e1" {
			t.Errorf("AnswerByKey returned %+v", a)
		}
		if other, err := tx.AnswerByKey(ctx, "bob", "s1:0"); err != nil || other != nil {
			t.Errorf("expected no answer for bob, got %+v, %v", other, err)
		}

		answered, correct, err := tx.SessionTotals(ctx, "alice", "s1")
		if err != nil {
			return err
		}
		if answered != 2 || correct != 1 {
			t.Errorf("SessionTotals = %d/%d, want 2/1", answered, correct)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("InTx: %v", err)
	}

	// The same key cannot be recorded twice for a learner.
	err = s.InTx(ctx, func(tx *Tx) error {
		return tx.InsertAnswer(ctx, model.GradedAnswer{
			ID: "e4", LearnerID: "alice", QuestionID: "q1", ChoiceID: "b",
			AnsweredAt: t0, Day: "2025-04-01", IdempotencyKey: "s1:0",
		})
	})
	if err == nil {
		t.Error("expected unique violation on repeated idempotency key")
	}
}

func TestDailyStatsAndRebuild(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedCatalog(t, s)

	insertAnswer(t, s, model.GradedAnswer{ID: "e1", LearnerID: "alice", QuestionID: "q1", ChoiceID: "b", Correct: true, AnsweredAt: t0, Day: "2025-03-30"})
	insertAnswer(t, s, model.GradedAnswer{ID: "e2", LearnerID: "alice", QuestionID: "q2", ChoiceID: "a", AnsweredAt: t0, Day: "2025-04-01"})
	insertAnswer(t, s, model.GradedAnswer{ID: "e3", LearnerID: "alice", QuestionID: "q3", ChoiceID: "b", Correct: true, AnsweredAt: t0, Day: "2025-04-01"})

	err := s.InTx(ctx, func(tx *Tx) error {
		c := model.SessionCompletion{
			LearnerID: "alice", SessionID: "s9", Day: "2025-04-01",
			ReportedAnswers: 4, ReportedCorrect: 3, TopUpAnswers: 2, TopUpCorrect: 1, Counted: true, CompletedAt: t0,
		}
		if err := tx.InsertCompletion(ctx, c); err != nil {
			return err
		}
		return tx.AddDailyStat(ctx, "alice", c.Day, c.TopUpAnswers, c.TopUpCorrect, 1)
	})
	if err != nil {
		t.Fatalf("complete session: %v", err)
	}

	want := []model.DailyStat{
		{Date: "2025-03-30", QuestionsAnswered: 1, QuestionsCorrect: 1, Accuracy: 100},
		{Date: "2025-04-01", QuestionsAnswered: 4, QuestionsCorrect: 2, SessionCount: 1, Accuracy: 50},
	}
	check := func(label string) {
		t.Helper()
		stats, err := s.ListDailyStats(ctx, "alice")
		if err != nil {
			t.Fatalf("%s: ListDailyStats: %v", label, err)
		}
		if len(stats) != len(want) {
			t.Fatalf("%s: expected %d days, got %d", label, len(want), len(stats))
		}
		for i := range want {
			if stats[i] != want[i] {
				t.Errorf("%s: day %d = %+v, want %+v", label, i, stats[i], want[i])
			}
		}
	}
	check("incremental")

	// Corrupt the cache, then rebuild it from the logs.
	err = s.InTx(ctx, func(tx *Tx) error {
		return tx.AddDailyStat(ctx, "alice", "2025-04-01", 10, 10, 3)
	})
	if err != nil {
		t.Fatalf("corrupt: %v", err)
	}
	if err := s.RebuildDailyStats(ctx, "alice"); err != nil {
		t.Fatalf("RebuildDailyStats: %v", err)
	}
	check("rebuilt")

	recent, err := s.RecentDailyStats(ctx, "alice", 1)
	if err != nil {
		t.Fatalf("RecentDailyStats: %v", err)
	}
	if len(recent) != 1 || recent[0].Date != "2025-04-01" {
		t.Errorf("expected newest day first, got %+v", recent)
	}

	learners, err := s.ListLearners(ctx)
	if err != nil {
		t.Fatalf("ListLearners: %v", err)
	}
	if len(learners) != 1 || learners[0] != "alice" {
		t.Errorf("unexpected learners %v", learners)
	}
}

func TestMetadata(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	hash, err := s.GetImportedFileHash(ctx, "catalog.json")
	if err != nil {
		t.Fatalf("GetImportedFileHash: %v", err)
	}
	if hash != "" {
		t.Errorf("expected empty hash, got %q", hash)
	}

	if err := s.SetImportedFileHash(ctx, "catalog.json", "abc"); err != nil {
		t.Fatalf("SetImportedFileHash: %v", err)
	}
	if err := s.SetImportedFileHash(ctx, "catalog.json", "def"); err != nil {
		t.Fatalf("SetImportedFileHash: %v", err)
	}
	hash, err = s.GetImportedFileHash(ctx, "catalog.json")
	if err != nil {
		t.Fatalf("GetImportedFileHash: %v", err)
	}
	if hash != "def" {
		t.Errorf("expected def, got %q", hash)
	}
}

func TestExportLearner(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedCatalog(t, s)
	insertAnswer(t, s, model.GradedAnswer{ID: "e1", LearnerID: "alice", QuestionID: "q1", ChoiceID: "b", Correct: true, AnsweredAt: t0, Day: "2025-04-01"})

	exp, err := s.ExportLearner(ctx, "alice", t0)
	if err != nil {
		t.Fatalf("ExportLearner: %v", err)
	}
	if exp.LearnerID != "alice" || len(exp.Answers) != 1 || len(exp.DailyStats) != 1 {
		t.Errorf("unexpected export %+v", exp)
	}
	if len(exp.Cards) != 0 || len(exp.Completions) != 0 {
		t.Errorf("expected no cards or completions, got %d/%d", len(exp.Cards), len(exp.Completions))
	}
}
