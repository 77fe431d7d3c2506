package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validQuestion() Question {
	return Question{
		ID:              "q1",
		VideoID:         "v1",
		Text:            "Which keyword declares a constant?",
		Choices:         []Choice{{ID: "a", Text: "const"}, {ID: "b", Text: "let"}},
		CorrectChoiceID: "a",
		Difficulty:      DifficultyEasy,
	}
}

func TestQuestionValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(q *Question)
		ok     bool
	}{
		{"valid", func(q *Question) {}, true},
		{"four choices", func(q *Question) {
			q.Choices = append(q.Choices, Choice{ID: "c", Text: "var"}, Choice{ID: "d", Text: "def"})
		}, true},
		{"one choice", func(q *Question) { q.Choices = q.Choices[:1] }, false},
		{"five choices", func(q *Question) {
			q.Choices = append(q.Choices, Choice{"c", "c"}, Choice{"d", "d"}, Choice{"e", "e"})
		}, false},
		{"duplicate choice ids", func(q *Question) { q.Choices[1].ID = "a" }, false},
		{"correct choice missing", func(q *Question) { q.CorrectChoiceID = "z" }, false},
		{"empty text", func(q *Question) { q.Text = "" }, false},
		{"unknown difficulty", func(q *Question) { q.Difficulty = "extreme" }, false},
		{"empty choice text", func(q *Question) { q.Choices[0].Text = "" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := validQuestion()
			tt.mutate(&q)
			err := q.Validate()
			if tt.ok {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, ErrValidation)
			}
		})
	}
}

func TestCatalogEntryNormalizeAndValidate(t *testing.T) {
	q := validQuestion()
	q.VideoID = ""
	e := CatalogEntry{Video: Video{ID: "v1"}, Questions: []Question{q}}
	e.Normalize()
	assert.Equal(t, "v1", e.Questions[0].VideoID)
	require.NoError(t, e.Validate())

	e.Questions[0].VideoID = "v2"
	require.ErrorIs(t, e.Validate(), ErrValidation)

	require.ErrorIs(t, CatalogEntry{}.Validate(), ErrValidation)
}

func TestSessionCompleteValidation(t *testing.T) {
	require.NoError(t, Validate(SessionComplete{QuestionsAnswered: 3, QuestionsCorrect: 3}))
	require.NoError(t, Validate(SessionComplete{}))
	require.ErrorIs(t, Validate(SessionComplete{QuestionsAnswered: 2, QuestionsCorrect: 3}), ErrValidation)
	require.ErrorIs(t, Validate(SessionComplete{QuestionsAnswered: -1}), ErrValidation)
}

func TestViewHidesAnswer(t *testing.T) {
	q := validQuestion()
	q.Explanation = "const declares constants."
	v := q.View()
	assert.Equal(t, q.ID, v.ID)
	assert.Equal(t, q.Choices, v.Choices)
}

func TestCardState(t *testing.T) {
	now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	var nilCard *Card
	assert.True(t, nilCard.IsNew())
	assert.False(t, nilCard.IsDue(now))

	c := &Card{NextReviewAt: now.Add(-time.Hour)}
	assert.True(t, c.IsNew())
	assert.False(t, c.IsDue(now), "new cards are never due")

	reviewed := now.Add(-48 * time.Hour)
	c.LastReviewedAt = &reviewed
	assert.True(t, c.IsDue(now))
	c.NextReviewAt = now
	assert.True(t, c.IsDue(now))
	c.NextReviewAt = now.Add(time.Second)
	assert.False(t, c.IsDue(now))
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 0.0, Percent(0, 0))
	assert.Equal(t, 20.0, Percent(2, 10))
	assert.Equal(t, 66.7, Percent(2, 3))
	assert.Equal(t, 33.3, Percent(1, 3))
	assert.Equal(t, 100.0, Percent(4, 4))
	assert.Equal(t, 50.0, DailyStat{QuestionsAnswered: 4, QuestionsCorrect: 2}.WithAccuracy().Accuracy)
}
