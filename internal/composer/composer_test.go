package composer

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/recall/internal/model"
)

var now = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func question(id string, created time.Time) model.Question {
	return model.Question{
		ID:              id,
		VideoID:         "v1",
		Text:            "text " + id,
		Choices:         []model.Choice{{ID: "a", Text: "A"}, {ID: "b", Text: "B"}},
		CorrectChoiceID: "a",
		Difficulty:      model.DifficultyEasy,
		CreatedAt:       created,
	}
}

func card(id string, next time.Time) model.Card {
	last := next.Add(-24 * time.Hour)
	return model.Card{QuestionID: id, EaseFactor: 2.5, IntervalDays: 1, NextReviewAt: next, LastReviewedAt: &last}
}

func ids(c Composition) []string {
	var out []string
	for _, q := range c.Questions {
		out = append(out, q.ID)
	}
	return out
}

func TestComposeOrdersDueThenNew(t *testing.T) {
	catalog := []model.Question{
		question("n2", now.Add(-1*time.Hour)),
		question("d1", now.Add(-100*time.Hour)),
		question("n1", now.Add(-2*time.Hour)),
		question("d2", now.Add(-100*time.Hour)),
		question("d3", now.Add(-100*time.Hour)),
		question("later", now.Add(-100*time.Hour)),
		question("n0", now.Add(-1*time.Hour)),
	}
	cards := []model.Card{
		card("d2", now.Add(-3*time.Hour)),
		card("d1", now.Add(-5*time.Hour)),
		card("d3", now.Add(-3*time.Hour)),
		card("later", now.Add(2*time.Hour)),
		{QuestionID: "n1", EaseFactor: 2.5},
	}

	c, err := Compose(cards, catalog, now, Limits{MaxReview: 10, MaxNew: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"d1", "d2", "d3", "n1", "n0", "n2"}, ids(c))
	assert.Equal(t, 3, c.ReviewCount)
	assert.Equal(t, 3, c.NewCount)
}

func TestComposeDueAtExactlyNow(t *testing.T) {
	catalog := []model.Question{question("q1", now)}
	c, err := Compose([]model.Card{card("q1", now)}, catalog, now, Limits{MaxReview: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"q1"}, ids(c))
	assert.Equal(t, 1, c.ReviewCount)
}

func TestComposeRespectsBounds(t *testing.T) {
	var catalog []model.Question
	var cards []model.Card
	for i := range 20 {
		id := fmt.Sprintf("q%02d", i)
		catalog = append(catalog, question(id, now.Add(time.Duration(i)*time.Minute)))
		if i < 8 {
			cards = append(cards, card(id, now.Add(-time.Duration(i)*time.Hour)))
		}
	}

	tests := []struct {
		name       string
		lim        Limits
		wantReview int
		wantNew    int
	}{
		{"both bounded", Limits{MaxReview: 3, MaxNew: 4}, 3, 4},
		{"review limited by pool", Limits{MaxReview: 10, MaxNew: 2}, 8, 2},
		{"zero new", Limits{MaxReview: 5, MaxNew: 0}, 5, 0},
		{"zero everything", Limits{}, 0, 0},
		{"backfill absorbs unused review capacity", Limits{MaxReview: 10, MaxNew: 2, Backfill: BackfillNew}, 8, 4},
		{"backfill limited by new pool", Limits{MaxReview: 30, MaxNew: 5, Backfill: BackfillNew}, 8, 12},
		{"reinforce with every card due", Limits{MaxReview: 10, MaxNew: 2, Backfill: BackfillReinforce}, 8, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Compose(cards, catalog, now, tt.lim)
			require.NoError(t, err)
			assert.Equal(t, tt.wantReview, c.ReviewCount)
			assert.Equal(t, tt.wantNew, c.NewCount)
			assert.Len(t, c.Questions, tt.wantReview+tt.wantNew)

			seen := map[string]bool{}
			for _, q := range c.Questions {
				assert.False(t, seen[q.ID], "duplicate %s", q.ID)
				seen[q.ID] = true
			}
		})
	}
}

func TestComposeReinforceBackfill(t *testing.T) {
	var catalog []model.Question
	var cards []model.Card
	for i := range 10 {
		id := fmt.Sprintf("q%02d", i)
		catalog = append(catalog, question(id, now.Add(time.Duration(i)*time.Minute)))
	}
	for i, ease := range []float64{2.5, 1.3, 2.1, 1.3, 2.9} {
		id := fmt.Sprintf("q%02d", i)
		c := card(id, now.Add(time.Duration(i+1)*time.Hour))
		c.EaseFactor = ease
		cards = append(cards, c)
	}
	cards = append(cards, card("q05", now.Add(-time.Hour)))
	cards = append(cards, card("orphan", now.Add(time.Hour)))

	tests := []struct {
		name       string
		lim        Limits
		want       []string
		wantReview int
		wantNew    int
	}{
		{
			"hardest first after due",
			Limits{MaxReview: 4, MaxNew: 2, Backfill: BackfillReinforce},
			[]string{"q05", "q01", "q03", "q02", "q06", "q07"}, 4, 2,
		},
		{
			"limited by reviewed pool",
			Limits{MaxReview: 20, MaxNew: 1, Backfill: BackfillReinforce},
			[]string{"q05", "q01", "q03", "q02", "q00", "q04", "q06"}, 6, 1,
		},
		{
			"no spare capacity",
			Limits{MaxReview: 1, MaxNew: 1, Backfill: BackfillReinforce},
			[]string{"q05", "q06"}, 1, 1,
		},
		{
			"none leaves capacity unused",
			Limits{MaxReview: 4, MaxNew: 1},
			[]string{"q05", "q06"}, 1, 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Compose(cards, catalog, now, tt.lim)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(c))
			assert.Equal(t, tt.wantReview, c.ReviewCount)
			assert.Equal(t, tt.wantNew, c.NewCount)
		})
	}
}

func TestComposeEmpty(t *testing.T) {
	c, err := Compose(nil, nil, now, Limits{MaxReview: 10, MaxNew: 5})
	require.NoError(t, err)
	assert.True(t, c.Empty())
	assert.Zero(t, c.ReviewCount)
	assert.Zero(t, c.NewCount)

	// Everything reviewed and nothing due.
	catalog := []model.Question{question("q1", now)}
	c, err = Compose([]model.Card{card("q1", now.Add(time.Hour))}, catalog, now, Limits{MaxReview: 10, MaxNew: 5})
	require.NoError(t, err)
	assert.True(t, c.Empty())
}

func TestComposeIgnoresOrphanAndDuplicateCards(t *testing.T) {
	catalog := []model.Question{question("q1", now), question("q1", now)}
	cards := []model.Card{
		card("gone", now.Add(-time.Hour)),
		card("q1", now.Add(-time.Hour)),
		card("q1", now.Add(-2*time.Hour)),
	}
	c, err := Compose(cards, catalog, now, Limits{MaxReview: 10, MaxNew: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"q1"}, ids(c))
}

func TestComposeDoesNotMutateInput(t *testing.T) {
	catalog := []model.Question{question("b", now), question("a", now)}
	_, err := Compose(nil, catalog, now, Limits{MaxNew: 2})
	require.NoError(t, err)
	assert.Equal(t, "b", catalog[0].ID)
}

func TestComposeRejectsNegativeBounds(t *testing.T) {
	_, err := Compose(nil, nil, now, Limits{MaxReview: -1})
	require.ErrorIs(t, err, model.ErrValidation)

	_, err = Compose(nil, nil, now, Limits{MaxNew: -3})
	require.ErrorIs(t, err, model.ErrValidation)

	_, err = Compose(nil, nil, now, Limits{Backfill: "sometimes"})
	require.ErrorIs(t, err, model.ErrValidation)
}

func TestParseBackfill(t *testing.T) {
	p, err := ParseBackfill("")
	require.NoError(t, err)
	assert.Equal(t, BackfillNone, p)

	p, err = ParseBackfill(" NEW ")
	require.NoError(t, err)
	assert.Equal(t, BackfillNew, p)

	p, err = ParseBackfill("reinforce")
	require.NoError(t, err)
	assert.Equal(t, BackfillReinforce, p)
}
