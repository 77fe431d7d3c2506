// Package composer builds the ordered question list of one practice session
// from the learner's due cards and the questions they have not seen yet.
package composer

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/pavelanni/recall/internal/model"
)

// BackfillPolicy decides what happens to review capacity left unused when
// fewer cards are due than MaxReview allows.
type BackfillPolicy string

const (
	// BackfillNone leaves unused review capacity empty.
	BackfillNone BackfillPolicy = "none"
	// BackfillNew gives unused review capacity to additional new questions.
	BackfillNew BackfillPolicy = "new"
	// BackfillReinforce gives unused review capacity to reviewed questions
	// that are not due yet, lowest ease factor first.
	BackfillReinforce BackfillPolicy = "reinforce"
)

// ParseBackfill parses a policy name. The empty string means BackfillNone.
func ParseBackfill(s string) (BackfillPolicy, error) {
	switch p := BackfillPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "", BackfillNone:
		return BackfillNone, nil
	case BackfillNew, BackfillReinforce:
		return p, nil
	default:
		return "", fmt.Errorf("unknown backfill policy %q: %w", s, model.ErrValidation)
	}
}

// Limits bounds the size of a composed session.
type Limits struct {
	MaxReview int
	MaxNew    int
	Backfill  BackfillPolicy
}

// Validate rejects negative bounds and unknown policies.
func (l Limits) Validate() error {
	if l.MaxReview < 0 || l.MaxNew < 0 {
		return fmt.Errorf("session bounds review=%d new=%d: %w", l.MaxReview, l.MaxNew, model.ErrValidation)
	}
	if _, err := ParseBackfill(string(l.Backfill)); err != nil {
		return err
	}
	return nil
}

// Composition is an ordered session: all review items first, then new items.
type Composition struct {
	Questions   []model.Question
	ReviewCount int
	NewCount    int
}

// Empty reports whether there is nothing to practice.
func (c Composition) Empty() bool {
	return len(c.Questions) == 0
}

type dueItem struct {
	question model.Question
	next     time.Time
}

type reinforceItem struct {
	question model.Question
	ease     float64
}

// Compose selects up to MaxReview due questions, most overdue first, followed
// by up to MaxNew new questions, oldest first. Cards whose question is not
// in the catalog are ignored. The backfill policy decides who gets review
// capacity left unused. Compose has no side effects.
func Compose(cards []model.Card, catalog []model.Question, now time.Time, lim Limits) (Composition, error) {
	if err := lim.Validate(); err != nil {
		return Composition{}, err
	}
	policy, _ := ParseBackfill(string(lim.Backfill))

	byID := make(map[string]model.Question, len(catalog))
	for _, q := range catalog {
		byID[q.ID] = q
	}

	reviewed := make(map[string]bool, len(cards))
	var due []dueItem
	var weak []reinforceItem
	for i := range cards {
		c := &cards[i]
		if c.IsNew() {
			continue
		}
		q, ok := byID[c.QuestionID]
		if !ok || reviewed[c.QuestionID] {
			continue
		}
		reviewed[c.QuestionID] = true
		if c.IsDue(now) {
			due = append(due, dueItem{question: q, next: c.NextReviewAt})
		} else {
			weak = append(weak, reinforceItem{question: q, ease: c.EaseFactor})
		}
	}
	slices.SortFunc(due, func(a, b dueItem) int {
		if n := a.next.Compare(b.next); n != 0 {
			return n
		}
		return cmp.Compare(a.question.ID, b.question.ID)
	})

	var fresh []model.Question
	queued := make(map[string]bool, len(catalog))
	for _, q := range catalog {
		if reviewed[q.ID] || queued[q.ID] {
			continue
		}
		queued[q.ID] = true
		fresh = append(fresh, q)
	}
	slices.SortFunc(fresh, func(a, b model.Question) int {
		if n := a.CreatedAt.Compare(b.CreatedAt); n != 0 {
			return n
		}
		return cmp.Compare(a.ID, b.ID)
	})

	reviewTake := min(len(due), lim.MaxReview)
	spare := lim.MaxReview - reviewTake
	newCap := lim.MaxNew
	var reinforceTake int
	switch policy {
	case BackfillNew:
		newCap += spare
	case BackfillReinforce:
		slices.SortFunc(weak, func(a, b reinforceItem) int {
			if n := cmp.Compare(a.ease, b.ease); n != 0 {
				return n
			}
			return cmp.Compare(a.question.ID, b.question.ID)
		})
		reinforceTake = min(len(weak), spare)
	}
	newTake := min(len(fresh), newCap)

	out := Composition{
		Questions:   make([]model.Question, 0, reviewTake+reinforceTake+newTake),
		ReviewCount: reviewTake + reinforceTake,
		NewCount:    newTake,
	}
	for _, d := range due[:reviewTake] {
		out.Questions = append(out.Questions, d.question)
	}
	for _, w := range weak[:reinforceTake] {
		out.Questions = append(out.Questions, w.question)
	}
	out.Questions = append(out.Questions, fresh[:newTake]...)
	return out, nil
}
