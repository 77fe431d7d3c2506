package model

import (
	"math"
	"time"
)

// Difficulty represents question difficulty level.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Video groups the questions generated from one source video.
type Video struct {
	ID        string    `json:"id" validate:"required"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// Choice is one answer option of a multiple-choice question.
type Choice struct {
	ID   string `json:"id" validate:"required"`
	Text string `json:"text" validate:"required"`
}

// Question is an immutable catalog entry. Exactly one choice carries
// CorrectChoiceID and choice ids are unique within the question.
type Question struct {
	ID              string     `json:"id" validate:"required"`
	VideoID         string     `json:"video_id" validate:"required"`
	Text            string     `json:"question_text" validate:"required"`
	Choices         []Choice   `json:"choices" validate:"min=2,max=4,dive"`
	CorrectChoiceID string     `json:"correct_choice_id" validate:"required"`
	Explanation     string     `json:"explanation"`
	Difficulty      Difficulty `json:"difficulty" validate:"oneof=easy medium hard"`
	CreatedAt       time.Time  `json:"created_at"`
}

// HasChoice reports whether id names one of the question's choices.
func (q Question) HasChoice(id string) bool {
	for _, c := range q.Choices {
		if c.ID == id {
			return true
		}
	}
	return false
}

// Card is the scheduling record of one learner for one question.
// A nil LastReviewedAt means the question has never been reviewed.
type Card struct {
	LearnerID      string     `json:"learner_id"`
	QuestionID     string     `json:"question_id"`
	EaseFactor     float64    `json:"ease_factor"`
	IntervalDays   int        `json:"interval_days"`
	Streak         int        `json:"streak"`
	ReviewCount    int        `json:"review_count"`
	TimesCorrect   int        `json:"times_correct"`
	TimesIncorrect int        `json:"times_incorrect"`
	NextReviewAt   time.Time  `json:"next_review_at"`
	LastReviewedAt *time.Time `json:"last_reviewed_at,omitempty"`
	Version        int64      `json:"-"`
}

// IsNew reports whether the card has never been reviewed.
func (c *Card) IsNew() bool {
	return c == nil || c.LastReviewedAt == nil
}

// IsDue reports whether a reviewed card is due at now.
func (c *Card) IsDue(now time.Time) bool {
	return !c.IsNew() && !c.NextReviewAt.After(now)
}

// GradedAnswer is the append-only event produced by every accepted answer.
type GradedAnswer struct {
	ID             string    `json:"id"`
	LearnerID      string    `json:"learner_id"`
	QuestionID     string    `json:"question_id"`
	ChoiceID       string    `json:"chosen_choice_id"`
	Correct        bool      `json:"is_correct"`
	Card           Card      `json:"card"`
	AnsweredAt     time.Time `json:"answered_at"`
	Day            string    `json:"day"`
	SessionID      string    `json:"session_id,omitempty"`
	Position       int       `json:"position"`
	IdempotencyKey string    `json:"idempotency_key,omitempty"`
}

// SessionCompletion records a finished session and what it added to the
// day's statistics on top of the already graded answers. Counted is false
// for repeated completions of the same session.
type SessionCompletion struct {
	LearnerID       string    `json:"learner_id"`
	SessionID       string    `json:"session_id,omitempty"`
	Day             string    `json:"day"`
	ReportedAnswers int       `json:"reported_answered"`
	ReportedCorrect int       `json:"reported_correct"`
	TopUpAnswers    int       `json:"top_up_answered"`
	TopUpCorrect    int       `json:"top_up_correct"`
	Counted         bool      `json:"counted"`
	CompletedAt     time.Time `json:"completed_at"`
}

// DailyStat is the per-learner, per-day activity counter. Date is the
// learner-local calendar day in YYYY-MM-DD form.
type DailyStat struct {
	Date              string  `json:"date"`
	QuestionsAnswered int     `json:"questions_answered"`
	QuestionsCorrect  int     `json:"questions_correct"`
	SessionCount      int     `json:"session_count"`
	Accuracy          float64 `json:"accuracy"`
}

// WithAccuracy returns d with Accuracy derived from its counters.
func (d DailyStat) WithAccuracy() DailyStat {
	d.Accuracy = Percent(d.QuestionsCorrect, d.QuestionsAnswered)
	return d
}

// DayLayout is the layout of learner-local day keys.
const DayLayout = "2006-01-02"

// Percent returns part/total as a 0-100 percentage rounded to one decimal,
// or 0 when total is zero.
func Percent(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*1000) / 10
}
