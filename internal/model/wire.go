package model

import "time"

// QuestionView is a question as served to the learner, without the answer.
type QuestionView struct {
	ID         string     `json:"id"`
	VideoID    string     `json:"video_id"`
	Text       string     `json:"question_text"`
	Choices    []Choice   `json:"choices"`
	Difficulty Difficulty `json:"difficulty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// View strips the correct choice and explanation from q.
func (q Question) View() QuestionView {
	return QuestionView{
		ID:         q.ID,
		VideoID:    q.VideoID,
		Text:       q.Text,
		Choices:    q.Choices,
		Difficulty: q.Difficulty,
		CreatedAt:  q.CreatedAt,
	}
}

// QuizSession is the response of GET /api/quiz/session.
type QuizSession struct {
	SessionID   string         `json:"session_id"`
	Questions   []QuestionView `json:"questions"`
	Total       int            `json:"total"`
	ReviewCount int            `json:"review_count"`
	NewCount    int            `json:"new_count"`
}

// AnswerSubmit is the body of POST /api/quiz/answer.
type AnswerSubmit struct {
	QuestionID     string `json:"question_id" validate:"required"`
	ChosenChoiceID string `json:"chosen_choice_id" validate:"required"`
	SessionID      string `json:"session_id,omitempty"`
	Position       int    `json:"position,omitempty" validate:"gte=0"`
}

// AnswerResult is the response of POST /api/quiz/answer.
type AnswerResult struct {
	IsCorrect       bool      `json:"is_correct"`
	CorrectChoiceID string    `json:"correct_choice_id"`
	Explanation     string    `json:"explanation"`
	Streak          int       `json:"streak"`
	EaseFactor      float64   `json:"ease_factor"`
	NextReviewAt    time.Time `json:"next_review_at"`
}

// SessionComplete is the body of POST /api/quiz/session/complete.
type SessionComplete struct {
	QuestionsAnswered int    `json:"questions_answered" validate:"gte=0"`
	QuestionsCorrect  int    `json:"questions_correct" validate:"gte=0,ltefield=QuestionsAnswered"`
	SessionID         string `json:"session_id,omitempty"`
}

// SessionSummary is the response of POST /api/quiz/session/complete.
type SessionSummary struct {
	QuestionsAnswered int     `json:"questions_answered"`
	QuestionsCorrect  int     `json:"questions_correct"`
	Accuracy          float64 `json:"accuracy"`
	Streak            int     `json:"streak"`
}

// Overview is the response of GET /api/progress/overview.
type Overview struct {
	TotalVideos       int     `json:"total_videos"`
	TotalQuestions    int     `json:"total_questions"`
	QuestionsSeen     int     `json:"questions_seen"`
	MasteryPercentage float64 `json:"mastery_percentage"`
	CurrentStreak     int     `json:"current_streak"`
	TotalCorrect      int     `json:"total_correct"`
	TotalIncorrect    int     `json:"total_incorrect"`
}

// StreakInfo is the response of GET /api/progress/streak. Calendar is
// dense and ordered oldest first, ending today.
type StreakInfo struct {
	CurrentStreak int         `json:"current_streak"`
	LongestStreak int         `json:"longest_streak"`
	Calendar      []DailyStat `json:"calendar"`
}

// VideoMastery is the response of GET /api/progress/videos/{videoID}.
type VideoMastery struct {
	VideoID           string  `json:"video_id"`
	Title             string  `json:"title"`
	TotalQuestions    int     `json:"total_questions"`
	QuestionsSeen     int     `json:"questions_seen"`
	QuestionsMastered int     `json:"questions_mastered"`
	MasteryPercentage float64 `json:"mastery_percentage"`
}

// CatalogEntry is one video with its questions as supplied by ingestion.
type CatalogEntry struct {
	Video     Video      `json:"video" validate:"required"`
	Questions []Question `json:"questions" validate:"dive"`
}

// ImportResult reports what a catalog import changed.
type ImportResult struct {
	Videos    int `json:"videos"`
	Questions int `json:"questions"`
	Skipped   int `json:"skipped"`
}

// ErrorResponse is the JSON body of every API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
