package model

// QuizConfig holds the server-side knobs of the quiz API.
type QuizConfig struct {
	DefaultLearner string
	MaxReview      int
	MaxNew         int
	Backfill       string
	RateLimit      float64
	RateBurst      int
}
