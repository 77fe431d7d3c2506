// Package scheduler implements the SM-2 style update rule that decides when
// a question is next due and how well the learner knows it.
package scheduler

import (
	"fmt"
	"math"
	"time"

	"github.com/pavelanni/recall/internal/model"
)

// Config holds the numeric constants of the update rule.
// New replaces zero values with the defaults noted on each field, so a zero
// ease step needs NewExact.
type Config struct {
	InitialEase     float64 // zero → 2.5
	MinEase         float64 // zero → 1.3
	MaxEase         float64 // zero → 3.0
	EaseIncrement   float64 // zero → 0.05
	EaseDecrement   float64 // zero → 0.20
	InitialInterval int     // zero → 1 day
	LapseInterval   int     // zero → 1 day
	MaxInterval     int     // zero → 36500 days
}

// DefaultConfig returns the configuration with every default filled in.
func DefaultConfig() Config {
	return Config{}.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.InitialEase == 0 {
		c.InitialEase = 2.5
	}
	if c.MinEase == 0 {
		c.MinEase = 1.3
	}
	if c.MaxEase == 0 {
		c.MaxEase = 3.0
	}
	if c.EaseIncrement == 0 {
		c.EaseIncrement = 0.05
	}
	if c.EaseDecrement == 0 {
		c.EaseDecrement = 0.20
	}
	if c.InitialInterval == 0 {
		c.InitialInterval = 1
	}
	if c.LapseInterval == 0 {
		c.LapseInterval = 1
	}
	if c.MaxInterval == 0 {
		c.MaxInterval = 36500
	}
	return c
}

func (c Config) validate() error {
	switch {
	case c.MinEase <= 0 || c.MinEase > c.MaxEase:
		return fmt.Errorf("ease bounds [%.2f, %.2f]: %w", c.MinEase, c.MaxEase, model.ErrValidation)
	case c.InitialEase < c.MinEase || c.InitialEase > c.MaxEase:
		return fmt.Errorf("initial ease %.2f outside [%.2f, %.2f]: %w", c.InitialEase, c.MinEase, c.MaxEase, model.ErrValidation)
	case c.EaseIncrement < 0 || c.EaseDecrement < 0:
		return fmt.Errorf("ease adjustments must not be negative: %w", model.ErrValidation)
	case c.InitialInterval < 1 || c.LapseInterval < 1:
		return fmt.Errorf("intervals must be at least one day: %w", model.ErrValidation)
	case c.MaxInterval < c.InitialInterval || c.MaxInterval < c.LapseInterval:
		return fmt.Errorf("max interval %d below initial or lapse interval: %w", c.MaxInterval, model.ErrValidation)
	}
	return nil
}

// Scheduler applies the update rule. It holds no mutable state and is safe
// for concurrent use.
type Scheduler struct {
	cfg Config
}

// New creates a Scheduler. Invalid constants return an error wrapping
// model.ErrValidation.
func New(cfg Config) (*Scheduler, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Scheduler{cfg: cfg}, nil
}

// NewExact creates a Scheduler from cfg as given. No defaults are applied,
// so zero ease steps are kept.
func NewExact(cfg Config) (*Scheduler, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Scheduler{cfg: cfg}, nil
}

// Config returns the effective configuration.
func (s *Scheduler) Config() Config {
	return s.cfg
}

// Schedule returns the card that results from answering a question at now.
// A nil or never-reviewed previous card is a first exposure. The previous
// card is not mutated; identity fields are copied from it when present.
func (s *Scheduler) Schedule(previous *model.Card, correct bool, now time.Time) (model.Card, error) {
	if now.IsZero() {
		return model.Card{}, fmt.Errorf("review time is zero: %w", model.ErrValidation)
	}

	var next model.Card
	if previous != nil {
		if previous.Streak < 0 || previous.IntervalDays < 0 {
			return model.Card{}, fmt.Errorf("card %q has negative streak or interval: %w", previous.QuestionID, model.ErrValidation)
		}
		next = *previous
	}

	switch {
	case previous.IsNew():
		next.EaseFactor = s.cfg.InitialEase
		next.IntervalDays = s.cfg.InitialInterval
		next.Streak = 0
		if correct {
			next.Streak = 1
		}
	case correct:
		next.Streak++
		next.EaseFactor = s.clampEase(previous.EaseFactor + s.cfg.EaseIncrement)
		grown := math.Round(float64(previous.IntervalDays) * next.EaseFactor)
		next.IntervalDays = s.cfg.MaxInterval
		if grown < float64(s.cfg.MaxInterval) {
			next.IntervalDays = min(max(int(grown), previous.IntervalDays+1), s.cfg.MaxInterval)
		}
	default:
		next.Streak = 0
		next.EaseFactor = s.clampEase(previous.EaseFactor - s.cfg.EaseDecrement)
		next.IntervalDays = s.cfg.LapseInterval
	}

	if correct {
		next.TimesCorrect++
	} else {
		next.TimesIncorrect++
	}
	next.ReviewCount++
	reviewed := now
	next.LastReviewedAt = &reviewed
	next.NextReviewAt = now.AddDate(0, 0, next.IntervalDays)
	return next, nil
}

// clampEase rounds to two decimals and clamps to the configured bounds.
func (s *Scheduler) clampEase(e float64) float64 {
	e = math.Round(e*100) / 100
	return math.Min(s.cfg.MaxEase, math.Max(s.cfg.MinEase, e))
}
