package model

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the struct tags of v and wraps failures in ErrValidation.
func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

// Validate checks the struct tags and the choice invariants of q.
func (q Question) Validate() error {
	if err := Validate(q); err != nil {
		return fmt.Errorf("question %q: %w", q.ID, err)
	}
	seen := make(map[string]bool, len(q.Choices))
	for _, c := range q.Choices {
		if seen[c.ID] {
			return fmt.Errorf("question %q: duplicate choice id %q: %w", q.ID, c.ID, ErrValidation)
		}
		seen[c.ID] = true
	}
	if !seen[q.CorrectChoiceID] {
		return fmt.Errorf("question %q: correct choice %q not among choices: %w", q.ID, q.CorrectChoiceID, ErrValidation)
	}
	return nil
}

// Normalize fills question video ids left empty by the producer.
func (e *CatalogEntry) Normalize() {
	for i := range e.Questions {
		if e.Questions[i].VideoID == "" {
			e.Questions[i].VideoID = e.Video.ID
		}
	}
}

// Validate checks the entry and every question in it.
func (e CatalogEntry) Validate() error {
	if err := Validate(e.Video); err != nil {
		return fmt.Errorf("video: %w", err)
	}
	for _, q := range e.Questions {
		if q.VideoID != e.Video.ID {
			return fmt.Errorf("question %q belongs to video %q, not %q: %w", q.ID, q.VideoID, e.Video.ID, ErrValidation)
		}
		if err := q.Validate(); err != nil {
			return err
		}
	}
	return nil
}
