package model

import "errors"

// Error taxonomy shared by all packages. Callers wrap these with context
// and test with errors.Is.
var (
	ErrNotFound             = errors.New("not found")
	ErrInvalidChoice        = errors.New("invalid choice")
	ErrConcurrentTransition = errors.New("concurrent transition")
	ErrTransport            = errors.New("transport failure")
	ErrValidation           = errors.New("validation failed")
	ErrConflict             = errors.New("card version conflict")
)
