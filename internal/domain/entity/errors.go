package entity

import (
	"errors"
	"fmt"
)

var (
	ErrNoCandidates    = errors.New("generation returned no candidates")
	ErrEmptyContent    = errors.New("generation returned empty content")
	ErrTaskNotFound    = errors.New("task not found")
	ErrTurnOutOfRange  = errors.New("turn index out of range")
	ErrMissingAPIKey   = errors.New("api key is not set")
	ErrUnknownProvider = errors.New("unknown generation provider")
)

// GenerationError is a non-2xx answer from the generation service.
type GenerationError struct {
	StatusCode int
	Body       string
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation request failed (%d): %s", e.StatusCode, e.Body)
}
