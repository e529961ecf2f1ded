package domain

import "errors"

var (
	// ErrInvalidConfiguration is returned when a session configuration is rejected before any side effect.
	ErrInvalidConfiguration = errors.New("invalid session configuration")
	// ErrGenerationFailed indicates the question source could not produce a question; the caller may retry.
	ErrGenerationFailed = errors.New("question generation failed")
	// ErrPrefetchFailed marks a background prefetch failure. It is logged, never returned to callers.
	ErrPrefetchFailed = errors.New("question prefetch failed")
	// ErrInvalidQuestion indicates a generated question does not satisfy the question invariants.
	ErrInvalidQuestion = errors.New("invalid question")
	// ErrSessionNotFound is returned when a quiz session has not been created.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrSessionRunning is returned when starting a session that has not finished yet.
	ErrSessionRunning = errors.New("quiz session already running")
	// ErrSessionSuperseded is returned when a session was reset or finished while an operation was waiting.
	ErrSessionSuperseded = errors.New("quiz session changed while the operation was in flight")
	// ErrOptionNotFound indicates a submitted option label is not part of the current question.
	ErrOptionNotFound = errors.New("option not found")
	// ErrAnswerNotAccepted is returned when an answer arrives while no question is open for answering.
	ErrAnswerNotAccepted = errors.New("answer not accepted in current phase")
	// ErrSlotNotFound is returned by slot stores when the key has never been written.
	ErrSlotNotFound = errors.New("slot not found")
	// ErrInvalidToolRequest indicates a study tool request is missing required input.
	ErrInvalidToolRequest = errors.New("invalid tool request")
)
