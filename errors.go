package chatengine

import "errors"

// Failure taxonomy for the conversation session engine.
var (
	// ErrPersistence wraps any rejected remote read or write against the
	// conversation or session stores.
	ErrPersistence = errors.New("persistence failure")

	// ErrCompletion wraps any failure of the external assistant call.
	ErrCompletion = errors.New("assistant response unavailable")

	// ErrSessionInvalidated means another login superseded this one.
	// Fatal to the local session, never recovered locally.
	ErrSessionInvalidated = errors.New("session invalidated by a newer login")

	// ErrMessageNotFound means a bookmark toggle could not locate its
	// target message. Logged and ignored, never surfaced to the user.
	ErrMessageNotFound = errors.New("message not found")

	// ErrSubmissionInFlight rejects re-entrant submits while one is pending.
	ErrSubmissionInFlight = errors.New("a submission is already in flight")

	// ErrEmptyInput rejects submissions that are blank after trimming.
	ErrEmptyInput = errors.New("empty input")

	// ErrNoConversation means an operation required a selected conversation.
	ErrNoConversation = errors.New("no conversation selected")
)

// Store configuration and lookup errors.
var (
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrInvalidStoreType = errors.New("invalid store type")
	ErrNotFound         = errors.New("record not found")
)
