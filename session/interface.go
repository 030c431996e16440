package session

import "context"

// Store defines the interface for session record storage.
type Store interface {
	// Write fully overwrites the session record for record.UserID.
	// There is no field-level merge; the previous record is gone.
	Write(ctx context.Context, record *Record) error

	// Get retrieves the session record for a user.
	// Returns nil if no record exists (not an error).
	Get(ctx context.Context, userID string) (*Record, error)

	// Delete removes the session record for a user.
	Delete(ctx context.Context, userID string) error

	// Observe attaches a continuous observer on a user's session record.
	// fn fires once with the current record (nil when absent) before
	// Observe returns, then again on every subsequent write or delete.
	// The returned function stops observation. Deliveries run outside the
	// store's locks, so one already in flight when it returns may still
	// invoke fn; callers that need a hard cutoff must guard inside fn.
	Observe(ctx context.Context, userID string, fn func(*Record)) (func(), error)

	// Close closes the store and releases any resources.
	Close() error
}
