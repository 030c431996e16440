// Package store is the persistence gateway for conversations: a thin
// async interface over a remote document store with whole-document
// overwrite semantics. Concurrent writers are not coordinated; the last
// write wins.
package store

import (
	"context"

	"github.com/aviationai/chatengine"
)

// Field names a single conversation column updated via UpdateField.
type Field string

const (
	FieldTitle   Field = "title"
	FieldStarred Field = "starred"
	FieldTags    Field = "tags"
)

// Store defines the interface for conversation persistence.
type Store interface {
	// Create persists a new conversation and returns its assigned ID.
	Create(ctx context.Context, conv *chatengine.Conversation) (string, error)

	// UpdateMessages overwrites the full transcript of a conversation.
	UpdateMessages(ctx context.Context, id string, messages []chatengine.Message) error

	// UpdateField overwrites a single field (title, starred, tags).
	UpdateField(ctx context.Context, id string, field Field, value any) error

	// Delete removes a conversation.
	Delete(ctx context.Context, id string) error

	// List returns the summaries of a user's conversations, most
	// recently updated first.
	List(ctx context.Context, userID string) ([]chatengine.Summary, error)

	// Get retrieves a full conversation by ID.
	// Returns chatengine.ErrNotFound if it does not exist.
	Get(ctx context.Context, id string) (*chatengine.Conversation, error)

	// Close closes the store and releases any resources.
	Close() error
}
