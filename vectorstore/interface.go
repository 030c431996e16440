// Package vectorstore is a technology-agnostic interface for the vector
// index behind transcript search.
package vectorstore

import "context"

// VectorStore stores message vectors and answers similarity queries.
type VectorStore interface {
	// Upsert inserts or overwrites message vectors.
	Upsert(ctx context.Context, items []Item) error

	// Search performs vector similarity search with optional filtering.
	Search(ctx context.Context, vector []float32, filter SearchFilter, limit int) ([]SearchResult, error)

	// Close releases any resources held by the vector store.
	Close() error
}

// Item is one indexed message.
type Item struct {
	// ID is the message's stable ID.
	ID string

	// Vector is the embedding of the message content.
	Vector []float32

	// Payload carries user_id, conversation_id, role, content, and
	// timestamp for filtering and display.
	Payload map[string]any
}

// SearchFilter defines filtering options for vector search.
type SearchFilter struct {
	// UserID restricts results to one user's messages.
	UserID string

	// ConversationID restricts results to a single conversation.
	ConversationID string

	// MinScore filters results below this similarity threshold (0.0-1.0).
	MinScore float32
}

// SearchResult represents a single result from vector similarity search.
type SearchResult struct {
	// ID is the matched message's ID.
	ID string

	// Score is the similarity score (0.0-1.0, higher is more similar).
	Score float32

	// Content is the message text.
	Content string

	// ConversationID identifies the conversation the message belongs to.
	ConversationID string

	// Metadata contains the remaining payload fields.
	Metadata map[string]any
}
