// Package search indexes persisted transcript messages into a vector
// store and answers "search my conversations" queries. It sits outside
// the message pipeline's ordering guarantees: indexing is fire-and-forget
// and its failures never affect the transcript.
package search

import (
	"context"
	"log/slog"
	"time"

	"github.com/aviationai/chatengine"
	"github.com/aviationai/chatengine/completion"
	"github.com/aviationai/chatengine/vectorstore"
)

// Indexer embeds messages and writes them to the vector store.
type Indexer struct {
	embedder completion.Embedder
	vectors  vectorstore.VectorStore
	userID   string
	logger   *slog.Logger
}

// NewIndexer builds an indexer for one user's transcripts. A nil logger
// falls back to slog.Default().
func NewIndexer(embedder completion.Embedder, vectors vectorstore.VectorStore, userID string, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		embedder: embedder,
		vectors:  vectors,
		userID:   userID,
		logger:   logger,
	}
}

// IndexMessages embeds and upserts the given messages. Failures are
// logged and swallowed; the transcript remains the source of truth.
func (ix *Indexer) IndexMessages(ctx context.Context, conversationID string, messages []chatengine.Message) {
	items := make([]vectorstore.Item, 0, len(messages))
	for _, msg := range messages {
		if msg.Content == "" {
			continue
		}
		vector, err := ix.embedder.Embed(ctx, msg.Content)
		if err != nil {
			ix.logger.Warn("failed to embed message", "message_id", msg.ID, "error", err)
			continue
		}
		items = append(items, vectorstore.Item{
			ID:     msg.ID,
			Vector: vector,
			Payload: map[string]any{
				"user_id":         ix.userID,
				"conversation_id": conversationID,
				"role":            string(msg.Role),
				"content":         msg.Content,
				"timestamp":       msg.Timestamp.Format(time.RFC3339),
			},
		})
	}
	if len(items) == 0 {
		return
	}

	if err := ix.vectors.Upsert(ctx, items); err != nil {
		ix.logger.Warn("failed to index messages", "conversation_id", conversationID, "error", err)
	}
}

// Search embeds the query and returns the user's closest messages.
func (ix *Indexer) Search(ctx context.Context, query string, limit int) ([]vectorstore.SearchResult, error) {
	vector, err := ix.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return ix.vectors.Search(ctx, vector, vectorstore.SearchFilter{UserID: ix.userID}, limit)
}
