package search

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aviationai/chatengine"
	"github.com/aviationai/chatengine/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	mu    sync.Mutex
	err   error
	calls []string
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, text)
	if f.err != nil {
		return nil, f.err
	}
	return []float32{float32(len(text)), 0.5}, nil
}

type fakeVectorStore struct {
	mu        sync.Mutex
	upserted  []vectorstore.Item
	upsertErr error
	results   []vectorstore.SearchResult
	filter    vectorstore.SearchFilter
}

func (f *fakeVectorStore) Upsert(ctx context.Context, items []vectorstore.Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserted = append(f.upserted, items...)
	return nil
}

func (f *fakeVectorStore) Search(ctx context.Context, vector []float32, filter vectorstore.SearchFilter, limit int) ([]vectorstore.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filter = filter
	return f.results, nil
}

func (f *fakeVectorStore) Close() error { return nil }

func TestIndexMessagesUpsertsWithPayload(t *testing.T) {
	embedder := &fakeEmbedder{}
	vectors := &fakeVectorStore{}
	ix := NewIndexer(embedder, vectors, "pilot-7", nil)

	user := chatengine.NewMessage(chatengine.RoleUser, "what is a VOR?")
	assistant := chatengine.NewMessage(chatengine.RoleAssistant, "a VHF omnidirectional range beacon")
	ix.IndexMessages(context.Background(), "conv-1", []chatengine.Message{user, assistant})

	require.Len(t, vectors.upserted, 2)
	item := vectors.upserted[0]
	assert.Equal(t, user.ID, item.ID)
	assert.Equal(t, "pilot-7", item.Payload["user_id"])
	assert.Equal(t, "conv-1", item.Payload["conversation_id"])
	assert.Equal(t, "user", item.Payload["role"])
	assert.Equal(t, "what is a VOR?", item.Payload["content"])
	assert.NotEmpty(t, item.Payload["timestamp"])
}

func TestIndexMessagesSkipsEmptyContent(t *testing.T) {
	embedder := &fakeEmbedder{}
	vectors := &fakeVectorStore{}
	ix := NewIndexer(embedder, vectors, "pilot-7", nil)

	blank := chatengine.NewMessage(chatengine.RoleUser, "")
	ix.IndexMessages(context.Background(), "conv-1", []chatengine.Message{blank})

	assert.Empty(t, embedder.calls)
	assert.Empty(t, vectors.upserted)
}

func TestIndexMessagesSwallowsEmbedFailure(t *testing.T) {
	embedder := &fakeEmbedder{err: errors.New("embedding service down")}
	vectors := &fakeVectorStore{}
	ix := NewIndexer(embedder, vectors, "pilot-7", nil)

	msg := chatengine.NewMessage(chatengine.RoleUser, "question")
	ix.IndexMessages(context.Background(), "conv-1", []chatengine.Message{msg})

	assert.Empty(t, vectors.upserted, "nothing to upsert when every embed fails")
}

func TestIndexMessagesSwallowsUpsertFailure(t *testing.T) {
	embedder := &fakeEmbedder{}
	vectors := &fakeVectorStore{upsertErr: errors.New("qdrant unavailable")}
	ix := NewIndexer(embedder, vectors, "pilot-7", nil)

	msg := chatengine.NewMessage(chatengine.RoleUser, "question")
	ix.IndexMessages(context.Background(), "conv-1", []chatengine.Message{msg})
	// No panic, no error surfaced; the failure is logged only.
}

func TestSearchScopesToUser(t *testing.T) {
	embedder := &fakeEmbedder{}
	vectors := &fakeVectorStore{results: []vectorstore.SearchResult{
		{ID: "m1", Score: 0.92, Content: "holding pattern entries", ConversationID: "conv-3"},
	}}
	ix := NewIndexer(embedder, vectors, "pilot-7", nil)

	results, err := ix.Search(context.Background(), "holding patterns", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "conv-3", results[0].ConversationID)
	assert.Equal(t, "pilot-7", vectors.filter.UserID)
	assert.Equal(t, []string{"holding patterns"}, embedder.calls)
}

func TestSearchPropagatesEmbedFailure(t *testing.T) {
	embedder := &fakeEmbedder{err: errors.New("embedding service down")}
	ix := NewIndexer(embedder, &fakeVectorStore{}, "pilot-7", nil)

	_, err := ix.Search(context.Background(), "query", 5)
	assert.Error(t, err)
}
