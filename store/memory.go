package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aviationai/chatengine"
	"github.com/google/uuid"
)

// memoryStore implements Store using an in-memory map. Writes are
// whole-document overwrites, matching the remote store's semantics.
type memoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*chatengine.Conversation
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		conversations: make(map[string]*chatengine.Conversation),
	}
}

// Create implements Store.
func (s *memoryStore) Create(ctx context.Context, conv *chatengine.Conversation) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := conv.Clone()
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	now := time.Now()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.conversations[stored.ID] = &stored
	return stored.ID, nil
}

// UpdateMessages implements Store.
func (s *memoryStore) UpdateMessages(ctx context.Context, id string, messages []chatengine.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, exists := s.conversations[id]
	if !exists {
		return chatengine.ErrNotFound
	}
	conv.Messages = chatengine.CloneMessages(messages)
	conv.UpdatedAt = time.Now()
	return nil
}

// UpdateField implements Store.
func (s *memoryStore) UpdateField(ctx context.Context, id string, field Field, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, exists := s.conversations[id]
	if !exists {
		return chatengine.ErrNotFound
	}

	switch field {
	case FieldTitle:
		title, ok := value.(string)
		if !ok {
			return chatengine.ErrInvalidConfig
		}
		conv.Title = title
	case FieldStarred:
		starred, ok := value.(bool)
		if !ok {
			return chatengine.ErrInvalidConfig
		}
		conv.Starred = starred
	case FieldTags:
		tags, ok := value.([]string)
		if !ok {
			return chatengine.ErrInvalidConfig
		}
		conv.Tags = tags
	default:
		return chatengine.ErrInvalidConfig
	}
	conv.UpdatedAt = time.Now()
	return nil
}

// Delete implements Store.
func (s *memoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.conversations, id)
	return nil
}

// List implements Store.
func (s *memoryStore) List(ctx context.Context, userID string) ([]chatengine.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := make([]chatengine.Summary, 0)
	for _, conv := range s.conversations {
		if conv.UserID == userID {
			summaries = append(summaries, conv.Summarize())
		}
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})
	return summaries, nil
}

// Get implements Store.
func (s *memoryStore) Get(ctx context.Context, id string) (*chatengine.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, exists := s.conversations[id]
	if !exists {
		return nil, chatengine.ErrNotFound
	}
	copied := conv.Clone()
	return &copied, nil
}

// Close implements Store.
func (s *memoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conversations = nil
	return nil
}
