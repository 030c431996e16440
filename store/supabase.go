package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aviationai/chatengine"
	"github.com/supabase-community/supabase-go"
)

// supabaseStore implements Store using Supabase. Every update overwrites
// whole columns; there is no field-level merge inside the messages
// document.
type supabaseStore struct {
	client *supabase.Client
	table  string
}

// conversationRow mirrors the conversations table.
type conversationRow struct {
	ID        string               `json:"id,omitempty"`
	UserID    string               `json:"user_id"`
	Title     string               `json:"title"`
	Messages  []chatengine.Message `json:"messages"`
	Starred   bool                 `json:"starred"`
	Tags      []string             `json:"tags"`
	CreatedAt time.Time            `json:"created_at,omitempty"`
	UpdatedAt time.Time            `json:"updated_at,omitempty"`
}

func newSupabaseStore(config *storeConfig) (*supabaseStore, error) {
	client, err := supabase.NewClient(config.supabaseURL, config.supabaseKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}
	return &supabaseStore{client: client, table: config.table}, nil
}

// Create implements Store.
func (s *supabaseStore) Create(ctx context.Context, conv *chatengine.Conversation) (string, error) {
	row := conversationRow{
		UserID:   conv.UserID,
		Title:    conv.Title,
		Messages: conv.Messages,
		Starred:  conv.Starred,
		Tags:     conv.Tags,
	}

	var inserted []conversationRow
	_, err := s.client.From(s.table).
		Insert(row, false, "", "representation", "").
		ExecuteTo(&inserted)
	if err != nil {
		return "", fmt.Errorf("failed to create conversation: %w", err)
	}
	if len(inserted) == 0 {
		return "", fmt.Errorf("create conversation: no row returned")
	}
	return inserted[0].ID, nil
}

// UpdateMessages implements Store.
func (s *supabaseStore) UpdateMessages(ctx context.Context, id string, messages []chatengine.Message) error {
	patch := map[string]any{
		"messages":   messages,
		"updated_at": time.Now(),
	}
	_, _, err := s.client.From(s.table).
		Update(patch, "", "").
		Eq("id", id).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to update messages: %w", err)
	}
	return nil
}

// UpdateField implements Store.
func (s *supabaseStore) UpdateField(ctx context.Context, id string, field Field, value any) error {
	patch := map[string]any{
		string(field): value,
		"updated_at":  time.Now(),
	}
	_, _, err := s.client.From(s.table).
		Update(patch, "", "").
		Eq("id", id).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", field, err)
	}
	return nil
}

// Delete implements Store.
func (s *supabaseStore) Delete(ctx context.Context, id string) error {
	_, _, err := s.client.From(s.table).
		Delete("", "").
		Eq("id", id).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return nil
}

// List implements Store.
func (s *supabaseStore) List(ctx context.Context, userID string) ([]chatengine.Summary, error) {
	var rows []conversationRow
	_, err := s.client.From(s.table).
		Select("id,title,starred,tags,updated_at", "", false).
		Eq("user_id", userID).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	summaries := make([]chatengine.Summary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, chatengine.Summary{
			ID:        row.ID,
			Title:     row.Title,
			Starred:   row.Starred,
			Tags:      row.Tags,
			UpdatedAt: row.UpdatedAt,
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})
	return summaries, nil
}

// Get implements Store.
func (s *supabaseStore) Get(ctx context.Context, id string) (*chatengine.Conversation, error) {
	var row conversationRow
	_, err := s.client.From(s.table).
		Select("*", "", false).
		Eq("id", id).
		Single().
		ExecuteTo(&row)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	return &chatengine.Conversation{
		ID:        row.ID,
		UserID:    row.UserID,
		Title:     row.Title,
		Messages:  row.Messages,
		Starred:   row.Starred,
		Tags:      row.Tags,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}, nil
}

// Close implements Store.
func (s *supabaseStore) Close() error {
	// Supabase client doesn't require explicit close
	return nil
}

// Compile-time check that supabaseStore implements Store
var _ Store = (*supabaseStore)(nil)
