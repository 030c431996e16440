// Package chatengine holds the shared data model of the conversation
// session engine: messages, conversations, and the failure taxonomy
// consumed by the state, session, store, and pipeline packages.
package chatengine

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a single conversation turn.
//
// Every message carries a stable opaque ID assigned at creation time;
// all later lookups (bookmark toggles in particular) go through the ID,
// never through content equality.
type Message struct {
	ID         string    `json:"id"`
	Role       Role      `json:"role"`
	Content    string    `json:"content"`
	TokenCount int       `json:"token_count"` // Estimated tokens
	Timestamp  time.Time `json:"timestamp"`
	Bookmarked bool      `json:"bookmarked"`
}

// NewMessage builds a message with a fresh ID, the current timestamp,
// and an estimated token count.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:         uuid.NewString(),
		Role:       role,
		Content:    content,
		TokenCount: EstimateTokens(content),
		Timestamp:  time.Now(),
	}
}

// CloneMessages returns a copy of the given transcript. The engine treats
// transcripts as values; reducers and stores never share backing arrays
// with their callers.
func CloneMessages(messages []Message) []Message {
	if messages == nil {
		return nil
	}
	out := make([]Message, len(messages))
	copy(out, messages)
	return out
}
