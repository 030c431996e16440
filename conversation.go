package chatengine

import (
	"strings"
	"time"
	"unicode/utf8"
)

// maxTitleLen is how much of the first user message becomes the title
// of a lazily created conversation.
const maxTitleLen = 50

// Conversation is a titled, ordered transcript owned by one user.
// The remote store assigns ID on first creation; messages are append-only
// from the client's perspective during a session.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	Starred   bool      `json:"starred"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep enough copy for reducer use: the messages and
// tags slices are copied, scalar fields are values already.
func (c Conversation) Clone() Conversation {
	c.Messages = CloneMessages(c.Messages)
	if c.Tags != nil {
		tags := make([]string, len(c.Tags))
		copy(tags, c.Tags)
		c.Tags = tags
	}
	return c
}

// Summary is the list-view projection of a conversation, without the
// transcript.
type Summary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Starred   bool      `json:"starred"`
	Tags      []string  `json:"tags"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Summarize projects a conversation onto its list entry.
func (c Conversation) Summarize() Summary {
	return Summary{
		ID:        c.ID,
		Title:     c.Title,
		Starred:   c.Starred,
		Tags:      c.Tags,
		UpdatedAt: c.UpdatedAt,
	}
}

// TitleFromInput derives a conversation title from the first user
// message: the trimmed input truncated to 50 characters on a rune
// boundary.
func TitleFromInput(input string) string {
	title := strings.TrimSpace(input)
	if utf8.RuneCountInString(title) <= maxTitleLen {
		return title
	}
	runes := []rune(title)
	return string(runes[:maxTitleLen])
}
