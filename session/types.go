// Package session enforces the single-active-login invariant. Each user
// has at most one session record in the remote store; writing a new one
// silently supersedes the old (last-writer-wins), and every client
// watching the record detects the overwrite and invalidates itself.
package session

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Record is the single remote marker of which login is currently
// authoritative for a user. The store exclusively owns the canonical
// record; clients hold read-only cached copies of the token.
type Record struct {
	UserID       string    `json:"user_id"`
	Token        string    `json:"token"`
	LastActiveAt time.Time `json:"last_active_at"`
	Fingerprint  string    `json:"fingerprint"` // e.g. user-agent string
}

// NewToken generates a session token: a time-based prefix plus a random
// suffix. This is a liveness token, not a security credential; it only
// has to be unique enough to not collide across concurrent logins.
func NewToken() string {
	return strconv.FormatInt(time.Now().UnixMilli(), 36) + "-" + uuid.NewString()
}
