// Package state implements the conversation state machine: a pure reducer
// over a closed action set, plus a small synchronous store that serializes
// dispatches and hands out snapshots.
package state

import (
	"github.com/aviationai/chatengine"
)

// Phase tracks client initialization.
type Phase string

const (
	PhaseBooting Phase = "booting"
	PhaseReady   Phase = "ready"
)

// NoticeKind distinguishes user-visible failure notices.
type NoticeKind string

const (
	NoticePersistence NoticeKind = "persistence"
	NoticeCompletion  NoticeKind = "completion"
	NoticeSession     NoticeKind = "session"
)

// Notice is a transient, user-visible error notice. It never blocks the
// transcript; rendering it is the UI's concern.
type Notice struct {
	Kind NoticeKind
	Text string
}

// State is the canonical in-memory shape of "current conversation +
// transcript + UI flags". It is entirely rebuildable from persisted data
// except for the compose and reveal buffers, which are purely local.
type State struct {
	Phase  Phase
	Online bool

	Summaries []chatengine.Summary
	Current   *chatengine.Conversation
	History   []chatengine.Message

	Compose string

	IsLoading bool
	IsTyping  bool
	Reveal    string

	EditingID    string
	EditingTitle string

	Notice *Notice
}

// NewState returns the initial client state.
func NewState() State {
	return State{Phase: PhaseBooting, Online: true}
}

// clone copies the state deeply enough that mutating the copy can never
// be observed through the original. Reducer purity depends on this.
func (s State) clone() State {
	out := s
	if s.Summaries != nil {
		out.Summaries = make([]chatengine.Summary, len(s.Summaries))
		copy(out.Summaries, s.Summaries)
	}
	out.History = chatengine.CloneMessages(s.History)
	if s.Current != nil {
		cur := s.Current.Clone()
		out.Current = &cur
	}
	if s.Notice != nil {
		n := *s.Notice
		out.Notice = &n
	}
	return out
}
