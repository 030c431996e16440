package state

import "github.com/aviationai/chatengine"

// Action is the closed set of state transitions. The set is sealed via
// the unexported marker method; the reducer treats anything it does not
// recognize as a no-op.
type Action interface {
	isAction()
}

// NewConversation clears the current conversation, transcript, compose
// buffer, notice, and typing flags.
type NewConversation struct{}

// SetCurrent selects a conversation. Its ID is what subsequent
// persistence calls are issued against.
type SetCurrent struct {
	Conversation chatengine.Conversation
}

// SetHistory replaces the transcript. If a conversation is selected its
// messages are replaced in the same transition.
type SetHistory struct {
	Messages []chatengine.Message
}

// AppendMessage appends one message to the transcript.
type AppendMessage struct {
	Message chatengine.Message
}

// ToggleBookmark flips the bookmark flag of the message at Index.
// Out-of-range indexes are no-ops.
type ToggleBookmark struct {
	Index int
}

// ToggleStar flips the starred flag of the current conversation and its
// summary entry. No-op without a selection.
type ToggleStar struct{}

// RenameConversation retitles a conversation in the summary list and,
// when it is the selected one, in the current conversation.
type RenameConversation struct {
	ID    string
	Title string
}

// DeleteConversation removes a conversation from the summary list,
// clearing the selection and transcript when it was selected.
type DeleteConversation struct {
	ID string
}

// SetTags overwrites a conversation's tag set in the summary list and,
// when it is the selected one, in the current conversation.
type SetTags struct {
	ID   string
	Tags []string
}

// SetSummaries replaces the conversation summary list.
type SetSummaries struct {
	Summaries []chatengine.Summary
}

// SetCompose replaces the composition buffer.
type SetCompose struct {
	Text string
}

// SetLoading sets the in-flight submission flag.
type SetLoading struct {
	Loading bool
}

// SetTyping sets the reveal-in-progress flag.
type SetTyping struct {
	Typing bool
}

// SetReveal replaces the in-progress reveal buffer.
type SetReveal struct {
	Text string
}

// SetNotice surfaces a transient failure notice.
type SetNotice struct {
	Kind NoticeKind
	Text string
}

// ClearNotice dismisses the failure notice.
type ClearNotice struct{}

// SetPhase moves the client through initialization.
type SetPhase struct {
	Phase Phase
}

// SetOnline sets the connectivity flag.
type SetOnline struct {
	Online bool
}

// EditTitle opens the title-edit scratch state for a conversation.
type EditTitle struct {
	ID    string
	Title string
}

// CancelEditTitle discards the title-edit scratch state.
type CancelEditTitle struct{}

// ClearAll wipes every piece of conversation state. Dispatched when the
// session is invalidated by a newer login.
type ClearAll struct{}

func (NewConversation) isAction()    {}
func (SetCurrent) isAction()         {}
func (SetHistory) isAction()         {}
func (AppendMessage) isAction()      {}
func (ToggleBookmark) isAction()     {}
func (ToggleStar) isAction()         {}
func (RenameConversation) isAction() {}
func (DeleteConversation) isAction() {}
func (SetTags) isAction()            {}
func (SetSummaries) isAction()       {}
func (SetCompose) isAction()         {}
func (SetLoading) isAction()         {}
func (SetTyping) isAction()          {}
func (SetReveal) isAction()          {}
func (SetNotice) isAction()          {}
func (ClearNotice) isAction()        {}
func (SetPhase) isAction()           {}
func (SetOnline) isAction()          {}
func (EditTitle) isAction()          {}
func (CancelEditTitle) isAction()    {}
func (ClearAll) isAction()           {}
