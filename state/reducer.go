package state

import "github.com/aviationai/chatengine"

// Reduce applies one action to a state and returns the next state. It is
// total and pure: the input state is never mutated, no action panics, and
// unknown actions return the input unchanged.
//
// Invariant held by every transition: when a conversation is selected,
// Current.Messages and History are the same transcript. Any action that
// touches one updates the other within the same application.
func Reduce(s State, a Action) State {
	next := s.clone()

	switch act := a.(type) {
	case NewConversation:
		next.Current = nil
		next.History = nil
		next.Compose = ""
		next.Reveal = ""
		next.IsTyping = false
		next.Notice = nil

	case SetCurrent:
		conv := act.Conversation.Clone()
		next.Current = &conv
		next.History = chatengine.CloneMessages(conv.Messages)

	case SetHistory:
		next.History = chatengine.CloneMessages(act.Messages)
		if next.Current != nil {
			next.Current.Messages = chatengine.CloneMessages(act.Messages)
		}

	case AppendMessage:
		next.History = append(next.History, act.Message)
		if next.Current != nil {
			next.Current.Messages = append(next.Current.Messages, act.Message)
		}

	case ToggleBookmark:
		if act.Index < 0 || act.Index >= len(next.History) {
			return s
		}
		next.History[act.Index].Bookmarked = !next.History[act.Index].Bookmarked
		if next.Current != nil && act.Index < len(next.Current.Messages) {
			next.Current.Messages[act.Index].Bookmarked = next.History[act.Index].Bookmarked
		}

	case ToggleStar:
		if next.Current == nil {
			return s
		}
		next.Current.Starred = !next.Current.Starred
		for i := range next.Summaries {
			if next.Summaries[i].ID == next.Current.ID {
				next.Summaries[i].Starred = next.Current.Starred
			}
		}

	case RenameConversation:
		for i := range next.Summaries {
			if next.Summaries[i].ID == act.ID {
				next.Summaries[i].Title = act.Title
			}
		}
		if next.Current != nil && next.Current.ID == act.ID {
			next.Current.Title = act.Title
		}

	case DeleteConversation:
		kept := next.Summaries[:0]
		for _, sum := range next.Summaries {
			if sum.ID != act.ID {
				kept = append(kept, sum)
			}
		}
		next.Summaries = kept
		if next.Current != nil && next.Current.ID == act.ID {
			next.Current = nil
			next.History = nil
		}

	case SetTags:
		tags := make([]string, len(act.Tags))
		copy(tags, act.Tags)
		for i := range next.Summaries {
			if next.Summaries[i].ID == act.ID {
				next.Summaries[i].Tags = tags
			}
		}
		if next.Current != nil && next.Current.ID == act.ID {
			next.Current.Tags = tags
		}

	case SetSummaries:
		if act.Summaries == nil {
			next.Summaries = nil
		} else {
			next.Summaries = make([]chatengine.Summary, len(act.Summaries))
			copy(next.Summaries, act.Summaries)
		}

	case SetCompose:
		next.Compose = act.Text

	case SetLoading:
		next.IsLoading = act.Loading

	case SetTyping:
		next.IsTyping = act.Typing

	case SetReveal:
		next.Reveal = act.Text

	case SetNotice:
		next.Notice = &Notice{Kind: act.Kind, Text: act.Text}

	case ClearNotice:
		next.Notice = nil

	case SetPhase:
		next.Phase = act.Phase

	case SetOnline:
		next.Online = act.Online

	case EditTitle:
		next.EditingID = act.ID
		next.EditingTitle = act.Title

	case CancelEditTitle:
		next.EditingID = ""
		next.EditingTitle = ""

	case ClearAll:
		next = NewState()
		next.Phase = s.Phase
		next.Online = s.Online

	default:
		return s
	}

	return next
}
