// Package pipeline orchestrates the multi-step, partially-failable
// message flow: optimistic local mutation, remote persistence, the
// external completion call, a second persistence, and the animated
// reveal. It is the only writer of the loading and typing flags.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aviationai/chatengine"
	"github.com/aviationai/chatengine/completion"
	"github.com/aviationai/chatengine/reveal"
	"github.com/aviationai/chatengine/state"
	"github.com/aviationai/chatengine/store"
)

// User-visible notice texts. Errors surface as transient notices, never
// as blocking failures.
const (
	noticeSaveFailed       = "Your message could not be saved. It is kept locally."
	noticeCompletionFailed = "Failed to get a response. Please try again."
	noticeSignedOut        = "You were signed out because your account was used on another device."
)

// Indexer receives persisted messages for transcript search. Optional;
// failures are the indexer's to log, never the pipeline's.
type Indexer interface {
	IndexMessages(ctx context.Context, conversationID string, messages []chatengine.Message)
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithIndexer attaches a transcript search indexer.
func WithIndexer(indexer Indexer) Option {
	return func(p *Pipeline) { p.indexer = indexer }
}

// WithRevealDelayRange tunes the typing animation speed.
func WithRevealDelayRange(min, max int) Option {
	return func(p *Pipeline) { p.revealOpts = append(p.revealOpts, reveal.WithDelayRange(msDuration(min), msDuration(max))) }
}

// Pipeline wires the reducer store to the persistence gateway, the
// completion collaborator, and the typing revealer for one logged-in
// user.
type Pipeline struct {
	states        *state.Store
	conversations store.Store
	completer     completion.Completer
	revealer      *reveal.Revealer
	indexer       Indexer
	logger        *slog.Logger
	revealOpts    []reveal.Option

	mu        sync.Mutex
	userID    string
	authToken string
	inFlight  bool

	mutations mutationLog
}

// New builds a pipeline for one user. userID and authToken come from the
// auth provider at login; they are injected here, never read from
// ambient globals.
func New(states *state.Store, conversations store.Store, completer completion.Completer, userID, authToken string, opts ...Option) *Pipeline {
	p := &Pipeline{
		states:        states,
		conversations: conversations,
		completer:     completer,
		userID:        userID,
		authToken:     authToken,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.revealer = reveal.New(p.publishReveal, p.revealOpts...)
	return p
}

// States exposes the state store for UI consumers.
func (p *Pipeline) States() *state.Store {
	return p.states
}

// Submit runs the five-step message sequence for one user input.
// Progress is observable through the state flags; the returned error is
// for callers that also want the failure programmatically.
//
// Re-entrant calls while a submission is in flight are rejected; this is
// what serializes submissions per conversation.
func (p *Pipeline) Submit(ctx context.Context, input string) error {
	text := strings.TrimSpace(input)
	if text == "" {
		return chatengine.ErrEmptyInput
	}

	p.mu.Lock()
	if p.inFlight {
		p.mu.Unlock()
		return chatengine.ErrSubmissionInFlight
	}
	p.inFlight = true
	userID, authToken := p.userID, p.authToken
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.inFlight = false
		p.mu.Unlock()
	}()

	p.states.Dispatch(state.ClearNotice{})
	p.states.Dispatch(state.SetLoading{Loading: true})
	defer p.states.Dispatch(state.SetLoading{Loading: false})
	p.states.Dispatch(state.SetCompose{Text: ""})
	p.states.Dispatch(state.SetReveal{Text: ""})

	// Step 1: optimistic local append. Cannot fail; on any later failure
	// the message stays in the transcript so typed content is not lost.
	userMsg := chatengine.NewMessage(chatengine.RoleUser, text)
	snap := p.states.Dispatch(state.AppendMessage{Message: userMsg})

	// Step 2: persist the transcript, creating the conversation lazily.
	conversationID, err := p.persistTranscript(ctx, userID, text, snap)
	if err != nil {
		p.notify(state.NoticePersistence, noticeSaveFailed)
		return err
	}

	// Step 3: external completion call. The transcript and its user
	// message are already persisted; nothing to roll back.
	prior := snap.History[:len(snap.History)-1]
	result, err := p.completer.Complete(ctx, &completion.Request{
		Prompt:    text,
		History:   prior,
		AuthToken: authToken,
	})
	if err != nil {
		if !errors.Is(err, chatengine.ErrCompletion) {
			err = fmt.Errorf("%w: %v", chatengine.ErrCompletion, err)
		}
		p.notify(state.NoticeCompletion, noticeCompletionFailed)
		return err
	}

	// The request was issued for conversationID; if the user has since
	// switched conversations, the late result must not be appended to
	// the wrong transcript.
	current := p.states.State()
	if current.Current == nil || current.Current.ID != conversationID {
		p.logger.Warn("discarding completion for superseded conversation",
			"conversation_id", conversationID)
		return nil
	}

	// Step 4: append the assistant message and persist again. Failure
	// here keeps the in-memory transcript; a later save can recover it.
	assistantMsg := chatengine.NewMessage(chatengine.RoleAssistant, result.Text)
	snap = p.states.Dispatch(state.AppendMessage{Message: assistantMsg})
	if err := p.conversations.UpdateMessages(ctx, conversationID, snap.History); err != nil {
		p.notify(state.NoticePersistence, noticeSaveFailed)
		return fmt.Errorf("%w: persist transcript: %v", chatengine.ErrPersistence, err)
	}

	if p.indexer != nil {
		go p.indexer.IndexMessages(context.WithoutCancel(ctx), conversationID,
			[]chatengine.Message{userMsg, assistantMsg})
	}

	// Step 5: reveal the assistant text without blocking interaction.
	p.states.Dispatch(state.SetTyping{Typing: true})
	p.revealer.Reveal(result.Text)
	return nil
}

// persistTranscript implements step 2: create the conversation on first
// message, otherwise overwrite the existing transcript.
func (p *Pipeline) persistTranscript(ctx context.Context, userID, text string, snap state.State) (string, error) {
	if snap.Current != nil {
		if err := p.conversations.UpdateMessages(ctx, snap.Current.ID, snap.History); err != nil {
			return "", fmt.Errorf("%w: persist transcript: %v", chatengine.ErrPersistence, err)
		}
		return snap.Current.ID, nil
	}

	conv := chatengine.Conversation{
		UserID:   userID,
		Title:    chatengine.TitleFromInput(text),
		Messages: snap.History,
	}
	id, err := p.conversations.Create(ctx, &conv)
	if err != nil {
		return "", fmt.Errorf("%w: create conversation: %v", chatengine.ErrPersistence, err)
	}
	conv.ID = id

	next := p.states.Dispatch(state.SetCurrent{Conversation: conv})
	p.states.Dispatch(state.SetSummaries{Summaries: append([]chatengine.Summary{conv.Summarize()}, next.Summaries...)})
	return id, nil
}

// ToggleBookmark flips a message's bookmark, optimistically, by its
// stable ID. A missing target is logged and otherwise ignored. On
// persistence failure the optimistic toggle is compensated.
//
// Toggles are not serialized against Submit; a toggle racing a
// submission can lose its write to the remote transcript (last write
// wins), which is accepted.
func (p *Pipeline) ToggleBookmark(ctx context.Context, messageID string) error {
	snap := p.states.State()
	if snap.Current == nil {
		return chatengine.ErrNoConversation
	}

	index := -1
	for i := range snap.History {
		if snap.History[i].ID == messageID {
			index = i
			break
		}
	}
	if index < 0 {
		p.logger.Error("bookmark target not found", "message_id", messageID)
		return chatengine.ErrMessageNotFound
	}

	after, handle := p.mutations.run(p.states,
		state.ToggleBookmark{Index: index},
		state.ToggleBookmark{Index: index})

	if err := p.conversations.UpdateMessages(ctx, snap.Current.ID, after.History); err != nil {
		p.mutations.rollback(p.states)
		p.notify(state.NoticePersistence, noticeSaveFailed)
		return fmt.Errorf("%w: persist bookmark: %v", chatengine.ErrPersistence, err)
	}
	p.mutations.commit(handle)
	return nil
}

// ToggleStar flips the current conversation's star, optimistically.
func (p *Pipeline) ToggleStar(ctx context.Context) error {
	snap := p.states.State()
	if snap.Current == nil {
		return chatengine.ErrNoConversation
	}

	after, handle := p.mutations.run(p.states, state.ToggleStar{}, state.ToggleStar{})

	if err := p.conversations.UpdateField(ctx, snap.Current.ID, store.FieldStarred, after.Current.Starred); err != nil {
		p.mutations.rollback(p.states)
		p.notify(state.NoticePersistence, noticeSaveFailed)
		return fmt.Errorf("%w: persist star: %v", chatengine.ErrPersistence, err)
	}
	p.mutations.commit(handle)
	return nil
}

// Rename retitles a conversation, optimistically. The compensation
// title comes from the summary list, or from the current selection when
// the list has not been refreshed yet.
func (p *Pipeline) Rename(ctx context.Context, conversationID, title string) error {
	snap := p.states.State()
	previous := ""
	found := false
	for _, sum := range snap.Summaries {
		if sum.ID == conversationID {
			previous = sum.Title
			found = true
		}
	}
	if !found && snap.Current != nil && snap.Current.ID == conversationID {
		previous = snap.Current.Title
	}

	_, handle := p.mutations.run(p.states,
		state.RenameConversation{ID: conversationID, Title: title},
		state.RenameConversation{ID: conversationID, Title: previous})
	p.states.Dispatch(state.CancelEditTitle{})

	if err := p.conversations.UpdateField(ctx, conversationID, store.FieldTitle, title); err != nil {
		p.mutations.rollback(p.states)
		p.notify(state.NoticePersistence, noticeSaveFailed)
		return fmt.Errorf("%w: persist title: %v", chatengine.ErrPersistence, err)
	}
	p.mutations.commit(handle)
	return nil
}

// Retag overwrites a conversation's tag set, optimistically.
func (p *Pipeline) Retag(ctx context.Context, conversationID string, tags []string) error {
	snap := p.states.State()
	var previous []string
	found := false
	for _, sum := range snap.Summaries {
		if sum.ID == conversationID {
			previous = sum.Tags
			found = true
		}
	}
	if !found && snap.Current != nil && snap.Current.ID == conversationID {
		previous = snap.Current.Tags
	}

	_, handle := p.mutations.run(p.states,
		state.SetTags{ID: conversationID, Tags: tags},
		state.SetTags{ID: conversationID, Tags: previous})

	if err := p.conversations.UpdateField(ctx, conversationID, store.FieldTags, tags); err != nil {
		p.mutations.rollback(p.states)
		p.notify(state.NoticePersistence, noticeSaveFailed)
		return fmt.Errorf("%w: persist tags: %v", chatengine.ErrPersistence, err)
	}
	p.mutations.commit(handle)
	return nil
}

// Delete removes a conversation remotely, then locally. Remote first:
// there is no compensating action that restores a deleted record. A
// reveal in progress belongs to the current selection and is only
// cancelled when that is the conversation being deleted.
func (p *Pipeline) Delete(ctx context.Context, conversationID string) error {
	if err := p.conversations.Delete(ctx, conversationID); err != nil {
		p.notify(state.NoticePersistence, noticeSaveFailed)
		return fmt.Errorf("%w: delete conversation: %v", chatengine.ErrPersistence, err)
	}
	snap := p.states.State()
	if snap.Current != nil && snap.Current.ID == conversationID {
		p.revealer.Cancel()
		p.states.Dispatch(state.SetTyping{Typing: false})
	}
	p.states.Dispatch(state.DeleteConversation{ID: conversationID})
	return nil
}

// Select loads a conversation and makes it current. Any reveal in
// progress belongs to the previous selection and is cancelled.
func (p *Pipeline) Select(ctx context.Context, conversationID string) error {
	conv, err := p.conversations.Get(ctx, conversationID)
	if err != nil {
		p.notify(state.NoticePersistence, noticeSaveFailed)
		return fmt.Errorf("%w: load conversation: %v", chatengine.ErrPersistence, err)
	}

	p.revealer.Cancel()
	p.states.Dispatch(state.SetTyping{Typing: false})
	p.states.Dispatch(state.SetReveal{Text: ""})
	p.states.Dispatch(state.SetCurrent{Conversation: *conv})
	return nil
}

// StartNew clears the selection for a fresh conversation. The next
// Submit will create it remotely.
func (p *Pipeline) StartNew() {
	p.revealer.Cancel()
	p.states.Dispatch(state.NewConversation{})
}

// Refresh reloads the conversation summary list and marks the client
// ready.
func (p *Pipeline) Refresh(ctx context.Context) error {
	p.mu.Lock()
	userID := p.userID
	p.mu.Unlock()

	summaries, err := p.conversations.List(ctx, userID)
	if err != nil {
		p.notify(state.NoticePersistence, noticeSaveFailed)
		return fmt.Errorf("%w: list conversations: %v", chatengine.ErrPersistence, err)
	}
	p.states.Dispatch(state.SetSummaries{Summaries: summaries})
	p.states.Dispatch(state.SetPhase{Phase: state.PhaseReady})
	return nil
}

// HandleSessionInvalid is the session watch callback: it clears all
// conversation state and surfaces the sign-out notice. A pipeline whose
// user was already released (mid-logout) does nothing; the watch has
// already been detached by the monitor before this runs.
func (p *Pipeline) HandleSessionInvalid() {
	p.mu.Lock()
	userID := p.userID
	p.mu.Unlock()
	if userID == "" {
		return
	}

	p.revealer.Cancel()
	p.states.Dispatch(state.ClearAll{})
	p.states.Dispatch(state.SetNotice{Kind: state.NoticeSession, Text: noticeSignedOut})
	p.logger.Info("local session cleared", "user_id", userID)
}

// Logout releases the user so a racing invalidation becomes a no-op,
// and clears local state.
func (p *Pipeline) Logout() {
	p.mu.Lock()
	p.userID = ""
	p.authToken = ""
	p.mu.Unlock()

	p.revealer.Cancel()
	p.states.Dispatch(state.ClearAll{})
}

// publishReveal is the revealer sink: it republishes each prefix as the
// display buffer and drops the typing flag on the final one.
func (p *Pipeline) publishReveal(prefix string, done bool) {
	p.states.Dispatch(state.SetReveal{Text: prefix})
	if done {
		p.states.Dispatch(state.SetTyping{Typing: false})
	}
}

func (p *Pipeline) notify(kind state.NoticeKind, text string) {
	p.states.Dispatch(state.SetNotice{Kind: kind, Text: text})
}

func msDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
