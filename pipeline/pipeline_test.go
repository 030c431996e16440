package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aviationai/chatengine"
	"github.com/aviationai/chatengine/completion"
	"github.com/aviationai/chatengine/state"
	"github.com/aviationai/chatengine/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCompleter returns a scripted reply, optionally failing or running
// a hook while the "request" is in flight.
type fakeCompleter struct {
	mu     sync.Mutex
	reply  string
	err    error
	onCall func()
	block  chan struct{}
	calls  int
}

func (f *fakeCompleter) Complete(ctx context.Context, req *completion.Request) (*completion.Result, error) {
	f.mu.Lock()
	f.calls++
	reply, err, hook, block := f.reply, f.err, f.onCall, f.block
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &completion.Result{Text: reply}, nil
}

func (f *fakeCompleter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// flakyStore wraps a real store with per-method failure injection.
type flakyStore struct {
	store.Store
	mu              sync.Mutex
	failCreate      bool
	failUpdateMsgs  int
	failUpdateField int
	updateMsgCalls  int
}

func (f *flakyStore) Create(ctx context.Context, conv *chatengine.Conversation) (string, error) {
	f.mu.Lock()
	fail := f.failCreate
	f.mu.Unlock()
	if fail {
		return "", errors.New("injected create failure")
	}
	return f.Store.Create(ctx, conv)
}

func (f *flakyStore) UpdateMessages(ctx context.Context, id string, messages []chatengine.Message) error {
	f.mu.Lock()
	f.updateMsgCalls++
	fail := f.failUpdateMsgs > 0
	if fail {
		f.failUpdateMsgs--
	}
	f.mu.Unlock()
	if fail {
		return errors.New("injected update failure")
	}
	return f.Store.UpdateMessages(ctx, id, messages)
}

func (f *flakyStore) UpdateField(ctx context.Context, id string, field store.Field, value any) error {
	f.mu.Lock()
	fail := f.failUpdateField > 0
	if fail {
		f.failUpdateField--
	}
	f.mu.Unlock()
	if fail {
		return errors.New("injected field failure")
	}
	return f.Store.UpdateField(ctx, id, field, value)
}

// gatedStore pauses every UpdateField call until the test releases it,
// so two management operations can be held in flight at once.
type gatedStore struct {
	store.Store
	fieldCalls chan *gatedCall
}

type gatedCall struct {
	release chan error
}

func (g *gatedStore) UpdateField(ctx context.Context, id string, field store.Field, value any) error {
	call := &gatedCall{release: make(chan error)}
	g.fieldCalls <- call
	if err := <-call.release; err != nil {
		return err
	}
	return g.Store.UpdateField(ctx, id, field, value)
}

func newTestPipeline(t *testing.T, completer completion.Completer) (*Pipeline, *flakyStore) {
	t.Helper()
	conversations, err := store.NewStore(store.StoreTypeMemory)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conversations.Close() })

	flaky := &flakyStore{Store: conversations}
	p := New(state.NewStore(), flaky, completer, "pilot-7", "auth-token",
		WithRevealDelayRange(0, 1))
	return p, flaky
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal(msg)
}

func TestSubmitCreatesConversationAndReveals(t *testing.T) {
	completer := &fakeCompleter{reply: "A METAR is a routine aerodrome weather report."}
	p, _ := newTestPipeline(t, completer)
	ctx := context.Background()

	require.NoError(t, p.Submit(ctx, "What is a METAR?"))

	snap := p.States().State()
	require.NotNil(t, snap.Current)
	assert.Equal(t, "What is a METAR?", snap.Current.Title)
	require.Len(t, snap.History, 2)
	assert.Equal(t, chatengine.RoleUser, snap.History[0].Role)
	assert.Equal(t, chatengine.RoleAssistant, snap.History[1].Role)
	assert.Equal(t, completer.reply, snap.History[1].Content)
	assert.False(t, snap.IsLoading)
	require.Len(t, snap.Summaries, 1)
	assert.Equal(t, "What is a METAR?", snap.Summaries[0].Title)

	waitFor(t, func() bool {
		s := p.States().State()
		return !s.IsTyping && s.Reveal == completer.reply
	}, "reveal must end with the full text displayed and isTyping false")
}

func TestSubmitPersistsToExistingConversation(t *testing.T) {
	completer := &fakeCompleter{reply: "Roger."}
	p, flaky := newTestPipeline(t, completer)
	ctx := context.Background()

	require.NoError(t, p.Submit(ctx, "first question"))
	waitFor(t, func() bool { return !p.States().State().IsTyping }, "first reveal")
	firstID := p.States().State().Current.ID

	require.NoError(t, p.Submit(ctx, "second question"))
	snap := p.States().State()
	assert.Equal(t, firstID, snap.Current.ID, "no second conversation is created")
	assert.Len(t, snap.History, 4)

	stored, err := flaky.Get(ctx, firstID)
	require.NoError(t, err)
	assert.Len(t, stored.Messages, 4)
}

func TestSubmitRejectsEmptyInput(t *testing.T) {
	p, _ := newTestPipeline(t, &fakeCompleter{reply: "x"})
	assert.ErrorIs(t, p.Submit(context.Background(), "   \n"), chatengine.ErrEmptyInput)
}

func TestSubmitRejectsReentrantCalls(t *testing.T) {
	block := make(chan struct{})
	completer := &fakeCompleter{reply: "slow answer", block: block}
	p, flaky := newTestPipeline(t, completer)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- p.Submit(ctx, "first") }()

	waitFor(t, func() bool { return completer.callCount() == 1 }, "first submit reaches the completer")

	err := p.Submit(ctx, "second while first is pending")
	assert.ErrorIs(t, err, chatengine.ErrSubmissionInFlight)

	close(block)
	require.NoError(t, <-done)

	snap := p.States().State()
	assert.Len(t, snap.History, 2, "the rejected submit must not append a message")
	assert.Equal(t, 1, completer.callCount())
	flaky.mu.Lock()
	assert.Equal(t, 1, flaky.updateMsgCalls, "the rejected submit must not persist")
	flaky.mu.Unlock()
}

func TestSubmitCreateFailureKeepsOptimisticMessage(t *testing.T) {
	completer := &fakeCompleter{reply: "never reached"}
	p, flaky := newTestPipeline(t, completer)
	flaky.failCreate = true

	err := p.Submit(context.Background(), "doomed question")
	assert.ErrorIs(t, err, chatengine.ErrPersistence)

	snap := p.States().State()
	require.Len(t, snap.History, 1, "typed content is not lost")
	assert.Equal(t, "doomed question", snap.History[0].Content)
	assert.Nil(t, snap.Current, "no conversation was created")
	require.NotNil(t, snap.Notice)
	assert.Equal(t, state.NoticePersistence, snap.Notice.Kind)
	assert.False(t, snap.IsLoading)
	assert.Equal(t, 0, completer.callCount(), "the pipeline aborts before the completion call")
}

func TestSubmitCompletionFailure(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("upstream unavailable")}
	p, _ := newTestPipeline(t, completer)

	err := p.Submit(context.Background(), "question")
	assert.ErrorIs(t, err, chatengine.ErrCompletion)

	snap := p.States().State()
	require.Len(t, snap.History, 1, "the user message stays; it was persisted in step 2")
	require.NotNil(t, snap.Notice)
	assert.Equal(t, state.NoticeCompletion, snap.Notice.Kind)
	assert.False(t, snap.IsLoading, "the user can retry")
	assert.False(t, snap.IsTyping)
}

func TestSubmitSecondPersistFailureKeepsTranscript(t *testing.T) {
	completer := &fakeCompleter{reply: "an answer worth keeping"}
	p, flaky := newTestPipeline(t, completer)
	ctx := context.Background()

	require.NoError(t, p.Submit(ctx, "first"))
	waitFor(t, func() bool { return !p.States().State().IsTyping }, "first reveal")

	flaky.mu.Lock()
	flaky.failUpdateMsgs = 1
	flaky.mu.Unlock()

	err := p.Submit(ctx, "second")
	assert.ErrorIs(t, err, chatengine.ErrPersistence)

	snap := p.States().State()
	assert.Len(t, snap.History, 3, "step-2 persistence failed but the optimistic append is kept")
	require.NotNil(t, snap.Notice)
	assert.Equal(t, state.NoticePersistence, snap.Notice.Kind)
}

func TestSubmitDiscardsLateResultForSupersededConversation(t *testing.T) {
	completer := &fakeCompleter{reply: "late answer"}
	p, _ := newTestPipeline(t, completer)
	ctx := context.Background()

	// Switch away while the completion request is in flight.
	completer.onCall = func() { p.StartNew() }

	require.NoError(t, p.Submit(ctx, "question for the first conversation"))

	snap := p.States().State()
	assert.Nil(t, snap.Current)
	assert.Empty(t, snap.History, "the late result must not be appended to the wrong transcript")
	assert.False(t, snap.IsTyping)
}

func TestToggleBookmarkRoundTrip(t *testing.T) {
	completer := &fakeCompleter{reply: "bookmark me"}
	p, flaky := newTestPipeline(t, completer)
	ctx := context.Background()

	require.NoError(t, p.Submit(ctx, "question"))
	waitFor(t, func() bool { return !p.States().State().IsTyping }, "reveal")

	snap := p.States().State()
	target := snap.History[1]

	require.NoError(t, p.ToggleBookmark(ctx, target.ID))
	assert.True(t, p.States().State().History[1].Bookmarked)

	stored, err := flaky.Get(ctx, snap.Current.ID)
	require.NoError(t, err)
	assert.True(t, stored.Messages[1].Bookmarked, "the toggle was persisted")

	require.NoError(t, p.ToggleBookmark(ctx, target.ID))
	assert.False(t, p.States().State().History[1].Bookmarked, "toggling twice restores the original value")
}

func TestToggleBookmarkRollsBackOnPersistenceFailure(t *testing.T) {
	completer := &fakeCompleter{reply: "bookmark me"}
	p, flaky := newTestPipeline(t, completer)
	ctx := context.Background()

	require.NoError(t, p.Submit(ctx, "question"))
	waitFor(t, func() bool { return !p.States().State().IsTyping }, "reveal")

	before := p.States().State()
	target := before.History[0]

	flaky.mu.Lock()
	flaky.failUpdateMsgs = 1
	flaky.mu.Unlock()

	err := p.ToggleBookmark(ctx, target.ID)
	assert.ErrorIs(t, err, chatengine.ErrPersistence)

	after := p.States().State()
	assert.Equal(t, before.History, after.History, "rollback leaves local state equal to the pre-toggle state")
}

func TestToggleBookmarkUnknownID(t *testing.T) {
	completer := &fakeCompleter{reply: "x"}
	p, _ := newTestPipeline(t, completer)
	ctx := context.Background()

	require.NoError(t, p.Submit(ctx, "question"))
	waitFor(t, func() bool { return !p.States().State().IsTyping }, "reveal")

	err := p.ToggleBookmark(ctx, "no-such-id")
	assert.ErrorIs(t, err, chatengine.ErrMessageNotFound)
	assert.Nil(t, p.States().State().Notice, "a missed toggle is invisible to the user")
}

func TestToggleStarAndRollback(t *testing.T) {
	completer := &fakeCompleter{reply: "x"}
	p, flaky := newTestPipeline(t, completer)
	ctx := context.Background()

	require.NoError(t, p.Submit(ctx, "question"))
	waitFor(t, func() bool { return !p.States().State().IsTyping }, "reveal")

	require.NoError(t, p.ToggleStar(ctx))
	snap := p.States().State()
	assert.True(t, snap.Current.Starred)
	assert.True(t, snap.Summaries[0].Starred)

	flaky.mu.Lock()
	flaky.failUpdateField = 1
	flaky.mu.Unlock()

	err := p.ToggleStar(ctx)
	assert.ErrorIs(t, err, chatengine.ErrPersistence)
	snap = p.States().State()
	assert.True(t, snap.Current.Starred, "failed toggle is compensated")
}

func TestRenameAndDelete(t *testing.T) {
	completer := &fakeCompleter{reply: "x"}
	p, flaky := newTestPipeline(t, completer)
	ctx := context.Background()

	require.NoError(t, p.Submit(ctx, "question about holding patterns"))
	waitFor(t, func() bool { return !p.States().State().IsTyping }, "reveal")
	id := p.States().State().Current.ID

	require.NoError(t, p.Rename(ctx, id, "Holding patterns"))
	snap := p.States().State()
	assert.Equal(t, "Holding patterns", snap.Current.Title)
	assert.Equal(t, "Holding patterns", snap.Summaries[0].Title)

	stored, err := flaky.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Holding patterns", stored.Title)

	require.NoError(t, p.Delete(ctx, id))
	snap = p.States().State()
	assert.Nil(t, snap.Current)
	assert.Empty(t, snap.Summaries)
	_, err = flaky.Get(ctx, id)
	assert.ErrorIs(t, err, chatengine.ErrNotFound)
}

func TestInterleavedOperationsCompensateIndependently(t *testing.T) {
	completer := &fakeCompleter{reply: "x"}
	conversations, err := store.NewStore(store.StoreTypeMemory)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conversations.Close() })
	gated := &gatedStore{Store: conversations, fieldCalls: make(chan *gatedCall)}
	p := New(state.NewStore(), gated, completer, "pilot-7", "auth-token",
		WithRevealDelayRange(0, 1))
	ctx := context.Background()

	require.NoError(t, p.Submit(ctx, "original title"))
	waitFor(t, func() bool { return !p.States().State().IsTyping }, "reveal")
	id := p.States().State().Current.ID

	// Hold a star and a rename in flight at the same time.
	starDone := make(chan error, 1)
	go func() { starDone <- p.ToggleStar(ctx) }()
	starCall := <-gated.fieldCalls

	renameDone := make(chan error, 1)
	go func() { renameDone <- p.Rename(ctx, id, "new title") }()
	renameCall := <-gated.fieldCalls

	// The star persists; the rename fails afterwards.
	starCall.release <- nil
	require.NoError(t, <-starDone)

	renameCall.release <- errors.New("injected field failure")
	assert.ErrorIs(t, <-renameDone, chatengine.ErrPersistence)

	snap := p.States().State()
	assert.True(t, snap.Current.Starred, "a persisted star must not be reverted by another operation's failure")
	assert.Equal(t, "original title", snap.Current.Title, "the failed rename must be compensated")
}

func TestRenameRollbackBeforeSummariesLoaded(t *testing.T) {
	completer := &fakeCompleter{reply: "x"}
	p, flaky := newTestPipeline(t, completer)
	ctx := context.Background()

	require.NoError(t, p.Submit(ctx, "original title"))
	waitFor(t, func() bool { return !p.States().State().IsTyping }, "reveal")
	id := p.States().State().Current.ID

	// Selection exists but the summary list is empty, as before a Refresh.
	p.States().Dispatch(state.SetSummaries{})

	flaky.mu.Lock()
	flaky.failUpdateField = 1
	flaky.mu.Unlock()

	err := p.Rename(ctx, id, "won't stick")
	assert.ErrorIs(t, err, chatengine.ErrPersistence)
	assert.Equal(t, "original title", p.States().State().Current.Title,
		"compensation falls back to the selection's title, never an empty one")
}

func TestDeleteOtherConversationKeepsReveal(t *testing.T) {
	completer := &fakeCompleter{reply: "a reply long enough to still be revealing when the delete lands"}
	conversations, err := store.NewStore(store.StoreTypeMemory)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conversations.Close() })
	p := New(state.NewStore(), conversations, completer, "pilot-7", "auth-token",
		WithRevealDelayRange(4, 5))
	ctx := context.Background()

	require.NoError(t, p.Submit(ctx, "first question"))
	waitFor(t, func() bool { return !p.States().State().IsTyping }, "first reveal")
	firstID := p.States().State().Current.ID

	p.StartNew()
	require.NoError(t, p.Submit(ctx, "second question"))

	require.NoError(t, p.Delete(ctx, firstID))
	assert.True(t, p.States().State().IsTyping, "deleting another conversation must not stop the reveal")

	waitFor(t, func() bool {
		s := p.States().State()
		return !s.IsTyping && s.Reveal == completer.reply
	}, "the reveal must run to completion")

	snap := p.States().State()
	require.NotNil(t, snap.Current)
	assert.Equal(t, "second question", snap.Current.Title)
	assert.Len(t, snap.Summaries, 1)
}

func TestRenameRollbackRestoresPreviousTitle(t *testing.T) {
	completer := &fakeCompleter{reply: "x"}
	p, flaky := newTestPipeline(t, completer)
	ctx := context.Background()

	require.NoError(t, p.Submit(ctx, "original title source"))
	waitFor(t, func() bool { return !p.States().State().IsTyping }, "reveal")
	id := p.States().State().Current.ID

	flaky.mu.Lock()
	flaky.failUpdateField = 1
	flaky.mu.Unlock()

	err := p.Rename(ctx, id, "won't stick")
	assert.ErrorIs(t, err, chatengine.ErrPersistence)
	assert.Equal(t, "original title source", p.States().State().Current.Title)
}

func TestSelectLoadsConversation(t *testing.T) {
	completer := &fakeCompleter{reply: "x"}
	p, flaky := newTestPipeline(t, completer)
	ctx := context.Background()

	require.NoError(t, p.Submit(ctx, "question"))
	waitFor(t, func() bool { return !p.States().State().IsTyping }, "reveal")
	id := p.States().State().Current.ID

	p.StartNew()
	assert.Nil(t, p.States().State().Current)

	require.NoError(t, p.Select(ctx, id))
	snap := p.States().State()
	require.NotNil(t, snap.Current)
	assert.Equal(t, id, snap.Current.ID)
	assert.Len(t, snap.History, 2)
	_ = flaky
}

func TestRefreshLoadsSummaries(t *testing.T) {
	completer := &fakeCompleter{reply: "x"}
	p, _ := newTestPipeline(t, completer)
	ctx := context.Background()

	require.NoError(t, p.Submit(ctx, "one"))
	waitFor(t, func() bool { return !p.States().State().IsTyping }, "reveal")

	require.NoError(t, p.Refresh(ctx))
	snap := p.States().State()
	assert.Len(t, snap.Summaries, 1)
	assert.Equal(t, state.PhaseReady, snap.Phase)
}

func TestHandleSessionInvalidClearsEverything(t *testing.T) {
	completer := &fakeCompleter{reply: "x"}
	p, _ := newTestPipeline(t, completer)
	ctx := context.Background()

	require.NoError(t, p.Submit(ctx, "question"))
	waitFor(t, func() bool { return !p.States().State().IsTyping }, "reveal")

	p.HandleSessionInvalid()

	snap := p.States().State()
	assert.Nil(t, snap.Current)
	assert.Empty(t, snap.History)
	require.NotNil(t, snap.Notice)
	assert.Equal(t, state.NoticeSession, snap.Notice.Kind)
}

func TestHandleSessionInvalidAfterLogoutIsNoop(t *testing.T) {
	completer := &fakeCompleter{reply: "x"}
	p, _ := newTestPipeline(t, completer)

	p.Logout()
	p.HandleSessionInvalid()

	snap := p.States().State()
	assert.Nil(t, snap.Notice, "no sign-out notice when no user was held")
}
