package pipeline

import (
	"sync"

	"github.com/aviationai/chatengine/state"
)

// mutation pairs an optimistic action with the action that undoes it.
type mutation struct {
	id         uint64
	apply      state.Action
	compensate state.Action
}

// mutationLog tracks optimistic mutations that have been applied locally
// but not yet confirmed by persistence. Each entry is identified by the
// handle run returns; commit removes exactly its caller's entry, so one
// operation's success can never drop another in-flight operation's
// pending compensation. Rollback replays compensating actions in strict
// LIFO order, so undo never depends on an action being its own inverse.
type mutationLog struct {
	mu      sync.Mutex
	nextID  uint64
	pending []mutation
}

// run records the pair, applies the optimistic action, and returns the
// post-apply snapshot plus the handle commit needs.
func (l *mutationLog) run(st *state.Store, apply, compensate state.Action) (state.State, uint64) {
	l.mu.Lock()
	l.nextID++
	id := l.nextID
	l.pending = append(l.pending, mutation{id: id, apply: apply, compensate: compensate})
	l.mu.Unlock()
	return st.Dispatch(apply), id
}

// commit drops the entry run handed out as id, after persistence
// confirmed it.
func (l *mutationLog) commit(id uint64) {
	l.mu.Lock()
	for i := range l.pending {
		if l.pending[i].id == id {
			l.pending = append(l.pending[:i], l.pending[i+1:]...)
			break
		}
	}
	l.mu.Unlock()
}

// rollback undoes every pending mutation, most recent first.
func (l *mutationLog) rollback(st *state.Store) {
	l.mu.Lock()
	pending := l.pending
	l.pending = nil
	l.mu.Unlock()

	for i := len(pending) - 1; i >= 0; i-- {
		st.Dispatch(pending[i].compensate)
	}
}
