package state

import "sync"

// Store holds the canonical State and serializes all dispatched actions.
// Dispatch applies the reducer synchronously, so UI-dispatched actions
// are trivially ordered relative to each other; it makes no promise about
// in-flight network calls started by earlier actions.
type Store struct {
	mu      sync.RWMutex
	state   State
	subs    map[int]func(State)
	nextSub int
}

// NewStore returns a store holding the initial state.
func NewStore() *Store {
	return &Store{
		state: NewState(),
		subs:  make(map[int]func(State)),
	}
}

// Dispatch applies one action and notifies subscribers with the resulting
// snapshot. It returns the snapshot for callers that need the post-action
// view without a second read.
func (st *Store) Dispatch(a Action) State {
	st.mu.Lock()
	st.state = Reduce(st.state, a)
	snapshot := st.state.clone()
	subs := make([]func(State), 0, len(st.subs))
	for _, fn := range st.subs {
		subs = append(subs, fn)
	}
	st.mu.Unlock()

	for _, fn := range subs {
		fn(snapshot)
	}
	return snapshot
}

// State returns a snapshot of the current state. The snapshot is a copy;
// mutating it cannot affect the store.
func (st *Store) State() State {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.state.clone()
}

// Subscribe registers fn to receive every post-dispatch snapshot. The
// returned function removes the subscription.
func (st *Store) Subscribe(fn func(State)) func() {
	st.mu.Lock()
	id := st.nextSub
	st.nextSub++
	st.subs[id] = fn
	st.mu.Unlock()

	return func() {
		st.mu.Lock()
		delete(st.subs, id)
		st.mu.Unlock()
	}
}
