package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aviationai/chatengine"
)

// Watch states. A watch is a two-state machine: it observes records while
// active, and invalidation is terminal.
const (
	watchActive int32 = iota
	watchInvalidated
)

// Monitor creates session tokens at login and watches the shared session
// record so a superseded login can invalidate itself. There is no
// explicit "kick" message; the only signal is overwrite plus observation.
type Monitor struct {
	store  Store
	logger *slog.Logger
}

// NewMonitor wraps a session record store. A nil logger falls back to
// slog.Default().
func NewMonitor(store Store, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{store: store, logger: logger}
}

// StartSession generates a fresh token and overwrites the user's session
// record with it. Any client watching the previous record will observe
// the mismatch and invalidate.
func (m *Monitor) StartSession(ctx context.Context, userID, fingerprint string) (string, error) {
	token := NewToken()
	record := &Record{
		UserID:       userID,
		Token:        token,
		LastActiveAt: time.Now(),
		Fingerprint:  fingerprint,
	}
	if err := m.store.Write(ctx, record); err != nil {
		return "", fmt.Errorf("%w: write session record: %v", chatengine.ErrPersistence, err)
	}
	m.logger.Debug("session started", "user_id", userID)
	return token, nil
}

// Watch observes the user's session record and calls onInvalid exactly
// once when the record is absent or its token no longer matches
// expectedToken. The watch detaches itself before onInvalid runs, so a
// racing second observation can never produce a duplicate invalidation.
// The returned function stops the watch without invoking onInvalid.
func (m *Monitor) Watch(ctx context.Context, userID, expectedToken string, onInvalid func()) (func(), error) {
	w := &watch{}

	onChange := func(record *Record) {
		if record != nil && record.Token == expectedToken {
			return
		}
		// The transition is guarded by a single compare-and-swap; the
		// loser of any race sees invalidated and returns.
		if !w.state.CompareAndSwap(watchActive, watchInvalidated) {
			return
		}
		w.detach()
		m.logger.Info("session invalidated", "user_id", userID)
		if onInvalid != nil {
			onInvalid()
		}
	}

	unsubscribe, err := m.store.Observe(ctx, userID, onChange)
	if err != nil {
		return nil, fmt.Errorf("%w: observe session record: %v", chatengine.ErrPersistence, err)
	}

	// The initial observation fires inside Observe; if it already
	// invalidated the watch, the handle was not yet registered and must
	// be released here.
	if !w.arm(unsubscribe) {
		unsubscribe()
	}

	return func() {
		if w.state.CompareAndSwap(watchActive, watchInvalidated) {
			w.detach()
		}
	}, nil
}

// watch tracks one observed session record.
type watch struct {
	state       atomic.Int32
	mu          sync.Mutex
	unsubscribe func()
}

// arm registers the store unsubscribe handle. Returns false when the
// watch was invalidated before the handle existed.
func (w *watch) arm(unsubscribe func()) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state.Load() != watchActive {
		return false
	}
	w.unsubscribe = unsubscribe
	return true
}

// detach releases the store subscription, at most once.
func (w *watch) detach() {
	w.mu.Lock()
	unsubscribe := w.unsubscribe
	w.unsubscribe = nil
	w.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}
