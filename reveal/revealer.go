// Package reveal implements the typing animation: progressive,
// time-paced display of an already-fully-available string.
package reveal

import (
	"math/rand/v2"
	"sync"
	"time"
)

const (
	defaultMinDelay = 3 * time.Millisecond
	defaultMaxDelay = 9 * time.Millisecond
)

// Sink receives each published prefix. done is true exactly once, when
// the prefix has reached the full text.
type Sink func(prefix string, done bool)

// Option configures a Revealer.
type Option func(*Revealer)

// WithDelayRange tunes the randomized per-advance delay.
func WithDelayRange(min, max time.Duration) Option {
	return func(r *Revealer) {
		r.minDelay = min
		r.maxDelay = max
	}
}

// Revealer reveals text one rune at a time through its sink. At most one
// reveal runs at a time: starting a new one cancels the previous one
// first.
type Revealer struct {
	sink     Sink
	minDelay time.Duration
	maxDelay time.Duration

	mu     sync.Mutex
	active *task
}

// New creates a revealer publishing through sink.
func New(sink Sink, opts ...Option) *Revealer {
	r := &Revealer{
		sink:     sink,
		minDelay: defaultMinDelay,
		maxDelay: defaultMaxDelay,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reveal starts revealing fullText and returns a cancel handle. Any
// reveal already in progress is cancelled before the new one starts.
// After the handle returns, no further prefix is published.
func (r *Revealer) Reveal(fullText string) func() {
	t := &task{}

	r.mu.Lock()
	if r.active != nil {
		r.active.cancel()
	}
	r.active = t
	r.mu.Unlock()

	go r.run(t, fullText)

	return t.cancel
}

// Cancel stops the active reveal, if any.
func (r *Revealer) Cancel() {
	r.mu.Lock()
	t := r.active
	r.mu.Unlock()
	if t != nil {
		t.cancel()
	}
}

// run advances the cursor one rune per randomized tick. The cancelled
// flag is checked under the task lock before every publish, so a cancel
// that has returned can never be followed by another advance.
func (r *Revealer) run(t *task, fullText string) {
	runes := []rune(fullText)
	for cursor := 1; cursor <= len(runes); cursor++ {
		if !t.emit(r.sink, string(runes[:cursor]), cursor == len(runes)) {
			return
		}
		if cursor < len(runes) {
			if !t.sleep(r.tickDelay()) {
				return
			}
		}
	}
	if len(runes) == 0 {
		t.emit(r.sink, "", true)
	}

	r.mu.Lock()
	if r.active == t {
		r.active = nil
	}
	r.mu.Unlock()
}

func (r *Revealer) tickDelay() time.Duration {
	spread := r.maxDelay - r.minDelay
	if spread <= 0 {
		return r.minDelay
	}
	return r.minDelay + time.Duration(rand.Int64N(int64(spread)))
}

// task is one reveal in flight.
type task struct {
	mu        sync.Mutex
	cancelled bool
	stop      chan struct{}
	stopOnce  sync.Once
}

func (t *task) cancel() {
	t.mu.Lock()
	t.cancelled = true
	t.mu.Unlock()
	t.closeStop()
}

// emit publishes one prefix unless the task was cancelled. Returns false
// when the task should stop.
func (t *task) emit(sink Sink, prefix string, done bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelled {
		return false
	}
	sink(prefix, done)
	return true
}

// sleep waits for d or until the task is cancelled. Returns false on
// cancellation.
func (t *task) sleep(d time.Duration) bool {
	t.mu.Lock()
	if t.stop == nil {
		t.stop = make(chan struct{})
	}
	stop := t.stop
	cancelled := t.cancelled
	t.mu.Unlock()
	if cancelled {
		return false
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-stop:
		return false
	case <-timer.C:
		return true
	}
}

func (t *task) closeStop() {
	t.mu.Lock()
	if t.stop == nil {
		t.stop = make(chan struct{})
	}
	stop := t.stop
	t.mu.Unlock()
	t.stopOnce.Do(func() { close(stop) })
}
