package session

import (
	"context"
	"sync"
)

// memoryStore implements Store using an in-memory map with per-user
// observer lists. Used in tests and single-process deployments.
type memoryStore struct {
	mu        sync.Mutex
	records   map[string]*Record
	observers map[string]map[int]func(*Record)
	nextObs   int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		records:   make(map[string]*Record),
		observers: make(map[string]map[int]func(*Record)),
	}
}

// Write implements Store. Observers of the user fire synchronously with
// a copy of the new record.
func (s *memoryStore) Write(ctx context.Context, record *Record) error {
	s.mu.Lock()
	rec := *record
	s.records[record.UserID] = &rec
	fns := s.observerList(record.UserID)
	s.mu.Unlock()

	for _, fn := range fns {
		copied := rec
		fn(&copied)
	}
	return nil
}

// Get implements Store. Returns nil if no record exists.
func (s *memoryStore) Get(ctx context.Context, userID string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.records[userID]
	if !exists {
		return nil, nil
	}
	copied := *rec
	return &copied, nil
}

// Delete implements Store. Observers fire with nil.
func (s *memoryStore) Delete(ctx context.Context, userID string) error {
	s.mu.Lock()
	delete(s.records, userID)
	fns := s.observerList(userID)
	s.mu.Unlock()

	for _, fn := range fns {
		fn(nil)
	}
	return nil
}

// Observe implements Store. The initial callback fires before Observe
// returns.
func (s *memoryStore) Observe(ctx context.Context, userID string, fn func(*Record)) (func(), error) {
	s.mu.Lock()
	id := s.nextObs
	s.nextObs++
	if s.observers[userID] == nil {
		s.observers[userID] = make(map[int]func(*Record))
	}
	s.observers[userID][id] = fn
	var initial *Record
	if rec, exists := s.records[userID]; exists {
		copied := *rec
		initial = &copied
	}
	s.mu.Unlock()

	fn(initial)

	return func() {
		s.mu.Lock()
		delete(s.observers[userID], id)
		s.mu.Unlock()
	}, nil
}

// Close implements Store.
func (s *memoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = nil
	s.observers = nil
	return nil
}

// observerList snapshots the observer callbacks for a user. Caller must
// hold s.mu.
func (s *memoryStore) observerList(userID string) []func(*Record) {
	fns := make([]func(*Record), 0, len(s.observers[userID]))
	for _, fn := range s.observers[userID] {
		fns = append(fns, fn)
	}
	return fns
}
