package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// Redis key prefix for session records
	sessionKeyPrefix = "session:user:"
	// Redis pub/sub channel prefix for session change events
	sessionChannelPrefix = "session:events:"
	// Payload published when a record is deleted
	deletedPayload = "deleted"
)

// redisStore implements Store using Redis. Writes are whole-record SETs
// followed by a publish on the user's event channel, which is what makes
// Observe a continuous watch across processes.
type redisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// Write implements Store.
func (s *redisStore) Write(ctx context.Context, record *Record) error {
	key := sessionKeyPrefix + record.UserID

	val, err := json.Marshal(record)
	if err != nil {
		return err
	}

	if err := s.client.Set(ctx, key, val, s.ttl).Err(); err != nil {
		return err
	}
	return s.client.Publish(ctx, sessionChannelPrefix+record.UserID, val).Err()
}

// Get implements Store. Returns nil if no record exists.
func (s *redisStore) Get(ctx context.Context, userID string) (*Record, error) {
	val, err := s.client.Get(ctx, sessionKeyPrefix+userID).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var record Record
	if err := json.Unmarshal([]byte(val), &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// Delete implements Store.
func (s *redisStore) Delete(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, sessionKeyPrefix+userID).Err(); err != nil {
		return err
	}
	return s.client.Publish(ctx, sessionChannelPrefix+userID, deletedPayload).Err()
}

// Observe implements Store. The subscription is confirmed before the
// initial read so a write landing between the two is not lost.
func (s *redisStore) Observe(ctx context.Context, userID string, fn func(*Record)) (func(), error) {
	pubsub := s.client.Subscribe(ctx, sessionChannelPrefix+userID)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	var mu sync.Mutex
	stopped := false
	deliver := func(rec *Record) {
		mu.Lock()
		if stopped {
			mu.Unlock()
			return
		}
		mu.Unlock()
		fn(rec)
	}

	initial, err := s.Get(ctx, userID)
	if err != nil {
		_ = pubsub.Close()
		return nil, err
	}
	deliver(initial)

	go func() {
		for msg := range pubsub.Channel() {
			if msg.Payload == deletedPayload {
				deliver(nil)
				continue
			}
			var record Record
			if err := json.Unmarshal([]byte(msg.Payload), &record); err != nil {
				continue
			}
			deliver(&record)
		}
	}()

	return func() {
		mu.Lock()
		stopped = true
		mu.Unlock()
		_ = pubsub.Close()
	}, nil
}

// Close implements Store.
func (s *redisStore) Close() error {
	return s.client.Close()
}
