package host

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// MemoryMessageStore is a process-local MessageStore for single-instance
// deployments and tests.
type MemoryMessageStore struct {
	mu       sync.Mutex
	messages map[string][]byte
}

// NewMemoryMessageStore creates an empty in-memory message store.
func NewMemoryMessageStore() *MemoryMessageStore {
	return &MemoryMessageStore{messages: make(map[string][]byte)}
}

// Write persists data under a fresh id.
func (s *MemoryMessageStore) Write(_ context.Context, data []byte) (string, error) {
	id := uuid.NewString()
	buf := make([]byte, len(data))
	copy(buf, data)

	s.mu.Lock()
	s.messages[id] = buf
	s.mu.Unlock()
	return id, nil
}

// Read returns the data stored under id.
func (s *MemoryMessageStore) Read(_ context.Context, id string) ([]byte, error) {
	s.mu.Lock()
	data, ok := s.messages[id]
	s.mu.Unlock()
	if !ok {
		return nil, ErrMessageNotFound
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	return buf, nil
}

// Delete removes the data stored under id.
func (s *MemoryMessageStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.messages, id)
	s.mu.Unlock()
	return nil
}

// RedisMessageStore is a MessageStore backed by Redis with a TTL, for
// multi-instance deployments where the callback may land on another node.
type RedisMessageStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisMessageStore creates a message store on an existing Redis client.
// A zero ttl defaults to one hour.
func NewRedisMessageStore(client *redis.Client, ttl time.Duration) *RedisMessageStore {
	if ttl == 0 {
		ttl = time.Hour
	}
	return &RedisMessageStore{client: client, ttl: ttl, prefix: "samlfed:msg:"}
}

// Write persists data under a fresh id with the store's TTL.
func (s *RedisMessageStore) Write(ctx context.Context, data []byte) (string, error) {
	id := uuid.NewString()
	if err := s.client.Set(ctx, s.prefix+id, data, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("redis set failed: %w", err)
	}
	return id, nil
}

// Read returns the data stored under id.
func (s *RedisMessageStore) Read(ctx context.Context, id string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.prefix+id).Bytes()
	if err == redis.Nil {
		return nil, ErrMessageNotFound
	} else if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return data, nil
}

// Delete removes the data stored under id.
func (s *RedisMessageStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.prefix+id).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}
