package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/platinummonkey/samlfed/pkg/host"
)

// ErrNotFound is returned for unknown, expired, or already-consumed keys.
var ErrNotFound = errors.New("artifact: not found")

// Record is a stored response awaiting resolution.
type Record struct {
	ClientID string    `json:"client_id"`
	Response []byte    `json:"response"`
	Created  time.Time `json:"created"`
	Expiry   time.Time `json:"expiry"`
}

// Store persists records under their artifact string.
type Store interface {
	// Store persists rec under key. Last write wins; in practice keys are
	// random and never collide.
	Store(ctx context.Context, key string, rec Record) error
	// Fetch returns the record under key without consuming it.
	Fetch(ctx context.Context, key string) (Record, error)
	// Remove deletes the record under key. Removing a missing key is not
	// an error.
	Remove(ctx context.Context, key string) error
	// Consume atomically fetches and removes the record under key. Of
	// two racing calls for one key, at most one succeeds.
	Consume(ctx context.Context, key string) (Record, error)
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	clock   host.Clock
	mu      sync.Mutex
	records map[string]Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(clock host.Clock) *MemoryStore {
	return &MemoryStore{clock: clock, records: make(map[string]Record)}
}

// Store implements Store.
func (s *MemoryStore) Store(_ context.Context, key string, rec Record) error {
	s.mu.Lock()
	s.records[key] = rec
	s.mu.Unlock()
	return nil
}

// Fetch implements Store.
func (s *MemoryStore) Fetch(_ context.Context, key string) (Record, error) {
	s.mu.Lock()
	rec, ok := s.records[key]
	s.mu.Unlock()
	if !ok || s.expired(rec) {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

// Remove implements Store.
func (s *MemoryStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.records, key)
	s.mu.Unlock()
	return nil
}

// Consume implements Store. The mutex spans lookup and delete, so a racing
// Consume of the same key observes the record gone.
func (s *MemoryStore) Consume(_ context.Context, key string) (Record, error) {
	s.mu.Lock()
	rec, ok := s.records[key]
	if ok {
		delete(s.records, key)
	}
	s.mu.Unlock()
	if !ok || s.expired(rec) {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (s *MemoryStore) expired(rec Record) bool {
	return !rec.Expiry.IsZero() && !s.clock.Now().Before(rec.Expiry)
}

// RedisStore is a Store shared across engine instances. Records carry a
// TTL matching their expiry so Redis prunes them without a sweep.
type RedisStore struct {
	client *redis.Client
	clock  host.Clock
	prefix string
}

// NewRedisStore creates a store on an existing Redis client.
func NewRedisStore(client *redis.Client, clock host.Clock) *RedisStore {
	return &RedisStore{client: client, clock: clock, prefix: "samlfed:artifact:"}
}

// Store implements Store.
func (s *RedisStore) Store(ctx context.Context, key string, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("artifact: marshal record: %w", err)
	}
	ttl := rec.Expiry.Sub(s.clock.Now())
	if ttl <= 0 {
		return fmt.Errorf("artifact: record already expired")
	}
	if err := s.client.Set(ctx, s.prefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("artifact: redis set: %w", err)
	}
	return nil
}

// Fetch implements Store.
func (s *RedisStore) Fetch(ctx context.Context, key string) (Record, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err == redis.Nil {
		return Record{}, ErrNotFound
	} else if err != nil {
		return Record{}, fmt.Errorf("artifact: redis get: %w", err)
	}
	return decodeRecord(data)
}

// Remove implements Store.
func (s *RedisStore) Remove(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("artifact: redis del: %w", err)
	}
	return nil
}

// Consume implements Store via GETDEL, which is atomic server-side.
func (s *RedisStore) Consume(ctx context.Context, key string) (Record, error) {
	data, err := s.client.GetDel(ctx, s.prefix+key).Bytes()
	if err == redis.Nil {
		return Record{}, ErrNotFound
	} else if err != nil {
		return Record{}, fmt.Errorf("artifact: redis getdel: %w", err)
	}
	return decodeRecord(data)
}

func decodeRecord(data []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("artifact: unmarshal record: %w", err)
	}
	return rec, nil
}
