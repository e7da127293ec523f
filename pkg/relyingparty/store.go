package relyingparty

import (
	"context"
	"sync"
)

// Store looks up relying party configuration by entity ID. A Store only
// holds per-party overrides; callers combine the result with Defaults.
type Store interface {
	// Get returns the configuration for entityID, or ErrNotFound when the
	// entity has no registered overrides.
	Get(ctx context.Context, entityID string) (*RelyingParty, error)
}

// MemoryStore is an in-memory Store, used in tests and single-node setups.
type MemoryStore struct {
	mu      sync.RWMutex
	parties map[string]RelyingParty
}

// NewMemoryStore creates a MemoryStore seeded with the given parties.
func NewMemoryStore(parties ...RelyingParty) *MemoryStore {
	s := &MemoryStore{parties: make(map[string]RelyingParty, len(parties))}
	for _, p := range parties {
		s.parties[p.EntityID] = p
	}
	return s
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, entityID string) (*RelyingParty, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.parties[entityID]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

// Put registers or replaces a relying party.
func (s *MemoryStore) Put(p RelyingParty) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parties[p.EntityID] = p
}

// Remove deletes a relying party. Removing an unknown entity is a no-op.
func (s *MemoryStore) Remove(entityID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.parties, entityID)
}
