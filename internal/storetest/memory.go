// Package storetest provides an in-memory cache store for tests.
package storetest

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore is a TTL-aware in-memory implementation of domain.Store.
// Expiry follows the injected clock, so fake-clock tests can advance
// past TTLs deterministically.
type MemoryStore struct {
	clock clockwork.Clock

	mu      sync.Mutex
	entries map[string]entry
	sets    int
	gets    int
}

func NewMemoryStore(clock clockwork.Clock) *MemoryStore {
	return &MemoryStore{
		clock:   clock,
		entries: make(map[string]entry),
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++

	e, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	if s.clock.Now().After(e.expiresAt) {
		delete(s.entries, key)
		return nil, false, nil
	}
	return e.value, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets++

	s.entries[key] = entry{value: value, expiresAt: s.clock.Now().Add(ttl)}
	return nil
}

// Sets returns how many writes the store has seen.
func (s *MemoryStore) Sets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sets
}

// Has reports whether key currently holds an unexpired entry.
func (s *MemoryStore) Has(key string) bool {
	_, ok, _ := s.Get(context.Background(), key)
	return ok
}
