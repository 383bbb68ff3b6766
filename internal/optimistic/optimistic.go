// Package optimistic holds short-lived predicted state so readers see a
// user's intent before the vendor API confirms it. Entries expire after a
// grace period and are swept once per refresh cycle.
package optimistic

import (
	"sync"
	"time"
)

type Scope string

const (
	ScopeHome   Scope = "home"
	ScopeZone   Scope = "zone"
	ScopeDevice Scope = "device"
)

type entryKey struct {
	scope Scope
	key   string
}

type entry struct {
	value    any
	recorded time.Time
}

type Store struct {
	mu      sync.Mutex
	grace   time.Duration
	now     func() time.Time
	entries map[entryKey]entry
}

func NewStore(grace time.Duration) *Store {
	return &Store{
		grace:   grace,
		now:     time.Now,
		entries: make(map[entryKey]entry),
	}
}

// Record stores a prediction, overwriting any existing one for the same
// (scope, key) pair.
func (s *Store) Record(scope Scope, key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entryKey{scope, key}] = entry{value: value, recorded: s.now()}
}

// Resolve returns the prediction for (scope, key) if it has not expired.
func (s *Store) Resolve(scope Scope, key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[entryKey{scope, key}]
	if !ok || s.now().Sub(e.recorded) >= s.grace {
		return nil, false
	}
	return e.value, true
}

// Clear drops the prediction for (scope, key), typically because an
// authoritative update covering it has been observed.
func (s *Store) Clear(scope Scope, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, entryKey{scope, key})
}

// Sweep removes all expired entries. Called once per refresh cycle.
func (s *Store) Sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, e := range s.entries {
		if now.Sub(e.recorded) >= s.grace {
			delete(s.entries, k)
		}
	}
}

// Len reports the number of live entries, expired or not.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
