package flags

import (
	"context"
	"sync"

	"agora/pkg/platform/sentinel"
)

// InMemory keeps flags in a map. It backs unit tests and mirrors the
// Postgres store's contract exactly, including ErrNotFound on absent rows.
type InMemory struct {
	mu    sync.RWMutex
	flags map[Name]bool
}

func NewInMemory() *InMemory {
	return &InMemory{flags: make(map[Name]bool)}
}

func (s *InMemory) Get(_ context.Context, name Name) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	enabled, ok := s.flags[name]
	if !ok {
		return false, sentinel.ErrNotFound
	}
	return enabled, nil
}

func (s *InMemory) Upsert(_ context.Context, name Name, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags[name] = enabled
	return nil
}

// SetMany applies every toggle or none. The memory store holds its lock for
// the whole batch, matching the Postgres store's single transaction.
func (s *InMemory) SetMany(_ context.Context, enabled, disabled []Name) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range enabled {
		if _, ok := s.flags[name]; !ok {
			return sentinel.ErrNotFound
		}
	}
	for _, name := range disabled {
		if _, ok := s.flags[name]; !ok {
			return sentinel.ErrNotFound
		}
	}
	for _, name := range enabled {
		s.flags[name] = true
	}
	for _, name := range disabled {
		s.flags[name] = false
	}
	return nil
}

func (s *InMemory) List(_ context.Context) ([]Flag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Flag, 0, len(s.flags))
	for name, enabled := range s.flags {
		out = append(out, Flag{Name: name, Enabled: enabled})
	}
	return out, nil
}

// Names returns the set of flag names present in storage.
func (s *InMemory) Names(_ context.Context) (map[Name]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[Name]bool, len(s.flags))
	for name := range s.flags {
		out[name] = true
	}
	return out, nil
}
