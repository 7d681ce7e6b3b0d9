package domains

import (
	"context"
	"sort"
	"strings"
	"sync"

	id "agora/pkg/domain"
	"agora/pkg/platform/sentinel"
)

// InMemory keeps domains in a map for unit tests.
type InMemory struct {
	mu      sync.RWMutex
	domains map[id.DomainID]Domain
}

func NewInMemory() *InMemory {
	return &InMemory{domains: make(map[id.DomainID]Domain)}
}

func (s *InMemory) CreateIfNameAvailable(_ context.Context, d Domain) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.domains {
		if strings.EqualFold(existing.Name, d.Name) {
			return sentinel.ErrAlreadyUsed
		}
	}
	s.domains[d.ID] = d
	return nil
}

func (s *InMemory) FindByID(_ context.Context, domainID id.DomainID) (Domain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if d, ok := s.domains[domainID]; ok {
		return d, nil
	}
	return Domain{}, sentinel.ErrNotFound
}

func (s *InMemory) FindByName(_ context.Context, name string) (Domain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.domains {
		if strings.EqualFold(d.Name, name) {
			return d, nil
		}
	}
	return Domain{}, sentinel.ErrNotFound
}

func (s *InMemory) List(_ context.Context) ([]Domain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Domain, 0, len(s.domains))
	for _, d := range s.domains {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *InMemory) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.domains), nil
}
