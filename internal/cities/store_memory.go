package cities

import (
	"context"
	"strings"
	"sync"

	"agora/pkg/platform/sentinel"
)

// InMemory keeps the city registry in a map for unit tests.
type InMemory struct {
	mu     sync.RWMutex
	cities map[string]City // keyed by lower(name)|lower(county)
}

func NewInMemory() *InMemory {
	return &InMemory{cities: make(map[string]City)}
}

func key(name, county string) string {
	return strings.ToLower(name) + "|" + strings.ToLower(county)
}

func (s *InMemory) Upsert(_ context.Context, city City) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cities[key(city.Name, city.County)] = city
	return nil
}

// FindByName returns the first city matching name, any county.
func (s *InMemory) FindByName(_ context.Context, name string) (City, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.cities {
		if strings.EqualFold(c.Name, name) {
			return c, nil
		}
	}
	return City{}, sentinel.ErrNotFound
}

func (s *InMemory) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cities), nil
}
