package accounts

import (
	"context"
	"strings"
	"sync"

	id "agora/pkg/domain"
	"agora/pkg/platform/sentinel"
)

// InMemory keeps users and group membership in maps for unit tests.
type InMemory struct {
	mu     sync.RWMutex
	users  map[id.UserID]User
	groups map[Group]map[id.UserID]bool
}

func NewInMemory() *InMemory {
	return &InMemory{
		users:  make(map[id.UserID]User),
		groups: make(map[Group]map[id.UserID]bool),
	}
}

func (s *InMemory) CreateIfEmailAvailable(_ context.Context, user User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return sentinel.ErrAlreadyUsed
		}
	}
	s.users[user.ID] = user
	return nil
}

func (s *InMemory) Update(_ context.Context, user User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.users[user.ID] = user
	return nil
}

func (s *InMemory) FindByID(_ context.Context, userID id.UserID) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.users[userID]; ok {
		return u, nil
	}
	return User{}, sentinel.ErrNotFound
}

func (s *InMemory) FindByEmail(_ context.Context, email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return User{}, sentinel.ErrNotFound
}

func (s *InMemory) ListByOrg(_ context.Context, orgID id.OrgID) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []User
	for _, u := range s.users {
		if u.OrgID == orgID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *InMemory) AddToGroup(_ context.Context, userID id.UserID, group Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return sentinel.ErrNotFound
	}
	if s.groups[group] == nil {
		s.groups[group] = make(map[id.UserID]bool)
	}
	s.groups[group][userID] = true
	return nil
}

func (s *InMemory) InGroup(_ context.Context, userID id.UserID, group Group) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.groups[group][userID], nil
}

func (s *InMemory) CountByGroup(_ context.Context, group Group) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.groups[group]), nil
}

func (s *InMemory) ListEmailsByGroups(_ context.Context, groups ...Group) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[id.UserID]bool)
	var out []string
	for _, group := range groups {
		for userID := range s.groups[group] {
			if seen[userID] {
				continue
			}
			seen[userID] = true
			if u, ok := s.users[userID]; ok && u.Active {
				out = append(out, u.Email)
			}
		}
	}
	return out, nil
}
