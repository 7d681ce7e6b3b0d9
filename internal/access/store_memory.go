package access

import (
	"context"
	"sync"

	id "agora/pkg/domain"
)

type grantKey struct {
	userID     id.UserID
	group      string
	objectType ObjectType
	objectID   string
	capability Capability
}

// InMemory keeps grants in a set for unit tests.
type InMemory struct {
	mu     sync.RWMutex
	grants map[grantKey]bool
}

func NewInMemory() *InMemory {
	return &InMemory{grants: make(map[grantKey]bool)}
}

func keyOf(g Grant) grantKey {
	return grantKey{
		userID:     g.Subject.UserID,
		group:      g.Subject.Group,
		objectType: g.ObjectType,
		objectID:   g.ObjectID,
		capability: g.Capability,
	}
}

func (s *InMemory) Put(_ context.Context, grant Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants[keyOf(grant)] = true
	return nil
}

func (s *InMemory) Has(_ context.Context, userID id.UserID, groups []string, objectType ObjectType, objectID string, capability Capability) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.grants[grantKey{userID: userID, objectType: objectType, objectID: objectID, capability: capability}] {
		return true, nil
	}
	for _, group := range groups {
		if s.grants[grantKey{group: group, objectType: objectType, objectID: objectID, capability: capability}] {
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemory) RevokeObject(_ context.Context, objectType ObjectType, objectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.grants {
		if key.objectType == objectType && key.objectID == objectID {
			delete(s.grants, key)
		}
	}
	return nil
}
