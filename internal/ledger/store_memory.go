package ledger

import (
	"context"
	"sync"

	id "agora/pkg/domain"
	"agora/pkg/platform/sentinel"
)

type pairKey struct {
	user      id.UserID
	candidate id.CandidateID
}

// InMemory keeps the ledger in maps for unit tests.
type InMemory struct {
	mu            sync.RWMutex
	supporters    map[pairKey]Supporter
	votes         map[pairKey]Vote
	confirmations map[pairKey]Confirmation
}

func NewInMemory() *InMemory {
	return &InMemory{
		supporters:    make(map[pairKey]Supporter),
		votes:         make(map[pairKey]Vote),
		confirmations: make(map[pairKey]Confirmation),
	}
}

func (s *InMemory) CreateSupporter(_ context.Context, row Supporter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey{row.UserID, row.CandidateID}
	if _, ok := s.supporters[key]; ok {
		return sentinel.ErrConflict
	}
	s.supporters[key] = row
	return nil
}

func (s *InMemory) DeleteSupporter(_ context.Context, userID id.UserID, candidateID id.CandidateID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey{userID, candidateID}
	if _, ok := s.supporters[key]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.supporters, key)
	return nil
}

func (s *InMemory) FindSupporterAmong(_ context.Context, userIDs []id.UserID, candidateID id.CandidateID) (id.UserID, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, userID := range userIDs {
		if _, ok := s.supporters[pairKey{userID, candidateID}]; ok {
			return userID, true, nil
		}
	}
	return id.UserID{}, false, nil
}

func (s *InMemory) CountSupportersByCandidate(_ context.Context, candidateID id.CandidateID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for key := range s.supporters {
		if key.candidate == candidateID {
			n++
		}
	}
	return n, nil
}

func (s *InMemory) DeleteSupportersByUsers(_ context.Context, userIDs []id.UserID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	members := make(map[id.UserID]struct{}, len(userIDs))
	for _, u := range userIDs {
		members[u] = struct{}{}
	}
	n := 0
	for key := range s.supporters {
		if _, ok := members[key.user]; ok {
			delete(s.supporters, key)
			n++
		}
	}
	return n, nil
}

func (s *InMemory) CreateVote(_ context.Context, row Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey{row.UserID, row.CandidateID}
	if _, ok := s.votes[key]; ok {
		return sentinel.ErrConflict
	}
	for _, v := range s.votes {
		if v.OrgID == row.OrgID && v.CandidateID == row.CandidateID {
			return sentinel.ErrConflict
		}
	}
	s.votes[key] = row
	return nil
}

func (s *InMemory) ExistsVoteByOrgCandidate(_ context.Context, orgID id.OrgID, candidateID id.CandidateID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.votes {
		if v.OrgID == orgID && v.CandidateID == candidateID {
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemory) CountVotesByOrgDomain(_ context.Context, orgID id.OrgID, domainID id.DomainID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, v := range s.votes {
		if v.OrgID == orgID && v.DomainID == domainID {
			n++
		}
	}
	return n, nil
}

func (s *InMemory) CountVotesByCandidate(_ context.Context, candidateID id.CandidateID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for key := range s.votes {
		if key.candidate == candidateID {
			n++
		}
	}
	return n, nil
}

func (s *InMemory) DeleteVotesByOrg(_ context.Context, orgID id.OrgID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for key, v := range s.votes {
		if v.OrgID == orgID {
			delete(s.votes, key)
			n++
		}
	}
	return n, nil
}

func (s *InMemory) CreateConfirmationIfAbsent(_ context.Context, row Confirmation) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey{row.UserID, row.CandidateID}
	if _, ok := s.confirmations[key]; ok {
		return false, nil
	}
	s.confirmations[key] = row
	return true, nil
}

func (s *InMemory) CountConfirmersByCandidate(_ context.Context, candidateID id.CandidateID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for key := range s.confirmations {
		if key.candidate == candidateID {
			n++
		}
	}
	return n, nil
}

func (s *InMemory) DeleteConfirmationsByCandidate(_ context.Context, candidateID id.CandidateID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for key := range s.confirmations {
		if key.candidate == candidateID {
			delete(s.confirmations, key)
			n++
		}
	}
	return n, nil
}

func (s *InMemory) DeleteConfirmationsByUser(_ context.Context, userID id.UserID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for key := range s.confirmations {
		if key.user == userID {
			delete(s.confirmations, key)
			n++
		}
	}
	return n, nil
}

func (s *InMemory) DeleteByCandidate(_ context.Context, candidateID id.CandidateID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.supporters {
		if key.candidate == candidateID {
			delete(s.supporters, key)
		}
	}
	for key := range s.votes {
		if key.candidate == candidateID {
			delete(s.votes, key)
		}
	}
	for key := range s.confirmations {
		if key.candidate == candidateID {
			delete(s.confirmations, key)
		}
	}
	return nil
}
