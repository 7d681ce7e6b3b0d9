package candidate

import (
	"context"
	"sort"
	"sync"

	id "agora/pkg/domain"
	"agora/pkg/platform/sentinel"
)

// InMemory keeps candidates in a map for unit tests.
type InMemory struct {
	mu         sync.RWMutex
	candidates map[id.CandidateID]Candidate
}

func NewInMemory() *InMemory {
	return &InMemory{candidates: make(map[id.CandidateID]Candidate)}
}

// Create enforces the one-candidate-per-organization rule.
func (s *InMemory) Create(_ context.Context, c Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.candidates {
		if !c.OrgID.IsZero() && existing.OrgID == c.OrgID {
			return sentinel.ErrAlreadyUsed
		}
	}
	s.candidates[c.ID] = c
	return nil
}

func (s *InMemory) Update(_ context.Context, c Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.candidates[c.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.candidates[c.ID] = c
	return nil
}

func (s *InMemory) FindByID(_ context.Context, candidateID id.CandidateID) (Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.candidates[candidateID]; ok {
		return c, nil
	}
	return Candidate{}, sentinel.ErrNotFound
}

func (s *InMemory) FindByOrg(_ context.Context, orgID id.OrgID) (Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.candidates {
		if c.OrgID == orgID {
			return c, nil
		}
	}
	return Candidate{}, sentinel.ErrNotFound
}

func (s *InMemory) ListByStatus(_ context.Context, status Status) ([]Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Candidate
	for _, c := range s.candidates {
		if c.Status == status {
			out = append(out, c)
		}
	}
	sortByName(out)
	return out, nil
}

func (s *InMemory) ListByDomain(_ context.Context, domainID id.DomainID) ([]Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Candidate
	for _, c := range s.candidates {
		if c.DomainID == domainID {
			out = append(out, c)
		}
	}
	sortByName(out)
	return out, nil
}

// DeleteProposedByOrg removes the organization's proposed candidates and
// returns them so callers can purge dependent rows.
func (s *InMemory) DeleteProposedByOrg(_ context.Context, orgID id.OrgID) ([]Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted []Candidate
	for cid, c := range s.candidates {
		if c.OrgID == orgID && c.IsProposed {
			deleted = append(deleted, c)
			delete(s.candidates, cid)
		}
	}
	return deleted, nil
}

func (s *InMemory) Delete(_ context.Context, candidateID id.CandidateID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.candidates[candidateID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.candidates, candidateID)
	return nil
}

func sortByName(out []Candidate) {
	sort.Slice(out, func(i, j int) bool {
		return out[i].RepresentativeName < out[j].RepresentativeName
	})
}
