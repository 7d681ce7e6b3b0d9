package org

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	id "agora/pkg/domain"
	"agora/pkg/platform/sentinel"
)

// InMemory keeps organizations in a map for unit tests.
type InMemory struct {
	mu   sync.RWMutex
	orgs map[id.OrgID]Organization
}

func NewInMemory() *InMemory {
	return &InMemory{orgs: make(map[id.OrgID]Organization)}
}

func (s *InMemory) Create(_ context.Context, o Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orgs[o.ID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	s.orgs[o.ID] = cloneOrg(o)
	return nil
}

func (s *InMemory) Update(_ context.Context, o Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orgs[o.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.orgs[o.ID] = cloneOrg(o)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, orgID id.OrgID) (Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if o, ok := s.orgs[orgID]; ok {
		return cloneOrg(o), nil
	}
	return Organization{}, sentinel.ErrNotFound
}

func (s *InMemory) FindByExternalID(_ context.Context, externalID int) (Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.orgs {
		if o.ExternalOrgID == externalID && externalID != 0 {
			return cloneOrg(o), nil
		}
	}
	return Organization{}, sentinel.ErrNotFound
}

// ExistsByEmailInStatus reports whether another organization holds the email
// while in one of the given statuses.
func (s *InMemory) ExistsByEmailInStatus(_ context.Context, email string, exclude id.OrgID, statuses ...Status) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.orgs {
		if o.ID == exclude || !strings.EqualFold(o.Email, email) {
			continue
		}
		for _, status := range statuses {
			if o.Status == status {
				return true, nil
			}
		}
	}
	return false, nil
}

// ListByStatus returns organizations filtered by status (named filter
// `byStatus`).
func (s *InMemory) ListByStatus(_ context.Context, status Status) ([]Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Organization
	for _, o := range s.orgs {
		if o.Status == status {
			out = append(out, cloneOrg(o))
		}
	}
	sortOrgs(out)
	return out, nil
}

// ListExcludingDraft returns every organization past the draft stage (named
// filter `excludingDraft`).
func (s *InMemory) ListExcludingDraft(_ context.Context) ([]Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Organization
	for _, o := range s.orgs {
		if o.Status != StatusDraft {
			out = append(out, cloneOrg(o))
		}
	}
	sortOrgs(out)
	return out, nil
}

// ListStaleSynced returns hub-linked organizations whose last sync is older
// than the cutoff, up to limit.
func (s *InMemory) ListStaleSynced(_ context.Context, cutoff time.Time, limit int) ([]Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Organization
	for _, o := range s.orgs {
		if o.ExternalOrgID != 0 && o.SyncedAt.Before(cutoff) {
			out = append(out, cloneOrg(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SyncedAt.Before(out[j].SyncedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func sortOrgs(orgs []Organization) {
	sort.Slice(orgs, func(i, j int) bool { return orgs[i].Name < orgs[j].Name })
}

func cloneOrg(o Organization) Organization {
	if o.AnnualReports != nil {
		reports := make(map[int]string, len(o.AnnualReports))
		for k, v := range o.AnnualReports {
			reports[k] = v
		}
		o.AnnualReports = reports
	}
	if o.FilenameCache != nil {
		cache := make(map[string]string, len(o.FilenameCache))
		for k, v := range o.FilenameCache {
			cache[k] = v
		}
		o.FilenameCache = cache
	}
	return o
}
