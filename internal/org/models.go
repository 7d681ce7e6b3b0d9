// Package org implements the organization lifecycle: registration,
// completeness evaluation, status transitions and the domain-reassignment
// cascade.
package org

import (
	"time"

	id "agora/pkg/domain"
)

// Status is the organization lifecycle state.
type Status string

const (
	// StatusDraft is a minimal record created by social signup, admin
	// provisioning or the external sync before the NGO finishes registering.
	StatusDraft Status = "draft"
	// StatusPending awaits committee review.
	StatusPending Status = "pending"
	// StatusHubAccepted means the external registry vetted the NGO; the
	// record auto-promotes to accepted as soon as a voting domain is set.
	StatusHubAccepted Status = "ngohub_accepted"
	// StatusAccepted organizations are electors.
	StatusAccepted Status = "accepted"
	// StatusAdmin is a non-electing administrative account.
	StatusAdmin Status = "admin"
	// StatusRejected organizations are out of the cycle.
	StatusRejected Status = "rejected"
)

// Electing reports whether the status grants elector rights.
func (s Status) Electing() bool { return s == StatusAccepted }

// Organization is the aggregate root for an NGO.
//
// Invariants:
//   - County is always derived from City, never set directly
//   - StatusHubAccepted auto-promotes to StatusAccepted once VotingDomainID
//     is set
//   - Changing VotingDomainID on an accepted organization triggers the
//     domain-reassignment cascade (see Service.Save)
type Organization struct {
	ID     id.OrgID
	Status Status

	Name                    string
	Email                   string
	Phone                   string
	Address                 string
	City                    string
	County                  string
	Description             string
	RegistrationNumber      string
	LegalRepresentativeName string
	BoardCouncil            string

	VotingDomainID id.DomainID // zero when unset
	ExternalOrgID  int         // NGO Hub identifier, 0 when unlinked

	// Document fields hold stored filenames; the file bytes live behind the
	// FileStore collaborator.
	Logo                    string
	Statute                 string
	LastBalanceSheet        string
	FiscalAttestation       string
	NonPoliticalAffiliation string
	// AnnualReports maps report year to stored filename.
	AnnualReports map[int]string

	// FilenameCache remembers the external filename last fetched per
	// document field so the sync reconciler can skip unchanged files.
	FilenameCache map[string]string

	RegisteredAt  time.Time
	AcceptedAt    time.Time
	SyncStartedAt time.Time
	SyncedAt      time.Time
	UpdatedAt     time.Time
}

// HasVotingDomain reports whether a voting domain is assigned.
func (o *Organization) HasVotingDomain() bool { return !o.VotingDomainID.IsZero() }

// Report returns the stored filename of the annual report for a year.
func (o *Organization) Report(year int) string {
	if o.AnnualReports == nil {
		return ""
	}
	return o.AnnualReports[year]
}

// SetReport records an annual report filename.
func (o *Organization) SetReport(year int, filename string) {
	if o.AnnualReports == nil {
		o.AnnualReports = make(map[int]string)
	}
	o.AnnualReports[year] = filename
}

// CachedFilename returns the external filename last fetched for a document
// field, empty when the field was never synced.
func (o *Organization) CachedFilename(field string) string {
	if o.FilenameCache == nil {
		return ""
	}
	return o.FilenameCache[field]
}

// CacheFilename records the external filename fetched for a document field.
func (o *Organization) CacheFilename(field, filename string) {
	if o.FilenameCache == nil {
		o.FilenameCache = make(map[string]string)
	}
	if filename == "" {
		delete(o.FilenameCache, field)
		return
	}
	o.FilenameCache[field] = filename
}
