// Package candidate implements the candidate lifecycle: proposal,
// completeness, committee review, withdrawal and confirmation-driven
// promotion.
package candidate

import (
	"time"

	id "agora/pkg/domain"
)

// Status is the candidate review state.
type Status string

const (
	// StatusPending awaits committee review.
	StatusPending Status = "pending"
	// StatusAccepted passed committee review and awaits confirmations.
	StatusAccepted Status = "accepted"
	// StatusConfirmed collected a full committee of confirmations and may
	// receive votes.
	StatusConfirmed Status = "confirmed"
	// StatusRejected is out of the race.
	StatusRejected Status = "rejected"
)

// Candidate is an organization's nominee for a domain seat.
//
// Invariants:
//   - once any vote references the candidate, every further save fails
//   - a set InitialOrgID marks withdrawal: the next save force-clears
//     OrgID and IsProposed
type Candidate struct {
	ID     id.CandidateID
	Status Status

	// OrgID links the proposing organization, zero after withdrawal.
	OrgID id.OrgID
	// InitialOrgID remembers the proposing organization across withdrawal.
	InitialOrgID id.OrgID

	DomainID id.DomainID
	// OldDomainID stashes the previous domain across a voting-domain
	// reassignment of the owning organization.
	OldDomainID id.DomainID

	// IsProposed marks the organization's official, not-yet-withdrawn
	// nominee.
	IsProposed bool

	RepresentativeName string
	RepresentativeRole string

	// Document fields hold stored filenames.
	Photo          string
	Statement      string
	Mandate        string
	LetterOfIntent string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Withdrawn reports whether the organization un-proposed this candidate.
func (c *Candidate) Withdrawn() bool { return !c.InitialOrgID.IsZero() }

// missingBaseFields lists the unfilled base requirements.
func (c *Candidate) missingBaseFields() []string {
	var missing []string
	require := func(value, field string) {
		if value == "" {
			missing = append(missing, field)
		}
	}
	require(c.RepresentativeName, "representative_name")
	require(c.RepresentativeRole, "representative_role")
	require(c.Photo, "photo")
	require(c.Statement, "statement")
	require(c.Mandate, "mandate")
	require(c.LetterOfIntent, "letter_of_intent")
	if c.DomainID.IsZero() {
		missing = append(missing, "domain")
	}
	return missing
}
