// Package ledger holds the support, vote and confirmation records together
// with their uniqueness and quota invariants. Rows are created by explicit
// user or committee action and deleted only by administrative reset or a
// lifecycle cascade, never updated in place.
package ledger

import (
	"time"

	id "agora/pkg/domain"
)

// Supporter is one user backing a candidate, unique per (user, candidate).
type Supporter struct {
	UserID      id.UserID
	CandidateID id.CandidateID
	CreatedAt   time.Time
}

// Vote is one elector organization's vote for a candidate, cast by one of
// its users. Unique per (user, candidate) and per (org, candidate); the
// per-(org, domain) count is capped at the domain's seat count.
type Vote struct {
	UserID      id.UserID
	OrgID       id.OrgID
	CandidateID id.CandidateID
	DomainID    id.DomainID
	CreatedAt   time.Time
}

// Confirmation is a committee member's attestation of an accepted
// candidate, unique per (user, candidate).
type Confirmation struct {
	UserID      id.UserID
	CandidateID id.CandidateID
	CreatedAt   time.Time
}
