// Package domain defines the typed identifiers shared across modules.
//
// Every entity ID is a distinct type over uuid.UUID so that an organization
// ID can never be passed where a candidate ID is expected. Parse helpers
// enforce the invariant that IDs are valid, non-nil UUIDs at trust
// boundaries (HTTP, CLI, external sync payloads).
package domain

import (
	"github.com/google/uuid"

	dErrors "agora/pkg/domain-errors"
)

type (
	// UserID identifies a platform account (NGO owner, committee member, staff).
	UserID uuid.UUID
	// OrgID identifies a registered organization.
	OrgID uuid.UUID
	// CandidateID identifies a proposed candidate.
	CandidateID uuid.UUID
	// DomainID identifies an electoral college.
	DomainID uuid.UUID
)

func (id UserID) String() string      { return uuid.UUID(id).String() }
func (id OrgID) String() string       { return uuid.UUID(id).String() }
func (id CandidateID) String() string { return uuid.UUID(id).String() }
func (id DomainID) String() string    { return uuid.UUID(id).String() }

func (id UserID) IsZero() bool      { return uuid.UUID(id) == uuid.Nil }
func (id OrgID) IsZero() bool       { return uuid.UUID(id) == uuid.Nil }
func (id CandidateID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }
func (id DomainID) IsZero() bool    { return uuid.UUID(id) == uuid.Nil }

// NewUserID mints a fresh user ID.
func NewUserID() UserID { return UserID(uuid.New()) }

// NewOrgID mints a fresh organization ID.
func NewOrgID() OrgID { return OrgID(uuid.New()) }

// NewCandidateID mints a fresh candidate ID.
func NewCandidateID() CandidateID { return CandidateID(uuid.New()) }

// NewDomainID mints a fresh domain ID.
func NewDomainID() DomainID { return DomainID(uuid.New()) }

func parseUUID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id is required")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id is not a valid UUID")
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be the nil UUID")
	}
	return parsed, nil
}

// ParseUserID parses and validates a user ID from its string form.
func ParseUserID(raw string) (UserID, error) {
	parsed, err := parseUUID(raw)
	if err != nil {
		return UserID{}, err
	}
	return UserID(parsed), nil
}

// ParseOrgID parses and validates an organization ID from its string form.
func ParseOrgID(raw string) (OrgID, error) {
	parsed, err := parseUUID(raw)
	if err != nil {
		return OrgID{}, err
	}
	return OrgID(parsed), nil
}

// ParseCandidateID parses and validates a candidate ID from its string form.
func ParseCandidateID(raw string) (CandidateID, error) {
	parsed, err := parseUUID(raw)
	if err != nil {
		return CandidateID{}, err
	}
	return CandidateID(parsed), nil
}

// ParseDomainID parses and validates a domain ID from its string form.
func ParseDomainID(raw string) (DomainID, error) {
	parsed, err := parseUUID(raw)
	if err != nil {
		return DomainID{}, err
	}
	return DomainID(parsed), nil
}
