// Package access is the explicit access-control table. Lifecycle operations
// populate it as a side effect; authorization checks become plain lookups
// keyed by (subject, object type, object id, capability).
package access

import (
	"context"

	id "agora/pkg/domain"
)

// ObjectType names the entity class a grant covers.
type ObjectType string

const (
	ObjectOrganization ObjectType = "organization"
	ObjectCandidate    ObjectType = "candidate"
)

// Capability names what the subject may do to the object.
type Capability string

const (
	CapView     Capability = "view"
	CapChange   Capability = "change"
	CapDelete   Capability = "delete"
	CapViewData Capability = "view_data"
	CapApprove  Capability = "approve"
)

// Subject identifies a grant holder: either a single user or a whole group.
type Subject struct {
	UserID id.UserID
	Group  string // set when the grant targets a role group
}

// UserSubject builds a subject for a single user.
func UserSubject(userID id.UserID) Subject {
	return Subject{UserID: userID}
}

// GroupSubject builds a subject for a role group.
func GroupSubject(group string) Subject {
	return Subject{Group: group}
}

// Grant is one access-control row.
type Grant struct {
	Subject    Subject
	ObjectType ObjectType
	ObjectID   string
	Capability Capability
}

// Store is the persistence contract.
type Store interface {
	Put(ctx context.Context, grant Grant) error
	// Has reports whether the user holds the capability either directly or
	// through any of the given groups.
	Has(ctx context.Context, userID id.UserID, groups []string, objectType ObjectType, objectID string, capability Capability) (bool, error)
	RevokeObject(ctx context.Context, objectType ObjectType, objectID string) error
}
