// Package accounts holds platform users and role groups. Authentication and
// session management are external collaborators; this package only stores
// the accounts other modules hang permissions and thresholds on.
package accounts

import (
	"time"

	id "agora/pkg/domain"
)

// Group is a role group name. The confirmation threshold is the size of the
// committee group; notification fan-out targets staff and support.
type Group string

const (
	GroupNGO       Group = "ngo"
	GroupCommittee Group = "committee"
	GroupStaff     Group = "staff"
	GroupSupport   Group = "support"
)

// User is a platform account.
//
// Invariants:
//   - Email is unique for non-rejected accounts
//   - An organization owner is linked through OrgID; at most one
//     organization per user
type User struct {
	ID           id.UserID
	Email        string
	PasswordHash string
	Active       bool
	OrgID        id.OrgID // zero when not an organization owner
	FirstName    string
	LastName     string
	CreatedAt    time.Time
}

// FullName is the display name used in notification mails.
func (u User) FullName() string {
	return u.FirstName + " " + u.LastName
}
