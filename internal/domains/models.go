// Package domains holds the electoral-college registry. A domain's seat
// count bounds how many votes each organization may cast within it.
package domains

import (
	id "agora/pkg/domain"
)

// Domain is an electoral college.
//
// Invariants:
//   - Name is unique
//   - SeatCount is never negative
//   - Once votes exist against a domain it is immutable by policy; the
//     registry offers no update path from the admin surface.
type Domain struct {
	ID          id.DomainID `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	SeatCount   int         `json:"seat_count"`
}

// Seeded reference data for a civic-society edition. Seeding is idempotent
// and keyed by name.
func SeedSet() []Domain {
	return []Domain{
		{ID: id.NewDomainID(), Name: "Social services", SeatCount: 4},
		{ID: id.NewDomainID(), Name: "Education and research", SeatCount: 4},
		{ID: id.NewDomainID(), Name: "Health", SeatCount: 2},
		{ID: id.NewDomainID(), Name: "Environment", SeatCount: 2},
		{ID: id.NewDomainID(), Name: "Civic participation and human rights", SeatCount: 4},
		{ID: id.NewDomainID(), Name: "Culture and media", SeatCount: 1},
	}
}
